package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/go-chi/chi/v5"
	httpSwagger "github.com/swaggo/http-swagger"

	"github.com/ttopkargo/kargobox/config"
	"github.com/ttopkargo/kargobox/internal/api/kargoapi"
	"github.com/ttopkargo/kargobox/internal/broker/kafka"
	"github.com/ttopkargo/kargobox/internal/cache"
	"github.com/ttopkargo/kargobox/internal/cache/memcache"
	"github.com/ttopkargo/kargobox/internal/cache/rediscache"
	"github.com/ttopkargo/kargobox/internal/presence"
	"github.com/ttopkargo/kargobox/internal/services/arrivals"
	"github.com/ttopkargo/kargobox/internal/services/clients"
	"github.com/ttopkargo/kargobox/internal/services/parcels"
	"github.com/ttopkargo/kargobox/internal/services/tariffs"
	"github.com/ttopkargo/kargobox/internal/sheets"
	"github.com/ttopkargo/kargobox/internal/storage/pgpresence"
	"github.com/ttopkargo/kargobox/internal/storage/redisstore"
)

type kargoAPIApp struct {
	cfg      *config.Config
	api      *kargoapi.API
	tariffs  *tariffs.Service
	store    *redisstore.Store
	producer *kafka.Producer
	pg       *pgpresence.Storage

	httpAddr     string
	swaggerPath  string
	syncInterval time.Duration

	onListen func(httpAddr string)
}

func loadConfigFromEnv() (*config.Config, error) {
	cfgPath := os.Getenv("configPath")
	if cfgPath == "" {
		return nil, fmt.Errorf("configPath env var is required")
	}
	return config.LoadConfig(cfgPath)
}

func newKargoAPIApp(cfg *config.Config) (*kargoAPIApp, error) {
	httpAddr := cfg.KargoBox.HTTPAddr
	if httpAddr == "" {
		httpAddr = ":8080"
	}

	ttl := time.Duration(cfg.Sheets.CacheTTLSeconds) * time.Second
	if ttl <= 0 {
		ttl = sheets.DefaultTTL
	}

	var sheetCache cache.BytesCache
	if cfg.KargoBox.SheetCacheMode == "shared" {
		sheetCache = rediscache.New(cfg.RedisAddr())
	} else {
		sheetCache = memcache.New()
	}

	fetcher := sheets.New(sheetCache, ttl)
	store := redisstore.New(cfg.RedisAddr())

	parcelSvc := parcels.New(fetcher, store, cfg.Sheets.ReysDirectoryURL)
	clientSvc := clients.New(fetcher, cfg.Sheets.ClientsURL)
	arrivalSvc := arrivals.New(fetcher, cfg.Sheets.ArrivedReysURL)
	tariffSvc := tariffs.New(fetcher, store, cfg.Sheets.SettingsURL)

	api := kargoapi.New(parcelSvc, clientSvc, arrivalSvc, arrivals.IsArrived, tariffSvc, store).
		WithCacheClearer(sheetCache)

	var producer *kafka.Producer
	if cfg.Kafka.ActivityTopicName != "" && cfg.Kafka.Host != "" {
		producer = kafka.NewProducer(cfg.KafkaBrokers())
		api.WithPresence(presence.New(producer, cfg.Kafka.ActivityTopicName))
	}

	// Админская лента активности читается из той же базы, куда пишет
	// presence-worker. Без базы ручка отвечает пустым списком.
	var pg *pgpresence.Storage
	if cfg.Database.Host != "" {
		var err error
		pg, err = pgpresence.New(cfg.PostgresConnString())
		if err != nil {
			slog.Warn("presence storage unavailable", "error", err.Error())
			pg = nil
		} else {
			api.WithActivityReader(pg)
		}
	}

	syncInterval := time.Duration(cfg.KargoBox.SettingsSyncIntervalSeconds) * time.Second
	if syncInterval <= 0 {
		syncInterval = 10 * time.Minute
	}

	return &kargoAPIApp{
		cfg:          cfg,
		api:          api,
		tariffs:      tariffSvc,
		store:        store,
		producer:     producer,
		pg:           pg,
		httpAddr:     httpAddr,
		swaggerPath:  os.Getenv("swaggerPath"),
		syncInterval: syncInterval,
	}, nil
}

func (a *kargoAPIApp) Close() {
	if a.store != nil {
		_ = a.store.Close()
	}
	if a.producer != nil {
		_ = a.producer.Close()
	}
	if a.pg != nil {
		a.pg.Close()
	}
}

func (a *kargoAPIApp) Run(ctx context.Context) error {
	go a.runSettingsSync(ctx)

	lis, err := net.Listen("tcp", a.httpAddr)
	if err != nil {
		return err
	}
	if a.onListen != nil {
		a.onListen(lis.Addr().String())
	}

	r := chi.NewRouter()

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	r.Get("/readyz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"ready"}`))
	})

	a.api.Routes(r)

	// Swagger раздаём так же, как в остальных наших сервисах:
	// no-store + cachebuster по mtime файла.
	if a.swaggerPath != "" {
		swaggerPath := a.swaggerPath
		r.Get("/swagger.json", func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Cache-Control", "no-store")
			http.ServeFile(w, r, swaggerPath)
		})
		swaggerURL := "/swagger.json"
		if fi, err := os.Stat(swaggerPath); err == nil {
			swaggerURL = fmt.Sprintf("/swagger.json?v=%d", fi.ModTime().Unix())
		}
		r.Get("/docs/*", httpSwagger.Handler(httpSwagger.URL(swaggerURL)))
	}

	srv := &http.Server{Handler: r}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		_ = lis.Close()
	}()

	slog.Info("kargo-api listening", "addr", lis.Addr().String())
	if err := srv.Serve(lis); !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return context.Canceled
}

// Тарифы подтягиваем на старте и дальше по тикеру: лист маленький,
// а кэш всё равно отсечёт лишние запросы.
func (a *kargoAPIApp) runSettingsSync(ctx context.Context) {
	if err := a.tariffs.Sync(ctx); err != nil {
		slog.Warn("settings sync", "error", err.Error())
	}

	t := time.NewTicker(a.syncInterval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			if err := a.tariffs.Sync(ctx); err != nil {
				slog.Warn("settings sync", "error", err.Error())
			}
		}
	}
}

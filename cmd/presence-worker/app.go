package main

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/ttopkargo/kargobox/config"
	"github.com/ttopkargo/kargobox/internal/broker/kafka"
	"github.com/ttopkargo/kargobox/internal/broker/messages"
	"github.com/ttopkargo/kargobox/internal/storage/pgpresence"
)

type presenceRepo interface {
	UpsertUser(ctx context.Context, telegramID int64, firstName, username string, lastActive time.Time) error
	InsertActivity(ctx context.Context, row pgpresence.ActivityRow) error
}

type kafkaConsumer interface {
	Consume(ctx context.Context, handler func(key, value []byte) error) error
	Close() error
}

type workerFactories struct {
	newStorage  func(cfg *config.Config) (presenceRepo, func(), error)
	newConsumer func(cfg *config.Config, topic string) kafkaConsumer
}

func defaultWorkerFactories() workerFactories {
	return workerFactories{
		newStorage: func(cfg *config.Config) (presenceRepo, func(), error) {
			st, err := pgpresence.New(cfg.PostgresConnString())
			if err != nil {
				return nil, nil, err
			}
			return st, st.Close, nil
		},
		newConsumer: func(cfg *config.Config, topic string) kafkaConsumer {
			group := cfg.KargoBox.KafkaConsumerGroup
			if group == "" {
				group = "presence-worker"
			}
			return kafka.NewConsumer(cfg.KafkaBrokers(), topic, group)
		},
	}
}

type workerStats struct {
	startedAtUnixNano int64
	totalProcessed    atomic.Int64
	totalDropped      atomic.Int64
}

type statsSnapshot struct {
	StartedAt      time.Time `json:"startedAt"`
	TotalProcessed int64     `json:"totalProcessed"`
	TotalDropped   int64     `json:"totalDropped"`
}

func (s *workerStats) snapshot() statsSnapshot {
	return statsSnapshot{
		StartedAt:      time.Unix(0, s.startedAtUnixNano).UTC(),
		TotalProcessed: s.totalProcessed.Load(),
		TotalDropped:   s.totalDropped.Load(),
	}
}

func RunPresenceWorker(ctx context.Context, cfg *config.Config, f workerFactories) error {
	topic := cfg.Kafka.ActivityTopicName
	if topic == "" {
		topic = "presence.activity"
	}

	repo, closeFn, err := f.newStorage(cfg)
	if err != nil {
		return err
	}
	if closeFn != nil {
		defer closeFn()
	}

	consumer := f.newConsumer(cfg, topic)
	defer func() { _ = consumer.Close() }()

	stats := &workerStats{startedAtUnixNano: time.Now().UTC().UnixNano()}

	go func() {
		if err := runWorkerHTTPServer(ctx, cfg.KargoBox.WorkerHTTPAddr, stats); err != nil && err != context.Canceled {
			slog.Error("worker http server", "error", err.Error())
		}
	}()

	slog.Info("presence worker started", "topic", topic)
	return consumer.Consume(ctx, func(_key, value []byte) error {
		// Телеметрия — канал best-effort: битое сообщение или упавшая
		// запись не должны останавливать разбор очереди, поэтому
		// хендлер всегда возвращает nil и сообщение коммитится.
		if err := applyActivity(ctx, repo, value); err != nil {
			stats.totalDropped.Add(1)
			slog.Warn("activity dropped", "error", err.Error())
			return nil
		}
		stats.totalProcessed.Add(1)
		return nil
	})
}

func applyActivity(ctx context.Context, repo presenceRepo, value []byte) error {
	var msg messages.ActivityLogged
	if err := json.Unmarshal(value, &msg); err != nil {
		return err
	}
	if msg.TelegramID == 0 {
		return errEmptyTelegramID
	}
	if msg.EventType == "" {
		msg.EventType = messages.ActivityEventLogin
	}
	if msg.OccurredAt.IsZero() {
		msg.OccurredAt = time.Now().UTC()
	}

	if err := repo.UpsertUser(ctx, msg.TelegramID, msg.FirstName, msg.Username, msg.OccurredAt); err != nil {
		return err
	}
	return repo.InsertActivity(ctx, pgpresence.ActivityRow{
		TelegramID:      msg.TelegramID,
		EventType:       msg.EventType,
		OccurredAt:      msg.OccurredAt,
		SessionDuration: msg.SessionDurationSeconds,
	})
}

var errEmptyTelegramID = errors.New("telegram_id is required")

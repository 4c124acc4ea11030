// Package tariffs merges the remote tariff sheet into the stored
// application settings.
package tariffs

import (
	"context"
	"strings"

	"github.com/pkg/errors"

	"github.com/ttopkargo/kargobox/internal/models"
	"github.com/ttopkargo/kargobox/internal/sheetcsv"
)

type SheetFetcher interface {
	FetchCSV(ctx context.Context, url string) (string, error)
}

type SettingsStore interface {
	AppSettings(ctx context.Context) (models.AppSettings, error)
	SaveAppSettings(ctx context.Context, s models.AppSettings) error
}

type Service struct {
	fetcher SheetFetcher
	store   SettingsStore
	url     string
}

func New(fetcher SheetFetcher, store SettingsStore, sheetURL string) *Service {
	return &Service{fetcher: fetcher, store: store, url: sheetURL}
}

// Sync подтягивает лист тарифов и накатывает распознанные поля поверх
// текущих настроек. Недоступный или невалидный лист оставляет
// настройки нетронутыми; частично разобранный применяет ровно то,
// что удалось разобрать.
func (s *Service) Sync(ctx context.Context) error {
	if s.url == "" {
		return nil
	}

	text, err := s.fetcher.FetchCSV(ctx, s.url)
	if err != nil {
		return nil // лист недоступен — не трогаем настройки
	}

	var rows [][]string
	for _, line := range strings.Split(text, "\n") {
		rows = append(rows, sheetcsv.SplitRow(line))
	}
	if len(rows) < 2 {
		return nil
	}

	headerIdx := findHeaderRow(rows)
	if headerIdx == -1 || headerIdx+1 >= len(rows) {
		return nil
	}

	headers := rows[headerIdx]
	values := rows[headerIdx+1]

	settings, err := s.store.AppSettings(ctx)
	if err != nil {
		settings = models.DefaultAppSettings()
	}

	updated := false
	for idx, h := range headers {
		if idx >= len(values) || values[idx] == "" {
			continue
		}
		num, ok := sheetcsv.ParseNumber(values[idx])
		if !ok {
			continue
		}
		if applyField(&settings, strings.ToLower(strings.TrimSpace(h)), num) {
			updated = true
		}
	}
	if !updated {
		return nil
	}

	if err := s.store.SaveAppSettings(ctx, settings); err != nil {
		return errors.Wrap(err, "save settings")
	}
	return nil
}

// Заголовок ищем в первых пяти строках: либо слово "kurs", либо
// совпадение "avia" и "standart" в одной строке.
func findHeaderRow(rows [][]string) int {
	limit := len(rows)
	if limit > 5 {
		limit = 5
	}
	for i := 0; i < limit; i++ {
		rowStr := strings.ToLower(strings.Join(rows[i], " "))
		if strings.Contains(rowStr, "kurs") ||
			(strings.Contains(rowStr, "avia") && strings.Contains(rowStr, "standart")) {
			return i
		}
	}
	return -1
}

func applyField(s *models.AppSettings, header string, num float64) bool {
	switch {
	case strings.Contains(header, "kurs"):
		s.ExchangeRate = num
	case strings.Contains(header, "avia") && strings.Contains(header, "standart"):
		s.Prices.Avia.Standard = num
	case strings.Contains(header, "avia") && strings.Contains(header, "bulk"):
		s.Prices.Avia.Bulk = num
	case strings.Contains(header, "avto") && strings.Contains(header, "standart"):
		s.Prices.Avto.Standard = num
	case strings.Contains(header, "avto") && strings.Contains(header, "bulk"):
		s.Prices.Avto.Bulk = num
	default:
		return false
	}
	return true
}

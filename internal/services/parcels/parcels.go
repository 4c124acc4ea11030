// Package parcels resolves a tracking ID by racing lookups across all
// shipment-batch ("reys") sheets listed in the directory sheet.
package parcels

import (
	"context"
	"strings"
	"time"

	"github.com/ttopkargo/kargobox/internal/models"
	"github.com/ttopkargo/kargobox/internal/sheetcsv"
	"github.com/ttopkargo/kargobox/internal/sheets"
)

const (
	defaultSender   = "Yuk"
	defaultReceiver = "Mijoz"

	locationAvia = "Guangzhou Aeroport"
	locationAvto = "Guangzhou Ombori"
)

type SheetFetcher interface {
	FetchCSV(ctx context.Context, url string) (string, error)
}

// SettingsProvider отдаёт актуальные тарифы для расчёта цены.
type SettingsProvider interface {
	AppSettings(ctx context.Context) (models.AppSettings, error)
}

type Service struct {
	fetcher  SheetFetcher
	settings SettingsProvider
	dirURL   string
	now      func() time.Time
}

func New(fetcher SheetFetcher, settings SettingsProvider, directoryURL string) *Service {
	return &Service{
		fetcher:  fetcher,
		settings: settings,
		dirURL:   directoryURL,
		now:      time.Now,
	}
}

func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

type source struct {
	name string
	url  string
}

// Find races one lookup per directory source and returns the first
// parsed record. (nil, nil) means "not found": an unreachable
// directory, an empty ID and an all-miss race all land there — absence
// is a normal answer for this call.
func (s *Service) Find(ctx context.Context, id string) (*models.Parcel, error) {
	cleanID := NormalizeID(id)
	if cleanID == "" {
		return nil, nil
	}
	if s.dirURL == "" {
		return nil, nil
	}

	dirText, err := s.fetcher.FetchCSV(ctx, s.dirURL)
	if err != nil {
		return nil, nil
	}

	var tasks []source
	for _, row := range strings.Split(dirText, "\n") {
		cols := sheetcsv.SplitRow(row)
		if len(cols) >= 2 && strings.Contains(cols[1], "http") {
			tasks = append(tasks, source{
				name: cols[0],
				url:  sheets.CSVExportURL(cols[1]),
			})
		}
	}
	if len(tasks) == 0 {
		return nil, nil
	}

	rate, err := s.settings.AppSettings(ctx)
	if err != nil {
		rate = models.DefaultAppSettings()
	}

	// Гонка: первый успешный результат выигрывает. Буфер на все задачи —
	// проигравшие горутины дописывают в канал и завершаются, общих данных
	// не трогают. Отмены нет: их результат просто никто не читает.
	results := make(chan *models.Parcel, len(tasks))
	for _, t := range tasks {
		t := t
		go func() {
			results <- s.searchOne(ctx, t, cleanID, rate)
		}()
	}

	for range tasks {
		if p := <-results; p != nil {
			return p, nil
		}
	}
	// Все источники промахнулись — только теперь "не найдено".
	return nil, nil
}

// searchOne возвращает nil при любом сбое источника: недоступен,
// HTML вместо CSV, либо ID в тексте не встречается.
func (s *Service) searchOne(ctx context.Context, src source, cleanID string, settings models.AppSettings) *models.Parcel {
	text, err := s.fetcher.FetchCSV(ctx, src.url)
	if err != nil {
		return nil
	}
	// Дешёвый префильтр до построчного разбора.
	if !strings.Contains(text, cleanID) {
		return nil
	}

	for _, line := range strings.Split(text, "\n") {
		if !strings.Contains(line, cleanID) {
			continue
		}
		if p := s.parseReysRow(line, src.name, cleanID, settings); p != nil {
			return p
		}
	}
	return nil
}

func (s *Service) parseReysRow(row, reysName, searchID string, settings models.AppSettings) *models.Parcel {
	cols := sheetcsv.SplitRow(row)
	if len(cols) < 3 {
		return nil
	}
	if cols[2] == "" || !strings.Contains(strings.ToUpper(cols[2]), searchID) {
		return nil
	}

	date := ""
	if len(cols) > 1 {
		date = cols[1]
	}
	if date == "" {
		date = s.now().Format("02.01.2006")
	}

	var weight float64
	if len(cols) > 6 {
		if w, ok := sheetcsv.ParseNumber(cols[6]); ok {
			weight = w
		}
	}

	isAvia := strings.Contains(strings.ToLower(reysName), "avia")
	rate := settings.Prices.Avto.Standard
	location := locationAvto
	if isAvia {
		rate = settings.Prices.Avia.Standard
		location = locationAvia
	}

	sender := defaultSender
	if len(cols) > 3 && cols[3] != "" {
		sender = cols[3]
	}
	receiver := defaultReceiver
	if len(cols) > 7 && cols[7] != "" {
		receiver = cols[7]
	}

	return &models.Parcel{
		ID:       cols[2],
		Sender:   sender,
		Receiver: receiver,
		Weight:   sheetcsv.FormatWeight(weight),
		BoxCode:  reysName,
		Price:    weight * rate,
		History: []models.TrackingEvent{
			{
				Date:      date,
				Time:      "12:00",
				Status:    "Yo'lga chiqdi (" + reysName + ")",
				Location:  location,
				Completed: false,
			},
		},
	}
}

// NormalizeID приводит трек-номер к канонической форме:
// верхний регистр, без пробельных символов.
func NormalizeID(id string) string {
	return strings.Join(strings.Fields(strings.ToUpper(id)), "")
}

// Package clients verifies (clientId, phone) pairs against the master
// client sheet and exports the cleaned client list for the admin view.
package clients

import (
	"context"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/ttopkargo/kargobox/internal/apperror"
	"github.com/ttopkargo/kargobox/internal/models"
	"github.com/ttopkargo/kargobox/internal/sheetcsv"
)

const defaultName = "Mijoz"

// Префиксы клиентских ID, признаваемые админским списком.
var clientIDRe = regexp.MustCompile(`(?i)^(TT|TOP|JK|JEK)`)

type SheetFetcher interface {
	Fetch(ctx context.Context, url string) (string, error)
}

type Service struct {
	fetcher SheetFetcher
	url     string
	now     func() time.Time
}

func New(fetcher SheetFetcher, clientsURL string) *Service {
	return &Service{fetcher: fetcher, url: clientsURL, now: time.Now}
}

func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// Verify ищет строку, где какая-то колонка равна нормализованному ID,
// а другая по цифрам оканчивается на последние 9 цифр телефона.
// Регистрация — действие пользователя, поэтому здесь ошибки не
// глотаются, а различаются: не настроено / сеть / доступ / не найдено.
func (s *Service) Verify(ctx context.Context, clientID, phone string) (*models.UserProfile, error) {
	cleanID := NormalizeClientID(clientID)
	cleanPhone := NormalizePhone(phone)

	if s.url == "" {
		return nil, apperror.ErrNotConfigured
	}

	text, err := s.fetcher.Fetch(ctx, s.url)
	if err != nil {
		return nil, errors.Wrap(apperror.ErrNetworkUnavailable, "clients sheet")
	}
	trimmed := strings.TrimSpace(text)
	if strings.HasPrefix(trimmed, "<") || strings.Contains(trimmed, "<!DOCTYPE") {
		return nil, apperror.ErrSourceDenied
	}

	for _, row := range strings.Split(text, "\n") {
		cols := sheetcsv.SplitRow(row)

		idMatch := false
		for _, c := range cols {
			if strings.ReplaceAll(strings.ToUpper(c), " ", "") == cleanID {
				idMatch = true
				break
			}
		}
		if !idMatch {
			continue
		}

		phoneMatch := false
		for _, c := range cols {
			if strings.HasSuffix(sheetcsv.Digits(c), cleanPhone) {
				phoneMatch = true
				break
			}
		}
		if !phoneMatch {
			continue
		}

		name := defaultName
		for _, c := range cols {
			if len(c) > 2 && !strings.Contains(c, cleanPhone) && strings.ToUpper(c) != cleanID {
				name = c
				break
			}
		}

		return &models.UserProfile{
			Name:         name,
			ClientID:     cleanID,
			Phone:        "+998 " + cleanPhone,
			RegisteredAt: s.now().UTC(),
		}, nil
	}

	return nil, apperror.ErrNotFound
}

// ListAll is the best-effort dashboard export: column roles are guessed
// per row, any failure yields an empty list. The heuristics here are
// intentionally not the same as Verify's — the two paths grew apart in
// production and unifying them would change which rows count as
// clients.
func (s *Service) ListAll(ctx context.Context) []models.ClientActivity {
	if s.url == "" {
		return []models.ClientActivity{}
	}

	text, err := s.fetcher.Fetch(ctx, s.url)
	if err != nil {
		return []models.ClientActivity{}
	}
	trimmed := strings.TrimSpace(text)
	if strings.HasPrefix(trimmed, "<") || strings.Contains(trimmed, "<!DOCTYPE") {
		return []models.ClientActivity{}
	}

	rows := strings.Split(text, "\n")
	results := make([]models.ClientActivity, 0, len(rows))

	// Первая строка — заголовок.
	for i := 1; i < len(rows); i++ {
		cols := sheetcsv.SplitRow(rows[i])
		if len(cols) < 2 {
			continue
		}

		clientIDIdx := -1
		for idx, c := range cols {
			if clientIDRe.MatchString(strings.TrimSpace(c)) {
				clientIDIdx = idx
				break
			}
		}
		phoneIdx := -1
		for idx, c := range cols {
			if d := sheetcsv.Digits(c); len(d) >= 7 && len(d) <= 15 {
				phoneIdx = idx
				break
			}
		}

		clientID := ""
		switch {
		case clientIDIdx != -1:
			clientID = cols[clientIDIdx]
		case phoneIdx == 0:
			clientID = cols[1]
		default:
			clientID = cols[0]
		}
		if clientID == "" {
			continue
		}

		phoneVal := ""
		if phoneIdx != -1 {
			phoneVal = cols[phoneIdx]
		}

		name := defaultName
		for idx, c := range cols {
			if idx != clientIDIdx && idx != phoneIdx && len(c) > 2 {
				name = c
				break
			}
		}

		results = append(results, models.ClientActivity{
			ID:       strconv.Itoa(i),
			ClientID: clientID,
			Name:     name,
			Phone:    formatListPhone(phoneVal),
		})
	}
	return results
}

func formatListPhone(phone string) string {
	if phone == "" {
		return ""
	}
	if strings.HasPrefix(phone, "+") {
		return phone
	}
	d := sheetcsv.Digits(phone)
	if len(d) > 9 {
		d = d[len(d)-9:]
	}
	return "+998 " + d
}

// NormalizeClientID: trim, верхний регистр, без пробелов.
func NormalizeClientID(id string) string {
	return strings.ReplaceAll(strings.ToUpper(strings.TrimSpace(id)), " ", "")
}

// NormalizePhone: только цифры, последние 9 (формат Узбекистана без кода).
func NormalizePhone(phone string) string {
	d := sheetcsv.Digits(phone)
	if len(d) > 9 {
		d = d[len(d)-9:]
	}
	return d
}

// Package arrivals resolves the arrived-shipments sheet into sets of
// batch ("reys") numbers, per delivery mode.
package arrivals

import (
	"context"
	"strings"

	"github.com/ttopkargo/kargobox/internal/models"
	"github.com/ttopkargo/kargobox/internal/sheetcsv"
)

type SheetFetcher interface {
	FetchCSV(ctx context.Context, url string) (string, error)
}

type Service struct {
	fetcher SheetFetcher
	url     string
}

func New(fetcher SheetFetcher, sheetURL string) *Service {
	return &Service{fetcher: fetcher, url: sheetURL}
}

// Resolve rebuilds the arrived set from the 2-column sheet: column 0
// feeds Avia, column 1 feeds Avto. Cells still containing the literal
// mode word are header rows and are skipped. Any failure yields an
// empty set — an arrival check must never break the caller.
func (s *Service) Resolve(ctx context.Context) models.ArrivedSet {
	set := models.NewArrivedSet()

	text, err := s.fetcher.FetchCSV(ctx, s.url)
	if err != nil {
		return set
	}

	for _, line := range strings.Split(text, "\n") {
		cols := sheetcsv.SplitRow(line)
		if len(cols) > 0 {
			addNumber(set.Avia, cols[0], "avia")
		}
		if len(cols) > 1 {
			addNumber(set.Avto, cols[1], "avto")
		}
	}
	return set
}

func addNumber(dst map[string]struct{}, cell, headerWord string) {
	val := strings.TrimSpace(cell)
	if val == "" {
		return
	}
	// Заголовок — фраза со словом режима ("AVIA reyslar"); код рейса —
	// один токен ("AVIA120"), его пропускать нельзя.
	if strings.Contains(strings.ToLower(val), headerWord) && strings.Contains(val, " ") {
		return
	}
	if num := sheetcsv.FirstDigitRun(val); num != "" {
		dst[num] = struct{}{}
	}
}

// IsArrived reports whether the batch code's number is in the set for
// its mode. Mode is inferred from the code itself: "avia" anywhere in
// the lowercase code means air, everything else is ground.
func IsArrived(boxCode string, set models.ArrivedSet) bool {
	num := sheetcsv.FirstDigitRun(boxCode)
	if num == "" {
		return false
	}
	if strings.Contains(strings.ToLower(boxCode), "avia") {
		_, ok := set.Avia[num]
		return ok
	}
	_, ok := set.Avto[num]
	return ok
}

// Package sheets retrieves published-spreadsheet CSV exports through a
// TTL cache. The sheets are the system's only upstream: a handful of
// Google Sheets published as CSV, updated by the cargo operators.
package sheets

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/pkg/errors"
	"golang.org/x/sync/singleflight"

	"github.com/ttopkargo/kargobox/internal/apperror"
	"github.com/ttopkargo/kargobox/internal/cache"
)

// DefaultTTL — окно свежести тела листа.
const DefaultTTL = 5 * time.Minute

var docIDRe = regexp.MustCompile(`/d/([a-zA-Z0-9-_]+)`)

type Fetcher struct {
	cache cache.BytesCache
	ttl   time.Duration
	httpc *http.Client
	sf    singleflight.Group
	now   func() time.Time
}

func New(c cache.BytesCache, ttl time.Duration) *Fetcher {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Fetcher{
		cache: c,
		ttl:   ttl,
		httpc: &http.Client{
			Timeout: 10 * time.Second,
		},
		now: time.Now,
	}
}

// WithHTTPClient и WithClock нужны тестам.
func (f *Fetcher) WithHTTPClient(httpc *http.Client) *Fetcher {
	f.httpc = httpc
	return f
}

func (f *Fetcher) WithClock(now func() time.Time) *Fetcher {
	f.now = now
	return f
}

// CSVExportURL normalizes a Google Sheets share link to its CSV export
// form. URLs already in export shape, and unrecognized URLs, pass
// through unchanged.
func CSVExportURL(rawURL string) string {
	if strings.Contains(rawURL, "output=csv") || strings.Contains(rawURL, "format=csv") {
		return rawURL
	}
	if m := docIDRe.FindStringSubmatch(rawURL); m != nil {
		return fmt.Sprintf("https://docs.google.com/spreadsheets/d/%s/export?format=csv", m[1])
	}
	return rawURL
}

// IsHTMLBody detects the "service returned a login/error page" case:
// the body is HTML, not data. Callers must treat it as source
// unavailable, never as zero rows.
func IsHTMLBody(text string) bool {
	trimmed := strings.TrimSpace(text)
	return strings.HasPrefix(trimmed, "<") || strings.Contains(trimmed, "<!DOCTYPE")
}

// Fetch returns the body of the sheet at rawURL, serving from cache
// within the TTL. On a miss it performs one network GET (concurrent
// misses for the same key are collapsed) and stores the body only on
// success, so a failed refetch never clobbers an existing entry.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) (string, error) {
	if rawURL == "" {
		return "", apperror.ErrNotConfigured
	}
	key := CSVExportURL(rawURL)

	if b, ok, err := f.cache.Get(ctx, key); err == nil && ok {
		return string(b), nil
	}

	v, err, _ := f.sf.Do(key, func() (any, error) {
		// Повторная проверка: пока ждали очередь, кто-то мог уже положить.
		if b, ok, err := f.cache.Get(ctx, key); err == nil && ok {
			return string(b), nil
		}
		body, err := f.fetchRemote(ctx, key)
		if err != nil {
			return "", err
		}
		if err := f.cache.Set(ctx, key, []byte(body), f.ttl); err != nil {
			return body, nil // кэш не обязателен
		}
		return body, nil
	})
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

// FetchCSV is Fetch plus the HTML-page check.
func (f *Fetcher) FetchCSV(ctx context.Context, rawURL string) (string, error) {
	body, err := f.Fetch(ctx, rawURL)
	if err != nil {
		return "", err
	}
	if IsHTMLBody(body) {
		return "", apperror.ErrSourceDenied
	}
	return body, nil
}

func (f *Fetcher) fetchRemote(ctx context.Context, key string) (string, error) {
	// Cache-buster только в сетевом URL, ключ кэша он не меняет:
	// промежуточные HTTP-кэши не должны отдавать протухшее тело.
	sep := "?"
	if strings.Contains(key, "?") {
		sep = "&"
	}
	fetchURL := fmt.Sprintf("%s%st=%d", key, sep, f.now().UnixMilli())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fetchURL, nil)
	if err != nil {
		return "", errors.Wrap(apperror.ErrNetworkUnavailable, err.Error())
	}

	resp, err := f.httpc.Do(req)
	if err != nil {
		return "", errors.Wrap(apperror.ErrNetworkUnavailable, err.Error())
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		return "", errors.Wrapf(apperror.ErrNetworkUnavailable, "sheet http %d", resp.StatusCode)
	}

	b, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", errors.Wrap(apperror.ErrNetworkUnavailable, err.Error())
	}
	return string(b), nil
}

package sheets

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/ttopkargo/kargobox/internal/apperror"
	"github.com/ttopkargo/kargobox/internal/cache/memcache"
)

func TestCSVExportURL(t *testing.T) {
	// Ссылка "поделиться" превращается в export-URL по ID документа.
	require.Equal(t,
		"https://docs.google.com/spreadsheets/d/abc_123-X/export?format=csv",
		CSVExportURL("https://docs.google.com/spreadsheets/d/abc_123-X/edit#gid=0"))

	// Уже export-форма — без изменений.
	u := "https://docs.google.com/spreadsheets/d/e/KEY/pub?output=csv"
	require.Equal(t, u, CSVExportURL(u))
	u = "https://docs.google.com/spreadsheets/d/abc/export?format=csv"
	require.Equal(t, u, CSVExportURL(u))

	// Неизвестный URL не трогаем.
	require.Equal(t, "https://example.com/data.csv", CSVExportURL("https://example.com/data.csv"))
}

func TestIsHTMLBody(t *testing.T) {
	require.True(t, IsHTMLBody("<html><body>Sorry</body></html>"))
	require.True(t, IsHTMLBody("  \n<!DOCTYPE html><html></html>"))
	require.False(t, IsHTMLBody("id,phone\nTT045,901234567"))
	require.False(t, IsHTMLBody(""))
}

func TestFetcher_EmptyURL(t *testing.T) {
	f := New(memcache.New(), time.Minute)
	_, err := f.Fetch(context.Background(), "")
	require.ErrorIs(t, err, apperror.ErrNotConfigured)
}

func TestFetcher_CachesWithinTTL(t *testing.T) {
	var hits atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		_, _ = w.Write([]byte("a,b,c"))
	}))
	defer srv.Close()

	now := time.Unix(1000, 0)
	clock := func() time.Time { return now }
	f := New(memcache.NewWithClock(clock), 5*time.Minute).WithClock(clock)

	ctx := context.Background()
	body, err := f.Fetch(ctx, srv.URL)
	require.NoError(t, err)
	require.Equal(t, "a,b,c", body)

	body, err = f.Fetch(ctx, srv.URL)
	require.NoError(t, err)
	require.Equal(t, "a,b,c", body)
	require.Equal(t, int64(1), hits.Load())

	// TTL истёк — ровно один повторный сетевой запрос.
	now = now.Add(5 * time.Minute)
	_, err = f.Fetch(ctx, srv.URL)
	require.NoError(t, err)
	require.Equal(t, int64(2), hits.Load())
}

func TestFetcher_CacheBusterOnNetworkOnly(t *testing.T) {
	var gotQuery string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.RawQuery
		_, _ = w.Write([]byte("data"))
	}))
	defer srv.Close()

	now := time.UnixMilli(1700000000000)
	clock := func() time.Time { return now }
	mc := memcache.NewWithClock(clock)
	f := New(mc, time.Minute).WithClock(clock)

	_, err := f.Fetch(context.Background(), srv.URL)
	require.NoError(t, err)
	require.Equal(t, "t=1700000000000", gotQuery)

	// Ключ кэша — URL без cache-buster'а.
	_, ok, err := mc.Get(context.Background(), srv.URL)
	require.NoError(t, err)
	require.True(t, ok)
}

func TestFetcher_HTTPErrorIsNetworkUnavailable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	f := New(memcache.New(), time.Minute)
	_, err := f.Fetch(context.Background(), srv.URL)
	require.ErrorIs(t, err, apperror.ErrNetworkUnavailable)
}

// Неудачный рефетч не пишет в кэш: Set зовётся только на успехе.
func TestFetcher_FailedFetchDoesNotTouchCache(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	rec := &recordingCache{}
	f := New(rec, time.Minute)

	_, err := f.Fetch(context.Background(), srv.URL)
	require.ErrorIs(t, err, apperror.ErrNetworkUnavailable)
	require.Zero(t, rec.sets)
}

func TestFetchCSV_HTMLBodyIsSourceDenied(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("<html>Access denied</html>"))
	}))
	defer srv.Close()

	f := New(memcache.New(), time.Minute)
	_, err := f.FetchCSV(context.Background(), srv.URL)
	require.ErrorIs(t, err, apperror.ErrSourceDenied)
}

func TestFetcher_ConcurrentMissesCollapse(t *testing.T) {
	var hits atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		time.Sleep(100 * time.Millisecond)
		_, _ = w.Write([]byte("slow body"))
	}))
	defer srv.Close()

	f := New(memcache.New(), time.Minute)

	const n = 5
	bodies := make([]string, n)
	errs := make([]error, n)

	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			bodies[i], errs[i] = f.Fetch(context.Background(), srv.URL)
		}(i)
	}
	wg.Wait()

	for i := 0; i < n; i++ {
		require.NoError(t, errs[i])
		require.Equal(t, "slow body", bodies[i])
	}
	require.Equal(t, int64(1), hits.Load())
}

type recordingCache struct {
	sets int
}

func (c *recordingCache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	return nil, false, nil
}
func (c *recordingCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	c.sets++
	return nil
}
func (c *recordingCache) Clear(ctx context.Context) error { return nil }

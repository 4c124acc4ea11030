package tariffs

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ttopkargo/kargobox/internal/apperror"
	"github.com/ttopkargo/kargobox/internal/models"
)

type fakeFetcher struct {
	text string
	err  error
}

func (f *fakeFetcher) FetchCSV(ctx context.Context, url string) (string, error) {
	return f.text, f.err
}

type fakeStore struct {
	settings models.AppSettings
	getErr   error

	saved  *models.AppSettings
	svErr  error
}

func (f *fakeStore) AppSettings(ctx context.Context) (models.AppSettings, error) {
	return f.settings, f.getErr
}

func (f *fakeStore) SaveAppSettings(ctx context.Context, s models.AppSettings) error {
	f.saved = &s
	return f.svErr
}

func TestSync_AllFields(t *testing.T) {
	sheet := "Kurs,Avia Standart,Avia Bulk,Avto Standart,Avto Bulk\n" +
		"12 500 so'm,10,11.5,\"6,5\",8\n"
	store := &fakeStore{settings: models.DefaultAppSettings()}
	s := New(&fakeFetcher{text: sheet}, store, "http://settings")

	require.NoError(t, s.Sync(context.Background()))
	require.NotNil(t, store.saved)

	require.InDelta(t, 12500, store.saved.ExchangeRate, 1e-9)
	require.InDelta(t, 10, store.saved.Prices.Avia.Standard, 1e-9)
	require.InDelta(t, 11.5, store.saved.Prices.Avia.Bulk, 1e-9)
	require.InDelta(t, 6.5, store.saved.Prices.Avto.Standard, 1e-9)
	require.InDelta(t, 8, store.saved.Prices.Avto.Bulk, 1e-9)
}

func TestSync_PartialMerge(t *testing.T) {
	// В листе только курс — тарифы остаются прежними.
	sheet := "Joriy holat\nKurs\n13000\n"
	store := &fakeStore{settings: models.DefaultAppSettings()}
	s := New(&fakeFetcher{text: sheet}, store, "http://settings")

	require.NoError(t, s.Sync(context.Background()))
	require.NotNil(t, store.saved)

	require.InDelta(t, 13000, store.saved.ExchangeRate, 1e-9)
	require.InDelta(t, 9.5, store.saved.Prices.Avia.Standard, 1e-9)
	require.InDelta(t, 6.0, store.saved.Prices.Avto.Standard, 1e-9)
}

func TestSync_UnavailableSheetKeepsSettings(t *testing.T) {
	store := &fakeStore{settings: models.DefaultAppSettings()}
	s := New(&fakeFetcher{err: apperror.ErrNetworkUnavailable}, store, "http://settings")

	require.NoError(t, s.Sync(context.Background()))
	require.Nil(t, store.saved)
}

func TestSync_NoHeaderRowNoSave(t *testing.T) {
	store := &fakeStore{settings: models.DefaultAppSettings()}
	s := New(&fakeFetcher{text: "hello\nworld\nfoo\nbar\nbaz\nKurs\n13000\n"}, store, "http://settings")

	// Заголовок ищется только в первых пяти строках.
	require.NoError(t, s.Sync(context.Background()))
	require.Nil(t, store.saved)
}

func TestSync_EmptyURLIsNoop(t *testing.T) {
	store := &fakeStore{}
	s := New(&fakeFetcher{text: "Kurs\n13000\n"}, store, "")

	require.NoError(t, s.Sync(context.Background()))
	require.Nil(t, store.saved)
}

func TestSync_NonNumericValuesIgnored(t *testing.T) {
	store := &fakeStore{settings: models.DefaultAppSettings()}
	s := New(&fakeFetcher{text: "Kurs,Avia Standart\nyo'q,n/a\n"}, store, "http://settings")

	require.NoError(t, s.Sync(context.Background()))
	require.Nil(t, store.saved)
}

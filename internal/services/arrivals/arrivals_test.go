package arrivals

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

func TestResolve(t *testing.T) {
	sheet := "AVIA reyslar,AVTO reyslar\n" +
		"AVIA120,AVTO15\n" +
		"0231,16\n" +
		",17\n"

	s := New(&fakeFetcher{text: sheet}, "http://sheet")
	set := s.Resolve(context.Background())

	require.Equal(t, map[string]struct{}{"120": {}, "0231": {}}, set.Avia)
	require.Equal(t, map[string]struct{}{"15": {}, "16": {}, "17": {}}, set.Avto)
}

func TestResolve_HeaderPhraseSkipped(t *testing.T) {
	// Фраза со словом режима — заголовок; одиночный токен с тем же
	// словом — код рейса.
	sheet := "avia 12 reyslar,avto 7 holati\nAVIA-88,AVTO9\n"

	s := New(&fakeFetcher{text: sheet}, "http://sheet")
	set := s.Resolve(context.Background())

	require.Equal(t, map[string]struct{}{"88": {}}, set.Avia)
	require.Equal(t, map[string]struct{}{"9": {}}, set.Avto)
}

func TestResolve_FetchFailureIsEmptySet(t *testing.T) {
	s := New(&fakeFetcher{err: apperror.ErrNetworkUnavailable}, "http://sheet")
	set := s.Resolve(context.Background())
	require.Empty(t, set.Avia)
	require.Empty(t, set.Avto)
}

func TestIsArrived(t *testing.T) {
	set := models.NewArrivedSet()
	set.Avia["120"] = struct{}{}
	set.Avto["16"] = struct{}{}

	require.True(t, IsArrived("AVIA-120", set))
	require.True(t, IsArrived("avia120", set))
	require.True(t, IsArrived("AVTO16", set))
	require.True(t, IsArrived("16", set)) // без "avia" — авто
	require.False(t, IsArrived("120", set))
	require.False(t, IsArrived("AVIA-16", set))
	require.False(t, IsArrived("reys", set))
}

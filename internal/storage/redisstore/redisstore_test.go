package redisstore

import (
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/require"

	"github.com/ttopkargo/kargobox/internal/models"
)

func newTestStore(t *testing.T) *Store {
	mr := miniredis.RunT(t)
	return New(mr.Addr()).WithClock(func() time.Time {
		return time.Date(2025, 2, 5, 12, 0, 0, 0, time.UTC)
	})
}

func TestProfile_Roundtrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	p, err := s.UserProfile(ctx, "dev1")
	require.NoError(t, err)
	require.Nil(t, p)

	want := models.UserProfile{
		Name:         "Aziz Karimov",
		ClientID:     "TT045",
		Phone:        "+998 901234567",
		RegisteredAt: time.Date(2025, 2, 5, 12, 0, 0, 0, time.UTC),
	}
	require.NoError(t, s.SaveUserProfile(ctx, "dev1", want))

	p, err = s.UserProfile(ctx, "dev1")
	require.NoError(t, err)
	require.NotNil(t, p)
	require.Equal(t, want, *p)

	require.NoError(t, s.Logout(ctx, "dev1"))
	p, err = s.UserProfile(ctx, "dev1")
	require.NoError(t, err)
	require.Nil(t, p)
}

func TestTracks_IdempotentPrepend(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.SaveUserTrack(ctx, "dev1", "tt1001"))
	require.NoError(t, s.SaveUserTrack(ctx, "dev1", "TT2002"))
	// Повтор с другим регистром — дубликат не появляется.
	require.NoError(t, s.SaveUserTrack(ctx, "dev1", " tt 1001 "))

	tracks, err := s.UserTracks(ctx, "dev1")
	require.NoError(t, err)
	require.Len(t, tracks, 2)
	// Свежие сверху.
	require.Equal(t, "TT2002", tracks[0].ID)
	require.Equal(t, "TT1001", tracks[1].ID)
}

func TestTracks_Remove(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.SaveUserTrack(ctx, "dev1", "TT1001"))
	require.NoError(t, s.SaveUserTrack(ctx, "dev1", "TT2002"))
	require.NoError(t, s.RemoveUserTrack(ctx, "dev1", "tt1001"))

	tracks, err := s.UserTracks(ctx, "dev1")
	require.NoError(t, err)
	require.Len(t, tracks, 1)
	require.Equal(t, "TT2002", tracks[0].ID)
}

func TestTracks_ScopedByProfileClientID(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	// Без профиля список привязан к устройству.
	require.NoError(t, s.SaveUserTrack(ctx, "dev1", "TT1001"))

	// После логина — к clientId, и это другой список.
	require.NoError(t, s.SaveUserProfile(ctx, "dev1", models.UserProfile{ClientID: "TT045"}))
	tracks, err := s.UserTracks(ctx, "dev1")
	require.NoError(t, err)
	require.Empty(t, tracks)

	require.NoError(t, s.SaveUserTrack(ctx, "dev1", "TT2002"))

	// Второе устройство под тем же профилем видит тот же список.
	require.NoError(t, s.SaveUserProfile(ctx, "dev2", models.UserProfile{ClientID: "TT045"}))
	tracks, err = s.UserTracks(ctx, "dev2")
	require.NoError(t, err)
	require.Len(t, tracks, 1)
	require.Equal(t, "TT2002", tracks[0].ID)

	// После logout устройство возвращается к своему device-списку.
	require.NoError(t, s.Logout(ctx, "dev1"))
	tracks, err = s.UserTracks(ctx, "dev1")
	require.NoError(t, err)
	require.Len(t, tracks, 1)
	require.Equal(t, "TT1001", tracks[0].ID)
}

func TestSettings_DefaultsWhenAbsent(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	st, err := s.AppSettings(ctx)
	require.NoError(t, err)
	require.Equal(t, models.DefaultAppSettings(), st)
	require.InDelta(t, 12200, st.ExchangeRate, 1e-9)
	require.InDelta(t, 9.5, st.Prices.Avia.Standard, 1e-9)
	require.InDelta(t, 7.5, st.Prices.Avto.Bulk, 1e-9)
}

func TestSettings_Roundtrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	want := models.DefaultAppSettings()
	want.ExchangeRate = 13000
	require.NoError(t, s.SaveAppSettings(ctx, want))

	st, err := s.AppSettings(ctx)
	require.NoError(t, err)
	require.Equal(t, want, st)
}

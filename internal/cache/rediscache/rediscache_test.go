package rediscache

import (
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/require"
)

func TestRedisCache_GetSet(t *testing.T) {
	mr := miniredis.RunT(t)
	c := New(mr.Addr())

	ctx := context.Background()
	require.NoError(t, c.Set(ctx, "sheet-url", []byte("a,b,c"), time.Minute))

	b, ok, err := c.Get(ctx, "sheet-url")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, []byte("a,b,c"), b)

	_, ok, err = c.Get(ctx, "absent")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestRedisCache_TTLExpiry(t *testing.T) {
	mr := miniredis.RunT(t)
	c := New(mr.Addr())

	ctx := context.Background()
	require.NoError(t, c.Set(ctx, "k", []byte("v"), time.Minute))

	mr.FastForward(2 * time.Minute)

	_, ok, err := c.Get(ctx, "k")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestRedisCache_ClearOnlyPrefixed(t *testing.T) {
	mr := miniredis.RunT(t)
	c := New(mr.Addr())

	ctx := context.Background()
	require.NoError(t, c.Set(ctx, "k1", []byte("v1"), time.Minute))
	require.NoError(t, c.Set(ctx, "k2", []byte("v2"), time.Minute))
	// Чужой ключ вне префикса кэша.
	require.NoError(t, mr.Set("ttop_kargo:settings", "{}"))

	require.NoError(t, c.Clear(ctx))

	_, ok, _ := c.Get(ctx, "k1")
	require.False(t, ok)
	_, ok, _ = c.Get(ctx, "k2")
	require.False(t, ok)
	require.True(t, mr.Exists("ttop_kargo:settings"))
}

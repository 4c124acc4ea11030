package cache

import (
	"context"
	"time"
)

// BytesCache — общий контракт кэша сырых тел листов.
// Get: (nil, false, nil) — промах; ошибка — только проблема самого кэша.
type BytesCache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Clear(ctx context.Context) error
}

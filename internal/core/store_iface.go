package core

import (
	"context"
	"time"
)

// SessionStore is the shared keyed store holding room state.
// Atomicity is per key or hash field only; there are no cross-key transactions.
type SessionStore interface {
	Set(ctx context.Context, key, value string, ttl time.Duration) error
	// Get reports ok=false when the key is absent or expired.
	Get(ctx context.Context, key string) (string, bool, error)
	// Incr atomically increments key, treating an absent key as 0.
	Incr(ctx context.Context, key string) (int64, error)
	HSet(ctx context.Context, key, field, value string) error
	HGet(ctx context.Context, key, field string) (string, bool, error)
	HGetAll(ctx context.Context, key string) (map[string]string, error)
	// Expire refreshes the TTL of every key in one round trip without touching values.
	Expire(ctx context.Context, ttl time.Duration, keys ...string) error
}

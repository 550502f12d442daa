package cache

import (
	"context"
	"encoding/json"
	"time"
)

// TierPolicy selects which tiers a write touches.
type TierPolicy string

const (
	// TierBoth writes to the ephemeral and durable tiers. Default.
	TierBoth TierPolicy = "both"

	// TierMemory writes only to the ephemeral tier. Used for data that
	// changes too fast to be worth persisting (e.g., trending lists).
	TierMemory TierPolicy = "memory"

	// TierDurable writes only to the durable tier.
	TierDurable TierPolicy = "durable"
)

// FetchFunc performs the actual request when the cache cannot serve it.
// The cache does not know what the request does; it only caches the payload.
type FetchFunc func(ctx context.Context) (json.RawMessage, error)

// Options controls a single FetchWithCache call.
type Options struct {
	// TTL is the freshness lifetime for a newly fetched payload.
	// Zero falls back to the cache's default TTL.
	TTL time.Duration

	// ForceRefresh skips the cache lookup (the result is still stored).
	ForceRefresh bool

	// Tiers selects which tiers the result is written to. Empty means both.
	Tiers TierPolicy
}

// Result is the envelope returned by FetchWithCache.
type Result struct {
	// Data is the payload, either fresh from the fetch or from a tier.
	Data json.RawMessage

	// Cached is true when Data came from a cache tier rather than the fetch.
	Cached bool

	// Stale is true when Data is past its expiration and was returned only
	// because the live fetch failed.
	Stale bool
}

// Entry is a cached payload with its freshness stamps.
type Entry struct {
	Key       string
	Data      json.RawMessage
	CachedAt  time.Time
	ExpiresAt time.Time
}

// Fresh reports whether the entry is within its TTL at the given time.
func (e *Entry) Fresh(now time.Time) bool {
	return now.Before(e.ExpiresAt) || now.Equal(e.ExpiresAt)
}

// envelope is the durable-tier value shape. Timestamps are Unix milliseconds;
// the shape is a compatibility contract shared with the dashboard's local
// store.
type envelope struct {
	Data      json.RawMessage `json:"data"`
	CachedAt  int64           `json:"cachedAt"`
	ExpiresAt int64           `json:"expiresAt"`
}

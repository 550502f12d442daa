package storage

import (
	"context"
	"time"
)

// Entry is a single durable key/value record.
//
// Keys follow the governance namespace contract: cache entries are stored
// under "api_{service}_{endpoint}_{sortedParams}" and monthly usage counters
// under "api_usage_{service}_{YYYY-MM}". The value is an opaque blob; for
// cache entries it is the JSON envelope {data, cachedAt, expiresAt}, for
// usage counters a decimal integer string.
type Entry struct {
	// Key is the namespaced key.
	Key string

	// Value is the opaque payload.
	Value []byte

	// ExpiresAt is when the entry stops being fresh. The zero time means the
	// entry never expires (usage counters). Expired entries remain readable
	// until purged: the cache's stale-fallback policy depends on that.
	ExpiresAt time.Time

	// UpdatedAt is when the entry was last written.
	UpdatedAt time.Time
}

// Expired reports whether the entry is past its expiration at the given time.
// Entries without an expiration never expire.
func (e *Entry) Expired(now time.Time) bool {
	return !e.ExpiresAt.IsZero() && now.After(e.ExpiresAt)
}

// Store is the durable key/value store behind the cache's durable tier and
// the usage counters. Implementations must be safe for concurrent use.
type Store interface {
	// Get retrieves the entry for a key. Returns (nil, nil) when the key is
	// absent. Expired entries are returned as-is; expiry policy belongs to
	// the caller.
	Get(ctx context.Context, key string) (*Entry, error)

	// Set writes an entry, overwriting any previous value for its key.
	Set(ctx context.Context, entry *Entry) error

	// Delete removes the entry for a key. No-op when absent.
	Delete(ctx context.Context, key string) error

	// Keys returns all keys with the given prefix, in unspecified order.
	Keys(ctx context.Context, prefix string) ([]string, error)

	// PurgeExpired removes all entries whose expiration precedes now.
	// Entries without an expiration are never purged. Returns the number of
	// entries removed.
	PurgeExpired(ctx context.Context, now time.Time) (int, error)

	// Close releases any resources held by the store.
	Close() error
}

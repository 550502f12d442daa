package cache

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"basefolio/mercury/pkg/governance/storage"
)

// Cache is the two-tier response cache: an LRU-bounded ephemeral tier in
// front of a durable storage.Store. Fresh hits are served without touching
// the network; expired entries are kept (until swept) so that a failing
// fetch can fall back to the last known payload.
//
// Tier policy on reads: ephemeral first, then durable. A fresh durable hit
// is promoted back into the ephemeral tier with a short TTL so repeated
// reads stay cheap. Durable-tier write failures are logged and swallowed;
// the ephemeral tier remains authoritative for the process lifetime.
type Cache struct {
	mem        *lru.Cache[string, *Entry]
	store      storage.Store
	logger     *slog.Logger
	defaultTTL time.Duration
	promoteTTL time.Duration
}

// Config configures a Cache.
type Config struct {
	// Store is the durable tier. Required.
	Store storage.Store

	// MaxEntries bounds the ephemeral tier. Default: 4096
	MaxEntries int

	// DefaultTTL applies when a fetch is stored without an explicit TTL.
	// Default: 60s
	DefaultTTL time.Duration

	// PromoteTTL is the ephemeral lifetime of entries promoted from the
	// durable tier. Default: 30s
	PromoteTTL time.Duration

	// Logger receives tier failures and corruption reports.
	Logger *slog.Logger
}

// New creates a Cache.
func New(cfg Config) (*Cache, error) {
	if cfg.MaxEntries <= 0 {
		cfg.MaxEntries = 4096
	}
	if cfg.DefaultTTL <= 0 {
		cfg.DefaultTTL = 60 * time.Second
	}
	if cfg.PromoteTTL <= 0 {
		cfg.PromoteTTL = 30 * time.Second
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	mem, err := lru.New[string, *Entry](cfg.MaxEntries)
	if err != nil {
		return nil, err
	}

	return &Cache{
		mem:        mem,
		store:      cfg.Store,
		logger:     cfg.Logger.With("component", "cache"),
		defaultTTL: cfg.DefaultTTL,
		promoteTTL: cfg.PromoteTTL,
	}, nil
}

// Get returns the fresh entry for a key, or nil when no tier holds one.
// Expired entries are not returned here; see getStale.
func (c *Cache) Get(ctx context.Context, key string) *Entry {
	now := time.Now()

	if entry, ok := c.mem.Get(key); ok && entry.Fresh(now) {
		return entry
	}

	entry := c.getDurable(ctx, key)
	if entry == nil || !entry.Fresh(now) {
		return nil
	}

	// Write-through promotion with a short TTL, clamped to the entry's own
	// remaining freshness.
	promoted := *entry
	promoteUntil := now.Add(c.promoteTTL)
	if promoteUntil.Before(promoted.ExpiresAt) {
		promoted.ExpiresAt = promoteUntil
	}
	c.mem.Add(key, &promoted)

	return entry
}

// Set stores a payload in the selected tiers with the given TTL.
func (c *Cache) Set(ctx context.Context, key string, data json.RawMessage, ttl time.Duration, tiers TierPolicy) {
	if ttl <= 0 {
		ttl = c.defaultTTL
	}
	now := time.Now()
	entry := &Entry{
		Key:       key,
		Data:      data,
		CachedAt:  now,
		ExpiresAt: now.Add(ttl),
	}

	if tiers == "" {
		tiers = TierBoth
	}

	if tiers == TierBoth || tiers == TierMemory {
		c.mem.Add(key, entry)
	}

	if tiers == TierBoth || tiers == TierDurable {
		c.setDurable(ctx, entry)
	}
}

// Invalidate removes the key from both tiers immediately.
func (c *Cache) Invalidate(ctx context.Context, key string) error {
	c.mem.Remove(key)
	return c.store.Delete(ctx, key)
}

// FetchWithCache is the cache-aside read path:
//
//  1. Unless ForceRefresh, a fresh hit in either tier is returned with no
//     network call.
//  2. On a miss, fetch runs. Success stores the payload and returns it.
//  3. On fetch failure, any existing entry for the key, expired or not, is
//     returned marked stale and the error is swallowed. With no entry the
//     original error propagates.
func (c *Cache) FetchWithCache(ctx context.Context, service, endpoint string, params map[string]string, fetch FetchFunc, opts Options) (Result, error) {
	key := Key(service, endpoint, params)

	if !opts.ForceRefresh {
		if entry := c.Get(ctx, key); entry != nil {
			return Result{Data: entry.Data, Cached: true}, nil
		}
	}

	data, err := fetch(ctx)
	if err != nil {
		if stale := c.getStale(ctx, key); stale != nil {
			c.logger.Warn("fetch failed, serving stale cache entry",
				"key", key,
				"cached_at", stale.CachedAt,
				"error", err,
			)
			return Result{Data: stale.Data, Cached: true, Stale: true}, nil
		}
		return Result{}, err
	}

	c.Set(ctx, key, data, opts.TTL, opts.Tiers)
	return Result{Data: data}, nil
}

// SweepExpired removes expired entries from both tiers and returns how many
// were purged per tier. The durable sweep also covers keys that were written
// once and never read again.
func (c *Cache) SweepExpired(ctx context.Context) (memPurged, durablePurged int, err error) {
	now := time.Now()

	for _, key := range c.mem.Keys() {
		if entry, ok := c.mem.Peek(key); ok && !entry.Fresh(now) {
			c.mem.Remove(key)
			memPurged++
		}
	}

	durablePurged, err = c.store.PurgeExpired(ctx, now)
	return memPurged, durablePurged, err
}

// getStale returns the newest entry for the key from either tier, ignoring
// expiration. Used only for the fetch-failure fallback.
func (c *Cache) getStale(ctx context.Context, key string) *Entry {
	var best *Entry

	if entry, ok := c.mem.Peek(key); ok {
		best = entry
	}

	if durable := c.getDurable(ctx, key); durable != nil {
		if best == nil || durable.CachedAt.After(best.CachedAt) {
			best = durable
		}
	}

	return best
}

// getDurable reads and decodes a durable-tier entry. Corrupted entries are
// removed and treated as absent; store read errors are logged and treated as
// misses so a broken durable tier never takes down the read path.
func (c *Cache) getDurable(ctx context.Context, key string) *Entry {
	stored, err := c.store.Get(ctx, key)
	if err != nil {
		c.logger.Warn("durable tier read failed", "key", key, "error", err)
		return nil
	}
	if stored == nil {
		return nil
	}

	var env envelope
	if err := json.Unmarshal(stored.Value, &env); err != nil || env.CachedAt == 0 {
		c.logger.Warn("removing corrupted durable cache entry", "key", key, "error", err)
		if delErr := c.store.Delete(ctx, key); delErr != nil {
			c.logger.Warn("failed to remove corrupted entry", "key", key, "error", delErr)
		}
		return nil
	}

	return &Entry{
		Key:       key,
		Data:      env.Data,
		CachedAt:  time.UnixMilli(env.CachedAt),
		ExpiresAt: time.UnixMilli(env.ExpiresAt),
	}
}

// setDurable encodes and writes an entry to the durable tier. Failures are
// logged, never surfaced.
func (c *Cache) setDurable(ctx context.Context, entry *Entry) {
	value, err := json.Marshal(envelope{
		Data:      entry.Data,
		CachedAt:  entry.CachedAt.UnixMilli(),
		ExpiresAt: entry.ExpiresAt.UnixMilli(),
	})
	if err != nil {
		c.logger.Warn("failed to encode cache entry", "key", entry.Key, "error", err)
		return
	}

	err = c.store.Set(ctx, &storage.Entry{
		Key:       entry.Key,
		Value:     value,
		ExpiresAt: entry.ExpiresAt,
		UpdatedAt: entry.CachedAt,
	})
	if err != nil {
		c.logger.Warn("durable tier write failed", "key", entry.Key, "error", err)
	}
}

package usage

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"

	"basefolio/mercury/pkg/governance/storage"
)

// KeyPrefix namespaces usage counters in the durable store. The full key is
// "api_usage_{service}_{YYYY-MM}" and the value is a decimal integer string.
const KeyPrefix = "api_usage_"

// NearLimitThreshold is the usage percentage above which IsNearLimit fires.
const NearLimitThreshold = 80.0

// MonthKey derives the calendar-month key for a point in time: "YYYY-MM".
// Counters for different months are independent and never merged; a new
// month simply starts reading from a key that has no value yet.
func MonthKey(now time.Time) string {
	return fmt.Sprintf("%04d-%02d", now.Year(), int(now.Month()))
}

// NextReset returns the start of the month following now, in now's location.
func NextReset(now time.Time) time.Time {
	return time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location()).AddDate(0, 1, 0)
}

// Usage is a snapshot of one service's monthly consumption.
type Usage struct {
	Service string  `json:"service"`
	Month   string  `json:"month"`
	Used    int64   `json:"used"`
	Limit   int64   `json:"limit"`
	Percent float64 `json:"percent"`
}

// Tracker counts completed requests per service per calendar month and
// enforces each service's monthly call budget as a hard stop, distinct from
// the rolling-window limiter, which governs burst rate, not volume.
//
// Counts are persisted through a storage.Store so they survive restarts, and
// mirrored in memory so the hot-path predicates don't hit the store on every
// request. Within a month a counter is monotonically non-decreasing.
type Tracker struct {
	store  storage.Store
	logger *slog.Logger
	nowFn  func() time.Time

	mu     sync.Mutex
	limits map[string]int64
	counts map[string]int64 // keyed by storeKey; lazily loaded from store
}

// Config configures a Tracker.
type Config struct {
	// Store persists the counters. Required.
	Store storage.Store

	// Limits maps service identifiers to monthly call ceilings.
	// A zero limit means unbounded.
	Limits map[string]int64

	// Logger receives persistence failures and corruption reports.
	Logger *slog.Logger

	// Now overrides the clock. Nil means time.Now. Tests use it to cross
	// month boundaries without waiting.
	Now func() time.Time
}

// NewTracker creates a Tracker.
func NewTracker(cfg Config) *Tracker {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	nowFn := cfg.Now
	if nowFn == nil {
		nowFn = time.Now
	}

	limits := make(map[string]int64, len(cfg.Limits))
	for service, limit := range cfg.Limits {
		limits[service] = limit
	}

	return &Tracker{
		store:  cfg.Store,
		logger: logger.With("component", "usage"),
		nowFn:  nowFn,
		limits: limits,
		counts: make(map[string]int64),
	}
}

// Increment adds one completed request to the service's counter for the
// current month and persists it. Persistence failures are logged; the
// in-memory count still advances so enforcement stays coherent for this
// process's lifetime.
func (t *Tracker) Increment(ctx context.Context, service string) {
	key := t.storeKey(service, t.nowFn())

	t.mu.Lock()
	count := t.loadLocked(ctx, key) + 1
	t.counts[key] = count
	t.mu.Unlock()

	err := t.store.Set(ctx, &storage.Entry{
		Key:   key,
		Value: []byte(strconv.FormatInt(count, 10)),
	})
	if err != nil {
		t.logger.Warn("failed to persist usage counter", "key", key, "error", err)
	}
}

// Usage returns the service's consumption snapshot for the current month.
// When the limit is unbounded the percentage is defined as 0, so the
// near/exceeded predicates never fire.
func (t *Tracker) Usage(ctx context.Context, service string) Usage {
	now := t.nowFn()
	key := t.storeKey(service, now)

	t.mu.Lock()
	used := t.loadLocked(ctx, key)
	limit := t.limits[service]
	t.mu.Unlock()

	var percent float64
	if limit > 0 {
		percent = float64(used) / float64(limit) * 100
	}

	return Usage{
		Service: service,
		Month:   MonthKey(now),
		Used:    used,
		Limit:   limit,
		Percent: percent,
	}
}

// UsageAll returns snapshots for every service with a configured limit row.
func (t *Tracker) UsageAll(ctx context.Context) []Usage {
	t.mu.Lock()
	services := make([]string, 0, len(t.limits))
	for service := range t.limits {
		services = append(services, service)
	}
	t.mu.Unlock()

	usages := make([]Usage, 0, len(services))
	for _, service := range services {
		usages = append(usages, t.Usage(ctx, service))
	}
	return usages
}

// IsNearLimit reports whether the service has consumed more than 80% of its
// monthly budget.
func (t *Tracker) IsNearLimit(ctx context.Context, service string) bool {
	return t.Usage(ctx, service).Percent > NearLimitThreshold
}

// HasExceededLimit reports whether the service's monthly budget is exhausted.
// Always false for unbounded services.
func (t *Tracker) HasExceededLimit(ctx context.Context, service string) bool {
	u := t.Usage(ctx, service)
	return u.Limit > 0 && u.Used >= u.Limit
}

// Limit returns the configured monthly limit for a service (0 = unbounded).
func (t *Tracker) Limit(service string) int64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.limits[service]
}

// UpdateLimits replaces the limit table. Counters are untouched: limits are
// interpretation, not state.
func (t *Tracker) UpdateLimits(limits map[string]int64) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.limits = make(map[string]int64, len(limits))
	for service, limit := range limits {
		t.limits[service] = limit
	}
}

// Reset clears the service's counter for the current month, in memory and in
// the store. This is a maintenance utility; normal operation never deletes
// counters.
func (t *Tracker) Reset(ctx context.Context, service string) error {
	key := t.storeKey(service, t.nowFn())

	t.mu.Lock()
	delete(t.counts, key)
	t.mu.Unlock()

	return t.store.Delete(ctx, key)
}

// Now returns the tracker's current time. Exposed so composing layers build
// month hints (e.g., quota reset times) from the same clock.
func (t *Tracker) Now() time.Time {
	return t.nowFn()
}

func (t *Tracker) storeKey(service string, now time.Time) string {
	return KeyPrefix + service + "_" + MonthKey(now)
}

// loadLocked returns the counter for a store key, loading it from the store
// on first touch. Corrupted values count as zero and are logged. Caller must
// hold mu.
func (t *Tracker) loadLocked(ctx context.Context, key string) int64 {
	if count, ok := t.counts[key]; ok {
		return count
	}

	entry, err := t.store.Get(ctx, key)
	if err != nil {
		t.logger.Warn("failed to load usage counter", "key", key, "error", err)
		return 0
	}
	if entry == nil {
		t.counts[key] = 0
		return 0
	}

	count, err := strconv.ParseInt(strings.TrimSpace(string(entry.Value)), 10, 64)
	if err != nil || count < 0 {
		t.logger.Warn("corrupted usage counter, treating as zero", "key", key, "value", string(entry.Value))
		count = 0
	}

	t.counts[key] = count
	return count
}

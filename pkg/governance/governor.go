package governance

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"basefolio/mercury/pkg/governance/cache"
	"basefolio/mercury/pkg/governance/ratelimit"
	"basefolio/mercury/pkg/governance/usage"
)

// Request describes one governed fetch. Params take part in the cache key;
// Fetch performs the actual provider call and is only invoked when neither
// tier can serve the request.
type Request struct {
	// Service is the provider identifier from the rate card.
	Service string

	// Endpoint names the logical operation (e.g., "simple/price").
	Endpoint string

	// Params are the request parameters that distinguish cache entries.
	Params map[string]string

	// TTL overrides the cache's default freshness lifetime. Zero keeps the
	// default.
	TTL time.Duration

	// ForceRefresh skips the cache lookup; the result is still stored.
	ForceRefresh bool

	// Tiers selects which cache tiers the result is written to.
	Tiers cache.TierPolicy

	// Fetch performs the request. Required.
	Fetch cache.FetchFunc
}

// Rule is the per-service governance behavior beyond limiter settings.
type Rule struct {
	// CountFailed makes failed fetches consume monthly quota, for providers
	// that bill attempted calls.
	CountFailed bool
}

// Governor composes the three governance concerns around a caller-supplied
// fetch function. For each request:
//
//	fresh cache hit → done (no quota, no slot)
//	miss            → monthly-cap check → rate-limited fetch
//	fetch success   → cache store + usage increment
//	fetch failure   → stale cache fallback, else the original error
//
// A QuotaExceededError never falls back to stale data: the hard cap is a
// deliberate stop, not an availability problem.
//
// The limiter registry, cache, and usage tracker are independent; the
// Governor owns their composition and nothing else.
type Governor struct {
	limiters *ratelimit.Registry
	cache    *cache.Cache
	usage    *usage.Tracker
	logger   *slog.Logger
	metrics  *Metrics

	mu    sync.RWMutex
	rules map[string]Rule
}

// GovernorConfig wires a Governor together.
type GovernorConfig struct {
	// Limiters is the per-service limiter registry. Required.
	Limiters *ratelimit.Registry

	// Cache is the two-tier response cache. Required.
	Cache *cache.Cache

	// Usage is the monthly usage tracker. Required.
	Usage *usage.Tracker

	// Rules maps services to per-service behavior. Missing services get the
	// zero Rule.
	Rules map[string]Rule

	// Logger receives near-limit warnings and composition-level events.
	Logger *slog.Logger

	// Metrics is optional; nil disables instrumentation.
	Metrics *Metrics
}

// NewGovernor creates a Governor.
func NewGovernor(cfg GovernorConfig) *Governor {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	rules := make(map[string]Rule, len(cfg.Rules))
	for service, rule := range cfg.Rules {
		rules[service] = rule
	}

	return &Governor{
		limiters: cfg.Limiters,
		cache:    cfg.Cache,
		usage:    cfg.Usage,
		logger:   logger.With("component", "governor"),
		metrics:  cfg.Metrics,
		rules:    rules,
	}
}

// Fetch runs one request through the governance pipeline.
func (g *Governor) Fetch(ctx context.Context, req Request) (cache.Result, error) {
	limiter, err := g.limiters.Get(req.Service)
	if err != nil {
		return cache.Result{}, err
	}

	key := cache.Key(req.Service, req.Endpoint, req.Params)

	if !req.ForceRefresh {
		if entry := g.cache.Get(ctx, key); entry != nil {
			g.metrics.RecordRequest(req.Service, OutcomeCacheHit)
			return cache.Result{Data: entry.Data, Cached: true}, nil
		}
	}

	// Miss path: the monthly cap is checked before any network attempt.
	if g.usage.HasExceededLimit(ctx, req.Service) {
		u := g.usage.Usage(ctx, req.Service)
		g.metrics.RecordRequest(req.Service, OutcomeQuotaBlocked)
		g.metrics.SetUsagePercent(req.Service, u.Percent)
		return cache.Result{}, &QuotaExceededError{
			Service: req.Service,
			Used:    u.Used,
			Limit:   u.Limit,
			ResetAt: usage.NextReset(g.usage.Now()),
		}
	}

	if g.usage.IsNearLimit(ctx, req.Service) {
		u := g.usage.Usage(ctx, req.Service)
		g.logger.Warn("service approaching monthly quota",
			"service", req.Service,
			"used", u.Used,
			"limit", u.Limit,
		)
	}

	rule := g.rule(req.Service)

	governedFetch := func(ctx context.Context) (json.RawMessage, error) {
		if rule.CountFailed {
			g.usage.Increment(ctx, req.Service)
		}

		start := time.Now()
		data, err := ratelimit.ExecuteTyped(ctx, limiter, req.Fetch)
		g.metrics.ObserveFetchDuration(req.Service, time.Since(start).Seconds())
		g.metrics.SetQueueDepth(req.Service, limiter.Status().QueueDepth)

		if err != nil {
			return nil, fmt.Errorf("%s %s: %w", req.Service, req.Endpoint, err)
		}

		if !rule.CountFailed {
			g.usage.Increment(ctx, req.Service)
		}
		g.metrics.SetUsagePercent(req.Service, g.usage.Usage(ctx, req.Service).Percent)

		return data, nil
	}

	result, err := g.cache.FetchWithCache(ctx, req.Service, req.Endpoint, req.Params, governedFetch, cache.Options{
		TTL: req.TTL,
		// The lookup already happened above, between it and the fetch sits
		// the cap check; skip the cache's own lookup.
		ForceRefresh: true,
		Tiers:        req.Tiers,
	})

	switch {
	case err != nil:
		g.metrics.RecordRequest(req.Service, OutcomeError)
	case result.Stale:
		g.metrics.RecordRequest(req.Service, OutcomeStale)
	default:
		g.metrics.RecordRequest(req.Service, OutcomeFetched)
	}

	return result, err
}

// Invalidate removes the cached entry for a logical request from both tiers.
func (g *Governor) Invalidate(ctx context.Context, service, endpoint string, params map[string]string) error {
	return g.cache.Invalidate(ctx, cache.Key(service, endpoint, params))
}

// Usage returns the monthly usage snapshot for every configured service.
func (g *Governor) Usage(ctx context.Context) []usage.Usage {
	return g.usage.UsageAll(ctx)
}

// LimiterStatus returns a snapshot of every limiter, keyed by service.
func (g *Governor) LimiterStatus() map[string]ratelimit.Status {
	return g.limiters.StatusAll()
}

// UpdateRules replaces the per-service rule table (hot reload).
func (g *Governor) UpdateRules(rules map[string]Rule) {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.rules = make(map[string]Rule, len(rules))
	for service, rule := range rules {
		g.rules[service] = rule
	}
}

func (g *Governor) rule(service string) Rule {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.rules[service]
}

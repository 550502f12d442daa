package governance

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"

	"basefolio/mercury/pkg/config"
	"basefolio/mercury/pkg/governance/cache"
	"basefolio/mercury/pkg/governance/ratelimit"
	"basefolio/mercury/pkg/governance/storage"
	"basefolio/mercury/pkg/governance/usage"
)

// System owns a fully wired governance stack: the durable store, the
// per-service limiter registry, the two-tier cache with its sweeper, the
// monthly usage tracker, and the Governor that composes them. It is the
// single entry point for the sidecar and for library embedders that want
// config-driven construction instead of wiring the pieces by hand.
type System struct {
	Governor *Governor
	Limiters *ratelimit.Registry
	Cache    *cache.Cache
	Usage    *usage.Tracker
	Store    storage.Store

	sweeper *cache.Sweeper
	logger  *slog.Logger
}

// NewSystem builds a governance stack from configuration. The Prometheus
// registerer may be nil to disable instrumentation.
func NewSystem(cfg *config.Config, logger *slog.Logger, reg prometheus.Registerer) (*System, error) {
	if logger == nil {
		logger = slog.Default()
	}

	store, err := newStore(cfg.Storage)
	if err != nil {
		return nil, fmt.Errorf("building store: %w", err)
	}

	c, err := cache.New(cache.Config{
		Store:      store,
		MaxEntries: cfg.Cache.MemoryMaxEntries,
		DefaultTTL: cfg.Cache.DefaultTTL,
		PromoteTTL: cfg.Cache.PromoteTTL,
		Logger:     logger,
	})
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("building cache: %w", err)
	}

	limiters := ratelimit.NewRegistry(limiterSettings(cfg))
	tracker := usage.NewTracker(usage.Config{
		Store:  store,
		Limits: monthlyLimits(cfg),
		Logger: logger,
	})

	var metrics *Metrics
	if reg != nil {
		metrics = NewMetrics(reg)
	}

	governor := NewGovernor(GovernorConfig{
		Limiters: limiters,
		Cache:    c,
		Usage:    tracker,
		Rules:    serviceRules(cfg),
		Logger:   logger,
		Metrics:  metrics,
	})

	return &System{
		Governor: governor,
		Limiters: limiters,
		Cache:    c,
		Usage:    tracker,
		Store:    store,
		sweeper:  cache.NewSweeper(c, cfg.Cache.SweepSchedule, logger),
		logger:   logger.With("component", "governance"),
	}, nil
}

// Start launches background work: the periodic cache sweep.
func (s *System) Start(ctx context.Context) error {
	return s.sweeper.Start(ctx)
}

// Reload applies a new configuration to the running stack. Limiter window
// state survives for services whose settings are unchanged; cache and
// storage settings require a restart and are ignored here.
func (s *System) Reload(cfg *config.Config) {
	s.Limiters.Update(limiterSettings(cfg))
	s.Usage.UpdateLimits(monthlyLimits(cfg))
	s.Governor.UpdateRules(serviceRules(cfg))
	s.logger.Info("configuration reloaded", "services", len(cfg.Services))
}

// Close stops background work and releases the store.
func (s *System) Close() error {
	s.sweeper.Stop()
	return s.Store.Close()
}

func newStore(cfg config.StorageConfig) (storage.Store, error) {
	switch cfg.Backend {
	case "", config.StorageBackendMemory:
		return storage.NewMemoryStore(), nil
	case config.StorageBackendSQLite:
		return storage.NewSQLiteStoreWithConfig(storage.SQLiteStoreConfig{
			Path:               cfg.Path,
			CheckpointInterval: cfg.CheckpointInterval,
			BusyTimeout:        cfg.BusyTimeout,
		})
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Backend)
	}
}

func limiterSettings(cfg *config.Config) map[string]ratelimit.Settings {
	settings := make(map[string]ratelimit.Settings, len(cfg.Services))
	for service, sc := range cfg.Services {
		settings[service] = ratelimit.Settings{
			Capacity:   sc.Capacity,
			Window:     sc.Window,
			QueueLimit: sc.QueueLimit,
		}
	}
	return settings
}

func monthlyLimits(cfg *config.Config) map[string]int64 {
	limits := make(map[string]int64, len(cfg.Services))
	for service, sc := range cfg.Services {
		limits[service] = sc.MonthlyLimit
	}
	return limits
}

func serviceRules(cfg *config.Config) map[string]Rule {
	rules := make(map[string]Rule, len(cfg.Services))
	for service, sc := range cfg.Services {
		rules[service] = Rule{CountFailed: sc.CountFailed}
	}
	return rules
}

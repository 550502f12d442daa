package cache

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/robfig/cron/v3"
)

// Sweeper purges expired entries from both cache tiers on a cron schedule,
// independent of read/write activity. Without it, keys written once and
// never re-read would accumulate in the durable tier forever.
type Sweeper struct {
	cache    *Cache
	cron     *cron.Cron
	schedule string
	logger   *slog.Logger

	mu      sync.Mutex
	running bool
}

// NewSweeper creates a sweeper for the cache with a standard cron schedule
// (e.g., "*/5 * * * *" for every five minutes).
func NewSweeper(c *Cache, schedule string, logger *slog.Logger) *Sweeper {
	if logger == nil {
		logger = slog.Default()
	}
	return &Sweeper{
		cache:    c,
		cron:     cron.New(),
		schedule: schedule,
		logger:   logger.With("component", "cache.sweeper"),
	}
}

// Start begins scheduled sweeping. An empty schedule disables the sweeper.
func (s *Sweeper) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.schedule == "" {
		s.logger.Info("sweep schedule not configured, skipping sweeper")
		return nil
	}

	if _, err := cron.ParseStandard(s.schedule); err != nil {
		return fmt.Errorf("invalid sweep schedule %q: %w", s.schedule, err)
	}

	if _, err := s.cron.AddFunc(s.schedule, func() {
		s.runSweep(ctx)
	}); err != nil {
		return fmt.Errorf("failed to schedule sweep: %w", err)
	}

	s.cron.Start()
	s.running = true

	s.logger.Info("cache sweeper started", "schedule", s.schedule)

	go func() {
		<-ctx.Done()
		s.Stop()
	}()

	return nil
}

func (s *Sweeper) runSweep(ctx context.Context) {
	memPurged, durablePurged, err := s.cache.SweepExpired(ctx)
	if err != nil {
		s.logger.Error("cache sweep failed", "error", err)
		return
	}

	if memPurged > 0 || durablePurged > 0 {
		s.logger.Info("cache sweep completed",
			"memory_purged", memPurged,
			"durable_purged", durablePurged,
		)
	} else {
		s.logger.Debug("cache sweep completed, nothing expired")
	}
}

// Stop stops the scheduler and waits for a running sweep to complete.
func (s *Sweeper) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cron != nil && s.running {
		ctx := s.cron.Stop()
		<-ctx.Done()
		s.running = false
		s.logger.Info("cache sweeper stopped")
	}
}

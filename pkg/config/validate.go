package config

import (
	"fmt"
	"net"
	"strings"

	"github.com/robfig/cron/v3"
)

// Validate checks the configuration for errors. It returns an error
// describing the first problem found, or nil if the configuration is valid.
//
// Validation happens once at startup so that unknown services, impossible
// limits, and bad schedules surface before any request is governed, rather
// than ad hoc on each lookup.
func Validate(cfg *Config) error {
	if err := validateServer(&cfg.Server); err != nil {
		return fmt.Errorf("server: %w", err)
	}

	if len(cfg.Services) == 0 {
		return fmt.Errorf("services: at least one service must be configured")
	}
	for name, svc := range cfg.Services {
		if err := validateService(name, &svc); err != nil {
			return fmt.Errorf("services.%s: %w", name, err)
		}
	}

	if err := validateCache(&cfg.Cache); err != nil {
		return fmt.Errorf("cache: %w", err)
	}

	if err := validateStorage(&cfg.Storage); err != nil {
		return fmt.Errorf("storage: %w", err)
	}

	if err := validateLogging(&cfg.Telemetry.Logging); err != nil {
		return fmt.Errorf("telemetry.logging: %w", err)
	}

	return nil
}

func validateServer(s *ServerConfig) error {
	if _, _, err := net.SplitHostPort(s.ListenAddress); err != nil {
		return fmt.Errorf("invalid listen_address %q: %w", s.ListenAddress, err)
	}
	if s.ReadTimeout < 0 || s.WriteTimeout < 0 || s.IdleTimeout < 0 {
		return fmt.Errorf("timeouts must not be negative")
	}
	return nil
}

func validateService(name string, svc *ServiceConfig) error {
	if strings.TrimSpace(name) == "" {
		return fmt.Errorf("service name must not be empty")
	}
	if strings.ContainsAny(name, " \t_") {
		// Underscores are the separator in durable keys.
		return fmt.Errorf("service name %q must not contain spaces or underscores", name)
	}
	if svc.Capacity <= 0 {
		return fmt.Errorf("capacity must be positive, got %d", svc.Capacity)
	}
	if svc.Window <= 0 {
		return fmt.Errorf("window must be positive, got %v", svc.Window)
	}
	if svc.MonthlyLimit < 0 {
		return fmt.Errorf("monthly_limit must not be negative, got %d", svc.MonthlyLimit)
	}
	if svc.QueueLimit < 0 {
		return fmt.Errorf("queue_limit must not be negative, got %d", svc.QueueLimit)
	}
	for ep, epCfg := range svc.Endpoints {
		if epCfg.TTL < 0 {
			return fmt.Errorf("endpoints.%s: ttl must not be negative", ep)
		}
	}
	return nil
}

func validateCache(c *CacheConfig) error {
	if c.MemoryMaxEntries <= 0 {
		return fmt.Errorf("memory_max_entries must be positive, got %d", c.MemoryMaxEntries)
	}
	if c.DefaultTTL <= 0 {
		return fmt.Errorf("default_ttl must be positive, got %v", c.DefaultTTL)
	}
	if c.PromoteTTL <= 0 {
		return fmt.Errorf("promote_ttl must be positive, got %v", c.PromoteTTL)
	}
	if c.SweepSchedule != "" {
		if _, err := cron.ParseStandard(c.SweepSchedule); err != nil {
			return fmt.Errorf("invalid sweep_schedule %q: %w", c.SweepSchedule, err)
		}
	}
	return nil
}

func validateStorage(s *StorageConfig) error {
	switch s.Backend {
	case StorageBackendMemory:
		return nil
	case StorageBackendSQLite:
		if s.Path == "" {
			return fmt.Errorf("path is required for the sqlite backend")
		}
		return nil
	default:
		return fmt.Errorf("unknown backend %q (expected \"memory\" or \"sqlite\")", s.Backend)
	}
}

func validateLogging(l *LoggingConfig) error {
	switch l.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("unknown level %q", l.Level)
	}
	switch l.Format {
	case "json", "text":
	default:
		return fmt.Errorf("unknown format %q", l.Format)
	}
	return nil
}

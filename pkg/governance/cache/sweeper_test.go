package cache

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"basefolio/mercury/pkg/governance/storage"
)

func TestSweeperEmptyScheduleIsDisabled(t *testing.T) {
	c := testCache(t, storage.NewMemoryStore(), time.Minute)
	s := NewSweeper(c, "", slog.New(slog.NewTextHandler(io.Discard, nil)))

	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v, want nil for empty schedule", err)
	}
	s.Stop()
}

func TestSweeperRejectsInvalidSchedule(t *testing.T) {
	c := testCache(t, storage.NewMemoryStore(), time.Minute)
	s := NewSweeper(c, "not a cron line", slog.New(slog.NewTextHandler(io.Discard, nil)))

	if err := s.Start(context.Background()); err == nil {
		t.Error("Start() = nil for invalid schedule, want error")
	}
}

func TestSweeperStartStop(t *testing.T) {
	c := testCache(t, storage.NewMemoryStore(), time.Minute)
	s := NewSweeper(c, "* * * * *", slog.New(slog.NewTextHandler(io.Discard, nil)))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := s.Start(ctx); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	s.Stop()

	// Stop twice must not panic or deadlock.
	s.Stop()
}

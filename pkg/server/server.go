package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"

	"basefolio/mercury/pkg/config"
	"basefolio/mercury/pkg/governance"
	"basefolio/mercury/pkg/providers"
	"basefolio/mercury/pkg/telemetry/metrics"
)

// Server is the loopback sidecar exposing governed provider fetches and
// governance introspection over HTTP.
type Server struct {
	config       config.ServerConfig
	metricsCfg   config.MetricsConfig
	system       *governance.System
	client       *providers.Client
	registry     *prometheus.Registry
	logger       *slog.Logger
	httpServer   *http.Server
	shutdownChan chan struct{}
	shutdownOnce sync.Once
	mu           sync.RWMutex
	isRunning    bool
}

// Config wires a Server together.
type Config struct {
	// Server is the HTTP listener configuration. Required.
	Server config.ServerConfig

	// Metrics controls the /metrics endpoint.
	Metrics config.MetricsConfig

	// System is the governance stack the handlers introspect. Required.
	System *governance.System

	// Client performs governed provider fetches. Required.
	Client *providers.Client

	// Registry backs the /metrics endpoint. Nil disables it regardless of
	// Metrics.Enabled.
	Registry *prometheus.Registry

	// Logger receives request logs.
	Logger *slog.Logger
}

// New creates a sidecar server.
func New(cfg Config) *Server {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		config:       cfg.Server,
		metricsCfg:   cfg.Metrics,
		system:       cfg.System,
		client:       cfg.Client,
		registry:     cfg.Registry,
		logger:       logger.With("component", "server"),
		shutdownChan: make(chan struct{}),
	}
}

// Start starts the HTTP server and blocks until shutdown.
func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.isRunning {
		s.mu.Unlock()
		return fmt.Errorf("server is already running")
	}
	s.isRunning = true
	s.mu.Unlock()

	s.httpServer = &http.Server{
		Addr:           s.config.ListenAddress,
		Handler:        s.Handler(),
		ReadTimeout:    s.config.ReadTimeout,
		WriteTimeout:   s.config.WriteTimeout,
		IdleTimeout:    s.config.IdleTimeout,
		MaxHeaderBytes: s.config.MaxHeaderBytes,
	}

	errChan := make(chan error, 1)
	go func() {
		s.logger.Info("starting sidecar server", "address", s.config.ListenAddress)
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errChan <- fmt.Errorf("server error: %w", err)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	select {
	case <-ctx.Done():
		s.logger.Info("context cancelled, initiating shutdown")
		return s.Shutdown(context.Background())
	case sig := <-sigChan:
		s.logger.Info("received shutdown signal", "signal", sig.String())
		return s.Shutdown(context.Background())
	case err := <-errChan:
		return err
	case <-s.shutdownChan:
		s.logger.Info("shutdown requested")
		return s.Shutdown(context.Background())
	}
}

// Shutdown gracefully shuts down the server: the listener stops accepting,
// in-flight requests get ShutdownTimeout to finish.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error

	s.shutdownOnce.Do(func() {
		s.mu.Lock()
		if !s.isRunning {
			s.mu.Unlock()
			return
		}
		s.mu.Unlock()

		s.logger.Info("initiating graceful shutdown", "timeout", s.config.ShutdownTimeout.String())

		shutdownCtx, cancel := context.WithTimeout(ctx, s.config.ShutdownTimeout)
		defer cancel()

		if s.httpServer != nil {
			if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
				s.logger.Error("error during server shutdown", "error", err)
				shutdownErr = fmt.Errorf("server shutdown error: %w", err)
			}
		}

		s.mu.Lock()
		s.isRunning = false
		s.mu.Unlock()

		s.logger.Info("sidecar server stopped")
	})

	return shutdownErr
}

// Stop requests shutdown from another goroutine.
func (s *Server) Stop() {
	select {
	case <-s.shutdownChan:
	default:
		close(s.shutdownChan)
	}
}

// IsRunning returns true if the server is running.
func (s *Server) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.isRunning
}

// Handler returns the configured HTTP handler, with the middleware chain
// applied. Exposed for tests.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.Handle("GET /api/{service}/{endpoint...}", http.HandlerFunc(s.handleFetch))
	mux.Handle("GET /v1/usage", http.HandlerFunc(s.handleUsage))
	mux.Handle("GET /v1/limits", http.HandlerFunc(s.handleLimits))
	mux.Handle("GET /healthz", http.HandlerFunc(s.handleHealthz))

	if s.metricsCfg.Enabled && s.registry != nil {
		mux.Handle("GET "+s.metricsCfg.Path, metrics.Handler(s.registry))
	}

	var handler http.Handler = mux
	handler = LoggingMiddleware(s.logger)(handler)
	handler = RequestIDMiddleware(handler)
	handler = RecoveryMiddleware(s.logger)(handler)

	return handler
}

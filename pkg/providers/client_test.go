package providers

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"basefolio/mercury/pkg/config"
	"basefolio/mercury/pkg/governance"
	"basefolio/mercury/pkg/governance/cache"
	"basefolio/mercury/pkg/governance/ratelimit"
	"basefolio/mercury/pkg/governance/storage"
	"basefolio/mercury/pkg/governance/usage"
)

func newTestClient(t *testing.T, card map[string]config.ServiceConfig) *Client {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	store := storage.NewMemoryStore()

	c, err := cache.New(cache.Config{Store: store, Logger: logger})
	if err != nil {
		t.Fatalf("cache.New() error = %v", err)
	}

	settings := make(map[string]ratelimit.Settings, len(card))
	limits := make(map[string]int64, len(card))
	for service, sc := range card {
		settings[service] = ratelimit.Settings{
			Capacity:   sc.Capacity,
			Window:     sc.Window,
			QueueLimit: sc.QueueLimit,
		}
		limits[service] = sc.MonthlyLimit
	}

	governor := governance.NewGovernor(governance.GovernorConfig{
		Limiters: ratelimit.NewRegistry(settings),
		Cache:    c,
		Usage:    usage.NewTracker(usage.Config{Store: store, Limits: limits, Logger: logger}),
		Logger:   logger,
	})

	return NewClient(ClientConfig{Governor: governor, RateCard: card})
}

func TestClientGet(t *testing.T) {
	var hits atomic.Int32
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		if r.URL.Path != "/simple/price" {
			t.Errorf("upstream path = %q, want /simple/price", r.URL.Path)
		}
		if got := r.URL.Query().Get("ids"); got != "ethereum" {
			t.Errorf("ids param = %q, want ethereum", got)
		}
		if got := r.Header.Get("Accept"); got != "application/json" {
			t.Errorf("Accept = %q", got)
		}
		w.Write([]byte(`{"ethereum":{"usd":3141.59}}`))
	}))
	defer upstream.Close()

	client := newTestClient(t, map[string]config.ServiceConfig{
		"coingecko": {Capacity: 10, Window: time.Minute, BaseURL: upstream.URL},
	})

	params := map[string]string{"ids": "ethereum", "vs_currencies": "usd"}
	result, err := client.Get(context.Background(), "coingecko", "simple/price", params)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if result.Cached {
		t.Error("first Get() reported Cached = true")
	}
	if !strings.Contains(string(result.Data), "3141.59") {
		t.Errorf("Data = %s", result.Data)
	}

	// Second identical call is served from cache.
	result, err = client.Get(context.Background(), "coingecko", "simple/price", params)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if !result.Cached {
		t.Error("second Get() not cached")
	}
	if hits.Load() != 1 {
		t.Errorf("upstream hit %d times, want 1", hits.Load())
	}
}

func TestClientRefreshSkipsCache(t *testing.T) {
	var hits atomic.Int32
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.Write([]byte(`{}`))
	}))
	defer upstream.Close()

	client := newTestClient(t, map[string]config.ServiceConfig{
		"coingecko": {Capacity: 10, Window: time.Minute, BaseURL: upstream.URL},
	})

	ctx := context.Background()
	if _, err := client.Get(ctx, "coingecko", "ping", nil); err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if _, err := client.Refresh(ctx, "coingecko", "ping", nil); err != nil {
		t.Fatalf("Refresh() error = %v", err)
	}

	if hits.Load() != 2 {
		t.Errorf("upstream hit %d times, want 2", hits.Load())
	}
}

func TestClientUpstreamError(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"throttled"}`, http.StatusTooManyRequests)
	}))
	defer upstream.Close()

	client := newTestClient(t, map[string]config.ServiceConfig{
		"coingecko": {Capacity: 10, Window: time.Minute, BaseURL: upstream.URL},
	})

	_, err := client.Get(context.Background(), "coingecko", "simple/price", nil)

	var ue *UpstreamError
	if !errors.As(err, &ue) {
		t.Fatalf("Get() error = %v, want *UpstreamError", err)
	}
	if ue.StatusCode != http.StatusTooManyRequests {
		t.Errorf("StatusCode = %d, want 429", ue.StatusCode)
	}
	if !ue.RateLimited() {
		t.Error("RateLimited() = false for a 429")
	}
	if !strings.Contains(ue.Body, "throttled") {
		t.Errorf("Body = %q", ue.Body)
	}
}

func TestClientUnknownService(t *testing.T) {
	client := newTestClient(t, map[string]config.ServiceConfig{
		"coingecko": {Capacity: 10, Window: time.Minute, BaseURL: "https://example.com"},
	})

	_, err := client.Get(context.Background(), "nope", "simple/price", nil)
	if !errors.Is(err, ratelimit.ErrUnknownService) {
		t.Errorf("Get() error = %v, want ErrUnknownService", err)
	}
	if err == nil || !strings.Contains(err.Error(), `"nope"`) {
		t.Errorf("Get() error = %v, want service name in message", err)
	}
}

func TestClientMissingBaseURL(t *testing.T) {
	client := newTestClient(t, map[string]config.ServiceConfig{
		"coingecko": {Capacity: 10, Window: time.Minute},
	})

	_, err := client.Get(context.Background(), "coingecko", "simple/price", nil)
	if err == nil || !strings.Contains(err.Error(), "no base URL") {
		t.Errorf("Get() error = %v, want missing base URL", err)
	}
}

func TestBuildURL(t *testing.T) {
	tests := []struct {
		name     string
		base     string
		endpoint string
		params   map[string]string
		want     string
	}{
		{
			name:     "plain",
			base:     "https://api.llama.fi",
			endpoint: "protocols",
			want:     "https://api.llama.fi/protocols",
		},
		{
			name:     "trailing and leading slashes collapse",
			base:     "https://api.coingecko.com/api/v3/",
			endpoint: "/simple/price",
			want:     "https://api.coingecko.com/api/v3/simple/price",
		},
		{
			name:     "params sorted by Encode",
			base:     "https://api.coingecko.com/api/v3",
			endpoint: "simple/price",
			params:   map[string]string{"vs_currencies": "usd", "ids": "ethereum"},
			want:     "https://api.coingecko.com/api/v3/simple/price?ids=ethereum&vs_currencies=usd",
		},
		{
			name:     "params are escaped",
			base:     "https://api.basescan.org/api",
			endpoint: "account/txlist",
			params:   map[string]string{"address": "0xabc def"},
			want:     "https://api.basescan.org/api/account/txlist?address=0xabc+def",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := buildURL(tt.base, tt.endpoint, tt.params)
			if err != nil {
				t.Fatalf("buildURL() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("buildURL() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestTruncate(t *testing.T) {
	if got := truncate([]byte("short"), 10); got != "short" {
		t.Errorf("truncate() = %q", got)
	}
	if got := truncate([]byte("0123456789abcdef"), 10); got != "0123456789..." {
		t.Errorf("truncate() = %q", got)
	}
}

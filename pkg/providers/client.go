package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"basefolio/mercury/pkg/config"
	"basefolio/mercury/pkg/governance"
	"basefolio/mercury/pkg/governance/cache"
	"basefolio/mercury/pkg/governance/ratelimit"
)

// maxResponseBytes bounds upstream response bodies. Market-data payloads
// are small; anything larger is a provider bug or an abuse vector.
const maxResponseBytes = 8 << 20

// Client is a governed HTTP client for the built-in providers. It builds the
// provider URL from the rate card, runs the fetch through the Governor, and
// returns the raw JSON payload. It knows nothing about provider response
// schemas.
type Client struct {
	governor *governance.Governor
	card     map[string]config.ServiceConfig
	http     *http.Client
}

// ClientConfig wires a Client together.
type ClientConfig struct {
	// Governor routes every fetch. Required.
	Governor *governance.Governor

	// RateCard supplies base URLs and per-endpoint TTLs. Required.
	RateCard map[string]config.ServiceConfig

	// HTTPClient overrides the underlying transport. Nil gets a client with
	// a 30s timeout.
	HTTPClient *http.Client
}

// NewClient creates a governed provider client.
func NewClient(cfg ClientConfig) *Client {
	hc := cfg.HTTPClient
	if hc == nil {
		hc = &http.Client{Timeout: 30 * time.Second}
	}
	return &Client{
		governor: cfg.Governor,
		card:     cfg.RateCard,
		http:     hc,
	}
}

// Get fetches one provider endpoint through the governance pipeline.
// Params become both the cache-key discriminator and the URL query string.
func (c *Client) Get(ctx context.Context, service, endpoint string, params map[string]string) (cache.Result, error) {
	return c.get(ctx, service, endpoint, params, false)
}

// Refresh is Get with the cache lookup skipped; the fresh result is still
// stored.
func (c *Client) Refresh(ctx context.Context, service, endpoint string, params map[string]string) (cache.Result, error) {
	return c.get(ctx, service, endpoint, params, true)
}

func (c *Client) get(ctx context.Context, service, endpoint string, params map[string]string, refresh bool) (cache.Result, error) {
	sc, ok := c.card[service]
	if !ok {
		return cache.Result{}, fmt.Errorf("%w %q", ratelimit.ErrUnknownService, service)
	}
	if sc.BaseURL == "" {
		return cache.Result{}, fmt.Errorf("service %q has no base URL configured", service)
	}

	target, err := buildURL(sc.BaseURL, endpoint, params)
	if err != nil {
		return cache.Result{}, fmt.Errorf("building %s %s url: %w", service, endpoint, err)
	}

	return c.governor.Fetch(ctx, governance.Request{
		Service:      service,
		Endpoint:     endpoint,
		Params:       params,
		TTL:          sc.Endpoints[endpoint].TTL,
		ForceRefresh: refresh,
		Fetch: func(ctx context.Context) (json.RawMessage, error) {
			return c.doGet(ctx, target)
		},
	})
}

func (c *Client) doGet(ctx context.Context, target string) (json.RawMessage, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("reading response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, &UpstreamError{StatusCode: resp.StatusCode, Body: truncate(body, 256)}
	}

	return json.RawMessage(body), nil
}

func buildURL(base, endpoint string, params map[string]string) (string, error) {
	u, err := url.Parse(strings.TrimSuffix(base, "/") + "/" + strings.TrimPrefix(endpoint, "/"))
	if err != nil {
		return "", err
	}

	q := u.Query()
	for k, v := range params {
		q.Set(k, v)
	}
	u.RawQuery = q.Encode()

	return u.String(), nil
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}

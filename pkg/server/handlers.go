package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"basefolio/mercury/pkg/governance"
	"basefolio/mercury/pkg/governance/ratelimit"
	"basefolio/mercury/pkg/telemetry/logging"
)

// CacheHeader reports how a response was satisfied: "hit", "miss", or
// "stale".
const CacheHeader = "X-Mercury-Cache"

type errorResponse struct {
	Error     string `json:"error"`
	RequestID string `json:"request_id,omitempty"`
}

// handleFetch serves GET /api/{service}/{endpoint...}. Query parameters are
// forwarded to the provider and take part in the cache key; refresh=1 skips
// the cache lookup.
func (s *Server) handleFetch(w http.ResponseWriter, r *http.Request) {
	service := r.PathValue("service")
	endpoint := r.PathValue("endpoint")

	params := make(map[string]string)
	refresh := false
	for key, values := range r.URL.Query() {
		if key == "refresh" {
			refresh = len(values) > 0 && values[0] == "1"
			continue
		}
		if len(values) > 0 {
			params[key] = values[0]
		}
	}

	ctx := logging.WithService(r.Context(), service)

	fetch := s.client.Get
	if refresh {
		fetch = s.client.Refresh
	}

	res, err := fetch(ctx, service, endpoint, params)
	if err != nil {
		s.writeFetchError(w, r, err)
		return
	}

	switch {
	case res.Stale:
		w.Header().Set(CacheHeader, "stale")
	case res.Cached:
		w.Header().Set(CacheHeader, "hit")
	default:
		w.Header().Set(CacheHeader, "miss")
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(res.Data)
}

func (s *Server) writeFetchError(w http.ResponseWriter, r *http.Request, err error) {
	var quotaErr *governance.QuotaExceededError

	status := http.StatusBadGateway
	switch {
	case errors.As(err, &quotaErr):
		status = http.StatusTooManyRequests
		if wait := time.Until(quotaErr.ResetAt); wait > 0 {
			w.Header().Set("Retry-After", strconv.Itoa(int(wait.Seconds())+1))
		}
	case errors.Is(err, ratelimit.ErrUnknownService):
		status = http.StatusNotFound
	case errors.Is(err, ratelimit.ErrQueueFull):
		status = http.StatusServiceUnavailable
	}

	writeJSON(w, status, errorResponse{
		Error:     err.Error(),
		RequestID: logging.GetRequestID(r.Context()),
	})
}

// handleUsage serves GET /v1/usage: the current month's counters for every
// configured service.
func (s *Server) handleUsage(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.system.Usage.UsageAll(r.Context()))
}

// handleLimits serves GET /v1/limits: a snapshot of every rate limiter.
func (s *Server) handleLimits(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.system.Limiters.StatusAll())
}

func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

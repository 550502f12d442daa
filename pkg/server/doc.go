// Package server implements the loopback HTTP sidecar.
//
// Routes:
//
//	GET /api/{service}/{endpoint...}  governed provider fetch; query params
//	                                  forward to the provider; refresh=1
//	                                  skips the cache lookup; the
//	                                  X-Mercury-Cache header reports
//	                                  hit, miss, or stale
//	GET /v1/usage                     monthly usage counters per service
//	GET /v1/limits                    rate limiter snapshots per service
//	GET /healthz                      liveness probe
//	GET /metrics                      Prometheus exposition (when enabled)
//
// Governance errors map to HTTP status codes: a blown monthly quota is 429
// with Retry-After, an unknown service is 404, a full limiter queue is 503,
// and an upstream fetch failure with no stale fallback is 502.
//
// # Middleware Chain
//
// Requests pass through, outermost first:
//  1. Recovery: converts handler panics into 500 responses
//  2. RequestID: tags requests for log correlation
//  3. Logging: one structured line per completed request
//
// # Graceful Shutdown
//
// Start blocks until the context is cancelled, SIGINT/SIGTERM arrives, or
// Stop is called; in-flight requests then get ShutdownTimeout to finish.
package server

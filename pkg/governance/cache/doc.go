// Package cache provides the two-tier response cache for governed API
// requests: an in-process LRU tier for speed and a durable tier for
// restarts, with a stale-on-error fallback that trades freshness for
// availability when a provider is down.
//
// Cache keys are derived deterministically from (service, endpoint, params)
// so the same logical request always hits the same entry; see Key.
package cache

// Package governance composes request governance for external market-data
// providers: per-service rolling-window rate limiting, two-tier response
// caching, and monthly usage cap enforcement.
//
// The subpackages implement each concern in isolation:
//
//   - ratelimit: rolling-window limiter with a FIFO admission queue
//   - cache: ephemeral + durable response cache with stale-on-error fallback
//   - usage: calendar-month call counters with soft and hard caps
//   - storage: the key/value store backing the durable tier and counters
//
// The Governor ties them together. For each request it serves a fresh cache
// hit for free, checks the monthly cap before any network attempt, admits
// the fetch through the service's rate limiter, and on success stores the
// response and counts the call. A failed fetch falls back to stale cached
// data when any exists; a blown monthly cap does not.
//
// NewSystem builds the whole stack from a config.Config and is what the
// sidecar daemon uses. Library embedders that want custom fetch plumbing
// can wire the pieces directly through NewGovernor.
package governance

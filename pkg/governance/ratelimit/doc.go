// Package ratelimit provides per-service rolling-window rate limiting with
// FIFO queueing.
//
// Each external provider gets one Limiter enforcing "at most N admissions
// per trailing window". Work beyond the window's capacity is queued, not
// rejected: the limiter trades latency for quota safety, which is the right
// trade for free-tier market-data APIs where a 429 can mean a temporary ban.
//
// Limiters for all configured services live in a Registry constructed once
// from the rate card:
//
//	reg := ratelimit.NewRegistry(map[string]ratelimit.Settings{
//	    "coingecko": {Capacity: 10, Window: time.Minute},
//	})
//	limiter, _ := reg.Get("coingecko")
//	result, err := limiter.Execute(ctx, fetch)
package ratelimit

// Mercury is a local request-governance sidecar for dashboard market data.
//
// It sits between a dashboard and its third-party data providers (CoinGecko,
// DeFiLlama, Basescan, DexScreener, GeckoTerminal), providing:
//   - Per-provider rolling-window rate limiting with FIFO queueing
//   - Two-tier response caching with stale-on-error fallback
//   - Monthly usage tracking with soft and hard cap enforcement
//
// Usage:
//
//	# Start the sidecar with the built-in rate card
//	mercury run
//
//	# Start with a custom configuration file
//	mercury run --config /path/to/mercury.yaml
//
//	# Validate a configuration file
//	mercury validate --config mercury.yaml
//
//	# Inspect a running sidecar
//	mercury status
//	mercury usage
//
//	# Offline maintenance of the durable store
//	mercury sweep --config mercury.yaml
//	mercury reset --service coingecko --config mercury.yaml
package main

func main() {
	Execute()
}

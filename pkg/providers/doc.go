// Package providers holds the built-in rate card for the supported
// market-data providers and a thin governed HTTP client.
//
// The rate card is data, not behavior: per-service capacities, windows,
// monthly limits, base URLs, and per-endpoint cache TTLs, drawn from each
// provider's published free-tier limits and overridable from configuration
// via MergeRateCard.
//
// The Client turns (service, endpoint, params) into a governed GET against
// the provider's base URL. It does not model provider response schemas;
// payloads pass through as raw JSON.
package providers

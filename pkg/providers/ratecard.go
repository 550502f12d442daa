package providers

import (
	"time"

	"basefolio/mercury/pkg/config"
)

// Service identifiers for the supported market-data providers.
const (
	CoinGecko     = "coingecko"
	DefiLlama     = "defillama"
	Basescan      = "basescan"
	DexScreener   = "dexscreener"
	GeckoTerminal = "geckoterminal"
)

// Services lists the built-in providers in a stable order.
func Services() []string {
	return []string{CoinGecko, DefiLlama, Basescan, DexScreener, GeckoTerminal}
}

// DefaultRateCard returns the built-in per-service governance settings,
// derived from the providers' published free-tier limits. Operators override
// individual rows through the services section of the configuration file.
//
// Capacities run a little below the documented ceilings: the window is
// enforced locally and the providers measure on their side, so a small
// margin absorbs clock skew and in-flight requests.
func DefaultRateCard() map[string]config.ServiceConfig {
	return map[string]config.ServiceConfig{
		CoinGecko: {
			Capacity:     10,
			Window:       time.Minute,
			MonthlyLimit: 10000,
			QueueLimit:   64,
			BaseURL:      "https://api.coingecko.com/api/v3",
			Endpoints: map[string]config.EndpointConfig{
				"simple/price":    {TTL: 60 * time.Second},
				"coins/markets":   {TTL: 120 * time.Second},
				"search/trending": {TTL: 10 * time.Minute},
			},
		},
		DefiLlama: {
			Capacity:   30,
			Window:     time.Minute,
			QueueLimit: 64,
			BaseURL:    "https://api.llama.fi",
			Endpoints: map[string]config.EndpointConfig{
				"protocols": {TTL: 5 * time.Minute},
				"tvl":       {TTL: 5 * time.Minute},
			},
		},
		Basescan: {
			Capacity:     4,
			Window:       time.Second,
			MonthlyLimit: 100000,
			QueueLimit:   128,
			BaseURL:      "https://api.basescan.org/api",
			Endpoints: map[string]config.EndpointConfig{
				"account/balance": {TTL: 30 * time.Second},
				"account/txlist":  {TTL: 30 * time.Second},
			},
		},
		DexScreener: {
			Capacity:   60,
			Window:     time.Minute,
			QueueLimit: 64,
			BaseURL:    "https://api.dexscreener.com/latest/dex",
			Endpoints: map[string]config.EndpointConfig{
				"pairs":  {TTL: 30 * time.Second},
				"tokens": {TTL: 30 * time.Second},
			},
		},
		GeckoTerminal: {
			Capacity:   25,
			Window:     time.Minute,
			QueueLimit: 64,
			BaseURL:    "https://api.geckoterminal.com/api/v2",
			Endpoints: map[string]config.EndpointConfig{
				"networks/base/pools": {TTL: 60 * time.Second},
			},
		},
	}
}

// MergeRateCard overlays operator configuration on the built-in rate card.
// Services absent from the overlay keep their defaults; services present in
// the overlay replace the default row field by field, with zero values
// falling back to the default. Unknown services in the overlay are kept
// as-is, so operators can govern providers the built-in card does not know.
func MergeRateCard(overlay map[string]config.ServiceConfig) map[string]config.ServiceConfig {
	merged := DefaultRateCard()

	for service, row := range overlay {
		base, known := merged[service]
		if !known {
			merged[service] = row
			continue
		}
		if row.Capacity > 0 {
			base.Capacity = row.Capacity
		}
		if row.Window > 0 {
			base.Window = row.Window
		}
		if row.MonthlyLimit > 0 {
			base.MonthlyLimit = row.MonthlyLimit
		}
		if row.QueueLimit > 0 {
			base.QueueLimit = row.QueueLimit
		}
		if row.BaseURL != "" {
			base.BaseURL = row.BaseURL
		}
		base.CountFailed = row.CountFailed
		for endpoint, ec := range row.Endpoints {
			if base.Endpoints == nil {
				base.Endpoints = make(map[string]config.EndpointConfig)
			}
			base.Endpoints[endpoint] = ec
		}
		merged[service] = base
	}

	return merged
}

// EndpointTTL looks up the cache TTL for a service endpoint in a rate card.
// Zero means the cache default applies.
func EndpointTTL(card map[string]config.ServiceConfig, service, endpoint string) time.Duration {
	sc, ok := card[service]
	if !ok {
		return 0
	}
	return sc.Endpoints[endpoint].TTL
}

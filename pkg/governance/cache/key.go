package cache

import (
	"sort"
	"strings"
)

// KeyPrefix namespaces all cache keys in the durable store.
const KeyPrefix = "api_"

// Key derives the canonical cache key for a logical request:
// "api_{service}_{endpoint}_{sortedParams}", where params are serialized as
// k=v pairs sorted lexicographically by key and joined with "&". Sorting
// guarantees that the same logical request yields the same key regardless of
// how the caller built the params map. With no params the trailing separator
// is omitted.
func Key(service, endpoint string, params map[string]string) string {
	var b strings.Builder
	b.WriteString(KeyPrefix)
	b.WriteString(service)
	b.WriteByte('_')
	b.WriteString(endpoint)

	if len(params) == 0 {
		return b.String()
	}

	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	b.WriteByte('_')
	for i, k := range keys {
		if i > 0 {
			b.WriteByte('&')
		}
		b.WriteString(k)
		b.WriteByte('=')
		b.WriteString(params[k])
	}
	return b.String()
}

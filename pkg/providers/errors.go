package providers

import "fmt"

// UpstreamError reports a non-200 response from a provider. The body excerpt
// is for logs; clients should branch on the status code.
type UpstreamError struct {
	StatusCode int
	Body       string
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("upstream returned status %d: %s", e.StatusCode, e.Body)
}

// RateLimited reports whether the provider itself rejected the call for
// rate-limit reasons. Seeing this means the local rate card is more
// permissive than the provider's actual enforcement.
func (e *UpstreamError) RateLimited() bool {
	return e.StatusCode == 429
}

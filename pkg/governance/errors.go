package governance

import (
	"fmt"
	"time"
)

// QuotaExceededError is returned when a service's monthly call budget is
// exhausted. It is fatal for the call: no network request is attempted, no
// stale fallback applies, and the caller decides whether to degrade. ResetAt
// is the start of the next calendar month.
type QuotaExceededError struct {
	Service string
	Used    int64
	Limit   int64
	ResetAt time.Time
}

// Error implements the error interface.
func (e *QuotaExceededError) Error() string {
	return fmt.Sprintf("monthly quota exceeded for %s: %d of %d requests used, resets %s",
		e.Service, e.Used, e.Limit, e.ResetAt.Format("2006-01-02"))
}

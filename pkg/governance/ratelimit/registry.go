package ratelimit

import (
	"errors"
	"fmt"
	"sort"
	"sync"
)

// ErrUnknownService is returned for services absent from the registry.
var ErrUnknownService = errors.New("unknown service")

// Registry holds one limiter per configured service. It is constructed once
// at startup from the validated rate card and passed to call sites by
// reference; there is no hidden package-level instance, so tests build fresh
// registries freely.
type Registry struct {
	mu       sync.RWMutex
	limiters map[string]*Limiter
	settings map[string]Settings
}

// NewRegistry creates a registry with one limiter per service.
func NewRegistry(settings map[string]Settings) *Registry {
	r := &Registry{
		limiters: make(map[string]*Limiter, len(settings)),
		settings: make(map[string]Settings, len(settings)),
	}
	for service, s := range settings {
		r.limiters[service] = NewLimiter(service, s)
		r.settings[service] = s
	}
	return r
}

// Get returns the limiter for a service, or ErrUnknownService.
func (r *Registry) Get(service string) (*Limiter, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	limiter, ok := r.limiters[service]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownService, service)
	}
	return limiter, nil
}

// Update applies a new settings table. Limiters whose settings are unchanged
// keep their window state; changed or added services get fresh limiters, and
// removed services are reset and dropped.
func (r *Registry) Update(settings map[string]Settings) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for service, s := range settings {
		old, ok := r.settings[service]
		if ok && old == s {
			continue
		}
		if ok {
			r.limiters[service].Reset()
		}
		r.limiters[service] = NewLimiter(service, s)
		r.settings[service] = s
	}

	for service := range r.settings {
		if _, ok := settings[service]; !ok {
			r.limiters[service].Reset()
			delete(r.limiters, service)
			delete(r.settings, service)
		}
	}
}

// Services returns the configured service identifiers, sorted.
func (r *Registry) Services() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	services := make([]string, 0, len(r.limiters))
	for service := range r.limiters {
		services = append(services, service)
	}
	sort.Strings(services)
	return services
}

// StatusAll returns a snapshot of every limiter, keyed by service.
func (r *Registry) StatusAll() map[string]Status {
	r.mu.RLock()
	defer r.mu.RUnlock()

	statuses := make(map[string]Status, len(r.limiters))
	for service, limiter := range r.limiters {
		statuses[service] = limiter.Status()
	}
	return statuses
}

// ResetAll resets every limiter. Primarily for tests and the reset utility.
func (r *Registry) ResetAll() {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, limiter := range r.limiters {
		limiter.Reset()
	}
}

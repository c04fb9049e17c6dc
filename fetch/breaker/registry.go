package breaker

import (
	"sync"
	"time"
)

// Registry holds one breaker per resource key, created lazily on first use.
// Breakers live for the process lifetime unless explicitly cleared.
type Registry struct {
	mu       sync.RWMutex
	breakers map[string]*Breaker

	failureThreshold int
	recoveryTimeout  time.Duration
}

// NewRegistry creates a registry whose breakers share the given settings.
func NewRegistry(failureThreshold int, recoveryTimeout time.Duration) *Registry {
	return &Registry{
		breakers:         make(map[string]*Breaker),
		failureThreshold: failureThreshold,
		recoveryTimeout:  recoveryTimeout,
	}
}

// Get returns the breaker for key, creating it if needed.
func (r *Registry) Get(key string) *Breaker {
	r.mu.RLock()
	b, ok := r.breakers[key]
	r.mu.RUnlock()
	if ok {
		return b
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if b, ok := r.breakers[key]; ok {
		return b
	}
	b = New(key, r.failureThreshold, r.recoveryTimeout)
	r.breakers[key] = b
	return b
}

// Reset drops the breaker for key, if any. The next Get starts fresh.
func (r *Registry) Reset(key string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.breakers, key)
}

// ResetAll drops every breaker.
func (r *Registry) ResetAll() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.breakers = make(map[string]*Breaker)
}

// States returns a snapshot of each key's current state.
func (r *Registry) States() map[string]State {
	r.mu.RLock()
	defer r.mu.RUnlock()

	states := make(map[string]State, len(r.breakers))
	for key, b := range r.breakers {
		states[key] = b.State()
	}
	return states
}

// Len returns the number of tracked keys.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.breakers)
}

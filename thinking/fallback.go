package thinking

import (
	"context"
	"fmt"
	"sync"
)

// FallbackFunc is an alternate action for a failed step. It receives the
// failed step and the failure cause, and returns replacement output.
type FallbackFunc func(ctx context.Context, step Step, cause error) (string, error)

// FallbackRegistry maps strategy names to handlers. Lookup happens at run
// time: a step declaring an unknown strategy fails when the fallback is
// needed, not at declaration time.
type FallbackRegistry struct {
	mu       sync.RWMutex
	handlers map[string]FallbackFunc
}

// NewFallbackRegistry creates an empty registry.
func NewFallbackRegistry() *FallbackRegistry {
	return &FallbackRegistry{handlers: make(map[string]FallbackFunc)}
}

// Register adds or replaces a strategy handler.
func (r *FallbackRegistry) Register(name string, fn FallbackFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers[name] = fn
}

// Names returns the registered strategy names.
func (r *FallbackRegistry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.handlers))
	for name := range r.handlers {
		names = append(names, name)
	}
	return names
}

// run executes the named strategy for a failed step.
func (r *FallbackRegistry) run(ctx context.Context, name string, step Step, cause error) (string, error) {
	r.mu.RLock()
	fn, ok := r.handlers[name]
	r.mu.RUnlock()

	if !ok {
		return "", fmt.Errorf("%w: unknown strategy %q", ErrFallbackFailed, name)
	}
	out, err := fn(ctx, step, cause)
	if err != nil {
		return "", fmt.Errorf("%w: strategy %q: %v", ErrFallbackFailed, name, err)
	}
	return out, nil
}

// FallbackSuffix marks steps completed via fallback in run results.
const FallbackSuffix = " (fallback)"

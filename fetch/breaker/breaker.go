// Package breaker implements a per-resource circuit breaker.
//
// Each breaker is a small state machine over consecutive failures:
//
//	Closed    -> Open      after FailureThreshold consecutive failures
//	Open      -> HalfOpen  once RecoveryTimeout has elapsed, checked lazily
//	                       by CanAttempt (no background timer)
//	HalfOpen  -> Closed    after one successful probe
//	HalfOpen  -> Open      after a failed probe
//
// A HalfOpen probe failure re-opens the breaker without resetting the
// failure count, so repeated failed probes escalate the count past the
// threshold. Callers use the escalated count to decide on blacklisting.
package breaker

import (
	"sync"
	"time"
)

// State is the circuit breaker state.
type State int

const (
	StateClosed State = iota
	StateOpen
	StateHalfOpen
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half_open"
	default:
		return "unknown"
	}
}

const (
	// DefaultFailureThreshold is the consecutive-failure count that opens a breaker.
	DefaultFailureThreshold = 5
	// DefaultRecoveryTimeout is how long an open breaker blocks before probing.
	DefaultRecoveryTimeout = 300 * time.Second
)

// Breaker tracks failures for a single resource key.
// All methods are safe for concurrent use.
type Breaker struct {
	mu sync.Mutex

	key              string
	failureThreshold int
	recoveryTimeout  time.Duration

	state         State
	failureCount  int
	lastFailureAt time.Time
	probeInFlight bool
}

// New creates a breaker for the given resource key. Non-positive threshold or
// timeout values fall back to the defaults.
func New(key string, failureThreshold int, recoveryTimeout time.Duration) *Breaker {
	if failureThreshold <= 0 {
		failureThreshold = DefaultFailureThreshold
	}
	if recoveryTimeout <= 0 {
		recoveryTimeout = DefaultRecoveryTimeout
	}
	return &Breaker{
		key:              key,
		failureThreshold: failureThreshold,
		recoveryTimeout:  recoveryTimeout,
		state:            StateClosed,
	}
}

// Key returns the resource key this breaker guards.
func (b *Breaker) Key() string { return b.key }

// CanAttempt reports whether a call may proceed. When the breaker is Open and
// the recovery timeout has elapsed, this call flips the breaker to HalfOpen
// and permits exactly one probe; further calls are rejected until the probe
// resolves via RecordSuccess or RecordFailure.
func (b *Breaker) CanAttempt() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case StateClosed:
		return true
	case StateOpen:
		if time.Since(b.lastFailureAt) > b.recoveryTimeout {
			b.state = StateHalfOpen
			b.probeInFlight = true
			return true
		}
		return false
	case StateHalfOpen:
		if b.probeInFlight {
			return false
		}
		b.probeInFlight = true
		return true
	default:
		return false
	}
}

// RecordSuccess marks a successful call. A HalfOpen probe success closes the
// breaker; any success resets the consecutive failure count.
func (b *Breaker) RecordSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.failureCount = 0
	b.probeInFlight = false
	if b.state == StateHalfOpen {
		b.state = StateClosed
	}
}

// RecordFailure marks a failed call. The failure count always increments,
// even past the threshold: retries inside a single fetch keep counting, which
// is what pushes chronically failing resources toward the blacklist.
func (b *Breaker) RecordFailure() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.failureCount++
	b.lastFailureAt = time.Now()
	b.probeInFlight = false

	switch b.state {
	case StateHalfOpen:
		// The count keeps escalating across re-opens; see package doc.
		b.state = StateOpen
	case StateClosed:
		if b.failureCount >= b.failureThreshold {
			b.state = StateOpen
		}
	}
}

// State returns the current state without side effects.
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// FailureCount returns the current consecutive failure count.
func (b *Breaker) FailureCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.failureCount
}

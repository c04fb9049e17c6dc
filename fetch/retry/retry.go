// Package retry decides whether and when a failed fetch attempt is retried.
package retry

import (
	"time"

	"github.com/vietddude/resilio/fetch/classify"
)

// Policy defines retry behavior. Attempt numbers are zero-based: attempt 0 is
// the first try, and ShouldRetry(kind, n) asks whether attempt n+1 may run.
type Policy struct {
	MaxRetries  int
	BaseDelay   time.Duration
	MaxBackoff  time.Duration
	Exponential bool
}

// DefaultPolicy provides sensible defaults.
var DefaultPolicy = Policy{
	MaxRetries:  3,
	BaseDelay:   1 * time.Second,
	MaxBackoff:  30 * time.Second,
	Exponential: true,
}

// ShouldRetry reports whether another attempt is allowed after a failure of
// the given kind on the given attempt.
//
//   - Client and TLS errors are never retried: the request itself is wrong.
//   - Server errors get at most two retries regardless of MaxRetries.
//   - Transient network errors and rate limits retry up to MaxRetries.
//   - Unknown failures are treated as terminal.
func (p Policy) ShouldRetry(kind classify.Kind, attempt int) bool {
	switch kind {
	case classify.KindClient, classify.KindTLS:
		return false
	case classify.KindServer:
		return attempt < min(p.MaxRetries, 2)
	case classify.KindTimeout, classify.KindConnection, classify.KindDNS, classify.KindRateLimited:
		return attempt < p.MaxRetries
	default:
		return false
	}
}

// Delay returns the pause before the attempt that follows the given one:
// BaseDelay*2^attempt capped at MaxBackoff when Exponential is set, else a
// constant BaseDelay.
func (p Policy) Delay(attempt int) time.Duration {
	if !p.Exponential {
		return p.BaseDelay
	}

	delay := p.BaseDelay
	for i := 0; i < attempt; i++ {
		delay *= 2
		if p.MaxBackoff > 0 && delay >= p.MaxBackoff {
			return p.MaxBackoff
		}
	}
	if p.MaxBackoff > 0 && delay > p.MaxBackoff {
		return p.MaxBackoff
	}
	return delay
}

package fetch

import (
	"sync"
	"time"

	"github.com/vietddude/resilio/metrics"
)

// DefaultBlacklistTTL is how long a resource stays blacklisted.
const DefaultBlacklistTTL = 1 * time.Hour

// Blacklist is a coarser, longer-lived denial list than the circuit breaker.
// Resources land here after exhausting retries with a badly failing breaker,
// and entries expire after a fixed TTL. Expiry is checked on read; there is
// no background sweeper.
type Blacklist struct {
	mu      sync.Mutex
	entries map[string]time.Time
	ttl     time.Duration
}

// NewBlacklist creates a blacklist with the given TTL (<= 0 uses the default).
func NewBlacklist(ttl time.Duration) *Blacklist {
	if ttl <= 0 {
		ttl = DefaultBlacklistTTL
	}
	return &Blacklist{
		entries: make(map[string]time.Time),
		ttl:     ttl,
	}
}

// Add blacklists a resource key, stamping the current time.
func (bl *Blacklist) Add(key string) {
	bl.mu.Lock()
	defer bl.mu.Unlock()
	bl.entries[key] = time.Now()
	metrics.BlacklistSize.Set(float64(len(bl.entries)))
}

// Contains reports whether key is currently blacklisted, removing the entry
// if it has expired.
func (bl *Blacklist) Contains(key string) bool {
	bl.mu.Lock()
	defer bl.mu.Unlock()

	at, ok := bl.entries[key]
	if !ok {
		return false
	}
	if time.Since(at) > bl.ttl {
		delete(bl.entries, key)
		metrics.BlacklistSize.Set(float64(len(bl.entries)))
		return false
	}
	return true
}

// Remove clears a key regardless of expiry.
func (bl *Blacklist) Remove(key string) {
	bl.mu.Lock()
	defer bl.mu.Unlock()
	delete(bl.entries, key)
	metrics.BlacklistSize.Set(float64(len(bl.entries)))
}

// Len returns the number of entries, including any not yet expired-on-read.
func (bl *Blacklist) Len() int {
	bl.mu.Lock()
	defer bl.mu.Unlock()
	return len(bl.entries)
}

package fetch

import (
	"sync"

	"github.com/vietddude/resilio/fetch/classify"
)

// Stats is a point-in-time snapshot of engine counters. Reading stats never
// mutates them; two reads with no intervening fetches are identical.
type Stats struct {
	Total            uint64  `json:"total"`
	Success          uint64  `json:"success"`
	Failures         uint64  `json:"failures"`
	Timeouts         uint64  `json:"timeouts"`
	ConnectionErrors uint64  `json:"connection_errors"`
	BreakerTrips     uint64  `json:"breaker_trips"`
	SuccessRate      float64 `json:"success_rate"`
}

// counters is the engine's mutable tally, guarded by one mutex: contention is
// low and a single lock keeps increments atomic with respect to snapshots.
type counters struct {
	mu sync.Mutex

	total            uint64
	success          uint64
	failures         uint64
	timeouts         uint64
	connectionErrors uint64
	breakerTrips     uint64
}

func (c *counters) recordSuccess() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.total++
	c.success++
}

func (c *counters) recordFailure(kind classify.Kind) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.total++
	c.failures++
	switch kind {
	case classify.KindTimeout:
		c.timeouts++
	case classify.KindConnection, classify.KindDNS:
		c.connectionErrors++
	}
}

func (c *counters) recordBreakerTrip() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.total++
	c.failures++
	c.breakerTrips++
}

func (c *counters) snapshot() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()

	s := Stats{
		Total:            c.total,
		Success:          c.success,
		Failures:         c.failures,
		Timeouts:         c.timeouts,
		ConnectionErrors: c.connectionErrors,
		BreakerTrips:     c.breakerTrips,
	}
	if s.Total > 0 {
		s.SuccessRate = float64(s.Success) / float64(s.Total)
	}
	return s
}

package monitor

import (
	"sync"

	"github.com/dmkor-dev/uptimed/internal/domain/result"
)

// Tracker holds the transient monitoring state shared by concurrent check
// tasks: consecutive failure counters and the in-flight set. A counter
// entry exists only while an endpoint is failing.
type Tracker struct {
	mu       sync.Mutex
	failures map[int64]int
	inflight map[int64]struct{}
}

func NewTracker() *Tracker {
	return &Tracker{
		failures: make(map[int64]int),
		inflight: make(map[int64]struct{}),
	}
}

// Begin marks the endpoint as having a check in progress. It returns
// false if one is already running; the caller must not proceed.
func (t *Tracker) Begin(endpointID int64) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, busy := t.inflight[endpointID]; busy {
		return false
	}
	t.inflight[endpointID] = struct{}{}
	return true
}

func (t *Tracker) End(endpointID int64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.inflight, endpointID)
}

func (t *Tracker) InFlight(endpointID int64) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, busy := t.inflight[endpointID]
	return busy
}

// Record applies one check outcome and returns the current consecutive
// failure count (zero after a success).
func (t *Tracker) Record(res *result.Result) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	if res.Status == result.StatusSuccess {
		delete(t.failures, res.EndpointID)
		return 0
	}
	t.failures[res.EndpointID]++
	return t.failures[res.EndpointID]
}

func (t *Tracker) Failures(endpointID int64) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.failures[endpointID]
}

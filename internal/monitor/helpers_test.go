package monitor

import (
	"context"
	"sort"
	"sync"

	"github.com/dmkor-dev/uptimed/internal/domain/endpoint"
	"github.com/dmkor-dev/uptimed/internal/domain/result"
)

// memEndpoints is an in-memory endpoint.Store for pipeline tests.
type memEndpoints struct {
	mu  sync.Mutex
	eps map[int64]*endpoint.Endpoint
}

func newMemEndpoints(eps ...*endpoint.Endpoint) *memEndpoints {
	m := &memEndpoints{eps: make(map[int64]*endpoint.Endpoint)}
	for _, ep := range eps {
		m.eps[ep.ID] = ep
	}
	return m
}

func (m *memEndpoints) GetByID(_ context.Context, id int64) (*endpoint.Endpoint, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ep, ok := m.eps[id]
	if !ok {
		return nil, endpoint.ErrNotFound
	}
	return ep, nil
}

func (m *memEndpoints) ListActive(_ context.Context) ([]*endpoint.Endpoint, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*endpoint.Endpoint, 0, len(m.eps))
	for _, ep := range m.eps {
		if ep.Active {
			out = append(out, ep)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *memEndpoints) ListByUser(_ context.Context, userID int64) ([]*endpoint.Endpoint, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*endpoint.Endpoint
	for _, ep := range m.eps {
		if ep.UserID == userID {
			out = append(out, ep)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// memResults is an in-memory result.Store. Latest returns the most
// recently created result per endpoint.
type memResults struct {
	mu      sync.Mutex
	nextID  int64
	results []*result.Result
}

func newMemResults() *memResults { return &memResults{} }

func (m *memResults) Create(_ context.Context, r *result.Result) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	r.ID = m.nextID
	m.results = append(m.results, r)
	return nil
}

func (m *memResults) Latest(_ context.Context, endpointID int64) (*result.Result, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := len(m.results) - 1; i >= 0; i-- {
		if m.results[i].EndpointID == endpointID {
			return m.results[i], nil
		}
	}
	return nil, result.ErrNoPriorData
}

func (m *memResults) ListByEndpoint(_ context.Context, endpointID int64, limit int) ([]*result.Result, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*result.Result
	for i := len(m.results) - 1; i >= 0 && len(out) < limit; i-- {
		if m.results[i].EndpointID == endpointID {
			out = append(out, m.results[i])
		}
	}
	return out, nil
}

func (m *memResults) AggregateStats(_ context.Context, endpointID int64, _ int) (*result.Stats, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	st := &result.Stats{}
	var sum int64
	for _, r := range m.results {
		if r.EndpointID != endpointID {
			continue
		}
		st.Total++
		sum += r.ResponseTime
		if r.Status == result.StatusSuccess {
			st.Successes++
		}
	}
	if st.Total > 0 {
		st.AvgResponseTime = float64(sum) / float64(st.Total)
		st.UptimePercent = float64(st.Successes) / float64(st.Total) * 100
	}
	return st, nil
}

func (m *memResults) count(endpointID int64) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, r := range m.results {
		if r.EndpointID == endpointID {
			n++
		}
	}
	return n
}

// recordingObserver captures dispatched events for assertions.
type recordingObserver struct {
	mu        sync.Mutex
	completed []*result.Result
	alerts    []ThresholdAlert
}

func (o *recordingObserver) OnCheckCompleted(_ context.Context, _ *endpoint.Endpoint, res *result.Result) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.completed = append(o.completed, res)
}

func (o *recordingObserver) OnThresholdExceeded(_ context.Context, alert ThresholdAlert) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.alerts = append(o.alerts, alert)
}

func (o *recordingObserver) alertCount() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.alerts)
}

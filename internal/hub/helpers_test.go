package hub

import (
	"context"
	"encoding/json"
	"errors"
	"net/http/httptest"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/dmkor-dev/uptimed/internal/auth"
	"github.com/dmkor-dev/uptimed/internal/domain/endpoint"
	"github.com/dmkor-dev/uptimed/internal/domain/result"
	"github.com/dmkor-dev/uptimed/internal/monitor"
)

// fakeCreds maps bearer tokens straight to user ids.
type fakeCreds struct {
	primaries   map[string]int64
	secondaries map[string]int64
	mintErr     error
}

func (f *fakeCreds) VerifyPrimary(token string) (int64, error) {
	if uid, ok := f.primaries[token]; ok {
		return uid, nil
	}
	return 0, auth.ErrTokenInvalid
}

func (f *fakeCreds) VerifySecondary(_ context.Context, token string) (int64, error) {
	if uid, ok := f.secondaries[token]; ok {
		delete(f.secondaries, token)
		return uid, nil
	}
	return 0, auth.ErrTokenInvalid
}

func (f *fakeCreds) MintPair(_ context.Context, userID int64) (auth.TokenPair, error) {
	if f.mintErr != nil {
		return auth.TokenPair{}, f.mintErr
	}
	return auth.TokenPair{Access: "minted-access", Refresh: "minted-refresh"}, nil
}

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
	var out []*endpoint.Endpoint
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

// hubFixture wires a hub with in-memory stores behind a test server.
type hubFixture struct {
	hub     *Hub
	creds   *fakeCreds
	eps     *memEndpoints
	results *memResults
	svc     *monitor.Service
	srv     *httptest.Server
}

func newHubFixture(t *testing.T, eps ...*endpoint.Endpoint) *hubFixture {
	t.Helper()
	log := zap.NewNop()
	creds := &fakeCreds{
		primaries:   map[string]int64{"token-a": 1, "token-b": 2},
		secondaries: map[string]int64{"refresh-a": 1},
	}
	store := newMemEndpoints(eps...)
	results := newMemResults()
	exec := monitor.NewExecutor(results, monitor.ExecutorConfig{UserAgent: "uptimed-test/1.0"}, log)
	svc := monitor.NewService(store, exec, monitor.NewTracker(), monitor.NewDispatcher(log), log)

	h := New(creds, store, results, svc, Config{WriteTimeout: time.Second}, log)
	srv := httptest.NewServer(NewRouter(h))
	t.Cleanup(srv.Close)
	return &hubFixture{hub: h, creds: creds, eps: store, results: results, svc: svc, srv: srv}
}

func (f *hubFixture) wsURL(query string) string {
	u := "ws" + strings.TrimPrefix(f.srv.URL, "http") + "/ws"
	if query != "" {
		u += "?" + query
	}
	return u
}

func (f *hubFixture) dial(t *testing.T, query string) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(f.wsURL(query), nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

type rawServerMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

func readMsg(t *testing.T, conn *websocket.Conn) rawServerMessage {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, raw, err := conn.ReadMessage()
	require.NoError(t, err)
	var msg rawServerMessage
	require.NoError(t, json.Unmarshal(raw, &msg))
	return msg
}

func expectSilence(t *testing.T, conn *websocket.Conn) {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(200*time.Millisecond)))
	_, _, err := conn.ReadMessage()
	require.Error(t, err)
	var ne interface{ Timeout() bool }
	require.True(t, errors.As(err, &ne) && ne.Timeout(), "expected a read timeout, got %v", err)
}

func send(t *testing.T, conn *websocket.Conn, msg clientMessage) {
	t.Helper()
	require.NoError(t, conn.WriteJSON(msg))
}

func waitConnected(t *testing.T, h *Hub, want int) {
	t.Helper()
	require.Eventually(t, func() bool {
		h.mu.RLock()
		defer h.mu.RUnlock()
		return len(h.clients) == want
	}, 2*time.Second, 10*time.Millisecond)
}

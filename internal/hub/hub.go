package hub

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/dmkor-dev/uptimed/internal/auth"
	"github.com/dmkor-dev/uptimed/internal/domain/endpoint"
	"github.com/dmkor-dev/uptimed/internal/domain/result"
	"github.com/dmkor-dev/uptimed/internal/monitor"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"
)

type Config struct {
	AllowedOrigins      []string
	WriteTimeout        time.Duration
	SendBuffer          int
	SnapshotWindowHours int
}

var (
	mConns = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "hub_connections", Help: "Open websocket connections.",
	})
	mPushes = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "hub_pushes_total", Help: "Messages pushed to clients by type.",
	}, []string{"type"})
	mDropped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "hub_dropped_total", Help: "Messages dropped on full client buffers.",
	})
	mAuthFail = promauto.NewCounter(prometheus.CounterOpts{
		Name: "hub_auth_failures_total", Help: "Rejected websocket handshakes.",
	})
)

// Hub tracks live client connections and routes monitoring events to the
// right subscribers. All registry mutation and broadcast paths go
// through one RWMutex so a broadcast never observes a half-updated entry.
type Hub struct {
	creds     auth.CredentialService
	endpoints endpoint.Store
	results   result.Store
	svc       *monitor.Service
	cfg       Config
	log       *zap.Logger
	upgrader  websocket.Upgrader

	mu      sync.RWMutex
	clients map[string]*Client
	byUser  map[int64]map[string]*Client
}

var _ monitor.Observer = (*Hub)(nil)

func New(creds auth.CredentialService, endpoints endpoint.Store, results result.Store, svc *monitor.Service, cfg Config, log *zap.Logger) *Hub {
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = 10 * time.Second
	}
	if cfg.SendBuffer <= 0 {
		cfg.SendBuffer = 64
	}
	if cfg.SnapshotWindowHours <= 0 {
		cfg.SnapshotWindowHours = 1
	}

	allowed := make(map[string]bool, len(cfg.AllowedOrigins))
	for _, o := range cfg.AllowedOrigins {
		allowed[o] = true
	}

	return &Hub{
		creds:     creds,
		endpoints: endpoints,
		results:   results,
		svc:       svc,
		cfg:       cfg,
		log:       log,
		clients:   make(map[string]*Client),
		byUser:    make(map[int64]map[string]*Client),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				if origin == "" {
					return true // non-browser clients
				}
				if allowed[origin] {
					return true
				}
				u, err := url.Parse(origin)
				if err != nil {
					return false
				}
				host := u.Hostname()
				return host == "localhost" || host == "127.0.0.1" || host == "::1"
			},
		},
	}
}

func (h *Hub) register(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[c.id] = c
	conns := h.byUser[c.userID]
	if conns == nil {
		conns = make(map[string]*Client)
		h.byUser[c.userID] = conns
	}
	conns[c.id] = c
	mConns.Inc()
	h.log.Info("client connected",
		zap.String("conn_id", c.id),
		zap.Int64("user_id", c.userID),
		zap.String("token_kind", c.tokenKind),
	)
}

func (h *Hub) unregister(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[c.id]; !ok {
		return
	}
	delete(h.clients, c.id)
	if conns := h.byUser[c.userID]; conns != nil {
		delete(conns, c.id)
		if len(conns) == 0 {
			delete(h.byUser, c.userID)
		}
	}
	c.closed = true
	close(c.send)
	mConns.Dec()
	h.log.Info("client disconnected", zap.String("conn_id", c.id), zap.Int64("user_id", c.userID))
}

func (h *Hub) subscribe(c *Client, endpointID int64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	c.subs[endpointID] = struct{}{}
}

func (h *Hub) unsubscribe(c *Client, endpointID int64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(c.subs, endpointID)
}

// ActiveUsers lists the distinct users with at least one open connection.
func (h *Hub) ActiveUsers() []int64 {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make([]int64, 0, len(h.byUser))
	for uid := range h.byUser {
		out = append(out, uid)
	}
	return out
}

// push hands a frame to one client; the caller holds h.mu. Slow clients
// lose messages rather than stalling the broadcast.
func (h *Hub) push(c *Client, msgType string, data []byte) {
	if c.closed {
		return
	}
	select {
	case c.send <- data:
		mPushes.WithLabelValues(msgType).Inc()
	default:
		mDropped.Inc()
	}
}

func (h *Hub) marshal(msgType string, payload any) []byte {
	data, err := json.Marshal(serverMessage{Type: msgType, Payload: payload})
	if err != nil {
		h.log.Error("marshal server message", zap.String("type", msgType), zap.Error(err))
		return nil
	}
	return data
}

func (h *Hub) sendTo(c *Client, msgType string, payload any) {
	data := h.marshal(msgType, payload)
	if data == nil {
		return
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	h.push(c, msgType, data)
}

// PushToUser delivers one message to every open connection of a user.
func (h *Hub) PushToUser(userID int64, msgType string, payload any) {
	data := h.marshal(msgType, payload)
	if data == nil {
		return
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, c := range h.byUser[userID] {
		h.push(c, msgType, data)
	}
}

// OnCheckCompleted routes a check update to the connections subscribed
// to that endpoint.
func (h *Hub) OnCheckCompleted(_ context.Context, ep *endpoint.Endpoint, res *result.Result) {
	data := h.marshal(msgEndpointUpdated, formatUpdate(res))
	if data == nil {
		return
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, c := range h.clients {
		if _, subscribed := c.subs[ep.ID]; subscribed {
			h.push(c, msgEndpointUpdated, data)
		}
	}
}

// OnThresholdExceeded is an account-level alert: every connection of the
// endpoint's owner gets it, subscribed or not.
func (h *Hub) OnThresholdExceeded(_ context.Context, alert monitor.ThresholdAlert) {
	h.PushToUser(alert.UserID, msgThresholdAlert, formatAlert(alert))
}

// EndpointDeleted is called by the CRUD layer after an endpoint is
// removed: the owner's connections are notified and every subscription
// to the endpoint is dropped.
func (h *Hub) EndpointDeleted(userID, endpointID int64) {
	data := h.marshal(msgEndpointDeleted, deletedPayload{EndpointID: endpointID})
	if data == nil {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, c := range h.clients {
		delete(c.subs, endpointID)
	}
	for _, c := range h.byUser[userID] {
		h.push(c, msgEndpointDeleted, data)
	}
}

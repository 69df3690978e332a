package hub

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/dmkor-dev/uptimed/internal/domain/endpoint"
	"github.com/dmkor-dev/uptimed/internal/domain/result"
	"github.com/dmkor-dev/uptimed/internal/monitor"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const maxHistoryLimit = 100

// Client is one authenticated websocket connection and its subscription
// set. The subs map is owned by the hub's mutex, closed is flipped by
// unregister under the same lock.
type Client struct {
	id          string
	userID      int64
	tokenKind   string
	connectedAt time.Time

	conn   *websocket.Conn
	send   chan []byte
	subs   map[int64]struct{}
	closed bool
}

func (c *Client) writePump(h *Hub) {
	defer c.conn.Close()
	for msg := range c.send {
		_ = c.conn.SetWriteDeadline(time.Now().Add(h.cfg.WriteTimeout))
		if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
			return
		}
	}
}

func (c *Client) readPump(h *Hub) {
	defer func() {
		h.unregister(c)
		c.conn.Close()
	}()
	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			return
		}
		var msg clientMessage
		if err := json.Unmarshal(raw, &msg); err != nil {
			h.sendTo(c, msgError, errorPayload{Message: "malformed message"})
			continue
		}
		h.handleMessage(c, msg)
	}
}

func (h *Hub) handleMessage(c *Client, msg clientMessage) {
	ctx := context.Background()
	switch msg.Type {
	case msgSubscribe:
		h.handleSubscribe(ctx, c, msg.EndpointID)
	case msgUnsubscribe:
		h.unsubscribe(c, msg.EndpointID)
	case msgRequestInitial:
		h.handleInitialData(ctx, c)
	case msgRequestHistory:
		h.handleHistory(ctx, c, msg.EndpointID, msg.Limit)
	default:
		h.sendTo(c, msgError, errorPayload{Message: "unknown message type"})
	}
}

// handleSubscribe registers interest in one endpoint and answers with a
// one-shot snapshot for the requesting connection only.
func (h *Hub) handleSubscribe(ctx context.Context, c *Client, endpointID int64) {
	ep, err := h.ownedEndpoint(ctx, c, endpointID)
	if err != nil {
		h.sendTo(c, msgError, errorPayload{Message: "endpoint not found"})
		return
	}
	h.subscribe(c, endpointID)

	snap := h.snapshot(ctx, ep)
	stats, err := h.results.AggregateStats(ctx, endpointID, h.cfg.SnapshotWindowHours)
	if err != nil {
		h.log.Warn("snapshot stats", zap.Int64("endpoint_id", endpointID), zap.Error(err))
	} else {
		snap.Stats = stats
	}
	h.sendTo(c, msgInitialData, initialData{Endpoints: []endpointSnapshot{snap}})
}

func (h *Hub) handleInitialData(ctx context.Context, c *Client) {
	eps, err := h.endpoints.ListByUser(ctx, c.userID)
	if err != nil {
		h.log.Warn("list endpoints", zap.Int64("user_id", c.userID), zap.Error(err))
		h.sendTo(c, msgError, errorPayload{Message: "failed to load endpoints"})
		return
	}
	out := make([]endpointSnapshot, 0, len(eps))
	for _, ep := range eps {
		out = append(out, h.snapshot(ctx, ep))
	}
	h.sendTo(c, msgInitialData, initialData{Endpoints: out})
}

func (h *Hub) handleHistory(ctx context.Context, c *Client, endpointID int64, limit int) {
	if _, err := h.ownedEndpoint(ctx, c, endpointID); err != nil {
		h.sendTo(c, msgError, errorPayload{Message: "endpoint not found"})
		return
	}
	if limit <= 0 || limit > maxHistoryLimit {
		limit = maxHistoryLimit
	}
	results, err := h.results.ListByEndpoint(ctx, endpointID, limit)
	if err != nil {
		h.log.Warn("endpoint history", zap.Int64("endpoint_id", endpointID), zap.Error(err))
		h.sendTo(c, msgError, errorPayload{Message: "failed to load history"})
		return
	}
	h.sendTo(c, msgEndpointHistory, historyPayload{EndpointID: endpointID, Results: results})
}

func (h *Hub) ownedEndpoint(ctx context.Context, c *Client, endpointID int64) (*endpoint.Endpoint, error) {
	ep, err := h.endpoints.GetByID(ctx, endpointID)
	if err != nil {
		return nil, err
	}
	if ep.UserID != c.userID {
		return nil, errNotOwner
	}
	return ep, nil
}

var errNotOwner = errors.New("endpoint belongs to another user")

func (h *Hub) snapshot(ctx context.Context, ep *endpoint.Endpoint) endpointSnapshot {
	failures := h.svc.Failures(ep.ID)
	latest, err := h.results.Latest(ctx, ep.ID)
	if err != nil {
		if !errors.Is(err, result.ErrNoPriorData) {
			h.log.Warn("latest result", zap.Int64("endpoint_id", ep.ID), zap.Error(err))
		}
		latest = nil
	}
	return endpointSnapshot{
		EndpointID:   ep.ID,
		Name:         ep.Name,
		Status:       monitor.DeriveStatus(ep, failures, latest),
		FailureCount: failures,
		Latest:       latest,
	}
}

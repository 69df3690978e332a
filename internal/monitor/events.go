package monitor

import (
	"context"
	"sync"
	"time"

	"github.com/dmkor-dev/uptimed/internal/domain/endpoint"
	"github.com/dmkor-dev/uptimed/internal/domain/result"

	"go.uber.org/zap"
)

// ThresholdAlert is emitted when an endpoint's consecutive failure count
// reaches its configured threshold. It is re-emitted on every failing
// check while the count stays at or above the threshold.
type ThresholdAlert struct {
	EndpointID   int64     `json:"endpoint_id"`
	EndpointName string    `json:"endpoint_name"`
	UserID       int64     `json:"user_id"`
	FailureCount int       `json:"failure_count"`
	Threshold    int       `json:"threshold"`
	At           time.Time `json:"at"`
}

// Observer receives pipeline events. Implementations must not block for
// long; dispatch is synchronous on the check path.
type Observer interface {
	OnCheckCompleted(ctx context.Context, ep *endpoint.Endpoint, res *result.Result)
	OnThresholdExceeded(ctx context.Context, alert ThresholdAlert)
}

// Dispatcher is an explicit observer list owned by the pipeline. A
// misbehaving observer never fails the check that produced the event.
type Dispatcher struct {
	mu        sync.RWMutex
	observers []Observer
	log       *zap.Logger
}

func NewDispatcher(log *zap.Logger) *Dispatcher {
	return &Dispatcher{log: log}
}

func (d *Dispatcher) Subscribe(o Observer) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.observers = append(d.observers, o)
}

func (d *Dispatcher) CheckCompleted(ctx context.Context, ep *endpoint.Endpoint, res *result.Result) {
	d.mu.RLock()
	obs := d.observers
	d.mu.RUnlock()
	for _, o := range obs {
		d.notify(func() { o.OnCheckCompleted(ctx, ep, res) })
	}
}

func (d *Dispatcher) ThresholdExceeded(ctx context.Context, alert ThresholdAlert) {
	d.mu.RLock()
	obs := d.observers
	d.mu.RUnlock()
	for _, o := range obs {
		d.notify(func() { o.OnThresholdExceeded(ctx, alert) })
	}
}

func (d *Dispatcher) notify(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			d.log.Warn("event observer panicked", zap.Any("panic", r))
		}
	}()
	fn()
}

package kafka

import (
	"context"
	"time"

	"github.com/dmkor-dev/uptimed/internal/domain/endpoint"
	"github.com/dmkor-dev/uptimed/internal/domain/result"
	"github.com/dmkor-dev/uptimed/internal/monitor"
	"github.com/dmkor-dev/uptimed/internal/obs"

	"go.uber.org/zap"
)

const (
	eventCheckCompleted    = "check-completed"
	eventThresholdExceeded = "threshold-exceeded"
)

type eventEnvelope struct {
	Event string    `json:"event"`
	At    time.Time `json:"at"`
	Data  any       `json:"data"`
}

// MonitorEventsKafka mirrors pipeline events onto a Kafka topic for
// external consumers (notifiers, analytics). Delivery is best effort;
// a broker outage never fails a check.
type MonitorEventsKafka struct {
	p   *Producer
	log *zap.Logger
}

var _ monitor.Observer = (*MonitorEventsKafka)(nil)

func NewMonitorEventsKafka(p *Producer, log *zap.Logger) *MonitorEventsKafka {
	return &MonitorEventsKafka{p: p, log: log}
}

func (e *MonitorEventsKafka) OnCheckCompleted(ctx context.Context, ep *endpoint.Endpoint, res *result.Result) {
	env := eventEnvelope{Event: eventCheckCompleted, At: res.CheckedAt, Data: res}
	if err := e.p.PublishJSON(ctx, KeyFromInt64(ep.ID), env); err != nil {
		obs.WithTrace(ctx, e.log).Warn("publish check-completed", zap.Int64("endpoint_id", ep.ID), zap.Error(err))
	}
}

func (e *MonitorEventsKafka) OnThresholdExceeded(ctx context.Context, alert monitor.ThresholdAlert) {
	env := eventEnvelope{Event: eventThresholdExceeded, At: alert.At, Data: alert}
	if err := e.p.PublishJSON(ctx, KeyFromInt64(alert.EndpointID), env); err != nil {
		obs.WithTrace(ctx, e.log).Warn("publish threshold-exceeded", zap.Int64("endpoint_id", alert.EndpointID), zap.Error(err))
	}
}

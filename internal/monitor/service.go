package monitor

import (
	"context"
	"errors"

	"github.com/dmkor-dev/uptimed/internal/domain/endpoint"
	"github.com/dmkor-dev/uptimed/internal/domain/result"
	"github.com/dmkor-dev/uptimed/internal/obs"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// ErrCheckInProgress is returned when a check is requested for an
// endpoint that already has one running. The caller should not retry.
var ErrCheckInProgress = errors.New("check already in progress")

var (
	mChecks = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "monitor_checks_total", Help: "Executed checks by outcome.",
	}, []string{"status"})
	mAlerts = promauto.NewCounter(prometheus.CounterOpts{
		Name: "monitor_threshold_alerts_total", Help: "Threshold alerts emitted.",
	})
	mCheckLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "monitor_check_latency_seconds",
		Help:    "Probe latency.",
		Buckets: prometheus.DefBuckets,
	})
)

// Service is the shared check pipeline: single-flight guard, probe,
// failure accounting and event dispatch. Scheduled and manual checks go
// through the same path.
type Service struct {
	endpoints endpoint.Store
	exec      *Executor
	tracker   *Tracker
	events    *Dispatcher
	log       *zap.Logger
}

func NewService(endpoints endpoint.Store, exec *Executor, tracker *Tracker, events *Dispatcher, log *zap.Logger) *Service {
	return &Service{
		endpoints: endpoints,
		exec:      exec,
		tracker:   tracker,
		events:    events,
		log:       log,
	}
}

// CheckEndpoint runs an on-demand check by id, sharing the scheduled
// checks' single-flight path.
func (s *Service) CheckEndpoint(ctx context.Context, id int64) (*result.Result, error) {
	ep, err := s.endpoints.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.Check(ctx, ep)
}

func (s *Service) Check(ctx context.Context, ep *endpoint.Endpoint) (*result.Result, error) {
	if !s.tracker.Begin(ep.ID) {
		return nil, ErrCheckInProgress
	}
	defer s.tracker.End(ep.ID)

	tr := otel.Tracer("monitor.service")
	ctx, span := tr.Start(ctx, "monitor.check",
		trace.WithAttributes(
			attribute.Int64("endpoint.id", ep.ID),
			attribute.String("endpoint.url", ep.URL),
		),
	)
	defer span.End()

	res, err := s.exec.Run(ctx, ep)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	if !ep.Active {
		// Prior result returned without a probe; no state to update.
		return res, nil
	}

	mChecks.WithLabelValues(string(res.Status)).Inc()
	mCheckLatency.Observe(float64(res.ResponseTime) / 1000)

	count := s.tracker.Record(res)
	s.events.CheckCompleted(ctx, ep, res)

	if res.Status != result.StatusSuccess && ep.FailureThreshold > 0 && count >= ep.FailureThreshold {
		alert := ThresholdAlert{
			EndpointID:   ep.ID,
			EndpointName: ep.Name,
			UserID:       ep.UserID,
			FailureCount: count,
			Threshold:    ep.FailureThreshold,
			At:           res.CheckedAt,
		}
		mAlerts.Inc()
		obs.WithTrace(ctx, s.log).Warn("failure threshold exceeded",
			zap.Int64("endpoint_id", ep.ID),
			zap.Int("failures", count),
			zap.Int("threshold", ep.FailureThreshold),
		)
		s.events.ThresholdExceeded(ctx, alert)
	}
	return res, nil
}

// Failures reports the current consecutive failure count for an endpoint.
func (s *Service) Failures(endpointID int64) int { return s.tracker.Failures(endpointID) }

// InFlight reports whether a check is currently running for an endpoint.
func (s *Service) InFlight(endpointID int64) bool { return s.tracker.InFlight(endpointID) }

package monitor

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/dmkor-dev/uptimed/internal/domain/endpoint"
	"github.com/dmkor-dev/uptimed/internal/domain/result"
	"github.com/dmkor-dev/uptimed/internal/obs"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

type SchedulerConfig struct {
	Tick      time.Duration
	BatchSize int
}

var (
	mCycles = promauto.NewCounter(prometheus.CounterOpts{
		Name: "scheduler_cycles_total", Help: "Completed scheduler cycles.",
	})
	mDispatched = promauto.NewCounter(prometheus.CounterOpts{
		Name: "scheduler_checks_dispatched_total", Help: "Due endpoints dispatched.",
	})
	mSkipped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "scheduler_checks_skipped_total", Help: "Endpoints skipped (check in flight).",
	})
	mCycleDur = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "scheduler_cycle_duration_seconds",
		Help:    "Cycle duration.",
		Buckets: prometheus.DefBuckets,
	})
)

// Scheduler drives the recurring check cycle: every tick it scans active
// endpoints, selects the due ones and dispatches them in bounded waves.
type Scheduler struct {
	svc       *Service
	endpoints endpoint.Store
	results   result.Store
	cfg       SchedulerConfig
	log       *zap.Logger
	now       func() time.Time

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

func NewScheduler(svc *Service, endpoints endpoint.Store, results result.Store, cfg SchedulerConfig, log *zap.Logger) *Scheduler {
	if cfg.Tick <= 0 {
		cfg.Tick = 30 * time.Second
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 10
	}
	return &Scheduler{
		svc:       svc,
		endpoints: endpoints,
		results:   results,
		cfg:       cfg,
		log:       log,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// Start launches the cycle loop: one immediate cycle, then one per tick.
// Calling Start while running is a logged no-op.
func (s *Scheduler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		s.log.Info("scheduler already running")
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.done = make(chan struct{})
	s.log.Info("scheduler starting",
		zap.Duration("tick", s.cfg.Tick),
		zap.Int("batch_size", s.cfg.BatchSize),
	)
	go s.loop(ctx)
}

// Stop halts scheduling of new cycles. In-flight checks finish on their
// own; their contexts are not derived from the loop's.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if s.cancel == nil {
		s.mu.Unlock()
		return
	}
	s.cancel()
	s.cancel = nil
	done := s.done
	s.mu.Unlock()

	<-done
	s.log.Info("scheduler stopped")
}

func (s *Scheduler) loop(ctx context.Context) {
	defer close(s.done)

	ticker := time.NewTicker(s.cfg.Tick)
	defer ticker.Stop()

	s.runCycle(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.runCycle(ctx)
		}
	}
}

func (s *Scheduler) runCycle(ctx context.Context) {
	start := time.Now()

	tr := otel.Tracer("monitor.scheduler")
	ctx, span := tr.Start(ctx, "scheduler.cycle")
	defer span.End()

	due := s.collectDue(ctx)
	span.SetAttributes(attribute.Int("cycle.due", len(due)))
	if len(due) == 0 {
		mCycles.Inc()
		mCycleDur.Observe(time.Since(start).Seconds())
		return
	}

	// Waves of BatchSize, each fully awaited before the next. Checks run
	// on a fresh context so Stop never cancels a probe mid-flight.
	for i := 0; i < len(due); i += s.cfg.BatchSize {
		end := i + s.cfg.BatchSize
		if end > len(due) {
			end = len(due)
		}
		var g errgroup.Group
		for _, ep := range due[i:end] {
			g.Go(func() error {
				if _, err := s.svc.Check(context.Background(), ep); err != nil && !errors.Is(err, ErrCheckInProgress) {
					obs.WithTrace(ctx, s.log).Warn("scheduled check failed",
						zap.Int64("endpoint_id", ep.ID),
						zap.Error(err),
					)
				}
				return nil
			})
		}
		_ = g.Wait()
	}

	mCycles.Inc()
	mDispatched.Add(float64(len(due)))
	mCycleDur.Observe(time.Since(start).Seconds())
	s.log.Debug("cycle complete",
		zap.Int("due", len(due)),
		zap.Duration("took", time.Since(start)),
	)
}

func (s *Scheduler) collectDue(ctx context.Context) []*endpoint.Endpoint {
	eps, err := s.endpoints.ListActive(ctx)
	if err != nil {
		s.log.Warn("list active endpoints", zap.Error(err))
		return nil
	}

	now := s.now()
	due := make([]*endpoint.Endpoint, 0, len(eps))
	for _, ep := range eps {
		if s.svc.InFlight(ep.ID) {
			mSkipped.Inc()
			continue
		}
		latest, err := s.results.Latest(ctx, ep.ID)
		switch {
		case errors.Is(err, result.ErrNoPriorData):
			due = append(due, ep)
		case err != nil:
			s.log.Warn("latest result lookup", zap.Int64("endpoint_id", ep.ID), zap.Error(err))
		case now.Sub(latest.CheckedAt) >= ep.Interval:
			due = append(due, ep)
		}
	}
	return due
}

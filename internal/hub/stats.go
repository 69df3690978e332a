package hub

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/dmkor-dev/uptimed/internal/domain/endpoint"
	"github.com/dmkor-dev/uptimed/internal/domain/result"
	"github.com/dmkor-dev/uptimed/internal/monitor"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"
)

type StatsConfig struct {
	Tick        time.Duration
	WindowHours int
}

// StatsBroadcaster recomputes per-user aggregate liveness every tick and
// pushes it to all of that user's connections. Users are processed in
// independent goroutines; one user's failure never blocks the others.
type StatsBroadcaster struct {
	hub       *Hub
	endpoints endpoint.Store
	results   result.Store
	svc       *monitor.Service
	cfg       StatsConfig
	log       *zap.Logger
}

var (
	mBroadcasts = promauto.NewCounter(prometheus.CounterOpts{
		Name: "stats_broadcasts_total", Help: "Per-user live-stats pushes.",
	})
	mStatErrors = promauto.NewCounter(prometheus.CounterOpts{
		Name: "stats_broadcast_errors_total", Help: "Failed per-user stat computations.",
	})
	mStatTickDur = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "stats_tick_duration_seconds",
		Help:    "Stats tick duration.",
		Buckets: prometheus.DefBuckets,
	})
)

func NewStatsBroadcaster(h *Hub, endpoints endpoint.Store, results result.Store, svc *monitor.Service, cfg StatsConfig, log *zap.Logger) *StatsBroadcaster {
	if cfg.Tick <= 0 {
		cfg.Tick = 5 * time.Second
	}
	if cfg.WindowHours <= 0 {
		cfg.WindowHours = 24
	}
	return &StatsBroadcaster{
		hub:       h,
		endpoints: endpoints,
		results:   results,
		svc:       svc,
		cfg:       cfg,
		log:       log,
	}
}

func (b *StatsBroadcaster) Run(ctx context.Context) error {
	ticker := time.NewTicker(b.cfg.Tick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			b.tick(ctx)
		}
	}
}

func (b *StatsBroadcaster) tick(ctx context.Context) {
	start := time.Now()
	users := b.hub.ActiveUsers()

	var wg sync.WaitGroup
	for _, uid := range users {
		wg.Add(1)
		go func() {
			defer wg.Done()
			defer func() {
				if r := recover(); r != nil {
					mStatErrors.Inc()
					b.log.Warn("stats broadcast panicked", zap.Int64("user_id", uid), zap.Any("panic", r))
				}
			}()
			snap, err := b.Snapshot(ctx, uid)
			if err != nil {
				mStatErrors.Inc()
				b.log.Warn("compute user stats", zap.Int64("user_id", uid), zap.Error(err))
				return
			}
			b.hub.PushToUser(uid, msgLiveStats, snap)
			mBroadcasts.Inc()
		}()
	}
	wg.Wait()
	mStatTickDur.Observe(time.Since(start).Seconds())
}

// Snapshot computes the aggregate liveness metrics over one user's
// active endpoints.
func (b *StatsBroadcaster) Snapshot(ctx context.Context, userID int64) (*LiveStats, error) {
	eps, err := b.endpoints.ListByUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	var (
		snap      LiveStats
		respSum   float64
		uptimeSum float64
		sampled   int
	)
	for _, ep := range eps {
		if !ep.Active {
			continue
		}
		snap.TotalActive++

		latest, err := b.results.Latest(ctx, ep.ID)
		if err != nil {
			if !errors.Is(err, result.ErrNoPriorData) {
				return nil, err
			}
			latest = nil
		}
		switch monitor.DeriveStatus(ep, b.svc.Failures(ep.ID), latest) {
		case monitor.StatusUp:
			snap.Up++
		case monitor.StatusDegraded:
			snap.Degraded++
		case monitor.StatusDown:
			snap.Down++
		}

		stats, err := b.results.AggregateStats(ctx, ep.ID, b.cfg.WindowHours)
		if err != nil {
			return nil, err
		}
		if stats.Total > 0 {
			respSum += stats.AvgResponseTime
			uptimeSum += stats.UptimePercent
			sampled++
		}
	}
	if sampled > 0 {
		snap.AvgResponseTime = respSum / float64(sampled)
		snap.AvgUptime = uptimeSum / float64(sampled)
	}
	return &snap, nil
}

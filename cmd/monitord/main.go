package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dmkor-dev/uptimed/internal/auth"
	config "github.com/dmkor-dev/uptimed/internal/config/monitord"
	"github.com/dmkor-dev/uptimed/internal/hub"
	"github.com/dmkor-dev/uptimed/internal/monitor"
	"github.com/dmkor-dev/uptimed/internal/obs"
	kafkaRepo "github.com/dmkor-dev/uptimed/internal/repository/kafka"
	pg "github.com/dmkor-dev/uptimed/internal/repository/postgres"

	"go.uber.org/zap"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(os.Getenv("CONFIG_PATH"))
	if err != nil {
		log.Fatal(err)
	}

	l, err := obs.NewLogger(cfg.Log.AsLoggerConfig())
	if err != nil {
		log.Fatal(err)
	}
	l.Info("starting monitord",
		zap.String("hub_addr", cfg.Hub.Addr),
		zap.String("metrics_addr", cfg.MetricsAddr),
		zap.Duration("tick", cfg.Monitor.Tick),
	)

	otelCloser, err := obs.SetupOTel(ctx, cfg.OTEL.AsOTELConfig())
	if err != nil {
		l.Fatal("otel init", zap.Error(err))
	}
	defer func() { _ = otelCloser.Shutdown(context.Background()) }()

	db, err := pg.NewDB(ctx, cfg.DB)
	if err != nil {
		l.Fatal("db connect", zap.Error(err))
	}
	defer db.Close()

	ms := obs.BootstrapMetricsServer(cfg.MetricsAddr, func(hctx context.Context) error {
		return db.Pool.Ping(hctx)
	}, l)

	// wiring
	endpoints := pg.NewEndpointRepo(db)
	results := pg.NewResultRepo(db)
	creds := auth.NewService(pg.NewRefreshTokenRepo(db), auth.Config{
		Secret:     []byte(cfg.Auth.Secret),
		AccessTTL:  cfg.Auth.AccessTTL,
		RefreshTTL: cfg.Auth.RefreshTTL,
	})

	tracker := monitor.NewTracker()
	events := monitor.NewDispatcher(l)
	exec := monitor.NewExecutor(results, monitor.ExecutorConfig{
		UserAgent:   cfg.Probe.UserAgent,
		VerifyTLS:   cfg.Probe.VerifyTLS,
		MaxSnapshot: cfg.Probe.MaxSnapshot,
	}, l)
	svc := monitor.NewService(endpoints, exec, tracker, events, l)

	wsHub := hub.New(creds, endpoints, results, svc, hub.Config{
		AllowedOrigins:      cfg.Hub.AllowedOrigins,
		WriteTimeout:        cfg.Hub.WriteTimeout,
		SendBuffer:          cfg.Hub.SendBuffer,
		SnapshotWindowHours: 1,
	}, l)
	events.Subscribe(wsHub)

	if cfg.Kafka.Enable {
		prod := kafkaRepo.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.Topic, l)
		defer func() { _ = prod.Close() }()
		events.Subscribe(kafkaRepo.NewMonitorEventsKafka(prod, l))
	}

	sched := monitor.NewScheduler(svc, endpoints, results, monitor.SchedulerConfig{
		Tick:      cfg.Monitor.Tick,
		BatchSize: cfg.Monitor.BatchSize,
	}, l)
	sched.Start()
	defer sched.Stop()

	stats := hub.NewStatsBroadcaster(wsHub, endpoints, results, svc, hub.StatsConfig{
		Tick:        cfg.Stats.Tick,
		WindowHours: cfg.Stats.WindowHours,
	}, l)
	go func() {
		if err := stats.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			l.Error("stats broadcaster", zap.Error(err))
		}
	}()

	srv := &http.Server{
		Addr:         cfg.Hub.Addr,
		Handler:      hub.NewRouter(wsHub),
		ReadTimeout:  10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()

	l.Info("monitord started")

	select {
	case <-ctx.Done():
	case err = <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			l.Error("hub server error", zap.Error(err))
		}
	}

	shCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	_ = srv.Shutdown(shCtx)
	_ = ms.Shutdown(shCtx)
	l.Info("bye")
}

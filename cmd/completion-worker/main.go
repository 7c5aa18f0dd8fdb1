package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/hackgods/clinic-availability/internal/appointment"
	"github.com/hackgods/clinic-availability/internal/availability"
	"github.com/hackgods/clinic-availability/internal/config"
	"github.com/hackgods/clinic-availability/internal/db"
	"github.com/hackgods/clinic-availability/internal/logger"
	"github.com/hackgods/clinic-availability/internal/metrics"
	redisclient "github.com/hackgods/clinic-availability/internal/redis"
	"github.com/hackgods/clinic-availability/internal/scheduling"
)

// batchSize caps how many appointments one run completes.
const batchSize = 500

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config load error: %v", err)
	}

	lg, err := logger.New(cfg.Env, cfg.LogLevel)
	if err != nil {
		log.Fatalf("logger init error: %v", err)
	}
	defer func() { _ = lg.Sync() }()

	lg.Info("completion-worker starting up",
		zap.String("env", cfg.Env),
		zap.Duration("interval", cfg.WorkerInterval),
		zap.Duration("grace", cfg.CompletionGrace),
	)

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Connect Postgres
	pgCtx, cancelPg := context.WithTimeout(rootCtx, 10*time.Second)
	pgPool, err := db.ConnectPostgres(pgCtx, cfg.PostgresDSN, db.PoolOptions{
		MaxConns:        2,
		ApplicationName: "clinic-completion-worker",
	})
	cancelPg()
	if err != nil {
		lg.Fatal("postgres connection error", zap.Error(err))
	}
	defer pgPool.Close()
	lg.Info("connected to Postgres")

	// status updates never book time, so the worker needs no doctor lock
	repo := appointment.NewPgRepository(pgPool)
	m := metrics.New("clinic_worker", prometheus.DefaultRegisterer)
	profiles := availability.NewService(availability.NewPgRepository(pgPool), 0, lg.Named("availability"))
	engine := scheduling.NewEngine(profiles, repo, m, lg.Named("scheduling"))
	svc := appointment.NewService(repo, engine, redisclient.NoopLocker{}, m, lg.Named("appointment"))

	// Run once at startup
	runOnce(rootCtx, svc, cfg.CompletionGrace, lg)

	ticker := time.NewTicker(cfg.WorkerInterval)
	defer ticker.Stop()

	for {
		select {
		case <-rootCtx.Done():
			lg.Info("shutdown signal received, stopping completion worker")
			return
		case <-ticker.C:
			runOnce(rootCtx, svc, cfg.CompletionGrace, lg)
		}
	}
}

func runOnce(ctx context.Context, svc *appointment.Service, grace time.Duration, lg *zap.Logger) {
	runCtx, cancel := context.WithTimeout(ctx, 20*time.Second)
	defer cancel()

	start := time.Now()
	n, err := svc.CompleteElapsed(runCtx, grace, batchSize)
	if err != nil {
		lg.Error("completion run error", zap.Error(err))
		return
	}
	lg.Info("completion run complete", zap.Int("completed", n), zap.Duration("took", time.Since(start)))
}

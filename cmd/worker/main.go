// Package main is the entry point for the background worker.
// It runs queued CSV imports and PDF pre-renders for every tenant.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"produceledger/internal/app"
	"produceledger/internal/config"
	"produceledger/internal/core/tenant"
	"produceledger/internal/infrastructure/cache"
	"produceledger/internal/infrastructure/jobs"
	"produceledger/internal/infrastructure/metrics"
	"produceledger/internal/infrastructure/pdf"
	"produceledger/internal/infrastructure/storage/postgres"
	"produceledger/pkg/logger"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "worker: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if !cfg.HasRedis() {
		return errors.New("REDIS_ADDR is required by the worker")
	}
	log, err := logger.New(cfg.Logger())
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer func() { _ = log.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	log.Infow("starting produceledger worker", "concurrency", cfg.WorkerConcurrency)

	metaCfg := postgres.DefaultPoolConfig(cfg.MetaDatabaseURL)
	metaCfg.ApplicationName = "produceledger-worker"
	metaPool, err := postgres.NewPool(ctx, metaCfg)
	if err != nil {
		return fmt.Errorf("meta database: %w", err)
	}
	defer metaPool.Close()

	// shorter idle timeout: the worker touches tenants in bursts
	managerCfg := cfg.TenantManager()
	managerCfg.IdleTimeout = 10 * time.Minute
	manager := tenant.NewManager(managerCfg, tenant.NewPostgresRegistry(metaPool), log)
	defer manager.Close()

	rdb, err := cache.New(ctx, cfg.Redis())
	if err != nil {
		return fmt.Errorf("redis: %w", err)
	}
	defer rdb.Close()

	renderer, err := pdf.NewRenderer(cfg.PDF())
	if err != nil {
		return fmt.Errorf("pdf renderer: %w", err)
	}
	defer renderer.Close()

	svc, err := app.NewServices(app.Deps{
		Rates:    cfg.Rates(),
		JWT:      cfg.JWT(),
		Cache:    cache.NewVersioned(rdb, cfg.CacheTTL),
		Renderer: renderer,
	})
	if err != nil {
		return err
	}

	m := metrics.New()
	bind := func(ctx context.Context, tenantID string) (context.Context, func(), error) {
		return postgres.BindTenant(ctx, manager, tenantID)
	}
	worker := jobs.NewWorker(cfg.Queue(), cfg.WorkerConcurrency, jobs.NewHandlers(bind, svc.Importer, svc.Invoices, m, log), log)

	metricsServer := &http.Server{
		Addr:              cfg.WorkerMetricsAddr,
		Handler:           m.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return worker.Run(gctx)
	})
	g.Go(func() error {
		log.Infow("metrics listening", "addr", cfg.WorkerMetricsAddr)
		if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("metrics server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		return metricsServer.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		return err
	}
	log.Info("worker stopped")
	return nil
}

// Package main is the entry point for the API server.
// Multi-tenant architecture: Database-per-Tenant.
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

	"produceledger/internal/app"
	"produceledger/internal/config"
	"produceledger/internal/core/tenant"
	"produceledger/internal/domain/documents/sales"
	"produceledger/internal/infrastructure/cache"
	v1 "produceledger/internal/infrastructure/http/v1"
	"produceledger/internal/infrastructure/http/v1/handlers"
	"produceledger/internal/infrastructure/jobs"
	"produceledger/internal/infrastructure/metrics"
	"produceledger/internal/infrastructure/pdf"
	"produceledger/internal/infrastructure/storage/postgres"
	"produceledger/pkg/logger"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "server: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	log, err := logger.New(cfg.Logger())
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer func() { _ = log.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	log.Infow("starting produceledger server", "env", cfg.AppEnv)

	// --- Meta-database ---
	metaCfg := postgres.DefaultPoolConfig(cfg.MetaDatabaseURL)
	metaCfg.ApplicationName = "produceledger-server"
	metaPool, err := postgres.NewPool(ctx, metaCfg)
	if err != nil {
		return fmt.Errorf("meta database: %w", err)
	}
	defer metaPool.Close()

	// --- Tenant pools ---
	manager := tenant.NewManager(cfg.TenantManager(), tenant.NewPostgresRegistry(metaPool), log)
	defer manager.Close()
	if cfg.PrewarmTenantPools {
		if err := manager.Prewarm(ctx); err != nil {
			log.Warnw("failed to prewarm some pools", "error", err)
		}
	}

	// --- Redis: cache and job queue ---
	var (
		versioned  *cache.Versioned
		jobsClient *jobs.Client
		queue      handlers.ImportQueue
	)
	if cfg.HasRedis() {
		rdb, err := cache.New(ctx, cfg.Redis())
		if err != nil {
			return fmt.Errorf("redis: %w", err)
		}
		defer rdb.Close()
		versioned = cache.NewVersioned(rdb, cfg.CacheTTL)

		jobsClient = jobs.NewClient(cfg.Queue())
		defer jobsClient.Close()
		queue = jobsClient
	} else {
		log.Warn("REDIS_ADDR is empty: caching and background imports are disabled")
	}

	renderer, err := pdf.NewRenderer(cfg.PDF())
	if err != nil {
		return fmt.Errorf("pdf renderer: %w", err)
	}
	defer renderer.Close()

	svc, err := app.NewServices(app.Deps{
		Rates:    cfg.Rates(),
		JWT:      cfg.JWT(),
		Cache:    versioned,
		Renderer: renderer,
	})
	if err != nil {
		return err
	}
	if jobsClient != nil {
		svc.OnSalesFinalized(func(ctx context.Context, inv *sales.Invoice) {
			jobsClient.EnqueueRender(ctx, jobs.KindSales, jobs.RenderInvoicePayload{InvoiceID: inv.ID})
		})
	}

	router := v1.NewRouter(v1.RouterConfig{
		Bind: func(ctx context.Context, tenantID string) (context.Context, func(), error) {
			return postgres.BindTenant(ctx, manager, tenantID)
		},
		Meta:         metaPool,
		Pools:        manager,
		Logger:       log,
		JWTValidator: svc.JWT,
		Services:     svc,
		Queue:        queue,
		Metrics:      metrics.New(),
	})

	server := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           app.Harden(cfg, router),
		ReadTimeout:       cfg.ReadTimeout,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       60 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		log.Infow("server starting", "addr", cfg.HTTPAddr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		return fmt.Errorf("listen: %w", err)
	case <-ctx.Done():
	}

	log.Info("shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	log.Info("server stopped")
	return nil
}

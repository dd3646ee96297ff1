package tenant

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/sync/errgroup"

	"produceledger/pkg/logger"
)

// ManagerConfig configures the pool manager.
type ManagerConfig struct {
	DBUser     string
	DBPassword string
	DBSSLMode  string

	MaxConnsPerTenant int32
	MinConnsPerTenant int32
	ConnectTimeout    time.Duration

	// MaxPools caps simultaneously open tenant pools (0 = unlimited).
	MaxPools int
	// IdleTimeout closes a pool after this long without requests (0 = never).
	IdleTimeout time.Duration
	// RefreshPeriod reloads tenant rows so settings and status changes apply
	// without a restart (0 = never).
	RefreshPeriod time.Duration
}

// DefaultManagerConfig returns production-safe defaults.
func DefaultManagerConfig() ManagerConfig {
	return ManagerConfig{
		MaxConnsPerTenant: 10,
		MinConnsPerTenant: 1,
		ConnectTimeout:    10 * time.Second,
		MaxPools:          100,
		IdleTimeout:       30 * time.Minute,
		RefreshPeriod:     time.Minute,
	}
}

// ManagedPool is a tenant pool with usage tracking.
type ManagedPool struct {
	pool     *pgxpool.Pool
	tenant   atomic.Pointer[Tenant]
	lastUsed atomic.Int64
	inFlight atomic.Int32
}

func (mp *ManagedPool) Pool() *pgxpool.Pool { return mp.pool }

// Tenant returns the most recently loaded tenant row.
func (mp *ManagedPool) Tenant() *Tenant { return mp.tenant.Load() }

func (mp *ManagedPool) touch() { mp.lastUsed.Store(time.Now().Unix()) }

// Manager opens and caches one pgx pool per tenant database.
// Safe for concurrent use.
type Manager struct {
	config   ManagerConfig
	registry Registry

	mu    sync.Mutex
	pools map[string]*ManagedPool

	stop context.CancelFunc
	wg   sync.WaitGroup
	log  *logger.Logger
}

// NewManager starts the manager and its background loops.
func NewManager(cfg ManagerConfig, registry Registry, log *logger.Logger) *Manager {
	ctx, cancel := context.WithCancel(context.Background())
	m := &Manager{
		config:   cfg,
		registry: registry,
		pools:    make(map[string]*ManagedPool),
		stop:     cancel,
		log:      log.WithComponent("tenant-manager"),
	}

	if cfg.IdleTimeout > 0 {
		m.every(ctx, cfg.IdleTimeout/2, m.evictIdle)
	}
	if cfg.RefreshPeriod > 0 {
		m.every(ctx, cfg.RefreshPeriod, m.refreshTenants)
	}
	return m
}

func (m *Manager) every(ctx context.Context, period time.Duration, fn func(context.Context)) {
	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		ticker := time.NewTicker(period)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				fn(ctx)
			}
		}
	}()
}

// Acquire returns the tenant pool, opening it on first use.
// The caller must invoke release when the request is done.
func (m *Manager) Acquire(ctx context.Context, tenantID string) (*ManagedPool, func(), error) {
	mp, err := m.get(ctx, tenantID)
	if err != nil {
		return nil, nil, err
	}
	mp.inFlight.Add(1)
	mp.touch()
	return mp, func() { mp.inFlight.Add(-1) }, nil
}

func (m *Manager) get(ctx context.Context, tenantID string) (*ManagedPool, error) {
	m.mu.Lock()
	mp, ok := m.pools[tenantID]
	m.mu.Unlock()
	if ok {
		if !mp.Tenant().IsActive() {
			return nil, fmt.Errorf("%w: status=%s", ErrTenantNotActive, mp.Tenant().Status)
		}
		return mp, nil
	}
	return m.open(ctx, tenantID)
}

func (m *Manager) open(ctx context.Context, tenantID string) (*ManagedPool, error) {
	t, err := m.registry.GetByID(ctx, tenantID)
	if err != nil {
		if errors.Is(err, ErrTenantNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("tenant lookup: %w", err)
	}
	if !t.IsActive() {
		return nil, fmt.Errorf("%w: status=%s", ErrTenantNotActive, t.Status)
	}

	poolCfg, err := pgxpool.ParseConfig(t.DSN(m.config.DBUser, m.config.DBPassword, m.config.DBSSLMode))
	if err != nil {
		return nil, fmt.Errorf("parse dsn for tenant %s: %w", t.Slug, err)
	}
	poolCfg.MaxConns = m.config.MaxConnsPerTenant
	poolCfg.MinConns = m.config.MinConnsPerTenant
	poolCfg.ConnConfig.ConnectTimeout = m.config.ConnectTimeout
	poolCfg.ConnConfig.RuntimeParams["application_name"] = "produceledger"

	openCtx, cancel := context.WithTimeout(ctx, m.config.ConnectTimeout)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(openCtx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("open pool for tenant %s: %w", t.Slug, err)
	}
	if err := pool.Ping(openCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping tenant %s: %w", t.Slug, err)
	}

	mp := &ManagedPool{pool: pool}
	mp.tenant.Store(t)
	mp.touch()

	m.mu.Lock()
	defer m.mu.Unlock()
	if existing, ok := m.pools[tenantID]; ok {
		pool.Close()
		return existing, nil
	}
	if m.config.MaxPools > 0 && len(m.pools) >= m.config.MaxPools {
		pool.Close()
		return nil, fmt.Errorf("%w (%d)", ErrMaxPoolLimit, m.config.MaxPools)
	}
	m.pools[tenantID] = mp

	m.log.Infow("opened tenant pool", "tenant_id", tenantID, "db_name", t.DBName, "open_pools", len(m.pools))
	return mp, nil
}

func (m *Manager) evictIdle(context.Context) {
	threshold := time.Now().Add(-m.config.IdleTimeout).Unix()

	m.mu.Lock()
	defer m.mu.Unlock()
	for id, mp := range m.pools {
		if mp.inFlight.Load() > 0 || mp.lastUsed.Load() >= threshold {
			continue
		}
		delete(m.pools, id)
		mp.pool.Close()
		m.log.Infow("closed idle tenant pool", "tenant_id", id, "open_pools", len(m.pools))
	}
}

func (m *Manager) refreshTenants(ctx context.Context) {
	m.mu.Lock()
	ids := make([]string, 0, len(m.pools))
	for id := range m.pools {
		ids = append(ids, id)
	}
	m.mu.Unlock()

	for _, id := range ids {
		t, err := m.registry.GetByID(ctx, id)
		if err != nil {
			m.log.Warnw("tenant refresh failed", "tenant_id", id, "error", err)
			continue
		}
		m.mu.Lock()
		if mp, ok := m.pools[id]; ok {
			mp.tenant.Store(t)
		}
		m.mu.Unlock()
	}
}

// Prewarm opens pools for every active tenant concurrently.
func (m *Manager) Prewarm(ctx context.Context) error {
	tenants, err := m.registry.ListActive(ctx)
	if err != nil {
		return fmt.Errorf("list active tenants: %w", err)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(8)
	for _, t := range tenants {
		g.Go(func() error {
			if _, err := m.get(gctx, t.ID); err != nil {
				return fmt.Errorf("prewarm %s: %w", t.Slug, err)
			}
			return nil
		})
	}
	return g.Wait()
}

// ActiveTenants lists active tenants from the registry.
func (m *Manager) ActiveTenants(ctx context.Context) ([]*Tenant, error) {
	return m.registry.ListActive(ctx)
}

// OpenPools returns the number of pools currently held.
func (m *Manager) OpenPools() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.pools)
}

// Close stops background loops and closes every pool.
func (m *Manager) Close() {
	m.stop()
	m.wg.Wait()

	m.mu.Lock()
	defer m.mu.Unlock()
	for id, mp := range m.pools {
		mp.pool.Close()
		delete(m.pools, id)
	}
	m.log.Info("tenant manager closed")
}

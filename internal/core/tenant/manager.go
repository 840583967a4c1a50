package tenant

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"setflow/pkg/logger"
)

// ManagerConfig tunes the per-tenant pools.
type ManagerConfig struct {
	DBUser     string
	DBPassword string

	MaxConnsPerTenant int32
	MinConnsPerTenant int32
	ConnectTimeout    time.Duration

	MaxTotalPools   int           // 0 = unlimited
	PoolIdleTimeout time.Duration // 0 = keep forever
	HealthCheck     time.Duration // 0 = never ping
	AppName         string        // reported as application_name
}

func DefaultManagerConfig() ManagerConfig {
	return ManagerConfig{
		MaxConnsPerTenant: 8,
		MinConnsPerTenant: 1,
		ConnectTimeout:    10 * time.Second,
		MaxTotalPools:     200,
		PoolIdleTimeout:   30 * time.Minute,
		HealthCheck:       time.Minute,
		AppName:           "setflow",
	}
}

// ManagedPool is a tenant pool plus bookkeeping for eviction.
type ManagedPool struct {
	pool     *pgxpool.Pool
	tenant   *Tenant
	lastUsed atomic.Int64
	inFlight atomic.Int32
	failing  atomic.Bool
}

func (mp *ManagedPool) Pool() *pgxpool.Pool { return mp.pool }
func (mp *ManagedPool) Tenant() *Tenant     { return mp.tenant }

// Acquire marks the pool busy for the lifetime of a request. Call the
// returned func when the request ends.
func (mp *ManagedPool) Acquire() (release func()) {
	mp.inFlight.Add(1)
	mp.lastUsed.Store(time.Now().Unix())
	return func() { mp.inFlight.Add(-1) }
}

// Manager lazily opens one pool per tenant and closes idle or broken ones.
type Manager struct {
	cfg      ManagerConfig
	registry Registry
	log      *logger.Logger

	mu    sync.Mutex
	pools map[string]*ManagedPool

	stop chan struct{}
	done chan struct{}
}

func NewManager(cfg ManagerConfig, registry Registry, log *logger.Logger) *Manager {
	m := &Manager{
		cfg:      cfg,
		registry: registry,
		log:      log.WithComponent("tenant-manager"),
		pools:    make(map[string]*ManagedPool),
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
	go m.janitor()
	m.log.Infow("tenant manager started",
		"max_pools", cfg.MaxTotalPools,
		"idle_timeout", cfg.PoolIdleTimeout,
	)
	return m
}

func (m *Manager) Registry() Registry { return m.registry }

// Resolve accepts a tenant UUID or slug and returns its pool.
func (m *Manager) Resolve(ctx context.Context, ref string) (*ManagedPool, error) {
	m.mu.Lock()
	for _, mp := range m.pools {
		if mp.tenant.ID == ref || mp.tenant.Slug == ref {
			m.mu.Unlock()
			return mp, nil
		}
	}
	m.mu.Unlock()

	t, err := m.registry.Lookup(ctx, ref)
	if err != nil {
		return nil, err
	}
	return m.GetPool(ctx, t.ID)
}

// GetPool returns the pool of tenantID, opening it on first use.
func (m *Manager) GetPool(ctx context.Context, tenantID string) (*ManagedPool, error) {
	m.mu.Lock()
	if mp, ok := m.pools[tenantID]; ok {
		m.mu.Unlock()
		return mp, nil
	}
	full := m.cfg.MaxTotalPools > 0 && len(m.pools) >= m.cfg.MaxTotalPools
	m.mu.Unlock()
	if full {
		return nil, fmt.Errorf("%w (%d)", ErrMaxPoolLimit, m.cfg.MaxTotalPools)
	}

	t, err := m.registry.GetByID(ctx, tenantID)
	if err != nil {
		if errors.Is(err, ErrTenantNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("lookup tenant %s: %w", tenantID, err)
	}
	if !t.IsActive() {
		return nil, fmt.Errorf("%w: %s", ErrTenantNotActive, t.Status)
	}

	pool, err := m.open(ctx, t)
	if err != nil {
		return nil, err
	}

	mp := &ManagedPool{pool: pool, tenant: t}
	mp.lastUsed.Store(time.Now().Unix())

	m.mu.Lock()
	defer m.mu.Unlock()
	if existing, ok := m.pools[tenantID]; ok {
		pool.Close()
		return existing, nil
	}
	m.pools[tenantID] = mp
	m.log.Infow("opened tenant pool", "tenant_id", t.ID, "db", t.DBName, "pools", len(m.pools))
	return mp, nil
}

func (m *Manager) open(ctx context.Context, t *Tenant) (*pgxpool.Pool, error) {
	pc, err := pgxpool.ParseConfig(t.DSN(m.cfg.DBUser, m.cfg.DBPassword))
	if err != nil {
		return nil, fmt.Errorf("parse dsn for %s: %w", t.Slug, err)
	}
	pc.MaxConns = m.cfg.MaxConnsPerTenant
	pc.MinConns = m.cfg.MinConnsPerTenant
	pc.ConnConfig.ConnectTimeout = m.cfg.ConnectTimeout
	if name := m.cfg.AppName; name != "" {
		pc.AfterConnect = func(ctx context.Context, c *pgx.Conn) error {
			_, err := c.Exec(ctx, "SELECT set_config('application_name', $1, false)", name)
			return err
		}
	}

	openCtx, cancel := context.WithTimeout(ctx, m.cfg.ConnectTimeout)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(openCtx, pc)
	if err != nil {
		return nil, fmt.Errorf("open pool for %s: %w", t.Slug, err)
	}
	if err := pool.Ping(openCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping %s: %w", t.Slug, err)
	}
	return pool, nil
}

func (m *Manager) janitor() {
	defer close(m.done)

	period := m.cfg.HealthCheck
	if idle := m.cfg.PoolIdleTimeout / 2; period <= 0 || (idle > 0 && idle < period) {
		period = idle
	}
	if period <= 0 {
		<-m.stop
		return
	}

	ticker := time.NewTicker(period)
	defer ticker.Stop()
	for {
		select {
		case <-m.stop:
			return
		case <-ticker.C:
			m.sweep()
		}
	}
}

// sweep pings pools and closes those that are idle or unhealthy and unused.
func (m *Manager) sweep() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	idleBefore := time.Now().Add(-m.cfg.PoolIdleTimeout).Unix()

	m.mu.Lock()
	snapshot := make(map[string]*ManagedPool, len(m.pools))
	for k, v := range m.pools {
		snapshot[k] = v
	}
	m.mu.Unlock()

	for tid, mp := range snapshot {
		if m.cfg.HealthCheck > 0 {
			if err := mp.pool.Ping(ctx); err != nil {
				mp.failing.Store(true)
				m.log.Warnw("tenant pool unhealthy", "tenant_id", tid, "error", err)
			} else {
				mp.failing.Store(false)
			}
		}
		if mp.inFlight.Load() > 0 {
			continue
		}
		switch {
		case mp.failing.Load():
			m.closePool(tid, "unhealthy")
		case m.cfg.PoolIdleTimeout > 0 && mp.lastUsed.Load() < idleBefore:
			m.closePool(tid, "idle")
		}
	}
}

func (m *Manager) closePool(tenantID, reason string) {
	m.mu.Lock()
	mp, ok := m.pools[tenantID]
	if ok {
		delete(m.pools, tenantID)
	}
	remaining := len(m.pools)
	m.mu.Unlock()

	if ok {
		mp.pool.Close()
		m.log.Infow("closed tenant pool", "tenant_id", tenantID, "reason", reason, "pools", remaining)
	}
}

// Close stops the janitor and closes every pool.
func (m *Manager) Close() {
	close(m.stop)
	<-m.done

	m.mu.Lock()
	defer m.mu.Unlock()
	for tid, mp := range m.pools {
		mp.pool.Close()
		delete(m.pools, tid)
	}
	m.log.Info("tenant manager closed")
}

// PoolStats describes one open tenant pool.
type PoolStats struct {
	TenantID      string    `json:"tenantId"`
	Slug          string    `json:"slug"`
	TotalConns    int32     `json:"totalConns"`
	AcquiredConns int32     `json:"acquiredConns"`
	InFlight      int32     `json:"inFlight"`
	LastUsed      time.Time `json:"lastUsed"`
}

func (m *Manager) Stats() []PoolStats {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]PoolStats, 0, len(m.pools))
	for tid, mp := range m.pools {
		st := mp.pool.Stat()
		out = append(out, PoolStats{
			TenantID:      tid,
			Slug:          mp.tenant.Slug,
			TotalConns:    st.TotalConns(),
			AcquiredConns: st.AcquiredConns(),
			InFlight:      mp.inFlight.Load(),
			LastUsed:      time.Unix(mp.lastUsed.Load(), 0),
		})
	}
	return out
}

func (m *Manager) GetActiveTenants(ctx context.Context) ([]*Tenant, error) {
	return m.registry.ListActive(ctx)
}

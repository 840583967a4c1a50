// Package main is the setflow background worker. It runs one loop per
// active tenant: outbox relay, housekeeping and overdue maintenance.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"sync"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"

	"setflow/internal/core/security"
	"setflow/internal/core/tenant"
	"setflow/internal/domain/auth"
	"setflow/internal/infrastructure/storage/postgres"
	"setflow/internal/infrastructure/storage/postgres/auth_repo"
	"setflow/internal/infrastructure/storage/postgres/record_repo"
	"setflow/pkg/logger"
)

type workerConfig struct {
	OutboxInterval    time.Duration
	OutboxBatch       int
	OutboxKeep        time.Duration
	CleanupInterval   time.Duration
	OverdueInterval   time.Duration
	RefreshInterval   time.Duration
	PoolIdleTimeout   time.Duration
	MaxConnsPerTenant int
}

func main() {
	_ = godotenv.Load()

	log, err := logger.New(logger.Config{
		Level:       getEnv("LOG_LEVEL", "info"),
		Development: getEnv("APP_ENV", "development") == "development",
		Service:     "setflow-worker",
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()

	cfg := workerConfig{
		OutboxInterval:    getEnvDuration("OUTBOX_POLL_INTERVAL", 2*time.Second),
		OutboxBatch:       getEnvInt("OUTBOX_BATCH_SIZE", 100),
		OutboxKeep:        getEnvDuration("OUTBOX_RETENTION", 7*24*time.Hour),
		CleanupInterval:   getEnvDuration("CLEANUP_INTERVAL", time.Hour),
		OverdueInterval:   getEnvDuration("OVERDUE_INTERVAL", time.Hour),
		RefreshInterval:   getEnvDuration("TENANT_REFRESH_INTERVAL", time.Minute),
		PoolIdleTimeout:   getEnvDuration("TENANT_POOL_IDLE_TIMEOUT", 10*time.Minute),
		MaxConnsPerTenant: getEnvInt("TENANT_MAX_CONNS_PER_POOL", 4),
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	log.Info("starting setflow worker")

	metaPool, err := pgxpool.New(ctx, mustEnv("META_DATABASE_URL"))
	if err != nil {
		log.Fatalw("failed to connect to meta database", "error", err)
	}
	defer metaPool.Close()

	managerCfg := tenant.DefaultManagerConfig()
	managerCfg.DBUser = mustEnv("TENANT_DB_USER")
	managerCfg.DBPassword = mustEnv("TENANT_DB_PASSWORD")
	managerCfg.PoolIdleTimeout = cfg.PoolIdleTimeout
	managerCfg.MaxConnsPerTenant = int32(cfg.MaxConnsPerTenant)
	managerCfg.AppName = "setflow-worker"

	manager := tenant.NewManager(managerCfg, tenant.NewPostgresRegistry(metaPool), log)
	defer manager.Close()

	worker := NewMultiTenantWorker(manager, cfg, log)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		worker.Run(ctx)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down worker...")
	cancel()

	wg.Wait()
	log.Info("worker stopped")
}

// MultiTenantWorker keeps one goroutine per active tenant.
type MultiTenantWorker struct {
	manager *tenant.Manager
	cfg     workerConfig
	log     *logger.Logger

	auth        *auth.Service
	idempotency *postgres.IdempotencyStore
	maintenance *record_repo.MaintenanceRepo
	now         func() time.Time
}

func NewMultiTenantWorker(manager *tenant.Manager, cfg workerConfig, log *logger.Logger) *MultiTenantWorker {
	return &MultiTenantWorker{
		manager: manager,
		cfg:     cfg,
		log:     log.WithComponent("worker"),
		// Only token cleanup is used; the service needs no JWT or audit here.
		auth: auth.NewService(
			auth_repo.NewUserRepo(),
			auth_repo.NewRoleRepo(),
			auth_repo.NewPermissionRepo(),
			auth_repo.NewTokenRepo(),
			nil,
			auth.DefaultServiceConfig(),
			nil,
		),
		idempotency: postgres.NewIdempotencyStore(0),
		maintenance: record_repo.NewMaintenanceRepo(),
		now:         time.Now,
	}
}

// Run starts and stops tenant loops as tenants are activated or suspended.
func (w *MultiTenantWorker) Run(ctx context.Context) {
	ticker := time.NewTicker(w.cfg.RefreshInterval)
	defer ticker.Stop()

	var wg sync.WaitGroup
	running := make(map[string]context.CancelFunc) // tenant id -> cancel

	w.refreshTenants(ctx, &wg, running)

	for {
		select {
		case <-ctx.Done():
			for _, cancel := range running {
				cancel()
			}
			wg.Wait()
			return
		case <-ticker.C:
			w.refreshTenants(ctx, &wg, running)
		}
	}
}

func (w *MultiTenantWorker) refreshTenants(ctx context.Context, wg *sync.WaitGroup, running map[string]context.CancelFunc) {
	tenants, err := w.manager.GetActiveTenants(ctx)
	if err != nil {
		w.log.Errorw("failed to get active tenants", "error", err)
		return
	}

	active := make(map[string]*tenant.Tenant, len(tenants))
	for _, t := range tenants {
		active[t.ID] = t
	}

	for tenantID, cancel := range running {
		if _, ok := active[tenantID]; !ok {
			cancel()
			delete(running, tenantID)
			w.log.Infow("stopped worker for inactive tenant", "tenant_id", tenantID)
		}
	}

	for _, t := range tenants {
		if _, ok := running[t.ID]; ok {
			continue
		}
		tenantCtx, cancel := context.WithCancel(ctx)
		running[t.ID] = cancel

		wg.Add(1)
		go func(t *tenant.Tenant) {
			defer wg.Done()
			w.runTenant(tenantCtx, t)
		}(t)
		w.log.Infow("started worker for tenant", "tenant_id", t.ID, "slug", t.Slug)
	}
}

// tenantContext builds the context the repositories expect: the tenant's
// pool and tx manager plus a system scope that sees every department.
func tenantContext(ctx context.Context, mp *tenant.ManagedPool, txm *postgres.TxManager) context.Context {
	ctx = tenant.WithPool(ctx, mp.Pool())
	ctx = tenant.WithTxManager(ctx, txm)
	ctx = tenant.WithTenant(ctx, mp.Tenant())
	ctx = security.WithScope(ctx, &security.AccessScope{TenantID: mp.Tenant().ID, IsAdmin: true})
	return logger.WithLogger(ctx, logger.FromContext(ctx).With("tenant_id", mp.Tenant().ID))
}

func (w *MultiTenantWorker) runTenant(ctx context.Context, t *tenant.Tenant) {
	mp, err := w.manager.GetPool(ctx, t.ID)
	if err != nil {
		w.log.Errorw("failed to get pool for tenant", "tenant_id", t.ID, "error", err)
		return
	}

	txm := postgres.NewTxManagerFromRawPool(mp.Pool())
	ctx = logger.WithLogger(ctx, w.log)
	ctx = tenantContext(ctx, mp, txm)
	relay := postgres.NewOutboxRelay(txm, w.cfg.OutboxBatch, w.deliver(t))

	outboxTicker := time.NewTicker(w.cfg.OutboxInterval)
	defer outboxTicker.Stop()
	cleanupTicker := time.NewTicker(w.cfg.CleanupInterval)
	defer cleanupTicker.Stop()
	overdueTicker := time.NewTicker(w.cfg.OverdueInterval)
	defer overdueTicker.Stop()

	w.reportOverdue(ctx, t)

	for {
		select {
		case <-ctx.Done():
			w.log.Infow("stopping worker for tenant", "tenant_id", t.ID)
			return
		case <-outboxTicker.C:
			w.processOutbox(ctx, relay, t)
		case <-cleanupTicker.C:
			w.cleanup(ctx, relay, t)
		case <-overdueTicker.C:
			w.reportOverdue(ctx, t)
		}
	}
}

// deliver publishes outbox messages to the structured log.
func (w *MultiTenantWorker) deliver(t *tenant.Tenant) postgres.OutboxHandler {
	return postgres.OutboxHandlerFunc(func(ctx context.Context, msg *postgres.OutboxMessage) error {
		w.log.Infow("event",
			"tenant_id", t.ID,
			"event_id", msg.ID,
			"event_type", msg.EventType,
			"aggregate_type", msg.AggregateType,
			"aggregate_id", msg.AggregateID,
			"attempt", msg.RetryCount+1,
			"payload", string(msg.Payload),
		)
		return nil
	})
}

func (w *MultiTenantWorker) processOutbox(ctx context.Context, relay *postgres.OutboxRelay, t *tenant.Tenant) {
	for {
		n, err := relay.ProcessBatch(ctx)
		if err != nil {
			w.log.Errorw("outbox batch failed", "tenant_id", t.ID, "error", err)
			return
		}
		if n > 0 {
			w.log.Debugw("processed outbox batch", "tenant_id", t.ID, "count", n)
		}
		if n < w.cfg.OutboxBatch || ctx.Err() != nil {
			return
		}
	}
}

func (w *MultiTenantWorker) cleanup(ctx context.Context, relay *postgres.OutboxRelay, t *tenant.Tenant) {
	if n, err := w.auth.CleanupExpiredTokens(ctx); err != nil {
		w.log.Warnw("refresh token cleanup failed", "tenant_id", t.ID, "error", err)
	} else if n > 0 {
		w.log.Infow("cleaned up expired refresh tokens", "tenant_id", t.ID, "count", n)
	}

	if n, err := w.idempotency.CleanupExpired(ctx); err != nil {
		w.log.Warnw("idempotency cleanup failed", "tenant_id", t.ID, "error", err)
	} else if n > 0 {
		w.log.Infow("cleaned up idempotency keys", "tenant_id", t.ID, "count", n)
	}

	if n, err := relay.PurgePublished(ctx, w.cfg.OutboxKeep); err != nil {
		w.log.Warnw("outbox purge failed", "tenant_id", t.ID, "error", err)
	} else if n > 0 {
		w.log.Infow("purged published outbox messages", "tenant_id", t.ID, "count", n)
	}

	if pending, err := relay.Pending(ctx); err == nil && pending > 0 {
		w.log.Infow("outbox backlog", "tenant_id", t.ID, "pending", pending)
	}
}

// reportOverdue logs scheduled maintenance whose date has passed.
func (w *MultiTenantWorker) reportOverdue(ctx context.Context, t *tenant.Tenant) {
	items, err := w.maintenance.Overdue(ctx, w.now(), nil)
	if err != nil {
		w.log.Warnw("overdue maintenance check failed", "tenant_id", t.ID, "error", err)
		return
	}
	if len(items) == 0 {
		return
	}
	numbers := make([]string, 0, len(items))
	for _, m := range items {
		numbers = append(numbers, m.Number)
	}
	w.log.Warnw("overdue maintenance", "tenant_id", t.ID, "count", len(items), "numbers", numbers)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func mustEnv(key string) string {
	value := os.Getenv(key)
	if value == "" {
		fmt.Fprintf(os.Stderr, "required environment variable %s not set\n", key)
		os.Exit(1)
	}
	return value
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

// Package main is the entry point for the setflow API server.
// Each tenant has its own database; the meta-database lists the tenants.
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

	"setflow/internal/core/tenant"
	"setflow/internal/domain/auth"
	v1 "setflow/internal/infrastructure/http/v1"
	"setflow/internal/infrastructure/http/v1/middleware"
	"setflow/internal/infrastructure/storage/files"
	"setflow/internal/infrastructure/storage/postgres"
	"setflow/internal/infrastructure/storage/postgres/auth_repo"
	"setflow/pkg/logger"
	"setflow/pkg/numerator"
)

func main() {
	cfg := loadConfig()

	log, err := logger.New(logger.Config{
		Level:       cfg.LogLevel,
		Development: cfg.Env == "development",
		Service:     "setflow-api",
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()

	ctx := logger.WithLogger(context.Background(), log)
	log.Infow("starting setflow server", "env", cfg.Env)

	// --- Meta-database ---
	metaCfg := postgres.DefaultPoolConfig(cfg.MetaDatabaseURL)
	metaCfg.AppName = "setflow-meta"
	metaPool, err := postgres.NewPool(ctx, metaCfg)
	if err != nil {
		log.Fatalw("failed to connect to meta database", "error", err)
	}
	defer metaPool.Close()
	postgres.LogPoolStats(ctx, "meta", metaPool.Pool)

	// --- Tenants ---
	managerCfg := tenant.DefaultManagerConfig()
	managerCfg.DBUser = cfg.TenantDBUser
	managerCfg.DBPassword = cfg.TenantDBPassword
	if cfg.TenantMaxPools > 0 {
		managerCfg.MaxTotalPools = cfg.TenantMaxPools
	}
	if cfg.TenantMaxConns > 0 {
		managerCfg.MaxConnsPerTenant = int32(cfg.TenantMaxConns)
	}
	managerCfg.PoolIdleTimeout = cfg.TenantIdleTimeout

	tenantManager := tenant.NewManager(managerCfg, tenant.NewPostgresRegistry(metaPool.Pool), log)
	defer tenantManager.Close()

	log.Infow("tenant manager initialized",
		"max_pools", managerCfg.MaxTotalPools,
		"max_conns_per_tenant", managerCfg.MaxConnsPerTenant,
		"idle_timeout", managerCfg.PoolIdleTimeout,
	)

	// --- Audit, events, numbering ---
	auditStore, err := postgres.NewAuditStore()
	if err != nil {
		log.Fatalw("failed to initialize audit store", "error", err)
	}

	// --- Auth ---
	jwtCfg := auth.DefaultJWTConfig(cfg.JWTSecret)
	jwtCfg.AccessTokenTTL = cfg.AccessTTL
	jwtService := auth.NewJWTService(jwtCfg)

	authCfg := auth.DefaultServiceConfig()
	authCfg.RefreshTokenExpiry = cfg.RefreshTTL
	authService := auth.NewService(
		auth_repo.NewUserRepo(),
		auth_repo.NewRoleRepo(),
		auth_repo.NewPermissionRepo(),
		auth_repo.NewTokenRepo(),
		jwtService,
		authCfg,
		auditStore,
	)

	// --- Uploads ---
	fileStore, err := files.New(files.Config{
		Dir:      cfg.UploadDir,
		BaseURL:  cfg.UploadBaseURL,
		MaxBytes: cfg.UploadMaxBytes,
	})
	if err != nil {
		log.Fatalw("failed to initialize upload store", "error", err)
	}

	var idempotency middleware.IdempotencyStore
	if cfg.Idempotency {
		idempotency = postgres.NewIdempotencyStore(cfg.IdempotencyTTL)
	}

	// --- Router ---
	router := v1.NewRouter(v1.RouterConfig{
		TenantManager:    tenantManager,
		MetaPool:         metaPool,
		Logger:           log,
		JWTValidator:     jwtService,
		AuthService:      authService,
		Numerator:        numerator.NewFromContext(),
		Audit:            auditStore,
		Events:           postgres.NewOutbox(),
		Files:            fileStore,
		Idempotency:      idempotency,
		MetadataRegistry: setupMetadataRegistry(),
	})

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Infow("server starting", "port", cfg.Port)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalw("server failed", "error", err)
		}
	}()

	// --- Graceful shutdown ---
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Errorw("server forced to shutdown", "error", err)
	}

	log.Info("server stopped")
}

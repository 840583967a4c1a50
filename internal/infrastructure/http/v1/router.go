// Package v1 provides HTTP API version 1.
package v1

import (
	"github.com/gin-gonic/gin"

	"setflow/internal/core/numerator"
	"setflow/internal/domain/audit"
	"setflow/internal/domain/auth"
	"setflow/internal/domain/catalogs/asset"
	"setflow/internal/domain/catalogs/category"
	"setflow/internal/domain/catalogs/department"
	"setflow/internal/domain/dashboard"
	"setflow/internal/domain/events"
	"setflow/internal/domain/records/assignment"
	"setflow/internal/domain/records/maintenance"
	"setflow/internal/domain/spectemplate"
	"setflow/internal/infrastructure/http/v1/handlers"
	"setflow/internal/infrastructure/http/v1/middleware"
	"setflow/internal/infrastructure/storage/postgres/catalog_repo"
	"setflow/internal/infrastructure/storage/postgres/dashboard_repo"
	"setflow/internal/infrastructure/storage/postgres/record_repo"
	"setflow/internal/metadata"
	"setflow/pkg/logger"
)

// TenantManager is implemented by *tenant.Manager.
type TenantManager interface {
	middleware.TenantPools
	handlers.PoolStats
}

// FileStore is implemented by *files.Store.
type FileStore interface {
	handlers.Uploads
	Dir() string
}

// RouterConfig holds router configuration for multi-tenant architecture.
type RouterConfig struct {
	// TenantManager resolves X-Tenant-ID to a database pool
	TenantManager TenantManager

	// MetaPool is the meta-database, pinged by /health/ready
	MetaPool handlers.Pinger

	Logger *logger.Logger

	JWTValidator middleware.JWTValidator
	AuthService  *auth.Service

	// Numerator generates asset codes and record numbers
	Numerator numerator.Generator

	// Audit and Events receive every change made through the API
	Audit  audit.Recorder
	Events events.Publisher

	// Files stores uploads and serves them under /uploads
	Files FileStore

	// Idempotency is optional; nil disables X-Idempotency-Key handling
	Idempotency middleware.IdempotencyStore

	// SpecFields holds the built-in category templates; nil means DefaultRegistry()
	SpecFields *spectemplate.Registry

	// MetadataRegistry stores entity definitions
	MetadataRegistry *metadata.Registry
}

// Services are the domain services behind the API. They hold no tenant
// state; repositories find the tenant database in the request context.
type Services struct {
	Categories   *category.Service
	Departments  *department.Service
	Assets       *asset.Service
	Maintenance  *maintenance.Service
	Assignments  *assignment.Service
	Dashboard    *dashboard.Service
	Auth         *auth.Service
	SpecRegistry *spectemplate.Registry
}

// NewServices wires the domain services to the PostgreSQL repositories.
func NewServices(cfg RouterConfig) *Services {
	categories := category.NewService(catalog_repo.NewCategoryRepo(), cfg.SpecFields, cfg.Audit, cfg.Events)
	departments := department.NewService(catalog_repo.NewDepartmentRepo(), cfg.Numerator, cfg.Audit, cfg.Events)
	assets := asset.NewService(catalog_repo.NewAssetRepo(), categories.Source(), cfg.Numerator, cfg.Audit, cfg.Events)
	assignments := assignment.NewService(record_repo.NewAssignmentRepo(), assets, cfg.Numerator, cfg.Audit, cfg.Events)
	jobs := maintenance.NewService(record_repo.NewMaintenanceRepo(), assets, assignments, cfg.Numerator, cfg.Audit, cfg.Events)

	return &Services{
		Categories:   categories,
		Departments:  departments,
		Assets:       assets,
		Maintenance:  jobs,
		Assignments:  assignments,
		Dashboard:    dashboard.NewService(dashboard_repo.NewDashboardRepo()),
		Auth:         cfg.AuthService,
		SpecRegistry: categories.Registry(),
	}
}

// NewRouter creates and configures the Gin router for multi-tenant architecture.
func NewRouter(cfg RouterConfig) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	return newEngine(cfg, NewServices(cfg))
}

func newEngine(cfg RouterConfig, svc *Services) *gin.Engine {
	router := gin.New()

	// Global middleware; Recovery must run inside ErrorHandler.
	router.Use(middleware.Trace())
	router.Use(middleware.Logger(cfg.Logger))
	router.Use(middleware.ErrorHandler())
	router.Use(middleware.Recovery())

	// Health endpoints (no auth, no tenant required)
	health := handlers.NewHealthHandler(cfg.MetaPool, cfg.TenantManager)
	{
		g := router.Group("/health")
		g.GET("/live", health.Live)
		g.GET("/ready", health.Ready)
		g.GET("/info", health.Info)
	}

	var uploads handlers.Uploads
	if cfg.Files != nil {
		router.Group("/uploads", middleware.UploadHeaders()).Static("", cfg.Files.Dir())
		uploads = cfg.Files
	}

	api := router.Group("/api/v1")
	api.Use(middleware.TenantDB(cfg.TenantManager))
	{
		base := handlers.NewBaseHandler()

		var authHandler *handlers.AuthHandler
		if svc.Auth != nil {
			authHandler = handlers.NewAuthHandler(base, svc.Auth)
			public := api.Group("/auth")
			public.POST("/login", authHandler.Login)
			public.POST("/refresh", authHandler.Refresh)
		}

		protected := api.Group("")
		protected.Use(middleware.Auth(cfg.JWTValidator))
		protected.Use(middleware.AccessScope())
		if cfg.Idempotency != nil {
			protected.Use(middleware.Idempotency(cfg.Idempotency))
		}

		if authHandler != nil {
			registerUserRoutes(protected, authHandler)
		}
		registerCatalogRoutes(protected, base, svc, uploads)
		registerRecordRoutes(protected, base, svc)
		registerDashboardRoutes(protected, base, svc.Dashboard)
		if uploads != nil {
			h := handlers.NewUploadHandler(base, uploads)
			protected.POST("/uploads", middleware.RequirePermission("uploads:create"), h.Upload)
		}
		registerMetaRoutes(protected, base, cfg.MetadataRegistry)
	}

	return router
}

func registerUserRoutes(rg *gin.RouterGroup, h *handlers.AuthHandler) {
	me := rg.Group("/auth")
	me.POST("/logout", h.Logout)
	me.GET("/me", h.Me)

	manage := middleware.RequirePermission("users:manage")
	users := rg.Group("/users", manage)
	{
		users.GET("", h.ListUsers)
		users.POST("", h.CreateUser)
		users.GET("/:id", h.GetUser)
		users.PUT("/:id", h.UpdateUser)
		users.DELETE("/:id", h.DeleteUser)
		users.POST("/:id/roles", h.SetRoles)
	}
	rg.GET("/roles", manage, h.ListRoles)
}

// registerCatalogRoutes registers departments, categories and assets.
func registerCatalogRoutes(rg *gin.RouterGroup, base *handlers.BaseHandler, svc *Services, uploads handlers.Uploads) {
	catalogs := rg.Group("/catalog")

	// --- DEPARTMENTS ---
	{
		h := handlers.NewCatalogHandler[*department.Department](base, svc.Departments, func() *department.Department {
			return department.NewDepartment("", "")
		})
		RegisterCatalogRoutes(catalogs.Group("/departments"), h, "catalog:department")
	}

	// --- CATEGORIES ---
	{
		h := handlers.NewCategoryHandler(base, svc.Categories)
		g := catalogs.Group("/categories")
		read := middleware.RequirePermission("catalog:category:read")
		update := middleware.RequirePermission("catalog:category:update")

		g.GET("/defaults", read, h.Defaults)
		g.GET("/defaults/names", read, h.DefaultNames)
		RegisterCatalogRoutes(g, h, "catalog:category")
		g.GET("/:id/template", read, h.GetTemplate)
		g.PUT("/:id/template", update, h.PutTemplate)
		g.POST("/:id/template/ops", update, h.ApplyOps)
	}

	// --- ASSETS ---
	{
		h := handlers.NewAssetHandler(base, svc.Assets, uploads)
		g := catalogs.Group("/assets")
		read := middleware.RequirePermission("catalog:asset:read")
		update := middleware.RequirePermission("catalog:asset:update")

		g.GET("/form/fields", read, h.FormFields)
		g.POST("/form", middleware.RequireAnyPermission("catalog:asset:create", "catalog:asset:update"), h.SubmitForm)
		RegisterCatalogRoutes(g, h, "catalog:asset")
		g.POST("/:id/retire", update, h.Retire)
		g.POST("/:id/dispose", update, h.Dispose)
		g.GET("/:id/depreciation", read, h.Depreciation)
	}
}

// registerRecordRoutes registers maintenance jobs and assignments.
func registerRecordRoutes(rg *gin.RouterGroup, base *handlers.BaseHandler, svc *Services) {
	records := rg.Group("/records")

	// --- MAINTENANCE ---
	{
		h := handlers.NewMaintenanceHandler(base, svc.Maintenance)
		g := records.Group("/maintenance")
		RegisterCatalogRoutes(g, h, "record:maintenance")

		update := middleware.RequirePermission("record:maintenance:update")
		g.POST("/:id/start", update, h.Start)
		g.POST("/:id/complete", update, h.Complete)
		g.POST("/:id/cancel", update, h.Cancel)
	}

	// --- ASSIGNMENTS ---
	{
		h := handlers.NewAssignmentHandler(base, svc.Assignments)
		g := records.Group("/assignments")
		RegisterCatalogRoutes(g, h, "record:assignment")
		g.POST("/:id/return", middleware.RequirePermission("record:assignment:update"), h.Return)
	}
}

func registerDashboardRoutes(rg *gin.RouterGroup, base *handlers.BaseHandler, svc *dashboard.Service) {
	h := handlers.NewDashboardHandler(base, svc)
	g := rg.Group("/dashboard", middleware.RequirePermission("dashboard:read"))
	{
		g.GET("/summary", h.Summary)
		g.GET("/assets-by-category", h.AssetsByCategory)
		g.GET("/assets-by-department", h.AssetsByDepartment)
		g.GET("/maintenance-cost", h.MaintenanceCost)
		g.GET("/recent-activity", h.RecentActivity)
	}
}

// registerMetaRoutes registers metadata/schema endpoints.
func registerMetaRoutes(rg *gin.RouterGroup, base *handlers.BaseHandler, registry *metadata.Registry) {
	if registry == nil {
		return
	}
	h := handlers.NewMetadataHandler(base, registry)
	meta := rg.Group("/meta")
	{
		meta.GET("", h.ListEntities)
		meta.GET("/:name", h.GetEntity)
	}
}

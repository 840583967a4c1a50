package v1

import (
	"github.com/gin-gonic/gin"

	"setflow/internal/infrastructure/http/v1/middleware"
)

// CatalogRouteHandler is what RegisterCatalogRoutes needs. Every
// handlers.CatalogHandler satisfies it, and so does anything embedding one.
type CatalogRouteHandler interface {
	List(c *gin.Context)
	Create(c *gin.Context)
	Get(c *gin.Context)
	Update(c *gin.Context)
	Delete(c *gin.Context)
	History(c *gin.Context)
	Tree(c *gin.Context)
	Restore(c *gin.Context)
	SupportsTree() bool
	SupportsRestore() bool
}

// RegisterCatalogRoutes registers the CRUD routes of one entity. permission
// is the prefix of its permission codes, e.g. "catalog:asset"; the routes
// require permission+":read", ":create", ":update" or ":delete".
//
// Usage:
//
//	repo := catalog_repo.NewDepartmentRepo()
//	service := department.NewService(repo, cfg.Numerator, cfg.Audit, cfg.Events)
//	handler := handlers.NewCatalogHandler(base, service, newDepartment)
//	RegisterCatalogRoutes(catalogs.Group("/departments"), handler, "catalog:department")
//
// Tree and restore routes exist only when the service supports them.
// Entity-specific routes may be added to the same group before or after.
func RegisterCatalogRoutes(group *gin.RouterGroup, handler CatalogRouteHandler, permission string) {
	read := middleware.RequirePermission(permission + ":read")

	group.GET("", read, handler.List)
	group.POST("", middleware.RequirePermission(permission+":create"), handler.Create)
	if handler.SupportsTree() {
		group.GET("/tree", read, handler.Tree)
	}
	group.GET("/:id", read, handler.Get)
	group.PUT("/:id", middleware.RequirePermission(permission+":update"), handler.Update)
	group.DELETE("/:id", middleware.RequirePermission(permission+":delete"), handler.Delete)
	if handler.SupportsRestore() {
		group.POST("/:id/restore", middleware.RequirePermission(permission+":delete"), handler.Restore)
	}
	group.GET("/:id/history", read, handler.History)
}

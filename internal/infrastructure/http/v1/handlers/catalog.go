package handlers

import (
	"context"
	"encoding/json"
	"io"

	"github.com/gin-gonic/gin"

	"setflow/internal/core/apperror"
	"setflow/internal/core/id"
	"setflow/internal/domain"
	"setflow/internal/domain/audit"
	"setflow/internal/infrastructure/http/v1/dto"
)

// EntityService is the CRUD surface shared by catalog and record services.
type EntityService[T domain.Entity] interface {
	Create(ctx context.Context, e T) error
	GetByID(ctx context.Context, entityID id.ID) (T, error)
	Update(ctx context.Context, e T) error
	Delete(ctx context.Context, entityID id.ID) error
	List(ctx context.Context, f domain.ListFilter) (domain.ListResult[T], error)
	History(ctx context.Context, entityID id.ID, limit int) ([]audit.Entry, error)
}

// treeService is implemented by hierarchical catalogs.
type treeService[T any] interface {
	GetTree(ctx context.Context, rootID *id.ID) ([]T, error)
}

type restoreService interface {
	Restore(ctx context.Context, entityID id.ID) error
}

const defaultHistoryLimit = 50

// CatalogHandler serves list/get/create/update/delete for one entity.
// Request bodies are decoded straight onto the entity: create starts from
// New(), update from the stored row, so omitted fields keep their values.
type CatalogHandler[T domain.Entity] struct {
	*BaseHandler
	service EntityService[T]
	newFn   func() T
}

func NewCatalogHandler[T domain.Entity](base *BaseHandler, service EntityService[T], newFn func() T) *CatalogHandler[T] {
	return &CatalogHandler[T]{BaseHandler: base, service: service, newFn: newFn}
}

// List handles GET /{entity}.
func (h *CatalogHandler[T]) List(c *gin.Context) {
	f, ok := h.ListFilter(c)
	if !ok {
		return
	}
	res, err := h.service.List(c.Request.Context(), f)
	if err != nil {
		h.Error(c, err)
		return
	}
	List(c, res)
}

// Get handles GET /{entity}/:id.
func (h *CatalogHandler[T]) Get(c *gin.Context) {
	entityID, ok := h.ParseID(c, "id")
	if !ok {
		return
	}
	e, err := h.service.GetByID(c.Request.Context(), entityID)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, e)
}

// Create handles POST /{entity}.
func (h *CatalogHandler[T]) Create(c *gin.Context) {
	e := h.newFn()
	if !h.decode(c, e) {
		return
	}
	if err := h.service.Create(c.Request.Context(), e); err != nil {
		h.Error(c, err)
		return
	}
	h.Created(c, e)
}

// Update handles PUT /{entity}/:id. A version in the body that no longer
// matches the stored row fails with CONCURRENT_MODIFICATION.
func (h *CatalogHandler[T]) Update(c *gin.Context) {
	entityID, ok := h.ParseID(c, "id")
	if !ok {
		return
	}
	ctx := c.Request.Context()
	e, err := h.service.GetByID(ctx, entityID)
	if err != nil {
		h.Error(c, err)
		return
	}
	if !h.decode(c, e) {
		return
	}
	if e.GetID() != entityID {
		h.Error(c, apperror.NewValidation("id in body does not match the path").WithDetail("field", "id"))
		return
	}
	if err := h.service.Update(ctx, e); err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, e)
}

// Delete handles DELETE /{entity}/:id (soft delete).
func (h *CatalogHandler[T]) Delete(c *gin.Context) {
	entityID, ok := h.ParseID(c, "id")
	if !ok {
		return
	}
	if err := h.service.Delete(c.Request.Context(), entityID); err != nil {
		h.Error(c, err)
		return
	}
	h.NoContent(c)
}

// Restore handles POST /{entity}/:id/restore.
func (h *CatalogHandler[T]) Restore(c *gin.Context) {
	rs, ok := h.service.(restoreService)
	if !ok {
		h.Error(c, apperror.NewNotFound("route", c.FullPath()))
		return
	}
	entityID, ok := h.ParseID(c, "id")
	if !ok {
		return
	}
	if err := rs.Restore(c.Request.Context(), entityID); err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, dto.SuccessResponse{Success: true, Message: "restored"})
}

// Tree handles GET /{entity}/tree?rootId=.
func (h *CatalogHandler[T]) Tree(c *gin.Context) {
	ts, ok := h.service.(treeService[T])
	if !ok {
		h.Error(c, apperror.NewNotFound("route", c.FullPath()))
		return
	}
	var rootID *id.ID
	if raw := c.Query("rootId"); raw != "" {
		parsed, err := id.Parse(raw)
		if err != nil {
			h.Error(c, apperror.NewValidation("invalid rootId format"))
			return
		}
		rootID = &parsed
	}
	items, err := ts.GetTree(c.Request.Context(), rootID)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, dto.Items(items))
}

// History handles GET /{entity}/:id/history?limit=.
func (h *CatalogHandler[T]) History(c *gin.Context) {
	entityID, ok := h.ParseID(c, "id")
	if !ok {
		return
	}
	ctx := c.Request.Context()
	if _, err := h.service.GetByID(ctx, entityID); err != nil {
		h.Error(c, err)
		return
	}
	entries, err := h.service.History(ctx, entityID, h.ParseIntQuery(c, "limit", defaultHistoryLimit))
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, dto.Items(entries))
}

// SupportsTree reports whether the service can serve /tree.
func (h *CatalogHandler[T]) SupportsTree() bool {
	_, ok := h.service.(treeService[T])
	return ok
}

// SupportsRestore reports whether the service can serve /:id/restore.
func (h *CatalogHandler[T]) SupportsRestore() bool {
	_, ok := h.service.(restoreService)
	return ok
}

func (h *CatalogHandler[T]) decode(c *gin.Context, e T) bool {
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		h.Error(c, apperror.NewValidation("cannot read request body"))
		return false
	}
	if err := json.Unmarshal(body, e); err != nil {
		h.Error(c, apperror.NewValidation("invalid request body").WithDetail("error", err.Error()))
		return false
	}
	return true
}

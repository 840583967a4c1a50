package handlers

import (
	"github.com/gin-gonic/gin"

	"setflow/internal/core/apperror"
	"setflow/internal/domain/catalogs/category"
	"setflow/internal/infrastructure/http/v1/dto"
)

// CategoryHandler adds the template endpoints to the category catalog.
type CategoryHandler struct {
	*CatalogHandler[*category.Category]
	service *category.Service
}

func NewCategoryHandler(base *BaseHandler, service *category.Service) *CategoryHandler {
	return &CategoryHandler{
		CatalogHandler: NewCatalogHandler[*category.Category](base, service, func() *category.Category {
			return category.NewCategory("")
		}),
		service: service,
	}
}

// GetTemplate handles GET /catalog/categories/:id/template.
func (h *CategoryHandler) GetTemplate(c *gin.Context) {
	categoryID, ok := h.ParseID(c, "id")
	if !ok {
		return
	}
	cat, err := h.service.GetByID(c.Request.Context(), categoryID)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, cat.Template())
}

// PutTemplate handles PUT /catalog/categories/:id/template. The body is the
// complete field list; it is validated and normalized like an editor save.
func (h *CategoryHandler) PutTemplate(c *gin.Context) {
	categoryID, ok := h.ParseID(c, "id")
	if !ok {
		return
	}
	var req dto.TemplateRequest
	if !h.BindJSON(c, &req) {
		return
	}
	t, err := h.service.ReplaceTemplate(c.Request.Context(), categoryID, req.Fields)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, t)
}

// ApplyOps handles POST /catalog/categories/:id/template/ops.
func (h *CategoryHandler) ApplyOps(c *gin.Context) {
	categoryID, ok := h.ParseID(c, "id")
	if !ok {
		return
	}
	var req dto.TemplateOpsRequest
	if !h.BindJSON(c, &req) {
		return
	}
	t, err := h.service.ApplyOps(c.Request.Context(), categoryID, req.Ops)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, t)
}

// Defaults handles GET /catalog/categories/defaults?name=. Names without a
// built-in template are 404.
func (h *CategoryHandler) Defaults(c *gin.Context) {
	name := c.Query("name")
	if name == "" {
		h.Error(c, apperror.NewValidation("name is required").WithDetail("param", "name"))
		return
	}
	if !h.service.Registry().Has(name) {
		h.Error(c, apperror.NewNotFound("category template", name))
		return
	}
	h.OK(c, dto.DefaultsResponse{Name: name, Fields: h.service.Defaults(name)})
}

// DefaultNames handles GET /catalog/categories/defaults/names.
func (h *CategoryHandler) DefaultNames(c *gin.Context) {
	h.OK(c, dto.Items(h.service.Registry().Names()))
}

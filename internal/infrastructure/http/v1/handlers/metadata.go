package handlers

import (
	"github.com/gin-gonic/gin"

	"setflow/internal/core/apperror"
	"setflow/internal/infrastructure/http/v1/dto"
	"setflow/internal/metadata"
)

type MetadataHandler struct {
	*BaseHandler
	registry *metadata.Registry
}

func NewMetadataHandler(base *BaseHandler, registry *metadata.Registry) *MetadataHandler {
	return &MetadataHandler{BaseHandler: base, registry: registry}
}

// ListEntities handles GET /meta.
func (h *MetadataHandler) ListEntities(c *gin.Context) {
	h.OK(c, dto.Items(h.registry.List()))
}

// GetEntity handles GET /meta/:name.
func (h *MetadataHandler) GetEntity(c *gin.Context) {
	name := c.Param("name")
	def, ok := h.registry.Get(name)
	if !ok {
		h.Error(c, apperror.NewNotFound("entity", name))
		return
	}
	h.OK(c, def)
}

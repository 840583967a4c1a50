package handlers

import (
	"github.com/gin-gonic/gin"

	"setflow/internal/domain/dashboard"
	"setflow/internal/infrastructure/http/v1/dto"
)

type DashboardHandler struct {
	*BaseHandler
	service *dashboard.Service
}

func NewDashboardHandler(base *BaseHandler, service *dashboard.Service) *DashboardHandler {
	return &DashboardHandler{BaseHandler: base, service: service}
}

// Summary handles GET /dashboard/summary.
func (h *DashboardHandler) Summary(c *gin.Context) {
	sum, err := h.service.Summary(c.Request.Context())
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, sum)
}

func (h *DashboardHandler) AssetsByCategory(c *gin.Context) {
	rows, err := h.service.AssetsByCategory(c.Request.Context())
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, dto.Items(rows))
}

func (h *DashboardHandler) AssetsByDepartment(c *gin.Context) {
	rows, err := h.service.AssetsByDepartment(c.Request.Context())
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, dto.Items(rows))
}

// MaintenanceCost handles GET /dashboard/maintenance-cost?from=&to=.
func (h *DashboardHandler) MaintenanceCost(c *gin.Context) {
	from, ok := h.ParseDateQuery(c, "from")
	if !ok {
		return
	}
	to, ok := h.ParseDateQuery(c, "to")
	if !ok {
		return
	}
	rows, err := h.service.MaintenanceCost(c.Request.Context(), from, to)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, dto.Items(rows))
}

// RecentActivity handles GET /dashboard/recent-activity?limit=.
func (h *DashboardHandler) RecentActivity(c *gin.Context) {
	rows, err := h.service.RecentActivity(c.Request.Context(), h.ParseIntQuery(c, "limit", 0))
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, dto.Items(rows))
}

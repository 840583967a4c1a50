package handlers

import (
	"time"

	"github.com/gin-gonic/gin"

	"setflow/internal/domain"
	"setflow/internal/domain/records/assignment"
	"setflow/internal/domain/records/maintenance"
	"setflow/internal/infrastructure/http/v1/dto"
)

// MaintenanceHandler serves /records/maintenance.
type MaintenanceHandler struct {
	*CatalogHandler[*maintenance.Maintenance]
	service *maintenance.Service
}

func NewMaintenanceHandler(base *BaseHandler, service *maintenance.Service) *MaintenanceHandler {
	return &MaintenanceHandler{
		CatalogHandler: NewCatalogHandler[*maintenance.Maintenance](base, service, func() *maintenance.Maintenance {
			return maintenance.New("", "", time.Now().UTC())
		}),
		service: service,
	}
}

// List handles GET /records/maintenance. overdue=true lists scheduled jobs
// whose date has passed, as of the asOf date or today.
func (h *MaintenanceHandler) List(c *gin.Context) {
	if c.Query("overdue") != "true" {
		h.CatalogHandler.List(c)
		return
	}
	asOf, ok := h.ParseDateQuery(c, "asOf")
	if !ok {
		return
	}
	items, err := h.service.Overdue(c.Request.Context(), asOf)
	if err != nil {
		h.Error(c, err)
		return
	}
	if items == nil {
		items = []*maintenance.Maintenance{}
	}
	List(c, domain.ListResult[*maintenance.Maintenance]{
		Items:      items,
		TotalCount: int64(len(items)),
		Limit:      len(items),
	})
}

// Start handles POST /records/maintenance/:id/start.
func (h *MaintenanceHandler) Start(c *gin.Context) {
	mID, ok := h.ParseID(c, "id")
	if !ok {
		return
	}
	m, err := h.service.Start(c.Request.Context(), mID)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, m)
}

// Complete handles POST /records/maintenance/:id/complete. The body is
// optional.
func (h *MaintenanceHandler) Complete(c *gin.Context) {
	mID, ok := h.ParseID(c, "id")
	if !ok {
		return
	}
	var req dto.CompleteMaintenanceRequest
	if c.Request.ContentLength != 0 && !h.BindJSON(c, &req) {
		return
	}
	m, err := h.service.Complete(c.Request.Context(), mID, maintenance.CompleteInput{Cost: req.Cost, Notes: req.Notes})
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, m)
}

// Cancel handles POST /records/maintenance/:id/cancel.
func (h *MaintenanceHandler) Cancel(c *gin.Context) {
	mID, ok := h.ParseID(c, "id")
	if !ok {
		return
	}
	m, err := h.service.Cancel(c.Request.Context(), mID)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, m)
}

// AssignmentHandler serves /records/assignments.
type AssignmentHandler struct {
	*CatalogHandler[*assignment.Assignment]
	service *assignment.Service
}

func NewAssignmentHandler(base *BaseHandler, service *assignment.Service) *AssignmentHandler {
	return &AssignmentHandler{
		CatalogHandler: NewCatalogHandler[*assignment.Assignment](base, service, func() *assignment.Assignment {
			return assignment.New("", time.Now().UTC())
		}),
		service: service,
	}
}

// Return handles POST /records/assignments/:id/return.
func (h *AssignmentHandler) Return(c *gin.Context) {
	aID, ok := h.ParseID(c, "id")
	if !ok {
		return
	}
	var req dto.ReturnAssignmentRequest
	if c.Request.ContentLength != 0 && !h.BindJSON(c, &req) {
		return
	}
	a, err := h.service.Return(c.Request.Context(), aID, assignment.ReturnInput{ReturnedAt: req.ReturnedAt, Notes: req.Notes})
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, a)
}

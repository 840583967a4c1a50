// Package handlers provides the HTTP handlers of the v1 API.
package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"setflow/internal/core/apperror"
	"setflow/internal/core/id"
	"setflow/internal/domain"
	"setflow/internal/domain/filter"
	"setflow/internal/infrastructure/http/v1/dto"
)

// BaseHandler provides common handler utilities.
type BaseHandler struct{}

func NewBaseHandler() *BaseHandler {
	return &BaseHandler{}
}

// BindJSON decodes the request body into obj.
func (h *BaseHandler) BindJSON(c *gin.Context, obj any) bool {
	if err := c.ShouldBindJSON(obj); err != nil {
		h.Error(c, apperror.NewValidation("invalid request body").WithDetail("error", err.Error()))
		return false
	}
	return true
}

// Error registers err on the gin context and aborts. middleware.ErrorHandler
// writes the response.
func (h *BaseHandler) Error(c *gin.Context, err error) {
	_ = c.Error(err)
	c.Abort()
}

// ParseID reads the :name path parameter as an id.
func (h *BaseHandler) ParseID(c *gin.Context, name string) (id.ID, bool) {
	return h.parseID(c, c.Param(name), name)
}

func (h *BaseHandler) parseID(c *gin.Context, raw, field string) (id.ID, bool) {
	v, err := id.Parse(raw)
	if err != nil {
		h.Error(c, apperror.NewValidation("invalid id format").WithDetail("field", field))
		return id.ID{}, false
	}
	return v, true
}

// ParseIntQuery parses an integer query parameter, falling back to defaultVal.
func (h *BaseHandler) ParseIntQuery(c *gin.Context, key string, defaultVal int) int {
	parsed, err := strconv.Atoi(c.Query(key))
	if err != nil {
		return defaultVal
	}
	return parsed
}

// ParseDateQuery reads a YYYY-MM-DD or RFC 3339 query parameter. Missing
// values give the zero time.
func (h *BaseHandler) ParseDateQuery(c *gin.Context, key string) (time.Time, bool) {
	raw := c.Query(key)
	if raw == "" {
		return time.Time{}, true
	}
	for _, layout := range []string{time.DateOnly, time.RFC3339} {
		if t, err := time.Parse(layout, raw); err == nil {
			return t, true
		}
	}
	h.Error(c, apperror.NewValidation("invalid date").WithDetail("param", key))
	return time.Time{}, false
}

// ListFilter reads the shared list query parameters: search, limit,
// offset, orderBy, includeDeleted, parentId, isFolder, departmentId and a
// JSON-encoded filter array.
func (h *BaseHandler) ListFilter(c *gin.Context) (domain.ListFilter, bool) {
	f := domain.ListFilter{
		Search:         strings.TrimSpace(c.Query("search")),
		Limit:          h.ParseIntQuery(c, "limit", domain.DefaultLimit),
		Offset:         h.ParseIntQuery(c, "offset", 0),
		OrderBy:        c.Query("orderBy"),
		IncludeDeleted: c.Query("includeDeleted") == "true",
	}
	if v := c.Query("parentId"); v != "" {
		f.ParentID = &v
	}
	if v := c.Query("isFolder"); v != "" {
		folder := v == "true"
		f.IsFolder = &folder
	}
	if v := c.QueryArray("departmentId"); len(v) > 0 {
		f.DepartmentIDs = v
	}
	if raw := c.Query("filter"); raw != "" {
		var items []filter.Item
		if err := json.Unmarshal([]byte(raw), &items); err != nil {
			h.Error(c, apperror.NewValidation("invalid filter format (json expected)"))
			return f, false
		}
		f.Filters = items
	}
	f.Clamp()
	return f, true
}

func (h *BaseHandler) OK(c *gin.Context, data any) {
	c.JSON(http.StatusOK, data)
}

func (h *BaseHandler) Created(c *gin.Context, data any) {
	c.JSON(http.StatusCreated, data)
}

func (h *BaseHandler) NoContent(c *gin.Context) {
	c.Status(http.StatusNoContent)
}

// List writes a page of items.
func List[T any](c *gin.Context, res domain.ListResult[T]) {
	c.JSON(http.StatusOK, dto.ListResponse[T]{
		Items:      res.Items,
		TotalCount: res.TotalCount,
		Limit:      res.Limit,
		Offset:     res.Offset,
	})
}

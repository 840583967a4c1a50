package v1

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"setflow/internal/core/tenant"
	"setflow/internal/metadata"
	"setflow/pkg/logger"
)

func init() { gin.SetMode(gin.TestMode) }

type stubTenants struct{ err error }

func (s stubTenants) GetPool(context.Context, string) (*tenant.ManagedPool, error) {
	return nil, s.err
}

func (s stubTenants) Stats() []tenant.PoolStats {
	return []tenant.PoolStats{{TenantID: "t1", TotalConns: 4, AcquiredConns: 1}}
}

type stubPinger struct{ err error }

func (p stubPinger) Ping(context.Context) error { return p.err }

func testEngine(tenants stubTenants, meta stubPinger) *gin.Engine {
	cfg := RouterConfig{
		TenantManager:    tenants,
		MetaPool:         meta,
		Logger:           logger.Nop(),
		MetadataRegistry: metadata.NewRegistry(),
	}
	return newEngine(cfg, NewServices(cfg))
}

func get(r http.Handler, path string, headers map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestRouter_Health(t *testing.T) {
	r := testEngine(stubTenants{}, stubPinger{})

	assert.Equal(t, http.StatusOK, get(r, "/health/live", nil).Code)
	assert.Equal(t, http.StatusOK, get(r, "/health/ready", nil).Code)

	w := get(r, "/health/info", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"open_pools":1`)

	down := testEngine(stubTenants{}, stubPinger{err: errors.New("refused")})
	assert.Equal(t, http.StatusServiceUnavailable, get(down, "/health/ready", nil).Code)
}

func TestRouter_APIRequiresTenant(t *testing.T) {
	r := testEngine(stubTenants{err: tenant.ErrTenantNotFound}, stubPinger{})

	assert.Equal(t, http.StatusBadRequest, get(r, "/api/v1/catalog/assets", nil).Code)

	w := get(r, "/api/v1/catalog/assets", map[string]string{"X-Tenant-ID": "6f1c2b0e-8f3a-4c55-9a51-2d0c1e7b9a10"})
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Contains(t, w.Body.String(), "tenant not found")
}

func TestRouter_Routes(t *testing.T) {
	r := testEngine(stubTenants{}, stubPinger{})

	registered := map[string]bool{}
	for _, rt := range r.Routes() {
		registered[rt.Method+" "+rt.Path] = true
	}

	for _, want := range []string{
		"GET /api/v1/catalog/departments/tree",
		"POST /api/v1/catalog/departments/:id/restore",
		"GET /api/v1/catalog/categories/defaults/names",
		"PUT /api/v1/catalog/categories/:id/template",
		"POST /api/v1/catalog/categories/:id/template/ops",
		"POST /api/v1/catalog/assets/form",
		"GET /api/v1/catalog/assets/form/fields",
		"POST /api/v1/catalog/assets/:id/retire",
		"GET /api/v1/catalog/assets/:id/depreciation",
		"GET /api/v1/catalog/assets/:id/history",
		"POST /api/v1/records/maintenance/:id/complete",
		"POST /api/v1/records/assignments/:id/return",
		"GET /api/v1/dashboard/maintenance-cost",
		"GET /api/v1/meta/:name",
	} {
		assert.True(t, registered[want], want)
	}

	// No auth service, no file store.
	assert.False(t, registered["POST /api/v1/auth/login"])
	assert.False(t, registered["POST /api/v1/uploads"])
}

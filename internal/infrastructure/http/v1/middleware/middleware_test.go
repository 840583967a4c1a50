package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"setflow/internal/core/apperror"
	appctx "setflow/internal/core/context"
	"setflow/internal/core/security"
	"setflow/internal/infrastructure/storage/postgres"
)

func init() { gin.SetMode(gin.TestMode) }

func do(r http.Handler, method, path, body string, headers map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) ErrorDetail {
	t.Helper()
	var body ErrorBody
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body.Error
}

func TestErrorHandler_RendersAppError(t *testing.T) {
	r := gin.New()
	r.Use(ErrorHandler())
	r.GET("/x", func(c *gin.Context) {
		_ = c.Error(apperror.NewNotFound("asset", "42"))
	})

	w := do(r, http.MethodGet, "/x", "", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	e := decodeError(t, w)
	assert.Equal(t, apperror.CodeNotFound, e.Code)
	assert.Equal(t, "asset", e.Details["entity"])
}

func TestErrorHandler_HidesUnknownErrors(t *testing.T) {
	r := gin.New()
	r.Use(Trace(), ErrorHandler())
	r.GET("/x", func(c *gin.Context) {
		_ = c.Error(errors.New("pq: connection reset"))
	})

	w := do(r, http.MethodGet, "/x", "", map[string]string{HeaderRequestID: "req-1"})
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	e := decodeError(t, w)
	assert.Equal(t, apperror.CodeInternal, e.Code)
	assert.NotContains(t, w.Body.String(), "connection reset")
	assert.Equal(t, "req-1", e.Details["request_id"])
	assert.Equal(t, "req-1", w.Header().Get(HeaderRequestID))
}

func TestRecovery(t *testing.T) {
	r := gin.New()
	r.Use(ErrorHandler(), Recovery())
	r.GET("/boom", func(c *gin.Context) { panic("boom") })

	w := do(r, http.MethodGet, "/boom", "", nil)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, apperror.CodeInternal, decodeError(t, w).Code)
}

type stubValidator struct{ user *appctx.UserContext }

func (v stubValidator) ValidateToken(token string) (*appctx.UserContext, error) {
	if token != "good" {
		return nil, errors.New("bad token")
	}
	return v.user, nil
}

func TestAuthAndPermissions(t *testing.T) {
	viewer := &appctx.UserContext{UserID: "u1", Permissions: []string{"catalog:asset:read"}, DepartmentIDs: []string{"d1"}}
	r := gin.New()
	r.Use(ErrorHandler(), Auth(stubValidator{viewer}), AccessScope())
	r.GET("/assets", RequirePermission("catalog:asset:read"), func(c *gin.Context) {
		scope := security.GetScope(c.Request.Context())
		c.JSON(http.StatusOK, gin.H{"departments": scope.DepartmentIDs})
	})
	r.POST("/assets", RequirePermission("catalog:asset:create"), func(c *gin.Context) {
		c.Status(http.StatusCreated)
	})

	w := do(r, http.MethodGet, "/assets", "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = do(r, http.MethodGet, "/assets", "", map[string]string{"Authorization": "Bearer nope"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = do(r, http.MethodGet, "/assets", "", map[string]string{"Authorization": "Bearer good"})
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"departments":["d1"]}`, w.Body.String())

	w = do(r, http.MethodPost, "/assets", "{}", map[string]string{"Authorization": "Bearer good"})
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, "catalog:asset:create", decodeError(t, w).Details["required_permission"])
}

type memIdempotency struct {
	done     map[string]*postgres.Replay
	released []string
}

func (m *memIdempotency) Acquire(_ context.Context, key, _, _, _ string) (*postgres.Replay, error) {
	if r, ok := m.done[key]; ok {
		return r, nil
	}
	return nil, nil
}

func (m *memIdempotency) Complete(_ context.Context, key string, status int, contentType string, body []byte) error {
	m.done[key] = &postgres.Replay{StatusCode: status, ContentType: contentType, Body: append([]byte(nil), body...)}
	return nil
}

func (m *memIdempotency) Release(_ context.Context, key string) error {
	m.released = append(m.released, key)
	return nil
}

func TestIdempotency_ReplaysStoredResponse(t *testing.T) {
	store := &memIdempotency{done: map[string]*postgres.Replay{}}
	calls := 0
	r := gin.New()
	r.Use(ErrorHandler(), Idempotency(store))
	r.POST("/assets", func(c *gin.Context) {
		calls++
		c.JSON(http.StatusCreated, gin.H{"n": calls})
	})
	key := map[string]string{HeaderIdempotencyKey: "k1"}

	first := do(r, http.MethodPost, "/assets", `{"name":"x"}`, key)
	second := do(r, http.MethodPost, "/assets", `{"name":"x"}`, key)

	assert.Equal(t, 1, calls)
	assert.Equal(t, http.StatusCreated, second.Code)
	assert.JSONEq(t, first.Body.String(), second.Body.String())
	assert.Equal(t, "true", second.Header().Get("Idempotent-Replay"))

	do(r, http.MethodPost, "/assets", `{"name":"x"}`, nil)
	assert.Equal(t, 2, calls)
}

func TestIdempotency_StoresClientErrorsAndReleasesServerErrors(t *testing.T) {
	store := &memIdempotency{done: map[string]*postgres.Replay{}}
	r := gin.New()
	r.Use(ErrorHandler(), Idempotency(store))
	r.POST("/bad", func(c *gin.Context) { _ = c.Error(apperror.NewValidation("name is required")) })
	r.POST("/down", func(c *gin.Context) { _ = c.Error(errors.New("db down")) })

	w := do(r, http.MethodPost, "/bad", "{}", map[string]string{HeaderIdempotencyKey: "k-bad"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, apperror.CodeValidation, decodeError(t, w).Code)
	require.Contains(t, store.done, "k-bad")
	assert.Equal(t, http.StatusBadRequest, store.done["k-bad"].StatusCode)

	w = do(r, http.MethodPost, "/down", "{}", map[string]string{HeaderIdempotencyKey: "k-down"})
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.NotContains(t, store.done, "k-down")
	assert.Equal(t, []string{"k-down"}, store.released)
}

func TestTenantDB_RejectsMissingAndMalformedHeader(t *testing.T) {
	r := gin.New()
	r.Use(ErrorHandler(), TenantDB(nil))
	r.GET("/x", func(c *gin.Context) { c.Status(http.StatusOK) })

	w := do(r, http.MethodGet, "/x", "", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, TenantHeader, decodeError(t, w).Details["header"])

	w = do(r, http.MethodGet, "/x", "", map[string]string{TenantHeader: "acme"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestUploadHeaders(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.png"), []byte("png"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "b.bin"), []byte("<html></html>"), 0o644))

	r := gin.New()
	r.Group("/uploads", UploadHeaders()).Static("", dir)

	w := do(r, http.MethodGet, "/uploads/a.png", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "nosniff", w.Header().Get("X-Content-Type-Options"))
	assert.Empty(t, w.Header().Get("Content-Disposition"))

	w = do(r, http.MethodGet, "/uploads/b.bin", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "nosniff", w.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, "attachment", w.Header().Get("Content-Disposition"))
	assert.Equal(t, "application/octet-stream", w.Header().Get("Content-Type"))
}

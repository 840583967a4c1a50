package handlers

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"setflow/internal/core/apperror"
	appctx "setflow/internal/core/context"
	"setflow/internal/core/id"
	"setflow/internal/domain"
	"setflow/internal/domain/auth"
	"setflow/internal/infrastructure/http/v1/dto"
)

// AuthHandler serves /auth and /users.
type AuthHandler struct {
	*BaseHandler
	service *auth.Service
}

func NewAuthHandler(base *BaseHandler, service *auth.Service) *AuthHandler {
	return &AuthHandler{BaseHandler: base, service: service}
}

// Login handles POST /auth/login.
func (h *AuthHandler) Login(c *gin.Context) {
	var req dto.LoginRequest
	if !h.BindJSON(c, &req) {
		return
	}
	tokens, user, err := h.service.Login(c.Request.Context(), req.ToCredentials())
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, dto.LoginResponse{Tokens: dto.FromTokenPair(tokens), User: dto.FromUser(user)})
}

// Refresh handles POST /auth/refresh. The old refresh token is revoked.
func (h *AuthHandler) Refresh(c *gin.Context) {
	var req dto.RefreshTokenRequest
	if !h.BindJSON(c, &req) {
		return
	}
	tokens, err := h.service.RefreshToken(c.Request.Context(), req.RefreshToken)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, dto.FromTokenPair(tokens))
}

// Logout handles POST /auth/logout and revokes every session of the caller.
func (h *AuthHandler) Logout(c *gin.Context) {
	ctx := c.Request.Context()
	userID, err := id.Parse(appctx.GetUserID(ctx))
	if err != nil {
		h.Error(c, apperror.NewUnauthorized("authentication required"))
		return
	}
	if err := h.service.Logout(ctx, userID); err != nil {
		h.Error(c, err)
		return
	}
	h.NoContent(c)
}

// Me handles GET /auth/me.
func (h *AuthHandler) Me(c *gin.Context) {
	u := appctx.GetUser(c.Request.Context())
	if u == nil {
		h.Error(c, apperror.NewUnauthorized("authentication required"))
		return
	}
	depts := u.DepartmentIDs
	if depts == nil {
		depts = []string{}
	}
	h.OK(c, dto.MeResponse{
		UserID:        u.UserID,
		TenantID:      u.TenantID,
		Email:         u.Email,
		Roles:         u.Roles,
		Permissions:   u.Permissions,
		DepartmentIDs: depts,
		IsAdmin:       u.IsAdmin,
	})
}

// --- Users ---

// ListUsers handles GET /users?search=&isActive=&role=&departmentId=.
func (h *AuthHandler) ListUsers(c *gin.Context) {
	f := auth.UserFilter{
		Search:       c.Query("search"),
		RoleCode:     c.Query("role"),
		DepartmentID: c.Query("departmentId"),
		Limit:        h.ParseIntQuery(c, "limit", domain.DefaultLimit),
		Offset:       h.ParseIntQuery(c, "offset", 0),
	}
	if raw := c.Query("isActive"); raw != "" {
		active, err := strconv.ParseBool(raw)
		if err != nil {
			h.Error(c, apperror.NewValidation("invalid isActive").WithDetail("param", "isActive"))
			return
		}
		f.IsActive = &active
	}
	users, total, err := h.service.ListUsers(c.Request.Context(), f)
	if err != nil {
		h.Error(c, err)
		return
	}
	items := make([]*dto.UserResponse, len(users))
	for i := range users {
		items[i] = dto.FromUser(&users[i])
	}
	List(c, domain.ListResult[*dto.UserResponse]{Items: items, TotalCount: int64(total), Limit: f.Limit, Offset: f.Offset})
}

func (h *AuthHandler) GetUser(c *gin.Context) {
	userID, ok := h.ParseID(c, "id")
	if !ok {
		return
	}
	u, err := h.service.GetUserByID(c.Request.Context(), userID)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, dto.FromUser(u))
}

func (h *AuthHandler) CreateUser(c *gin.Context) {
	var req auth.CreateUserRequest
	if !h.BindJSON(c, &req) {
		return
	}
	u, err := h.service.CreateUser(c.Request.Context(), req)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.Created(c, dto.FromUser(u))
}

func (h *AuthHandler) UpdateUser(c *gin.Context) {
	userID, ok := h.ParseID(c, "id")
	if !ok {
		return
	}
	var req auth.UpdateUserRequest
	if !h.BindJSON(c, &req) {
		return
	}
	u, err := h.service.UpdateUser(c.Request.Context(), userID, req)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, dto.FromUser(u))
}

func (h *AuthHandler) DeleteUser(c *gin.Context) {
	userID, ok := h.ParseID(c, "id")
	if !ok {
		return
	}
	if err := h.service.DeleteUser(c.Request.Context(), userID); err != nil {
		h.Error(c, err)
		return
	}
	h.NoContent(c)
}

// SetRoles handles POST /users/:id/roles with the complete role list.
func (h *AuthHandler) SetRoles(c *gin.Context) {
	userID, ok := h.ParseID(c, "id")
	if !ok {
		return
	}
	var req dto.SetRolesRequest
	if !h.BindJSON(c, &req) {
		return
	}
	u, err := h.service.SetRoles(c.Request.Context(), userID, req.Roles)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, dto.FromUser(u))
}

// ListRoles handles GET /users/roles.
func (h *AuthHandler) ListRoles(c *gin.Context) {
	roles, err := h.service.ListRoles(c.Request.Context())
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, dto.Items(roles))
}

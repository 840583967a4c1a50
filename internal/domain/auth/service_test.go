package auth

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"setflow/internal/core/apperror"
	appctx "setflow/internal/core/context"
	"setflow/internal/core/id"
	"setflow/internal/core/security"
	"setflow/internal/domain/audit"
	"setflow/internal/domain/domaintest"
)

type authFixture struct {
	svc   *Service
	jwt   *JWTService
	store *memStore
	audit *domaintest.Recorder
	ctx   context.Context
}

func newAuthFixture(t *testing.T) *authFixture {
	t.Helper()
	store := newMemStore()
	jwtSvc := NewJWTService(DefaultJWTConfig("test-secret"))
	cfg := DefaultServiceConfig()
	cfg.MaxLoginAttempts = 2
	rec := &domaintest.Recorder{}
	svc := NewService(userRepo{store}, roleRepo{store}, permRepo{store}, tokenRepo{store}, jwtSvc, cfg, rec)

	ctx := testContext(&appctx.UserContext{UserID: id.New().String(), IsAdmin: true})
	require.NoError(t, svc.EnsureDefaultRoles(ctx))
	return &authFixture{svc: svc, jwt: jwtSvc, store: store, audit: rec, ctx: ctx}
}

func (f *authFixture) user(t *testing.T, email string, depts ...string) *User {
	t.Helper()
	u, err := f.svc.CreateUser(f.ctx, CreateUserRequest{
		Email:         email,
		Password:      "correct horse",
		DepartmentIDs: depts,
	})
	require.NoError(t, err)
	return u
}

func code(err error) string {
	if ae, ok := apperror.AsAppError(err); ok {
		return ae.Code
	}
	return ""
}

func TestEnsureDefaultRoles_Idempotent(t *testing.T) {
	f := newAuthFixture(t)
	perms := len(f.store.perms)
	require.NoError(t, f.svc.EnsureDefaultRoles(f.ctx))

	assert.Len(t, f.store.perms, perms)
	assert.Len(t, f.store.roles, 3)
	viewer := f.store.roles[security.RoleViewer]
	for _, pid := range f.store.rolePerms[viewer.ID] {
		for _, p := range f.store.perms {
			if p.ID == pid {
				assert.Equal(t, "read", p.Action, p.Code)
			}
		}
	}
}

func TestCreateUser_DefaultRoleAndDepartments(t *testing.T) {
	f := newAuthFixture(t)
	dept := id.New().String()

	u := f.user(t, "  Alice@Example.com ", dept)

	assert.Equal(t, "alice@example.com", u.Email)
	assert.Equal(t, []string{security.RoleViewer}, u.RoleCodes())
	assert.Contains(t, u.Permissions, "catalog:asset:read")
	assert.NotContains(t, u.Permissions, "catalog:asset:update")
	assert.Equal(t, []string{dept}, u.DepartmentIDs)
	assert.Equal(t, []audit.Action{audit.ActionCreate}, f.audit.Actions())

	_, err := f.svc.CreateUser(f.ctx, CreateUserRequest{Email: "alice@example.com", Password: "another password"})
	assert.Equal(t, apperror.CodeDuplicate, code(err))
}

func TestCreateUser_Validation(t *testing.T) {
	f := newAuthFixture(t)

	_, err := f.svc.CreateUser(f.ctx, CreateUserRequest{Email: "bob@example.com", Password: "short"})
	assert.True(t, apperror.IsValidation(err))

	_, err = f.svc.CreateUser(f.ctx, CreateUserRequest{Email: "not-an-email", Password: "long enough"})
	assert.True(t, apperror.IsValidation(err))

	_, err = f.svc.CreateUser(f.ctx, CreateUserRequest{Email: "bob@example.com", Password: "long enough", Roles: []string{"owner"}})
	assert.True(t, apperror.IsValidation(err))
}

func TestLogin_IssuesTokensWithScope(t *testing.T) {
	f := newAuthFixture(t)
	dept := id.New().String()
	f.user(t, "carol@example.com", dept)

	tokens, u, err := f.svc.Login(testContext(nil), Credentials{Email: "Carol@example.com", Password: "correct horse"})
	require.NoError(t, err)
	assert.Equal(t, "Bearer", tokens.TokenType)
	assert.NotEmpty(t, tokens.RefreshToken)
	require.NotNil(t, u.LastLoginAt)

	principal, err := f.jwt.ValidateToken(tokens.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, u.ID.String(), principal.UserID)
	assert.Equal(t, "t1", principal.TenantID)
	assert.Equal(t, []string{dept}, principal.DepartmentIDs)
	assert.Equal(t, []string{security.RoleViewer}, principal.Roles)
	assert.False(t, principal.IsAdmin)
}

func TestLogin_RequiresTenant(t *testing.T) {
	f := newAuthFixture(t)
	f.user(t, "dave@example.com")

	_, _, err := f.svc.Login(context.Background(), Credentials{Email: "dave@example.com", Password: "correct horse"})
	assert.True(t, apperror.IsValidation(err))
}

func TestLogin_LocksAfterFailures(t *testing.T) {
	f := newAuthFixture(t)
	f.user(t, "erin@example.com")
	ctx := testContext(nil)

	_, _, err := f.svc.Login(ctx, Credentials{Email: "nobody@example.com", Password: "x"})
	assert.Equal(t, apperror.CodeUnauthorized, code(err))

	for range 2 {
		_, _, err = f.svc.Login(ctx, Credentials{Email: "erin@example.com", Password: "wrong password"})
		assert.Equal(t, apperror.CodeUnauthorized, code(err))
	}

	_, _, err = f.svc.Login(ctx, Credentials{Email: "erin@example.com", Password: "correct horse"})
	assert.Equal(t, apperror.CodeForbidden, code(err))

	f.svc.now = func() time.Time { return time.Now().Add(time.Hour) }
	_, _, err = f.svc.Login(ctx, Credentials{Email: "erin@example.com", Password: "correct horse"})
	assert.NoError(t, err)
}

func TestRefreshToken_Rotates(t *testing.T) {
	f := newAuthFixture(t)
	f.user(t, "frank@example.com")
	ctx := testContext(nil)

	first, _, err := f.svc.Login(ctx, Credentials{Email: "frank@example.com", Password: "correct horse"})
	require.NoError(t, err)

	second, err := f.svc.RefreshToken(ctx, first.RefreshToken)
	require.NoError(t, err)
	assert.NotEqual(t, first.RefreshToken, second.RefreshToken)

	_, err = f.svc.RefreshToken(ctx, first.RefreshToken)
	assert.Equal(t, apperror.CodeUnauthorized, code(err))

	_, err = f.svc.RefreshToken(ctx, "garbage")
	assert.Equal(t, apperror.CodeUnauthorized, code(err))
}

func TestLogout_RevokesEverySession(t *testing.T) {
	f := newAuthFixture(t)
	u := f.user(t, "gina@example.com")
	ctx := testContext(nil)

	tokens, _, err := f.svc.Login(ctx, Credentials{Email: "gina@example.com", Password: "correct horse"})
	require.NoError(t, err)
	require.NoError(t, f.svc.Logout(ctx, u.ID))

	_, err = f.svc.RefreshToken(ctx, tokens.RefreshToken)
	assert.Equal(t, apperror.CodeUnauthorized, code(err))
}

func TestUpdateUser(t *testing.T) {
	f := newAuthFixture(t)
	u := f.user(t, "hank@example.com")

	name := "Hank"
	depts := []string{id.New().String()}
	updated, err := f.svc.UpdateUser(f.ctx, u.ID, UpdateUserRequest{FirstName: &name, DepartmentIDs: &depts})
	require.NoError(t, err)
	assert.Equal(t, "Hank", updated.FullName())
	assert.Equal(t, depts, updated.DepartmentIDs)

	_, err = f.svc.UpdateUser(f.ctx, u.ID, UpdateUserRequest{FirstName: &name, Version: 1})
	assert.True(t, apperror.IsConcurrentModification(err))

	calls := f.store.revokeCalls
	pw := "a brand new password"
	_, err = f.svc.UpdateUser(f.ctx, u.ID, UpdateUserRequest{Password: &pw})
	require.NoError(t, err)
	assert.Equal(t, calls+1, f.store.revokeCalls)

	_, _, err = f.svc.Login(testContext(nil), Credentials{Email: "hank@example.com", Password: pw})
	assert.NoError(t, err)
}

func TestDeleteUser(t *testing.T) {
	f := newAuthFixture(t)
	u := f.user(t, "ivy@example.com")

	self := testContext(&appctx.UserContext{UserID: u.ID.String(), IsAdmin: true})
	assert.Equal(t, apperror.CodeBusinessRule, code(f.svc.DeleteUser(self, u.ID)))

	require.NoError(t, f.svc.DeleteUser(f.ctx, u.ID))
	_, err := f.svc.GetUserByID(f.ctx, u.ID)
	assert.True(t, apperror.IsNotFound(err))

	_, _, err = f.svc.Login(testContext(nil), Credentials{Email: "ivy@example.com", Password: "correct horse"})
	assert.Equal(t, apperror.CodeUnauthorized, code(err))
}

func TestSetRoles(t *testing.T) {
	f := newAuthFixture(t)
	u := f.user(t, "jack@example.com")

	updated, err := f.svc.SetRoles(f.ctx, u.ID, []string{security.RoleManager})
	require.NoError(t, err)
	assert.Equal(t, []string{security.RoleManager}, updated.RoleCodes())
	assert.Contains(t, updated.Permissions, "record:maintenance:create")
	assert.NotContains(t, updated.Permissions, PermUsersManage)

	_, err = f.svc.SetRoles(f.ctx, u.ID, []string{"ghost"})
	assert.True(t, apperror.IsValidation(err))
}

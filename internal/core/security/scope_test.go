package security

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"setflow/internal/core/apperror"
	appctx "setflow/internal/core/context"
)

func TestAccessScope_DepartmentFiltering(t *testing.T) {
	ctx := appctx.WithUser(context.Background(), &appctx.UserContext{
		UserID:        "u1",
		DepartmentIDs: []string{"it", "ops"},
		Permissions:   []string{"catalog:asset:read"},
	})
	s := GetScope(ctx)

	assert.False(t, s.SeesAllAssets())
	assert.True(t, s.CanAccessDepartment("it"))
	assert.False(t, s.CanAccessDepartment("finance"))
	assert.Equal(t, []string{"it", "ops"}, s.FilterDepartments(nil))
	assert.Equal(t, []string{"ops"}, s.FilterDepartments([]string{"finance", "ops"}))
	assert.Empty(t, s.FilterDepartments([]string{"finance"}))
}

func TestAccessScope_AdminSeesEverything(t *testing.T) {
	ctx := appctx.WithUser(context.Background(), &appctx.UserContext{UserID: "root", IsAdmin: true})
	s := NewAccessScope(ctx)

	assert.True(t, s.SeesAllAssets())
	assert.Nil(t, s.FilterDepartments(nil))
	assert.NoError(t, s.Require("users:manage"))
}

func TestAccessScope_Require(t *testing.T) {
	s := &AccessScope{Permissions: []string{"catalog:asset:read"}}

	assert.NoError(t, s.Require("catalog:asset:read"))

	err := s.Require("catalog:asset:delete")
	ae, ok := apperror.AsAppError(err)
	assert.True(t, ok)
	assert.Equal(t, apperror.CodeForbidden, ae.Code)
}

func TestAccessScope_Anonymous(t *testing.T) {
	s := GetScope(context.Background())
	assert.False(t, s.CanAccessDepartment("it"))
	assert.Empty(t, s.FilterDepartments(nil))
}

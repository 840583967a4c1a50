package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appctx "setflow/internal/core/context"
)

func TestJWTService_RoundTrip(t *testing.T) {
	svc := NewJWTService(DefaultJWTConfig("secret"))
	token, expiresAt, err := svc.GenerateAccessToken(&appctx.UserContext{
		UserID:        "u1",
		TenantID:      "t1",
		Email:         "a@b.c",
		Roles:         []string{"manager"},
		DepartmentIDs: []string{"d1", "d2"},
	})
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(15*time.Minute), expiresAt, time.Minute)

	u, err := svc.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, "u1", u.UserID)
	assert.Equal(t, "t1", u.TenantID)
	assert.Equal(t, []string{"d1", "d2"}, u.DepartmentIDs)
}

func TestJWTService_Rejects(t *testing.T) {
	svc := NewJWTService(DefaultJWTConfig("secret"))
	token, _, err := svc.GenerateAccessToken(&appctx.UserContext{UserID: "u1"})
	require.NoError(t, err)

	_, err = NewJWTService(DefaultJWTConfig("other")).ValidateToken(token)
	assert.Error(t, err)

	other := DefaultJWTConfig("secret")
	other.Issuer = "someone-else"
	_, err = NewJWTService(other).ValidateToken(token)
	assert.Error(t, err)

	svc.now = func() time.Time { return time.Now().Add(time.Hour) }
	_, err = svc.ValidateToken(token)
	assert.Error(t, err)
}

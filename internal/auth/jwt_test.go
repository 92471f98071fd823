package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenManager_UsesConfiguredTTL(t *testing.T) {
	ttl := 2 * time.Hour
	tm := NewTokenManager("test-secret", ttl)

	start := time.Now()

	token, err := tm.GenerateToken(42, "lead@example.com", RoleLead)
	require.NoError(t, err)
	require.NotEmpty(t, token)

	claims, err := tm.ValidateToken(token)
	require.NoError(t, err)
	require.NotNil(t, claims.ExpiresAt)

	assert.WithinDuration(t, start.Add(ttl), claims.ExpiresAt.Time, 2*time.Second)
	assert.Equal(t, int64(42), claims.EmployeeID)
	assert.Equal(t, RoleLead, claims.Role)
	assert.Equal(t, "lead@example.com", claims.Actor())
	assert.True(t, claims.CanManageAlerts())
}

func TestTokenManager_DefaultsToViewer(t *testing.T) {
	tm := NewTokenManager("test-secret", 0)

	token, err := tm.GenerateToken(7, "", "")
	require.NoError(t, err)

	claims, err := tm.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, RoleViewer, claims.Role)
	assert.False(t, claims.CanManageAlerts())
	assert.Equal(t, "7", claims.Subject)
	assert.Equal(t, "employee:7", claims.Actor())
}

func TestTokenManager_RejectsForeignSignature(t *testing.T) {
	other := NewTokenManager("other-secret", time.Hour)
	token, err := other.GenerateToken(1, "x@example.com", RoleAdmin)
	require.NoError(t, err)

	_, err = NewTokenManager("test-secret", time.Hour).ValidateToken(token)
	assert.Error(t, err)
}

func TestTokenManager_RejectsExpired(t *testing.T) {
	tm := NewTokenManager("test-secret", time.Hour)
	claims := &Claims{
		EmployeeID: 1,
		Role:       RoleViewer,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Minute)),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("test-secret"))
	require.NoError(t, err)

	_, err = tm.ValidateToken(token)
	assert.ErrorIs(t, err, jwt.ErrTokenExpired)
}

func TestValidRole(t *testing.T) {
	assert.True(t, ValidRole(RoleViewer))
	assert.True(t, ValidRole(RoleLead))
	assert.True(t, ValidRole(RoleAdmin))
	assert.False(t, ValidRole("owner"))
	assert.False(t, ValidRole(""))
}

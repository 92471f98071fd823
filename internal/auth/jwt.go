package auth

import (
	"errors"
	"slices"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Roles carried in the token. Leads and admins may run detection and resolve
// alerts; viewers only read.
const (
	RoleViewer = "viewer"
	RoleLead   = "lead"
	RoleAdmin  = "admin"
)

// Claims defines the structured data we store in the JWT
type Claims struct {
	EmployeeID int64  `json:"employee_id"`
	Email      string `json:"email,omitempty"`
	Role       string `json:"role"`
	jwt.RegisteredClaims
}

// ValidRole reports whether role is one the API understands.
func ValidRole(role string) bool {
	return slices.Contains([]string{RoleViewer, RoleLead, RoleAdmin}, role)
}

// CanManageAlerts reports whether the caller may trigger detection runs and
// resolve alerts.
func (c *Claims) CanManageAlerts() bool {
	return slices.Contains([]string{RoleLead, RoleAdmin}, c.Role)
}

// Actor names the caller in audit fields such as resolved_by.
func (c *Claims) Actor() string {
	if c.Email != "" {
		return c.Email
	}
	return "employee:" + strconv.FormatInt(c.EmployeeID, 10)
}

type TokenManager struct {
	secretKey []byte
	ttl       time.Duration
}

func NewTokenManager(secret string, ttl time.Duration) *TokenManager {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &TokenManager{secretKey: []byte(secret), ttl: ttl}
}

// GenerateToken creates a new JWT access token. Tokens are normally issued by
// the identity provider; this is used by the CLI and tests.
func (tm *TokenManager) GenerateToken(employeeID int64, email, role string) (string, error) {
	if role == "" {
		role = RoleViewer
	}
	claims := &Claims{
		EmployeeID: employeeID,
		Email:      email,
		Role:       role,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(tm.ttl)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			Subject:   strconv.FormatInt(employeeID, 10),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(tm.secretKey)
}

// ValidateToken parses and validates the token string
func (tm *TokenManager) ValidateToken(tokenString string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return tm.secretKey, nil
	})

	if err != nil {
		return nil, err
	}

	if !token.Valid {
		return nil, errors.New("invalid token")
	}

	return claims, nil
}

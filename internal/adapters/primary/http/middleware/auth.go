package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/lorrc/workload-insights/internal/auth"
	"github.com/lorrc/workload-insights/internal/infrastructure/logging"
)

// contextKey is a custom type for context keys to avoid collisions.
type contextKey string

// ClaimsKey is the key used to store caller claims in the request context.
const ClaimsKey contextKey = "claims"

// JWTMiddleware validates the bearer token from the Authorization header.
// Browsers cannot set headers on websocket upgrades, so GET requests may pass
// the token in the "token" query parameter instead.
func JWTMiddleware(tm *auth.TokenManager) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tokenString, msg := bearerToken(r)
			if tokenString == "" {
				writeError(w, http.StatusUnauthorized, msg, "UNAUTHORIZED")
				return
			}

			claims, err := tm.ValidateToken(tokenString)
			if err != nil {
				writeError(w, http.StatusUnauthorized, "Invalid or expired token", "UNAUTHORIZED")
				return
			}

			// Add the claims to the context for downstream handlers to use.
			ctx := context.WithValue(r.Context(), ClaimsKey, claims)
			ctx = logging.WithCaller(ctx, claims.EmployeeID, claims.Role)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireAlertManager rejects callers that may not run detection or resolve
// alerts. It must run after JWTMiddleware.
func RequireAlertManager(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims, ok := ClaimsFromContext(r.Context())
		if !ok {
			writeError(w, http.StatusUnauthorized, "Authentication required", "UNAUTHORIZED")
			return
		}
		if !claims.CanManageAlerts() {
			writeError(w, http.StatusForbidden, "You do not have permission to perform this action", "FORBIDDEN")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// ClaimsFromContext returns the claims set by JWTMiddleware.
func ClaimsFromContext(ctx context.Context) (*auth.Claims, bool) {
	claims, ok := ctx.Value(ClaimsKey).(*auth.Claims)
	return claims, ok && claims != nil
}

func bearerToken(r *http.Request) (string, string) {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		if r.Method == http.MethodGet {
			if token := r.URL.Query().Get("token"); token != "" {
				return token, ""
			}
		}
		return "", "Authorization header is required"
	}

	parts := strings.Split(authHeader, " ")
	if len(parts) != 2 || parts[0] != "Bearer" {
		return "", "Authorization header format must be Bearer {token}"
	}
	return parts[1], ""
}

func writeError(w http.ResponseWriter, status int, message, code string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(`{"error":"` + message + `","code":"` + code + `"}`))
}

// Package middleware provides HTTP middleware for the advisor API.
package middleware

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/pgsteward/pgsteward/internal/auth"
	"github.com/pgsteward/pgsteward/internal/models"
)

// AuthMiddleware validates bearer tokens on protected routes.
type AuthMiddleware struct {
	jwtManager *auth.JWTManager

	// enforce is false in local single-user mode (no API key configured):
	// every request passes through unauthenticated.
	enforce bool
}

// NewAuthMiddleware creates a new auth middleware.
func NewAuthMiddleware(jwtManager *auth.JWTManager, enforce bool) *AuthMiddleware {
	return &AuthMiddleware{
		jwtManager: jwtManager,
		enforce:    enforce,
	}
}

// Authenticate validates the JWT bearer token and stores its claims on the
// request context.
func (m *AuthMiddleware) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !m.enforce {
			next.ServeHTTP(w, r)
			return
		}

		tokenString := extractToken(r)
		if tokenString == "" {
			writeError(w, http.StatusUnauthorized, models.ErrCodeUnauthorized, "Authorization token is required")
			return
		}

		claims, err := m.jwtManager.ValidateAccessToken(tokenString)
		if err != nil {
			writeError(w, http.StatusUnauthorized, models.ErrCodeUnauthorized, "Invalid or expired token")
			return
		}

		ctx := auth.ContextWithClaims(r.Context(), claims)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// extractToken extracts the JWT token from the Authorization header.
func extractToken(r *http.Request) string {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		return ""
	}

	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}

	return parts[1]
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(models.APIError{
		Code:    code,
		Message: message,
	})
}

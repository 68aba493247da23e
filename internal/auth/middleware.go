package auth

import (
	"context"
	"net/http"
	"strings"

	"github.com/jacobwhite/taskdeck/internal/models"
	pkghttp "github.com/jacobwhite/taskdeck/pkg/http"
)

// contextKey is a custom type for context keys
type contextKey string

const (
	// UserContextKey is the key for storing user claims in context
	UserContextKey contextKey = "user"
)

// TokenBlacklistChecker reports whether a token (by JTI) has been revoked.
type TokenBlacklistChecker interface {
	IsTokenRevoked(ctx context.Context, jti string) (bool, error)
}

// Middleware validates JWT access tokens, checks the revocation blacklist,
// and injects user claims into the request context. Blacklist lookup errors
// fail open: invalid or expired tokens still fail closed above.
func Middleware(tm *TokenManager, blacklist TokenBlacklistChecker) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				pkghttp.WriteUnauthorized(w, "Missing authorization header")
				return
			}

			parts := strings.SplitN(authHeader, " ", 2)
			if len(parts) != 2 || parts[0] != "Bearer" {
				pkghttp.WriteUnauthorized(w, "Invalid authorization header format")
				return
			}

			claims, err := tm.ValidateToken(parts[1])
			if err != nil {
				pkghttp.WriteUnauthorized(w, "Invalid or expired token")
				return
			}

			// Refresh tokens are only valid against /auth/refresh
			if claims.Type == "refresh" {
				pkghttp.WriteUnauthorized(w, "Refresh tokens cannot be used for API access")
				return
			}

			if blacklist != nil && claims.ID != "" {
				revoked, err := blacklist.IsTokenRevoked(r.Context(), claims.ID)
				if err == nil && revoked {
					pkghttp.WriteUnauthorized(w, "Token has been revoked")
					return
				}
			}

			ctx := context.WithValue(r.Context(), UserContextKey, claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireRole rejects requests whose authenticated claims lack the role.
func RequireRole(role string) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims := ClaimsFromContext(r.Context())
			if claims == nil {
				pkghttp.WriteUnauthorized(w, "Authentication required")
				return
			}
			if claims.Role != role {
				pkghttp.WriteForbidden(w, "Insufficient permissions")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// ClaimsFromContext extracts validated token claims, or nil when absent.
func ClaimsFromContext(ctx context.Context) *models.TokenClaims {
	claims, _ := ctx.Value(UserContextKey).(*models.TokenClaims)
	return claims
}

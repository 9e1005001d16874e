package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/iho/kasa/internal/domain"
	"github.com/iho/kasa/internal/infrastructure/auth"
	"github.com/iho/kasa/internal/infrastructure/logger"
)

// ContextKey is the type for context keys
type ContextKey string

const (
	// UserContextKey is the context key for the authenticated user
	UserContextKey ContextKey = "user"
)

// TokenVerifier validates bearer tokens.
type TokenVerifier interface {
	Verify(token string) (*auth.Claims, error)
}

var roleRank = map[domain.Role]int{
	domain.RoleViewer:   1,
	domain.RoleOperator: 2,
	domain.RoleAdmin:    3,
}

// AuthMiddleware requires a valid bearer token. onFailure, when set, is
// called with a short reason for every rejected request.
func AuthMiddleware(verifier TokenVerifier, onFailure func(reason string)) func(http.Handler) http.Handler {
	fail := func(w http.ResponseWriter, reason, message string) {
		if onFailure != nil {
			onFailure(reason)
		}
		http.Error(w, message, http.StatusUnauthorized)
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				fail(w, "missing", "missing authorization header")
				return
			}

			token, ok := bearerToken(authHeader)
			if !ok {
				fail(w, "malformed", "invalid authorization header format")
				return
			}

			claims, err := verifier.Verify(token)
			if err != nil {
				fail(w, "invalid", "invalid or expired token")
				return
			}

			user := claims.User()
			ctx := context.WithValue(r.Context(), UserContextKey, user)
			ctx = logger.WithActor(ctx, user.ID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func bearerToken(header string) (string, bool) {
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || parts[1] == "" {
		return "", false
	}
	return parts[1], true
}

// RequireRole rejects users whose role ranks below minRole.
func RequireRole(minRole domain.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user, ok := GetUserFromContext(r.Context())
			if !ok {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}

			if roleRank[user.Role] < roleRank[minRole] {
				http.Error(w, "insufficient permissions", http.StatusForbidden)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// GetUserFromContext extracts the authenticated user from context
func GetUserFromContext(ctx context.Context) (*domain.User, bool) {
	user, ok := ctx.Value(UserContextKey).(*domain.User)
	return user, ok
}

package middleware

import (
	"context"
	"strings"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"github.com/iho/kasa/internal/domain"
	"github.com/iho/kasa/internal/infrastructure/auth"
	"github.com/iho/kasa/internal/infrastructure/logger"
)

// ContextKey is the type for context keys
type ContextKey string

const (
	// UserContextKey is the context key for the authenticated user
	UserContextKey ContextKey = "user"

	// AuthorizationHeader is the metadata key for authorization
	AuthorizationHeader = "authorization"
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

// AuthInterceptor authenticates every call and enforces the minimum role
// listed for its full method name. Methods not listed need a viewer.
func AuthInterceptor(verifier TokenVerifier, roles map[string]domain.Role) grpc.UnaryServerInterceptor {
	return func(
		ctx context.Context,
		req any,
		info *grpc.UnaryServerInfo,
		handler grpc.UnaryHandler,
	) (any, error) {
		md, ok := metadata.FromIncomingContext(ctx)
		if !ok {
			return nil, status.Error(codes.Unauthenticated, "missing metadata")
		}

		values := md.Get(AuthorizationHeader)
		if len(values) == 0 {
			return nil, status.Error(codes.Unauthenticated, "missing authorization token")
		}

		accessToken := values[0]
		if scheme, token, found := strings.Cut(accessToken, " "); found && strings.EqualFold(scheme, "bearer") {
			accessToken = token
		}

		claims, err := verifier.Verify(accessToken)
		if err != nil {
			return nil, status.Error(codes.Unauthenticated, "invalid or expired token")
		}

		user := claims.User()
		minRole, ok := roles[info.FullMethod]
		if !ok {
			minRole = domain.RoleViewer
		}
		if roleRank[user.Role] < roleRank[minRole] {
			return nil, status.Error(codes.PermissionDenied, "insufficient permissions")
		}

		ctx = context.WithValue(ctx, UserContextKey, user)
		ctx = logger.WithActor(ctx, user.ID)
		return handler(ctx, req)
	}
}

// GetUserFromContext extracts the authenticated user from context
func GetUserFromContext(ctx context.Context) (*domain.User, bool) {
	user, ok := ctx.Value(UserContextKey).(*domain.User)
	return user, ok
}

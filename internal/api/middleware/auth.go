package middleware

import (
	"context"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/danghamo/accountd/internal/api/jsonrpcx"
	"github.com/danghamo/accountd/internal/domain/account"
	"github.com/danghamo/accountd/pkg/logger"
)

// AccountContextKey is the key type for account info in request context
type AccountContextKey string

const (
	// AccountKeyContextKey stores the authenticated account key
	AccountKeyContextKey AccountContextKey = "account_key"
	// AccountNameContextKey stores the authenticated account name
	AccountNameContextKey AccountContextKey = "account_name"
)

// AuthMiddleware authenticates bearer tokens issued by the JWT service
type AuthMiddleware struct {
	jwtService *account.JWTService
	logger     *logger.Logger
}

// NewAuthMiddleware creates a new auth middleware
func NewAuthMiddleware(jwtService *account.JWTService, logger *logger.Logger) *AuthMiddleware {
	return &AuthMiddleware{
		jwtService: jwtService,
		logger:     logger.WithComponent("auth-middleware"),
	}
}

// RequireAuth rejects requests without a valid bearer token
func (m *AuthMiddleware) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tokenString, ok := bearerToken(r)
		if !ok {
			m.logger.Debug("Missing or malformed Authorization header")
			jsonrpcx.WithError(r, nil, jsonrpcx.Unauthorized, "Missing bearer token")
			return
		}

		claims, err := m.jwtService.ValidateToken(tokenString)
		if err != nil {
			m.logger.Debug("Invalid JWT token", zap.Error(err))
			jsonrpcx.WithError(r, nil, jsonrpcx.Unauthorized, "Invalid or expired token")
			return
		}

		m.logger.WithAccountKey(claims.AccountKey).Debug("JWT authentication successful")
		next.ServeHTTP(w, r.WithContext(withAccount(r.Context(), claims)))
	})
}

// OptionalAuth attaches account info when a valid bearer token is present
func (m *AuthMiddleware) OptionalAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tokenString, ok := bearerToken(r)
		if !ok {
			next.ServeHTTP(w, r)
			return
		}

		claims, err := m.jwtService.ValidateToken(tokenString)
		if err != nil {
			m.logger.Debug("Optional auth failed", zap.Error(err))
			next.ServeHTTP(w, r)
			return
		}

		next.ServeHTTP(w, r.WithContext(withAccount(r.Context(), claims)))
	})
}

func bearerToken(r *http.Request) (string, bool) {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		return "", false
	}

	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || parts[0] != "Bearer" || parts[1] == "" {
		return "", false
	}
	return parts[1], true
}

func withAccount(ctx context.Context, claims *account.JWTClaims) context.Context {
	ctx = context.WithValue(ctx, AccountKeyContextKey, claims.AccountKey)
	return context.WithValue(ctx, AccountNameContextKey, claims.Name)
}

// GetAccountKey extracts the authenticated account key from request context
func GetAccountKey(ctx context.Context) (string, bool) {
	key, ok := ctx.Value(AccountKeyContextKey).(string)
	return key, ok
}

// GetAccountName extracts the authenticated account name from request context
func GetAccountName(ctx context.Context) (string, bool) {
	name, ok := ctx.Value(AccountNameContextKey).(string)
	return name, ok
}

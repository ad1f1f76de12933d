package auth

import (
	"context"
	"net/http"

	"github.com/xela07ax/spaceai-cmdgate/internal/domain"
	"go.uber.org/zap"
)

// TokenValidator — интерфейс, который должны реализовать и HTTP, и gRPC транспорт
type TokenValidator interface {
	VerifyToken(tokenStr string) (*domain.CustomClaims, error)
}

type ctxKey string

const claimsKey ctxKey = "claims"

// AnonymousUser — идентичность запросов при выключенной аутентификации.
const AnonymousUser = "anonymous"

func WithClaims(ctx context.Context, claims *domain.CustomClaims) context.Context {
	return context.WithValue(ctx, claimsKey, claims)
}

func ClaimsFromContext(ctx context.Context) (*domain.CustomClaims, bool) {
	c, ok := ctx.Value(claimsKey).(*domain.CustomClaims)
	return c, ok && c != nil
}

// UserID возвращает id из токена или пустую строку.
func UserID(ctx context.Context) string {
	if c, ok := ClaimsFromContext(ctx); ok {
		return c.UserID
	}
	return ""
}

func HasScope(ctx context.Context, scope string) bool {
	c, ok := ClaimsFromContext(ctx)
	return ok && c.Scopes[scope]
}

// AnonymousClaims — все права, используется только когда auth выключен в конфиге.
func AnonymousClaims() *domain.CustomClaims {
	return &domain.CustomClaims{
		UserID: AnonymousUser,
		Scopes: map[string]bool{
			domain.ScopeExecute:   true,
			domain.ScopeApprove:   true,
			domain.ScopeWhitelist: true,
		},
	}
}

func NewMiddleware(v TokenValidator, logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				http.Error(w, "Unauthorized", http.StatusUnauthorized)
				return
			}

			claims, err := v.VerifyToken(authHeader)
			if err != nil {
				logger.Warn("auth failure", zap.Error(err))
				http.Error(w, "Unauthorized", http.StatusUnauthorized)
				return
			}

			next.ServeHTTP(w, r.WithContext(WithClaims(r.Context(), claims)))
		})
	}
}

// NewAnonymousMiddleware выдает каждому запросу AnonymousClaims.
func NewAnonymousMiddleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			next.ServeHTTP(w, r.WithContext(WithClaims(r.Context(), AnonymousClaims())))
		})
	}
}

// RequireScope пропускает только токены с указанным scope.
func RequireScope(scope string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !HasScope(r.Context(), scope) {
				http.Error(w, "Forbidden: missing scope "+scope, http.StatusForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

package engine

import (
	"context"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"github.com/xela07ax/spaceai-cmdgate/internal/domain"
	"github.com/xela07ax/spaceai-cmdgate/internal/infra/auth"
)

// methodScopes — какой scope нужен для метода. Методы без записи доступны любому валидному токену.
var methodScopes = map[string]string{
	FullMethod(MethodExecute):             domain.ScopeExecute,
	FullMethod(MethodAddToWhitelist):      domain.ScopeWhitelist,
	FullMethod(MethodUpdateSecurityLevel): domain.ScopeWhitelist,
	FullMethod(MethodRemoveFromWhitelist): domain.ScopeWhitelist,
	FullMethod(MethodApproveCommand):      domain.ScopeApprove,
	FullMethod(MethodDenyCommand):         domain.ScopeApprove,
}

// UnaryAuthInterceptor проверяет токен в метаданных gRPC вызова.
// v == nil означает, что аутентификация выключена в конфиге.
func UnaryAuthInterceptor(v auth.TokenValidator, logger *zap.Logger) grpc.UnaryServerInterceptor {
	return func(
		ctx context.Context,
		req interface{},
		info *grpc.UnaryServerInfo,
		handler grpc.UnaryHandler,
	) (interface{}, error) {
		claims := auth.AnonymousClaims()

		if v != nil {
			md, ok := metadata.FromIncomingContext(ctx)
			if !ok {
				return nil, status.Errorf(codes.Unauthenticated, "missing metadata")
			}

			// В gRPC заголовки в нижнем регистре
			tokens := md.Get("authorization")
			if len(tokens) == 0 {
				return nil, status.Errorf(codes.Unauthenticated, "missing access token")
			}

			var err error
			claims, err = v.VerifyToken(tokens[0])
			if err != nil {
				logger.Warn("grpc auth failure", zap.String("method", info.FullMethod), zap.Error(err))
				return nil, status.Errorf(codes.Unauthenticated, "invalid access token")
			}
		}

		if scope, ok := methodScopes[info.FullMethod]; ok && !claims.Scopes[scope] {
			return nil, status.Errorf(codes.PermissionDenied, "token does not grant scope %s", scope)
		}

		ctx = auth.WithClaims(ctx, claims)
		ctx = WithActor(ctx, claims.UserID)
		return handler(ctx, req)
	}
}

// UnaryTraceInterceptor — аналог TracingMiddleware для gRPC (метаданные x-trace-id).
func UnaryTraceInterceptor() grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req interface{}, _ *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
		traceID := ""
		if md, ok := metadata.FromIncomingContext(ctx); ok {
			if vals := md.Get("x-trace-id"); len(vals) > 0 {
				traceID = vals[0]
			}
		}
		if traceID == "" {
			traceID = uuid.New().String()
		}
		_ = grpc.SetHeader(ctx, metadata.Pairs("x-trace-id", traceID))
		return handler(WithTraceID(ctx, traceID), req)
	}
}

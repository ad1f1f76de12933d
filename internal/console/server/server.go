package server

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/xela07ax/spaceai-cmdgate/internal/console/handler"
	"github.com/xela07ax/spaceai-cmdgate/internal/domain"
	"github.com/xela07ax/spaceai-cmdgate/internal/engine"
	"github.com/xela07ax/spaceai-cmdgate/internal/infra/auth"
)

// Handlers — обработчики доменов. Auth и Audit опциональны:
// без ключей нет логина, без БД нет журнала.
type Handlers struct {
	Auth      *handler.AuthHandler      // /auth/token
	Execute   *handler.ExecuteHandler   // /v1/execute
	Whitelist *handler.WhitelistHandler // /v1/whitelist
	Pending   *handler.PendingHandler   // /v1/pending (HITL)
	Audit     *handler.AuditHandler     // /v1/audit
	Dashboard *handler.DashboardHandler // /v1/stats
}

type ConsoleServer struct {
	router *chi.Mux
	logger *zap.Logger

	// nil — аутентификация выключена, все запросы идут как anonymous
	authValidator auth.TokenValidator

	h Handlers
}

// NewConsoleServer инициализирует HTTP API шлюза со всеми зависимостями
func NewConsoleServer(logger *zap.Logger, validator auth.TokenValidator, h Handlers) *ConsoleServer {
	s := &ConsoleServer{
		router:        chi.NewRouter(),
		logger:        logger.Named("console-api"),
		authValidator: validator,
		h:             h,
	}

	s.routes()
	return s
}

func (s *ConsoleServer) routes() {
	r := s.router

	// --- 1. Глобальные инфраструктурные Middleware ---
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(s.logger))
	r.Use(middleware.Recoverer)
	r.Use(engine.TracingMiddleware)

	// --- 2. ПУБЛИЧНЫЕ РОУТЫ ---
	r.Group(func(r chi.Router) {
		if s.h.Auth != nil {
			r.Post("/auth/token", s.h.Auth.Login)
		}
		r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
		})
	})

	// --- 3. ЗАЩИЩЕННЫЙ ПЕРИМЕТР ---
	r.Group(func(r chi.Router) {
		if s.authValidator != nil {
			r.Use(auth.NewMiddleware(s.authValidator, s.logger))
		} else {
			r.Use(auth.NewAnonymousMiddleware())
		}

		r.With(auth.RequireScope(domain.ScopeExecute)).Post("/v1/execute", s.h.Execute.Execute)

		r.Route("/v1/whitelist", func(r chi.Router) {
			r.Get("/", s.h.Whitelist.List)
			r.Group(func(r chi.Router) {
				r.Use(auth.RequireScope(domain.ScopeWhitelist))
				r.Post("/", s.h.Whitelist.Create)
				r.Put("/{command}/level", s.h.Whitelist.UpdateLevel)
				r.Delete("/{command}", s.h.Whitelist.Delete)
			})
		})

		// Human-in-the-loop
		r.Route("/v1/pending", func(r chi.Router) {
			r.Get("/", s.h.Pending.List)
			r.Group(func(r chi.Router) {
				r.Use(auth.RequireScope(domain.ScopeApprove))
				r.Post("/{id}/approve", s.h.Pending.Approve)
				r.Post("/{id}/deny", s.h.Pending.Deny)
			})
		})

		if s.h.Dashboard != nil {
			r.Get("/v1/stats", s.h.Dashboard.GetStats)
		}
		if s.h.Audit != nil {
			r.With(auth.RequireScope(domain.ScopeApprove)).Get("/v1/audit", s.h.Audit.GetLogs)
		}
	})
}

// ServeHTTP позволяет использовать ConsoleServer как стандартный http.Handler
func (s *ConsoleServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// requestLogger — access log через zap вместо стандартного middleware.Logger.
func requestLogger(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			defer func() {
				logger.Debug("http request",
					zap.String("method", r.Method),
					zap.String("path", r.URL.Path),
					zap.Int("status", ww.Status()),
					zap.Int("bytes", ww.BytesWritten()),
					zap.Duration("duration", time.Since(start)),
					zap.String("request_id", middleware.GetReqID(r.Context())),
				)
			}()
			next.ServeHTTP(ww, r)
		})
	}
}

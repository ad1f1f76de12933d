package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"google.golang.org/grpc"

	"github.com/xela07ax/spaceai-cmdgate/internal/audit"
	"github.com/xela07ax/spaceai-cmdgate/internal/console/handler"
	"github.com/xela07ax/spaceai-cmdgate/internal/console/server"
	"github.com/xela07ax/spaceai-cmdgate/internal/console/service"
	"github.com/xela07ax/spaceai-cmdgate/internal/engine"
	"github.com/xela07ax/spaceai-cmdgate/internal/infra"
	"github.com/xela07ax/spaceai-cmdgate/internal/infra/auth"
	"github.com/xela07ax/spaceai-cmdgate/internal/policy"
	"github.com/xela07ax/spaceai-cmdgate/internal/repository/postgres"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the gateway (HTTP + gRPC)",
	RunE: func(cmd *cobra.Command, args []string) error {
		configPath, _ := cmd.Flags().GetString("config")

		cfg, err := infra.LoadConfig(configPath)
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		logger, err := infra.NewLogger(cfg.Logger)
		if err != nil {
			return fmt.Errorf("failed to init logger: %w", err)
		}
		defer func() { _ = logger.Sync() }()

		return serve(cmd.Context(), cfg, logger)
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

// buildRegistry: встроенные записи (если включены), поверх — файл.
func buildRegistry(cfg infra.EngineConfig, logger *zap.Logger) (*policy.Registry, error) {
	var seed = policy.DefaultEntries()
	if !cfg.LoadDefaults {
		seed = nil
	}
	registry := policy.NewRegistry(logger, seed...)

	if cfg.WhitelistFile != "" {
		entries, err := policy.LoadFile(cfg.WhitelistFile)
		if err != nil {
			return nil, err
		}
		for _, e := range entries {
			registry.Add(e)
		}
	}
	return registry, nil
}

func serve(parent context.Context, cfg *infra.Config, logger *zap.Logger) error {
	// При SIGTERM/SIGINT ctx отменяется и останавливает фоновых слушателей
	appCtx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// 1. Политика
	registry, err := buildRegistry(cfg.Engine, logger)
	if err != nil {
		return err
	}
	logger.Info("whitelist loaded", zap.Int("entries", len(registry.List())))

	// 2. Метрики
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics := engine.NewMetrics(reg)

	notifier := engine.NewNotifier(logger, metrics)
	notifier.Subscribe(engine.LogSubscriber(logger))
	notifier.Subscribe(engine.MetricsSubscriber(metrics))

	// 3. Аудит в Postgres (опционально)
	var (
		auditH   *handler.AuditHandler
		activity service.ActivityProvider
	)
	if cfg.Database.URL != "" {
		repo, err := postgres.NewAuditRepo(appCtx, cfg.Database.URL, postgres.PoolConfig{
			MaxConns: cfg.Database.MaxConns,
			MinConns: cfg.Database.MinConns,
		})
		if err != nil {
			return err
		}
		defer repo.Close()
		if err := repo.EnsureSchema(appCtx); err != nil {
			return err
		}

		agentFS := audit.NewAgentFS(repo, logger, audit.Options{
			BufferSize:    cfg.Engine.AuditBufferSize,
			BatchSize:     cfg.Engine.AuditBatchSize,
			FlushInterval: cfg.Engine.AuditFlushInterval,
			BufferGauge:   metrics.AuditBufferFill,
		})
		agentFS.Start()
		// Останавливаем после серверов: последние события должны дописаться
		defer agentFS.Stop()

		notifier.Subscribe(agentFS)
		auditH = handler.NewAuditHandler(service.NewAuditService(repo))
		activity = repo
		logger.Info("audit storage enabled")
	}

	// 4. Redis: трансляция событий и сигналы белого списка (опционально)
	var rdb redis.UniversalClient
	if cfg.Redis.Addr != "" {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer client.Close()
		rdb = client

		sink := engine.NewReliabilityWrapper(
			engine.NewRedisPublisher(rdb, infra.RedisChanEvents),
			engine.ReliabilityConfig{
				RatePerSecond: cfg.Engine.SinkRatePerSecond,
				Burst:         cfg.Engine.SinkBurst,
				Attempts:      cfg.Engine.SinkAttempts,
				CallTimeout:   cfg.Engine.SinkTimeout,
			},
			metrics,
		)
		fwd := engine.NewForwarder(sink, cfg.Engine.EventBufferSize, logger, metrics)
		fwd.Start()
		defer fwd.Stop()
		notifier.Subscribe(fwd)

		listener := engine.NewPolicySignalListener(rdb, registry, infra.RedisChanWhitelistSignal, logger)
		go listener.Start(appCtx)
	}

	// 5. Ядро
	executor := engine.NewProcessExecutor(cfg.Engine.DefaultTimeout, logger)
	gw := engine.NewGateway(registry, executor, notifier, metrics, logger, engine.GatewayConfig{
		DefaultTimeout:    cfg.Engine.DefaultTimeout,
		DefaultDenyReason: cfg.Engine.DefaultDenyReason,
	})

	// 6. Аутентификация
	var (
		validator auth.TokenValidator
		authH     *handler.AuthHandler
	)
	if cfg.Auth.Enabled {
		pub, err := auth.ParseRSAPublicKey(cfg.Auth.PublicKey)
		if err != nil {
			return err
		}
		validator = auth.NewBaseValidator(pub)

		if len(cfg.Auth.PrivateKey) > 0 {
			priv, err := auth.ParseRSAPrivateKey(cfg.Auth.PrivateKey)
			if err != nil {
				return err
			}
			issuer := auth.NewTokenIssuer(priv, cfg.Auth.TokenTTL)
			authH = handler.NewAuthHandler(service.NewAuthService(cfg.Auth.Operators, issuer))
		}
	} else {
		logger.Warn("authentication disabled, all requests run as anonymous")
	}

	// 7. HTTP API. Правки реестра с обоих транспортов идут через один сервис
	wlSvc := service.NewWhitelistService(gw, rdb, logger)
	api := server.NewConsoleServer(logger, validator, server.Handlers{
		Auth:      authH,
		Execute:   handler.NewExecuteHandler(gw),
		Whitelist: handler.NewWhitelistHandler(wlSvc),
		Pending:   handler.NewPendingHandler(gw),
		Audit:     auditH,
		Dashboard: handler.NewDashboardHandler(service.NewStatsService(gw, activity)),
	})
	httpSrv := &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      api,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	errCh := make(chan error, 3)
	go func() {
		logger.Info("HTTP API started", zap.String("addr", httpSrv.Addr))
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("http: %w", err)
		}
	}()

	var metricsSrv *http.Server
	if cfg.Metrics.Addr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
		metricsSrv = &http.Server{Addr: cfg.Metrics.Addr, Handler: mux, ReadTimeout: 5 * time.Second}
		go func() {
			if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errCh <- fmt.Errorf("metrics: %w", err)
			}
		}()
	}

	// 8. gRPC
	var grpcSrv *grpc.Server
	if cfg.GRPC.Addr != "" {
		lis, err := net.Listen("tcp", cfg.GRPC.Addr)
		if err != nil {
			return fmt.Errorf("failed to listen gRPC: %w", err)
		}
		grpcSrv = grpc.NewServer(grpc.ChainUnaryInterceptor(
			engine.UnaryTraceInterceptor(),
			engine.UnaryAuthInterceptor(validator, logger),
		))
		engine.RegisterCommandGatewayServer(grpcSrv, engine.NewGRPCGatewayServer(gw, wlSvc))
		go func() {
			logger.Info("gRPC server started", zap.String("addr", cfg.GRPC.Addr))
			if err := grpcSrv.Serve(lis); err != nil {
				errCh <- fmt.Errorf("grpc: %w", err)
			}
		}()
	}

	// 9. Graceful Shutdown
	select {
	case <-appCtx.Done():
		logger.Info("gateway stopping...")
	case err := <-errCh:
		logger.Error("server failed", zap.Error(err))
		shutdown(logger, httpSrv, metricsSrv, grpcSrv)
		return err
	}

	shutdown(logger, httpSrv, metricsSrv, grpcSrv)
	logger.Info("gateway exited properly", zap.Int("pending_dropped", len(gw.PendingCommands())))
	return nil
}

// shutdown дает 5 секунд на завершение запросов.
// Ожидающие апрува запросы теряются: очередь живет только в памяти.
func shutdown(logger *zap.Logger, httpSrv, metricsSrv *http.Server, grpcSrv *grpc.Server) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := httpSrv.Shutdown(ctx); err != nil {
		logger.Error("http shutdown failed", zap.Error(err))
	}
	if metricsSrv != nil {
		_ = metricsSrv.Shutdown(ctx)
	}
	if grpcSrv == nil {
		return
	}
	// Висящие wait-вызовы не должны держать остановку бесконечно
	done := make(chan struct{})
	go func() {
		grpcSrv.GracefulStop()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		grpcSrv.Stop()
	}
}

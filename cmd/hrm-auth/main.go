package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	grpc_prometheus "github.com/grpc-ecosystem/go-grpc-prometheus"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/pribylovaa/hrm-auth/internal/cache"
	"github.com/pribylovaa/hrm-auth/internal/config"
	"github.com/pribylovaa/hrm-auth/internal/events"
	"github.com/pribylovaa/hrm-auth/internal/interceptors"
	"github.com/pribylovaa/hrm-auth/internal/metrics"
	"github.com/pribylovaa/hrm-auth/internal/password"
	"github.com/pribylovaa/hrm-auth/internal/service"
	"github.com/pribylovaa/hrm-auth/internal/storage/postgres"
	"github.com/pribylovaa/hrm-auth/internal/telemetry"
	"github.com/pribylovaa/hrm-auth/internal/token"
	authgrpc "github.com/pribylovaa/hrm-auth/internal/transport/grpc"
	authhttp "github.com/pribylovaa/hrm-auth/internal/transport/http"

	"google.golang.org/grpc"
	health "google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// Константы для определения окружения.
const (
	envLocal = "local"
	envDev   = "dev"
	envProd  = "prod"
)

const shutdownTimeout = 10 * time.Second

func main() {
	var configPath string
	flag.StringVar(&configPath, "config", "", "path to config file")
	flag.Parse()

	cfg := config.MustLoad(configPath)

	log := setupLogger(cfg.Env)
	slog.SetDefault(log)
	log.Info("starting_application", slog.String("env", cfg.Env))

	// Корневой контекст по сигналам.
	rootCtx, rootCancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)

	if err := run(rootCtx, cfg, log); err != nil {
		log.Error("service_failed", slog.String("err", err.Error()))
		rootCancel()
		os.Exit(1)
	}

	rootCancel()
	log.Info("service_stopped")
}

// run поднимает зависимости, HTTP и gRPC серверы и блокируется до сигнала
// завершения или фатальной ошибки одного из серверов.
func run(ctx context.Context, cfg *config.Config, log *slog.Logger) error {
	shutdownTracing, err := telemetry.Init(ctx, cfg.Tracing)
	if err != nil {
		return err
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := shutdownTracing(sctx); err != nil {
			log.Warn("tracing_shutdown_failed", slog.String("err", err.Error()))
		}
	}()

	// Подключение к БД c таймаутом.
	dbCtx, dbCancel := context.WithTimeout(ctx, 10*time.Second)
	str, err := postgres.New(dbCtx, cfg.DB.DatabaseURL)
	dbCancel()
	if err != nil {
		return fmt.Errorf("postgres connect: %w", err)
	}
	defer str.Close()
	log.Info("postgres_connected")

	if cfg.DB.MigrateOnStart {
		if err := str.Migrate(ctx); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
		log.Info("migrations_applied")
	}

	hasher, err := password.New(cfg.Password)
	if err != nil {
		return err
	}

	codec, err := token.NewCodec(cfg.Auth)
	if err != nil {
		return err
	}

	opts := []service.Option{
		service.WithStoreTimeout(cfg.Timeouts.Store),
		service.WithMetrics(metrics.New(prometheus.DefaultRegisterer)),
	}

	if cfg.Redis.RedisURL != "" {
		rctx, rcancel := context.WithTimeout(ctx, 5*time.Second)
		fc, err := cache.NewRedisCache(rctx, cfg.Redis.RedisURL, cfg.Redis.Prefix)
		rcancel()
		if err != nil {
			return fmt.Errorf("redis connect: %w", err)
		}
		defer fc.Close()
		opts = append(opts, service.WithFamilyCache(fc))
		log.Info("redis_connected")
	}

	if cfg.NATS.URL != "" {
		pub, err := events.Connect(cfg.NATS.URL, cfg.NATS.Subject)
		if err != nil {
			return fmt.Errorf("nats connect: %w", err)
		}
		defer pub.Close()
		opts = append(opts, service.WithPublisher(pub))
		log.Info("nats_connected", slog.String("subject", cfg.NATS.Subject))
	}

	svc := service.New(str, hasher, codec, opts...)
	log.Info("service_initialized", slog.String("password_algorithm", hasher.Algorithm()))

	var ready atomic.Bool

	// HTTP: API, пробы и /metrics.
	router := authhttp.NewRouter(svc, authhttp.Options{
		Logger:     log,
		Timeout:    cfg.Timeouts.Service,
		BasePath:   cfg.HTTP.BasePath,
		Ready:      ready.Load,
		Metrics:    promhttp.Handler(),
		TrustProxy: cfg.HTTP.TrustProxy,
	})

	httpSrv := &http.Server{
		Addr:              cfg.HTTP.Addr(),
		Handler:           telemetry.Middleware(cfg.Tracing.ServiceName)(router),
		ReadHeaderTimeout: 5 * time.Second,
	}

	grpc_prometheus.EnableHandlingTimeHistogram()

	// gRPC-сервер и интерсепторы.
	grpcServer := grpc.NewServer(
		grpc.ChainUnaryInterceptor(
			interceptors.Recover(log),
			interceptors.Logging(log),
			interceptors.WithTimeout(cfg.Timeouts.Service),
			grpc_prometheus.UnaryServerInterceptor,
		),
		grpc.ChainStreamInterceptor(
			grpc_prometheus.StreamServerInterceptor,
		),
	)

	hs := health.NewServer()
	healthpb.RegisterHealthServer(grpcServer, hs)
	authgrpc.RegisterAuthServiceServer(grpcServer, authgrpc.NewAuthServer(svc))
	grpc_prometheus.Register(grpcServer)

	// Фоновая очистка просроченных refresh-токенов.
	startRefreshJanitor(ctx, svc, log, cfg.Janitor.Period)

	listener, err := net.Listen("tcp", cfg.GRPC.Addr())
	if err != nil {
		return fmt.Errorf("grpc listen %s: %w", cfg.GRPC.Addr(), err)
	}

	serveErrCh := make(chan error, 2)

	go func() {
		log.Info("http_listen_start", slog.String("addr", httpSrv.Addr))
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErrCh <- fmt.Errorf("http serve: %w", err)
		}
	}()

	go func() {
		log.Info("grpc_listen_start", slog.String("addr", listener.Addr().String()))
		if err := grpcServer.Serve(listener); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
			serveErrCh <- fmt.Errorf("grpc serve: %w", err)
		}
	}()

	// Сервис готов: health -> SERVING и readiness.
	hs.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	hs.SetServingStatus(authgrpc.ServiceName, healthpb.HealthCheckResponse_SERVING)
	ready.Store(true)

	var serveErr error
	select {
	case <-ctx.Done():
		log.Info("shutdown_requested")
	case serveErr = <-serveErrCh:
		log.Error("server_failed", slog.String("err", serveErr.Error()))
	}

	// Снимаем готовность до остановки серверов.
	hs.Shutdown()
	ready.Store(false)

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()

	done := make(chan struct{})
	go func() {
		grpcServer.GracefulStop()
		close(done)
	}()

	select {
	case <-done:
		log.Info("grpc_stopped")
	case <-shutdownCtx.Done():
		log.Warn("grpc_force_stop")
		grpcServer.Stop()
	}

	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		log.Warn("http_shutdown_failed", slog.String("err", err.Error()))
	}

	return serveErr
}

// setupLogger настраивает slog по окружению.
func setupLogger(env string) *slog.Logger {
	var log *slog.Logger

	switch env {
	case envDev:
		log = slog.New(
			slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}),
		)
	case envProd:
		log = slog.New(
			slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}),
		)
	default:
		log = slog.New(
			slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}),
		)
	}

	return log
}

type expiredCleaner interface {
	CleanupExpired(ctx context.Context) (int64, error)
}

// startRefreshJanitor периодически удаляет просроченные refresh-токены.
func startRefreshJanitor(ctx context.Context, c expiredCleaner, log *slog.Logger, period time.Duration) {
	if period <= 0 {
		return
	}

	go func() {
		t := time.NewTicker(period)
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
				n, err := c.CleanupExpired(ctx)
				if err != nil {
					log.Error("refresh_janitor_failed", slog.String("err", err.Error()))
					continue
				}
				if n > 0 {
					log.Info("refresh_janitor_deleted", slog.Int64("count", n))
				}
			}
		}
	}()
}

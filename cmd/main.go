package main

import (
	"context"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/hellofresh/health-go/v5"
	healthPgx "github.com/hellofresh/health-go/v5/checks/pgx5"
	healthRedis "github.com/hellofresh/health-go/v5/checks/redis"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/yakoovad/teamhub/internal/api"
	"github.com/yakoovad/teamhub/internal/auth"
	"github.com/yakoovad/teamhub/internal/config"
	"github.com/yakoovad/teamhub/internal/db"
	"github.com/yakoovad/teamhub/internal/lock"
	"github.com/yakoovad/teamhub/internal/repository"
	"github.com/yakoovad/teamhub/internal/repository/memstore"
	"github.com/yakoovad/teamhub/internal/service"
	"github.com/yakoovad/teamhub/pkg/logger"
	"go.uber.org/zap"
)

const version = "v0.1.0"

type storage struct {
	tx          db.Transactor
	teams       repository.TeamRepository
	memberships repository.MembershipRepository
	users       repository.UserRepository
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logger, err := logger.NewLogger(cfg.LogLevel)
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	logger.Info("starting application", zap.String("storage", cfg.StorageDriver), zap.String("locks", cfg.LockBackend))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	auth.TokenSecretKey = cfg.TokenSecret

	var (
		store  storage
		checks []health.Config
	)

	switch cfg.StorageDriver {
	case config.StorageDriverPostgres:
		pool, err := pgxpool.New(ctx, cfg.GetDSN())
		if err != nil {
			logger.Fatal("failed to connect to database", zap.Error(err))
		}
		defer pool.Close()

		if err = pool.Ping(ctx); err != nil {
			logger.Fatal("failed to ping database", zap.Error(err))
		}

		if err = db.Migrate(cfg.MigrationsDir, cfg.GetDSN()); err != nil {
			logger.Fatal("failed to apply migrations", zap.Error(err))
		}

		logger.Info("database connection established")

		store = storage{
			tx:          db.NewPgxTransactor(pool),
			teams:       repository.NewPgxTeamRepository(pool),
			memberships: repository.NewPgxMembershipRepository(pool),
			users:       repository.NewPgxUserRepository(pool),
		}
		checks = append(checks, health.Config{
			Name:    "postgres",
			Timeout: 2 * time.Second,
			Check:   healthPgx.New(healthPgx.Config{DSN: cfg.GetDSN()}),
		})

	case config.StorageDriverMemory:
		mem, err := memstore.New()
		if err != nil {
			logger.Fatal("failed to create in-memory store", zap.Error(err))
		}

		logger.Warn("using in-memory storage, data will not survive a restart")

		store = storage{
			tx:          mem.Transactor(),
			teams:       mem.Teams(),
			memberships: mem.Memberships(),
			users:       mem.Users(),
		}
	}

	var locker lock.Locker

	switch cfg.LockBackend {
	case config.LockBackendRedis:
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		defer client.Close()

		if err = client.Ping(ctx).Err(); err != nil {
			logger.Fatal("failed to ping redis", zap.Error(err))
		}

		locker = lock.NewRedis(client, cfg.LockTTL, cfg.LockWait, logger)
		checks = append(checks, health.Config{
			Name:    "redis",
			Timeout: 2 * time.Second,
			Check:   healthRedis.New(healthRedis.Config{DSN: cfg.GetRedisDSN()}),
		})

	case config.LockBackendLocal:
		locker = lock.NewKeyed(cfg.LockWait)
	}

	if cfg.SingleInstanceOnly() {
		logger.Warn("local locks with postgres storage: run a single instance or set LOCK_BACKEND=redis")
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	team := service.NewTeamService(store.tx, locker, auth.NewBcryptHasher(cfg.BcryptCost)).
		WithTeamRepo(store.teams).
		WithMembershipRepo(store.memberships).
		WithUserRepo(store.users).
		WithMetrics(service.NewMetrics(registry))

	healthChecker, err := api.NewHealthChecker(version, checks...)
	if err != nil {
		logger.Fatal("failed to set up health checks", zap.Error(err))
	}

	e := echo.New()
	e.HideBanner = true

	handler := api.NewHandler(logger).
		WithTeamService(team).
		WithIdentity(auth.NewIdentity(store.users)).
		WithHealthChecker(healthChecker).
		WithMetricsHandler(promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))

	handler.RegisterRoutes(e)

	go func() {
		logger.Info("server starting", zap.String("addr", cfg.HTTPAddr))
		if err := e.Start(cfg.HTTPAddr); err != nil && err != http.ErrServerClosed {
			logger.Fatal("failed to start server", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err = e.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", zap.Error(err))
	}

	logger.Info("server exited")
}

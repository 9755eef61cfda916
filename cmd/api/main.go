package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	httptransport "github.com/spec-kit/auth-gate/internal/api/http"
	"github.com/spec-kit/auth-gate/internal/api/http/handlers"
	"github.com/spec-kit/auth-gate/internal/auth"
	"github.com/spec-kit/auth-gate/internal/config"
	"github.com/spec-kit/auth-gate/internal/domain"
	"github.com/spec-kit/auth-gate/internal/events"
	"github.com/spec-kit/auth-gate/internal/observability"
	"github.com/spec-kit/auth-gate/internal/persistence"
	"github.com/spec-kit/auth-gate/internal/repository"
	"github.com/spec-kit/auth-gate/internal/service"
	"github.com/spec-kit/auth-gate/internal/worker"
	apperrors "github.com/spec-kit/auth-gate/pkg/util"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.Logger, cfg.App)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pg, err := persistence.NewPostgres(ctx, cfg.Postgres, logger)
	if err != nil {
		logger.Fatal("failed to connect postgres", zap.Error(err))
	}
	defer pg.Close()

	pool := pg.PoolHandle()
	if pool == nil {
		logger.Fatal("POSTGRES_DSN is required")
	}
	if cfg.Postgres.RunMigrations {
		if err := persistence.RunMigrations(ctx, pool, persistence.DefaultMigrationsDir, logger); err != nil {
			logger.Fatal("failed to run migrations", zap.Error(err))
		}
	}

	redis := persistence.NewRedis(cfg.Redis, logger)
	defer redis.Close()

	metrics := observability.NewMetrics()
	dispatcher := events.NewInMemoryDispatcher()
	worker.StartAuditWorker(service.NewAuditService(dispatcher, logger))

	userRepo := repository.NewUserRepository(pool)
	hasher := auth.BcryptHasher{Cost: cfg.Auth.BcryptCost}

	tokens := auth.NewTokenManager(cfg.Auth.JWTSecret)
	registry := auth.NewRegistry(redis, auth.RegistryConfig{
		Prefix:     cfg.Redis.BlocklistPrefix,
		AccessTTL:  cfg.Auth.RevocationTTL(),
		RefreshTTL: cfg.Auth.RefreshRevocationTTL(),
		FailOpen:   cfg.Auth.RevocationFailOpen,
		OpTimeout:  cfg.Redis.OpTimeout(),
	}, logger, metrics)
	if cfg.Auth.RevocationFailOpen {
		logger.Warn("revocation registry configured to fail open")
	}
	verifier := auth.NewVerifier(tokens, registry)
	authenticator := auth.NewAuthenticator(userRepo, cfg.Postgres.QueryTimeout(), logger, metrics)

	readRoles := auth.RolesFromStrings(cfg.Auth.ReadRoles)
	writeRoles := auth.RolesFromStrings(cfg.Auth.WriteRoles)
	policy, err := auth.NewPolicy(map[auth.Operation][]domain.Role{
		auth.OpUsersMe:     readRoles,
		auth.OpUsersList:   readRoles,
		auth.OpUsersGet:    readRoles,
		auth.OpUsersUpdate: writeRoles,
		auth.OpUsersDelete: writeRoles,
	})
	if err != nil {
		logger.Fatal("invalid role policy", zap.Error(err))
	}
	gate := auth.NewGate(verifier, authenticator, policy, logger, metrics)

	authService := service.NewAuthService(*cfg, service.AuthDependencies{
		UserRepo:      userRepo,
		Tokens:        tokens,
		Verifier:      verifier,
		Revoker:       registry,
		Authenticator: authenticator,
		Hasher:        hasher,
		Dispatcher:    dispatcher,
		Recorder:      metrics,
		Logger:        logger,
	})
	userService := service.NewUserService(userRepo, hasher)
	validator := apperrors.NewValidator()

	app := fiber.New(fiber.Config{AppName: cfg.App.Name})
	httptransport.RegisterMiddlewares(app, logger, metrics, cfg.App.RequestTimeout())

	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health: handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, map[string]handlers.Pinger{
			"postgres": pg,
			"redis":    redis,
		}),
		Auth:         handlers.NewAuthHandler(authService, validator),
		Users:        handlers.NewUsersHandler(userService, validator),
		Gate:         gate,
		LoginLimiter: httptransport.NewRateLimiter(cfg.RateLimit.LoginPerMinute, cfg.RateLimit.LoginBurst),
		Metrics:      metrics,
	})

	go func() {
		if err := app.Listen(cfg.App.Addr()); err != nil {
			logger.Fatal("fiber listen", zap.Error(err))
		}
	}()

	waitForShutdown(logger)

	_ = app.Shutdown()
}

func waitForShutdown(logger *zap.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("shutting down", zap.String("signal", sig.String()))
}

// Package main is the entrypoint for the Cargoyard registry API.
package main

import (
	"context"
	"log/slog"
	"net/url"
	"os"
	"os/signal"
	"regexp"
	"strings"
	"syscall"

	"github.com/cargoyard/cargoyard/internal/audit"
	"github.com/cargoyard/cargoyard/internal/auth"
	"github.com/cargoyard/cargoyard/internal/cache"
	"github.com/cargoyard/cargoyard/internal/config"
	"github.com/cargoyard/cargoyard/internal/handler"
	"github.com/cargoyard/cargoyard/internal/logging"
	"github.com/cargoyard/cargoyard/internal/metrics"
	"github.com/cargoyard/cargoyard/internal/middleware"
	"github.com/cargoyard/cargoyard/internal/repository"
	"github.com/cargoyard/cargoyard/internal/server"
	"github.com/cargoyard/cargoyard/internal/service"
	"github.com/cargoyard/cargoyard/internal/telemetry"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := logging.New(os.Stdout, cfg.LogLevel, cfg.LogFormat)

	shutdownTracing, err := telemetry.Setup(ctx, telemetry.Options{
		Endpoint:    cfg.OTelEndpoint,
		ServiceName: cfg.OTelServiceName,
		Insecure:    cfg.OTelInsecure,
	})
	if err != nil {
		logger.Error("failed to set up tracing", "error", err)
		os.Exit(1)
	}

	if cfg.MigrateOnBoot {
		if err := repository.Migrate(ctx, cfg.DatabaseURL); err != nil {
			logger.Error("failed to run migrations", slog.String("error", sanitizeError(err, cfg.DatabaseURL)))
			os.Exit(1)
		}
		logger.Info("migrations applied")
	}

	repo, err := repository.New(ctx, cfg.DatabaseURL, repository.WithPoolSize(cfg.DBMaxConns, cfg.DBMinConns))
	if err != nil {
		logger.Error(
			"failed to connect to database",
			slog.String("error", sanitizeError(err, cfg.DatabaseURL)),
			slog.String("database_url", redactURL(cfg.DatabaseURL)),
		)
		os.Exit(1)
	}
	logger.Info("connected to database")

	cacheClient, err := cache.New(ctx, cfg.RedisURL, cfg.RedisPoolSize)
	if err != nil {
		repo.Close()
		logger.Error(
			"failed to connect to Redis",
			slog.String("error", sanitizeError(err, cfg.RedisURL)),
			slog.String("redis_url", redactURL(cfg.RedisURL)),
		)
		os.Exit(1)
	}
	logger.Info("connected to Redis")

	recorder := metrics.NewInMemory()
	publisher := audit.NewPublisher(cacheClient.Client(), logger, recorder)

	userService := service.NewUserService(repo, cacheClient, publisher, service.NewLogMailer(logger), logger, recorder)
	crateService := service.NewCrateService(repo)
	tokenService := service.NewTokenService(repo, logger)

	router := handler.NewRouter(handler.RouterConfig{
		Logger:   logger,
		Metrics:  recorder,
		Snapshot: recorder,
		Users:    handler.NewUserHandler(userService, logger),
		Crates:   handler.NewCrateHandler(crateService, logger),
		Tokens:   handler.NewTokenHandler(tokenService, logger),
		Health: handler.NewHealthHandler(map[string]handler.HealthChecker{
			"postgres": repo,
			"redis":    cacheClient,
		}),
		Auth: middleware.AuthConfig{
			Logger:           logger,
			Store:            repo,
			Cache:            cacheClient,
			Sessions:         auth.NewSessionManager(cfg.SessionSecret, cfg.SessionTTL),
			Metrics:          recorder,
			UserCacheTTL:     cfg.SessionCacheTTL,
			TokenMinDuration: middleware.DefaultTokenMinDuration,
		},
		RateLimit: middleware.RateLimitConfig{
			Logger:      logger,
			Limiter:     cacheClient,
			UserEnabled: cfg.RateLimitAPIEnabled,
			UserRPM:     cfg.RateLimitAPIRPM,
			UserBurst:   cfg.RateLimitAPIBurst,
			IPEnabled:   cfg.RateLimitPublicEnabled,
			IPRPS:       cfg.RateLimitPublicRPS,
			IPBurst:     cfg.RateLimitPublicBurst,
		},
		CORSAllowedOrigins: cfg.GetCORSAllowedOrigins(),
		MaxBodySize:        cfg.MaxRequestBodySize,
		IsDevelopment:      cfg.IsDevelopment(),
	})

	srv := server.New(router, server.Options{
		Port:            cfg.AppPort,
		ReadTimeout:     cfg.ReadTimeout,
		WriteTimeout:    cfg.WriteTimeout,
		ShutdownTimeout: cfg.ShutdownTimeout,
	}, logger)

	srv.OnShutdown("tracing", server.ShutdownFunc(shutdownTracing))
	srv.OnShutdown("postgres", func(context.Context) error {
		repo.Close()
		return nil
	})
	srv.OnShutdown("redis", func(context.Context) error {
		return cacheClient.Close()
	})

	if cfg.AuditWorkerEnabled {
		worker := audit.NewWorker(
			cacheClient.Client(),
			repository.NewModerationEventRepository(repo),
			logger,
			audit.NewConsumerID(),
			recorder,
		)
		go func() {
			if err := worker.Run(ctx); err != nil {
				logger.Error("audit worker stopped", "error", err)
			}
		}()
		srv.OnShutdown("audit-worker", worker.Shutdown)
	}

	logger.Info("starting registry API",
		"port", cfg.AppPort,
		"env", cfg.AppEnv,
		"audit_worker", cfg.AuditWorkerEnabled,
		"tracing", cfg.OTelEndpoint != "",
	)

	if err := srv.Run(ctx); err != nil {
		logger.Error("server error", "error", err)
		os.Exit(1)
	}
}

var passwordPattern = regexp.MustCompile(`(?i)password=[^\s]+`)

func redactURL(raw string) string {
	if raw == "" {
		return ""
	}

	parsed, err := url.Parse(raw)
	if err != nil {
		return "[redacted]"
	}

	if parsed.User != nil {
		username := parsed.User.Username()
		if username == "" {
			parsed.User = url.User("redacted")
		} else {
			parsed.User = url.User(username)
		}
	}

	return parsed.String()
}

// sanitizeError strips connection secrets from driver errors before logging.
func sanitizeError(err error, secrets ...string) string {
	if err == nil {
		return ""
	}

	msg := err.Error()
	for _, secret := range secrets {
		if secret == "" {
			continue
		}
		redacted := redactURL(secret)
		if redacted == "" {
			redacted = "[redacted]"
		}
		msg = strings.ReplaceAll(msg, secret, redacted)
	}

	return passwordPattern.ReplaceAllString(msg, "password=redacted")
}

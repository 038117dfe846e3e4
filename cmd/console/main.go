// Package main is the entrypoint for the Cargoyard admin console.
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/cargoyard/cargoyard/internal/cache"
	"github.com/cargoyard/cargoyard/internal/config"
	"github.com/cargoyard/cargoyard/internal/console"
	"github.com/cargoyard/cargoyard/internal/logging"
	"github.com/cargoyard/cargoyard/internal/metrics"
	"github.com/cargoyard/cargoyard/internal/registry"
	"github.com/cargoyard/cargoyard/internal/server"
	"github.com/cargoyard/cargoyard/internal/telemetry"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.LoadConsole()
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

	cacheClient, err := cache.New(ctx, cfg.RedisURL, cfg.RedisPoolSize)
	if err != nil {
		logger.Error("failed to connect to Redis", "error", err)
		os.Exit(1)
	}
	logger.Info("connected to Redis")

	c := console.New(console.Config{
		Registry: registry.NewClient(cfg.RegistryURL, cfg.RegistryTimeout, logger),
		Store:    console.NewStore(),
		State:    cache.NewConsoleState(cacheClient, cfg.StateTTL, logger),
		Capturer: telemetry.NewCollector(logger),
		Logger:   logger,
		Defaults: console.ProfileDefaults{Days: cfg.LockDays, Reason: cfg.LockReason},
	})

	srv := server.New(console.NewRouter(c, logger, metrics.NewInMemory()), server.Options{
		Port:            cfg.AppPort,
		ReadTimeout:     cfg.ReadTimeout,
		WriteTimeout:    cfg.WriteTimeout,
		ShutdownTimeout: cfg.ShutdownTimeout,
	}, logger)

	srv.OnShutdown("tracing", server.ShutdownFunc(shutdownTracing))
	srv.OnShutdown("redis", func(context.Context) error {
		return cacheClient.Close()
	})

	logger.Info("starting admin console",
		"port", cfg.AppPort,
		"registry_url", cfg.RegistryURL,
		"env", cfg.AppEnv,
	)

	if err := srv.Run(ctx); err != nil {
		logger.Error("server error", "error", err)
		os.Exit(1)
	}
}

package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"storysync/internal/config"
	"storysync/internal/connectivity"
	"storysync/internal/gateway/storyapi"
	"storysync/internal/publisher"
	"storysync/internal/scheduler"
	"storysync/internal/service"
	"storysync/internal/storage/sqlite"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	flag.Parse()

	// Setup logger
	logger := setupLogger("info")

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger = setupLogger(cfg.LogLevel)

	db, err := sqlite.Open(cfg.Database.Path)
	if err != nil {
		logger.Error("failed to open local store", "path", cfg.Database.Path, "error", err)
		os.Exit(1)
	}
	defer db.Close()
	logger.Info("local store ready", "path", cfg.Database.Path)

	// Initialize stores
	cacheStore := sqlite.NewCacheStore(db)
	favoriteStore := sqlite.NewFavoriteStore(db)

	// Initialize story API gateway
	gateway := storyapi.New(storyapi.Config{
		BaseURL:        cfg.API.BaseURL,
		Timeout:        cfg.API.Timeout,
		MaxAttempts:    cfg.API.Retry.MaxAttempts,
		InitialBackoff: cfg.API.Retry.InitialBackoff,
		MaxBackoff:     cfg.API.Retry.MaxBackoff,
	}, logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	tokens, err := resolveToken(ctx, cfg.Auth, gateway, logger)
	if err != nil {
		logger.Error("failed to log in", "error", err)
		os.Exit(1)
	}

	// Initialize RabbitMQ publisher when enabled
	var pub service.Publisher
	if cfg.RabbitMQ.Enabled {
		rabbitMQ, err := publisher.NewRabbitMQ(publisher.Config{
			URL:        cfg.RabbitMQ.URL,
			Exchange:   cfg.RabbitMQ.Exchange,
			RoutingKey: cfg.RabbitMQ.RoutingKey,
			QueueName:  cfg.RabbitMQ.QueueName,
		}, logger)
		if err != nil {
			logger.Error("failed to connect to rabbitmq", "error", err)
			os.Exit(1)
		}
		defer rabbitMQ.Close()
		pub = rabbitMQ
	}

	monitor, err := connectivity.NewMonitor(connectivity.Config{
		BaseURL:  cfg.API.BaseURL,
		Interval: cfg.Sync.ConnectivityProbe,
	}, logger)
	if err != nil {
		logger.Error("failed to create connectivity monitor", "error", err)
		os.Exit(1)
	}
	go monitor.Start(ctx)

	orchestrator := service.NewOrchestrator(
		gateway,
		cacheStore,
		favoriteStore,
		monitor,
		tokens,
		pub,
		logger,
		cfg.Sync,
	)

	var reconnect scheduler.Signal
	if cfg.Sync.RefreshOnReconnect {
		reconnect = monitor
	}
	sched := scheduler.NewScheduler(orchestrator, reconnect, cfg.Sync.Interval, logger)

	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		sig := <-sigCh
		logger.Info("received shutdown signal", "signal", sig)
		cancel()
	}()

	logger.Info("starting story syncer",
		"base_url", cfg.API.BaseURL,
		"interval", cfg.Sync.Interval,
		"pages", cfg.Sync.PagesPerRefresh,
	)

	if err := sched.Start(ctx); err != nil && err != context.Canceled {
		logger.Error("scheduler error", "error", err)
		os.Exit(1)
	}
}

// resolveToken picks the credential for authenticated endpoints: an
// explicit token wins, otherwise configured credentials are exchanged via
// login, otherwise the daemon runs as a guest.
func resolveToken(ctx context.Context, cfg config.AuthConfig, gateway *storyapi.Client, logger *slog.Logger) (service.TokenProvider, error) {
	if cfg.Token != "" {
		return service.StaticToken(cfg.Token), nil
	}
	if cfg.Email != "" && cfg.Password != "" {
		session, err := gateway.Login(ctx, cfg.Email, cfg.Password)
		if err != nil {
			return nil, err
		}
		logger.Info("logged in", "user", session.Name)
		return service.StaticToken(session.Token), nil
	}
	logger.Info("no credentials configured, running as guest")
	return service.StaticToken(""), nil
}

func setupLogger(level string) *slog.Logger {
	var logLevel slog.Level
	switch level {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: logLevel}
	handler := slog.NewJSONHandler(os.Stdout, opts)
	return slog.New(handler)
}

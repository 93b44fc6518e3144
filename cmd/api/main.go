// Package main is the entry point for the HydraChat API server.
//
// It loads configuration, connects the PostgreSQL pool, wires the domain
// services (auth, completion, billing, chat orchestration) into the HTTP
// chassis, and serves until SIGINT/SIGTERM triggers a graceful shutdown.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"

	"hydrachat/internal/api/handlers"
	"hydrachat/internal/auth"
	"hydrachat/internal/billing"
	"hydrachat/internal/chat"
	"hydrachat/internal/config"
	"hydrachat/internal/core"
	"hydrachat/internal/db"
	"hydrachat/internal/external"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

// run encapsulates the startup lifecycle so that main() can cleanly exit on error.
func run() error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}

	logger := newLogger(cfg.LogLevel)
	logger.Info("hydrachat API starting",
		"environment", cfg.Environment,
		"version", cfg.Build.Version,
		"commit", cfg.Build.Commit,
		"port", cfg.Server.Port,
	)

	// Database pool. The ping inside NewPool makes a bad DATABASE_URL fail
	// startup instead of the first request.
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	pool, err := db.NewPool(ctx, cfg.Database)
	cancel()
	if err != nil {
		return fmt.Errorf("connecting to database: %w", err)
	}

	// Repositories.
	users := db.NewUserRepository(pool)
	sessions := db.NewSessionRepository(pool)
	chats := db.NewChatRepository(pool)
	messages := db.NewMessageRepository(pool)
	subscribers := db.NewSubscriberRepository(pool)

	// Domain services.
	authService := auth.NewService(users, sessions, cfg.Auth, logger)

	completionClient := external.NewOpenRouterClient(
		&http.Client{Timeout: cfg.Completion.Timeout},
		cfg.Completion,
		logger,
	)
	stripeClient := external.NewStripeClient(
		&http.Client{Timeout: 20 * time.Second},
		external.StripeClientConfig{Billing: cfg.Billing, Logger: logger},
	)

	resolver := billing.NewResolver(stripeClient, subscribers, logger)
	tracker := chat.NewTracker(subscribers, logger)
	orchestrator := chat.NewOrchestrator(chats, messages, completionClient, tracker, resolver, logger)

	// HTTP chassis.
	srv, err := core.NewServer(cfg, logger)
	if err != nil {
		return fmt.Errorf("creating server: %w", err)
	}
	srv.Authenticator = authService
	srv.Metrics = core.NewLogMetrics(logger)
	srv.HealthProbes = []core.HealthProbe{&db.PoolProbe{Pool: pool}}
	srv.Closers = []func(){pool.Close}

	// Handlers.
	authHandler := handlers.NewAuthHandler(authService, srv.Validator, logger)
	chatHandler := handlers.NewChatHandler(orchestrator, chats, messages, srv.Validator, logger)
	subscriptionHandler := handlers.NewSubscriptionHandler(resolver, stripeClient, cfg, srv.Validator, logger)
	webhookHandler := handlers.NewStripeWebhookHandler(
		&external.StripeVerifier{},
		resolver,
		subscribers,
		cfg.Billing,
		logger,
	)

	srv.V1RouteRegistrars = append(srv.V1RouteRegistrars,
		func(r chi.Router) { authHandler.RegisterRoutes(r) },
		func(r chi.Router) { chatHandler.RegisterRoutes(r) },
		func(r chi.Router) { subscriptionHandler.RegisterRoutes(r) },
		func(r chi.Router) { webhookHandler.RegisterRoutes(r) },
	)

	srv.MountRoutes()

	return runHTTPServer(srv, cfg, logger)
}

// runHTTPServer starts the server in standard HTTP mode with graceful shutdown.
func runHTTPServer(srv *core.Server, cfg *config.Config, logger *slog.Logger) error {
	addr := ":" + cfg.Server.Port

	httpServer := &http.Server{
		Addr:              addr,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		// Write timeout must exceed the completion provider timeout, or slow
		// model responses get cut off mid-reply.
		WriteTimeout: cfg.Completion.Timeout + 30*time.Second,
		IdleTimeout:  120 * time.Second,
	}

	serverErr := make(chan error, 1)

	go func() {
		logger.Info("HTTP server listening", "addr", addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-shutdown:
		logger.Info("shutdown signal received", "signal", sig.String())
	case err := <-serverErr:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
	}

	logger.Info("initiating graceful shutdown")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(ctx); err != nil {
		logger.Error("HTTP server shutdown error", "error", err)
	}

	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("server resource shutdown error", "error", err)
		return fmt.Errorf("server shutdown: %w", err)
	}

	logger.Info("server stopped cleanly")
	return nil
}

// newLogger creates a structured slog.Logger configured for the given log level.
func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "info":
		lvl = slog.LevelInfo
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}

	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: lvl,
	})
	return slog.New(handler)
}

// cmd/main.go is the application entry point.
// It wires together all layers and starts the HTTP server.
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
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/redis/go-redis/v9"

	"github.com/Shivanand-hulikatti/campus-event-engine/internal/clock"
	"github.com/Shivanand-hulikatti/campus-event-engine/internal/config"
	"github.com/Shivanand-hulikatti/campus-event-engine/internal/database"
	"github.com/Shivanand-hulikatti/campus-event-engine/internal/fanout"
	"github.com/Shivanand-hulikatti/campus-event-engine/internal/handler"
	"github.com/Shivanand-hulikatti/campus-event-engine/internal/repository"
	"github.com/Shivanand-hulikatti/campus-event-engine/internal/service"
	"github.com/Shivanand-hulikatti/campus-event-engine/internal/ticket"
)

func main() {
	if err := run(); err != nil {
		slog.Error("fatal", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	level, err := cfg.SlogLevel()
	if err != nil {
		return err
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ── 1. Connect to PostgreSQL and Redis ───────────────────────────────
	pool, err := database.NewPool(ctx, cfg.Database, logger)
	if err != nil {
		return fmt.Errorf("database: %w", err)
	}
	defer pool.Close()

	if err := database.Migrate(cfg.Database.URL()); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	logger.Info("connected to postgres", "host", cfg.Database.Host, "db", cfg.Database.Name)

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer rdb.Close()
	if err := rdb.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis: %w", err)
	}
	logger.Info("connected to redis", "addr", cfg.Redis.Addr)

	// ── 2. Notification fan-out ──────────────────────────────────────────
	noteRepo := repository.NewNotificationRepository(pool)
	sinks := []fanout.Sink{fanout.NewInboxSink(noteRepo)}
	if cfg.RabbitURL != "" {
		broker, err := fanout.NewRabbitPublisher(cfg.RabbitURL)
		if err != nil {
			return fmt.Errorf("rabbitmq: %w", err)
		}
		defer broker.Close()
		sinks = append(sinks, broker)
		logger.Info("publishing notifications to rabbitmq", "exchange", fanout.ExchangeName)
	}
	dispatcher := fanout.NewDispatcher(logger, fanout.Options{
		Workers:     cfg.Fanout.Workers,
		QueueSize:   cfg.Fanout.QueueSize,
		MaxAttempts: cfg.Fanout.MaxAttempts,
		RetryDelay:  cfg.Fanout.RetryDelay,
	}, sinks...)
	dispatcher.Start(ctx)

	// ── 3. Wire up layers ────────────────────────────────────────────────
	clk := clock.NewSystem()
	tx := repository.NewTxManager(pool)
	eventRepo := repository.NewEventRepository(pool)
	regRepo := repository.NewRegistrationRepository(pool)

	api := handler.New(handler.Services{
		Events: service.NewEventService(service.EventDeps{
			Tx:            tx,
			Events:        eventRepo,
			Registrations: regRepo,
			Publisher:     dispatcher,
			Clock:         clk,
			ArchivePolicy: cfg.ArchivePolicy,
			Logger:        logger,
		}),
		Registrations: service.NewRegistrationService(service.RegistrationDeps{
			Tx:            tx,
			Events:        eventRepo,
			Registrations: regRepo,
			Issuer:        ticket.NewIssuer(),
			Publisher:     dispatcher,
			Clock:         clk,
			Logger:        logger,
		}),
		Favorites: service.NewFavoriteService(repository.NewFavoriteRepository(rdb), eventRepo, logger),
		Inbox:     service.NewInboxService(noteRepo, clk),
	}, logger)

	// ── 4. Build the router ──────────────────────────────────────────────
	r := chi.NewRouter()
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(handler.Logger(logger))
	r.Use(handler.CORS)

	r.Get("/health", handler.HealthCheck)
	r.Mount("/", api.Routes())

	// ── 5. Start server with graceful shutdown ───────────────────────────
	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server listening", "addr", srv.Addr, "archive_policy", string(cfg.ArchivePolicy))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server: %w", err)
	case <-ctx.Done():
	}

	logger.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown: %w", err)
	}
	// Requests have finished; drain what they published.
	if err := dispatcher.Close(shutdownCtx); err != nil {
		logger.Warn("notification queue not drained", "error", err)
	}
	logger.Info("server stopped")
	return nil
}

// Package main is the entry point for the Switchboard server. It loads
// configuration, opens the selected storage backend, wires the application,
// starts the capability-change consumer, and serves HTTP until signalled.
package main

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/keyxmakerx/switchboard/internal/app"
	"github.com/keyxmakerx/switchboard/internal/config"
	"github.com/keyxmakerx/switchboard/internal/database"
	"github.com/keyxmakerx/switchboard/internal/queue"
)

// shutdownTimeout gives in-flight requests time to finish.
const shutdownTimeout = 10 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", slog.Any("error", err))
		os.Exit(1)
	}

	setupLogging(cfg)

	slog.Info("starting Switchboard",
		slog.String("env", cfg.Env),
		slog.Int("port", cfg.Port),
		slog.String("identity_url", cfg.Identity.URL),
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var (
		db  *sql.DB
		rdb *redis.Client
	)
	switch cfg.Storage.Driver {
	case config.StorageMariaDB:
		db, err = database.NewMariaDB(ctx, cfg.Database)
		if err != nil {
			slog.Error("failed to connect to MariaDB", slog.Any("error", err))
			os.Exit(1)
		}
		defer db.Close()
		slog.Info("connected to MariaDB")

		if err := database.RunMigrations(db, cfg.Storage.MigrationsPath); err != nil {
			slog.Error("failed to run migrations", slog.Any("error", err))
			os.Exit(1)
		}

	case config.StorageRedis:
		rdb, err = database.NewRedis(ctx, cfg.Redis)
		if err != nil {
			slog.Error("failed to connect to Redis", slog.Any("error", err))
			os.Exit(1)
		}
		defer rdb.Close()
		slog.Info("connected to Redis")
	}

	application, err := app.New(cfg, db, rdb)
	if err != nil {
		slog.Error("failed to create application", slog.Any("error", err))
		os.Exit(1)
	}
	application.RegisterRoutes()

	go application.Run(ctx)

	if cfg.Queue.Enabled() {
		consumer := queue.NewConsumer(cfg.Queue.URL, cfg.Queue.Name, application.Sessions)
		go func() {
			if err := consumer.Run(ctx); err != nil {
				slog.Error("capability consumer stopped", slog.Any("error", err))
			}
		}()
	}

	go func() {
		<-ctx.Done()
		slog.Info("shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := application.Shutdown(shutdownCtx); err != nil {
			slog.Error("server forced shutdown", slog.Any("error", err))
		}
	}()

	if err := application.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("server error", slog.Any("error", err))
		os.Exit(1)
	}
	slog.Info("server stopped")
}

// setupLogging installs the global slog logger: text in development, JSON
// elsewhere, at the configured level.
func setupLogging(cfg *config.Config) {
	opts := &slog.HandlerOptions{Level: cfg.SlogLevel()}

	var handler slog.Handler
	if cfg.IsDevelopment() {
		handler = slog.NewTextHandler(os.Stdout, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}
	slog.SetDefault(slog.New(handler))
}

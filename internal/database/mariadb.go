// Package database opens the optional persistence backends for browser
// storage: a MariaDB pool (STORAGE_DRIVER=mariadb) or a Redis client
// (STORAGE_DRIVER=redis). Connections are opened once at startup and closed
// by the caller on shutdown.
package database

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	// Registers the "mysql" driver.
	_ "github.com/go-sql-driver/mysql"

	"github.com/keyxmakerx/switchboard/internal/config"
)

const (
	pingTimeout    = 5 * time.Second
	maxPingRetries = 10
	maxPingBackoff = 30 * time.Second
)

// NewMariaDB opens a pool from cfg and waits for the server to answer a
// ping, retrying with exponential backoff while it starts up. It gives up
// early if ctx is cancelled.
func NewMariaDB(ctx context.Context, cfg config.DatabaseConfig) (*sql.DB, error) {
	db, err := sql.Open("mysql", cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("opening mariadb connection: %w", err)
	}
	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	if err := pingWithRetry(ctx, "mariadb", db.PingContext); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

// pingWithRetry calls ping until it succeeds, maxPingRetries is reached or
// ctx is done.
func pingWithRetry(ctx context.Context, name string, ping func(context.Context) error) error {
	backoff := time.Second
	var err error
	for attempt := 1; attempt <= maxPingRetries; attempt++ {
		pctx, cancel := context.WithTimeout(ctx, pingTimeout)
		err = ping(pctx)
		cancel()
		if err == nil {
			return nil
		}
		if attempt == maxPingRetries {
			break
		}

		slog.Warn(name+" not ready, retrying",
			slog.Int("attempt", attempt),
			slog.Duration("backoff", backoff),
			slog.Any("error", err),
		)
		select {
		case <-ctx.Done():
			return fmt.Errorf("pinging %s: %w", name, ctx.Err())
		case <-time.After(backoff):
		}
		backoff = min(backoff*2, maxPingBackoff)
	}
	return fmt.Errorf("pinging %s after %d attempts: %w", name, maxPingRetries, err)
}

// Package app is the application bootstrap and dependency injection root.
// It holds the shared infrastructure (storage connections, identity client,
// session registry, Echo instance) and wires the plugins together.
package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"

	"github.com/keyxmakerx/switchboard/internal/apperror"
	"github.com/keyxmakerx/switchboard/internal/config"
	"github.com/keyxmakerx/switchboard/internal/middleware"
	"github.com/keyxmakerx/switchboard/internal/plugins/guard"
	"github.com/keyxmakerx/switchboard/internal/plugins/identity"
	"github.com/keyxmakerx/switchboard/internal/plugins/session"
	"github.com/keyxmakerx/switchboard/internal/plugins/shell"
	"github.com/keyxmakerx/switchboard/internal/templates/pages"
)

// App holds all shared dependencies and the Echo HTTP server instance.
// Created once at startup in main.go.
type App struct {
	// Config holds the loaded application configuration.
	Config *config.Config

	// DB is the MariaDB pool, nil unless STORAGE_DRIVER=mariadb.
	DB *sql.DB

	// Redis is the Redis client, nil unless STORAGE_DRIVER=redis.
	Redis *redis.Client

	// Identity is the client for the external Identity Service.
	Identity identity.Client

	// Sessions holds one session store per visiting browser.
	Sessions *session.Registry

	// Echo is the HTTP server instance.
	Echo *echo.Echo
}

// New creates the App, choosing the browser storage backend from
// cfg.Storage.Driver. db and rdb may be nil when their driver is not
// selected.
func New(cfg *config.Config, db *sql.DB, rdb *redis.Client) (*App, error) {
	backend, err := storageBackend(cfg, db, rdb)
	if err != nil {
		return nil, err
	}

	client := identity.NewClient(cfg.Identity.URL, cfg.Identity.Timeout)

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	middleware.TrustedProxies(e, middleware.DefaultTrustedProxies)

	sessions := session.NewRegistry(client, backend, cfg.Browser.IdleTTL)
	sessions.SetMaxStores(cfg.Browser.MaxStores)

	app := &App{
		Config:   cfg,
		DB:       db,
		Redis:    rdb,
		Identity: client,
		Sessions: sessions,
		Echo:     e,
	}

	app.setupMiddleware()
	e.HTTPErrorHandler = app.errorHandler
	e.Static("/static", "static")

	return app, nil
}

// storageBackend returns the per-browser storage for the configured driver.
func storageBackend(cfg *config.Config, db *sql.DB, rdb *redis.Client) (session.Backend, error) {
	switch cfg.Storage.Driver {
	case config.StorageMariaDB:
		if db == nil {
			return nil, errors.New("mariadb storage selected without a database pool")
		}
		return session.NewSQLBackend(db), nil
	case config.StorageRedis:
		if rdb == nil {
			return nil, errors.New("redis storage selected without a redis client")
		}
		return session.NewRedisBackend(rdb, cfg.Storage.TTL), nil
	default:
		return session.NewMemoryBackend(), nil
	}
}

// setupMiddleware registers global middleware. The request logger is
// outermost so it sees the final status after the error handler ran;
// recovery sits inside it so panics are logged as 500s.
func (a *App) setupMiddleware() {
	a.Echo.Use(middleware.RequestLogger(a.Config.Browser.CookieName))
	a.Echo.Use(middleware.Recovery())
	a.Echo.Use(middleware.SecurityHeaders(a.Config.IsProduction()))
	a.Echo.Use(middleware.CORS([]string{a.Config.BaseURL}))
	a.Echo.Use(middleware.CSRF())
	a.Echo.Use(shell.BrowserCookie(a.Config.Browser.CookieName))
}

// Run starts background work (idle session eviction) until ctx is done.
func (a *App) Run(ctx context.Context) {
	a.Sessions.Run(ctx)
}

// errorHandler maps errors to responses: JSON for API requests, a login
// redirect for browser 401s, an error page otherwise. HTMX requests are
// retargeted to the body so the error page is not swapped into a fragment.
func (a *App) errorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	code := http.StatusInternalServerError
	message := defaultErrorMessage(code)

	var appErr *apperror.AppError
	var echoErr *echo.HTTPError
	switch {
	case errors.As(err, &appErr):
		code, message = appErr.Code, appErr.Message
		if appErr.Internal != nil {
			slog.Error("internal error",
				slog.String("type", appErr.Type),
				slog.String("message", appErr.Message),
				slog.Any("internal", appErr.Internal),
				slog.String("path", c.Request().URL.Path),
			)
		}
	case errors.As(err, &echoErr):
		code = echoErr.Code
		if msg, ok := echoErr.Message.(string); ok {
			message = msg
		} else {
			message = defaultErrorMessage(code)
		}
	default:
		slog.Error("unhandled error",
			slog.Any("error", err),
			slog.String("path", c.Request().URL.Path),
		)
	}

	if middleware.IsAPIRequest(c) {
		_ = c.JSON(code, map[string]string{
			"error":   http.StatusText(code),
			"message": message,
		})
		return
	}

	if code == http.StatusUnauthorized {
		_ = middleware.Redirect(c, guard.DefaultPolicy().LoginPath)
		return
	}

	if c.Request().Header.Get("HX-Request") == "true" {
		c.Response().Header().Set("HX-Retarget", "body")
		c.Response().Header().Set("HX-Reswap", "innerHTML")
	}

	if rerr := middleware.Render(c, code, pages.ErrorPage(code, message)); rerr != nil {
		slog.Error("rendering error page", slog.Any("error", rerr))
	}
}

// defaultErrorMessage returns a user-facing message for status codes that
// arrive without one.
func defaultErrorMessage(code int) string {
	switch code {
	case http.StatusBadRequest:
		return "The request was invalid or cannot be processed."
	case http.StatusUnauthorized:
		return "You need to log in to access this page."
	case http.StatusForbidden:
		return "You don't have permission to access this page."
	case http.StatusNotFound:
		return "The page you're looking for doesn't exist."
	case http.StatusMethodNotAllowed:
		return "This action is not allowed."
	case http.StatusTooManyRequests:
		return "You're making too many requests. Please slow down."
	case http.StatusServiceUnavailable:
		return "The service is temporarily unavailable. Please try again later."
	default:
		return "Something went wrong on our end. Please try again."
	}
}

// Start listens on the configured port.
func (a *App) Start() error {
	addr := fmt.Sprintf(":%d", a.Config.Port)
	slog.Info("starting Switchboard server",
		slog.String("addr", addr),
		slog.String("env", a.Config.Env),
		slog.String("storage", a.Config.Storage.Driver),
	)
	return a.Echo.Start(addr)
}

// Shutdown drains HTTP connections and closes every session store.
func (a *App) Shutdown(ctx context.Context) error {
	err := a.Echo.Shutdown(ctx)
	a.Sessions.Close()
	return err
}

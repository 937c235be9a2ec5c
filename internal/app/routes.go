package app

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/keyxmakerx/switchboard/internal/middleware"
	"github.com/keyxmakerx/switchboard/internal/plugins/capability"
	"github.com/keyxmakerx/switchboard/internal/plugins/guard"
	"github.com/keyxmakerx/switchboard/internal/plugins/menu"
	"github.com/keyxmakerx/switchboard/internal/plugins/shell"
	"github.com/keyxmakerx/switchboard/internal/templates/layouts"
)

// healthTimeout bounds the storage ping in /healthz.
const healthTimeout = 2 * time.Second

// RegisterRoutes sets up every route and the layout injector. This is the
// single place where plugin routes are aggregated.
func (a *App) RegisterRoutes() {
	e := a.Echo

	middleware.LayoutInjector = injectLayout

	e.GET("/healthz", a.health)

	h := shell.NewHandler(a.Sessions, guard.DefaultPolicy(), a.Config.Browser.SettleWait)
	shell.RegisterRoutes(e, h)
}

// injectLayout copies the guard's evaluated session into the Templ context.
// Pages rendered without a guard (login, errors) get only the CSRF token.
func injectLayout(c echo.Context, ctx context.Context) context.Context {
	ctx = layouts.SetCSRFToken(ctx, middleware.GetCSRFToken(c))
	ctx = layouts.SetActivePath(ctx, c.Request().URL.Path)

	st := guard.GetState(c)
	if st.Loading || !st.IsAuthenticated() {
		return ctx
	}

	p := st.Principal
	caps := capability.Derive(p)
	ctx = layouts.SetIsAuthenticated(ctx, true)
	ctx = layouts.SetUserName(ctx, p.DisplayName())
	ctx = layouts.SetUserEmail(ctx, p.Email)
	ctx = layouts.SetRole(ctx, string(caps.Role))
	if p.Company != nil {
		ctx = layouts.SetCompanyName(ctx, p.Company.Name)
	}
	ctx = layouts.SetNeedsSetup(ctx, !caps.CanAccessPlatform)

	items := menu.Compose(p.Role)
	nav := make([]layouts.NavItem, 0, len(items))
	for _, item := range items {
		nav = append(nav, layouts.NavItem{Label: item.Label, Path: item.Path, Icon: item.Icon})
	}
	return layouts.SetNavItems(ctx, nav)
}

// health reports liveness plus the configured storage backend's reachability.
func (a *App) health(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), healthTimeout)
	defer cancel()

	var err error
	switch {
	case a.DB != nil:
		err = a.DB.PingContext(ctx)
	case a.Redis != nil:
		err = a.Redis.Ping(ctx).Err()
	}
	if err != nil {
		return c.JSON(http.StatusServiceUnavailable, map[string]string{
			"status":  "unavailable",
			"storage": a.Config.Storage.Driver,
		})
	}
	return c.JSON(http.StatusOK, map[string]any{
		"status":   "ok",
		"storage":  a.Config.Storage.Driver,
		"sessions": a.Sessions.Len(),
	})
}

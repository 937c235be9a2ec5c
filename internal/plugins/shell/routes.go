package shell

import (
	"time"

	"github.com/labstack/echo/v4"

	"github.com/keyxmakerx/switchboard/internal/middleware"
	"github.com/keyxmakerx/switchboard/internal/plugins/guard"
)

// NewRouteTable describes what each shell path requires. Paths not listed
// (including every application page) require authentication and
// configuration.
func NewRouteTable(policy guard.Policy) *guard.Table {
	routes := []guard.Route{
		{Path: policy.LoginPath, GuestOnly: true},
		{Path: "/register", GuestOnly: true},
		{Path: "/healthz", Public: true},
	}
	for _, p := range appPages {
		routes = append(routes, guard.Route{Path: p.Path, SkipConfiguration: p.SkipConfiguration})
	}
	return guard.NewTable(routes...)
}

// RegisterRoutes sets up the shell's pages, session API and navigation
// socket.
//
// Credential POSTs are rate-limited per IP: 10 a minute for login, 5 for
// register.
func RegisterRoutes(e *echo.Echo, h *Handler) {
	g := h.guard
	route := h.routes.Lookup

	e.GET("/", h.Root)

	// Guest-only pages.
	e.GET("/login", h.LoginForm, g.Require(route("/login")))
	e.POST("/login", h.Login, middleware.RateLimit(10, time.Minute))
	e.GET("/register", h.RegisterForm, g.Require(route("/register")))
	e.POST("/register", h.Register, middleware.RateLimit(5, time.Minute))

	e.POST("/logout", h.Logout)

	// Application pages. Role restrictions run after the gates so a
	// logged-out visitor is redirected instead of refused.
	for _, p := range appPages {
		mw := []echo.MiddlewareFunc{g.Require(route(p.Path))}
		if len(p.Roles) > 0 {
			mw = append(mw, guard.RequireRole(p.Roles...))
		}
		e.GET(p.Path, h.Page(p), mw...)
	}
	e.POST("/integrations/check", h.CheckIntegrations, g.Require(route("/integrations")))

	// JSON session API.
	api := e.Group("/api/session")
	api.GET("", h.Session)
	api.POST("/refresh", h.RefreshSession)
	api.POST("/login", h.APILogin, middleware.RateLimit(10, time.Minute))
	api.POST("/register", h.APIRegister, middleware.RateLimit(5, time.Minute))
	api.POST("/logout", h.APILogout)

	e.GET("/ws/navigation", h.Navigation)
}

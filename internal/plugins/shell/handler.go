package shell

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/keyxmakerx/switchboard/internal/apperror"
	"github.com/keyxmakerx/switchboard/internal/middleware"
	"github.com/keyxmakerx/switchboard/internal/plugins/capability"
	"github.com/keyxmakerx/switchboard/internal/plugins/guard"
	"github.com/keyxmakerx/switchboard/internal/plugins/identity"
	"github.com/keyxmakerx/switchboard/internal/plugins/session"
	"github.com/keyxmakerx/switchboard/internal/templates/pages"
)

// Handler serves the shell. Handlers are thin: they bind the request, call
// the browser's session store, and render. Gate decisions come from the
// guard middleware registered in routes.go.
type Handler struct {
	registry *session.Registry
	guard    *guard.Guard
	routes   *guard.Table
}

// NewHandler creates a shell handler and the guard that protects its pages.
// settleWait bounds how long a request waits for an initializing session.
func NewHandler(registry *session.Registry, policy guard.Policy, settleWait time.Duration) *Handler {
	h := &Handler{registry: registry, routes: NewRouteTable(policy)}
	h.guard = guard.New(h.Resolve, policy, settleWait, h.placeholder)
	return h
}

// Guard returns the guard protecting the shell's pages.
func (h *Handler) Guard() *guard.Guard {
	return h.guard
}

// placeholder renders the indeterminate page for unsettled sessions.
func (h *Handler) placeholder(c echo.Context) error {
	return middleware.Render(c, http.StatusOK, pages.Placeholder())
}

// Resolve returns the session store for the request's browser. It is the
// guard's Resolver.
func (h *Handler) Resolve(c echo.Context) *session.Store {
	return h.registry.Get(BrowserID(c))
}

// --- Pages ---

// Root redirects "/" once the session settles (GET /).
func (h *Handler) Root(c echo.Context) error {
	_, st := h.guard.Settle(c)
	target, settled := h.guard.Policy().Root(st)
	if !settled {
		return h.guard.Pending(c)
	}
	return c.Redirect(http.StatusSeeOther, target)
}

// LoginForm renders the login page (GET /login).
func (h *Handler) LoginForm(c echo.Context) error {
	return middleware.Render(c, http.StatusOK, LoginPage(middleware.GetCSRFToken(c), "", ""))
}

// Login processes the login form (POST /login). Failures re-render the form
// with the message and the submitted email.
func (h *Handler) Login(c echo.Context) error {
	var in identity.LoginInput
	if err := c.Bind(&in); err != nil {
		return apperror.NewBadRequest("invalid request")
	}

	out := h.Resolve(c).Login(c.Request().Context(), in)
	if !out.OK() {
		return middleware.Render(c, http.StatusOK,
			LoginPage(middleware.GetCSRFToken(c), in.Email, apperror.SafeMessage(out.Err)))
	}
	return middleware.Redirect(c, h.guard.Policy().LandingPath)
}

// RegisterForm renders the registration page (GET /register).
func (h *Handler) RegisterForm(c echo.Context) error {
	return middleware.Render(c, http.StatusOK,
		RegisterPage(middleware.GetCSRFToken(c), identity.RegisterInput{}, ""))
}

// Register processes the registration form (POST /register). A successful
// registration is also a login.
func (h *Handler) Register(c echo.Context) error {
	var in identity.RegisterInput
	if err := c.Bind(&in); err != nil {
		return apperror.NewBadRequest("invalid request")
	}

	out := h.Resolve(c).Register(c.Request().Context(), in)
	if !out.OK() {
		return middleware.Render(c, http.StatusOK,
			RegisterPage(middleware.GetCSRFToken(c), in.Normalize(), apperror.SafeMessage(out.Err)))
	}
	return middleware.Redirect(c, h.guard.Policy().LandingPath)
}

// Logout ends the session and returns to the login page (POST /logout).
func (h *Handler) Logout(c echo.Context) error {
	h.Resolve(c).Logout(c.Request().Context())
	return middleware.Redirect(c, h.guard.Policy().LoginPath)
}

// Page returns the handler for a guarded application page.
func (h *Handler) Page(p page) echo.HandlerFunc {
	if p.Path == h.guard.Policy().SetupPath {
		return func(c echo.Context) error {
			caps := guard.GetCapabilities(c)
			return middleware.Render(c, http.StatusOK,
				IntegrationsPage(p, middleware.GetCSRFToken(c), caps.CanAccessPlatform))
		}
	}
	return func(c echo.Context) error {
		return middleware.Render(c, http.StatusOK, AppPage(p))
	}
}

// CheckIntegrations re-checks the session after the user configured email
// elsewhere (POST /integrations/check). Unlocked principals go to the
// landing page; everyone else back to setup.
func (h *Handler) CheckIntegrations(c echo.Context) error {
	st := guard.GetStore(c).Refresh(c.Request().Context())

	policy := h.guard.Policy()
	switch {
	case !st.IsAuthenticated():
		return middleware.Redirect(c, policy.LoginPath)
	case capability.Derive(st.Principal).CanAccessPlatform:
		return middleware.Redirect(c, policy.LandingPath)
	default:
		return middleware.Redirect(c, policy.SetupPath)
	}
}

// --- JSON API ---

// Session returns state, capabilities and menu (GET /api/session). It waits
// briefly for initialization; a still-loading state is returned as such.
func (h *Handler) Session(c echo.Context) error {
	_, st := h.guard.Settle(c)
	return c.JSON(http.StatusOK, newSessionView(st))
}

// RefreshSession re-checks the session (POST /api/session/refresh).
func (h *Handler) RefreshSession(c echo.Context) error {
	store, _ := h.guard.Settle(c)
	st := store.Refresh(c.Request().Context())
	return c.JSON(http.StatusOK, newSessionView(st))
}

// APILogin logs in from JSON (POST /api/session/login).
func (h *Handler) APILogin(c echo.Context) error {
	var in identity.LoginInput
	if err := c.Bind(&in); err != nil {
		return apperror.NewBadRequest("invalid request body")
	}
	return h.respondOutcome(c, http.StatusOK, h.Resolve(c).Login(c.Request().Context(), in))
}

// APIRegister registers from JSON (POST /api/session/register).
func (h *Handler) APIRegister(c echo.Context) error {
	var in identity.RegisterInput
	if err := c.Bind(&in); err != nil {
		return apperror.NewBadRequest("invalid request body")
	}
	return h.respondOutcome(c, http.StatusCreated, h.Resolve(c).Register(c.Request().Context(), in))
}

// APILogout logs out (POST /api/session/logout). Always succeeds.
func (h *Handler) APILogout(c echo.Context) error {
	st := h.Resolve(c).Logout(c.Request().Context())
	return c.JSON(http.StatusOK, newSessionView(st))
}

// respondOutcome writes a login/register result: the session view on
// success, or the error with the unchanged session.
func (h *Handler) respondOutcome(c echo.Context, okStatus int, out session.Outcome) error {
	view := newSessionView(out.State)
	if out.OK() {
		return c.JSON(okStatus, view)
	}

	code := apperror.SafeCode(out.Err)
	return c.JSON(code, errorView{
		Error:   http.StatusText(code),
		Message: apperror.SafeMessage(out.Err),
		Session: &view,
	})
}

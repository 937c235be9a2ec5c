package guard

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/keyxmakerx/switchboard/internal/apperror"
	"github.com/keyxmakerx/switchboard/internal/plugins/capability"
	"github.com/keyxmakerx/switchboard/internal/plugins/identity"
	"github.com/keyxmakerx/switchboard/internal/plugins/session"
)

// Context keys for the evaluated session. Handlers read them through the
// getters below.
const (
	contextKeyStore        = "guard_store"
	contextKeyState        = "guard_state"
	contextKeyCapabilities = "guard_capabilities"
)

// retryAfterSeconds is the hint sent with the pending placeholder.
const retryAfterSeconds = 1

// Resolver returns the session store for the request's browser.
type Resolver func(c echo.Context) *session.Store

// Guard turns gate decisions into HTTP responses.
type Guard struct {
	resolve     Resolver
	policy      Policy
	settleWait  time.Duration
	placeholder echo.HandlerFunc
}

// New creates a Guard. settleWait bounds how long a request waits for an
// initializing session before the placeholder is served. placeholder renders
// the indeterminate page; nil serves a plain-text one.
func New(resolve Resolver, policy Policy, settleWait time.Duration, placeholder echo.HandlerFunc) *Guard {
	if placeholder == nil {
		placeholder = func(c echo.Context) error {
			return c.String(http.StatusOK, "Loading…")
		}
	}
	return &Guard{
		resolve:     resolve,
		policy:      policy,
		settleWait:  settleWait,
		placeholder: placeholder,
	}
}

// Policy returns the paths this guard redirects to.
func (g *Guard) Policy() Policy {
	return g.policy
}

// Settle resolves the request's store and waits up to the settle window for
// initialization. The returned state may still be Loading. The store, state
// and capability set are stored on the context either way.
func (g *Guard) Settle(c echo.Context) (*session.Store, session.State) {
	store := g.resolve(c)
	st := store.Snapshot()
	if st.Loading && g.settleWait > 0 {
		ctx, cancel := context.WithTimeout(c.Request().Context(), g.settleWait)
		st, _ = store.WaitSettled(ctx)
		cancel()
	}

	c.Set(contextKeyStore, store)
	c.Set(contextKeyState, st)
	c.Set(contextKeyCapabilities, capability.Derive(st.Principal))
	return store, st
}

// Require returns middleware enforcing route's gates. Pending serves the
// placeholder, Deny redirects, Allow continues with the state on the context.
func (g *Guard) Require(route Route) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			_, st := g.Settle(c)

			d := g.policy.Evaluate(route, st)
			switch d.Status {
			case Pending:
				return g.Pending(c)
			case Deny:
				return g.Redirect(c, d.Target)
			}
			return next(c)
		}
	}
}

// Pending answers a request whose session has not settled: the placeholder
// page with a refresh hint for browsers, 503 JSON for API clients.
func (g *Guard) Pending(c echo.Context) error {
	c.Response().Header().Set("Retry-After", strconv.Itoa(retryAfterSeconds))
	c.Response().Header().Set("Cache-Control", "no-store")

	if isAPIRequest(c) {
		return c.JSON(http.StatusServiceUnavailable, map[string]string{
			"error":   "session_pending",
			"message": "session is still loading",
		})
	}

	c.Response().Header().Set("Refresh", strconv.Itoa(retryAfterSeconds))
	return g.placeholder(c)
}

// Redirect sends the browser to target: 303 for page loads, HX-Redirect for
// HTMX, and a JSON error naming the target for API clients.
func (g *Guard) Redirect(c echo.Context, target string) error {
	if isAPIRequest(c) {
		code, errType, msg := http.StatusForbidden, "setup_required", "finish setup to continue"
		if target == g.policy.LoginPath {
			code, errType, msg = http.StatusUnauthorized, "unauthorized", "authentication required"
		}
		return c.JSON(code, map[string]string{
			"error":    errType,
			"message":  msg,
			"redirect": target,
		})
	}

	if isHTMXRequest(c) {
		c.Response().Header().Set("HX-Redirect", target)
		return c.NoContent(http.StatusNoContent)
	}

	return c.Redirect(http.StatusSeeOther, target)
}

// RequireRole returns middleware restricting a handler to roles. A mismatch
// is a 403, not a redirect. It must run after Require.
func RequireRole(roles ...identity.Role) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			caps, ok := c.Get(contextKeyCapabilities).(capability.Set)
			if !ok {
				return apperror.NewInternal(fmt.Errorf("RequireRole used without Guard.Require"))
			}
			if !caps.HasRole(roles...) {
				return apperror.NewForbidden("you do not have access to this page")
			}
			return next(c)
		}
	}
}

// --- Exported getters for handlers ---

// GetStore returns the session store resolved by the guard, or nil.
func GetStore(c echo.Context) *session.Store {
	s, ok := c.Get(contextKeyStore).(*session.Store)
	if !ok {
		return nil
	}
	return s
}

// GetState returns the session state the guard evaluated. Without the guard
// it returns a Loading state so nothing is mistaken for logged out.
func GetState(c echo.Context) session.State {
	st, ok := c.Get(contextKeyState).(session.State)
	if !ok {
		return session.State{Loading: true}
	}
	return st
}

// GetCapabilities returns the capability set derived by the guard.
func GetCapabilities(c echo.Context) capability.Set {
	caps, _ := c.Get(contextKeyCapabilities).(capability.Set)
	return caps
}

// --- Helpers ---

// isAPIRequest returns true if the request targets the /api/ path.
func isAPIRequest(c echo.Context) bool {
	return strings.HasPrefix(c.Request().URL.Path, "/api")
}

// isHTMXRequest returns true if the request was made by HTMX.
func isHTMXRequest(c echo.Context) bool {
	return c.Request().Header.Get("HX-Request") == "true"
}

package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/a-h/templ"
	"github.com/labstack/echo/v4"
)

// LayoutInjector copies layout data (principal summary, menu, CSRF token)
// from the Echo context into the Go context that Templ components read.
// Registered once at startup in app/routes.go so this package never imports
// plugin types.
var LayoutInjector func(echo.Context, context.Context) context.Context

// IsHTMX returns true for HTMX requests that expect a fragment. Boosted
// navigations expect full pages and return false.
func IsHTMX(c echo.Context) bool {
	return c.Request().Header.Get("HX-Request") == "true" &&
		c.Request().Header.Get("HX-Boosted") != "true"
}

// IsAPIRequest returns true for JSON API paths.
func IsAPIRequest(c echo.Context) bool {
	return strings.HasPrefix(c.Request().URL.Path, "/api")
}

// Render writes a Templ component with the given status, after running the
// LayoutInjector.
func Render(c echo.Context, statusCode int, component templ.Component) error {
	ctx := c.Request().Context()
	if LayoutInjector != nil {
		ctx = LayoutInjector(c, ctx)
	}

	c.Response().Header().Set(echo.HeaderContentType, echo.MIMETextHTMLCharsetUTF8)
	c.Response().WriteHeader(statusCode)
	return component.Render(ctx, c.Response().Writer)
}

// Redirect navigates the browser to target after a form post: HX-Redirect
// for HTMX requests, 303 otherwise.
func Redirect(c echo.Context, target string) error {
	if c.Request().Header.Get("HX-Request") == "true" {
		c.Response().Header().Set("HX-Redirect", target)
		return c.NoContent(http.StatusNoContent)
	}
	return c.Redirect(http.StatusSeeOther, target)
}

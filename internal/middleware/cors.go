package middleware

import (
	"log/slog"
	"net/http"
	"slices"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
)

// CORS returns middleware allowing the given origins to call the session
// API with cookies. A wildcard origin disables credentials: browsers would
// otherwise send the session cookie to any site that asks.
func CORS(origins []string) echo.MiddlewareFunc {
	allowCredentials := true
	if slices.Contains(origins, "*") {
		slog.Warn("CORS wildcard origin configured; credentials disabled")
		allowCredentials = false
	}

	return echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins:     origins,
		AllowCredentials: allowCredentials,
		AllowMethods:     []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowHeaders:     []string{echo.HeaderContentType, csrfHeaderName, "HX-Request", "HX-Current-URL"},
		ExposeHeaders:    []string{"HX-Redirect", "Retry-After", requestIDHeader},
		MaxAge:           3600,
	})
}

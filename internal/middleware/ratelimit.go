package middleware

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"golang.org/x/time/rate"
)

// RateLimit returns middleware allowing roughly maxRequests per window per
// client IP, with bursts up to maxRequests. Excess requests get 429.
// Login and register use it to slow credential stuffing before anything
// reaches the Identity Service.
func RateLimit(maxRequests int, window time.Duration) echo.MiddlewareFunc {
	store := echomw.NewRateLimiterMemoryStoreWithConfig(echomw.RateLimiterMemoryStoreConfig{
		Rate:      rate.Every(window / time.Duration(maxRequests)),
		Burst:     maxRequests,
		ExpiresIn: 2 * window,
	})

	return echomw.RateLimiterWithConfig(echomw.RateLimiterConfig{
		Store: store,
		IdentifierExtractor: func(c echo.Context) (string, error) {
			return c.RealIP(), nil
		},
		ErrorHandler: func(c echo.Context, err error) error {
			return c.JSON(http.StatusForbidden, map[string]string{
				"error":   "Forbidden",
				"message": "Could not identify the client.",
			})
		},
		DenyHandler: func(c echo.Context, _ string, _ error) error {
			c.Response().Header().Set("Retry-After", "60")
			return c.JSON(http.StatusTooManyRequests, map[string]string{
				"error":   "Too Many Requests",
				"message": "Too many attempts. Please wait a minute and try again.",
			})
		},
	})
}

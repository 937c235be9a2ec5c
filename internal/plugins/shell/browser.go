package shell

import (
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/keyxmakerx/switchboard/internal/middleware"
)

// contextKeyBrowserID holds the resolved browser ID on the Echo context.
const contextKeyBrowserID = "shell_browser_id"

// browserCookieMaxAge keeps a browser's identity for a year.
const browserCookieMaxAge = 365 * 24 * time.Hour

// BrowserCookie returns middleware that identifies the visiting browser by a
// first-party cookie, issuing a fresh UUID when the cookie is missing or not
// a UUID. The ID selects the browser's session store and storage.
func BrowserCookie(name string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			id := ""
			if cookie, err := c.Cookie(name); err == nil {
				if parsed, perr := uuid.Parse(cookie.Value); perr == nil {
					id = parsed.String()
				}
			}

			if id == "" {
				id = uuid.NewString()
				c.SetCookie(&http.Cookie{
					Name:     name,
					Value:    id,
					Path:     "/",
					MaxAge:   int(browserCookieMaxAge.Seconds()),
					HttpOnly: true,
					Secure:   middleware.IsSecure(c.Request()),
					SameSite: http.SameSiteLaxMode,
				})
			}

			c.Set(contextKeyBrowserID, id)
			return next(c)
		}
	}
}

// BrowserID returns the browser ID set by BrowserCookie, or "".
func BrowserID(c echo.Context) string {
	id, _ := c.Get(contextKeyBrowserID).(string)
	return id
}

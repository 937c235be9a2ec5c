package middleware

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/keyxmakerx/switchboard/internal/apperror"
)

const (
	// csrfCookieName holds the double-submit token. Readable by JS so the
	// page script can echo it in csrfHeaderName.
	csrfCookieName = "switchboard_csrf"
	csrfHeaderName = "X-CSRF-Token"
	csrfFormField  = "csrf_token"

	contextKeyCSRF = "csrf_token"

	csrfTokenBytes = 32
)

// CSRF returns double-submit-cookie middleware. Every request gets a token
// cookie if it lacks one; every mutating request must echo the cookie in
// the X-CSRF-Token header or the csrf_token form field.
//
// The session API is cookie-authenticated (the browser cookie selects the
// session), so /api is protected like the forms are.
func CSRF() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			cookieToken, err := ensureCSRFCookie(c)
			if err != nil {
				return apperror.NewInternal(err)
			}
			c.Set(contextKeyCSRF, cookieToken)

			switch c.Request().Method {
			case http.MethodGet, http.MethodHead, http.MethodOptions:
				return next(c)
			}

			if !validCSRF(c, cookieToken) {
				return apperror.NewForbidden("invalid or missing CSRF token")
			}
			return next(c)
		}
	}
}

// ensureCSRFCookie returns the request's token, issuing a new cookie when
// absent.
func ensureCSRFCookie(c echo.Context) (string, error) {
	req := c.Request()
	if cookie, err := req.Cookie(csrfCookieName); err == nil && cookie.Value != "" {
		return cookie.Value, nil
	}

	b := make([]byte, csrfTokenBytes)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	token := hex.EncodeToString(b)

	c.SetCookie(&http.Cookie{
		Name:     csrfCookieName,
		Value:    token,
		Path:     "/",
		HttpOnly: false,
		Secure:   IsSecure(req),
		SameSite: http.SameSiteLaxMode,
	})
	return token, nil
}

// validCSRF compares the submitted token with the cookie in constant time.
func validCSRF(c echo.Context, cookieToken string) bool {
	submitted := c.Request().Header.Get(csrfHeaderName)
	if submitted == "" {
		submitted = c.FormValue(csrfFormField)
	}
	return submitted != "" && subtle.ConstantTimeCompare([]byte(submitted), []byte(cookieToken)) == 1
}

// GetCSRFToken returns the token for the current request, for embedding in
// forms.
func GetCSRFToken(c echo.Context) string {
	token, _ := c.Get(contextKeyCSRF).(string)
	return token
}

// IsSecure reports whether the request arrived over TLS, directly or via a
// TLS-terminating proxy.
func IsSecure(r *http.Request) bool {
	return r.TLS != nil || r.Header.Get("X-Forwarded-Proto") == "https"
}

// Package pages holds app-wide page components that no single plugin owns.
package pages

import (
	"context"
	"io"
	"net/http"
	"strconv"

	"github.com/a-h/templ"

	"github.com/keyxmakerx/switchboard/internal/templates/layouts"
)

// ErrorPage renders an error with its status code.
func ErrorPage(code int, message string) templ.Component {
	body := templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		h := layouts.NewWriter(w)
		h.Raw(`<section class="error">`)
		h.Rawf(`<h1>%s</h1>`, strconv.Itoa(code))
		h.Rawf(`<h2>%s</h2>`, templ.EscapeString(http.StatusText(code)))
		h.Raw(`<p>`)
		h.Text(message)
		h.Raw(`</p><a href="/">Back to Switchboard</a></section>`)
		return h.Err()
	})
	return layouts.Bare(http.StatusText(code), body)
}

// Placeholder is the indeterminate page served while a session is still
// initializing. It shows nothing protected and reloads itself.
func Placeholder() templ.Component {
	body := templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		h := layouts.NewWriter(w)
		h.Raw(`<section class="placeholder" aria-busy="true">`)
		h.Raw(`<div class="spinner"></div><p>Checking your session…</p>`)
		h.Raw(`</section>`)
		return h.Err()
	})
	return layouts.Bare("Loading", body)
}

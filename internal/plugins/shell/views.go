package shell

import (
	"context"
	"io"

	"github.com/a-h/templ"

	"github.com/keyxmakerx/switchboard/internal/plugins/identity"
	"github.com/keyxmakerx/switchboard/internal/templates/layouts"
)

// field writes a labelled input. Passwords are never echoed back.
func field(h *layouts.Writer, label, name, kind, value string) {
	h.Rawf(`<label>%s<input type="%s" name="%s"`,
		templ.EscapeString(label), kind, name)
	if kind != "password" && value != "" {
		h.Rawf(` value="%s"`, templ.EscapeString(value))
	}
	h.Raw(` required></label>`)
}

// formError writes the failure banner when msg is set.
func formError(h *layouts.Writer, msg string) {
	if msg == "" {
		return
	}
	h.Raw(`<div class="form-error" role="alert">`)
	h.Text(msg)
	h.Raw(`</div>`)
}

// LoginPage renders the login form with an optional error, keeping the
// submitted email.
func LoginPage(csrfToken, email, errMsg string) templ.Component {
	body := templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		h := layouts.NewWriter(w)
		h.Raw(`<section class="auth"><h1>Sign in</h1>`)
		formError(h, errMsg)
		h.Raw(`<form method="post" action="/login">`)
		h.Rawf(`<input type="hidden" name="csrf_token" value="%s">`, templ.EscapeString(csrfToken))
		field(h, "Email", "email", "email", email)
		field(h, "Password", "password", "password", "")
		h.Raw(`<button type="submit">Sign in</button></form>`)
		h.Raw(`<p>New here? <a href="/register">Create a workspace</a></p></section>`)
		return h.Err()
	})
	return layouts.Bare("Sign in", body)
}

// RegisterPage renders the registration form with an optional error,
// keeping every non-password field.
func RegisterPage(csrfToken string, in identity.RegisterInput, errMsg string) templ.Component {
	body := templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		h := layouts.NewWriter(w)
		h.Raw(`<section class="auth"><h1>Create your workspace</h1>`)
		formError(h, errMsg)
		h.Raw(`<form method="post" action="/register">`)
		h.Rawf(`<input type="hidden" name="csrf_token" value="%s">`, templ.EscapeString(csrfToken))
		field(h, "First name", "first_name", "text", in.FirstName)
		field(h, "Last name", "last_name", "text", in.LastName)
		field(h, "Company", "company_name", "text", in.CompanyName)
		field(h, "Email", "email", "email", in.Email)
		field(h, "Password", "password", "password", "")
		field(h, "Confirm password", "confirm_password", "password", "")
		h.Raw(`<button type="submit">Create workspace</button></form>`)
		h.Raw(`<p>Already registered? <a href="/login">Sign in</a></p></section>`)
		return h.Err()
	})
	return layouts.Bare("Create your workspace", body)
}

// AppPage renders a guarded page inside the application shell.
func AppPage(p page) templ.Component {
	body := templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		h := layouts.NewWriter(w)
		h.Raw(`<header><h1>`)
		h.Text(p.Title)
		h.Raw(`</h1><p>`)
		h.Text(p.Summary)
		h.Raw(`</p></header>`)
		return h.Err()
	})
	return layouts.App(p.Title, body)
}

// IntegrationsPage is the setup page. Until platform access is unlocked it
// offers a re-check after the user connects email elsewhere.
func IntegrationsPage(p page, csrfToken string, canAccessPlatform bool) templ.Component {
	body := templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		h := layouts.NewWriter(w)
		h.Raw(`<header><h1>`)
		h.Text(p.Title)
		h.Raw(`</h1><p>`)
		h.Text(p.Summary)
		h.Raw(`</p></header>`)

		if canAccessPlatform {
			h.Raw(`<p class="status ok">Outbound email is connected.</p>`)
			return h.Err()
		}

		h.Raw(`<p class="status pending">Outbound email is not connected yet.</p>`)
		h.Raw(`<form method="post" action="/integrations/check">`)
		h.Rawf(`<input type="hidden" name="csrf_token" value="%s">`, templ.EscapeString(csrfToken))
		h.Raw(`<button type="submit">I've connected it, check again</button></form>`)
		return h.Err()
	})
	return layouts.App(p.Title, body)
}

package layouts

import (
	"context"
	"fmt"
	"io"

	"github.com/a-h/templ"
)

// Writer writes escaped HTML fragments and remembers the first error so
// components can write straight through and check once at the end.
type Writer struct {
	w   io.Writer
	err error
}

// Raw writes trusted markup.
func (h *Writer) Raw(s string) {
	if h.err == nil {
		_, h.err = io.WriteString(h.w, s)
	}
}

// Rawf writes trusted markup with fmt verbs. Arguments must already be
// escaped.
func (h *Writer) Rawf(format string, args ...any) {
	if h.err == nil {
		_, h.err = fmt.Fprintf(h.w, format, args...)
	}
}

// Text writes escaped text.
func (h *Writer) Text(s string) {
	h.Raw(templ.EscapeString(s))
}

// Component renders a child component.
func (h *Writer) Component(ctx context.Context, c templ.Component) {
	if h.err == nil && c != nil {
		h.err = c.Render(ctx, h.w)
	}
}

// Err returns the first write error.
func (h *Writer) Err() error {
	return h.err
}

// NewWriter wraps w for component rendering.
func NewWriter(w io.Writer) *Writer {
	return &Writer{w: w}
}

// head writes the document head shared by every layout.
func head(h *Writer, title string) {
	h.Raw(`<!DOCTYPE html><html lang="en"><head><meta charset="utf-8">`)
	h.Raw(`<meta name="viewport" content="width=device-width, initial-scale=1">`)
	h.Rawf(`<title>%s · Switchboard</title>`, templ.EscapeString(title))
	h.Raw(`<link rel="stylesheet" href="https://cdnjs.cloudflare.com/ajax/libs/font-awesome/6.5.1/css/all.min.css">`)
	h.Raw(`<link rel="stylesheet" href="/static/css/app.css">`)
	h.Raw(`<script src="/static/js/navigation.js" defer></script>`)
	h.Raw(`</head>`)
}

// App is the authenticated shell: sidebar menu, principal summary, setup
// banner and a logout form around content.
func App(title string, content templ.Component) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		h := NewWriter(w)
		head(h, title)

		h.Rawf(`<body data-route="%s">`, templ.EscapeString(GetActivePath(ctx)))
		h.Raw(`<aside class="sidebar"><nav><ul>`)
		active := GetActivePath(ctx)
		for _, item := range GetNavItems(ctx) {
			class := ""
			if item.Path == active {
				class = ` class="active"`
			}
			h.Rawf(`<li%s><a href="%s"><i class="fa-solid %s"></i> %s</a></li>`,
				class,
				templ.EscapeString(item.Path),
				templ.EscapeString(item.Icon),
				templ.EscapeString(item.Label),
			)
		}
		h.Raw(`</ul></nav>`)

		h.Raw(`<div class="principal">`)
		h.Rawf(`<strong>%s</strong>`, templ.EscapeString(GetUserName(ctx)))
		h.Rawf(`<span class="email">%s</span>`, templ.EscapeString(GetUserEmail(ctx)))
		if company := GetCompanyName(ctx); company != "" {
			h.Rawf(`<span class="company">%s</span>`, templ.EscapeString(company))
		}
		h.Rawf(`<span class="role">%s</span>`, templ.EscapeString(GetRole(ctx)))
		h.Raw(`<form method="post" action="/logout">`)
		h.Rawf(`<input type="hidden" name="csrf_token" value="%s">`, templ.EscapeString(GetCSRFToken(ctx)))
		h.Raw(`<button type="submit">Log out</button></form></div></aside>`)

		h.Raw(`<main>`)
		if NeedsSetup(ctx) {
			h.Raw(`<div class="banner">Connect your outbound email to unlock the platform.</div>`)
		}
		h.Component(ctx, content)
		h.Raw(`</main></body></html>`)
		return h.Err()
	})
}

// Bare is the layout for pages shown without a session: login, register,
// placeholder and errors.
func Bare(title string, content templ.Component) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		h := NewWriter(w)
		head(h, title)
		h.Raw(`<body class="bare"><main>`)
		h.Component(ctx, content)
		h.Raw(`</main></body></html>`)
		return h.Err()
	})
}

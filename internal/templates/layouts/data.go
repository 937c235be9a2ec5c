// data.go provides typed context helpers for passing layout data from
// handlers/middleware to Templ templates. This avoids importing plugin
// types in the layouts package; only simple types are stored.
//
// Data flow: Guard/Handler → Echo Context → LayoutInjector → Go Context → Templ
package layouts

import "context"

// ctxKey is a private type for context keys to prevent collisions.
type ctxKey string

const (
	keyIsAuthenticated ctxKey = "layout_is_authenticated"
	keyUserName        ctxKey = "layout_user_name"
	keyUserEmail       ctxKey = "layout_user_email"
	keyRole            ctxKey = "layout_role"
	keyCompanyName     ctxKey = "layout_company_name"
	keyCSRFToken       ctxKey = "layout_csrf_token"
	keyActivePath      ctxKey = "layout_active_path"
	keyNavItems        ctxKey = "layout_nav_items"
	keyNeedsSetup      ctxKey = "layout_needs_setup"
)

// NavItem is one sidebar link. Defined here to avoid importing the menu
// package.
type NavItem struct {
	Label string
	Path  string
	Icon  string
}

// --- Setters (called by LayoutInjector) ---

// SetIsAuthenticated stores whether the current request has a principal.
func SetIsAuthenticated(ctx context.Context, authed bool) context.Context {
	return context.WithValue(ctx, keyIsAuthenticated, authed)
}

// SetUserName stores the principal's display name.
func SetUserName(ctx context.Context, name string) context.Context {
	return context.WithValue(ctx, keyUserName, name)
}

// SetUserEmail stores the principal's email.
func SetUserEmail(ctx context.Context, email string) context.Context {
	return context.WithValue(ctx, keyUserEmail, email)
}

// SetRole stores the principal's role as a string.
func SetRole(ctx context.Context, role string) context.Context {
	return context.WithValue(ctx, keyRole, role)
}

// SetCompanyName stores the tenant name.
func SetCompanyName(ctx context.Context, name string) context.Context {
	return context.WithValue(ctx, keyCompanyName, name)
}

// SetCSRFToken stores the CSRF token for forms.
func SetCSRFToken(ctx context.Context, token string) context.Context {
	return context.WithValue(ctx, keyCSRFToken, token)
}

// SetActivePath stores the current request path for nav highlighting.
func SetActivePath(ctx context.Context, path string) context.Context {
	return context.WithValue(ctx, keyActivePath, path)
}

// SetNavItems stores the composed menu.
func SetNavItems(ctx context.Context, items []NavItem) context.Context {
	return context.WithValue(ctx, keyNavItems, items)
}

// SetNeedsSetup stores whether the principal still has to configure email.
func SetNeedsSetup(ctx context.Context, needs bool) context.Context {
	return context.WithValue(ctx, keyNeedsSetup, needs)
}

// --- Getters (called by Templ templates) ---

// IsAuthenticated returns true if the current request has a principal.
func IsAuthenticated(ctx context.Context) bool {
	v, _ := ctx.Value(keyIsAuthenticated).(bool)
	return v
}

// GetUserName returns the principal's display name.
func GetUserName(ctx context.Context) string {
	v, _ := ctx.Value(keyUserName).(string)
	return v
}

// GetUserEmail returns the principal's email.
func GetUserEmail(ctx context.Context) string {
	v, _ := ctx.Value(keyUserEmail).(string)
	return v
}

// GetRole returns the principal's role.
func GetRole(ctx context.Context) string {
	v, _ := ctx.Value(keyRole).(string)
	return v
}

// GetCompanyName returns the tenant name.
func GetCompanyName(ctx context.Context) string {
	v, _ := ctx.Value(keyCompanyName).(string)
	return v
}

// GetCSRFToken returns the CSRF token for forms.
func GetCSRFToken(ctx context.Context) string {
	v, _ := ctx.Value(keyCSRFToken).(string)
	return v
}

// GetActivePath returns the current request path.
func GetActivePath(ctx context.Context) string {
	v, _ := ctx.Value(keyActivePath).(string)
	return v
}

// GetNavItems returns the composed menu, or nil.
func GetNavItems(ctx context.Context) []NavItem {
	v, _ := ctx.Value(keyNavItems).([]NavItem)
	return v
}

// NeedsSetup returns whether the setup banner should show.
func NeedsSetup(ctx context.Context) bool {
	v, _ := ctx.Value(keyNeedsSetup).(bool)
	return v
}

// Package guard decides whether a browser may enter a route and enforces
// those decisions. Decisions are pure functions of a session.State; the
// HTTP middleware and the push Enforcer are the only places that act on
// them.
package guard

import (
	"github.com/keyxmakerx/switchboard/internal/plugins/capability"
	"github.com/keyxmakerx/switchboard/internal/plugins/session"
)

// Status is the outcome of a gate.
type Status int

const (
	// Pending means the session is still initializing; render nothing
	// protected and redirect nowhere.
	Pending Status = iota
	// Allow lets the route render.
	Allow
	// Deny redirects to Decision.Target.
	Deny
)

// String returns the lower-case status name.
func (s Status) String() string {
	switch s {
	case Pending:
		return "pending"
	case Allow:
		return "allow"
	case Deny:
		return "deny"
	default:
		return "unknown"
	}
}

// Decision is a gate result. Target is set only for Deny.
type Decision struct {
	Status Status `json:"status"`
	Target string `json:"target,omitempty"`
}

func pending() Decision { return Decision{Status: Pending} }
func allow() Decision { return Decision{Status: Allow} }
func deny(target string) Decision { return Decision{Status: Deny, Target: target} }

// Policy holds the paths the gates redirect to.
type Policy struct {
	// LoginPath receives unauthenticated visitors.
	LoginPath string
	// SetupPath receives authenticated principals that cannot access the
	// platform yet. It is itself exempt from the configuration gate.
	SetupPath string
	// LandingPath is where the root and guest-only pages send principals.
	LandingPath string
}

// DefaultPolicy returns the application's standard paths.
func DefaultPolicy() Policy {
	return Policy{
		LoginPath:   "/login",
		SetupPath:   "/integrations",
		LandingPath: "/dashboard",
	}
}

// Authentication gates on having a principal.
func (p Policy) Authentication(st session.State) Decision {
	if st.Loading {
		return pending()
	}
	if !st.IsAuthenticated() {
		return deny(p.LoginPath)
	}
	return allow()
}

// Configuration gates on platform access (verified and configured email,
// or SuperUser). It assumes Authentication already allowed.
func (p Policy) Configuration(st session.State) Decision {
	if st.Loading {
		return pending()
	}
	if !capability.Derive(st.Principal).CanAccessPlatform {
		return deny(p.SetupPath)
	}
	return allow()
}

// Guest gates pages meant only for logged-out visitors (login, register).
func (p Policy) Guest(st session.State) Decision {
	if st.Loading {
		return pending()
	}
	if st.IsAuthenticated() {
		return deny(p.LandingPath)
	}
	return allow()
}

// Evaluate composes the gates a route needs: none for public routes, the
// guest gate for guest-only routes, otherwise authentication and then
// configuration unless the route is exempt.
func (p Policy) Evaluate(r Route, st session.State) Decision {
	switch {
	case r.Public:
		return allow()
	case r.GuestOnly:
		return p.Guest(st)
	}

	if d := p.Authentication(st); d.Status != Allow {
		return d
	}
	if r.SkipConfiguration || r.Path == p.SetupPath {
		return allow()
	}
	return p.Configuration(st)
}

// Root resolves the bare "/" path. Until initialization settles it reports
// settled=false and the caller must render the placeholder.
func (p Policy) Root(st session.State) (target string, settled bool) {
	if st.Loading {
		return "", false
	}
	if st.IsAuthenticated() {
		return p.LandingPath, true
	}
	return p.LoginPath, true
}

// Package session owns the authoritative session state of each visiting
// browser: who is logged in, whether the initial check has settled, and the
// last login/register error. It persists the bearer token and a principal
// snapshot to per-browser storage so a reload can resume the session.
//
// The Store is the only writer of its browser's storage and of its
// principal. Everything else reads immutable snapshots.
package session

import "github.com/keyxmakerx/switchboard/internal/plugins/identity"

// Persisted storage keys. Both are written together and cleared together.
const (
	KeyToken = "auth_token"
	KeyUser  = "auth_user"
)

// State is an immutable snapshot of one browser's session.
//
//   - Loading is true from creation until Initialize settles. Guards must not
//     decide anything while it is true.
//   - Principal is nil when logged out.
//   - Error holds the last login/register failure message, cleared by the
//     next successful identity operation or logout.
type State struct {
	Principal *identity.Principal `json:"principal"`
	Loading   bool                `json:"loading"`
	Error     string              `json:"error,omitempty"`
}

// IsAuthenticated reports whether the state holds a principal.
func (s State) IsAuthenticated() bool {
	return s.Principal != nil
}

// Settled reports whether initialization has finished.
func (s State) Settled() bool {
	return !s.Loading
}

// clone deep-copies the principal so the snapshot cannot alias store state.
func (s State) clone() State {
	s.Principal = s.Principal.Clone()
	return s
}

// Outcome is the result of a login or register attempt. Err is nil on
// success; otherwise it is an *apperror.AppError whose Message is what the
// form should show. State is the session after the attempt either way.
type Outcome struct {
	State State
	Err   error
}

// OK reports whether the attempt succeeded.
func (o Outcome) OK() bool {
	return o.Err == nil
}

// Persisted is what a browser's storage holds between requests and restarts.
type Persisted struct {
	Token     string
	Principal *identity.Principal
}

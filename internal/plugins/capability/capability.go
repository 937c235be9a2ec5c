// Package capability derives what a principal may do from its role and
// account flags. Derivation is pure and cheap; callers re-derive on every
// read instead of caching a Set.
package capability

import "github.com/keyxmakerx/switchboard/internal/plugins/identity"

// Set is the derived view of a principal. The zero value is the logged-out
// set: every flag false and Role empty.
type Set struct {
	IsAuthenticated    bool          `json:"isAuthenticated"`
	Role               identity.Role `json:"role,omitempty"`
	IsUpperAdmin       bool          `json:"isUpperAdmin"`
	IsAdmin            bool          `json:"isAdmin"`
	IsManager          bool          `json:"isManager"`
	IsEmployee         bool          `json:"isEmployee"`
	IsSuperUser        bool          `json:"isSuperUser"`
	EmailVerified      bool          `json:"emailVerified"`
	HasConfiguredEmail bool          `json:"hasConfiguredEmail"`

	// CanAccessPlatform gates everything past the integrations setup page.
	// SuperUser is exempt from the email requirements.
	CanAccessPlatform bool `json:"canAccessPlatform"`
}

// Derive computes the capability set for p. A nil principal yields the
// logged-out set. Unknown roles set no role flag.
func Derive(p *identity.Principal) Set {
	if p == nil {
		return Set{}
	}

	role := p.Role.Canonical()
	s := Set{
		IsAuthenticated:    true,
		Role:               role,
		IsUpperAdmin:       role == identity.RoleUpperAdmin,
		IsAdmin:            role == identity.RoleAdmin,
		IsManager:          role == identity.RoleManager,
		IsEmployee:         role == identity.RoleEmployee,
		IsSuperUser:        role == identity.RoleSuperUser,
		EmailVerified:      p.EmailVerified,
		HasConfiguredEmail: p.HasConfiguredEmail,
	}
	s.CanAccessPlatform = s.IsSuperUser || (s.EmailVerified && s.HasConfiguredEmail)
	return s
}

// HasRole reports whether the set is authenticated with any of roles.
func (s Set) HasRole(roles ...identity.Role) bool {
	if !s.IsAuthenticated {
		return false
	}
	for _, r := range roles {
		if s.Role == r.Canonical() {
			return true
		}
	}
	return false
}

// CanManageAdmins reports whether the principal may open the admin roster.
func (s Set) CanManageAdmins() bool {
	return s.HasRole(identity.RoleUpperAdmin)
}

// CanManageEmployees reports whether the principal may open the employee
// roster.
func (s Set) CanManageEmployees() bool {
	return s.HasRole(identity.RoleAdmin, identity.RoleManager)
}

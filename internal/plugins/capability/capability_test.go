package capability

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/keyxmakerx/switchboard/internal/plugins/identity"
)

func principal(role identity.Role, verified, configured bool) *identity.Principal {
	return &identity.Principal{
		ID:                 "u1",
		Email:              "u1@x.com",
		Role:               role,
		EmailVerified:      verified,
		HasConfiguredEmail: configured,
	}
}

func TestDerive_NilIsLoggedOut(t *testing.T) {
	assert.Equal(t, Set{}, Derive(nil))
}

func TestDerive_AuthenticatedIffPrincipal(t *testing.T) {
	assert.False(t, Derive(nil).IsAuthenticated)
	assert.True(t, Derive(&identity.Principal{}).IsAuthenticated)
}

func TestDerive_PlatformAccess(t *testing.T) {
	tests := []struct {
		name       string
		role       identity.Role
		verified   bool
		configured bool
		want       bool
	}{
		{"employee verified and configured", identity.RoleEmployee, true, true, true},
		{"employee unconfigured", identity.RoleEmployee, true, false, false},
		{"employee unverified", identity.RoleEmployee, false, true, false},
		{"upper admin unconfigured", identity.RoleUpperAdmin, true, false, false},
		{"manager unconfigured is not exempt", identity.RoleManager, true, false, false},
		{"admin configured", identity.RoleAdmin, true, true, true},
		{"super user without email", identity.RoleSuperUser, false, false, true},
		{"unknown role configured", identity.Role("Auditor"), true, true, true},
		{"unknown role unconfigured", identity.Role("Auditor"), false, false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Derive(principal(tt.role, tt.verified, tt.configured))
			assert.Equal(t, tt.want, got.CanAccessPlatform)
		})
	}
}

func TestDerive_RoleFlagsAreExclusive(t *testing.T) {
	roles := []identity.Role{
		identity.RoleUpperAdmin,
		identity.RoleAdmin,
		identity.RoleManager,
		identity.RoleEmployee,
		identity.RoleSuperUser,
	}
	for _, role := range roles {
		s := Derive(principal(role, true, true))
		flags := 0
		for _, f := range []bool{s.IsUpperAdmin, s.IsAdmin, s.IsManager, s.IsEmployee, s.IsSuperUser} {
			if f {
				flags++
			}
		}
		assert.Equal(t, 1, flags, "role %s", role)
		assert.Equal(t, role, s.Role)
	}
}

func TestDerive_UnknownRoleHasNoFlags(t *testing.T) {
	s := Derive(principal("Auditor", true, true))
	assert.True(t, s.IsAuthenticated)
	assert.Equal(t, identity.Role("Auditor"), s.Role)
	assert.False(t, s.IsUpperAdmin || s.IsAdmin || s.IsManager || s.IsEmployee || s.IsSuperUser)
}

func TestDerive_CanonicalizesRole(t *testing.T) {
	s := Derive(principal("superuser", false, false))
	assert.True(t, s.IsSuperUser)
	assert.True(t, s.CanAccessPlatform)
}

func TestHasRole(t *testing.T) {
	s := Derive(principal(identity.RoleManager, true, true))
	assert.True(t, s.HasRole(identity.RoleAdmin, identity.RoleManager))
	assert.False(t, s.HasRole(identity.RoleUpperAdmin))
	assert.False(t, Set{}.HasRole(identity.RoleEmployee))
}

func TestManagementRights(t *testing.T) {
	assert.True(t, Derive(principal(identity.RoleUpperAdmin, true, true)).CanManageAdmins())
	assert.False(t, Derive(principal(identity.RoleUpperAdmin, true, true)).CanManageEmployees())
	assert.True(t, Derive(principal(identity.RoleAdmin, true, true)).CanManageEmployees())
	assert.True(t, Derive(principal(identity.RoleManager, true, true)).CanManageEmployees())
	assert.False(t, Derive(principal(identity.RoleEmployee, true, true)).CanManageEmployees())
	assert.False(t, Derive(principal(identity.RoleSuperUser, true, true)).CanManageAdmins())
}

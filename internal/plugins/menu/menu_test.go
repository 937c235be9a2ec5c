package menu

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/keyxmakerx/switchboard/internal/plugins/identity"
)

func keys(items []Item) []string {
	out := make([]string, len(items))
	for i, it := range items {
		out[i] = it.Key
	}
	return out
}

func TestCompose_SuperUserSet(t *testing.T) {
	got := Compose(identity.RoleSuperUser)
	assert.Equal(t, []string{"overview", "companies", "subscriptions", "settings"}, keys(got))
}

func TestCompose_ManagementEntryByRole(t *testing.T) {
	tests := []struct {
		role identity.Role
		want []string
	}{
		{identity.RoleUpperAdmin, []string{"dashboard", "communications", "analytics", "admins", "integrations", "billing", "settings"}},
		{identity.RoleAdmin, []string{"dashboard", "communications", "analytics", "employees", "integrations", "billing", "settings"}},
		{identity.RoleManager, []string{"dashboard", "communications", "analytics", "employees", "integrations", "billing", "settings"}},
		{identity.RoleEmployee, []string{"dashboard", "communications", "analytics", "integrations", "billing", "settings"}},
		{identity.Role("FutureRole"), []string{"dashboard", "communications", "analytics", "integrations", "billing", "settings"}},
		{identity.Role(""), []string{"dashboard", "communications", "analytics", "integrations", "billing", "settings"}},
	}

	for _, tt := range tests {
		t.Run(string(tt.role), func(t *testing.T) {
			assert.Equal(t, tt.want, keys(Compose(tt.role)))
		})
	}
}

func TestCompose_NeverBothManagementEntries(t *testing.T) {
	for _, role := range []identity.Role{
		identity.RoleUpperAdmin, identity.RoleAdmin, identity.RoleManager,
		identity.RoleEmployee, identity.RoleSuperUser, "x",
	} {
		items := Compose(role)
		assert.False(t, Contains(items, KeyAdmins) && Contains(items, KeyEmployees), "role %s", role)
	}
}

func TestCompose_CanonicalizesRole(t *testing.T) {
	assert.True(t, Contains(Compose("upperadmin"), KeyAdmins))
	assert.Equal(t, "overview", Compose("SUPERUSER")[0].Key)
}

func TestCompose_ReturnsFreshSlice(t *testing.T) {
	first := Compose(identity.RoleSuperUser)
	require.NotEmpty(t, first)
	first[0].Label = "Mutated"

	assert.Equal(t, "Overview", Compose(identity.RoleSuperUser)[0].Label)
}

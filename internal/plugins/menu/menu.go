// Package menu composes the shell's navigation menu from a role.
package menu

import "github.com/keyxmakerx/switchboard/internal/plugins/identity"

// Item is one navigation entry.
type Item struct {
	Key   string `json:"key"`
	Label string `json:"label"`
	Path  string `json:"path"`
	Icon  string `json:"icon"`
}

// Management entry keys.
const (
	KeyAdmins    = "admins"
	KeyEmployees = "employees"
)

var superUserItems = []Item{
	{Key: "overview", Label: "Overview", Path: "/dashboard", Icon: "fa-gauge"},
	{Key: "companies", Label: "Companies", Path: "/companies", Icon: "fa-building"},
	{Key: "subscriptions", Label: "Subscriptions", Path: "/subscriptions", Icon: "fa-receipt"},
	{Key: "settings", Label: "Settings", Path: "/settings", Icon: "fa-gear"},
}

// platformHead and platformTail surround the optional management entry.
var platformHead = []Item{
	{Key: "dashboard", Label: "Dashboard", Path: "/dashboard", Icon: "fa-gauge"},
	{Key: "communications", Label: "Communications", Path: "/communications", Icon: "fa-envelope"},
	{Key: "analytics", Label: "Analytics", Path: "/analytics", Icon: "fa-chart-line"},
}

var platformTail = []Item{
	{Key: "integrations", Label: "Integrations", Path: "/integrations", Icon: "fa-plug"},
	{Key: "billing", Label: "Billing", Path: "/billing", Icon: "fa-credit-card"},
	{Key: "settings", Label: "Settings", Path: "/settings", Icon: "fa-gear"},
}

var (
	adminsItem    = Item{Key: KeyAdmins, Label: "Admins", Path: "/admins", Icon: "fa-user-shield"}
	employeesItem = Item{Key: KeyEmployees, Label: "Employees", Path: "/employees", Icon: "fa-users"}
)

// Compose returns the ordered menu for role. It is total: unrecognized roles
// get the platform menu with no management entry. The returned slice is
// fresh and safe to modify.
func Compose(role identity.Role) []Item {
	role = role.Canonical()

	if role == identity.RoleSuperUser {
		return append([]Item(nil), superUserItems...)
	}

	items := make([]Item, 0, len(platformHead)+1+len(platformTail))
	items = append(items, platformHead...)
	if entry, ok := managementEntry(role); ok {
		items = append(items, entry)
	}
	return append(items, platformTail...)
}

// managementEntry picks at most one roster entry for a platform role.
func managementEntry(role identity.Role) (Item, bool) {
	switch role {
	case identity.RoleUpperAdmin:
		return adminsItem, true
	case identity.RoleAdmin, identity.RoleManager:
		return employeesItem, true
	default:
		return Item{}, false
	}
}

// Contains reports whether items holds an entry with key.
func Contains(items []Item, key string) bool {
	for _, it := range items {
		if it.Key == key {
			return true
		}
	}
	return false
}

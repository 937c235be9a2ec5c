// Package shell is the browser-facing surface of Switchboard: login and
// registration forms, the guarded application pages, the JSON session API
// and the navigation socket. It owns no state of its own; every request is
// served from the browser's session.Store.
package shell

import (
	"github.com/keyxmakerx/switchboard/internal/plugins/capability"
	"github.com/keyxmakerx/switchboard/internal/plugins/identity"
	"github.com/keyxmakerx/switchboard/internal/plugins/menu"
	"github.com/keyxmakerx/switchboard/internal/plugins/session"
)

// SessionView is the JSON body of the session API: the three values the
// access-control layer exposes outward.
type SessionView struct {
	State        session.State  `json:"state"`
	Capabilities capability.Set `json:"capabilities"`
	Menu         []menu.Item    `json:"menu"`
}

// newSessionView derives capabilities and menu from st. Logged-out and
// loading states get an empty menu.
func newSessionView(st session.State) SessionView {
	v := SessionView{
		State:        st,
		Capabilities: capability.Derive(st.Principal),
		Menu:         []menu.Item{},
	}
	if st.Settled() && st.IsAuthenticated() {
		v.Menu = menu.Compose(st.Principal.Role)
	}
	return v
}

// errorView is the JSON body of a failed login/register: the message plus
// the unchanged session.
type errorView struct {
	Error   string       `json:"error"`
	Message string       `json:"message"`
	Session *SessionView `json:"session,omitempty"`
}

// page is one guarded application page.
type page struct {
	Path              string
	Title             string
	Summary           string
	SkipConfiguration bool
	Roles             []identity.Role
}

// appPages lists every guarded page. Business content is out of scope; each
// page renders its title and summary inside the shell.
var appPages = []page{
	{Path: "/dashboard", Title: "Dashboard", Summary: "Your workspace at a glance."},
	{Path: "/communications", Title: "Communications", Summary: "Campaigns and messages sent from your outbound email."},
	{Path: "/analytics", Title: "Analytics", Summary: "Delivery and engagement over time."},
	{Path: "/billing", Title: "Billing", Summary: "Plan, invoices and payment methods."},
	{Path: "/settings", Title: "Settings", Summary: "Account and workspace preferences."},
	{Path: "/integrations", Title: "Integrations", Summary: "Connect your outbound email to unlock the platform.", SkipConfiguration: true},
	{Path: "/admins", Title: "Admins", Summary: "People who administer this workspace.", Roles: []identity.Role{identity.RoleUpperAdmin}},
	{Path: "/employees", Title: "Employees", Summary: "People who work in this workspace.", Roles: []identity.Role{identity.RoleAdmin, identity.RoleManager}},
	{Path: "/companies", Title: "Companies", Summary: "Every tenant on the platform.", Roles: []identity.Role{identity.RoleSuperUser}},
	{Path: "/subscriptions", Title: "Subscriptions", Summary: "Tenant plans and renewal status.", Roles: []identity.Role{identity.RoleSuperUser}},
}

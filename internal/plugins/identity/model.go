// Package identity is the typed client for the external Identity Service.
// It issues the four identity operations (check session, login, register,
// logout) and normalizes every failure into an apperror.AppError whose
// Message is safe to show in a form.
//
// The Identity Service owns credentials, password hashing and tenant
// creation; this package never sees anything but bearer tokens and
// principal snapshots.
package identity

import "strings"

// Role is the principal's role within its tenant. Values arrive from the
// Identity Service as strings; unknown values are preserved verbatim and
// every consumer treats them as the least privileged role.
type Role string

const (
	// RoleUpperAdmin is the top-level admin of a tenant. Created by register.
	RoleUpperAdmin Role = "UpperAdmin"

	// RoleAdmin manages employees within a tenant.
	RoleAdmin Role = "Admin"

	// RoleManager manages employees with a narrower scope than Admin.
	RoleManager Role = "Manager"

	// RoleEmployee is the base platform role.
	RoleEmployee Role = "Employee"

	// RoleSuperUser operates the SaaS itself across tenants.
	RoleSuperUser Role = "SuperUser"
)

// knownRoles maps lower-cased wire values to canonical roles so a service
// that sends "upperadmin" or "SUPERUSER" still resolves.
var knownRoles = map[string]Role{
	"upperadmin": RoleUpperAdmin,
	"admin":      RoleAdmin,
	"manager":    RoleManager,
	"employee":   RoleEmployee,
	"superuser":  RoleSuperUser,
}

// Canonical returns the canonical spelling of a known role, or the role
// unchanged if it is not recognized.
func (r Role) Canonical() Role {
	if known, ok := knownRoles[strings.ToLower(strings.TrimSpace(string(r)))]; ok {
		return known
	}
	return r
}

// Known reports whether r is one of the five roles Switchboard understands.
func (r Role) Known() bool {
	_, ok := knownRoles[strings.ToLower(strings.TrimSpace(string(r)))]
	return ok
}

// Company is the tenant a principal belongs to. Read-only in this layer.
type Company struct {
	ID                 string `json:"id,omitempty"`
	Name               string `json:"name"`
	SubscriptionStatus string `json:"subscriptionStatus"`
}

// Principal is the authenticated user snapshot returned by the Identity
// Service. The session store replaces it wholesale; nothing mutates it in
// place.
type Principal struct {
	ID                 string   `json:"id"`
	Email              string   `json:"email"`
	FirstName          string   `json:"firstName"`
	LastName           string   `json:"lastName"`
	Role               Role     `json:"role"`
	Company            *Company `json:"company,omitempty"`
	EmailVerified      bool     `json:"emailVerified"`
	HasConfiguredEmail bool     `json:"hasConfiguredEmail"`
}

// Clone returns a deep copy so callers can never reach the store's value.
func (p *Principal) Clone() *Principal {
	if p == nil {
		return nil
	}
	cp := *p
	if p.Company != nil {
		company := *p.Company
		cp.Company = &company
	}
	return &cp
}

// DisplayName returns "First Last", falling back to the email address.
func (p *Principal) DisplayName() string {
	name := strings.TrimSpace(p.FirstName + " " + p.LastName)
	if name == "" {
		return p.Email
	}
	return name
}

// --- Service Input DTOs ---

// LoginInput holds the credentials submitted by the login form.
type LoginInput struct {
	Email    string `json:"email" form:"email"`
	Password string `json:"password" form:"password"`
}

// RegisterInput holds the data submitted by the registration form. A
// successful registration creates a new tenant with this principal as its
// UpperAdmin.
type RegisterInput struct {
	FirstName       string `json:"firstName" form:"first_name"`
	LastName        string `json:"lastName" form:"last_name"`
	Email           string `json:"email" form:"email"`
	CompanyName     string `json:"companyName" form:"company_name"`
	Password        string `json:"password" form:"password"`
	ConfirmPassword string `json:"confirmPassword" form:"confirm_password"`
}

// Result is a successful login or register: a bearer token and the
// principal it authenticates.
type Result struct {
	Token     string     `json:"token"`
	Principal *Principal `json:"user"`
}

// --- Wire envelope ---

// envelope is the uniform response wrapper used by every Identity Service
// endpoint. Data is decoded lazily into the endpoint's payload type.
type envelope[T any] struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Data    *T     `json:"data"`
}

// mePayload is the data of GET /auth/me.
type mePayload struct {
	User *Principal `json:"user"`
}

// registerPayload is the body of POST /auth/register. ConfirmPassword never
// leaves the process.
type registerPayload struct {
	FirstName   string `json:"firstName"`
	LastName    string `json:"lastName"`
	Email       string `json:"email"`
	CompanyName string `json:"companyName"`
	Password    string `json:"password"`
}

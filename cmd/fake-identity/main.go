// Package main runs the in-memory Identity Service fake for local
// development. It seeds one account per role, all sharing one password.
package main

import (
	"flag"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/keyxmakerx/switchboard/internal/plugins/identity"
	"github.com/keyxmakerx/switchboard/internal/plugins/identity/identitytest"
)

func main() {
	addr := flag.String("addr", ":4000", "listen address")
	password := flag.String("password", "switchboard", "password for every seeded account")
	flag.Parse()

	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug})))

	fake := identitytest.New()
	acme := &identity.Company{ID: "acme", Name: "Acme", SubscriptionStatus: "active"}
	seed := []identity.Principal{
		{Email: "owner@acme.test", FirstName: "Olive", LastName: "Owner", Role: identity.RoleUpperAdmin, Company: acme, EmailVerified: true, HasConfiguredEmail: true},
		{Email: "admin@acme.test", FirstName: "Adam", LastName: "Admin", Role: identity.RoleAdmin, Company: acme, EmailVerified: true, HasConfiguredEmail: true},
		{Email: "manager@acme.test", FirstName: "Mona", LastName: "Manager", Role: identity.RoleManager, Company: acme, EmailVerified: true, HasConfiguredEmail: true},
		{Email: "employee@acme.test", FirstName: "Eli", LastName: "Employee", Role: identity.RoleEmployee, Company: acme, EmailVerified: true, HasConfiguredEmail: true},
		{Email: "setup@acme.test", FirstName: "Sam", LastName: "Setup", Role: identity.RoleUpperAdmin, Company: acme, EmailVerified: true},
		{Email: "root@switchboard.test", FirstName: "Sue", LastName: "Root", Role: identity.RoleSuperUser},
	}
	for _, p := range seed {
		fake.AddUser(p, *password)
		slog.Info("seeded account", slog.String("email", p.Email), slog.String("role", string(p.Role)))
	}

	srv := &http.Server{
		Addr:              *addr,
		Handler:           fake.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	slog.Info("fake identity service listening", slog.String("addr", *addr))
	if err := srv.ListenAndServe(); err != nil {
		slog.Error("fake identity service stopped", slog.Any("error", err))
		os.Exit(1)
	}
}

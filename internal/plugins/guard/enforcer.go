package guard

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/keyxmakerx/switchboard/internal/plugins/session"
)

// maxHops bounds redirect chains within one evaluation.
const maxHops = 3

// Navigator moves an already-rendered page to another path. The shell
// implements it over the navigation WebSocket.
type Navigator interface {
	Navigate(ctx context.Context, target string) error
}

// Enforcer keeps one open page inside its gates. It watches the browser's
// store and navigates whenever the current route's decision becomes Deny, so
// a logout in another tab or a revoked token moves the page without waiting
// for the next request.
type Enforcer struct {
	store  *session.Store
	policy Policy
	routes *Table
	nav    Navigator

	mu    sync.Mutex
	route Route
	last  Decision
}

// NewEnforcer creates an enforcer for a page currently showing path.
func NewEnforcer(store *session.Store, policy Policy, routes *Table, nav Navigator, path string) *Enforcer {
	return &Enforcer{
		store:  store,
		policy: policy,
		routes: routes,
		nav:    nav,
		route:  routes.Lookup(path),
		last:   pending(),
	}
}

// Route returns the path the page is currently on.
func (e *Enforcer) Route() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.route.Path
}

// SetRoute records client-side navigation and evaluates the new route
// against the current state immediately.
func (e *Enforcer) SetRoute(ctx context.Context, path string) error {
	e.mu.Lock()
	e.route = e.routes.Lookup(path)
	e.last = pending()
	e.mu.Unlock()

	return e.evaluate(ctx, e.store.Snapshot())
}

// Run evaluates on every state change until ctx is cancelled or the store
// is closed. It evaluates the current state once before waiting.
func (e *Enforcer) Run(ctx context.Context) error {
	updates, cancel := e.store.Subscribe()
	defer cancel()

	if err := e.evaluate(ctx, e.store.Snapshot()); err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case st, ok := <-updates:
			if !ok {
				return nil
			}
			if err := e.evaluate(ctx, st); err != nil {
				return err
			}
		}
	}
}

// evaluate navigates on a transition into Deny, or from one Deny target to
// another. Pending and repeated identical denials never navigate. Redirect
// chains are followed server-side so the page moves once, to the last hop.
func (e *Enforcer) evaluate(ctx context.Context, st session.State) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	d := e.policy.Evaluate(e.route, st)
	prev := e.last
	e.last = d
	if d.Status != Deny || (prev.Status == Deny && prev.Target == d.Target) {
		return nil
	}

	target := d.Target
	for hop := 1; hop < maxHops; hop++ {
		next := e.policy.Evaluate(e.routes.Lookup(target), st)
		if next.Status != Deny || next.Target == target {
			break
		}
		target = next.Target
	}

	slog.Debug("guard navigating",
		slog.String("browser_id", e.store.BrowserID()),
		slog.String("from", e.route.Path),
		slog.String("to", target),
	)
	if err := e.nav.Navigate(ctx, target); err != nil {
		return fmt.Errorf("navigating to %s: %w", target, err)
	}

	e.route = e.routes.Lookup(target)
	e.last = e.policy.Evaluate(e.route, st)
	return nil
}

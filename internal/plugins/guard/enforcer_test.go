package guard

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/keyxmakerx/switchboard/internal/plugins/identity"
	"github.com/keyxmakerx/switchboard/internal/plugins/session"
)

// recordingNavigator collects navigation targets.
type recordingNavigator struct {
	mu      sync.Mutex
	targets []string
	signal  chan string
}

func newRecordingNavigator() *recordingNavigator {
	return &recordingNavigator{signal: make(chan string, 16)}
}

func (n *recordingNavigator) Navigate(_ context.Context, target string) error {
	n.mu.Lock()
	n.targets = append(n.targets, target)
	n.mu.Unlock()
	n.signal <- target
	return nil
}

func (n *recordingNavigator) Targets() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]string(nil), n.targets...)
}

func (n *recordingNavigator) await(t *testing.T) string {
	t.Helper()
	select {
	case target := <-n.signal:
		return target
	case <-time.After(2 * time.Second):
		t.Fatal("expected a navigation")
		return ""
	}
}

func testTable() *Table {
	return NewTable(
		Route{Path: "/login", GuestOnly: true},
		Route{Path: "/register", GuestOnly: true},
		Route{Path: "/integrations", SkipConfiguration: true},
	)
}

func TestEnforcer_LogoutNavigatesToLogin(t *testing.T) {
	store := settledStore(t, principal(identity.RoleEmployee, true, true))
	nav := newRecordingNavigator()
	enf := NewEnforcer(store, DefaultPolicy(), testTable(), nav, "/dashboard")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- enf.Run(ctx) }()

	// Allowed on start: no navigation.
	select {
	case target := <-nav.signal:
		t.Fatalf("unexpected navigation to %s", target)
	case <-time.After(50 * time.Millisecond):
	}

	store.Logout(context.Background())
	assert.Equal(t, "/login", nav.await(t))
	assert.Equal(t, "/login", enf.Route())

	cancel()
	require.NoError(t, <-done)
}

func TestEnforcer_PendingNeverNavigates(t *testing.T) {
	store := session.NewStore("b1", &stubClient{}, session.NewMemoryBackend().ForBrowser("b1"))
	t.Cleanup(store.Close)
	nav := newRecordingNavigator()
	enf := NewEnforcer(store, DefaultPolicy(), testTable(), nav, "/dashboard")

	require.NoError(t, enf.SetRoute(context.Background(), "/analytics"))
	assert.Empty(t, nav.Targets())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go enf.Run(ctx)

	// Settling logged out is the first decision; it navigates once.
	store.Initialize(context.Background())
	assert.Equal(t, "/login", nav.await(t))
}

func TestEnforcer_SetRouteEvaluatesImmediately(t *testing.T) {
	store := settledStore(t, principal(identity.RoleUpperAdmin, true, false))
	nav := newRecordingNavigator()
	enf := NewEnforcer(store, DefaultPolicy(), testTable(), nav, "/integrations")

	require.NoError(t, enf.SetRoute(context.Background(), "/integrations"))
	assert.Empty(t, nav.Targets(), "setup page is allowed")

	require.NoError(t, enf.SetRoute(context.Background(), "/communications"))
	assert.Equal(t, []string{"/integrations"}, nav.Targets())
	assert.Equal(t, "/integrations", enf.Route())
}

func TestEnforcer_RedirectChainNavigatesOnceToFinalHop(t *testing.T) {
	// Logged in but unconfigured on a guest page: /login sends to the
	// landing page, which sends to setup.
	store := settledStore(t, principal(identity.RoleUpperAdmin, true, false))
	nav := newRecordingNavigator()
	enf := NewEnforcer(store, DefaultPolicy(), testTable(), nav, "/login")

	require.NoError(t, enf.evaluate(context.Background(), store.Snapshot()))
	assert.Equal(t, []string{"/integrations"}, nav.Targets())
	assert.Equal(t, "/integrations", enf.Route())

	// Settled on the final hop: nothing further to do.
	require.NoError(t, enf.evaluate(context.Background(), store.Snapshot()))
	assert.Len(t, nav.Targets(), 1)
}

func TestEnforcer_RepeatedDenyNavigatesOnce(t *testing.T) {
	store := settledStore(t, nil)
	nav := newRecordingNavigator()
	enf := NewEnforcer(store, DefaultPolicy(), testTable(), nav, "/login")

	// Logged out on the login page: allowed, nothing to do.
	ctx := context.Background()
	require.NoError(t, enf.evaluate(ctx, store.Snapshot()))
	require.NoError(t, enf.evaluate(ctx, store.Snapshot()))
	assert.Empty(t, nav.Targets())
}

func TestEnforcer_StopsWhenStoreCloses(t *testing.T) {
	store := settledStore(t, principal(identity.RoleEmployee, true, true))
	enf := NewEnforcer(store, DefaultPolicy(), testTable(), newRecordingNavigator(), "/dashboard")

	done := make(chan error, 1)
	go func() { done <- enf.Run(context.Background()) }()

	time.Sleep(20 * time.Millisecond)
	store.Close()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after Close")
	}
}

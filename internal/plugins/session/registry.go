package session

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/keyxmakerx/switchboard/internal/plugins/identity"
)

// Registry holds one Store per browser ID. A store is created and starts
// initializing the first time its browser is seen, and is closed after it
// has been idle for the configured TTL or when the store limit forces it out.
type Registry struct {
	client    identity.Client
	backend   Backend
	idleTTL   time.Duration
	maxStores int
	now       func() time.Time

	mu      sync.Mutex
	entries map[string]*registryEntry
}

type registryEntry struct {
	store    *Store
	lastSeen time.Time
}

// NewRegistry creates a registry. idleTTL <= 0 disables eviction.
func NewRegistry(client identity.Client, backend Backend, idleTTL time.Duration) *Registry {
	return &Registry{
		client:  client,
		backend: backend,
		idleTTL: idleTTL,
		now:     time.Now,
		entries: make(map[string]*registryEntry),
	}
}

// SetMaxStores caps the number of live stores. When the cap is reached, Get
// evicts the least recently seen store before creating a new one. n <= 0
// removes the cap.
func (r *Registry) SetMaxStores(n int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.maxStores = n
}

// Get returns the store for browserID, creating it if needed. A new store
// begins Initialize in the background; callers that need a settled state
// use Store.WaitSettled.
func (r *Registry) Get(browserID string) *Store {
	r.mu.Lock()

	if e, ok := r.entries[browserID]; ok {
		e.lastSeen = r.now()
		r.mu.Unlock()
		return e.store
	}

	var evicted *Store
	limit := r.maxStores
	if limit > 0 && len(r.entries) >= limit {
		evicted = r.evictOldestLocked()
	}

	store := NewStore(browserID, r.client, r.backend.ForBrowser(browserID))
	r.entries[browserID] = &registryEntry{store: store, lastSeen: r.now()}
	r.mu.Unlock()

	if evicted != nil {
		evicted.Close()
		slog.Debug("evicted session store at capacity",
			slog.String("browser_id", evicted.BrowserID()),
			slog.Int("max_stores", limit),
		)
	}
	go store.Initialize(context.Background())
	return store
}

// evictOldestLocked removes the least recently seen entry and returns its
// store for the caller to close. Callers hold mu.
func (r *Registry) evictOldestLocked() *Store {
	var (
		oldestID string
		oldest   *registryEntry
	)
	for id, e := range r.entries {
		if oldest == nil || e.lastSeen.Before(oldest.lastSeen) {
			oldestID, oldest = id, e
		}
	}
	if oldest == nil {
		return nil
	}
	delete(r.entries, oldestID)
	return oldest.store
}

// Lookup returns the store for browserID without creating one.
func (r *Registry) Lookup(browserID string) (*Store, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[browserID]
	if !ok {
		return nil, false
	}
	return e.store, true
}

// Forget closes and removes a browser's store. Persisted storage is kept, so
// the next request resumes the session through Initialize.
func (r *Registry) Forget(browserID string) {
	r.mu.Lock()
	e, ok := r.entries[browserID]
	delete(r.entries, browserID)
	r.mu.Unlock()

	if ok {
		e.store.Close()
	}
}

// Len returns the number of live stores.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

// RefreshUser re-checks every live store currently logged in as userID and
// returns how many were refreshed. Used when the Identity Service reports a
// change to a user's capabilities.
func (r *Registry) RefreshUser(ctx context.Context, userID string) int {
	var targets []*Store
	r.mu.Lock()
	for _, e := range r.entries {
		st := e.store.Snapshot()
		if st.Principal != nil && st.Principal.ID == userID {
			targets = append(targets, e.store)
		}
	}
	r.mu.Unlock()

	var wg sync.WaitGroup
	for _, store := range targets {
		wg.Add(1)
		go func(s *Store) {
			defer wg.Done()
			s.Refresh(ctx)
		}(store)
	}
	wg.Wait()

	if len(targets) > 0 {
		slog.Info("refreshed sessions for user",
			slog.String("user_id", userID),
			slog.Int("stores", len(targets)),
		)
	}
	return len(targets)
}

// Sweep closes stores idle for longer than the TTL and returns how many.
func (r *Registry) Sweep() int {
	if r.idleTTL <= 0 {
		return 0
	}

	cutoff := r.now().Add(-r.idleTTL)
	var idle []*Store

	r.mu.Lock()
	for id, e := range r.entries {
		if e.lastSeen.Before(cutoff) {
			idle = append(idle, e.store)
			delete(r.entries, id)
		}
	}
	r.mu.Unlock()

	for _, s := range idle {
		s.Close()
	}
	if len(idle) > 0 {
		slog.Debug("evicted idle session stores", slog.Int("count", len(idle)))
	}
	return len(idle)
}

// Run sweeps periodically until ctx is cancelled, then closes every store.
func (r *Registry) Run(ctx context.Context) {
	interval := r.idleTTL / 2
	if interval <= 0 || interval > time.Minute {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			r.Close()
			return
		case <-ticker.C:
			r.Sweep()
		}
	}
}

// Close closes and removes every store.
func (r *Registry) Close() {
	r.mu.Lock()
	entries := r.entries
	r.entries = make(map[string]*registryEntry)
	r.mu.Unlock()

	for _, e := range entries {
		e.store.Close()
	}
}

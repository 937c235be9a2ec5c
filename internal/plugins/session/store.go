package session

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/keyxmakerx/switchboard/internal/apperror"
	"github.com/keyxmakerx/switchboard/internal/plugins/identity"
)

// teardownTimeout bounds the best-effort logout calls made after the caller
// has moved on (stale or unpersistable logins).
const teardownTimeout = 5 * time.Second

// Messages shown when an attempt cannot be applied locally.
const (
	msgSuperseded  = "Your session changed while signing in. Please try again."
	msgPersistFail = "We couldn't start your session. Please try again."
	msgStoreClosed = "This session is no longer active. Please reload the page."
)

// Store is the single owner of one browser's session state.
//
// Two locks keep it consistent without holding anything across an Identity
// Service call:
//   - mu guards state, token, epoch and subscribers. It is never held during
//     any I/O.
//   - commitMu serializes commits (storage write + state change) so the epoch
//     check and the write it protects happen atomically.
//
// epoch increases on every transition that changes who is logged in (login or
// register success, logout, purge, Close). Async operations capture it before
// their network call and drop their result if it moved.
type Store struct {
	browserID string
	client    identity.Client
	storage   Storage

	commitMu sync.Mutex

	mu          sync.Mutex
	state       State
	token       string
	epoch       uint64
	initStarted bool
	closed      bool
	subs        map[int]chan State
	nextSub     int

	settled chan struct{}
	done    chan struct{}
}

// NewStore creates a store for one browser. The store starts Loading and
// stays so until Initialize settles.
func NewStore(browserID string, client identity.Client, storage Storage) *Store {
	return &Store{
		browserID: browserID,
		client:    client,
		storage:   storage,
		state:     State{Loading: true},
		subs:      make(map[int]chan State),
		settled:   make(chan struct{}),
		done:      make(chan struct{}),
	}
}

// BrowserID returns the browser this store belongs to.
func (s *Store) BrowserID() string {
	return s.browserID
}

// Snapshot returns an immutable copy of the current state.
func (s *Store) Snapshot() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.clone()
}

// Subscribe returns a channel that receives the latest state after every
// change, and a function to stop. The channel holds one value; a slow reader
// only ever sees the most recent state.
func (s *Store) Subscribe() (<-chan State, func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ch := make(chan State, 1)
	if s.closed {
		close(ch)
		return ch, func() {}
	}

	id := s.nextSub
	s.nextSub++
	s.subs[id] = ch

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			s.mu.Lock()
			defer s.mu.Unlock()
			if c, ok := s.subs[id]; ok {
				delete(s.subs, id)
				close(c)
			}
		})
	}
}

// WaitSettled blocks until Initialize has settled, the context ends, or the
// store is closed.
func (s *Store) WaitSettled(ctx context.Context) (State, error) {
	select {
	case <-s.settled:
		return s.Snapshot(), nil
	case <-s.done:
		return s.Snapshot(), errors.New("session store closed")
	case <-ctx.Done():
		return s.Snapshot(), ctx.Err()
	}
}

// Initialize resolves the persisted session once. Without a persisted token
// it settles logged out with no network call. With one, it asks the Identity
// Service; success restores the principal, any failure purges storage and
// settles logged out. It always settles and never returns an error. Later
// calls wait for the first to settle and return the current state.
func (s *Store) Initialize(ctx context.Context) State {
	s.mu.Lock()
	if s.initStarted {
		s.mu.Unlock()
		st, _ := s.WaitSettled(ctx)
		return st
	}
	s.initStarted = true
	epoch := s.epoch
	s.mu.Unlock()

	defer s.settle()

	persisted, err := s.storage.Load(ctx)
	if err != nil {
		slog.Warn("unreadable browser storage, purging",
			slog.String("browser_id", s.browserID),
			slog.Any("error", err),
		)
		s.purge(ctx, epoch)
		return s.Snapshot()
	}

	if persisted.Token == "" {
		if persisted.Principal != nil {
			// A snapshot without its token is useless; keep storage consistent.
			s.purge(ctx, epoch)
		}
		return s.Snapshot()
	}

	principal, err := s.client.CheckSession(ctx, persisted.Token)
	if err != nil {
		s.logCheckFailure("initialize", err)
		s.purge(ctx, epoch)
		return s.Snapshot()
	}

	s.restore(ctx, epoch, persisted.Token, principal)
	return s.Snapshot()
}

// Refresh re-runs the check-session path for the current token without
// touching Loading. Used after a side-channel change (e.g. outbound email
// configured) so derived capabilities pick up the fresh principal. Failure
// degrades silently to logged out.
func (s *Store) Refresh(ctx context.Context) State {
	s.mu.Lock()
	if s.closed {
		defer s.mu.Unlock()
		return s.state.clone()
	}
	token, epoch := s.token, s.epoch
	s.mu.Unlock()

	if token == "" {
		return s.Snapshot()
	}

	principal, err := s.client.CheckSession(ctx, token)
	if err != nil {
		s.logCheckFailure("refresh", err)
		s.purge(ctx, epoch)
		return s.Snapshot()
	}

	s.restore(ctx, epoch, token, principal)
	return s.Snapshot()
}

// CheckAuth is Refresh under the name UI code uses.
func (s *Store) CheckAuth(ctx context.Context) State {
	return s.Refresh(ctx)
}

// Login authenticates with email and password. Validation failures return
// before any network call and change nothing. Gateway failures set Error and
// leave the principal untouched. Success persists token and snapshot, then
// replaces the principal.
func (s *Store) Login(ctx context.Context, input identity.LoginInput) Outcome {
	input = input.Normalize()
	if err := input.Validate(); err != nil {
		return Outcome{State: s.Snapshot(), Err: err}
	}

	epoch, err := s.begin()
	if err != nil {
		return Outcome{State: s.Snapshot(), Err: err}
	}

	res, err := s.client.Login(ctx, input)
	if err != nil {
		return s.fail(epoch, "login", err)
	}
	return s.commitAuth(ctx, epoch, "login", res)
}

// Register creates a tenant and logs its UpperAdmin in, with the same
// guarantees as Login. Password confirmation is checked locally.
func (s *Store) Register(ctx context.Context, input identity.RegisterInput) Outcome {
	input = input.Normalize()
	if err := input.Validate(); err != nil {
		return Outcome{State: s.Snapshot(), Err: err}
	}

	epoch, err := s.begin()
	if err != nil {
		return Outcome{State: s.Snapshot(), Err: err}
	}

	res, err := s.client.Register(ctx, input)
	if err != nil {
		return s.fail(epoch, "register", err)
	}
	return s.commitAuth(ctx, epoch, "register", res)
}

// Logout tears the local session down unconditionally, then tells the
// Identity Service. Notification failures are logged, never returned.
// Every in-flight Initialize, Refresh, Login or Register is superseded, so
// none of them can bring the session back. Logging out twice is harmless:
// the second call finds no token and makes no network call.
func (s *Store) Logout(ctx context.Context) State {
	s.commitMu.Lock()

	s.mu.Lock()
	token := s.token
	hadSession := token != "" || s.state.Principal != nil
	s.mu.Unlock()

	if token == "" {
		// Initialize may still be checking a persisted token.
		token = s.persistedToken(ctx)
		hadSession = hadSession || token != ""
	}

	if err := s.storage.Clear(ctx); err != nil {
		slog.Error("failed to clear browser storage on logout",
			slog.String("browser_id", s.browserID),
			slog.Any("error", err),
		)
	}

	s.mu.Lock()
	s.token = ""
	s.state.Principal = nil
	s.state.Error = ""
	s.epoch++
	s.notifyLocked()
	st := s.state.clone()
	s.mu.Unlock()

	s.commitMu.Unlock()

	if token != "" {
		if err := s.client.Logout(ctx, token); err != nil {
			slog.Warn("identity logout failed; local session already cleared",
				slog.String("browser_id", s.browserID),
				slog.Any("error", err),
			)
		}
	}

	if hadSession {
		slog.Info("session logged out", slog.String("browser_id", s.browserID))
	}
	return st
}

// Close detaches the store: late resolutions of in-flight calls are dropped,
// subscribers are released, and WaitSettled stops blocking.
func (s *Store) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	s.epoch++
	for id, ch := range s.subs {
		delete(s.subs, id)
		close(ch)
	}
	close(s.done)
}

// --- internals ---

// begin captures the epoch for an attempt, refusing on a closed store.
func (s *Store) begin() (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return 0, apperror.NewConflict(msgStoreClosed)
	}
	return s.epoch, nil
}

// fail records a gateway failure as the visible Error, unless the attempt
// has been superseded.
func (s *Store) fail(epoch uint64, op string, err error) Outcome {
	slog.Info(op+" failed",
		slog.String("browser_id", s.browserID),
		slog.Int("status", apperror.SafeCode(err)),
		slog.Any("error", err),
	)

	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.closed && s.epoch == epoch {
		s.state.Error = apperror.SafeMessage(err)
		s.notifyLocked()
	}
	return Outcome{State: s.state.clone(), Err: err}
}

// commitAuth applies a successful login/register: persist token and snapshot
// together, then replace the principal. Stale or unpersistable results are
// discarded and their fresh token revoked.
func (s *Store) commitAuth(ctx context.Context, epoch uint64, op string, res *identity.Result) Outcome {
	s.commitMu.Lock()
	defer s.commitMu.Unlock()

	if s.stale(epoch) {
		slog.Info(op+" result discarded: session changed while in flight",
			slog.String("browser_id", s.browserID),
		)
		s.revokeLater(ctx, res.Token)
		return Outcome{State: s.Snapshot(), Err: apperror.NewConflict(msgSuperseded)}
	}

	if err := s.storage.Save(ctx, Persisted{Token: res.Token, Principal: res.Principal}); err != nil {
		slog.Error("failed to persist session",
			slog.String("browser_id", s.browserID),
			slog.String("op", op),
			slog.Any("error", err),
		)
		s.revokeLater(ctx, res.Token)
		return s.fail(epoch, op, apperror.NewUnavailable(msgPersistFail, err))
	}

	s.mu.Lock()
	s.token = res.Token
	s.state.Principal = res.Principal.Clone()
	s.state.Error = ""
	s.epoch++
	s.notifyLocked()
	st := s.state.clone()
	s.mu.Unlock()

	slog.Info("session started",
		slog.String("browser_id", s.browserID),
		slog.String("op", op),
		slog.String("user_id", res.Principal.ID),
		slog.String("role", string(res.Principal.Role)),
	)
	return Outcome{State: st}
}

// restore applies a successful check: the principal is replaced wholesale
// and the persisted snapshot re-mirrored. Does nothing if superseded.
func (s *Store) restore(ctx context.Context, epoch uint64, token string, principal *identity.Principal) {
	s.commitMu.Lock()
	defer s.commitMu.Unlock()

	if s.stale(epoch) {
		return
	}

	if err := s.storage.Save(ctx, Persisted{Token: token, Principal: principal}); err != nil {
		// The token is still persisted; only the mirror is behind.
		slog.Warn("failed to mirror principal snapshot",
			slog.String("browser_id", s.browserID),
			slog.Any("error", err),
		)
	}

	s.mu.Lock()
	s.token = token
	s.state.Principal = principal.Clone()
	s.notifyLocked()
	s.mu.Unlock()
}

// purge clears storage and drops to logged out, unless superseded.
func (s *Store) purge(ctx context.Context, epoch uint64) {
	s.commitMu.Lock()
	defer s.commitMu.Unlock()

	if s.stale(epoch) {
		return
	}

	if err := s.storage.Clear(ctx); err != nil {
		slog.Error("failed to purge browser storage",
			slog.String("browser_id", s.browserID),
			slog.Any("error", err),
		)
	}

	s.mu.Lock()
	hadSession := s.token != "" || s.state.Principal != nil
	s.token = ""
	s.state.Principal = nil
	if hadSession {
		s.epoch++
	}
	s.notifyLocked()
	s.mu.Unlock()
}

// persistedToken reads the stored token, or "" if storage is empty or
// unreadable. Callers hold commitMu.
func (s *Store) persistedToken(ctx context.Context) string {
	p, err := s.storage.Load(ctx)
	if err != nil {
		slog.Debug("browser storage unreadable on logout",
			slog.String("browser_id", s.browserID),
			slog.Any("error", err),
		)
		return ""
	}
	return p.Token
}

// settle ends the initial Loading phase exactly once.
func (s *Store) settle() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.state.Loading {
		return
	}
	s.state.Loading = false
	close(s.settled)
	s.notifyLocked()
}

// stale reports whether an attempt that captured epoch has been superseded.
func (s *Store) stale(epoch uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed || s.epoch != epoch
}

// notifyLocked pushes the current state to every subscriber, replacing any
// value they have not read yet. Callers hold mu.
func (s *Store) notifyLocked() {
	for _, ch := range s.subs {
		st := s.state.clone()
		select {
		case <-ch:
		default:
		}
		select {
		case ch <- st:
		default:
		}
	}
}

// revokeLater logs out a token nobody will use, detached from the caller's
// context so a finished request does not cancel it.
func (s *Store) revokeLater(ctx context.Context, token string) {
	go func() {
		ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), teardownTimeout)
		defer cancel()
		if err := s.client.Logout(ctx, token); err != nil {
			slog.Warn("failed to revoke discarded token",
				slog.String("browser_id", s.browserID),
				slog.Any("error", err),
			)
		}
	}()
}

// logCheckFailure logs an expected rejection quietly and a transport problem
// louder; neither is surfaced to the user.
func (s *Store) logCheckFailure(op string, err error) {
	level := slog.LevelWarn
	if identity.IsRejection(err) {
		level = slog.LevelDebug
	}
	slog.Log(context.Background(), level, "session check failed, logging out",
		slog.String("browser_id", s.browserID),
		slog.String("op", op),
		slog.Any("error", err),
	)
}

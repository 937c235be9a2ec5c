package guard

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/keyxmakerx/switchboard/internal/apperror"
	"github.com/keyxmakerx/switchboard/internal/plugins/identity"
	"github.com/keyxmakerx/switchboard/internal/plugins/session"
)

// --- Test Helpers ---

// stubClient answers CheckSession with a fixed principal (or a rejection
// when nil). Every other call succeeds trivially.
type stubClient struct {
	principal *identity.Principal
}

func (s *stubClient) CheckSession(context.Context, string) (*identity.Principal, error) {
	if s.principal == nil {
		return nil, apperror.NewUnauthorized("session expired or invalid")
	}
	return s.principal.Clone(), nil
}

func (s *stubClient) Login(context.Context, identity.LoginInput) (*identity.Result, error) {
	return nil, apperror.NewUnauthorized("Invalid email or password")
}

func (s *stubClient) Register(context.Context, identity.RegisterInput) (*identity.Result, error) {
	return nil, apperror.NewConflict("email already registered")
}

func (s *stubClient) Logout(context.Context, string) error {
	return nil
}

func principal(role identity.Role, verified, configured bool) *identity.Principal {
	return &identity.Principal{
		ID:                 "u1",
		Email:              "u1@x.com",
		FirstName:          "Test",
		Role:               role,
		EmailVerified:      verified,
		HasConfiguredEmail: configured,
	}
}

// settledStore returns an initialized store holding p (logged out if nil).
func settledStore(t *testing.T, p *identity.Principal) *session.Store {
	t.Helper()
	storage := session.NewMemoryBackend().ForBrowser("b1")
	if p != nil {
		require.NoError(t, storage.Save(context.Background(), session.Persisted{Token: "tok", Principal: p}))
	}
	s := session.NewStore("b1", &stubClient{principal: p}, storage)
	s.Initialize(context.Background())
	t.Cleanup(s.Close)
	return s
}

// loggedIn builds a settled, authenticated State without a store.
func loggedIn(p *identity.Principal) session.State {
	return session.State{Principal: p}
}

var loggedOut = session.State{}

var loading = session.State{Loading: true}

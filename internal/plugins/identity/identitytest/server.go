// Package identitytest provides an in-memory stand-in for the Identity
// Service. It speaks the same envelope protocol as the real service so the
// gateway client, session store and shell can be exercised end to end, and
// cmd/fake-identity serves it for local development.
//
// Passwords are bcrypt-hashed and tokens are HS256 JWTs, but nothing here is
// meant to be a production identity provider.
package identitytest

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"golang.org/x/crypto/bcrypt"

	"github.com/keyxmakerx/switchboard/internal/plugins/identity"
)

// defaultTokenTTL is the lifetime of issued tokens unless overridden.
const defaultTokenTTL = time.Hour

// account is a stored principal plus its password hash.
type account struct {
	principal identity.Principal
	hash      []byte
}

// Server is the fake Identity Service. Safe for concurrent use.
type Server struct {
	mu       sync.Mutex
	accounts map[string]*account // keyed by lower-cased email
	revoked  map[string]bool     // token IDs (jti) revoked by logout

	secret   []byte
	tokenTTL time.Duration
	now      func() time.Time

	// failNext makes the next N requests answer 503 without touching state.
	failNext atomic.Int32
	// delay is applied before every response (nanoseconds).
	delay atomic.Int64
	// calls counts requests per path.
	calls sync.Map

	echo *echo.Echo
}

// New creates a fake Identity Service with no accounts.
func New() *Server {
	s := &Server{
		accounts: make(map[string]*account),
		revoked:  make(map[string]bool),
		secret:   []byte("identitytest-signing-key-" + uuid.NewString()),
		tokenTTL: defaultTokenTTL,
		now:      time.Now,
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(s.instrument)
	e.GET("/auth/me", s.me)
	e.POST("/auth/login", s.login)
	e.POST("/auth/register", s.register)
	e.POST("/auth/logout", s.logout)
	s.echo = e

	return s
}

// Handler returns the HTTP handler serving the four identity endpoints.
func (s *Server) Handler() http.Handler {
	return s.echo
}

// Start serves the fake on an httptest server. The caller must Close it.
func (s *Server) Start() *httptest.Server {
	return httptest.NewServer(s.echo)
}

// AddUser stores a principal with the given password. A missing ID is filled
// with a UUID. Returns the stored principal.
func (s *Server) AddUser(p identity.Principal, password string) identity.Principal {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	if err != nil {
		panic(fmt.Sprintf("identitytest: hashing password: %v", err))
	}
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	p.Email = strings.ToLower(strings.TrimSpace(p.Email))

	s.mu.Lock()
	defer s.mu.Unlock()
	s.accounts[p.Email] = &account{principal: p, hash: hash}
	return p
}

// Update mutates a stored principal (e.g. to flip HasConfiguredEmail after an
// integration completes). Reports whether the email was known.
func (s *Server) Update(email string, fn func(p *identity.Principal)) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	acct, ok := s.accounts[strings.ToLower(email)]
	if !ok {
		return false
	}
	fn(&acct.principal)
	return true
}

// IssueToken mints a valid token for a stored account without a login call.
func (s *Server) IssueToken(email string) (string, error) {
	s.mu.Lock()
	acct, ok := s.accounts[strings.ToLower(email)]
	s.mu.Unlock()
	if !ok {
		return "", errors.New("identitytest: unknown account")
	}
	return s.sign(acct.principal.ID, acct.principal.Email)
}

// FailNext makes the next n requests fail with 503.
func (s *Server) FailNext(n int) {
	s.failNext.Store(int32(n))
}

// SetDelay delays every response, to exercise in-flight races.
func (s *Server) SetDelay(d time.Duration) {
	s.delay.Store(int64(d))
}

// SetTokenTTL changes the lifetime of tokens issued from now on.
func (s *Server) SetTokenTTL(d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tokenTTL = d
}

// Calls returns how many requests hit path (e.g. "/auth/me").
func (s *Server) Calls(path string) int {
	v, ok := s.calls.Load(path)
	if !ok {
		return 0
	}
	return int(v.(*atomic.Int32).Load())
}

// --- Handlers ---

// instrument counts calls and applies the failure and delay knobs.
func (s *Server) instrument(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		counter, _ := s.calls.LoadOrStore(c.Path(), new(atomic.Int32))
		counter.(*atomic.Int32).Add(1)

		if d := time.Duration(s.delay.Load()); d > 0 {
			select {
			case <-time.After(d):
			case <-c.Request().Context().Done():
				return c.Request().Context().Err()
			}
		}

		if s.failNext.Load() > 0 {
			s.failNext.Add(-1)
			return respondFail(c, http.StatusServiceUnavailable, "identity service unavailable")
		}
		return next(c)
	}
}

func (s *Server) me(c echo.Context) error {
	acct, err := s.authenticate(c)
	if err != nil {
		return respondFail(c, http.StatusUnauthorized, "Session expired. Please log in again.")
	}
	return respondOK(c, map[string]any{"user": acct.principal})
}

func (s *Server) login(c echo.Context) error {
	var req identity.LoginInput
	if err := c.Bind(&req); err != nil {
		return respondFail(c, http.StatusBadRequest, "invalid request")
	}

	s.mu.Lock()
	var (
		principal *identity.Principal
		hash      []byte
	)
	if acct, found := s.accounts[strings.ToLower(strings.TrimSpace(req.Email))]; found {
		principal = acct.principal.Clone()
		hash = acct.hash
	}
	s.mu.Unlock()

	if principal == nil || bcrypt.CompareHashAndPassword(hash, []byte(req.Password)) != nil {
		return respondFail(c, http.StatusUnauthorized, "Invalid email or password")
	}

	token, err := s.sign(principal.ID, principal.Email)
	if err != nil {
		return respondFail(c, http.StatusInternalServerError, "could not issue token")
	}
	return respondOK(c, map[string]any{"token": token, "user": principal})
}

func (s *Server) register(c echo.Context) error {
	var req struct {
		FirstName   string `json:"firstName"`
		LastName    string `json:"lastName"`
		Email       string `json:"email"`
		CompanyName string `json:"companyName"`
		Password    string `json:"password"`
	}
	if err := c.Bind(&req); err != nil {
		return respondFail(c, http.StatusBadRequest, "invalid request")
	}

	email := strings.ToLower(strings.TrimSpace(req.Email))
	s.mu.Lock()
	_, exists := s.accounts[email]
	s.mu.Unlock()
	if exists {
		return respondFail(c, http.StatusConflict, "An account with this email already exists")
	}

	p := s.AddUser(identity.Principal{
		Email:     email,
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Role:      identity.RoleUpperAdmin,
		Company: &identity.Company{
			ID:                 uuid.NewString(),
			Name:               req.CompanyName,
			SubscriptionStatus: "trialing",
		},
	}, req.Password)

	token, err := s.sign(p.ID, p.Email)
	if err != nil {
		return respondFail(c, http.StatusInternalServerError, "could not issue token")
	}
	return c.JSON(http.StatusCreated, map[string]any{
		"success": true,
		"data":    map[string]any{"token": token, "user": p},
	})
}

func (s *Server) logout(c echo.Context) error {
	cl, err := s.parse(bearer(c))
	if err != nil {
		return respondFail(c, http.StatusUnauthorized, "not logged in")
	}
	s.mu.Lock()
	s.revoked[cl.ID] = true
	s.mu.Unlock()
	return respondOK(c, map[string]any{})
}

// --- Tokens ---

// claims is the JWT body: subject is the principal ID, jti identifies the
// token for revocation.
type claims struct {
	Email string `json:"email"`
	jwt.RegisteredClaims
}

func (s *Server) sign(userID, email string) (string, error) {
	s.mu.Lock()
	ttl := s.tokenTTL
	s.mu.Unlock()

	now := s.now().UTC()
	t := jwt.NewWithClaims(jwt.SigningMethodHS256, claims{
		Email: email,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	})
	return t.SignedString(s.secret)
}

func (s *Server) parse(raw string) (*claims, error) {
	if raw == "" {
		return nil, errors.New("missing token")
	}
	var cl claims
	tok, err := jwt.ParseWithClaims(raw, &cl, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return s.secret, nil
	}, jwt.WithTimeFunc(s.now))
	if err != nil || !tok.Valid {
		return nil, fmt.Errorf("invalid token: %w", err)
	}
	return &cl, nil
}

// authenticate resolves the bearer token to a live, unrevoked account.
func (s *Server) authenticate(c echo.Context) (*account, error) {
	cl, err := s.parse(bearer(c))
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.revoked[cl.ID] {
		return nil, errors.New("token revoked")
	}
	acct, ok := s.accounts[strings.ToLower(cl.Email)]
	if !ok || acct.principal.ID != cl.Subject {
		return nil, errors.New("unknown account")
	}
	cp := *acct
	cp.principal = *acct.principal.Clone()
	return &cp, nil
}

// --- Helpers ---

func bearer(c echo.Context) string {
	h := c.Request().Header.Get("Authorization")
	if !strings.HasPrefix(h, "Bearer ") {
		return ""
	}
	return strings.TrimPrefix(h, "Bearer ")
}

func respondOK(c echo.Context, data any) error {
	return c.JSON(http.StatusOK, map[string]any{"success": true, "data": data})
}

func respondFail(c echo.Context, code int, message string) error {
	return c.JSON(code, map[string]any{"success": false, "message": message})
}

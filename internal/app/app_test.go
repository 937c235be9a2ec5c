package app

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/keyxmakerx/switchboard/internal/config"
	"github.com/keyxmakerx/switchboard/internal/plugins/identity"
	"github.com/keyxmakerx/switchboard/internal/plugins/identity/identitytest"
)

func newTestApp(t *testing.T) (*App, *identitytest.Server) {
	t.Helper()

	fake := identitytest.New()
	srv := fake.Start()
	t.Cleanup(srv.Close)

	cfg := &config.Config{
		Env:     "development",
		Port:    0,
		BaseURL: "http://localhost:8080",
		Identity: config.IdentityConfig{
			URL:     srv.URL,
			Timeout: 2 * time.Second,
		},
		Storage: config.StorageConfig{Driver: config.StorageMemory},
		Browser: config.BrowserConfig{
			CookieName: "switchboard_browser",
			IdleTTL:    time.Hour,
			SettleWait: 2 * time.Second,
		},
	}

	a, err := New(cfg, nil, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	a.RegisterRoutes()
	t.Cleanup(a.Sessions.Close)
	return a, fake
}

func serve(a *App, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	a.Echo.ServeHTTP(rec, req)
	return rec
}

func TestNew_RejectsMissingConnections(t *testing.T) {
	for _, driver := range []string{config.StorageRedis, config.StorageMariaDB} {
		cfg := &config.Config{Storage: config.StorageConfig{Driver: driver}}
		if _, err := New(cfg, nil, nil); err == nil {
			t.Errorf("%s: expected an error without a connection", driver)
		}
	}
}

func TestHealthz(t *testing.T) {
	a, _ := newTestApp(t)

	rec := serve(a, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var body map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decoding body: %v", err)
	}
	if body["status"] != "ok" || body["storage"] != "memory" {
		t.Errorf("unexpected body: %v", body)
	}
}

func TestErrorHandler_NotFound(t *testing.T) {
	a, _ := newTestApp(t)

	rec := serve(a, httptest.NewRequest(http.MethodGet, "/api/nope", nil))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
	if !strings.HasPrefix(rec.Header().Get("Content-Type"), "application/json") {
		t.Errorf("expected JSON for API path, got %q", rec.Header().Get("Content-Type"))
	}

	rec = serve(a, httptest.NewRequest(http.MethodGet, "/nope", nil))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "<h1>404</h1>") {
		t.Error("expected the error page for browser requests")
	}
}

func TestCSRF_RequiredOnSessionAPI(t *testing.T) {
	a, _ := newTestApp(t)

	req := httptest.NewRequest(http.MethodPost, "/api/session/logout", nil)
	rec := serve(a, req)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403 without a CSRF token, got %d", rec.Code)
	}
}

// TestDashboard_RendersShellForPrincipal drives a full login through the
// global middleware stack and checks the layout shows the composed menu.
func TestDashboard_RendersShellForPrincipal(t *testing.T) {
	a, fake := newTestApp(t)
	fake.AddUser(identity.Principal{
		Email:              "owner@x.com",
		FirstName:          "Grace",
		LastName:           "Hopper",
		Role:               identity.RoleUpperAdmin,
		EmailVerified:      true,
		HasConfiguredEmail: true,
		Company:            &identity.Company{Name: "Acme", SubscriptionStatus: "active"},
	}, "correct-horse")

	// First visit issues the browser and CSRF cookies.
	rec := serve(a, httptest.NewRequest(http.MethodGet, "/login", nil))
	cookies := rec.Result().Cookies()
	var csrf string
	for _, c := range cookies {
		if c.Name == "switchboard_csrf" {
			csrf = c.Value
		}
	}
	if csrf == "" {
		t.Fatal("expected a CSRF cookie")
	}

	form := "email=owner%40x.com&password=correct-horse&csrf_token=" + csrf
	req := httptest.NewRequest(http.MethodPost, "/login", strings.NewReader(form))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	for _, c := range cookies {
		req.AddCookie(c)
	}
	rec = serve(a, req)
	if rec.Code != http.StatusSeeOther {
		t.Fatalf("expected 303 after login, got %d: %s", rec.Code, rec.Body.String())
	}

	req = httptest.NewRequest(http.MethodGet, "/dashboard", nil)
	for _, c := range cookies {
		req.AddCookie(c)
	}
	rec = serve(a, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	body := rec.Body.String()
	for _, want := range []string{"Grace Hopper", "Acme", `href="/admins"`, `class="active"`} {
		if !strings.Contains(body, want) {
			t.Errorf("dashboard missing %q", want)
		}
	}
	if strings.Contains(body, `href="/employees"`) {
		t.Error("UpperAdmin menu must not list employees")
	}
}

package identity

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/keyxmakerx/switchboard/internal/apperror"
	"github.com/keyxmakerx/switchboard/internal/sanitize"
)

// Endpoint paths on the Identity Service.
const (
	pathMe       = "/auth/me"
	pathLogin    = "/auth/login"
	pathRegister = "/auth/register"
	pathLogout   = "/auth/logout"
)

// Fallback messages used when the Identity Service gives none.
const (
	msgLoginFailed    = "Login failed. Please try again."
	msgRegisterFailed = "Registration failed. Please try again."
	msgSessionInvalid = "session expired or invalid"
	msgLogoutFailed   = "logout could not be confirmed"
)

// maxResponseBytes bounds how much of an Identity Service response is read.
const maxResponseBytes = 1 << 20

// Client defines the contract for talking to the Identity Service. Each call
// is a single attempt: retry policy belongs to the caller.
type Client interface {
	// CheckSession returns the principal a token authenticates. Any failure,
	// including transport errors, means the token must be treated as invalid.
	CheckSession(ctx context.Context, token string) (*Principal, error)

	// Login exchanges credentials for a token and principal.
	Login(ctx context.Context, input LoginInput) (*Result, error)

	// Register creates a tenant and its UpperAdmin, returning a token and
	// principal like Login.
	Register(ctx context.Context, input RegisterInput) (*Result, error)

	// Logout revokes a token. Best effort: callers tear down local state
	// regardless of the outcome.
	Logout(ctx context.Context, token string) error
}

// httpClient implements Client over the Identity Service's JSON API.
type httpClient struct {
	baseURL string
	http    *http.Client
}

// NewClient creates a Client for the Identity Service at baseURL. Every call
// is bounded by timeout in addition to the caller's context.
func NewClient(baseURL string, timeout time.Duration) Client {
	return &httpClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
	}
}

// NewClientWithHTTP creates a Client using a caller-supplied *http.Client.
// Tests use it with httptest servers.
func NewClientWithHTTP(baseURL string, hc *http.Client) Client {
	return &httpClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    hc,
	}
}

// CheckSession calls GET /auth/me with the bearer token.
func (c *httpClient) CheckSession(ctx context.Context, token string) (*Principal, error) {
	if token == "" {
		return nil, apperror.NewUnauthorized(msgSessionInvalid)
	}

	var env envelope[mePayload]
	if err := c.do(ctx, http.MethodGet, pathMe, token, nil, &env, msgSessionInvalid); err != nil {
		return nil, err
	}
	if env.Data == nil || env.Data.User == nil {
		return nil, apperror.FromStatus(http.StatusBadGateway, msgSessionInvalid)
	}

	p := env.Data.User
	p.Role = p.Role.Canonical()
	return p, nil
}

// Login calls POST /auth/login. The input is validated first; a validation
// failure never reaches the network.
func (c *httpClient) Login(ctx context.Context, input LoginInput) (*Result, error) {
	input = input.Normalize()
	if err := input.Validate(); err != nil {
		return nil, err
	}

	var env envelope[Result]
	if err := c.do(ctx, http.MethodPost, pathLogin, "", input, &env, msgLoginFailed); err != nil {
		return nil, err
	}
	return resultFrom(env.Data, msgLoginFailed)
}

// Register calls POST /auth/register after validating the form, including
// the password confirmation.
func (c *httpClient) Register(ctx context.Context, input RegisterInput) (*Result, error) {
	input = input.Normalize()
	if err := input.Validate(); err != nil {
		return nil, err
	}

	payload := registerPayload{
		FirstName:   input.FirstName,
		LastName:    input.LastName,
		Email:       input.Email,
		CompanyName: input.CompanyName,
		Password:    input.Password,
	}

	var env envelope[Result]
	if err := c.do(ctx, http.MethodPost, pathRegister, "", payload, &env, msgRegisterFailed); err != nil {
		return nil, err
	}
	return resultFrom(env.Data, msgRegisterFailed)
}

// Logout calls POST /auth/logout with the bearer token.
func (c *httpClient) Logout(ctx context.Context, token string) error {
	if token == "" {
		return nil
	}
	var env envelope[json.RawMessage]
	return c.do(ctx, http.MethodPost, pathLogout, token, nil, &env, msgLogoutFailed)
}

// resultFrom checks that a login/register payload actually carries a token
// and a principal.
func resultFrom(data *Result, fallback string) (*Result, error) {
	if data == nil || data.Token == "" || data.Principal == nil {
		return nil, apperror.FromStatus(http.StatusBadGateway, fallback)
	}
	data.Principal.Role = data.Principal.Role.Canonical()
	return data, nil
}

// envelopeStatus is satisfied by every envelope[T] so do() can inspect the
// success flag without knowing the payload type.
type envelopeStatus interface {
	status() (bool, string)
}

func (e *envelope[T]) status() (bool, string) {
	return e.Success, e.Message
}

// do performs one request and decodes the envelope into out. Non-2xx
// responses, success=false envelopes, undecodable bodies and transport
// failures all become AppErrors carrying the server's message when present
// and fallback otherwise.
func (c *httpClient) do(ctx context.Context, method, path, token string, body any, out envelopeStatus, fallback string) error {
	var reader io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return apperror.NewInternal(fmt.Errorf("encoding %s body: %w", path, err))
		}
		reader = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return apperror.NewInternal(fmt.Errorf("building %s request: %w", path, err))
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return apperror.NewUnavailable(fallback, fmt.Errorf("%s %s: %w", method, path, err))
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return apperror.NewUnavailable(fallback, fmt.Errorf("reading %s response: %w", path, err))
	}

	decodeErr := json.Unmarshal(raw, out)
	success, message := out.status()

	if resp.StatusCode < 200 || resp.StatusCode > 299 || decodeErr != nil || !success {
		msg := sanitize.Message(message)
		if msg == "" {
			msg = fallback
		}
		appErr := apperror.FromStatus(resp.StatusCode, msg)
		if decodeErr != nil {
			appErr.Internal = fmt.Errorf("decoding %s response (status %d): %w", path, resp.StatusCode, decodeErr)
		}

		slog.Debug("identity call failed",
			slog.String("method", method),
			slog.String("path", path),
			slog.Int("status", resp.StatusCode),
			slog.String("message", msg),
		)
		return appErr
	}

	return nil
}

// IsRejection reports whether err means the Identity Service looked at the
// credential and refused it (as opposed to being unreachable).
func IsRejection(err error) bool {
	var appErr *apperror.AppError
	if !errors.As(err, &appErr) {
		return false
	}
	return appErr.Code == http.StatusUnauthorized || appErr.Code == http.StatusForbidden
}

package apperror

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
)

func TestFromStatus_MapsKnownCodes(t *testing.T) {
	tests := []struct {
		code     int
		wantCode int
		wantType string
	}{
		{http.StatusUnauthorized, http.StatusUnauthorized, "unauthorized"},
		{http.StatusForbidden, http.StatusForbidden, "forbidden"},
		{http.StatusConflict, http.StatusConflict, "conflict"},
		{http.StatusUnprocessableEntity, http.StatusUnprocessableEntity, "validation_error"},
		{http.StatusTooManyRequests, http.StatusTooManyRequests, "rate_limited"},
		{http.StatusInternalServerError, http.StatusInternalServerError, "upstream_error"},
		{http.StatusOK, http.StatusBadGateway, "upstream_error"},
	}

	for _, tt := range tests {
		t.Run(http.StatusText(tt.code), func(t *testing.T) {
			err := FromStatus(tt.code, "nope")
			if err.Code != tt.wantCode {
				t.Errorf("code: got %d, want %d", err.Code, tt.wantCode)
			}
			if err.Type != tt.wantType {
				t.Errorf("type: got %q, want %q", err.Type, tt.wantType)
			}
			if err.Message != "nope" {
				t.Errorf("message: got %q", err.Message)
			}
		})
	}
}

func TestSafeMessage_UnwrapsWrappedAppError(t *testing.T) {
	err := fmt.Errorf("login: %w", NewUnauthorized("invalid email or password"))
	if got := SafeMessage(err); got != "invalid email or password" {
		t.Errorf("got %q", got)
	}
	if got := SafeCode(err); got != http.StatusUnauthorized {
		t.Errorf("got %d", got)
	}
}

func TestSafeMessage_HidesRawErrors(t *testing.T) {
	err := errors.New("dial tcp 10.0.0.3:4000: connection refused")
	if got := SafeMessage(err); got != "an unexpected error occurred" {
		t.Errorf("raw error leaked: %q", got)
	}
	if got := SafeCode(err); got != http.StatusInternalServerError {
		t.Errorf("got %d", got)
	}
}

func TestNewUnavailable_KeepsCause(t *testing.T) {
	cause := errors.New("timeout")
	err := NewUnavailable("Login failed. Please try again.", cause)
	if !errors.Is(err, cause) {
		t.Error("expected cause to be reachable via errors.Is")
	}
	if err.Code != http.StatusServiceUnavailable {
		t.Errorf("got %d", err.Code)
	}
}

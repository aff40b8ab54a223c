package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
)

func TestGetHTTPStatus(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"not found", NotFound("classification"), http.StatusNotFound},
		{"wrapped", fmt.Errorf("outer: %w", MailboxNotConnected("a@b.com")), http.StatusUnauthorized},
		{"rate limited", RateLimited("gmail", errors.New("429")), http.StatusTooManyRequests},
		{"plain error", errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := GetHTTPStatus(tt.err); got != tt.want {
				t.Errorf("GetHTTPStatus() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestAsAppError_WrapsPlainErrors(t *testing.T) {
	base := errors.New("disk full")
	got := AsAppError(base)
	if got.Code != CodeInternalError {
		t.Errorf("Code = %s, want %s", got.Code, CodeInternalError)
	}
	if !errors.Is(got, base) {
		t.Errorf("AsAppError lost the cause")
	}
}

func TestHasCode(t *testing.T) {
	err := fmt.Errorf("ctx: %w", OAuthStateInvalid())
	if !HasCode(err, CodeOAuthStateInvalid) {
		t.Errorf("HasCode() = false, want true")
	}
	if HasCode(err, CodeNotFound) {
		t.Errorf("HasCode(NOT_FOUND) = true, want false")
	}
}

func TestValidationFailed_Details(t *testing.T) {
	err := ValidationFailed("email", "bad format")
	if err.Details["field"] != "email" {
		t.Errorf("details = %v", err.Details)
	}
	if err.Message != "invalid email: bad format" {
		t.Errorf("message = %q", err.Message)
	}
}

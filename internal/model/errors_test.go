package model

import (
	"errors"
	"fmt"
	"testing"
)

func TestAPIError_Error_WithoutFields(t *testing.T) {
	err := NewInvalidActivationLinkError()

	want := "[INVALID_ACTIVATION_LINK] Invalid activation link."
	if got := err.Error(); got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
}

func TestAPIError_Error_WithFieldsIsSorted(t *testing.T) {
	err := NewValidationError(map[string]string{
		"username": "This field is required.",
		"email":    "Enter a valid email address.",
	})

	want := "[VALIDATION_FAILED] Invalid input. (email: Enter a valid email address.; username: This field is required.)"
	if got := err.Error(); got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
}

func TestAPIError_ErrorsAs_ThroughWrapping(t *testing.T) {
	wrapped := fmt.Errorf("login failed: %w", NewEmailNotVerifiedError())

	var apiErr *APIError
	if !errors.As(wrapped, &apiErr) {
		t.Fatal("errors.As should unwrap *APIError")
	}
	if apiErr.Code != ErrCodeEmailNotVerified {
		t.Errorf("Code = %q, want %q", apiErr.Code, ErrCodeEmailNotVerified)
	}
}

// 各コンストラクタが空でないコードとカテゴリを持つことを検証
func TestConstructors_HaveCodeAndCategory(t *testing.T) {
	tests := []struct {
		name string
		err  *APIError
		code string
	}{
		{"validation", NewValidationError(nil), ErrCodeValidationFailed},
		{"invalid request", NewInvalidRequestError(), ErrCodeInvalidRequest},
		{"invalid credentials", NewInvalidCredentialsError(), ErrCodeInvalidCredentials},
		{"already authenticated", NewAlreadyAuthenticatedError(), ErrCodeAlreadyAuthenticated},
		{"email not verified", NewEmailNotVerifiedError(), ErrCodeEmailNotVerified},
		{"activation link", NewInvalidActivationLinkError(), ErrCodeInvalidActivationLink},
		{"unauthorized", NewUnauthorizedError(), ErrCodeUnauthorized},
		{"forbidden", NewForbiddenError("nope"), ErrCodeForbidden},
		{"post not found", NewPostNotFoundError(), ErrCodePostNotFound},
		{"user not found", NewUserNotFoundError(), ErrCodeUserNotFound},
		{"internal", NewInternalError(), ErrCodeInternal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.err.Code != tt.code {
				t.Errorf("Code = %q, want %q", tt.err.Code, tt.code)
			}
			if tt.err.Category == "" {
				t.Error("Category should not be empty")
			}
			if tt.err.Message == "" {
				t.Error("Message should not be empty")
			}
		})
	}
}

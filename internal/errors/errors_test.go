package errors

import (
	"fmt"
	"testing"
)

func TestTabbyError_Error(t *testing.T) {
	err := &TabbyError{
		Code:    ErrNotFound,
		Status:  404,
		Message: "workspace not found",
	}

	expected := "NOT_FOUND: workspace not found"
	if err.Error() != expected {
		t.Errorf("Error() = %q, want %q", err.Error(), expected)
	}
}

func TestNewInvalidRequest(t *testing.T) {
	err := NewInvalidRequest("name is required")

	if err.Code != ErrInvalidRequest {
		t.Errorf("Code = %q, want %q", err.Code, ErrInvalidRequest)
	}
	if err.Status != 400 {
		t.Errorf("Status = %d, want 400", err.Status)
	}
	if err.Message != "name is required" {
		t.Errorf("Message = %q, want %q", err.Message, "name is required")
	}
}

func TestNewNotFound(t *testing.T) {
	err := NewNotFound("workspace", int64(42))

	if err.Code != ErrNotFound {
		t.Errorf("Code = %q, want %q", err.Code, ErrNotFound)
	}
	if err.Status != 404 {
		t.Errorf("Status = %d, want 404", err.Status)
	}
	if err.Details["kind"] != "workspace" {
		t.Errorf("Details[kind] = %v, want %q", err.Details["kind"], "workspace")
	}
	if err.Details["identifier"] != int64(42) {
		t.Errorf("Details[identifier] = %v, want 42", err.Details["identifier"])
	}
	if err.Message != "workspace not found: 42" {
		t.Errorf("Message = %q", err.Message)
	}
}

func TestNewValidationFailed(t *testing.T) {
	violations := []string{"tab 2 duplicated", "tab 3 missing"}
	err := NewValidationFailed("grouping response rejected", violations, len(violations))

	if err.Code != ErrValidationFailed {
		t.Errorf("Code = %q, want %q", err.Code, ErrValidationFailed)
	}
	if err.Status != 422 {
		t.Errorf("Status = %d, want 422", err.Status)
	}
	got, ok := err.Details["violations"].([]string)
	if !ok || len(got) != 2 {
		t.Errorf("Details[violations] = %v, want %v", err.Details["violations"], violations)
	}
}

func TestNewTransactionFailed(t *testing.T) {
	err := NewTransactionFailed(fmt.Errorf("database is locked"))

	if err.Code != ErrTransactionFailed {
		t.Errorf("Code = %q, want %q", err.Code, ErrTransactionFailed)
	}
	if err.Details["internal_error"] != "database is locked" {
		t.Errorf("Details[internal_error] = %v", err.Details["internal_error"])
	}
}

func TestNewUpstreamFailed(t *testing.T) {
	err := NewUpstreamFailed("grouping model", fmt.Errorf("timeout"))

	if err.Code != ErrUpstreamFailed {
		t.Errorf("Code = %q, want %q", err.Code, ErrUpstreamFailed)
	}
	if err.Status != 502 {
		t.Errorf("Status = %d, want 502", err.Status)
	}
	if err.Details["collaborator"] != "grouping model" {
		t.Errorf("Details[collaborator] = %v", err.Details["collaborator"])
	}
}

func TestNewInternal(t *testing.T) {
	t.Run("with error", func(t *testing.T) {
		err := NewInternal(fmt.Errorf("disk full"))

		if err.Code != ErrInternal {
			t.Errorf("Code = %q, want %q", err.Code, ErrInternal)
		}
		// Message should be generic (not leak internal details)
		if err.Message != "an internal error occurred" {
			t.Errorf("Message = %q, want %q", err.Message, "an internal error occurred")
		}
		if err.Details["internal_error"] != "disk full" {
			t.Errorf("Details[internal_error] = %q, want %q", err.Details["internal_error"], "disk full")
		}
	})

	t.Run("with nil", func(t *testing.T) {
		err := NewInternal(nil)
		if err.Details == nil {
			t.Error("Details should not be nil")
		}
	})
}

func TestIs(t *testing.T) {
	t.Run("matching code", func(t *testing.T) {
		err := NewNotFound("tab", 1)
		if !Is(err, ErrNotFound) {
			t.Error("Is() = false, want true")
		}
	})

	t.Run("non-matching code", func(t *testing.T) {
		err := NewNotFound("tab", 1)
		if Is(err, ErrConflict) {
			t.Error("Is() = true, want false")
		}
	})

	t.Run("plain error", func(t *testing.T) {
		if Is(fmt.Errorf("plain error"), ErrNotFound) {
			t.Error("Is() = true, want false for non-TabbyError")
		}
	})

	t.Run("wrapped", func(t *testing.T) {
		wrapped := fmt.Errorf("activate: %w", NewNotFound("workspace", 7))
		if !Is(wrapped, ErrNotFound) {
			t.Error("Is() = false, want true for wrapped TabbyError")
		}
		tErr, ok := As(wrapped)
		if !ok || tErr.Status != 404 {
			t.Errorf("As() = %v, %v", tErr, ok)
		}
	})
}

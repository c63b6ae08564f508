package errors

import (
	stderrors "errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestHTTPStatus(t *testing.T) {
	tests := []struct {
		code ErrorCode
		want int
	}{
		{ErrCodeInvalidJSON, 400},
		{ErrCodeMissingField, 400},
		{ErrCodeMissingHeader, 400},
		{ErrCodeInvalidField, 400},
		{ErrCodeInvalidStatus, 400},
		{ErrCodeInvalidAmount, 400},
		{ErrCodeUnauthorized, 401},
		{ErrCodeNotFound, 404},
		{ErrCodeDuplicateTransaction, 409},
		{ErrCodeRateLimited, 429},
		{ErrCodeStorageError, 500},
		{ErrCodeInternalError, 500},
		{ErrorCode("something_new"), 500},
	}

	for _, tt := range tests {
		if got := tt.code.HTTPStatus(); got != tt.want {
			t.Errorf("%s.HTTPStatus() = %d, want %d", tt.code, got, tt.want)
		}
	}
}

func TestIsRetryable(t *testing.T) {
	if !ErrCodeStorageError.IsRetryable() {
		t.Error("storage errors should be retryable")
	}
	if ErrCodeDuplicateTransaction.IsRetryable() {
		t.Error("duplicates should not be retryable")
	}
	if ErrCodeMissingField.IsRetryable() {
		t.Error("validation errors should not be retryable")
	}
}

func TestErrorBodyHidesCause(t *testing.T) {
	cause := stderrors.New("ResourceNotFoundException: table lms-transactions not found")
	err := Wrap(ErrCodeStorageError, "Failed to store transaction", cause).
		With("details", "The transaction could not be persisted. Please retry later.")

	body := err.Body()
	if body["error"] != "Failed to store transaction" {
		t.Errorf("unexpected error message: %v", body["error"])
	}
	for k, v := range body {
		if s, ok := v.(string); ok && strings.Contains(s, "lms-transactions") {
			t.Errorf("body key %q leaks cause: %q", k, s)
		}
	}

	if !stderrors.Is(err, cause) {
		t.Error("expected Unwrap to expose the cause")
	}
	if !strings.Contains(err.Error(), "lms-transactions") {
		t.Error("expected Error() to include the cause for logging")
	}
}

func TestWriteJSON(t *testing.T) {
	rec := httptest.NewRecorder()
	New(ErrCodeInvalidStatus, "Invalid status value").With("received_status", "pending").WriteJSON(rec)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("unexpected content type %q", ct)
	}
	if !strings.Contains(rec.Body.String(), `"received_status":"pending"`) {
		t.Errorf("unexpected body %s", rec.Body.String())
	}
}

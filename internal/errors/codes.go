package errors

// ErrorCode represents a machine-readable error kind.
type ErrorCode string

// Request parsing and validation errors
const (
	ErrCodeInvalidJSON   ErrorCode = "invalid_json"
	ErrCodeMissingField  ErrorCode = "missing_field"
	ErrCodeMissingHeader ErrorCode = "missing_header"
	ErrCodeInvalidField  ErrorCode = "invalid_field"
	ErrCodeInvalidStatus ErrorCode = "invalid_status"
	ErrCodeInvalidAmount ErrorCode = "invalid_amount"
	ErrCodeNotFound      ErrorCode = "not_found"
	ErrCodeUnauthorized  ErrorCode = "unauthorized"
	ErrCodeRateLimited   ErrorCode = "rate_limited"
)

// Storage errors
const (
	// ErrCodeDuplicateTransaction is returned when the conditional write finds an existing record.
	ErrCodeDuplicateTransaction ErrorCode = "duplicate_transaction"
	ErrCodeStorageError         ErrorCode = "storage_error"
)

// Internal/System Errors
const (
	ErrCodeInternalError ErrorCode = "internal_error"
)

// IsRetryable returns whether the caller may resend the same request.
// Only store failures are transient; a duplicate will stay a duplicate.
func (e ErrorCode) IsRetryable() bool {
	switch e {
	case ErrCodeStorageError, ErrCodeRateLimited:
		return true
	default:
		return false
	}
}

// HTTPStatus returns the appropriate HTTP status code for this error.
func (e ErrorCode) HTTPStatus() int {
	switch e {
	// 400 Bad Request - Client validation errors
	case ErrCodeInvalidJSON,
		ErrCodeMissingField,
		ErrCodeMissingHeader,
		ErrCodeInvalidField,
		ErrCodeInvalidStatus,
		ErrCodeInvalidAmount:
		return 400

	case ErrCodeUnauthorized:
		return 401

	case ErrCodeNotFound:
		return 404

	// 409 Conflict - transaction_id already recorded
	case ErrCodeDuplicateTransaction:
		return 409

	case ErrCodeRateLimited:
		return 429

	// 500 Internal Server Error - System/internal errors
	default:
		return 500
	}
}

package errors

import (
	"encoding/json"
	"fmt"
	"net/http"
)

// Error is a classified failure. Message and Fields form the client-visible JSON body;
// Err is the underlying cause and is only ever logged.
type Error struct {
	Code    ErrorCode
	Message string
	Fields  map[string]any
	Err     error
}

// New creates a classified error with a client-visible message.
func New(code ErrorCode, message string) *Error {
	return &Error{Code: code, Message: message}
}

// Wrap classifies an underlying error. The cause is not exposed in Body.
func Wrap(code ErrorCode, message string, cause error) *Error {
	return &Error{Code: code, Message: message, Err: cause}
}

// With adds a key to the response body and returns the receiver.
func (e *Error) With(key string, value any) *Error {
	if e.Fields == nil {
		e.Fields = make(map[string]any)
	}
	e.Fields[key] = value
	return e
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Err
}

// Status returns the HTTP status for the error code.
func (e *Error) Status() int {
	return e.Code.HTTPStatus()
}

// Body renders the client-visible payload: {"error": Message, ...Fields}.
func (e *Error) Body() map[string]any {
	body := make(map[string]any, len(e.Fields)+1)
	for k, v := range e.Fields {
		body[k] = v
	}
	body["error"] = e.Message
	return body
}

// WriteJSON writes the error response as JSON to the HTTP response writer.
func (e *Error) WriteJSON(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(e.Status())
	json.NewEncoder(w).Encode(e.Body())
}

// WriteError is a convenience function to write an error response in one call.
func WriteError(w http.ResponseWriter, code ErrorCode, message string) {
	New(code, message).WriteJSON(w)
}

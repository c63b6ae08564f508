package httpserver

import (
	"crypto/subtle"
	"net/http"
	"strings"

	apperrors "github.com/CedrosPay/txupdate/internal/errors"
)

// adminAuth protects a route with "Authorization: Bearer {key}".
// With an empty key the route is open unless required is set.
func adminAuth(apiKey string, required bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if apiKey == "" && !required {
				next.ServeHTTP(w, r)
				return
			}
			if apiKey == "" || !validAdminKey(r, apiKey) {
				apperrors.WriteError(w, apperrors.ErrCodeUnauthorized, "Invalid or missing admin API key")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// validAdminKey compares the bearer token in constant time.
func validAdminKey(r *http.Request, apiKey string) bool {
	token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
	if !ok {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(token), []byte(apiKey)) == 1
}

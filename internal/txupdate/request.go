package txupdate

import (
	"net/http"
	"strings"
)

// Header names and fixed CORS values.
const (
	TenantHeader = "X-Tenant-Id"

	HeaderAllowOrigin  = "Access-Control-Allow-Origin"
	HeaderAllowMethods = "Access-Control-Allow-Methods"
	HeaderAllowHeaders = "Access-Control-Allow-Headers"
	HeaderContentType  = "Content-Type"

	AllowedMethods = "POST,OPTIONS"
	AllowedHeaders = "Content-Type,X-Tenant-Id,Authorization"
)

// Request is one inbound notification, already unwrapped from its transport.
type Request struct {
	Method  string
	Headers map[string]string
	Body    []byte
}

// Header returns the value of name using a case-insensitive match.
func (r Request) Header(name string) string {
	if v, ok := r.Headers[name]; ok {
		return v
	}
	for k, v := range r.Headers {
		if strings.EqualFold(k, name) {
			return v
		}
	}
	return ""
}

// IsPreflight reports whether the request is a CORS preflight.
func (r Request) IsPreflight() bool {
	return strings.EqualFold(strings.TrimSpace(r.Method), http.MethodOptions)
}

// Response is the transport-neutral result of handling a Request.
// Body is empty for preflight responses and a JSON object otherwise.
type Response struct {
	StatusCode int
	Headers    map[string]string
	Body       string
}

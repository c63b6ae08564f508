// Package gateway adapts API Gateway proxy events to txupdate requests and back.
package gateway

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"net/http"

	"github.com/aws/aws-lambda-go/events"

	"github.com/CedrosPay/txupdate/internal/txupdate"
)

// probe holds the fields needed to tell event shapes apart.
type probe struct {
	Version        string            `json:"version"`
	HTTPMethod     string            `json:"httpMethod"`
	Headers        map[string]string `json:"headers"`
	Body           json.RawMessage   `json:"body"`
	IsBase64       bool              `json:"isBase64Encoded"`
	RequestContext struct {
		HTTP struct {
			Method string `json:"method"`
		} `json:"http"`
	} `json:"requestContext"`
}

func (p probe) isEnvelope() bool {
	return p.HTTPMethod != "" || p.RequestContext.HTTP.Method != "" || p.Body != nil || p.Headers != nil
}

func (p probe) isV2() bool {
	return p.Version == "2.0" || (p.HTTPMethod == "" && p.RequestContext.HTTP.Method != "")
}

// bodyIsString reports whether body is a JSON string or absent.
func (p probe) bodyIsString() bool {
	b := bytes.TrimSpace(p.Body)
	return len(b) == 0 || b[0] == '"' || string(b) == "null"
}

// Decode turns a raw Lambda event into a Request. It accepts REST API (v1)
// and HTTP API (v2) proxy events, events whose body is an inline JSON object,
// and direct invocations where the event itself is the notification.
func Decode(raw []byte) txupdate.Request {
	var p probe
	if err := json.Unmarshal(raw, &p); err != nil || !p.isEnvelope() {
		return direct(raw)
	}

	if !p.bodyIsString() {
		return txupdate.Request{
			Method:  methodOrPost(p.HTTPMethod, p.RequestContext.HTTP.Method),
			Headers: p.Headers,
			Body:    bytes.TrimSpace(p.Body),
		}
	}

	if p.isV2() {
		var ev events.APIGatewayV2HTTPRequest
		if err := json.Unmarshal(raw, &ev); err == nil {
			return FromV2(ev)
		}
	}

	var ev events.APIGatewayProxyRequest
	if err := json.Unmarshal(raw, &ev); err == nil {
		return FromV1(ev)
	}
	return direct(raw)
}

// FromV1 converts a REST API proxy event.
func FromV1(ev events.APIGatewayProxyRequest) txupdate.Request {
	headers := make(map[string]string, len(ev.Headers)+len(ev.MultiValueHeaders))
	for k, values := range ev.MultiValueHeaders {
		if len(values) > 0 {
			headers[k] = values[0]
		}
	}
	for k, v := range ev.Headers {
		headers[k] = v
	}
	return txupdate.Request{
		Method:  methodOrPost(ev.HTTPMethod, ev.RequestContext.HTTPMethod),
		Headers: headers,
		Body:    body(ev.Body, ev.IsBase64Encoded),
	}
}

// FromV2 converts an HTTP API (payload format 2.0) event.
func FromV2(ev events.APIGatewayV2HTTPRequest) txupdate.Request {
	headers := make(map[string]string, len(ev.Headers))
	for k, v := range ev.Headers {
		headers[k] = v
	}
	return txupdate.Request{
		Method:  methodOrPost(ev.RequestContext.HTTP.Method),
		Headers: headers,
		Body:    body(ev.Body, ev.IsBase64Encoded),
	}
}

// direct treats the whole event as the request body.
func direct(raw []byte) txupdate.Request {
	return txupdate.Request{
		Method:  http.MethodPost,
		Headers: map[string]string{},
		Body:    raw,
	}
}

// body decodes base64 bodies. Undecodable input is passed through unchanged
// so the handler reports it as invalid JSON.
func body(s string, isBase64 bool) []byte {
	if !isBase64 {
		return []byte(s)
	}
	decoded, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return []byte(s)
	}
	return decoded
}

func methodOrPost(candidates ...string) string {
	for _, m := range candidates {
		if m != "" {
			return m
		}
	}
	return http.MethodPost
}

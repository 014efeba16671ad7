package studio

import (
	"context"
	"fmt"
	"strings"
)

type Logger interface {
	Debug(format string, args ...any)
	Info(format string, args ...any)
	Warn(format string, args ...any)
	Error(format string, args ...any)
}

// UniversalRequest is the framework-neutral request shape produced by the
// binding adaptors. It is immutable once constructed; the dispatcher works on
// copies when it rewrites paths.
type UniversalRequest struct {
	// URL holds path plus query string, e.g. "/api/users?limit=10".
	URL     string
	Method  string
	Headers map[string]string
	Body    any
}

// UniversalResponse is the framework-neutral response shape consumed by the
// binding adaptors. Body is either a string or []byte.
type UniversalResponse struct {
	Status  int
	Headers map[string]string
	Body    any
}

// BodyBytes returns the response body as raw bytes regardless of how it was
// set.
func (r UniversalResponse) BodyBytes() []byte {
	switch b := r.Body.(type) {
	case []byte:
		return b
	case string:
		return []byte(b)
	case nil:
		return nil
	default:
		return []byte(fmt.Sprintf("%v", b))
	}
}

// Header returns a header value using case-insensitive lookup. Bindings
// preserve the original casing of header names, so the dispatcher cannot rely
// on canonical keys.
func (r UniversalRequest) Header(name string) string {
	if r.Headers == nil {
		return ""
	}
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

// APIHandler is the external API layer the dispatcher delegates protected and
// public API traffic to. The dashboard core never implements it; the auth
// backend integration does.
type APIHandler interface {
	HandleAPI(ctx context.Context, req UniversalRequest) UniversalResponse
}

// APIHandlerFunc adapts a function to the APIHandler interface.
type APIHandlerFunc func(ctx context.Context, req UniversalRequest) UniversalResponse

// HandleAPI implements APIHandler.
func (f APIHandlerFunc) HandleAPI(ctx context.Context, req UniversalRequest) UniversalResponse {
	if f == nil {
		return UniversalResponse{Status: 502}
	}
	return f(ctx, req)
}

type defLogger struct{}

func (d defLogger) Error(format string, args ...any) {
	fmt.Printf("[ERR] STUDIO "+newline(format), args...)
}

func (d defLogger) Warn(format string, args ...any) {
	fmt.Printf("[WRN] STUDIO "+newline(format), args...)
}

func (d defLogger) Info(format string, args ...any) {
	fmt.Printf("[INF] STUDIO "+newline(format), args...)
}

func (d defLogger) Debug(format string, args ...any) {
	fmt.Printf("[DBG] STUDIO "+newline(format), args...)
}

func newline(s string) string {
	if len(s) > 0 && s[len(s)-1] != '\n' {
		s += "\n"
	}
	return s
}

// Package httpbind exposes a studio.Handler as a net/http Handler.
package httpbind

import (
	"io"
	"net/http"

	studio "github.com/goliatone/go-auth-studio"
)

// maxBodyBytes bounds how much of a request body the binding will buffer.
const maxBodyBytes = 4 << 20

// Handler adapts h to net/http. Header casing is preserved as received;
// multi-valued headers keep their first value, which is all the dispatcher
// ever inspects.
func Handler(h *studio.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		req := studio.UniversalRequest{
			URL:     r.URL.RequestURI(),
			Method:  r.Method,
			Headers: flattenHeaders(r.Header),
		}

		if r.Body != nil {
			body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
			if err == nil && len(body) > 0 {
				req.Body = body
			}
		}

		res := h.Handle(r.Context(), req)

		for name, value := range res.Headers {
			w.Header().Set(name, value)
		}
		w.WriteHeader(res.Status)
		w.Write(res.BodyBytes())
	})
}

func flattenHeaders(header http.Header) map[string]string {
	flat := make(map[string]string, len(header))
	for name, values := range header {
		if len(values) > 0 {
			flat[name] = values[0]
		}
	}
	return flat
}

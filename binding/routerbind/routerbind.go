// Package routerbind exposes a studio.Handler as a go-router HandlerFunc so
// the dashboard mounts on any router backend go-router supports (fiber,
// httprouter) without a dedicated binding.
package routerbind

import (
	"github.com/goliatone/go-router"

	studio "github.com/goliatone/go-auth-studio"
)

// forwardedHeaders are the request headers the dispatcher inspects.
// go-router exposes headers individually, so the binding copies a fixed set
// instead of the full map.
var forwardedHeaders = []string{
	"Accept",
	"Authorization",
	"Content-Type",
	"Cookie",
	"User-Agent",
	"X-Forwarded-For",
}

// Handler adapts h to go-router.
func Handler(h *studio.Handler) router.HandlerFunc {
	return func(ctx router.Context) error {
		headers := map[string]string{}
		for _, name := range forwardedHeaders {
			if value := ctx.GetString(name, ""); value != "" {
				headers[name] = value
			}
		}

		req := studio.UniversalRequest{
			URL:     ctx.OriginalURL(),
			Method:  ctx.Method(),
			Headers: headers,
		}

		var body map[string]any
		if err := ctx.Bind(&body); err == nil && len(body) > 0 {
			req.Body = body
		}

		res := h.Handle(ctx.Context(), req)

		for name, value := range res.Headers {
			ctx.SetHeader(name, value)
		}
		return ctx.Status(res.Status).SendString(string(res.BodyBytes()))
	}
}

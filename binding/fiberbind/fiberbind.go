// Package fiberbind exposes a studio.Handler as a fiber v2 handler. Mount it
// with app.All("/studio/*", fiberbind.Handler(h)) or at the root for
// standalone deployments.
package fiberbind

import (
	"github.com/gofiber/fiber/v2"

	studio "github.com/goliatone/go-auth-studio"
)

// Handler adapts h to fiber.
func Handler(h *studio.Handler) fiber.Handler {
	return func(c *fiber.Ctx) error {
		headers := map[string]string{}
		c.Request().Header.VisitAll(func(key, value []byte) {
			headers[string(key)] = string(value)
		})

		req := studio.UniversalRequest{
			URL:     c.OriginalURL(),
			Method:  c.Method(),
			Headers: headers,
		}
		if body := c.Body(); len(body) > 0 {
			// Copy: fiber reuses its buffers after the handler returns.
			req.Body = append([]byte(nil), body...)
		}

		res := h.Handle(c.UserContext(), req)

		for name, value := range res.Headers {
			c.Set(name, value)
		}
		return c.Status(res.Status).Send(res.BodyBytes())
	}
}

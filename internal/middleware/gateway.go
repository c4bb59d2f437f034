package middleware

import (
	"github.com/gearshelf/api/internal/session"
	"github.com/gearshelf/api/pkg/response"
	"github.com/gofiber/fiber/v2"
)

// GatewayAuthMiddleware reads user identity from X-User-* headers
// set by a forward-auth proxy in front of the service.
func GatewayAuthMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		sess, err := session.New(c.Get("X-User-Id"), c.Get("X-User-Email"), c.Get("X-User-Name"), session.SourceGateway)
		if err != nil {
			return response.Unauthorized(c, "Missing user identity headers")
		}

		c.Locals(sessionKey, sess)
		return c.Next()
	}
}

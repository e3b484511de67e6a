package middleware

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/platewise/api/pkg/response"
)

// Identity headers exchanged with the gateway. /auth/verify sets them and
// the gateway copies them onto the request it forwards to the API.
const (
	HeaderUserID    = "X-User-Id"
	HeaderUserEmail = "X-User-Email"
	HeaderUserName  = "X-User-Name"
)

// owner ids are stored on every photo, estimate and meal
const maxOwnerIDLen = 255

// GatewayAuthMiddleware trusts the identity headers set by the gateway.
// Only mount it when the API is unreachable except through that gateway.
func GatewayAuthMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		id := Identity{
			UserID: strings.TrimSpace(c.Get(HeaderUserID)),
			Email:  c.Get(HeaderUserEmail),
			Name:   c.Get(HeaderUserName),
		}
		if id.UserID == "" || len(id.UserID) > maxOwnerIDLen {
			return response.Unauthorized(c, "Missing or invalid user identity headers")
		}

		setIdentity(c, &id)
		return c.Next()
	}
}

// SetIdentityHeaders writes the identity the gateway forwards upstream
func SetIdentityHeaders(c *fiber.Ctx, id *Identity) {
	c.Set(HeaderUserID, id.UserID)
	c.Set(HeaderUserEmail, id.Email)
	if id.Name != "" {
		c.Set(HeaderUserName, id.Name)
	}
}

func setIdentity(c *fiber.Ctx, id *Identity) {
	c.Locals("userId", id.UserID)
	c.Locals("email", id.Email)
	c.Locals("name", id.Name)
}

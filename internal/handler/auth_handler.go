package handler

import (
	"github.com/gofiber/fiber/v2"

	"github.com/platewise/api/internal/middleware"
)

// AuthHandler answers the gateway's forward-auth checks
type AuthHandler struct {
	auth *middleware.AuthMiddleware
}

func NewAuthHandler(auth *middleware.AuthMiddleware) *AuthHandler {
	return &AuthHandler{auth: auth}
}

// Verify handles GET /auth/verify. It returns 200 with X-User-* headers the
// gateway copies onto the upstream request, or 401.
func (h *AuthHandler) Verify(c *fiber.Ctx) error {
	id, err := h.auth.Identify(c.Get("Authorization"))
	if err != nil {
		return c.SendStatus(fiber.StatusUnauthorized)
	}

	middleware.SetIdentityHeaders(c, id)
	return c.SendStatus(fiber.StatusOK)
}

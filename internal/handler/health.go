package handler

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"
)

// Probe checks one live dependency
type Probe func(ctx context.Context) error

// HealthHandler reports dependency reachability and which integrations are configured
type HealthHandler struct {
	probes     map[string]Probe
	configured map[string]bool
	timeout    time.Duration
}

func NewHealthHandler(probes map[string]Probe, configured map[string]bool) *HealthHandler {
	return &HealthHandler{probes: probes, configured: configured, timeout: 2 * time.Second}
}

// Health handles GET /health
// @Summary      Health check
// @Tags         Health
// @Produce      json
// @Success      200 {object} map[string]interface{}
// @Failure      503 {object} map[string]interface{}
// @Router       /health [get]
func (h *HealthHandler) Health(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.UserContext(), h.timeout)
	defer cancel()

	status := "ok"
	checks := fiber.Map{}
	for name, probe := range h.probes {
		if err := probe(ctx); err != nil {
			status = "degraded"
			checks[name] = err.Error()
			continue
		}
		checks[name] = "ok"
	}

	code := fiber.StatusOK
	if status != "ok" {
		code = fiber.StatusServiceUnavailable
	}
	return c.Status(code).JSON(fiber.Map{
		"status":   status,
		"checks":   checks,
		"services": h.configured,
	})
}

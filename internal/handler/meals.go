package handler

import (
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/platewise/api/internal/middleware"
	"github.com/platewise/api/internal/model"
	"github.com/platewise/api/internal/service"
	"github.com/platewise/api/pkg/response"
)

type MealHandler struct {
	service   service.MealLogger
	validator *validator.Validate
}

func NewMealHandler(svc service.MealLogger, v *validator.Validate) *MealHandler {
	return &MealHandler{
		service:   svc,
		validator: v,
	}
}

// Create handles POST /api/meals
// @Summary      Log a meal
// @Description  Logs a meal, prefilling nutrition from a finished estimate when one is given
// @Tags         Meals
// @Accept       json
// @Produce      json
// @Param        request body model.CreateMealRequest true "Meal"
// @Success      201 {object} model.MealResponse
// @Failure      400 {object} response.ErrorResponse
// @Failure      401 {object} response.ErrorResponse
// @Failure      404 {object} response.ErrorResponse
// @Failure      409 {object} response.ErrorResponse
// @Security     BearerAuth
// @Router       /api/meals [post]
func (h *MealHandler) Create(c *fiber.Ctx) error {
	var req model.CreateMealRequest
	if err := c.BodyParser(&req); err != nil {
		return response.ValidationError(c, "Invalid request body", nil)
	}

	if err := h.validator.Struct(&req); err != nil {
		return response.ValidationError(c, "Validation failed", formatValidationErrors(err))
	}

	meal, err := h.service.Create(c.UserContext(), middleware.GetUserID(c), &req)
	if err != nil {
		return respondError(c, err, "Estimate not found")
	}
	return response.Created(c, meal)
}

// Get handles GET /api/meals/:id
// @Summary      Get a meal
// @Tags         Meals
// @Produce      json
// @Param        id path string true "Meal ID"
// @Success      200 {object} model.MealResponse
// @Failure      404 {object} response.ErrorResponse
// @Security     BearerAuth
// @Router       /api/meals/{id} [get]
func (h *MealHandler) Get(c *fiber.Ctx) error {
	meal, err := h.service.Get(c.UserContext(), middleware.GetUserID(c), c.Params("id"))
	if err != nil {
		return respondError(c, err, "Meal not found")
	}
	return response.OK(c, meal)
}

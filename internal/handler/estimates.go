package handler

import (
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/platewise/api/internal/middleware"
	"github.com/platewise/api/internal/model"
	"github.com/platewise/api/internal/service"
	ws "github.com/platewise/api/internal/websocket"
	"github.com/platewise/api/pkg/response"
)

const localEstimateView = "estimateView"

type EstimateHandler struct {
	service   service.EstimateGateway
	validator *validator.Validate
	logger    *zap.Logger
}

func NewEstimateHandler(svc service.EstimateGateway, v *validator.Validate, logger *zap.Logger) *EstimateHandler {
	return &EstimateHandler{
		service:   svc,
		validator: v,
		logger:    logger,
	}
}

// Submit handles POST /api/estimates
// @Summary      Submit photos for estimation
// @Description  Queues a calorie estimation for 1..N previously uploaded photos
// @Tags         Estimates
// @Accept       json
// @Produce      json
// @Param        request body model.SubmitEstimateRequest true "Photo ids"
// @Success      202 {object} model.SubmitEstimateResponse
// @Failure      400 {object} response.ErrorResponse
// @Failure      401 {object} response.ErrorResponse
// @Failure      429 {object} response.ErrorResponse
// @Failure      503 {object} response.ErrorResponse
// @Security     BearerAuth
// @Router       /api/estimates [post]
func (h *EstimateHandler) Submit(c *fiber.Ctx) error {
	var req model.SubmitEstimateRequest
	if err := c.BodyParser(&req); err != nil {
		return response.ValidationError(c, "Invalid request body", nil)
	}

	if err := h.validator.Struct(&req); err != nil {
		return response.ValidationError(c, "Validation failed", formatValidationErrors(err))
	}

	ownerID := middleware.GetUserID(c)
	result, err := h.service.Submit(c.UserContext(), ownerID, req.PhotoIDs)
	if err != nil {
		h.logger.Debug("submit rejected", zap.String("owner_id", ownerID), zap.Error(err))
		return respondError(c, err, "Estimate not found")
	}

	return response.Accepted(c, result)
}

// Get handles GET /api/estimates/:id
// @Summary      Get an estimate
// @Description  Returns the status and, once done, the nutrition summary
// @Tags         Estimates
// @Produce      json
// @Param        id path string true "Estimate ID"
// @Success      200 {object} model.EstimateView
// @Failure      401 {object} response.ErrorResponse
// @Failure      404 {object} response.ErrorResponse
// @Failure      503 {object} response.ErrorResponse
// @Security     BearerAuth
// @Router       /api/estimates/{id} [get]
func (h *EstimateHandler) Get(c *fiber.Ctx) error {
	view, err := h.service.Get(c.UserContext(), middleware.GetUserID(c), c.Params("id"))
	if err != nil {
		return respondError(c, err, "Estimate not found")
	}
	return response.OK(c, view)
}

// WatchUpgrade checks ownership and the upgrade header before the socket opens
func (h *EstimateHandler) WatchUpgrade(c *fiber.Ctx) error {
	if !websocket.IsWebSocketUpgrade(c) {
		return fiber.ErrUpgradeRequired
	}
	view, err := h.service.Get(c.UserContext(), middleware.GetUserID(c), c.Params("id"))
	if err != nil {
		return respondError(c, err, "Estimate not found")
	}
	c.Locals(localEstimateView, view)
	return c.Next()
}

// Watch streams status frames for one estimate, starting with its current state
func (h *EstimateHandler) Watch(hub *ws.Hub) fiber.Handler {
	return websocket.New(func(c *websocket.Conn) {
		view, ok := c.Locals(localEstimateView).(*model.EstimateView)
		if !ok {
			return
		}
		initial := model.WSStatusFromView(view)
		hub.HandleConnection(c, view.EstimateID, &initial)
	})
}

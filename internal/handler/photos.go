package handler

import (
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/platewise/api/internal/middleware"
	"github.com/platewise/api/internal/model"
	"github.com/platewise/api/internal/service"
	"github.com/platewise/api/pkg/response"
)

type PhotoHandler struct {
	service   service.PhotoUploader
	validator *validator.Validate
}

func NewPhotoHandler(svc service.PhotoUploader, v *validator.Validate) *PhotoHandler {
	return &PhotoHandler{
		service:   svc,
		validator: v,
	}
}

// UploadURL handles POST /api/photos/upload-url
// @Summary      Get a photo upload URL
// @Description  Registers a photo and returns a presigned URL to PUT the image to
// @Tags         Photos
// @Accept       json
// @Produce      json
// @Param        request body model.CreateUploadRequest true "Upload request"
// @Success      201 {object} model.CreateUploadResponse
// @Failure      400 {object} response.ErrorResponse
// @Failure      401 {object} response.ErrorResponse
// @Failure      429 {object} response.ErrorResponse
// @Failure      503 {object} response.ErrorResponse
// @Security     BearerAuth
// @Router       /api/photos/upload-url [post]
func (h *PhotoHandler) UploadURL(c *fiber.Ctx) error {
	var req model.CreateUploadRequest
	if err := c.BodyParser(&req); err != nil {
		return response.ValidationError(c, "Invalid request body", nil)
	}

	if err := h.validator.Struct(&req); err != nil {
		return response.ValidationError(c, "Validation failed", formatValidationErrors(err))
	}

	result, err := h.service.CreateUpload(c.UserContext(), middleware.GetUserID(c), &req)
	if err != nil {
		return respondError(c, err, "Photo not found")
	}

	return response.Created(c, result)
}

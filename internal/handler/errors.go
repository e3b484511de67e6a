package handler

import (
	"errors"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/platewise/api/internal/model"
	"github.com/platewise/api/pkg/response"
)

// respondError maps service errors onto response envelopes
func respondError(c *fiber.Ctx, err error, notFound string) error {
	var verr *model.ValidationError
	switch {
	case errors.As(err, &verr):
		return response.ValidationError(c, verr.Error(), map[string]string{verr.Field: verr.Reason})
	case errors.Is(err, model.ErrNotFound):
		return response.NotFound(c, notFound)
	case errors.Is(err, model.ErrNotReady):
		return response.NotReady(c, "Estimate is not done yet")
	case errors.Is(err, model.ErrQueueUnavailable), errors.Is(err, model.ErrStoreUnavailable):
		return response.ServiceUnavailable(c, "Service temporarily unavailable, try again shortly")
	default:
		return response.ServiceError(c, "Internal server error")
	}
}

// formatValidationErrors formats validator errors for response
func formatValidationErrors(err error) interface{} {
	var validationErrors validator.ValidationErrors
	if errors.As(err, &validationErrors) {
		errs := make(map[string]string)
		for _, e := range validationErrors {
			errs[e.Field()] = e.Tag()
		}
		return errs
	}
	return nil
}

package model

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidationErrorIs(t *testing.T) {
	err := fmt.Errorf("submit: %w", NewValidationError("photoIds", "must not be empty"))
	assert.ErrorIs(t, err, ErrValidation)

	var ve *ValidationError
	assert.True(t, errors.As(err, &ve))
	assert.Equal(t, "photoIds", ve.Field)
	assert.Equal(t, "photoIds: must not be empty", ve.Error())
}

func TestVisionErrorUnwrap(t *testing.T) {
	err := NewVisionError(VisionTimeout, context.DeadlineExceeded)
	assert.ErrorIs(t, err, ErrVision)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, "vision timeout: context deadline exceeded", err.Error())
	assert.Equal(t, "vision empty", NewVisionError(VisionEmpty, nil).Error())
}

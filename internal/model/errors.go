package model

import (
	"errors"
	"fmt"
)

var (
	ErrValidation       = errors.New("validation failed")
	ErrNotFound         = errors.New("not found")
	ErrQueueUnavailable = errors.New("queue unavailable")
	ErrStoreUnavailable = errors.New("store unavailable")
	ErrVision           = errors.New("vision service failed")

	// ErrAlreadyTerminal is returned when a claim finds the estimate done or failed
	ErrAlreadyTerminal = errors.New("estimate already terminal")
	// ErrStaleClaim is returned when a write loses to a newer claim on the same estimate
	ErrStaleClaim = errors.New("stale estimate claim")
	ErrPoisoned   = errors.New("job poisoned")
	ErrNotReady   = errors.New("estimate not ready")
)

// ValidationError describes a malformed request
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

// NewValidationError creates a validation error for one field
func NewValidationError(field, reason string) *ValidationError {
	return &ValidationError{Field: field, Reason: reason}
}

// Vision failure kinds
type VisionErrorKind string

const (
	VisionTimeout   VisionErrorKind = "timeout"
	VisionUpstream  VisionErrorKind = "upstream"
	VisionMalformed VisionErrorKind = "malformed"
	VisionEmpty     VisionErrorKind = "empty"
)

// VisionError wraps a failed or unusable vision service response
type VisionError struct {
	Kind VisionErrorKind
	Err  error
}

func (e *VisionError) Error() string {
	if e.Err == nil {
		return "vision " + string(e.Kind)
	}
	return fmt.Sprintf("vision %s: %v", e.Kind, e.Err)
}

func (e *VisionError) Unwrap() error { return e.Err }

func (e *VisionError) Is(target error) bool {
	return target == ErrVision
}

// NewVisionError creates a vision error of the given kind
func NewVisionError(kind VisionErrorKind, err error) *VisionError {
	return &VisionError{Kind: kind, Err: err}
}

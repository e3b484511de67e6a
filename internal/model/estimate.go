package model

import (
	"time"

	"github.com/google/uuid"
)

// Estimate status
type EstimateStatus string

const (
	EstimateStatusPending    EstimateStatus = "pending"
	EstimateStatusProcessing EstimateStatus = "processing"
	EstimateStatusDone       EstimateStatus = "done"
	EstimateStatusFailed     EstimateStatus = "failed"
)

// IsTerminal reports whether workers may no longer change the estimate.
func (s EstimateStatus) IsTerminal() bool {
	return s == EstimateStatusDone || s == EstimateStatusFailed
}

// CanTransition reports whether a status change from s to next is allowed.
// Status only moves forward, except that a failed estimate goes back to
// processing when its poisoned job is replayed.
func (s EstimateStatus) CanTransition(next EstimateStatus) bool {
	switch s {
	case EstimateStatusPending:
		return next == EstimateStatusProcessing
	case EstimateStatusProcessing:
		return next == EstimateStatusProcessing || next == EstimateStatusDone || next == EstimateStatusFailed
	case EstimateStatusFailed:
		return next == EstimateStatusProcessing
	default:
		return false
	}
}

// Macronutrients holds grams of protein, fat and carbohydrates
type Macronutrients struct {
	ProteinG float64 `json:"proteinG"`
	FatG     float64 `json:"fatG"`
	CarbsG   float64 `json:"carbsG"`
}

// ItemEstimate is one recognised food item
type ItemEstimate struct {
	Label      string          `json:"label"`
	Kcal       float64         `json:"kcal"`
	Confidence float64         `json:"confidence"`
	Macros     *Macronutrients `json:"macronutrients,omitempty"`
}

// Summary is the aggregated nutrition result for a set of photos
type Summary struct {
	KcalMean   float64         `json:"kcalMean"`
	KcalMin    float64         `json:"kcalMin"`
	KcalMax    float64         `json:"kcalMax"`
	Confidence float64         `json:"confidence"`
	Macros     *Macronutrients `json:"macronutrients,omitempty"`
	Items      []ItemEstimate  `json:"items"`
}

// Estimate is the durable state of one estimation request.
// Version is bumped on every claim and guards every later write.
type Estimate struct {
	ID           uuid.UUID
	OwnerID      string
	PhotoIDs     []uuid.UUID
	Status       EstimateStatus
	KcalMean     float64
	KcalMin      float64
	KcalMax      float64
	Confidence   float64
	Macros       *Macronutrients
	Items        []ItemEstimate
	AttemptCount int
	LastError    *string
	Version      int64
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Summary returns the nutrition fields of the estimate
func (e *Estimate) Summary() Summary {
	items := e.Items
	if items == nil {
		items = []ItemEstimate{}
	}
	return Summary{
		KcalMean:   e.KcalMean,
		KcalMin:    e.KcalMin,
		KcalMax:    e.KcalMax,
		Confidence: e.Confidence,
		Macros:     e.Macros,
		Items:      items,
	}
}

// View projects the estimate to what its owner may see. Attempt counts,
// versions and retry timing stay internal.
func (e *Estimate) View() *EstimateView {
	v := &EstimateView{
		EstimateID: e.ID.String(),
		Status:     e.Status,
		PhotoIDs:   make([]string, 0, len(e.PhotoIDs)),
		CreatedAt:  e.CreatedAt,
		UpdatedAt:  e.UpdatedAt,
	}
	for _, id := range e.PhotoIDs {
		v.PhotoIDs = append(v.PhotoIDs, id.String())
	}

	switch e.Status {
	case EstimateStatusDone:
		s := e.Summary()
		v.Result = &s
	case EstimateStatusFailed:
		reason := "estimation failed"
		if e.LastError != nil && *e.LastError != "" {
			reason = *e.LastError
		}
		v.Reason = &reason
	}
	return v
}

// EstimateView is the API representation of an estimate
type EstimateView struct {
	EstimateID string         `json:"estimateId"`
	Status     EstimateStatus `json:"status"`
	PhotoIDs   []string       `json:"photoIds"`
	Result     *Summary       `json:"result,omitempty"`
	Reason     *string        `json:"reason,omitempty"`
	CreatedAt  time.Time      `json:"createdAt"`
	UpdatedAt  time.Time      `json:"updatedAt"`
}

// SubmitEstimateRequest represents the request to start an estimation
type SubmitEstimateRequest struct {
	PhotoIDs []string `json:"photoIds" validate:"required,min=1,dive,uuid"`
}

// SubmitEstimateResponse represents the response for an accepted estimation
type SubmitEstimateResponse struct {
	EstimateID string         `json:"estimateId"`
	Status     EstimateStatus `json:"status"`
	CreatedAt  time.Time      `json:"createdAt"`
}

package model

import (
	"time"

	"github.com/google/uuid"
)

// Meal is a logged meal, optionally pre-filled from an estimate
type Meal struct {
	ID         uuid.UUID
	OwnerID    string
	EstimateID *uuid.UUID
	Title      string
	Kcal       float64
	ProteinG   *float64
	FatG       *float64
	CarbsG     *float64
	EatenAt    time.Time
	CreatedAt  time.Time
}

// CreateMealRequest represents the request to log a meal
type CreateMealRequest struct {
	Title      string     `json:"title" validate:"required,max=200"`
	EstimateID string     `json:"estimateId" validate:"omitempty,uuid"`
	Kcal       *float64   `json:"kcal" validate:"omitempty,min=0"`
	ProteinG   *float64   `json:"proteinG" validate:"omitempty,min=0"`
	FatG       *float64   `json:"fatG" validate:"omitempty,min=0"`
	CarbsG     *float64   `json:"carbsG" validate:"omitempty,min=0"`
	EatenAt    *time.Time `json:"eatenAt"`
}

// MealResponse represents a logged meal in API responses
type MealResponse struct {
	ID         string    `json:"id"`
	EstimateID *string   `json:"estimateId,omitempty"`
	Title      string    `json:"title"`
	Kcal       float64   `json:"kcal"`
	ProteinG   *float64  `json:"proteinG,omitempty"`
	FatG       *float64  `json:"fatG,omitempty"`
	CarbsG     *float64  `json:"carbsG,omitempty"`
	EatenAt    time.Time `json:"eatenAt"`
	CreatedAt  time.Time `json:"createdAt"`
}

// Response converts a meal to its API representation
func (m *Meal) Response() *MealResponse {
	resp := &MealResponse{
		ID:        m.ID.String(),
		Title:     m.Title,
		Kcal:      m.Kcal,
		ProteinG:  m.ProteinG,
		FatG:      m.FatG,
		CarbsG:    m.CarbsG,
		EatenAt:   m.EatenAt,
		CreatedAt: m.CreatedAt,
	}
	if m.EstimateID != nil {
		id := m.EstimateID.String()
		resp.EstimateID = &id
	}
	return resp
}

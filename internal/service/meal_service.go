package service

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/platewise/api/internal/model"
	"github.com/platewise/api/internal/store"
)

// MealLogger defines the meal operations the HTTP layer needs
type MealLogger interface {
	Create(ctx context.Context, ownerID string, req *model.CreateMealRequest) (*model.MealResponse, error)
	Get(ctx context.Context, ownerID, mealID string) (*model.MealResponse, error)
}

type MealService struct {
	meals     *store.MealRepo
	estimates *EstimateService
	now       func() time.Time
}

func NewMealService(meals *store.MealRepo, estimates *EstimateService) *MealService {
	return &MealService{
		meals:     meals,
		estimates: estimates,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// Create logs a meal. Values the caller leaves out are taken from the linked estimate.
func (s *MealService) Create(ctx context.Context, ownerID string, req *model.CreateMealRequest) (*model.MealResponse, error) {
	now := s.now()
	m := &model.Meal{
		ID:        uuid.New(),
		OwnerID:   ownerID,
		Title:     req.Title,
		ProteinG:  req.ProteinG,
		FatG:      req.FatG,
		CarbsG:    req.CarbsG,
		EatenAt:   now,
		CreatedAt: now,
	}
	if req.EatenAt != nil {
		m.EatenAt = req.EatenAt.UTC()
	}

	switch {
	case req.EstimateID != "":
		summary, err := s.estimates.GetForMeal(ctx, ownerID, req.EstimateID)
		if err != nil {
			return nil, err
		}
		id := uuid.MustParse(req.EstimateID)
		m.EstimateID = &id
		m.Kcal = summary.KcalMean
		if summary.Macros != nil {
			m.ProteinG = orDefault(m.ProteinG, summary.Macros.ProteinG)
			m.FatG = orDefault(m.FatG, summary.Macros.FatG)
			m.CarbsG = orDefault(m.CarbsG, summary.Macros.CarbsG)
		}
		if req.Kcal != nil {
			m.Kcal = *req.Kcal
		}
	case req.Kcal != nil:
		m.Kcal = *req.Kcal
	default:
		return nil, model.NewValidationError("kcal", "required when no estimate is linked")
	}

	if err := s.meals.Create(ctx, m); err != nil {
		return nil, storeError(err)
	}
	return m.Response(), nil
}

func (s *MealService) Get(ctx context.Context, ownerID, mealID string) (*model.MealResponse, error) {
	id, err := uuid.Parse(mealID)
	if err != nil {
		return nil, model.ErrNotFound
	}
	m, err := s.meals.Get(ctx, id)
	if err != nil {
		return nil, storeError(err)
	}
	if m.OwnerID != ownerID {
		return nil, model.ErrNotFound
	}
	return m.Response(), nil
}

func orDefault(v *float64, def float64) *float64 {
	if v != nil {
		return v
	}
	return &def
}

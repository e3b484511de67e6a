package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/platewise/api/internal/model"
)

type MealRepo struct{ db *DB }

func NewMealRepo(db *DB) *MealRepo { return &MealRepo{db: db} }

func (r *MealRepo) Create(ctx context.Context, m *model.Meal) error {
	var estimateID sql.NullString
	if m.EstimateID != nil {
		estimateID = sql.NullString{String: m.EstimateID.String(), Valid: true}
	}
	const q = `INSERT INTO meals (id, owner_id, estimate_id, title, kcal, protein_g, fat_g, carbs_g, eaten_at, created_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	_, err := r.db.exec(ctx, q,
		m.ID.String(), m.OwnerID, estimateID, m.Title, m.Kcal,
		nullFloat(m.ProteinG), nullFloat(m.FatG), nullFloat(m.CarbsG),
		m.EatenAt.UTC(), m.CreatedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("insert meal: %w", err)
	}
	return nil
}

func (r *MealRepo) Get(ctx context.Context, id uuid.UUID) (*model.Meal, error) {
	const q = `SELECT id, owner_id, estimate_id, title, kcal, protein_g, fat_g, carbs_g, eaten_at, created_at
FROM meals WHERE id = ?`
	var (
		m                   model.Meal
		mealID              string
		estimateID          sql.NullString
		protein, fat, carbs sql.NullFloat64
	)
	err := r.db.queryRow(ctx, q, id.String()).Scan(&mealID, &m.OwnerID, &estimateID, &m.Title, &m.Kcal,
		&protein, &fat, &carbs, &m.EatenAt, &m.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, model.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan meal: %w", err)
	}

	if m.ID, err = uuid.Parse(mealID); err != nil {
		return nil, fmt.Errorf("parse meal id: %w", err)
	}
	if estimateID.Valid {
		eid, err := uuid.Parse(estimateID.String)
		if err != nil {
			return nil, fmt.Errorf("parse estimate id: %w", err)
		}
		m.EstimateID = &eid
	}
	m.ProteinG = floatPtr(protein)
	m.FatG = floatPtr(fat)
	m.CarbsG = floatPtr(carbs)
	return &m, nil
}

func nullFloat(v *float64) sql.NullFloat64 {
	if v == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *v, Valid: true}
}

func floatPtr(v sql.NullFloat64) *float64 {
	if !v.Valid {
		return nil
	}
	f := v.Float64
	return &f
}

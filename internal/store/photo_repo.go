package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/platewise/api/internal/model"
)

type PhotoRepo struct{ db *DB }

func NewPhotoRepo(db *DB) *PhotoRepo { return &PhotoRepo{db: db} }

// Create inserts an uploaded photo
func (r *PhotoRepo) Create(ctx context.Context, p *model.Photo) error {
	var groupID sql.NullString
	if p.GroupID != nil {
		groupID = sql.NullString{String: *p.GroupID, Valid: true}
	}
	const q = `INSERT INTO photos (id, owner_id, storage_key, content_type, group_id, created_at)
VALUES (?, ?, ?, ?, ?, ?)`
	_, err := r.db.exec(ctx, q, p.ID.String(), p.OwnerID, p.StorageKey, p.ContentType, groupID, p.CreatedAt.UTC())
	if err != nil {
		return fmt.Errorf("insert photo: %w", err)
	}
	return nil
}

// Get returns one photo by id
func (r *PhotoRepo) Get(ctx context.Context, id uuid.UUID) (*model.Photo, error) {
	const q = `SELECT id, owner_id, storage_key, content_type, group_id, created_at FROM photos WHERE id = ?`
	return scanPhoto(r.db.queryRow(ctx, q, id.String()))
}

// GetMany returns the photos that exist among ids, keyed by id
func (r *PhotoRepo) GetMany(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]*model.Photo, error) {
	out := make(map[uuid.UUID]*model.Photo, len(ids))
	if len(ids) == 0 {
		return out, nil
	}

	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id.String()
	}
	q := `SELECT id, owner_id, storage_key, content_type, group_id, created_at FROM photos WHERE id IN (` + placeholders(len(ids)) + `)`
	rows, err := r.db.query(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("list photos: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		p, err := scanPhoto(rows)
		if err != nil {
			return nil, err
		}
		out[p.ID] = p
	}
	return out, rows.Err()
}

func scanPhoto(s scanner) (*model.Photo, error) {
	var (
		p       model.Photo
		id      string
		groupID sql.NullString
	)
	err := s.Scan(&id, &p.OwnerID, &p.StorageKey, &p.ContentType, &groupID, &p.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, model.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan photo: %w", err)
	}
	if p.ID, err = uuid.Parse(id); err != nil {
		return nil, fmt.Errorf("parse photo id: %w", err)
	}
	if groupID.Valid {
		p.GroupID = &groupID.String
	}
	return &p, nil
}

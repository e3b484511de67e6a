package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/platewise/api/internal/model"
)

const estimateColumns = `id, owner_id, photo_ids, status, kcal_mean, kcal_min, kcal_max, confidence,
macros, items, attempt_count, last_error, version, created_at, updated_at`

// EstimateRepo persists estimates. Every write after a claim is conditional
// on the claimed version, so a late duplicate worker cannot overwrite a
// newer outcome.
type EstimateRepo struct {
	db  *DB
	now func() time.Time
}

func NewEstimateRepo(db *DB) *EstimateRepo {
	return &EstimateRepo{db: db, now: func() time.Time { return time.Now().UTC() }}
}

// Create inserts a new pending estimate
func (r *EstimateRepo) Create(ctx context.Context, e *model.Estimate) error {
	photoIDs, err := json.Marshal(e.PhotoIDs)
	if err != nil {
		return fmt.Errorf("marshal photo ids: %w", err)
	}
	now := r.now()
	e.Status = model.EstimateStatusPending
	e.AttemptCount = 0
	e.Version = 0
	e.CreatedAt = now
	e.UpdatedAt = now

	const q = `INSERT INTO estimates (id, owner_id, photo_ids, status, items, attempt_count, version, created_at, updated_at)
VALUES (?, ?, ?, ?, '[]', 0, 0, ?, ?)`
	_, err = r.db.exec(ctx, q, e.ID.String(), e.OwnerID, string(photoIDs), string(e.Status), now, now)
	if err != nil {
		return fmt.Errorf("insert estimate: %w", err)
	}
	return nil
}

// Get returns an estimate by id
func (r *EstimateRepo) Get(ctx context.Context, id uuid.UUID) (*model.Estimate, error) {
	row := r.db.queryRow(ctx, `SELECT `+estimateColumns+` FROM estimates WHERE id = ?`, id.String())
	e, err := scanEstimate(row)
	if err != nil {
		return nil, err
	}
	return e, nil
}

// Claim moves a pending or processing estimate to processing, counting one
// attempt and bumping its version. A done or failed estimate is returned
// together with model.ErrAlreadyTerminal.
func (r *EstimateRepo) Claim(ctx context.Context, id uuid.UUID) (*model.Estimate, error) {
	const q = `UPDATE estimates
SET status = 'processing', attempt_count = attempt_count + 1, version = version + 1, updated_at = ?
WHERE id = ? AND status IN ('pending', 'processing')
RETURNING ` + estimateColumns
	e, err := scanEstimate(r.db.queryRow(ctx, q, r.now(), id.String()))
	if err == nil {
		return e, nil
	}
	if !errors.Is(err, model.ErrNotFound) {
		return nil, fmt.Errorf("claim estimate: %w", err)
	}

	current, err := r.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return current, model.ErrAlreadyTerminal
}

// Complete stores the summary and marks the estimate done
func (r *EstimateRepo) Complete(ctx context.Context, id uuid.UUID, version int64, s model.Summary) error {
	items := s.Items
	if items == nil {
		items = []model.ItemEstimate{}
	}
	itemsJSON, err := json.Marshal(items)
	if err != nil {
		return fmt.Errorf("marshal items: %w", err)
	}
	var macros sql.NullString
	if s.Macros != nil {
		b, err := json.Marshal(s.Macros)
		if err != nil {
			return fmt.Errorf("marshal macros: %w", err)
		}
		macros = sql.NullString{String: string(b), Valid: true}
	}

	const q = `UPDATE estimates
SET status = 'done', kcal_mean = ?, kcal_min = ?, kcal_max = ?, confidence = ?,
    macros = ?, items = ?, last_error = NULL, updated_at = ?
WHERE id = ? AND version = ? AND status = 'processing'`
	res, err := r.db.exec(ctx, q,
		s.KcalMean, s.KcalMin, s.KcalMax, s.Confidence,
		macros, string(itemsJSON), r.now(),
		id.String(), version,
	)
	return checkClaimed(res, err, "complete estimate")
}

// RecordRetry keeps the estimate processing and stores the failure reason
func (r *EstimateRepo) RecordRetry(ctx context.Context, id uuid.UUID, version int64, reason string) error {
	const q = `UPDATE estimates SET last_error = ?, updated_at = ?
WHERE id = ? AND version = ? AND status = 'processing'`
	res, err := r.db.exec(ctx, q, reason, r.now(), id.String(), version)
	return checkClaimed(res, err, "record retry")
}

// Fail marks the estimate failed with a reason
func (r *EstimateRepo) Fail(ctx context.Context, id uuid.UUID, version int64, reason string) error {
	const q = `UPDATE estimates SET status = 'failed', last_error = ?, updated_at = ?
WHERE id = ? AND version = ? AND status = 'processing'`
	res, err := r.db.exec(ctx, q, reason, r.now(), id.String(), version)
	return checkClaimed(res, err, "fail estimate")
}

// Requeue counts a reconciliation push against an estimate that is not yet
// terminal. The version is left alone so a live claim keeps its writes.
// It returns model.ErrStaleClaim if the estimate is done or failed.
func (r *EstimateRepo) Requeue(ctx context.Context, id uuid.UUID) (*model.Estimate, error) {
	const q = `UPDATE estimates SET attempt_count = attempt_count + 1, updated_at = ?
WHERE id = ? AND status IN ('pending', 'processing')
RETURNING ` + estimateColumns
	e, err := scanEstimate(r.db.queryRow(ctx, q, r.now(), id.String()))
	if errors.Is(err, model.ErrNotFound) {
		return nil, model.ErrStaleClaim
	}
	if err != nil {
		return nil, fmt.Errorf("requeue estimate: %w", err)
	}
	return e, nil
}

// Reopen moves a failed estimate back to processing with a fresh attempt
// budget. It returns model.ErrStaleClaim if the estimate is not failed.
func (r *EstimateRepo) Reopen(ctx context.Context, id uuid.UUID) (*model.Estimate, error) {
	const q = `UPDATE estimates
SET status = 'processing', attempt_count = 0, version = version + 1, updated_at = ?
WHERE id = ? AND status = 'failed'
RETURNING ` + estimateColumns
	e, err := scanEstimate(r.db.queryRow(ctx, q, r.now(), id.String()))
	if err == nil {
		return e, nil
	}
	if !errors.Is(err, model.ErrNotFound) {
		return nil, fmt.Errorf("reopen estimate: %w", err)
	}
	if _, err := r.Get(ctx, id); err != nil {
		return nil, err
	}
	return nil, model.ErrStaleClaim
}

// ListStale returns pending and processing estimates last touched before
// the cutoff, oldest first
func (r *EstimateRepo) ListStale(ctx context.Context, before time.Time, limit int) ([]*model.Estimate, error) {
	const q = `SELECT ` + estimateColumns + ` FROM estimates
WHERE status IN ('pending', 'processing') AND updated_at < ?
ORDER BY updated_at
LIMIT ?`
	rows, err := r.db.query(ctx, q, before.UTC(), limit)
	if err != nil {
		return nil, fmt.Errorf("list stale estimates: %w", err)
	}
	defer rows.Close()

	var out []*model.Estimate
	for rows.Next() {
		e, err := scanEstimate(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func checkClaimed(res sql.Result, err error, op string) error {
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if n == 0 {
		return model.ErrStaleClaim
	}
	return nil
}

func scanEstimate(s scanner) (*model.Estimate, error) {
	var (
		e         model.Estimate
		id        string
		status    string
		photoIDs  []byte
		macros    sql.NullString
		items     []byte
		lastError sql.NullString
	)
	err := s.Scan(&id, &e.OwnerID, &photoIDs, &status, &e.KcalMean, &e.KcalMin, &e.KcalMax, &e.Confidence,
		&macros, &items, &e.AttemptCount, &lastError, &e.Version, &e.CreatedAt, &e.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, model.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan estimate: %w", err)
	}

	if e.ID, err = uuid.Parse(id); err != nil {
		return nil, fmt.Errorf("parse estimate id: %w", err)
	}
	e.Status = model.EstimateStatus(status)
	if err := json.Unmarshal(photoIDs, &e.PhotoIDs); err != nil {
		return nil, fmt.Errorf("decode photo ids: %w", err)
	}
	if err := json.Unmarshal(items, &e.Items); err != nil {
		return nil, fmt.Errorf("decode items: %w", err)
	}
	if macros.Valid {
		var m model.Macronutrients
		if err := json.Unmarshal([]byte(macros.String), &m); err != nil {
			return nil, fmt.Errorf("decode macros: %w", err)
		}
		e.Macros = &m
	}
	if lastError.Valid {
		e.LastError = &lastError.String
	}
	return &e, nil
}

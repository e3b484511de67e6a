package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/platewise/api/internal/model"
	"github.com/platewise/api/internal/queue"
	"github.com/platewise/api/internal/store"
)

// JobQueue accepts estimation jobs for durable delivery
type JobQueue interface {
	Push(ctx context.Context, job model.Job) error
}

// EstimateGateway defines the operations the HTTP layer needs
type EstimateGateway interface {
	Submit(ctx context.Context, ownerID string, photoIDs []string) (*model.SubmitEstimateResponse, error)
	Get(ctx context.Context, ownerID, estimateID string) (*model.EstimateView, error)
}

// EstimateService creates estimates, queues their jobs and serves reads
type EstimateService struct {
	estimates *store.EstimateRepo
	photos    *store.PhotoRepo
	queue     JobQueue
	maxPhotos int
	logger    *zap.Logger
	now       func() time.Time
}

func NewEstimateService(estimates *store.EstimateRepo, photos *store.PhotoRepo, q JobQueue, maxPhotos int, logger *zap.Logger) *EstimateService {
	return &EstimateService{
		estimates: estimates,
		photos:    photos,
		queue:     q,
		maxPhotos: maxPhotos,
		logger:    logger,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// Submit validates the photo set, creates a pending estimate and pushes its job.
// If the push fails the estimate stays pending for the reconciliation sweep
// and the caller gets model.ErrQueueUnavailable.
func (s *EstimateService) Submit(ctx context.Context, ownerID string, photoIDs []string) (*model.SubmitEstimateResponse, error) {
	ids, err := s.validatePhotos(ctx, ownerID, photoIDs)
	if err != nil {
		return nil, err
	}

	e := &model.Estimate{
		ID:       uuid.New(),
		OwnerID:  ownerID,
		PhotoIDs: ids,
	}
	if err := s.estimates.Create(ctx, e); err != nil {
		return nil, storeError(err)
	}

	log := s.logger.With(zap.String("estimate_id", e.ID.String()), zap.String("owner_id", ownerID))

	err = s.queue.Push(ctx, model.NewJob(e, s.now()))
	if err != nil && !errors.Is(err, queue.ErrAlreadyQueued) {
		log.Warn("job push failed, leaving estimate for sweep", zap.Error(err))
		if !errors.Is(err, model.ErrQueueUnavailable) {
			err = fmt.Errorf("%w: %v", model.ErrQueueUnavailable, err)
		}
		return nil, err
	}

	log.Info("estimate submitted", zap.Int("photos", len(ids)))
	return &model.SubmitEstimateResponse{
		EstimateID: e.ID.String(),
		Status:     e.Status,
		CreatedAt:  e.CreatedAt,
	}, nil
}

func (s *EstimateService) validatePhotos(ctx context.Context, ownerID string, photoIDs []string) ([]uuid.UUID, error) {
	if len(photoIDs) == 0 {
		return nil, model.NewValidationError("photoIds", "at least one photo is required")
	}
	if len(photoIDs) > s.maxPhotos {
		return nil, model.NewValidationError("photoIds", fmt.Sprintf("at most %d photos are allowed", s.maxPhotos))
	}

	ids := make([]uuid.UUID, 0, len(photoIDs))
	seen := make(map[uuid.UUID]bool, len(photoIDs))
	for _, raw := range photoIDs {
		id, err := uuid.Parse(raw)
		if err != nil {
			return nil, model.NewValidationError("photoIds", fmt.Sprintf("%q is not a valid id", raw))
		}
		if seen[id] {
			return nil, model.NewValidationError("photoIds", fmt.Sprintf("photo %s is listed twice", id))
		}
		seen[id] = true
		ids = append(ids, id)
	}

	photos, err := s.photos.GetMany(ctx, ids)
	if err != nil {
		return nil, storeError(err)
	}
	for _, id := range ids {
		p, ok := photos[id]
		if !ok || p.OwnerID != ownerID {
			return nil, model.NewValidationError("photoIds", fmt.Sprintf("photo %s not found", id))
		}
	}
	return ids, nil
}

// Get returns the owner's view of an estimate. Estimates of other owners are not found.
func (s *EstimateService) Get(ctx context.Context, ownerID, estimateID string) (*model.EstimateView, error) {
	e, err := s.load(ctx, ownerID, estimateID)
	if err != nil {
		return nil, err
	}
	return e.View(), nil
}

// GetForMeal returns the nutrition of a done estimate for pre-filling a meal
func (s *EstimateService) GetForMeal(ctx context.Context, ownerID, estimateID string) (*model.Summary, error) {
	e, err := s.load(ctx, ownerID, estimateID)
	if err != nil {
		return nil, err
	}
	if e.Status != model.EstimateStatusDone {
		return nil, fmt.Errorf("%w: estimate is %s", model.ErrNotReady, e.Status)
	}
	summary := e.Summary()
	return &summary, nil
}

func (s *EstimateService) load(ctx context.Context, ownerID, estimateID string) (*model.Estimate, error) {
	id, err := uuid.Parse(estimateID)
	if err != nil {
		return nil, model.ErrNotFound
	}
	e, err := s.estimates.Get(ctx, id)
	if err != nil {
		return nil, storeError(err)
	}
	if e.OwnerID != ownerID {
		return nil, model.ErrNotFound
	}
	return e, nil
}

// storeError keeps not-found as is and reports anything else as the store being unavailable
func storeError(err error) error {
	if errors.Is(err, model.ErrNotFound) || errors.Is(err, model.ErrStoreUnavailable) {
		return err
	}
	return fmt.Errorf("%w: %v", model.ErrStoreUnavailable, err)
}

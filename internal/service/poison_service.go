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

// PoisonInspector reads and deletes parked jobs
type PoisonInspector interface {
	ListPoisoned(page, size int) ([]model.PoisonedJob, error)
	Get(estimateID string) (*model.PoisonedJob, error)
	Purge(estimateID string) error
}

// PoisonService lets an operator inspect, replay and purge jobs that exhausted their attempts
type PoisonService struct {
	estimates *store.EstimateRepo
	inspector PoisonInspector
	queue     JobQueue
	logger    *zap.Logger
	now       func() time.Time
}

func NewPoisonService(estimates *store.EstimateRepo, inspector PoisonInspector, q JobQueue, logger *zap.Logger) *PoisonService {
	return &PoisonService{
		estimates: estimates,
		inspector: inspector,
		queue:     q,
		logger:    logger,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

func (s *PoisonService) List(page, size int) ([]model.PoisonedJob, error) {
	if page < 1 {
		page = 1
	}
	if size < 1 {
		size = 30
	}
	return s.inspector.ListPoisoned(page, size)
}

func (s *PoisonService) Get(estimateID string) (*model.PoisonedJob, error) {
	return s.inspector.Get(estimateID)
}

// Replay gives a failed estimate a fresh attempt budget and queues it again.
// The estimate is returned to failed if the new job cannot be pushed.
func (s *PoisonService) Replay(ctx context.Context, estimateID string) error {
	id, err := uuid.Parse(estimateID)
	if err != nil {
		return model.ErrNotFound
	}

	e, err := s.estimates.Reopen(ctx, id)
	if errors.Is(err, model.ErrStaleClaim) {
		return model.NewValidationError("estimateId", "only failed estimates can be replayed")
	}
	if err != nil {
		return storeError(err)
	}

	if err := s.inspector.Purge(estimateID); err != nil && !errors.Is(err, model.ErrNotFound) {
		s.restore(ctx, e)
		return err
	}

	if err := s.queue.Push(ctx, model.NewJob(e, s.now())); err != nil && !errors.Is(err, queue.ErrAlreadyQueued) {
		s.restore(ctx, e)
		return fmt.Errorf("replay %s: %w", estimateID, err)
	}

	s.logger.Info("poisoned estimate replayed", zap.String("estimate_id", estimateID))
	return nil
}

func (s *PoisonService) restore(ctx context.Context, e *model.Estimate) {
	reason := "replay failed"
	if e.LastError != nil {
		reason = *e.LastError
	}
	if err := s.estimates.Fail(context.WithoutCancel(ctx), e.ID, e.Version, reason); err != nil {
		s.logger.Error("failed to restore estimate after replay error",
			zap.String("estimate_id", e.ID.String()), zap.Error(err))
	}
}

// Purge drops the parked job. The estimate itself stays failed.
func (s *PoisonService) Purge(estimateID string) error {
	return s.inspector.Purge(estimateID)
}

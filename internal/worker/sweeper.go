package worker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
	"go.uber.org/zap"

	"github.com/platewise/api/internal/model"
	"github.com/platewise/api/internal/notify"
	"github.com/platewise/api/internal/queue"
	"github.com/platewise/api/internal/store"
)

// JobQueue accepts estimation jobs for durable delivery
type JobQueue interface {
	Push(ctx context.Context, job model.Job) error
}

// TaskArchive finds and removes estimate tasks the queue has given up on
type TaskArchive interface {
	Get(estimateID string) (*model.PoisonedJob, error)
	Purge(estimateID string) error
}

// SweepOptions controls the reconciliation sweep
type SweepOptions struct {
	MaxAttempts int
	Grace       time.Duration
	Batch       int
}

// SweepStats counts what one sweep did
type SweepStats struct {
	Scanned  int
	Requeued int
	Skipped  int
	Revived  int
	Failed   int
}

// Sweeper re-pushes open estimates whose job is not live in the queue:
// either it never got there, or asynq archived it while the estimate was
// still pending or processing. Every re-push counts as an attempt, so such
// an estimate is eventually failed.
type Sweeper struct {
	estimates *store.EstimateRepo
	queue     JobQueue
	archive   TaskArchive
	notifier  notify.Notifier
	opts      SweepOptions
	logger    *zap.Logger
	now       func() time.Time
}

// NewSweeper returns a sweeper. archive may be nil, in which case archived
// tasks are not recovered.
func NewSweeper(estimates *store.EstimateRepo, q JobQueue, archive TaskArchive, notifier notify.Notifier, opts SweepOptions, logger *zap.Logger) *Sweeper {
	return &Sweeper{
		estimates: estimates,
		queue:     q,
		archive:   archive,
		notifier:  notifier,
		opts:      opts,
		logger:    logger.Named("sweeper"),
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// ProcessTask handles estimate:sweep tasks
func (s *Sweeper) ProcessTask(ctx context.Context, _ *asynq.Task) error {
	stats, err := s.Sweep(ctx)
	if stats.Scanned > 0 {
		s.logger.Info("sweep finished",
			zap.Int("scanned", stats.Scanned),
			zap.Int("requeued", stats.Requeued),
			zap.Int("skipped", stats.Skipped),
			zap.Int("revived", stats.Revived),
			zap.Int("failed", stats.Failed),
		)
	}
	if err != nil {
		// the next scheduled sweep picks up where this one stopped
		s.logger.Warn("sweep incomplete", zap.Error(err))
	}
	return nil
}

// Sweep handles one batch of stale open estimates
func (s *Sweeper) Sweep(ctx context.Context) (SweepStats, error) {
	var stats SweepStats
	now := s.now()

	stale, err := s.estimates.ListStale(ctx, now.Add(-s.opts.Grace), s.opts.Batch)
	if err != nil {
		return stats, err
	}
	stats.Scanned = len(stale)

	for _, e := range stale {
		log := s.logger.With(
			zap.String("estimate_id", e.ID.String()),
			zap.String("status", string(e.Status)),
			zap.Int("attempt", e.AttemptCount),
		)

		if e.AttemptCount >= s.opts.MaxAttempts {
			if s.exhaust(ctx, e, log) {
				stats.Failed++
			} else {
				stats.Skipped++
			}
			continue
		}

		revived, err := s.push(ctx, model.NewJob(e, now), log)
		if errors.Is(err, queue.ErrAlreadyQueued) {
			stats.Skipped++
			continue
		}
		if err != nil {
			log.Warn("re-push failed, stopping sweep", zap.Error(err))
			return stats, err
		}

		if _, err := s.estimates.Requeue(ctx, e.ID); err != nil && !errors.Is(err, model.ErrStaleClaim) {
			log.Error("failed to count re-push", zap.Error(err))
		}
		if revived {
			log.Warn("archived job replaced for open estimate")
			stats.Revived++
		} else {
			log.Info("estimate re-pushed")
			stats.Requeued++
		}
	}
	return stats, nil
}

// push enqueues the job. When the queue still holds a task for the estimate
// and that task is archived, the archived task is purged and the job pushed
// again; revived reports that case. queue.ErrAlreadyQueued means a live task
// exists and nothing was done.
func (s *Sweeper) push(ctx context.Context, job model.Job, log *zap.Logger) (revived bool, err error) {
	err = s.queue.Push(ctx, job)
	if !errors.Is(err, queue.ErrAlreadyQueued) || s.archive == nil {
		return false, err
	}

	id := job.EstimateID.String()
	archived, err := s.archive.Get(id)
	if errors.Is(err, model.ErrNotFound) {
		return false, queue.ErrAlreadyQueued
	}
	if err != nil {
		return false, fmt.Errorf("inspect task: %w", err)
	}
	log.Warn("job archived while estimate open", zap.String("last_error", archived.LastError))

	if err := s.archive.Purge(id); err != nil && !errors.Is(err, model.ErrNotFound) {
		return false, fmt.Errorf("purge archived task: %w", err)
	}
	if err := s.queue.Push(ctx, job); err != nil {
		return false, err
	}
	return true, nil
}

// exhaust fails an open estimate that used up its attempts
func (s *Sweeper) exhaust(ctx context.Context, e *model.Estimate, log *zap.Logger) bool {
	claimed, err := s.estimates.Claim(ctx, e.ID)
	if err != nil {
		if !errors.Is(err, model.ErrAlreadyTerminal) {
			log.Error("failed to claim exhausted estimate", zap.Error(err))
		}
		return false
	}

	reason := fmt.Sprintf("could not be queued after %d attempts", s.opts.MaxAttempts)
	if e.Status == model.EstimateStatusProcessing {
		reason = fmt.Sprintf("gave up after %d attempts", s.opts.MaxAttempts)
	}
	if err := s.estimates.Fail(ctx, claimed.ID, claimed.Version, reason); err != nil {
		log.Error("failed to fail exhausted estimate", zap.Error(err))
		return false
	}
	claimed.Status = model.EstimateStatusFailed
	claimed.LastError = &reason
	log.Warn("estimate exhausted", zap.String("reason", reason))

	if s.notifier != nil {
		_ = s.notifier.Notify(ctx, model.NotificationFor(claimed))
	}
	return true
}

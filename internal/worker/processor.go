package worker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/platewise/api/internal/aggregate"
	"github.com/platewise/api/internal/client"
	"github.com/platewise/api/internal/model"
	"github.com/platewise/api/internal/notify"
	"github.com/platewise/api/internal/queue"
	"github.com/platewise/api/internal/store"
)

// Action tells the queue what to do with a job after processing
type Action int

const (
	ActionAck Action = iota
	ActionRetry
	ActionPoison
)

func (a Action) String() string {
	switch a {
	case ActionAck:
		return "ack"
	case ActionRetry:
		return "retry"
	case ActionPoison:
		return "poison"
	default:
		return fmt.Sprintf("action(%d)", int(a))
	}
}

// Result is the outcome of processing one job
type Result struct {
	Action Action
	Delay  time.Duration
	Err    error
}

// Options holds the processing limits
type Options struct {
	MaxAttempts    int
	VisionTimeout  time.Duration
	PersistTimeout time.Duration
	Backoff        queue.Backoff
}

// Processor runs the estimate state machine for one job at a time. It is
// safe for concurrent use; concurrent deliveries of the same job are
// serialized by the version check on every write after the claim.
type Processor struct {
	estimates *store.EstimateRepo
	photos    *store.PhotoRepo
	storage   client.StorageClient
	vision    client.VisionClient
	notifier  notify.Notifier
	opts      Options
	logger    *zap.Logger
}

func NewProcessor(
	estimates *store.EstimateRepo,
	photos *store.PhotoRepo,
	storage client.StorageClient,
	vision client.VisionClient,
	notifier notify.Notifier,
	opts Options,
	logger *zap.Logger,
) *Processor {
	return &Processor{
		estimates: estimates,
		photos:    photos,
		storage:   storage,
		vision:    vision,
		notifier:  notifier,
		opts:      opts,
		logger:    logger.Named("processor"),
	}
}

// errPhotoMissing marks a job whose photos can never be loaded
var errPhotoMissing = errors.New("photo missing")

// Process claims the estimate, calls the vision service and records the outcome
func (p *Processor) Process(ctx context.Context, job model.Job) Result {
	log := p.logger.With(zap.String("estimate_id", job.EstimateID.String()), zap.Int("delivery", job.Attempt))

	e, err := p.estimates.Claim(ctx, job.EstimateID)
	switch {
	case errors.Is(err, model.ErrAlreadyTerminal):
		log.Info("estimate already terminal, dropping duplicate job", zap.String("status", string(e.Status)))
		return Result{Action: ActionAck}
	case errors.Is(err, model.ErrNotFound):
		log.Error("job references unknown estimate")
		return Result{Action: ActionPoison, Err: fmt.Errorf("%w: estimate %s", model.ErrNotFound, job.EstimateID)}
	case err != nil:
		delay := p.opts.Backoff.Delay(job.Attempt)
		log.Warn("claim failed, retrying", zap.Duration("delay", delay), zap.Error(err))
		return Result{Action: ActionRetry, Delay: delay, Err: err}
	}

	log = log.With(zap.Int("attempt", e.AttemptCount))
	if e.AttemptCount > p.opts.MaxAttempts {
		log.Warn("attempts exhausted before processing")
		return p.fail(ctx, e, fmt.Sprintf("gave up after %d attempts", p.opts.MaxAttempts), log)
	}

	images, err := p.loadImages(ctx, e)
	if errors.Is(err, errPhotoMissing) {
		log.Error("photo missing, failing estimate", zap.Error(err))
		return p.fail(ctx, e, err.Error(), log)
	}
	if err != nil {
		return p.failure(ctx, e, err, log)
	}

	vctx, cancel := context.WithTimeout(ctx, p.opts.VisionTimeout)
	items, err := p.vision.EstimateItems(vctx, images)
	cancel()
	if err != nil {
		return p.failure(ctx, e, err, log)
	}

	summary, clamps := aggregate.Aggregate(items)
	for _, c := range clamps {
		log.Warn("clamped vision value",
			zap.Int("item", c.Index),
			zap.String("label", c.Label),
			zap.String("field", c.Field),
			zap.Float64("value", c.Value),
			zap.Float64("clamped_to", c.ClampedTo),
		)
	}

	pctx, cancel := p.persistContext(ctx)
	defer cancel()
	if err := p.estimates.Complete(pctx, e.ID, e.Version, summary); err != nil {
		return p.persistFailed(e, err, log)
	}

	e.Status = model.EstimateStatusDone
	e.KcalMean, e.KcalMin, e.KcalMax = summary.KcalMean, summary.KcalMin, summary.KcalMax
	e.Confidence, e.Macros, e.Items = summary.Confidence, summary.Macros, summary.Items
	log.Info("estimate done", zap.Float64("kcal_mean", summary.KcalMean), zap.Int("items", len(summary.Items)))

	p.notify(ctx, e)
	return Result{Action: ActionAck}
}

// Abandon fails the estimate behind a job the queue will not deliver again.
// The estimate is claimed first so the write follows the usual version check.
func (p *Processor) Abandon(ctx context.Context, job model.Job, cause error) Result {
	log := p.logger.With(zap.String("estimate_id", job.EstimateID.String()), zap.Int("delivery", job.Attempt))

	cctx, cancel := p.persistContext(ctx)
	e, err := p.estimates.Claim(cctx, job.EstimateID)
	cancel()
	switch {
	case errors.Is(err, model.ErrAlreadyTerminal):
		return Result{Action: ActionAck}
	case errors.Is(err, model.ErrNotFound):
		return Result{Action: ActionPoison, Err: fmt.Errorf("%w: estimate %s", model.ErrNotFound, job.EstimateID)}
	case err != nil:
		// the sweep finds the archived task and the open estimate later
		log.Error("failed to claim abandoned estimate", zap.Error(err))
		return Result{Action: ActionPoison, Err: fmt.Errorf("%w: %v", model.ErrStoreUnavailable, err)}
	}

	reason := "gave up after repeated delivery failures"
	if cause != nil {
		reason = fmt.Sprintf("%s: %v", reason, cause)
	}
	log.Warn("queue delivery budget exhausted", zap.Int("attempt", e.AttemptCount), zap.NamedError("cause", cause))
	return p.fail(ctx, e, reason, log.With(zap.Int("attempt", e.AttemptCount)))
}

// failure handles a retryable failure of the current attempt
func (p *Processor) failure(ctx context.Context, e *model.Estimate, cause error, log *zap.Logger) Result {
	if e.AttemptCount >= p.opts.MaxAttempts {
		log.Warn("last attempt failed", zap.Error(cause))
		return p.fail(ctx, e, cause.Error(), log)
	}

	pctx, cancel := p.persistContext(ctx)
	defer cancel()
	if err := p.estimates.RecordRetry(pctx, e.ID, e.Version, cause.Error()); err != nil {
		if errors.Is(err, model.ErrStaleClaim) {
			log.Info("claim superseded, dropping job")
			return Result{Action: ActionAck}
		}
		log.Error("failed to record retry", zap.Error(err))
	}

	delay := p.opts.Backoff.Delay(e.AttemptCount - 1)
	log.Warn("attempt failed, retrying", zap.Duration("delay", delay), zap.Error(cause))
	return Result{Action: ActionRetry, Delay: delay, Err: cause}
}

// fail marks the estimate failed, notifies the owner and poisons the job
func (p *Processor) fail(ctx context.Context, e *model.Estimate, reason string, log *zap.Logger) Result {
	pctx, cancel := p.persistContext(ctx)
	defer cancel()
	if err := p.estimates.Fail(pctx, e.ID, e.Version, reason); err != nil {
		return p.persistFailed(e, err, log)
	}

	e.Status = model.EstimateStatusFailed
	e.LastError = &reason
	log.Warn("estimate failed", zap.String("reason", reason))

	p.notify(ctx, e)
	return Result{Action: ActionPoison, Err: fmt.Errorf("%w: %s", model.ErrPoisoned, reason)}
}

func (p *Processor) persistFailed(e *model.Estimate, err error, log *zap.Logger) Result {
	if errors.Is(err, model.ErrStaleClaim) {
		log.Info("claim superseded, dropping job")
		return Result{Action: ActionAck}
	}
	// the next delivery claims again and counts another attempt
	delay := p.opts.Backoff.Delay(e.AttemptCount - 1)
	log.Error("failed to persist outcome", zap.Duration("delay", delay), zap.Error(err))
	return Result{Action: ActionRetry, Delay: delay, Err: fmt.Errorf("%w: %v", model.ErrStoreUnavailable, err)}
}

func (p *Processor) loadImages(ctx context.Context, e *model.Estimate) ([]client.Image, error) {
	photos, err := p.photos.GetMany(ctx, e.PhotoIDs)
	if err != nil {
		return nil, fmt.Errorf("load photos: %w", err)
	}

	images := make([]client.Image, 0, len(e.PhotoIDs))
	for _, id := range e.PhotoIDs {
		photo, ok := photos[id]
		if !ok {
			return nil, fmt.Errorf("%w: %s", errPhotoMissing, id)
		}
		data, err := p.storage.Download(ctx, photo.StorageKey)
		if err != nil {
			return nil, fmt.Errorf("download photo %s: %w", id, err)
		}
		images = append(images, client.Image{PhotoID: id, ContentType: photo.ContentType, Data: data})
	}
	return images, nil
}

// persistContext bounds a store write without inheriting the job's cancellation
func (p *Processor) persistContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(ctx), p.opts.PersistTimeout)
}

func (p *Processor) notify(ctx context.Context, e *model.Estimate) {
	if p.notifier == nil {
		return
	}
	_ = p.notifier.Notify(ctx, model.NotificationFor(e))
}

package worker

import (
	"context"
	"fmt"

	"github.com/hibiken/asynq"

	"github.com/platewise/api/internal/queue"
)

// EstimateWorker adapts the Processor to asynq
type EstimateWorker struct {
	processor    *Processor
	lastDelivery func(ctx context.Context) bool
}

func NewEstimateWorker(processor *Processor) *EstimateWorker {
	return &EstimateWorker{processor: processor, lastDelivery: lastDelivery}
}

// ProcessTask handles estimate:process tasks
func (w *EstimateWorker) ProcessTask(ctx context.Context, t *asynq.Task) error {
	job, err := queue.ParseJob(t)
	if err != nil {
		return fmt.Errorf("%w: %w", err, asynq.SkipRetry)
	}
	if n, ok := asynq.GetRetryCount(ctx); ok {
		job.Attempt = n
	}

	res := w.processor.Process(ctx, job)
	if res.Action == ActionRetry && w.lastDelivery(ctx) {
		// asynq archives the task after this delivery, so the estimate
		// must not be left open behind it
		res = w.processor.Abandon(ctx, job, res.Err)
	}
	return resultError(res)
}

// lastDelivery reports whether asynq will archive the task instead of
// retrying it if this delivery fails
func lastDelivery(ctx context.Context) bool {
	retried, ok := asynq.GetRetryCount(ctx)
	if !ok {
		return false
	}
	maxRetry, ok := asynq.GetMaxRetry(ctx)
	return ok && retried >= maxRetry
}

func resultError(res Result) error {
	switch res.Action {
	case ActionRetry:
		return &queue.RetryError{Delay: res.Delay, Err: res.Err}
	case ActionPoison:
		return fmt.Errorf("%w: %w", res.Err, asynq.SkipRetry)
	default:
		return nil
	}
}

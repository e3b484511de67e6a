// Package queue carries estimate jobs over asynq.
//
// The estimate id is the asynq task id, so a job is queued at most once at a
// time. Returning nil from the handler acknowledges the task; a *RetryError
// schedules it again after its delay; an error wrapping asynq.SkipRetry
// archives it, and the archive is the poison queue.
package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"

	"github.com/platewise/api/internal/model"
)

const (
	TaskTypeEstimate = "estimate:process"
	TaskTypeSweep    = "estimate:sweep"
)

// ErrAlreadyQueued is returned by Push when a task for the estimate is
// still held by the broker
var ErrAlreadyQueued = errors.New("job already queued")

// Options controls how estimate tasks are enqueued
type Options struct {
	Queue             string
	MaxAttempts       int
	VisibilityTimeout time.Duration
}

// AsynqQueue pushes estimate jobs to redis through an asynq client
type AsynqQueue struct {
	client *asynq.Client
	opts   Options
}

func NewAsynqQueue(client *asynq.Client, opts Options) *AsynqQueue {
	return &AsynqQueue{client: client, opts: opts}
}

// Push durably enqueues the job, to become claimable at job.NotBefore
func (q *AsynqQueue) Push(ctx context.Context, job model.Job) error {
	task, err := NewEstimateTask(job)
	if err != nil {
		return err
	}

	opts := []asynq.Option{
		asynq.TaskID(job.EstimateID.String()),
		asynq.Queue(q.opts.Queue),
		// attempts are counted on the estimate; this only stops a runaway task
		asynq.MaxRetry(q.opts.MaxAttempts + 2),
		asynq.Timeout(q.opts.VisibilityTimeout),
	}
	if !job.NotBefore.IsZero() {
		opts = append(opts, asynq.ProcessAt(job.NotBefore))
	}

	_, err = q.client.EnqueueContext(ctx, task, opts...)
	if errors.Is(err, asynq.ErrTaskIDConflict) {
		return ErrAlreadyQueued
	}
	if err != nil {
		return fmt.Errorf("%w: %v", model.ErrQueueUnavailable, err)
	}
	return nil
}

// NewEstimateTask encodes a job as an asynq task
func NewEstimateTask(job model.Job) (*asynq.Task, error) {
	data, err := json.Marshal(job)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal job: %w", err)
	}
	return asynq.NewTask(TaskTypeEstimate, data), nil
}

// ParseJob decodes the job carried by an estimate task
func ParseJob(task *asynq.Task) (model.Job, error) {
	var job model.Job
	if err := json.Unmarshal(task.Payload(), &job); err != nil {
		return job, fmt.Errorf("failed to unmarshal job: %w", err)
	}
	if job.EstimateID == uuid.Nil {
		return job, fmt.Errorf("job has no estimate id")
	}
	return job, nil
}

// NewSweepTask returns the periodic reconciliation task
func NewSweepTask() *asynq.Task {
	return asynq.NewTask(TaskTypeSweep, nil)
}

package queue

import (
	"errors"
	"fmt"

	"github.com/hibiken/asynq"

	"github.com/platewise/api/internal/model"
)

// Inspector reads and manages the poison queue, which is the set of
// archived estimate tasks
type Inspector struct {
	inspector *asynq.Inspector
	queue     string
}

func NewInspector(inspector *asynq.Inspector, queue string) *Inspector {
	return &Inspector{inspector: inspector, queue: queue}
}

// ListPoisoned returns one page of poisoned jobs, page numbers start at 1
func (i *Inspector) ListPoisoned(page, size int) ([]model.PoisonedJob, error) {
	tasks, err := i.inspector.ListArchivedTasks(i.queue, asynq.Page(page), asynq.PageSize(size))
	if errors.Is(err, asynq.ErrQueueNotFound) {
		return []model.PoisonedJob{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", model.ErrQueueUnavailable, err)
	}

	out := make([]model.PoisonedJob, 0, len(tasks))
	for _, t := range tasks {
		if t.Type != TaskTypeEstimate {
			continue
		}
		out = append(out, poisonedFromInfo(t))
	}
	return out, nil
}

// Get returns the poisoned job for an estimate
func (i *Inspector) Get(estimateID string) (*model.PoisonedJob, error) {
	info, err := i.inspector.GetTaskInfo(i.queue, estimateID)
	if errors.Is(err, asynq.ErrTaskNotFound) || errors.Is(err, asynq.ErrQueueNotFound) {
		return nil, model.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", model.ErrQueueUnavailable, err)
	}
	if info.State != asynq.TaskStateArchived {
		return nil, model.ErrNotFound
	}
	job := poisonedFromInfo(info)
	return &job, nil
}

// Purge deletes the poisoned job for an estimate. A task that is not
// archived is left alone and reported as model.ErrNotFound.
func (i *Inspector) Purge(estimateID string) error {
	if _, err := i.Get(estimateID); err != nil {
		return err
	}
	err := i.inspector.DeleteTask(i.queue, estimateID)
	if errors.Is(err, asynq.ErrTaskNotFound) || errors.Is(err, asynq.ErrQueueNotFound) {
		return model.ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("%w: %v", model.ErrQueueUnavailable, err)
	}
	return nil
}

func poisonedFromInfo(t *asynq.TaskInfo) model.PoisonedJob {
	return model.PoisonedJob{
		EstimateID: t.ID,
		LastError:  t.LastErr,
		Retried:    t.Retried,
		LastFailed: t.LastFailedAt,
		Queue:      t.Queue,
	}
}

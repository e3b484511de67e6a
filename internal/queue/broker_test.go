package queue

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platewise/api/internal/model"
)

const testQueue = "estimates"

type broker struct {
	mr        *miniredis.Miniredis
	queue     *AsynqQueue
	poison    *Inspector
	inspector *asynq.Inspector
}

func newBroker(t *testing.T) *broker {
	t.Helper()
	mr := miniredis.RunT(t)
	opt := asynq.RedisClientOpt{Addr: mr.Addr()}

	client := asynq.NewClient(opt)
	t.Cleanup(func() { _ = client.Close() })
	inspector := asynq.NewInspector(opt)
	t.Cleanup(func() { _ = inspector.Close() })

	return &broker{
		mr:        mr,
		queue:     NewAsynqQueue(client, Options{Queue: testQueue, MaxAttempts: 3, VisibilityTimeout: time.Minute}),
		poison:    NewInspector(inspector, testQueue),
		inspector: inspector,
	}
}

func newJob() model.Job {
	return model.Job{EstimateID: uuid.New(), PhotoIDs: []uuid.UUID{uuid.New()}, EnqueuedAt: time.Now().UTC()}
}

func TestPushUsesEstimateAsTaskID(t *testing.T) {
	b := newBroker(t)
	ctx := context.Background()
	job := newJob()

	require.NoError(t, b.queue.Push(ctx, job))

	info, err := b.inspector.GetTaskInfo(testQueue, job.EstimateID.String())
	require.NoError(t, err)
	assert.Equal(t, TaskTypeEstimate, info.Type)
	assert.Equal(t, asynq.TaskStatePending, info.State)
	assert.Equal(t, 5, info.MaxRetry)
	assert.Equal(t, time.Minute, info.Timeout)

	got, err := ParseJob(asynq.NewTask(info.Type, info.Payload))
	require.NoError(t, err)
	assert.Equal(t, job.PhotoIDs, got.PhotoIDs)

	assert.ErrorIs(t, b.queue.Push(ctx, job), ErrAlreadyQueued)
	assert.ErrorIs(t, b.queue.Push(ctx, model.Job{EstimateID: job.EstimateID, NotBefore: time.Now().Add(time.Hour)}), ErrAlreadyQueued)
}

func TestPushSchedulesNotBefore(t *testing.T) {
	b := newBroker(t)
	job := newJob()
	job.NotBefore = time.Now().Add(10 * time.Minute)

	require.NoError(t, b.queue.Push(context.Background(), job))

	info, err := b.inspector.GetTaskInfo(testQueue, job.EstimateID.String())
	require.NoError(t, err)
	assert.Equal(t, asynq.TaskStateScheduled, info.State)
	assert.WithinDuration(t, job.NotBefore, info.NextProcessAt, time.Second)
}

func TestPushBrokerDown(t *testing.T) {
	b := newBroker(t)
	b.mr.Close()

	err := b.queue.Push(context.Background(), newJob())
	assert.ErrorIs(t, err, model.ErrQueueUnavailable)
	assert.NotErrorIs(t, err, ErrAlreadyQueued)
}

func TestInspectorUnknownQueue(t *testing.T) {
	b := newBroker(t)

	jobs, err := b.poison.ListPoisoned(1, 10)
	require.NoError(t, err)
	assert.NotNil(t, jobs)
	assert.Empty(t, jobs)

	_, err = b.poison.Get(uuid.NewString())
	assert.ErrorIs(t, err, model.ErrNotFound)
	assert.ErrorIs(t, b.poison.Purge(uuid.NewString()), model.ErrNotFound)
}

func TestInspectorArchivedLifecycle(t *testing.T) {
	b := newBroker(t)
	ctx := context.Background()
	job := newJob()
	id := job.EstimateID.String()
	require.NoError(t, b.queue.Push(ctx, job))

	// a live task is not poisoned and cannot be purged
	_, err := b.poison.Get(id)
	assert.ErrorIs(t, err, model.ErrNotFound)
	assert.ErrorIs(t, b.poison.Purge(id), model.ErrNotFound)

	require.NoError(t, b.inspector.ArchiveTask(testQueue, id))

	jobs, err := b.poison.ListPoisoned(1, 10)
	require.NoError(t, err)
	require.Len(t, jobs, 1)
	assert.Equal(t, id, jobs[0].EstimateID)
	assert.Equal(t, testQueue, jobs[0].Queue)

	got, err := b.poison.Get(id)
	require.NoError(t, err)
	assert.Equal(t, id, got.EstimateID)

	// the archived task still owns the id
	assert.ErrorIs(t, b.queue.Push(ctx, job), ErrAlreadyQueued)

	require.NoError(t, b.poison.Purge(id))
	_, err = b.poison.Get(id)
	assert.ErrorIs(t, err, model.ErrNotFound)

	require.NoError(t, b.queue.Push(ctx, job))
	info, err := b.inspector.GetTaskInfo(testQueue, id)
	require.NoError(t, err)
	assert.Equal(t, asynq.TaskStatePending, info.State)
}

func TestListPoisonedSkipsOtherTaskTypes(t *testing.T) {
	b := newBroker(t)
	ctx := context.Background()
	job := newJob()
	require.NoError(t, b.queue.Push(ctx, job))
	require.NoError(t, b.inspector.ArchiveTask(testQueue, job.EstimateID.String()))

	client := asynq.NewClient(asynq.RedisClientOpt{Addr: b.mr.Addr()})
	defer client.Close()
	sweep, err := client.EnqueueContext(ctx, NewSweepTask(), asynq.Queue(testQueue))
	require.NoError(t, err)
	require.NoError(t, b.inspector.ArchiveTask(testQueue, sweep.ID))

	jobs, err := b.poison.ListPoisoned(1, 10)
	require.NoError(t, err)
	require.Len(t, jobs, 1)
	assert.Equal(t, job.EstimateID.String(), jobs[0].EstimateID)
}

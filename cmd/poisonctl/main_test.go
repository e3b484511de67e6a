package main

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platewise/api/internal/model"
)

type fakeOps struct {
	jobs     map[string]model.PoisonedJob
	replayed []string
	page     int
	size     int
}

func (f *fakeOps) List(page, size int) ([]model.PoisonedJob, error) {
	f.page, f.size = page, size
	out := []model.PoisonedJob{}
	for _, j := range f.jobs {
		out = append(out, j)
	}
	return out, nil
}

func (f *fakeOps) Get(id string) (*model.PoisonedJob, error) {
	j, ok := f.jobs[id]
	if !ok {
		return nil, model.ErrNotFound
	}
	return &j, nil
}

func (f *fakeOps) Replay(_ context.Context, id string) error {
	if _, ok := f.jobs[id]; !ok {
		return model.ErrNotFound
	}
	f.replayed = append(f.replayed, id)
	delete(f.jobs, id)
	return nil
}

func (f *fakeOps) Purge(id string) error {
	if _, ok := f.jobs[id]; !ok {
		return model.ErrNotFound
	}
	delete(f.jobs, id)
	return nil
}

func execute(t *testing.T, ops *fakeOps, args ...string) (string, error) {
	t.Helper()
	closed := false
	cmd := newRootCmd(func(context.Context) (poisonOps, func(), error) {
		return ops, func() { closed = true }, nil
	})
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	if err == nil {
		assert.True(t, closed, "service was not closed")
	}
	return out.String(), err
}

func newOps() *fakeOps {
	return &fakeOps{jobs: map[string]model.PoisonedJob{
		"e1": {
			EstimateID: "e1",
			LastError:  "vision timeout",
			Retried:    4,
			LastFailed: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
			Queue:      "estimates",
		},
	}}
}

func TestListTable(t *testing.T) {
	ops := newOps()
	out, err := execute(t, ops, "list", "--page", "2", "--size", "10")
	require.NoError(t, err)
	assert.Contains(t, out, "ESTIMATE")
	assert.Contains(t, out, "e1")
	assert.Contains(t, out, "2026-03-01T12:00:00Z")
	assert.Contains(t, out, "vision timeout")
	assert.Equal(t, 2, ops.page)
	assert.Equal(t, 10, ops.size)
}

func TestListJSON(t *testing.T) {
	out, err := execute(t, newOps(), "list", "--json")
	require.NoError(t, err)

	var jobs []model.PoisonedJob
	require.NoError(t, json.Unmarshal([]byte(out), &jobs))
	require.Len(t, jobs, 1)
	assert.Equal(t, 4, jobs[0].Retried)
}

func TestReplayAndPurge(t *testing.T) {
	ops := newOps()
	ops.jobs["e2"] = model.PoisonedJob{EstimateID: "e2"}

	out, err := execute(t, ops, "replay", "e1")
	require.NoError(t, err)
	assert.Equal(t, "replayed e1\n", out)
	assert.Equal(t, []string{"e1"}, ops.replayed)

	out, err = execute(t, ops, "purge", "e2")
	require.NoError(t, err)
	assert.Equal(t, "purged e2\n", out)
	assert.Empty(t, ops.jobs)

	_, err = execute(t, ops, "replay", "e1")
	assert.ErrorIs(t, err, model.ErrNotFound)
}

func TestShowAndArgs(t *testing.T) {
	out, err := execute(t, newOps(), "show", "e1")
	require.NoError(t, err)
	assert.Contains(t, out, `"estimateId": "e1"`)

	_, err = execute(t, newOps(), "replay")
	assert.Error(t, err)

	_, err = execute(t, newOps(), "show", "missing")
	assert.ErrorIs(t, err, model.ErrNotFound)
}

package websocket

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/platewise/api/internal/model"
)

func startHub(t *testing.T) *Hub {
	t.Helper()
	h := NewHub(zaptest.NewLogger(t))
	ctx, cancel := context.WithCancel(context.Background())
	go h.Run(ctx)
	t.Cleanup(cancel)
	return h
}

func receive(t *testing.T, c *Client) model.WSStatusMessage {
	t.Helper()
	select {
	case data, ok := <-c.Send:
		require.True(t, ok, "send channel closed")
		var msg model.WSStatusMessage
		require.NoError(t, json.Unmarshal(data, &msg))
		return msg
	case <-time.After(2 * time.Second):
		t.Fatal("no message received")
	}
	return model.WSStatusMessage{}
}

func TestHubNotifyDone(t *testing.T) {
	h := startHub(t)
	id := uuid.New()
	c := &Client{EstimateID: id.String(), Send: make(chan []byte, 4)}
	h.Register(c)

	require.Eventually(t, func() bool { return h.Subscribers(id.String()) == 1 }, time.Second, 5*time.Millisecond)

	require.NoError(t, h.Notify(context.Background(), model.Notification{
		EstimateID: id, Status: model.EstimateStatusDone, KcalMean: 300, KcalMin: 180, KcalMax: 420,
	}))

	msg := receive(t, c)
	assert.Equal(t, model.WSMessageTypeStatus, msg.Type)
	assert.Equal(t, model.EstimateStatusDone, msg.Status)
	assert.Equal(t, 300.0, msg.KcalMean)
	assert.Nil(t, msg.Error)
}

func TestHubNotifyFailedOnlyReachesWatchers(t *testing.T) {
	h := startHub(t)
	id := uuid.New()
	watcher := &Client{EstimateID: id.String(), Send: make(chan []byte, 4)}
	other := &Client{EstimateID: uuid.NewString(), Send: make(chan []byte, 4)}
	h.Register(watcher)
	h.Register(other)

	require.NoError(t, h.Notify(context.Background(), model.Notification{
		EstimateID: id, Status: model.EstimateStatusFailed, Reason: "vision empty",
	}))

	msg := receive(t, watcher)
	require.NotNil(t, msg.Error)
	assert.Equal(t, "ESTIMATION_FAILED", msg.Error.Code)
	assert.Equal(t, "vision empty", msg.Error.Message)

	assert.Never(t, func() bool { return len(other.Send) > 0 }, 50*time.Millisecond, 5*time.Millisecond)
}

func TestHubUnregisterClosesSend(t *testing.T) {
	h := startHub(t)
	c := &Client{EstimateID: uuid.NewString(), Send: make(chan []byte, 1)}
	h.Register(c)
	h.Unregister(c)

	select {
	case _, ok := <-c.Send:
		assert.False(t, ok)
	case <-time.After(time.Second):
		t.Fatal("send channel not closed")
	}
	assert.Zero(t, h.Subscribers(c.EstimateID))
}

func TestHubDropsSlowConsumer(t *testing.T) {
	h := startHub(t)
	id := uuid.New()
	c := &Client{EstimateID: id.String(), Send: make(chan []byte)}
	h.Register(c)

	require.NoError(t, h.Notify(context.Background(), model.Notification{EstimateID: id, Status: model.EstimateStatusDone}))
	require.Eventually(t, func() bool { return h.Subscribers(id.String()) == 0 }, time.Second, 5*time.Millisecond)
}

func TestHubRegisterAfterStop(t *testing.T) {
	h := NewHub(zaptest.NewLogger(t))
	ctx, cancel := context.WithCancel(context.Background())
	stopped := make(chan struct{})
	go func() {
		h.Run(ctx)
		close(stopped)
	}()
	cancel()
	<-stopped

	done := make(chan struct{})
	go func() {
		h.Register(&Client{EstimateID: "x", Send: make(chan []byte)})
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("register blocked after hub stopped")
	}
}

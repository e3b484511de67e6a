package logger

import (
	"testing"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func TestNew(t *testing.T) {
	l, err := New("warn", "production")
	require.NoError(t, err)
	assert.False(t, l.Core().Enabled(zapcore.InfoLevel))
	assert.True(t, l.Core().Enabled(zapcore.WarnLevel))

	l, err = New("DEBUG", "development")
	require.NoError(t, err)
	assert.True(t, l.Core().Enabled(zapcore.DebugLevel))

	_, err = New("loud", "production")
	assert.Error(t, err)
}

func TestAsynqLevel(t *testing.T) {
	assert.Equal(t, asynq.DebugLevel, AsynqLevel("debug"))
	assert.Equal(t, asynq.WarnLevel, AsynqLevel("WARN"))
	assert.Equal(t, asynq.ErrorLevel, AsynqLevel("error"))
	assert.Equal(t, asynq.InfoLevel, AsynqLevel("info"))
	assert.Equal(t, asynq.InfoLevel, AsynqLevel(""))
}

func TestAsynqAdapter(t *testing.T) {
	var _ asynq.Logger = Asynq(zap.NewNop())
}

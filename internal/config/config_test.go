package config

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "trivia-arena", cfg.Name)
	assert.Equal(t, "0.0.0.0:5555", cfg.ListenAddr)
	assert.Equal(t, "0.0.0.0:8080", cfg.HTTPAddr)
	assert.Equal(t, 20*time.Second, cfg.GracefulShutdownTimeout)
	assert.True(t, cfg.Game.ResetRewindsBank)
	assert.Equal(t, 3*time.Second, cfg.Game.Pause())
	assert.Zero(t, cfg.Game.QuestionWait())
	assert.False(t, cfg.Redis.Enabled())
}

func TestLoadAcceleratedProfile(t *testing.T) {
	t.Setenv("ACCELERATED", "true")
	t.Setenv("ACCELERATED_QUESTION_WAIT", "250ms")
	t.Setenv("REDIS_ADDR", "127.0.0.1:6379")

	cfg, err := Load(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 250*time.Millisecond, cfg.Game.QuestionWait())
	assert.Equal(t, 300*time.Millisecond, cfg.Game.Pause())
	assert.True(t, cfg.Redis.Enabled())
}

func TestLoadRejectsBadValues(t *testing.T) {
	t.Setenv("RESULT_PAUSE", "soon")
	_, err := Load(context.Background())
	assert.Error(t, err)
}

func TestLoadRejectsEmptySendQueue(t *testing.T) {
	t.Setenv("SEND_QUEUE_SIZE", "0")
	_, err := Load(context.Background())
	assert.ErrorContains(t, err, "SEND_QUEUE_SIZE")
}

package app

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"syncdeck/pkg/config"
	"syncdeck/pkg/queue"
	"syncdeck/pkg/session"
)

func TestNewWithDefaults(t *testing.T) {
	cfg, err := config.LoadDefaults()
	require.NoError(t, err)

	a, err := New(cfg, session.Views{})
	require.NoError(t, err)
	defer a.Close()

	assert.Same(t, a.Backend, a.Jobs, "http transport serves jobs from the backend")
	assert.NotNil(t, a.Session)
	assert.NoError(t, a.Ping(context.Background()))
}

func TestNewQueueTransport(t *testing.T) {
	cfg, err := config.LoadDefaults()
	require.NoError(t, err)
	cfg.Transport.Type = "queue"
	cfg.Store.Type = "redis"
	cfg.Redis = &config.RedisConfig{Addr: "localhost:6379"}
	cfg.Queue = &config.QueueConfig{Name: "sync", TimeoutMinutes: 60}

	a, err := New(cfg, session.Views{})
	require.NoError(t, err)
	defer a.Close()

	_, ok := a.Jobs.(*queue.Transport)
	assert.True(t, ok)
}

func TestNewRejectsUnknownTransport(t *testing.T) {
	cfg, err := config.LoadDefaults()
	require.NoError(t, err)
	cfg.Transport.Type = "smtp"

	_, err = New(cfg, session.Views{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported transport type")
}

package nats

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConnectionConfig(t *testing.T) {
	cfg := DefaultConnectionConfig("nats://localhost:4222")
	assert.Equal(t, "daedalus", cfg.Name)
	assert.Equal(t, 10, cfg.MaxReconnects)
	assert.Equal(t, 2*time.Second, cfg.ReconnectWait)

	assert.Len(t, cfg.Options(nil), 7)
	cfg.Token = "secret"
	assert.Len(t, cfg.Options(nil), 8)
}

func TestConnect_InvalidConfig(t *testing.T) {
	_, err := Connect(t.Context(), nil, nil)
	assert.ErrorContains(t, err, "config cannot be nil")

	_, err = Connect(t.Context(), DefaultConnectionConfig(""), nil)
	assert.ErrorContains(t, err, "URL cannot be empty")
}

func TestConnect_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(t.Context())
	cancel()

	cfg := DefaultConnectionConfig("nats://127.0.0.1:1")
	cfg.Timeout = 100 * time.Millisecond
	_, err := Connect(ctx, cfg, nil)
	require.Error(t, err)
}

func TestClose_Nil(t *testing.T) {
	assert.NoError(t, Close(nil))
	assert.False(t, IsConnected(nil))
}

package concurrency

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLimiter_AcquireRelease(t *testing.T) {
	l := NewLimiter(2)
	assert.Equal(t, 2, l.Capacity())

	require.NoError(t, l.Acquire(t.Context()))
	require.NoError(t, l.Acquire(t.Context()))
	assert.Equal(t, int64(2), l.CurrentActive())

	ctx, cancel := context.WithTimeout(t.Context(), 20*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, l.Acquire(ctx), context.DeadlineExceeded)

	l.Release()
	l.Release()
	l.Release()
	assert.Equal(t, int64(0), l.CurrentActive())

	m := l.GetMetrics()
	assert.Equal(t, int64(2), m.TotalAcquired)
	assert.Equal(t, int64(2), m.TotalReleased)
	assert.Equal(t, int64(2), m.PeakConcurrent)
}

func TestNewLimiter_MinimumCapacity(t *testing.T) {
	assert.Equal(t, 1, NewLimiter(0).Capacity())
	assert.Equal(t, time.Duration(0), NewLimiter(-3).GetAverageWaitTime())
}

func TestDefaultPartitions(t *testing.T) {
	t.Setenv("KUBERNETES_SERVICE_HOST", "")
	assert.GreaterOrEqual(t, DefaultPartitions(), 1)

	t.Setenv("KUBERNETES_SERVICE_HOST", "10.0.0.1")
	assert.True(t, IsKubernetes())
	assert.LessOrEqual(t, DefaultPartitions(), 4)
}

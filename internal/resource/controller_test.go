package resource

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestController_Memory(t *testing.T) {
	c := NewController(Config{MemoryLimitBytes: 100})

	require.NoError(t, c.AcquireMemory(50))
	assert.Equal(t, int64(50), c.MemoryUsage())

	require.NoError(t, c.AcquireMemory(40))
	assert.Equal(t, int64(90), c.MemoryUsage())

	err := c.AcquireMemory(20)
	assert.ErrorIs(t, err, ErrMemoryLimitExceeded)
	assert.Equal(t, int64(90), c.MemoryUsage())

	c.ReleaseMemory(50)
	assert.Equal(t, int64(40), c.MemoryUsage())

	assert.True(t, c.TryAcquireMemory(20))
	assert.Equal(t, int64(60), c.MemoryUsage())
}

func TestController_UnlimitedMemory(t *testing.T) {
	c := NewController(Config{})

	require.NoError(t, c.AcquireMemory(1000))
	assert.Equal(t, int64(1000), c.MemoryUsage())

	c.ReleaseMemory(500)
	assert.Equal(t, int64(500), c.MemoryUsage())
}

func TestController_Workers(t *testing.T) {
	c := NewController(Config{MaxWorkers: 2})
	assert.Equal(t, 2, c.Workers())

	require.NoError(t, c.AcquireWorker(t.Context()))
	require.NoError(t, c.AcquireWorker(t.Context()))
	assert.False(t, c.TryAcquireWorker())

	ctx, cancel := context.WithTimeout(t.Context(), 10*time.Millisecond)
	defer cancel()
	assert.Error(t, c.AcquireWorker(ctx))

	c.ReleaseWorker()
	assert.True(t, c.TryAcquireWorker())
}

func TestController_DefaultWorkers(t *testing.T) {
	c := NewController(Config{})
	assert.Equal(t, 1, c.Workers())
	assert.Equal(t, 1, c.Config().Burst)
}

func TestController_RequestRate(t *testing.T) {
	c := NewController(Config{RequestsPerSec: 1, Burst: 1})

	require.NoError(t, c.WaitRequest(t.Context()))

	// The bucket is empty; a short deadline cannot be met.
	ctx, cancel := context.WithTimeout(t.Context(), 10*time.Millisecond)
	defer cancel()
	assert.Error(t, c.WaitRequest(ctx))
}

func TestController_Nil(t *testing.T) {
	var c *Controller
	require.NoError(t, c.AcquireMemory(10))
	c.ReleaseMemory(10)
	assert.Equal(t, int64(0), c.MemoryUsage())
	require.NoError(t, c.AcquireWorker(t.Context()))
	assert.True(t, c.TryAcquireWorker())
	c.ReleaseWorker()
	assert.Equal(t, 1, c.Workers())
	require.NoError(t, c.WaitRequest(t.Context()))
	assert.Equal(t, Config{}, c.Config())
}

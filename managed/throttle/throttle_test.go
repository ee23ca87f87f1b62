package throttle

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestController_Memory(t *testing.T) {
	c := NewController("bg", Config{MemoryLimitBytes: 100})

	err := c.AcquireMemory(context.Background(), 50)
	require.NoError(t, err)
	assert.Equal(t, int64(50), c.MemoryUsage())

	err = c.AcquireMemory(context.Background(), 40)
	require.NoError(t, err)
	assert.Equal(t, int64(90), c.MemoryUsage())

	// Over the limit: TryAcquire fails, Acquire times out.
	ok := c.TryAcquireMemory(20)
	assert.False(t, ok)
	assert.Equal(t, int64(90), c.MemoryUsage())

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	err = c.AcquireMemory(ctx, 20)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	c.ReleaseMemory(50)
	assert.Equal(t, int64(40), c.MemoryUsage())

	err = c.AcquireMemory(context.Background(), 20)
	require.NoError(t, err)
	assert.Equal(t, int64(60), c.MemoryUsage())
}

func TestController_UnlimitedMemory(t *testing.T) {
	c := NewController("bg", Config{MemoryLimitBytes: 0})

	err := c.AcquireMemory(context.Background(), 1000)
	require.NoError(t, err)
	assert.Equal(t, int64(1000), c.MemoryUsage())

	c.ReleaseMemory(500)
	assert.Equal(t, int64(500), c.MemoryUsage())
}

func TestController_Concurrency(t *testing.T) {
	c := NewController("bg", Config{MaxBackgroundWorkers: 2})

	require.NoError(t, c.AcquireBackground(context.Background()))
	require.NoError(t, c.AcquireBackground(context.Background()))

	assert.False(t, c.TryAcquireBackground())

	c.ReleaseBackground()

	assert.True(t, c.TryAcquireBackground())
}

func TestController_IOLimit(t *testing.T) {
	c := NewController("bg", Config{IOLimitBytesPerSec: 100})
	assert.Equal(t, float64(100), c.IORate())

	// Within burst: returns immediately.
	require.NoError(t, c.AcquireIO(context.Background(), 50))

	// Unlimited controller never blocks.
	u := NewController("bg2", Config{})
	assert.Equal(t, float64(0), u.IORate())
	require.NoError(t, u.AcquireIO(context.Background(), 1<<20))
}

func TestController_SetLimit(t *testing.T) {
	ctx := context.Background()
	c := NewController("bg", Config{IOLimitBytesPerSec: 100})

	require.NoError(t, c.SetLimit(ctx, TagMaxPerSec, 200))
	assert.Equal(t, float64(200), c.IORate())

	assert.Error(t, c.SetLimit(ctx, TagMaxPerSec, 0))
	assert.Error(t, c.SetLimit(ctx, "bogus", 10))
}

func TestController_MonitoredValues(t *testing.T) {
	ctx := context.Background()
	c := NewController("bg", Config{
		MemoryLimitBytes:     1000,
		MaxBackgroundWorkers: 4,
		IOLimitBytesPerSec:   1 << 20,
	})

	require.NoError(t, c.AcquireMemory(ctx, 200))
	require.NoError(t, c.AcquireIO(ctx, 512))
	time.Sleep(10 * time.Millisecond)

	values, err := c.GetMonitoredValues(ctx, []string{
		TagMemoryUsedBytes,
		TagWorkersMax,
		TagObservedPerSec,
		TagMaxPerSec,
	})
	require.NoError(t, err)

	assert.Equal(t, float64(200), values[TagMemoryUsedBytes])
	assert.Equal(t, float64(4), values[TagWorkersMax])
	assert.Equal(t, float64(1<<20), values[TagMaxPerSec])
	assert.Greater(t, values[TagObservedPerSec], float64(0))

	// A second observation right after sees no new IO.
	values, err = c.GetMonitoredValues(ctx, []string{TagObservedPerSec})
	require.NoError(t, err)
	assert.InDelta(t, 0, values[TagObservedPerSec], 1)
}

func TestController_ResourceContract(t *testing.T) {
	c := NewController("bg", Config{})
	assert.Equal(t, "bg", c.Name())
	assert.Equal(t, []string{"rate"}, c.SupportedPoolTypes())

	custom := NewController("bg2", Config{PoolTypes: []string{"io"}})
	assert.Equal(t, []string{"io"}, custom.SupportedPoolTypes())
}

// Package throttle provides a controller for background work (memory
// reservations, worker slots, IO throughput) that participates in resource
// pools of type "rate".
//
// The IO budget is the governable dimension: the controller reports its
// observed throughput and accepts a new bytes-per-second cap, using the tag
// contract of the plugins/ratecap governor.
package throttle

import (
	"context"
	"fmt"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"

	"github.com/hupe1980/resmgr"
)

// Tags reported and accepted by the controller.
const (
	// TagMemoryUsedBytes is the monitored managed-memory usage.
	TagMemoryUsedBytes = "memory.usedBytes"
	// TagWorkersMax is the monitored number of background worker slots.
	TagWorkersMax = "workers.max"
	// TagObservedPerSec is the monitored IO throughput since the previous
	// observation, in bytes per second.
	TagObservedPerSec = "rate.observedPerSec"
	// TagMaxPerSec is the controlled IO cap in bytes per second.
	TagMaxPerSec = "rate.maxPerSec"
)

// Config holds resource limits.
type Config struct {
	// MemoryLimitBytes is the hard limit for managed memory.
	// If 0, no hard limit is enforced (only tracking).
	MemoryLimitBytes int64

	// MaxBackgroundWorkers is the maximum number of concurrent background jobs.
	// If 0, defaults to 1.
	MaxBackgroundWorkers int64

	// IOLimitBytesPerSec is the maximum IO throughput for background tasks.
	// If 0, unlimited until a pool governor pushes a cap.
	IOLimitBytesPerSec int64

	// PoolTypes are the pool types the controller can join.
	// If empty, defaults to ["rate"].
	PoolTypes []string
}

// Controller manages global resources (memory, concurrency, IO) and exposes
// them as a governable resource.
type Controller struct {
	name      string
	poolTypes []string

	// Memory
	memSem  *semaphore.Weighted // nil if unlimited
	memUsed atomic.Int64

	// Concurrency
	bgSem      *semaphore.Weighted
	maxWorkers int64

	// IO
	ioLimiter *rate.Limiter
	ioTotal   atomic.Int64

	mu        sync.Mutex // guards the observation window below
	lastTotal int64
	lastAt    time.Time
}

// Compile time check to ensure Controller satisfies the interface.
var _ resmgr.ManagedResource = (*Controller)(nil)

// NewController creates a new throttle controller.
func NewController(name string, cfg Config) *Controller {
	if cfg.MaxBackgroundWorkers <= 0 {
		cfg.MaxBackgroundWorkers = 1
	}
	if len(cfg.PoolTypes) == 0 {
		cfg.PoolTypes = []string{"rate"}
	}

	ioLimit := rate.Inf
	burst := math.MaxInt // ignored while the limit is rate.Inf
	if cfg.IOLimitBytesPerSec > 0 {
		ioLimit = rate.Limit(cfg.IOLimitBytesPerSec)
		burst = int(cfg.IOLimitBytesPerSec)
	}

	c := &Controller{
		name:       name,
		poolTypes:  cfg.PoolTypes,
		bgSem:      semaphore.NewWeighted(cfg.MaxBackgroundWorkers),
		maxWorkers: cfg.MaxBackgroundWorkers,
		ioLimiter:  rate.NewLimiter(ioLimit, burst),
		lastAt:     time.Now(),
	}

	if cfg.MemoryLimitBytes > 0 {
		c.memSem = semaphore.NewWeighted(cfg.MemoryLimitBytes)
	}

	return c
}

// AcquireMemory attempts to reserve memory.
// If a hard limit is configured and usage would exceed it,
// this blocks until memory is available or ctx is canceled.
func (c *Controller) AcquireMemory(ctx context.Context, bytes int64) error {
	if c == nil || bytes <= 0 {
		return nil
	}

	if c.memSem != nil {
		if err := c.memSem.Acquire(ctx, bytes); err != nil {
			return err
		}
	}

	c.memUsed.Add(bytes)
	return nil
}

// TryAcquireMemory attempts to reserve memory without blocking.
// Returns true if acquired, false if the limit would be exceeded.
func (c *Controller) TryAcquireMemory(bytes int64) bool {
	if c == nil || bytes <= 0 {
		return true
	}

	if c.memSem != nil {
		if !c.memSem.TryAcquire(bytes) {
			return false
		}
	}

	c.memUsed.Add(bytes)
	return true
}

// ReleaseMemory releases reserved memory.
func (c *Controller) ReleaseMemory(bytes int64) {
	if c == nil || bytes <= 0 {
		return
	}

	if c.memSem != nil {
		c.memSem.Release(bytes)
	}
	c.memUsed.Add(-bytes)
}

// MemoryUsage returns the current memory usage in bytes.
func (c *Controller) MemoryUsage() int64 {
	return c.memUsed.Load()
}

// AcquireBackground attempts to reserve a background worker slot.
// Blocks if all slots are busy.
func (c *Controller) AcquireBackground(ctx context.Context) error {
	return c.bgSem.Acquire(ctx, 1)
}

// TryAcquireBackground attempts to reserve a background worker slot without
// blocking.
func (c *Controller) TryAcquireBackground() bool {
	return c.bgSem.TryAcquire(1)
}

// ReleaseBackground releases a background worker slot.
func (c *Controller) ReleaseBackground() {
	c.bgSem.Release(1)
}

// AcquireIO waits until the IO limit allows the specified number of bytes.
func (c *Controller) AcquireIO(ctx context.Context, bytes int) error {
	if err := c.ioLimiter.WaitN(ctx, bytes); err != nil {
		return err
	}
	c.ioTotal.Add(int64(bytes))
	return nil
}

// IORate returns the current IO cap in bytes per second, or 0 if unlimited.
func (c *Controller) IORate() float64 {
	limit := c.ioLimiter.Limit()
	if limit == rate.Inf {
		return 0
	}
	return float64(limit)
}

// Name implements resmgr.ManagedResource.
func (c *Controller) Name() string { return c.name }

// SupportedPoolTypes implements resmgr.ManagedResource.
func (c *Controller) SupportedPoolTypes() []string { return c.poolTypes }

// GetMonitoredValues implements resmgr.ManagedResource. The observed IO rate
// is the throughput since the previous observation.
func (c *Controller) GetMonitoredValues(ctx context.Context, tags []string) (map[string]float64, error) {
	out := make(map[string]float64)
	for _, tag := range tags {
		switch tag {
		case TagMemoryUsedBytes:
			out[tag] = float64(c.memUsed.Load())
		case TagWorkersMax:
			out[tag] = float64(c.maxWorkers)
		case TagObservedPerSec:
			out[tag] = c.observedRate()
		case TagMaxPerSec:
			if r := c.IORate(); r > 0 {
				out[tag] = r
			}
		}
	}
	return out, nil
}

// SetLimit implements resmgr.ManagedResource.
func (c *Controller) SetLimit(ctx context.Context, tag string, value float64) error {
	if tag != TagMaxPerSec {
		return fmt.Errorf("unsupported limit tag %q", tag)
	}
	if value <= 0 {
		return fmt.Errorf("IO cap must be positive, got %v", value)
	}

	c.ioLimiter.SetLimit(rate.Limit(value))
	c.ioLimiter.SetBurst(int(value))

	return nil
}

func (c *Controller) observedRate() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now()
	total := c.ioTotal.Load()
	elapsed := now.Sub(c.lastAt).Seconds()
	if elapsed <= 0 {
		return 0
	}

	observed := float64(total-c.lastTotal) / elapsed
	c.lastTotal = total
	c.lastAt = now

	return observed
}

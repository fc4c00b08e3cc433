package resource

import (
	"context"
	"errors"
	"sync/atomic"

	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"
)

// ErrMemoryLimitExceeded is returned when memory limit would be exceeded.
var ErrMemoryLimitExceeded = errors.New("memory limit exceeded")

// Config holds resource limits.
type Config struct {
	// MemoryLimitBytes is the hard limit for cached data.
	// If 0, no hard limit is enforced (only tracking).
	MemoryLimitBytes int64

	// MaxWorkers is the maximum number of concurrent scoring jobs.
	// If 0, defaults to 1.
	MaxWorkers int64

	// RequestsPerSec limits calls to remote scoring services.
	// If 0, unlimited.
	RequestsPerSec float64

	// Burst is the token bucket size for RequestsPerSec. Defaults to 1.
	Burst int
}

// Controller manages memory, concurrency and request rate.
type Controller struct {
	cfg Config

	memSem  *semaphore.Weighted // nil if unlimited
	memUsed atomic.Int64

	workerSem *semaphore.Weighted

	limiter *rate.Limiter // nil if unlimited
}

// NewController creates a new resource controller.
func NewController(cfg Config) *Controller {
	if cfg.MaxWorkers <= 0 {
		cfg.MaxWorkers = 1
	}
	if cfg.Burst <= 0 {
		cfg.Burst = 1
	}

	c := &Controller{
		cfg:       cfg,
		workerSem: semaphore.NewWeighted(cfg.MaxWorkers),
	}

	if cfg.MemoryLimitBytes > 0 {
		c.memSem = semaphore.NewWeighted(cfg.MemoryLimitBytes)
	}

	if cfg.RequestsPerSec > 0 {
		c.limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSec), cfg.Burst)
	}

	return c
}

// Config returns the effective configuration.
func (c *Controller) Config() Config {
	if c == nil {
		return Config{}
	}
	return c.cfg
}

// AcquireMemory reserves bytes without blocking.
// Returns ErrMemoryLimitExceeded if the limit would be exceeded.
func (c *Controller) AcquireMemory(bytes int64) error {
	if c == nil || bytes <= 0 {
		return nil
	}
	if c.memSem != nil && !c.memSem.TryAcquire(bytes) {
		return ErrMemoryLimitExceeded
	}
	c.memUsed.Add(bytes)
	return nil
}

// TryAcquireMemory is AcquireMemory reporting success as a bool.
func (c *Controller) TryAcquireMemory(bytes int64) bool {
	return c.AcquireMemory(bytes) == nil
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
	if c == nil {
		return 0
	}
	return c.memUsed.Load()
}

// AcquireWorker reserves a worker slot, blocking until one is free or ctx is done.
func (c *Controller) AcquireWorker(ctx context.Context) error {
	if c == nil {
		return ctx.Err()
	}
	return c.workerSem.Acquire(ctx, 1)
}

// TryAcquireWorker reserves a worker slot without blocking.
func (c *Controller) TryAcquireWorker() bool {
	if c == nil {
		return true
	}
	return c.workerSem.TryAcquire(1)
}

// ReleaseWorker releases a worker slot.
func (c *Controller) ReleaseWorker() {
	if c == nil {
		return
	}
	c.workerSem.Release(1)
}

// Workers returns the worker limit (1 for a nil controller).
func (c *Controller) Workers() int {
	if c == nil {
		return 1
	}
	return int(c.cfg.MaxWorkers)
}

// WaitRequest blocks until the request rate allows another call.
func (c *Controller) WaitRequest(ctx context.Context) error {
	if c == nil || c.limiter == nil {
		return ctx.Err()
	}
	return c.limiter.Wait(ctx)
}

package resmgr

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
)

// ScheduleIntervalParam is the optional pool param overriding the manager's
// default management interval, in seconds.
const ScheduleIntervalParam = "scheduleIntervalSeconds"

// Manager owns a set of pools and drives their management ticks.
//
// Each pool runs on its own fixed-delay schedule: the delay is re-armed after
// Execute returns, so ticks for one pool never overlap. Pools are fully
// independent units of work with no shared mutable state between them.
type Manager struct {
	factory         Factory
	logger          *Logger
	metrics         MetricsCollector
	clock           clock.Clock
	defaultInterval time.Duration

	mu     sync.Mutex
	pools  map[string]*Pool
	closed bool
	wg     sync.WaitGroup
}

// NewManager creates a Manager resolving plugins through the given factory.
func NewManager(factory Factory, optFns ...Option) *Manager {
	opts := options{
		logger:           NewLogger(nil),
		metricsCollector: NoopMetricsCollector{},
		clock:            clock.New(),
		defaultInterval:  DefaultScheduleInterval,
	}
	for _, fn := range optFns {
		fn(&opts)
	}

	return &Manager{
		factory:         factory,
		logger:          opts.logger,
		metrics:         opts.metricsCollector,
		clock:           opts.clock,
		defaultInterval: opts.defaultInterval,
		pools:           make(map[string]*Pool),
	}
}

// CreatePool constructs a pool, registers it under its name and starts its
// tick loop. The pool's schedule handle is assigned before the first tick.
//
// The management interval defaults to the manager's default and can be
// overridden per pool with the ScheduleIntervalParam param (numeric seconds).
func (m *Manager) CreatePool(name, poolType string, limits map[string]float64, params map[string]any) (*Pool, error) {
	pool, err := NewPool(name, poolType, m.factory, limits, params,
		WithPoolLogger(m.logger),
		WithPoolMetricsCollector(m.metrics),
	)
	if err != nil {
		return nil, err
	}

	interval := m.defaultInterval
	if secs, ok := paramSeconds(params, ScheduleIntervalParam); ok {
		interval = secs
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return nil, ErrManagerClosed
	}
	if _, ok := m.pools[name]; ok {
		return nil, &ErrDuplicatePool{Pool: name}
	}
	m.pools[name] = pool

	ctx, cancel := context.WithCancel(context.Background())
	pool.SetScheduleHandle(NewScheduleHandle(cancel))

	m.wg.Add(1)
	go m.runLoop(ctx, pool, interval)

	m.logger.LogPoolCreated(ctx, name, poolType, interval)

	return pool, nil
}

// runLoop drives one pool with fixed-delay-after-completion semantics: the
// timer is re-armed only after Execute returns.
func (m *Manager) runLoop(ctx context.Context, pool *Pool, interval time.Duration) {
	defer m.wg.Done()

	t := m.clock.Timer(interval)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			pool.Execute(ctx)
			t.Reset(interval)
		}
	}
}

// Pool returns the pool registered under name.
func (m *Manager) Pool(name string) (*Pool, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	pool, ok := m.pools[name]

	return pool, ok
}

// Pools returns all registered pools sorted by name.
func (m *Manager) Pools() []*Pool {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]*Pool, 0, len(m.pools))
	for _, pool := range m.pools {
		out = append(out, pool)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name() < out[j].Name() })

	return out
}

// RegisterResource offers a resource to every pool whose type the resource
// supports. Pools of other types skip it silently. A duplicate name within a
// matching pool is reported; remaining pools are still attempted.
func (m *Manager) RegisterResource(resource ManagedResource) error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return ErrManagerClosed
	}
	pools := make([]*Pool, 0, len(m.pools))
	for _, pool := range m.pools {
		pools = append(pools, pool)
	}
	m.mu.Unlock()

	var errs []error
	for _, pool := range pools {
		if err := pool.AddResource(resource); err != nil {
			errs = append(errs, err)
		}
	}

	return errors.Join(errs...)
}

// RemovePool closes the named pool and removes it from the manager.
// Removing an unknown pool is a no-op.
func (m *Manager) RemovePool(name string) error {
	m.mu.Lock()
	pool, ok := m.pools[name]
	delete(m.pools, name)
	m.mu.Unlock()

	if !ok {
		return nil
	}

	return pool.Close()
}

// Close closes all pools, cancelling their schedules, and waits for the tick
// loops to drain. Closing an already-closed manager is a no-op.
func (m *Manager) Close() error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.closed = true
	pools := make([]*Pool, 0, len(m.pools))
	for _, pool := range m.pools {
		pools = append(pools, pool)
	}
	m.mu.Unlock()

	var firstErr error
	for _, pool := range pools {
		if err := pool.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	m.wg.Wait()

	return firstErr
}

// paramSeconds reads a numeric seconds value from pool params, tolerating the
// numeric types a decoded config typically carries.
func paramSeconds(params map[string]any, key string) (time.Duration, bool) {
	v, ok := params[key]
	if !ok {
		return 0, false
	}

	var secs float64
	switch n := v.(type) {
	case float64:
		secs = n
	case float32:
		secs = float64(n)
	case int:
		secs = float64(n)
	case int64:
		secs = float64(n)
	default:
		return 0, false
	}
	if secs <= 0 {
		return 0, false
	}

	return time.Duration(secs * float64(time.Second)), true
}

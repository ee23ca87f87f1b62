package resmgr

import (
	"context"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/semaphore"
)

// Pool manages a group of resources of the same type, which use the same
// Plugin for managing their resource limits.
//
// Membership is safe for concurrent mutation while a tick is iterating it.
// Aggregation and total reads serialize through a per-pool lock acquired with
// a context, so a blocked caller is interrupted by cancellation instead of
// hanging indefinitely.
type Pool struct {
	name     string
	poolType string
	plugin   Plugin
	params   map[string]any

	// resources maps resource name to ManagedResource.
	resources sync.Map

	// limits is replaced wholesale; readers always see either the old map
	// or the new map in full.
	limits atomic.Pointer[map[string]float64]

	// updateLock guards the collect -> sum -> publish sequence and reads
	// of totals. A weighted semaphore of size 1 is used instead of a
	// mutex so acquisition honors context cancellation.
	updateLock *semaphore.Weighted
	totals     map[string]float64 // guarded by updateLock; nil until first aggregation

	// running guards against overlapping Execute calls from an external
	// fixed-rate scheduler. The in-tree Manager schedules fixed-delay, so
	// this never trips there.
	running atomic.Bool

	mu     sync.Mutex // guards handle
	handle *ScheduleHandle

	logger  *Logger
	metrics MetricsCollector
}

// PoolOption configures a Pool.
type PoolOption func(*Pool)

// WithPoolLogger sets the logger used by the pool. Defaults to a text logger
// at info level.
func WithPoolLogger(logger *Logger) PoolOption {
	return func(p *Pool) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// WithPoolMetricsCollector sets the metrics collector used by the pool.
// Defaults to NoopMetricsCollector.
func WithPoolMetricsCollector(mc MetricsCollector) PoolOption {
	return func(p *Pool) {
		if mc != nil {
			p.metrics = mc
		}
	}
}

// NewPool creates a pool of resources to manage.
//
// The plugin is resolved and initialized through the factory for poolType
// with params. If the factory cannot produce a plugin (unsupported type) or
// plugin initialization fails, the error is returned and no pool exists.
func NewPool(name, poolType string, factory Factory, limits map[string]float64, params map[string]any, optFns ...PoolOption) (*Pool, error) {
	plugin, err := factory.Create(poolType, params)
	if err != nil {
		return nil, err
	}

	p := &Pool{
		name:       name,
		poolType:   poolType,
		plugin:     plugin,
		params:     copyParams(params),
		updateLock: semaphore.NewWeighted(1),
		logger:     NewLogger(nil),
		metrics:    NoopMetricsCollector{},
	}
	p.storeLimits(limits)

	for _, fn := range optFns {
		fn(p)
	}

	return p, nil
}

// Name returns the unique name of the pool.
func (p *Pool) Name() string {
	return p.name
}

// Type returns the pool type that selected this pool's plugin.
func (p *Pool) Type() string {
	return p.poolType
}

// Plugin returns the control algorithm owned by this pool. The instance is
// fixed for the pool's lifetime.
func (p *Pool) Plugin() Plugin {
	return p.plugin
}

// Params returns a copy of the plugin parameters the pool was created with.
func (p *Pool) Params() map[string]any {
	return copyParams(p.params)
}

// AddResource adds a resource to the pool.
//
// If the resource does not declare support for the pool's type the addition
// is logged and skipped without error; pools and resources are wired
// independently and a type mismatch is expected during broad registration
// sweeps. Adding a second resource under an existing name returns
// ErrDuplicateResource.
func (p *Pool) AddResource(resource ManagedResource) error {
	if !supportsType(resource, p.poolType) {
		p.logger.LogTypeMismatch(context.Background(), p.name, p.poolType, resource.Name())
		return nil
	}

	if _, loaded := p.resources.LoadOrStore(resource.Name(), resource); loaded {
		return &ErrDuplicateResource{Resource: resource.Name(), Pool: p.name}
	}

	return nil
}

// Resources returns a snapshot of current membership keyed by resource name.
// Safe to call concurrently with additions.
func (p *Pool) Resources() map[string]ManagedResource {
	out := make(map[string]ManagedResource)
	p.resources.Range(func(k, v any) bool {
		out[k.(string)] = v.(ManagedResource)
		return true
	})

	return out
}

// CurrentValues collects the current monitored values from all resources.
// The result maps resource names to tag/value maps.
//
// A failure from any single resource is logged and that resource is simply
// absent from the result; partial results are expected under partial
// failure. After collection the pool's cached totals are replaced
// atomically, to be read via TotalValues.
//
// Concurrent callers serialize through the pool's update lock; ctx
// cancellation interrupts the wait.
func (p *Pool) CurrentValues(ctx context.Context) (map[string]map[string]float64, error) {
	start := time.Now()

	if err := p.updateLock.Acquire(ctx, 1); err != nil {
		p.metrics.RecordAggregation(p.name, 0, time.Since(start), err)
		return nil, err
	}
	defer p.updateLock.Release(1)

	tags := p.plugin.MonitoredTags()

	current := make(map[string]map[string]float64)
	p.resources.Range(func(_, v any) bool {
		resource := v.(ManagedResource)
		values, err := resource.GetMonitoredValues(ctx, tags)
		if err != nil {
			p.logger.LogObservationFailure(ctx, p.name, resource.Name(), err)
			p.metrics.RecordObservationFailure(p.name, resource.Name())
			return true
		}
		current[resource.Name()] = values
		return true
	})

	totals := make(map[string]float64)
	for _, values := range current {
		for tag, v := range values {
			totals[tag] += v
		}
	}
	p.totals = totals

	p.logger.LogAggregation(ctx, p.name, len(current), time.Since(start))
	p.metrics.RecordAggregation(p.name, len(current), time.Since(start), nil)

	return current, nil
}

// TotalValues returns the cumulative monitored values of all resources as
// computed by the most recent CurrentValues call.
//
// Before the first aggregation it returns ErrNotAggregated. A caller racing
// with an in-flight aggregation blocks on the same lock and observes the
// fresh totals once it completes.
func (p *Pool) TotalValues(ctx context.Context) (map[string]float64, error) {
	if err := p.updateLock.Acquire(ctx, 1); err != nil {
		return nil, err
	}
	defer p.updateLock.Release(1)

	if p.totals == nil {
		return nil, ErrNotAggregated
	}

	out := make(map[string]float64, len(p.totals))
	for tag, v := range p.totals {
		out[tag] = v
	}

	return out, nil
}

// Limits returns a copy of the pool's target limits keyed by controlled tag.
func (p *Pool) Limits() map[string]float64 {
	limits := *p.limits.Load()

	out := make(map[string]float64, len(limits))
	for tag, v := range limits {
		out[tag] = v
	}

	return out
}

// LimitTags returns the pool's limit tags in sorted order, for deterministic
// iteration and reporting.
func (p *Pool) LimitTags() []string {
	limits := *p.limits.Load()

	tags := make([]string, 0, len(limits))
	for tag := range limits {
		tags = append(tags, tag)
	}
	sort.Strings(tags)

	return tags
}

// SetLimits replaces the pool's target limits wholesale. Replacement is
// atomic with respect to concurrent readers: they see either the old map or
// the new map in full, never a mix.
//
// These are the pool's target budgets; plugins mutate per-resource limits,
// not this map.
func (p *Pool) SetLimits(limits map[string]float64) {
	p.storeLimits(limits)
}

func (p *Pool) storeLimits(limits map[string]float64) {
	cp := make(map[string]float64, len(limits))
	for tag, v := range limits {
		cp[tag] = v
	}
	p.limits.Store(&cp)
}

// Execute runs one management tick, delegating to the pool's plugin. Any
// failure raised by the plugin is logged as a warning and does not
// propagate; a failing control algorithm never prevents subsequent ticks.
//
// The scheduler is expected to invoke Execute at most once concurrently per
// pool (fixed delay after completion). If an external fixed-rate scheduler
// overlaps invocations anyway, the overlapping call is a logged no-op.
func (p *Pool) Execute(ctx context.Context) {
	if !p.running.CompareAndSwap(false, true) {
		p.logger.DebugContext(ctx, "management tick already running, skipping", "pool", p.name)
		return
	}
	defer p.running.Store(false)

	start := time.Now()
	err := p.plugin.Manage(ctx, p)
	p.logger.LogManage(ctx, p.name, time.Since(start), err)
	p.metrics.RecordManage(p.name, time.Since(start), err)
}

// SetScheduleHandle assigns the cancellable handle for the pool's periodic
// trigger. Called once by the owning scheduler after construction; the pool
// only ever cancels the handle.
func (p *Pool) SetScheduleHandle(handle *ScheduleHandle) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.handle = handle
}

// ScheduleHandle returns the currently assigned handle, or nil after Close.
func (p *Pool) ScheduleHandle() *ScheduleHandle {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.handle
}

// Close cancels the pool's schedule handle, interrupting an in-flight lock
// wait, and clears it. Closing an already-closed pool is a no-op. The pool
// holds no other external resources requiring release.
func (p *Pool) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.handle != nil {
		p.handle.Cancel()
		p.handle = nil
		p.logger.LogPoolClosed(context.Background(), p.name)
	}

	return nil
}

func supportsType(resource ManagedResource, poolType string) bool {
	for _, t := range resource.SupportedPoolTypes() {
		if t == poolType {
			return true
		}
	}
	return false
}

func copyParams(params map[string]any) map[string]any {
	cp := make(map[string]any, len(params))
	for k, v := range params {
		cp[k] = v
	}
	return cp
}

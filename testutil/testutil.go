package testutil

import (
	"context"
	"sync"

	"github.com/hupe1980/resmgr"
)

// FakeResource is an in-memory ManagedResource with settable monitored
// values and recorded limits. It is safe for concurrent use.
type FakeResource struct {
	name  string
	types []string

	mu      sync.Mutex
	values  map[string]float64
	limits  map[string]float64
	failErr error
}

// Compile time check to ensure FakeResource satisfies the interface.
var _ resmgr.ManagedResource = (*FakeResource)(nil)

// NewFakeResource creates a fake resource reporting the given values.
func NewFakeResource(name string, types []string, values map[string]float64) *FakeResource {
	cp := make(map[string]float64, len(values))
	for k, v := range values {
		cp[k] = v
	}
	return &FakeResource{
		name:   name,
		types:  types,
		values: cp,
		limits: make(map[string]float64),
	}
}

// Name implements resmgr.ManagedResource.
func (r *FakeResource) Name() string { return r.name }

// SupportedPoolTypes implements resmgr.ManagedResource.
func (r *FakeResource) SupportedPoolTypes() []string { return r.types }

// GetMonitoredValues implements resmgr.ManagedResource. Only requested tags
// the resource tracks are present in the result.
func (r *FakeResource) GetMonitoredValues(ctx context.Context, tags []string) (map[string]float64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.failErr != nil {
		return nil, r.failErr
	}

	out := make(map[string]float64)
	for _, tag := range tags {
		if v, ok := r.values[tag]; ok {
			out[tag] = v
		}
	}

	return out, nil
}

// SetLimit implements resmgr.ManagedResource, recording the limit.
func (r *FakeResource) SetLimit(ctx context.Context, tag string, value float64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.failErr != nil {
		return r.failErr
	}
	r.limits[tag] = value

	return nil
}

// SetValue updates a monitored value.
func (r *FakeResource) SetValue(tag string, value float64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.values[tag] = value
}

// FailWith makes subsequent calls fail with err. Pass nil to heal.
func (r *FakeResource) FailWith(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.failErr = err
}

// Limit returns the last limit applied for tag.
func (r *FakeResource) Limit(tag string) (float64, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	v, ok := r.limits[tag]
	return v, ok
}

// Limits returns a copy of all applied limits.
func (r *FakeResource) Limits() map[string]float64 {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make(map[string]float64, len(r.limits))
	for k, v := range r.limits {
		out[k] = v
	}

	return out
}

// FakePlugin is a Plugin that records calls and optionally delegates Manage
// to a callback.
type FakePlugin struct {
	Monitored  []string
	Controlled []string
	InitErr    error
	ManageErr  error

	// OnManage, if set, is invoked by Manage after the call is counted.
	OnManage func(ctx context.Context, pool *resmgr.Pool) error

	mu          sync.Mutex
	initParams  map[string]any
	manageCalls int
}

// Compile time check to ensure FakePlugin satisfies the interface.
var _ resmgr.Plugin = (*FakePlugin)(nil)

// Init implements resmgr.Plugin.
func (p *FakePlugin) Init(params map[string]any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.initParams = params
	return p.InitErr
}

// MonitoredTags implements resmgr.Plugin.
func (p *FakePlugin) MonitoredTags() []string { return p.Monitored }

// ControlledTags implements resmgr.Plugin.
func (p *FakePlugin) ControlledTags() []string { return p.Controlled }

// Manage implements resmgr.Plugin.
func (p *FakePlugin) Manage(ctx context.Context, pool *resmgr.Pool) error {
	p.mu.Lock()
	p.manageCalls++
	p.mu.Unlock()

	if p.OnManage != nil {
		return p.OnManage(ctx, pool)
	}

	return p.ManageErr
}

// ManageCalls returns how many times Manage was invoked.
func (p *FakePlugin) ManageCalls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.manageCalls
}

// InitParams returns the params passed to Init.
func (p *FakePlugin) InitParams() map[string]any {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.initParams
}

// SingleTypeRegistry creates a registry with one pool type resolving to the
// given plugin instance.
func SingleTypeRegistry(poolType string, plugin resmgr.Plugin) *resmgr.Registry {
	r := resmgr.NewRegistry()
	if err := r.Register(poolType, func() resmgr.Plugin { return plugin }); err != nil {
		panic(err)
	}
	return r
}

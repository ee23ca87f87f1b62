package resmgr

import (
	"context"
	"sort"
	"sync"
)

// Plugin is a control algorithm bound to one pool type.
//
// A plugin instance is owned exclusively by one pool and is never swapped for
// the pool's lifetime. Manage is invoked at most once concurrently per pool
// by the owning scheduler.
type Plugin interface {
	// Init performs one-time configuration. It may fail if params are
	// invalid for this algorithm, which prevents the owning pool from
	// being constructed.
	Init(params map[string]any) error

	// MonitoredTags returns the tags this algorithm needs observed from
	// each resource. The pool uses exactly this set when collecting
	// current values, so algorithms must declare every tag they read.
	MonitoredTags() []string

	// ControlledTags returns the tags this algorithm is permitted to set
	// as resource limits. Used for validation and documentation; resources
	// are trusted to reject out-of-contract limit writes if they choose.
	ControlledTags() []string

	// Manage reads the pool's aggregated state and pushes updated limits
	// to individual resources.
	Manage(ctx context.Context, pool *Pool) error
}

// PluginConstructor creates an uninitialized Plugin instance.
type PluginConstructor func() Plugin

// Factory resolves a pool type to a constructed, initialized Plugin.
type Factory interface {
	// Create instantiates the plugin registered for poolType and calls
	// Init(params) on it before returning. Returns ErrUnsupportedPoolType
	// if no implementation is registered for poolType.
	Create(poolType string, params map[string]any) (Plugin, error)
}

// Registry maps pool type names to plugin constructors.
//
// Register all associations before constructing pools; the lookup contract is
// simply "unknown type fails explicitly", so late registration is possible
// but not expected.
type Registry struct {
	mu           sync.RWMutex
	constructors map[string]PluginConstructor
}

// NewRegistry creates an empty plugin registry.
func NewRegistry() *Registry {
	return &Registry{
		constructors: make(map[string]PluginConstructor),
	}
}

// Register associates a pool type with a plugin constructor.
// Registering the same type twice returns ErrDuplicateType.
func (r *Registry) Register(poolType string, ctor PluginConstructor) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.constructors[poolType]; ok {
		return &ErrDuplicateType{Type: poolType}
	}
	r.constructors[poolType] = ctor

	return nil
}

// Types returns the registered pool types in sorted order.
func (r *Registry) Types() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	types := make([]string, 0, len(r.constructors))
	for t := range r.constructors {
		types = append(types, t)
	}
	sort.Strings(types)

	return types
}

func (r *Registry) lookup(poolType string) (PluginConstructor, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ctor, ok := r.constructors[poolType]

	return ctor, ok
}

// DefaultFactory resolves plugins through an explicit Registry.
type DefaultFactory struct {
	registry *Registry
}

// Compile time check to ensure DefaultFactory satisfies the Factory interface.
var _ Factory = (*DefaultFactory)(nil)

// NewDefaultFactory creates a Factory backed by the given registry.
func NewDefaultFactory(registry *Registry) *DefaultFactory {
	return &DefaultFactory{registry: registry}
}

// Create implements Factory.
func (f *DefaultFactory) Create(poolType string, params map[string]any) (Plugin, error) {
	ctor, ok := f.registry.lookup(poolType)
	if !ok {
		return nil, &ErrUnsupportedPoolType{Type: poolType}
	}

	plugin := ctor()
	if err := plugin.Init(params); err != nil {
		return nil, &ErrPluginInit{Type: poolType, cause: err}
	}

	return plugin, nil
}

// Package ratecap implements a control algorithm that divides a pool's rate
// budget among rate-limited resources in proportion to their observed demand.
//
// Members with no recent demand receive an equal split of the budget so they
// are never starved out of restarting.
package ratecap

import (
	"context"
	"errors"
	"fmt"

	"github.com/hupe1980/resmgr"
)

// TypeName is the pool type this plugin governs.
const TypeName = "rate"

// Tags used by the plugin.
const (
	// TagObservedPerSec is the monitored observed throughput of a resource.
	TagObservedPerSec = "rate.observedPerSec"
	// TagMaxPerSec is the controlled rate cap of a resource, and the pool
	// limit tag holding the aggregate rate budget.
	TagMaxPerSec = "rate.maxPerSec"
)

// MinShareParam is the optional plugin param setting the minimum cap any
// member receives regardless of demand. Defaults to DefaultMinShare.
const MinShareParam = "minShare"

// DefaultMinShare is the default minimum per-resource rate cap.
const DefaultMinShare = 1.0

// Plugin divides a rate budget by demand.
type Plugin struct {
	minShare float64
}

// Compile time check to ensure Plugin satisfies the interface.
var _ resmgr.Plugin = (*Plugin)(nil)

// Register associates TypeName with this plugin in the given registry.
func Register(r *resmgr.Registry) error {
	return r.Register(TypeName, func() resmgr.Plugin { return &Plugin{} })
}

// Init implements resmgr.Plugin.
func (p *Plugin) Init(params map[string]any) error {
	p.minShare = DefaultMinShare

	if v, ok := params[MinShareParam]; ok {
		share, ok := toFloat(v)
		if !ok {
			return fmt.Errorf("param %q: expected number, got %T", MinShareParam, v)
		}
		if share < 0 {
			return fmt.Errorf("param %q: must be >= 0, got %v", MinShareParam, share)
		}
		p.minShare = share
	}

	return nil
}

// MonitoredTags implements resmgr.Plugin.
func (p *Plugin) MonitoredTags() []string {
	return []string{TagObservedPerSec}
}

// ControlledTags implements resmgr.Plugin.
func (p *Plugin) ControlledTags() []string {
	return []string{TagMaxPerSec}
}

// Manage implements resmgr.Plugin.
func (p *Plugin) Manage(ctx context.Context, pool *resmgr.Pool) error {
	current, err := pool.CurrentValues(ctx)
	if err != nil {
		return err
	}
	totals, err := pool.TotalValues(ctx)
	if err != nil {
		return err
	}

	budget, ok := pool.Limits()[TagMaxPerSec]
	if !ok || budget <= 0 {
		return nil
	}

	resources := pool.Resources()
	if len(current) == 0 {
		return nil
	}

	totalObserved := totals[TagObservedPerSec]

	var errs []error
	for name, resource := range resources {
		values, ok := current[name]
		if !ok {
			continue
		}

		var share float64
		if totalObserved > 0 {
			share = budget * values[TagObservedPerSec] / totalObserved
		} else {
			// No demand anywhere: equal split.
			share = budget / float64(len(current))
		}
		if share < p.minShare {
			share = p.minShare
		}

		if err := resource.SetLimit(ctx, TagMaxPerSec, share); err != nil {
			errs = append(errs, fmt.Errorf("set limit on %q: %w", name, err))
		}
	}

	return errors.Join(errs...)
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	default:
		return 0, false
	}
}

// Package cachesize implements a control algorithm that keeps the aggregate
// size of cache-like resources within a pool's byte budget.
//
// The plugin monitors each member's current size and hit ratio. When the
// aggregate size leaves a dead band around the pool's target, every member's
// maximum size is rescaled proportionally to its current size, so larger
// caches absorb a larger share of the adjustment.
package cachesize

import (
	"context"
	"errors"
	"fmt"

	"github.com/hupe1980/resmgr"
)

// TypeName is the pool type this plugin governs.
const TypeName = "cache"

// Tags used by the plugin.
const (
	// TagSizeBytes is the monitored current size of a cache.
	TagSizeBytes = "cache.sizeBytes"
	// TagHitRatio is the monitored hit ratio of a cache, in [0,1].
	TagHitRatio = "cache.hitRatio"
	// TagMaxSizeBytes is the controlled maximum size of a cache, and the
	// pool limit tag holding the aggregate byte budget.
	TagMaxSizeBytes = "cache.maxSizeBytes"
)

// DeadBandParam is the optional plugin param setting the dead band as a
// fraction of the pool budget. Defaults to DefaultDeadBand.
const DeadBandParam = "deadBand"

// DefaultDeadBand is the fraction of the budget within which no adjustment
// is made, avoiding oscillation around the target.
const DefaultDeadBand = 0.1

// Plugin governs cache sizes. The zero value is not usable; construct
// through a resmgr.Registry.
type Plugin struct {
	deadBand float64
}

// Compile time check to ensure Plugin satisfies the interface.
var _ resmgr.Plugin = (*Plugin)(nil)

// Register associates TypeName with this plugin in the given registry.
func Register(r *resmgr.Registry) error {
	return r.Register(TypeName, func() resmgr.Plugin { return &Plugin{} })
}

// Init implements resmgr.Plugin.
func (p *Plugin) Init(params map[string]any) error {
	p.deadBand = DefaultDeadBand

	if v, ok := params[DeadBandParam]; ok {
		band, ok := toFloat(v)
		if !ok {
			return fmt.Errorf("param %q: expected number, got %T", DeadBandParam, v)
		}
		if band < 0 || band >= 1 {
			return fmt.Errorf("param %q: must be in [0,1), got %v", DeadBandParam, band)
		}
		p.deadBand = band
	}

	return nil
}

// MonitoredTags implements resmgr.Plugin.
func (p *Plugin) MonitoredTags() []string {
	return []string{TagSizeBytes, TagHitRatio}
}

// ControlledTags implements resmgr.Plugin.
func (p *Plugin) ControlledTags() []string {
	return []string{TagMaxSizeBytes}
}

// Manage implements resmgr.Plugin.
//
// Resources that failed to report this tick keep their current limits; the
// adjustment is computed from the members that did report.
func (p *Plugin) Manage(ctx context.Context, pool *resmgr.Pool) error {
	current, err := pool.CurrentValues(ctx)
	if err != nil {
		return err
	}
	totals, err := pool.TotalValues(ctx)
	if err != nil {
		return err
	}

	budget, ok := pool.Limits()[TagMaxSizeBytes]
	if !ok || budget <= 0 {
		// Nothing to govern against.
		return nil
	}

	total := totals[TagSizeBytes]
	if total <= 0 {
		return nil
	}

	delta := budget - total
	if delta > -p.deadBand*budget && delta < p.deadBand*budget {
		return nil
	}

	ratio := budget / total

	var errs []error
	for name, resource := range pool.Resources() {
		values, ok := current[name]
		if !ok {
			continue
		}
		size, ok := values[TagSizeBytes]
		if !ok || size <= 0 {
			continue
		}
		if err := resource.SetLimit(ctx, TagMaxSizeBytes, size*ratio); err != nil {
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

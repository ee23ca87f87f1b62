package resmgr

import "context"

// ManagedResource is implemented by any component governed by a pool.
//
// Implementations must be safe for concurrent use: the pool queries monitored
// values from a scheduled tick while plugins may push limits from the same
// tick and administrators may read state from other goroutines.
type ManagedResource interface {
	// Name returns the resource's name, unique within its pool.
	Name() string

	// SupportedPoolTypes returns the pool types this resource can join.
	// A resource offered to a pool whose type is not in this list is
	// skipped by the pool.
	SupportedPoolTypes() []string

	// GetMonitoredValues reports current values for the requested tags.
	// Tags the resource does not track are omitted from the result; the
	// pool treats omission as "no contribution", not as zero.
	GetMonitoredValues(ctx context.Context, tags []string) (map[string]float64, error)

	// SetLimit applies a new limit for the given tag. Called by plugins,
	// never by the pool core. Implementations may reject tags outside
	// their contract.
	SetLimit(ctx context.Context, tag string, value float64) error
}

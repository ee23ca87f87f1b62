package resmgr

import (
	"errors"
	"fmt"
)

var (
	// ErrNotAggregated is returned by Pool.TotalValues before the first
	// aggregation has completed. An explicit signal is used instead of an
	// empty map so callers cannot mistake "never aggregated" for
	// "zero usage".
	ErrNotAggregated = errors.New("no aggregation has been performed yet")

	// ErrManagerClosed is returned for operations on a closed Manager.
	ErrManagerClosed = errors.New("manager is closed")
)

// ErrUnsupportedPoolType indicates that no plugin is registered for a pool type.
type ErrUnsupportedPoolType struct {
	Type string
}

func (e *ErrUnsupportedPoolType) Error() string {
	return fmt.Sprintf("unsupported pool type: %q", e.Type)
}

// ErrPluginInit indicates that a plugin rejected its initialization params.
//
// The original underlying error can be accessed via errors.Unwrap.
type ErrPluginInit struct {
	Type  string
	cause error
}

func (e *ErrPluginInit) Error() string {
	return fmt.Sprintf("plugin init failed for pool type %q: %v", e.Type, e.cause)
}

func (e *ErrPluginInit) Unwrap() error { return e.cause }

// ErrDuplicateResource indicates an attempt to add a resource under a name
// that already exists in the pool. This is a wiring bug upstream, not a
// runtime-recoverable condition.
type ErrDuplicateResource struct {
	Resource string
	Pool     string
}

func (e *ErrDuplicateResource) Error() string {
	return fmt.Sprintf("resource %q already exists in pool %q", e.Resource, e.Pool)
}

// ErrDuplicatePool indicates an attempt to create a pool under a name that
// already exists in the manager.
type ErrDuplicatePool struct {
	Pool string
}

func (e *ErrDuplicatePool) Error() string {
	return fmt.Sprintf("pool %q already exists", e.Pool)
}

// ErrDuplicateType indicates an attempt to register a plugin constructor for
// a pool type that is already registered.
type ErrDuplicateType struct {
	Type string
}

func (e *ErrDuplicateType) Error() string {
	return fmt.Sprintf("pool type %q is already registered", e.Type)
}

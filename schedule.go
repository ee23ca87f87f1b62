package resmgr

import (
	"context"
	"sync"
)

// ScheduleHandle is an opaque cancellable handle for a pool's periodic
// trigger. The scheduler creates it and hands it to the pool; the pool only
// ever cancels it, never creates or starts it.
//
// Cancelling the handle cancels the context driving the pool's tick loop,
// which also interrupts a lock wait currently blocked inside aggregation.
type ScheduleHandle struct {
	cancel context.CancelFunc
	once   sync.Once
}

// NewScheduleHandle wraps a cancel function into a handle.
func NewScheduleHandle(cancel context.CancelFunc) *ScheduleHandle {
	return &ScheduleHandle{cancel: cancel}
}

// Cancel cancels the schedule. Safe to call multiple times and on nil.
func (h *ScheduleHandle) Cancel() {
	if h == nil {
		return
	}
	h.once.Do(h.cancel)
}

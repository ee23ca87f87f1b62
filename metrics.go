package resmgr

import (
	"sync/atomic"
	"time"
)

// MetricsCollector defines an interface for collecting operational metrics.
// Implement this interface to integrate with monitoring systems; a Prometheus
// implementation is provided in the metrics/prom package.
type MetricsCollector interface {
	// RecordAggregation is called after each aggregation pass.
	// resources is the number of resources that reported successfully,
	// duration is the total time taken, err is nil if successful.
	RecordAggregation(pool string, resources int, duration time.Duration, err error)

	// RecordManage is called after each management tick.
	// duration is the total time taken, err is nil if successful.
	RecordManage(pool string, duration time.Duration, err error)

	// RecordObservationFailure is called when a single resource's
	// monitored-value query fails during aggregation.
	RecordObservationFailure(pool, resource string)
}

// NoopMetricsCollector is a no-op implementation of MetricsCollector.
// Use this when metrics collection is not needed.
type NoopMetricsCollector struct{}

func (NoopMetricsCollector) RecordAggregation(string, int, time.Duration, error) {}
func (NoopMetricsCollector) RecordManage(string, time.Duration, error)           {}
func (NoopMetricsCollector) RecordObservationFailure(string, string)             {}

// BasicMetricsCollector provides simple in-memory metrics collection.
// Useful for debugging and basic monitoring without external dependencies.
type BasicMetricsCollector struct {
	AggregationCount      atomic.Int64
	AggregationErrors     atomic.Int64
	AggregationTotalNanos atomic.Int64
	ManageCount           atomic.Int64
	ManageErrors          atomic.Int64
	ManageTotalNanos      atomic.Int64
	ObservationFailures   atomic.Int64
}

// RecordAggregation implements MetricsCollector.
func (b *BasicMetricsCollector) RecordAggregation(pool string, resources int, duration time.Duration, err error) {
	b.AggregationCount.Add(1)
	b.AggregationTotalNanos.Add(duration.Nanoseconds())
	if err != nil {
		b.AggregationErrors.Add(1)
	}
}

// RecordManage implements MetricsCollector.
func (b *BasicMetricsCollector) RecordManage(pool string, duration time.Duration, err error) {
	b.ManageCount.Add(1)
	b.ManageTotalNanos.Add(duration.Nanoseconds())
	if err != nil {
		b.ManageErrors.Add(1)
	}
}

// RecordObservationFailure implements MetricsCollector.
func (b *BasicMetricsCollector) RecordObservationFailure(pool, resource string) {
	b.ObservationFailures.Add(1)
}

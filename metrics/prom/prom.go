// Package prom provides a Prometheus implementation of
// resmgr.MetricsCollector.
package prom

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/hupe1980/resmgr"
)

const namespace = "resmgr"

// Collector exports pool metrics to Prometheus.
type Collector struct {
	aggregations        *prometheus.CounterVec
	aggregationDuration *prometheus.HistogramVec
	manageTicks         *prometheus.CounterVec
	manageDuration      *prometheus.HistogramVec
	observationFailures *prometheus.CounterVec
}

// Compile time check to ensure Collector satisfies the interface.
var _ resmgr.MetricsCollector = (*Collector)(nil)

// NewCollector creates a Collector registered with reg. If reg is nil, the
// default registerer is used.
func NewCollector(reg prometheus.Registerer) *Collector {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &Collector{
		aggregations: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "aggregations_total",
			Help:      "Number of aggregation passes, by pool and status.",
		}, []string{"pool", "status"}),
		aggregationDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "aggregation_duration_seconds",
			Help:      "Duration of aggregation passes.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"pool"}),
		manageTicks: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "manage_ticks_total",
			Help:      "Number of management ticks, by pool and status.",
		}, []string{"pool", "status"}),
		manageDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "manage_duration_seconds",
			Help:      "Duration of management ticks.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"pool"}),
		observationFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "observation_failures_total",
			Help:      "Number of failed monitored-value queries, by pool and resource.",
		}, []string{"pool", "resource"}),
	}
}

// RecordAggregation implements resmgr.MetricsCollector.
func (c *Collector) RecordAggregation(pool string, resources int, duration time.Duration, err error) {
	c.aggregations.WithLabelValues(pool, status(err)).Inc()
	c.aggregationDuration.WithLabelValues(pool).Observe(duration.Seconds())
}

// RecordManage implements resmgr.MetricsCollector.
func (c *Collector) RecordManage(pool string, duration time.Duration, err error) {
	c.manageTicks.WithLabelValues(pool, status(err)).Inc()
	c.manageDuration.WithLabelValues(pool).Observe(duration.Seconds())
}

// RecordObservationFailure implements resmgr.MetricsCollector.
func (c *Collector) RecordObservationFailure(pool, resource string) {
	c.observationFailures.WithLabelValues(pool, resource).Inc()
}

func status(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

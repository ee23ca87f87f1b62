package resmgr

import (
	"time"

	"github.com/benbjohnson/clock"
)

// DefaultScheduleInterval is the management interval used for pools that do
// not configure their own.
const DefaultScheduleInterval = 10 * time.Second

type options struct {
	logger           *Logger
	metricsCollector MetricsCollector
	clock            clock.Clock
	defaultInterval  time.Duration
}

// Option configures Manager behavior.
type Option func(*options)

// WithLogger sets the logger used by the manager and its pools.
//
// If nil is passed, a text logger at info level is used.
func WithLogger(logger *Logger) Option {
	return func(o *options) {
		if logger == nil {
			logger = NewLogger(nil)
		}
		o.logger = logger
	}
}

// WithMetricsCollector sets the metrics collector used by the manager and
// its pools. Defaults to NoopMetricsCollector.
func WithMetricsCollector(mc MetricsCollector) Option {
	return func(o *options) {
		if mc == nil {
			mc = NoopMetricsCollector{}
		}
		o.metricsCollector = mc
	}
}

// WithClock sets the clock driving the pool tick loops. Defaults to the wall
// clock; pass a mock clock in tests to trigger ticks deterministically.
func WithClock(c clock.Clock) Option {
	return func(o *options) {
		if c == nil {
			c = clock.New()
		}
		o.clock = c
	}
}

// WithDefaultInterval sets the management interval for pools that do not
// configure their own via the "scheduleIntervalSeconds" pool param.
func WithDefaultInterval(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.defaultInterval = d
		}
	}
}

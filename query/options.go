package query

import (
	"time"

	"github.com/vegasq/cubecat/aggregate"
	"github.com/vegasq/cubecat/internal/logging"
	"github.com/vegasq/cubecat/progress"
)

// Option configures a Context.
type Option func(*Context)

// WithLogger sets the logger. The default discards everything.
func WithLogger(l *logging.Logger) Option {
	return func(c *Context) {
		if l != nil {
			c.log = l
		}
	}
}

// WithMetrics records step outcomes and phase durations on m.
func WithMetrics(m *Metrics) Option {
	return func(c *Context) {
		c.metrics = m
	}
}

// WithSink sends progress updates to s and polls it for cancellation.
func WithSink(s progress.Sink) Option {
	return func(c *Context) {
		c.sink = s
	}
}

// WithClock sets the clock used for date shortcuts and timings.
func WithClock(now func() time.Time) Option {
	return func(c *Context) {
		if now != nil {
			c.now = now
		}
	}
}

// WithParallelism bounds the goroutines used inside the pivot phase.
func WithParallelism(n int) Option {
	return func(c *Context) {
		c.workers = n
	}
}

// WithRegistry resolves custom aggregates from r.
func WithRegistry(r *aggregate.Registry) Option {
	return func(c *Context) {
		c.registry = r
	}
}

package rewardsearch

import (
	"github.com/hupe1980/rewardsearch/search"
	"github.com/hupe1980/rewardsearch/trace"
)

type options struct {
	mode             search.Mode
	method           string
	runID            string
	logger           *Logger
	metricsCollector MetricsCollector
	trace            *trace.Writer
	lazyReward       bool
}

// Option configures a Guide.
type Option func(*options)

// WithMode sets the selection mode used on resampling steps.
// The default is search.Deterministic.
func WithMode(m search.Mode) Option {
	return func(o *options) {
		o.mode = m
	}
}

// WithMethod names the search strategy in logs and trace records.
func WithMethod(name string) Option {
	return func(o *options) {
		o.method = name
	}
}

// WithRunID sets the run identifier. When a trace writer is configured its
// run id takes precedence.
func WithRunID(id string) Option {
	return func(o *options) {
		o.runID = id
	}
}

// WithLogger sets the logger. If nil is passed, logging is disabled.
func WithLogger(l *Logger) Option {
	return func(o *options) {
		if l == nil {
			l = NoopLogger()
		}
		o.logger = l
	}
}

// WithMetricsCollector sets the metrics collector.
// If nil is passed, NoopMetricsCollector is used.
func WithMetricsCollector(mc MetricsCollector) Option {
	return func(o *options) {
		if mc == nil {
			mc = NoopMetricsCollector{}
		}
		o.metricsCollector = mc
	}
}

// WithTrace records every step to w. The guide does not close w.
func WithTrace(w *trace.Writer) Option {
	return func(o *options) {
		o.trace = w
	}
}

// WithLazyReward skips the provider on steps the engine does not resample.
// Such steps return no rewards and Best is -1.
func WithLazyReward() Option {
	return func(o *options) {
		o.lazyReward = true
	}
}

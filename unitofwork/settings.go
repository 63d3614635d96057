package unitofwork

import (
	"github.com/AntonStoeckl/uow-eventbus-go/observability"
)

// settings is shared by Factory and TransactionStrategy.
type settings struct {
	defaults         Options
	logger           observability.Logger
	contextualLogger observability.ContextualLogger
	metricsCollector observability.MetricsCollector
	tracingCollector observability.TracingCollector
}

func newSettings(options []Option) (settings, error) {
	s := settings{defaults: DefaultOptions()}

	for _, option := range options {
		if err := option(&s); err != nil {
			return settings{}, err
		}
	}

	return s, nil
}

// Option defines a functional option for configuring a Factory or a TransactionStrategy.
type Option func(*settings) error

// WithDefaultOptions sets the options used for every field a unit of work leaves unspecified.
// Unspecified fields of defaults fall back to DefaultOptions.
func WithDefaultOptions(defaults Options) Option {
	return func(s *settings) error {
		if err := defaults.Validate(); err != nil {
			return err
		}

		s.defaults = defaults.WithDefaults(DefaultOptions())

		return nil
	}
}

// WithLogger sets the logger.
//
// Debug level: transaction start, branch enlistment, commit and rollback timing
// Info level: completed commits with duration and branch count
// Warn level: rollbacks of doomed or timed out transactions
// Error level: commit and rollback failures.
func WithLogger(logger observability.Logger) Option {
	return func(s *settings) error {
		s.logger = logger
		return nil
	}
}

// WithContextualLogger sets a context-aware logger for trace correlation.
func WithContextualLogger(logger observability.ContextualLogger) Option {
	return func(s *settings) error {
		s.contextualLogger = logger
		return nil
	}
}

// WithMetrics sets the metrics collector.
func WithMetrics(collector observability.MetricsCollector) Option {
	return func(s *settings) error {
		s.metricsCollector = collector
		return nil
	}
}

// WithTracing sets the tracing collector.
func WithTracing(collector observability.TracingCollector) Option {
	return func(s *settings) error {
		s.tracingCollector = collector
		return nil
	}
}

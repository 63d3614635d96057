// Package promadapters implements observability.MetricsCollector with Prometheus vectors.
package promadapters

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel/trace"

	"github.com/AntonStoeckl/uow-eventbus-go/observability"
)

const exemplarTraceID = "trace_id"

// MetricsCollector registers one vector per metric name on first use:
//   - RecordDuration -> HistogramVec in seconds
//   - IncrementCounter -> CounterVec
//   - RecordValue -> GaugeVec
//
// Prometheus requires fixed label names per metric. The labels of the first measurement of a metric
// fix them; later measurements fill missing labels with "" and drop unknown ones.
// The context-aware methods attach the trace id of a sampled span in ctx as exemplar.
type MetricsCollector struct {
	registerer   prometheus.Registerer
	namespace    string
	buckets      []float64
	errorHandler func(error)

	mu         sync.Mutex
	histograms map[string]*vec[*prometheus.HistogramVec]
	counters   map[string]*vec[*prometheus.CounterVec]
	gauges     map[string]*vec[*prometheus.GaugeVec]
}

type vec[V any] struct {
	collector  V
	labelNames []string
}

// Option configures a MetricsCollector.
type Option func(*MetricsCollector)

// WithNamespace prefixes every metric name with namespace and an underscore.
func WithNamespace(namespace string) Option {
	return func(m *MetricsCollector) {
		m.namespace = namespace
	}
}

// WithBuckets sets the histogram buckets in seconds. Defaults to prometheus.DefBuckets.
func WithBuckets(buckets []float64) Option {
	return func(m *MetricsCollector) {
		m.buckets = buckets
	}
}

// WithErrorHandler receives registration errors. The failed measurement is dropped either way.
func WithErrorHandler(handler func(error)) Option {
	return func(m *MetricsCollector) {
		m.errorHandler = handler
	}
}

// NewMetricsCollector creates a collector registering on registerer, for example prometheus.DefaultRegisterer.
func NewMetricsCollector(registerer prometheus.Registerer, options ...Option) *MetricsCollector {
	m := &MetricsCollector{
		registerer:   registerer,
		buckets:      prometheus.DefBuckets,
		errorHandler: func(error) {},
		histograms:   make(map[string]*vec[*prometheus.HistogramVec]),
		counters:     make(map[string]*vec[*prometheus.CounterVec]),
		gauges:       make(map[string]*vec[*prometheus.GaugeVec]),
	}

	for _, option := range options {
		option(m)
	}

	return m
}

func (m *MetricsCollector) RecordDuration(metric string, duration time.Duration, labels map[string]string) {
	m.RecordDurationContext(context.Background(), metric, duration, labels)
}

func (m *MetricsCollector) RecordDurationContext(
	ctx context.Context,
	metric string,
	duration time.Duration,
	labels map[string]string,
) {
	v := m.histogram(metric, labels)
	if v == nil {
		return
	}

	observer := v.collector.With(v.labels(labels))
	if exemplar := exemplarFrom(ctx); exemplar != nil {
		if exemplarObserver, ok := observer.(prometheus.ExemplarObserver); ok {
			exemplarObserver.ObserveWithExemplar(duration.Seconds(), exemplar)
			return
		}
	}

	observer.Observe(duration.Seconds())
}

func (m *MetricsCollector) IncrementCounter(metric string, labels map[string]string) {
	m.IncrementCounterContext(context.Background(), metric, labels)
}

func (m *MetricsCollector) IncrementCounterContext(ctx context.Context, metric string, labels map[string]string) {
	v := m.counter(metric, labels)
	if v == nil {
		return
	}

	counter := v.collector.With(v.labels(labels))
	if exemplar := exemplarFrom(ctx); exemplar != nil {
		if exemplarAdder, ok := counter.(prometheus.ExemplarAdder); ok {
			exemplarAdder.AddWithExemplar(1, exemplar)
			return
		}
	}

	counter.Inc()
}

func (m *MetricsCollector) RecordValue(metric string, value float64, labels map[string]string) {
	m.RecordValueContext(context.Background(), metric, value, labels)
}

// RecordValueContext sets the gauge. Gauges carry no exemplars.
func (m *MetricsCollector) RecordValueContext(_ context.Context, metric string, value float64, labels map[string]string) {
	if v := m.gauge(metric, labels); v != nil {
		v.collector.With(v.labels(labels)).Set(value)
	}
}

func (m *MetricsCollector) histogram(metric string, labels map[string]string) *vec[*prometheus.HistogramVec] {
	m.mu.Lock()
	defer m.mu.Unlock()

	if v, ok := m.histograms[metric]; ok {
		return v
	}

	names := labelNames(labels)
	collector := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Name:      metric,
		Help:      help(metric),
		Buckets:   m.buckets,
	}, names)

	registered, ok := register(m, collector)
	if !ok {
		return nil
	}

	v := &vec[*prometheus.HistogramVec]{collector: registered, labelNames: names}
	m.histograms[metric] = v

	return v
}

func (m *MetricsCollector) counter(metric string, labels map[string]string) *vec[*prometheus.CounterVec] {
	m.mu.Lock()
	defer m.mu.Unlock()

	if v, ok := m.counters[metric]; ok {
		return v
	}

	names := labelNames(labels)
	collector := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Name:      metric,
		Help:      help(metric),
	}, names)

	registered, ok := register(m, collector)
	if !ok {
		return nil
	}

	v := &vec[*prometheus.CounterVec]{collector: registered, labelNames: names}
	m.counters[metric] = v

	return v
}

func (m *MetricsCollector) gauge(metric string, labels map[string]string) *vec[*prometheus.GaugeVec] {
	m.mu.Lock()
	defer m.mu.Unlock()

	if v, ok := m.gauges[metric]; ok {
		return v
	}

	names := labelNames(labels)
	collector := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Name:      metric,
		Help:      help(metric),
	}, names)

	registered, ok := register(m, collector)
	if !ok {
		return nil
	}

	v := &vec[*prometheus.GaugeVec]{collector: registered, labelNames: names}
	m.gauges[metric] = v

	return v
}

// register registers collector, or returns the collector registered before under the same descriptor.
func register[C prometheus.Collector](m *MetricsCollector, collector C) (C, bool) {
	err := m.registerer.Register(collector)
	if err == nil {
		return collector, true
	}

	var alreadyRegistered prometheus.AlreadyRegisteredError
	if errors.As(err, &alreadyRegistered) {
		if existing, ok := alreadyRegistered.ExistingCollector.(C); ok {
			return existing, true
		}
	}

	m.errorHandler(err)

	var zero C

	return zero, false
}

func (v *vec[V]) labels(labels map[string]string) prometheus.Labels {
	result := make(prometheus.Labels, len(v.labelNames))
	for _, name := range v.labelNames {
		result[name] = labels[name]
	}

	return result
}

func labelNames(labels map[string]string) []string {
	names := make([]string, 0, len(labels))
	for name := range labels {
		names = append(names, name)
	}

	sort.Strings(names)

	return names
}

func help(metric string) string {
	return strings.ReplaceAll(metric, "_", " ")
}

func exemplarFrom(ctx context.Context) prometheus.Labels {
	spanContext := trace.SpanContextFromContext(ctx)
	if !spanContext.IsSampled() {
		return nil
	}

	return prometheus.Labels{exemplarTraceID: spanContext.TraceID().String()}
}

var (
	_ observability.MetricsCollector           = (*MetricsCollector)(nil)
	_ observability.ContextualMetricsCollector = (*MetricsCollector)(nil)
)

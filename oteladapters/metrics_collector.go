package oteladapters

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/AntonStoeckl/uow-eventbus-go/observability"
)

// MetricsCollector maps the observability metrics to OpenTelemetry instruments, created on first use:
//   - RecordDuration -> Float64Histogram in seconds
//   - IncrementCounter -> Int64Counter
//   - RecordValue -> Float64Gauge
//
// Instrument creation errors go to the global OpenTelemetry error handler through the meter;
// the measurement is dropped.
type MetricsCollector struct {
	meter        metric.Meter
	descriptions map[string]string

	mu         sync.Mutex
	histograms map[string]metric.Float64Histogram
	counters   map[string]metric.Int64Counter
	gauges     map[string]metric.Float64Gauge
}

// MetricsOption configures a MetricsCollector.
type MetricsOption func(*MetricsCollector)

// WithDescription sets the description of the instrument for metricName.
func WithDescription(metricName, description string) MetricsOption {
	return func(m *MetricsCollector) {
		m.descriptions[metricName] = description
	}
}

// NewMetricsCollector creates a collector on meter, typically otel.Meter(name) or a MeterProvider's meter.
func NewMetricsCollector(meter metric.Meter, options ...MetricsOption) *MetricsCollector {
	m := &MetricsCollector{
		meter:        meter,
		descriptions: make(map[string]string),
		histograms:   make(map[string]metric.Float64Histogram),
		counters:     make(map[string]metric.Int64Counter),
		gauges:       make(map[string]metric.Float64Gauge),
	}

	for _, option := range options {
		option(m)
	}

	return m
}

func (m *MetricsCollector) RecordDuration(metricName string, duration time.Duration, labels map[string]string) {
	m.RecordDurationContext(context.Background(), metricName, duration, labels)
}

func (m *MetricsCollector) RecordDurationContext(
	ctx context.Context,
	metricName string,
	duration time.Duration,
	labels map[string]string,
) {
	if histogram := m.histogram(metricName); histogram != nil {
		histogram.Record(ctx, duration.Seconds(), metric.WithAttributes(attributes(labels)...))
	}
}

func (m *MetricsCollector) IncrementCounter(metricName string, labels map[string]string) {
	m.IncrementCounterContext(context.Background(), metricName, labels)
}

func (m *MetricsCollector) IncrementCounterContext(ctx context.Context, metricName string, labels map[string]string) {
	if counter := m.counter(metricName); counter != nil {
		counter.Add(ctx, 1, metric.WithAttributes(attributes(labels)...))
	}
}

func (m *MetricsCollector) RecordValue(metricName string, value float64, labels map[string]string) {
	m.RecordValueContext(context.Background(), metricName, value, labels)
}

func (m *MetricsCollector) RecordValueContext(
	ctx context.Context,
	metricName string,
	value float64,
	labels map[string]string,
) {
	if gauge := m.gauge(metricName); gauge != nil {
		gauge.Record(ctx, value, metric.WithAttributes(attributes(labels)...))
	}
}

func (m *MetricsCollector) histogram(name string) metric.Float64Histogram {
	m.mu.Lock()
	defer m.mu.Unlock()

	if histogram, ok := m.histograms[name]; ok {
		return histogram
	}

	histogram, err := m.meter.Float64Histogram(name, metric.WithDescription(m.description(name)), metric.WithUnit("s"))
	if err != nil {
		return nil
	}

	m.histograms[name] = histogram

	return histogram
}

func (m *MetricsCollector) counter(name string) metric.Int64Counter {
	m.mu.Lock()
	defer m.mu.Unlock()

	if counter, ok := m.counters[name]; ok {
		return counter
	}

	counter, err := m.meter.Int64Counter(name, metric.WithDescription(m.description(name)))
	if err != nil {
		return nil
	}

	m.counters[name] = counter

	return counter
}

func (m *MetricsCollector) gauge(name string) metric.Float64Gauge {
	m.mu.Lock()
	defer m.mu.Unlock()

	if gauge, ok := m.gauges[name]; ok {
		return gauge
	}

	gauge, err := m.meter.Float64Gauge(name, metric.WithDescription(m.description(name)))
	if err != nil {
		return nil
	}

	m.gauges[name] = gauge

	return gauge
}

// description falls back to the metric name with underscores turned into spaces.
func (m *MetricsCollector) description(name string) string {
	if description, ok := m.descriptions[name]; ok {
		return description
	}

	return strings.ReplaceAll(name, "_", " ")
}

func attributes(labels map[string]string) []attribute.KeyValue {
	keys := make([]string, 0, len(labels))
	for key := range labels {
		keys = append(keys, key)
	}

	sort.Strings(keys)

	attrs := make([]attribute.KeyValue, 0, len(labels))
	for _, key := range keys {
		attrs = append(attrs, attribute.String(key, labels[key]))
	}

	return attrs
}

var (
	_ observability.MetricsCollector           = (*MetricsCollector)(nil)
	_ observability.ContextualMetricsCollector = (*MetricsCollector)(nil)
)

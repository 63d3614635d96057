package oteladapters_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"github.com/AntonStoeckl/uow-eventbus-go/oteladapters"
)

func givenMetricsCollector(options ...oteladapters.MetricsOption) (*oteladapters.MetricsCollector, *sdkmetric.ManualReader) {
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))

	return oteladapters.NewMetricsCollector(provider.Meter("test"), options...), reader
}

func collect(t *testing.T, reader *sdkmetric.ManualReader) metricdata.ResourceMetrics {
	var resourceMetrics metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &resourceMetrics), "error in collecting metrics")

	return resourceMetrics
}

func findMetric(t *testing.T, resourceMetrics metricdata.ResourceMetrics, name string) metricdata.Metrics {
	for _, scopeMetrics := range resourceMetrics.ScopeMetrics {
		for _, m := range scopeMetrics.Metrics {
			if m.Name == name {
				return m
			}
		}
	}

	require.Failf(t, "metric not found", "metric %q was not recorded", name)

	return metricdata.Metrics{}
}

func Test_MetricsCollector_Should_RecordDurationsAsSecondHistograms(t *testing.T) {
	// setup
	collector, reader := givenMetricsCollector()
	labels := map[string]string{"isolation_level": "read_committed", "status": "success"}

	// act
	collector.RecordDuration("unitofwork_transaction_duration_seconds", 150*time.Millisecond, labels)
	collector.RecordDurationContext(context.Background(), "unitofwork_transaction_duration_seconds", 50*time.Millisecond, labels)

	// assert
	m := findMetric(t, collect(t, reader), "unitofwork_transaction_duration_seconds")
	assert.Equal(t, "s", m.Unit)

	histogram, ok := m.Data.(metricdata.Histogram[float64])
	require.True(t, ok, "expected a float64 histogram")
	require.Len(t, histogram.DataPoints, 1)

	point := histogram.DataPoints[0]
	assert.Equal(t, uint64(2), point.Count)
	assert.InDelta(t, 0.2, point.Sum, 0.001)

	expected := attribute.NewSet(
		attribute.String("isolation_level", "read_committed"),
		attribute.String("status", "success"),
	)
	assert.True(t, point.Attributes.Equals(&expected))
}

func Test_MetricsCollector_Should_CountPerLabelSet(t *testing.T) {
	// setup
	collector, reader := givenMetricsCollector()

	// act
	collector.IncrementCounter("eventbus_publish_total", map[string]string{"status": "success"})
	collector.IncrementCounter("eventbus_publish_total", map[string]string{"status": "success"})
	collector.IncrementCounterContext(context.Background(), "eventbus_publish_total", map[string]string{"status": "error"})

	// assert
	sum, ok := findMetric(t, collect(t, reader), "eventbus_publish_total").Data.(metricdata.Sum[int64])
	require.True(t, ok, "expected an int64 sum")
	require.Len(t, sum.DataPoints, 2)
	assert.True(t, sum.IsMonotonic)

	byStatus := map[string]int64{}
	for _, point := range sum.DataPoints {
		status, _ := point.Attributes.Value("status")
		byStatus[status.AsString()] = point.Value
	}

	assert.Equal(t, map[string]int64{"success": 2, "error": 1}, byStatus)
}

func Test_MetricsCollector_Should_KeepTheLastGaugeValue(t *testing.T) {
	// setup
	collector, reader := givenMetricsCollector()

	// act
	collector.RecordValue("unitofwork_branches_per_transaction", 3, nil)
	collector.RecordValueContext(context.Background(), "unitofwork_branches_per_transaction", 2, nil)

	// assert
	gauge, ok := findMetric(t, collect(t, reader), "unitofwork_branches_per_transaction").Data.(metricdata.Gauge[float64])
	require.True(t, ok, "expected a float64 gauge")
	require.Len(t, gauge.DataPoints, 1)
	assert.InDelta(t, 2.0, gauge.DataPoints[0].Value, 0.0001)
}

func Test_MetricsCollector_Should_UseConfiguredDescriptions(t *testing.T) {
	// setup
	collector, reader := givenMetricsCollector(
		oteladapters.WithDescription("eventbus_publish_total", "Published events"),
	)

	// act
	collector.IncrementCounter("eventbus_publish_total", nil)
	collector.IncrementCounter("eventbus_handler_failures_total", nil)

	// assert
	resourceMetrics := collect(t, reader)
	assert.Equal(t, "Published events", findMetric(t, resourceMetrics, "eventbus_publish_total").Description)
	assert.Equal(t, "eventbus handler failures total", findMetric(t, resourceMetrics, "eventbus_handler_failures_total").Description)
}

func Test_MetricsCollector_Should_BeSafeForConcurrentUse(t *testing.T) {
	// setup
	collector, reader := givenMetricsCollector()

	var wg sync.WaitGroup

	// act
	for range 20 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			collector.IncrementCounter("sqlengine_operation_errors_total", map[string]string{"operation": "exec"})
		}()
	}

	wg.Wait()

	// assert
	sum, ok := findMetric(t, collect(t, reader), "sqlengine_operation_errors_total").Data.(metricdata.Sum[int64])
	require.True(t, ok)
	require.Len(t, sum.DataPoints, 1)
	assert.Equal(t, int64(20), sum.DataPoints[0].Value)
}

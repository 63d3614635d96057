// Package oteladapters implements the observability interfaces with OpenTelemetry.
//
//	bus, err := eventbus.NewBus(
//		eventbus.WithContextualLogger(oteladapters.NewSlogBridgeLogger("orders")),
//		eventbus.WithMetrics(oteladapters.NewMetricsCollector(otel.Meter("orders"))),
//		eventbus.WithTracing(oteladapters.NewTracingCollector(otel.Tracer("orders"))),
//	)
//
// The same values plug into unitofwork and sqlengine options.
package oteladapters

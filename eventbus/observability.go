package eventbus

import (
	"context"
	"math"
	"reflect"
	"strconv"
	"time"

	"github.com/AntonStoeckl/uow-eventbus-go/observability"
)

const (
	logMsgHandlerRegistered       = "eventbus: handler registered"
	logMsgHandlerUnregistered     = "eventbus: handler unregistered"
	logMsgAllHandlersUnregistered = "eventbus: all handlers unregistered"
	logMsgEventDispatched         = "eventbus: event dispatched"
	logMsgHandlerFailed           = "eventbus: event handler failed"
	logAttrError                  = "error"
	logAttrEventType              = "event_type"
	logAttrHandler                = "handler"
	logAttrHandlerCount           = "handler_count"
	logAttrToken                  = "token"
	logAttrDurationMS             = "duration_ms"

	metricPublishDuration = "eventbus_publish_duration_seconds"
	metricPublishTotal    = "eventbus_publish_total"
	metricHandlerFailures = "eventbus_handler_failures_total"
	metricHandlersInvoked = "eventbus_handlers_per_publish"
	spanNamePublish       = "eventbus.publish"
	spanAttrEventType     = "event_type"
	spanAttrHandlerCount  = "handler_count"
	spanAttrFailureCount  = "failure_count"
	labelEventType        = "event_type"
	labelStatus           = "status"
)

func (b *Bus) logDebug(ctx context.Context, msg string, args ...any) {
	if b.logger != nil {
		b.logger.Debug(msg, args...)
	}

	if b.contextualLogger != nil {
		b.contextualLogger.DebugContext(ctx, msg, args...)
	}
}

func (b *Bus) logError(ctx context.Context, msg string, err error, args ...any) {
	allArgs := []any{logAttrError, err.Error()}
	allArgs = append(allArgs, args...)

	if b.logger != nil {
		b.logger.Error(msg, allArgs...)
	}

	if b.contextualLogger != nil {
		b.contextualLogger.ErrorContext(ctx, msg, allArgs...)
	}
}

func (b *Bus) recordPublishMetrics(
	ctx context.Context,
	eventType reflect.Type,
	handlerCount int,
	failureCount int,
	duration time.Duration,
) {
	if b.metricsCollector == nil {
		return
	}

	status := observability.StatusSuccess
	if failureCount > 0 {
		status = observability.StatusError
	}

	labels := map[string]string{
		labelEventType: typeName(eventType),
		labelStatus:    status,
	}

	observability.RecordDuration(ctx, b.metricsCollector, metricPublishDuration, duration, labels)
	observability.IncrementCounter(ctx, b.metricsCollector, metricPublishTotal, labels)
	observability.RecordValue(ctx, b.metricsCollector, metricHandlersInvoked, float64(handlerCount), labels)

	for range failureCount {
		observability.IncrementCounter(ctx, b.metricsCollector, metricHandlerFailures, map[string]string{
			labelEventType: typeName(eventType),
		})
	}
}

func (b *Bus) startPublishSpan(ctx context.Context, eventType reflect.Type) (context.Context, observability.SpanContext) {
	if b.tracingCollector == nil {
		return ctx, nil
	}

	return b.tracingCollector.StartSpan(ctx, spanNamePublish, map[string]string{
		spanAttrEventType: typeName(eventType),
	})
}

func (b *Bus) finishPublishSpan(span observability.SpanContext, status string, handlerCount, failureCount int) {
	if b.tracingCollector == nil || span == nil {
		return
	}

	b.tracingCollector.FinishSpan(span, status, map[string]string{
		spanAttrHandlerCount: strconv.Itoa(handlerCount),
		spanAttrFailureCount: strconv.Itoa(failureCount),
	})
}

// toMilliseconds converts a time.Duration to float64 milliseconds with 3 decimal places.
func toMilliseconds(d time.Duration) float64 {
	return math.Round(float64(d.Nanoseconds())/1e6*1000) / 1000
}

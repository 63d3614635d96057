package sqlengine

import (
	"context"
	"math"
	"time"

	"github.com/AntonStoeckl/uow-eventbus-go/observability"
)

const (
	logMsgSQLExecuted    = "sqlengine: executed sql"
	logMsgDatabaseOpened = "sqlengine: database opened"
	logMsgCloseFailed    = "sqlengine: closing database failed"
	logAttrError         = "error"
	logAttrQuery         = "query"
	logAttrOperation     = "operation"
	logAttrDialect       = "dialect"
	logAttrDurationMS    = "duration_ms"

	metricOperationDuration = "sqlengine_operation_duration_seconds"
	metricOperationErrors   = "sqlengine_operation_errors_total"
	labelOperation          = "operation"
	labelStatus             = "status"

	operationBegin    = "begin"
	operationCommit   = "commit"
	operationRollback = "rollback"
	operationExec     = "exec"
	operationQuery    = "query"
)

func (e *Engine) logDebug(ctx context.Context, msg string, args ...any) {
	if e.logger != nil {
		e.logger.Debug(msg, args...)
	}

	if e.contextualLogger != nil {
		e.contextualLogger.DebugContext(ctx, msg, args...)
	}
}

func (e *Engine) logWarn(ctx context.Context, msg string, args ...any) {
	if e.logger != nil {
		e.logger.Warn(msg, args...)
	}

	if e.contextualLogger != nil {
		e.contextualLogger.WarnContext(ctx, msg, args...)
	}
}

func (e *Engine) observeStatement(ctx context.Context, operation, query string, start time.Time, err error) {
	e.logDebug(ctx, logMsgSQLExecuted,
		logAttrOperation, operation,
		logAttrQuery, query,
		logAttrDurationMS, toMilliseconds(time.Since(start)),
	)
	e.observe(ctx, operation, start, err)
}

func (e *Engine) observe(ctx context.Context, operation string, start time.Time, err error) {
	if e.metricsCollector == nil {
		return
	}

	status := observability.StatusSuccess
	if err != nil {
		status = observability.StatusError
	}

	labels := map[string]string{labelOperation: operation, labelStatus: status}
	observability.RecordDuration(ctx, e.metricsCollector, metricOperationDuration, time.Since(start), labels)

	if err != nil {
		observability.IncrementCounter(ctx, e.metricsCollector, metricOperationErrors, map[string]string{
			labelOperation: operation,
		})
	}
}

// toMilliseconds converts a time.Duration to float64 milliseconds with 3 decimal places.
func toMilliseconds(d time.Duration) float64 {
	return math.Round(float64(d.Nanoseconds())/1e6*1000) / 1000
}

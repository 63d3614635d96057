package unitofwork

import (
	"context"
	"math"
	"strconv"
	"time"

	"github.com/AntonStoeckl/uow-eventbus-go/observability"
)

const (
	logMsgTransactionStarted   = "unitofwork: transaction started"
	logMsgBranchEnlisted       = "unitofwork: branch enlisted"
	logMsgTransactionCommitted = "unitofwork: transaction committed"
	logMsgTransactionAborted   = "unitofwork: transaction rolled back on commit"
	logMsgTransactionDisposed  = "unitofwork: transaction rolled back on dispose"
	logMsgCommitFailed         = "unitofwork: commit failed"
	logMsgRollbackFailed       = "unitofwork: rollback failed"
	logMsgAfterCommitFailed    = "unitofwork: after-commit hook failed"
	logMsgRetrying             = "unitofwork: retrying after serialization failure"
	logAttrError               = "error"
	logAttrTransactionID       = "transaction_id"
	logAttrConnectionString    = "connection_string"
	logAttrIsolationLevel      = "isolation_level"
	logAttrScope               = "scope"
	logAttrBranchCount         = "branch_count"
	logAttrReason              = "reason"
	logAttrAttempt             = "attempt"
	logAttrDurationMS          = "duration_ms"

	metricTransactionDuration = "unitofwork_transaction_duration_seconds"
	metricCommitTotal         = "unitofwork_commit_total"
	metricRollbackTotal       = "unitofwork_rollback_total"
	metricBranchesPerCommit   = "unitofwork_branches_per_transaction"
	metricRetryTotal          = "unitofwork_retries_total"
	metricRetryDelay          = "unitofwork_retry_delay_seconds"
	metricMaxRetriesReached   = "unitofwork_max_retries_reached_total"
	spanNameCommit            = "unitofwork.commit"
	spanNameRollback          = "unitofwork.rollback"
	spanAttrTransactionID     = "transaction_id"
	spanAttrIsolationLevel    = "isolation_level"
	spanAttrBranchCount       = "branch_count"
	labelIsolationLevel       = "isolation_level"
	labelStatus               = "status"
	labelReason               = "reason"
	labelAttempt              = "attempt_number"
	labelErrorType            = "error_type"

	reasonDisposed = "disposed"
	reasonAborted  = "aborted"
	reasonTimeout  = "timeout"
	reasonFailed   = "commit_failed"
)

func (s *settings) logDebug(ctx context.Context, msg string, args ...any) {
	if s.logger != nil {
		s.logger.Debug(msg, args...)
	}

	if s.contextualLogger != nil {
		s.contextualLogger.DebugContext(ctx, msg, args...)
	}
}

func (s *settings) logInfo(ctx context.Context, msg string, args ...any) {
	if s.logger != nil {
		s.logger.Info(msg, args...)
	}

	if s.contextualLogger != nil {
		s.contextualLogger.InfoContext(ctx, msg, args...)
	}
}

func (s *settings) logWarn(ctx context.Context, msg string, args ...any) {
	if s.logger != nil {
		s.logger.Warn(msg, args...)
	}

	if s.contextualLogger != nil {
		s.contextualLogger.WarnContext(ctx, msg, args...)
	}
}

func (s *settings) logError(ctx context.Context, msg string, err error, args ...any) {
	allArgs := []any{logAttrError, err.Error()}
	allArgs = append(allArgs, args...)

	if s.logger != nil {
		s.logger.Error(msg, allArgs...)
	}

	if s.contextualLogger != nil {
		s.contextualLogger.ErrorContext(ctx, msg, allArgs...)
	}
}

func (s *settings) recordCommit(ctx context.Context, tx *Transaction, status string, branchCount int) {
	if s.metricsCollector == nil {
		return
	}

	labels := map[string]string{
		labelIsolationLevel: tx.IsolationLevel().String(),
		labelStatus:         status,
	}

	observability.RecordDuration(ctx, s.metricsCollector, metricTransactionDuration, time.Since(tx.StartedAt()), labels)
	observability.IncrementCounter(ctx, s.metricsCollector, metricCommitTotal, labels)
	observability.RecordValue(ctx, s.metricsCollector, metricBranchesPerCommit, float64(branchCount), labels)
}

func (s *settings) recordRollback(ctx context.Context, tx *Transaction, reason string) {
	if s.metricsCollector == nil {
		return
	}

	observability.RecordDuration(ctx, s.metricsCollector, metricTransactionDuration, time.Since(tx.StartedAt()), map[string]string{
		labelIsolationLevel: tx.IsolationLevel().String(),
		labelStatus:         observability.StatusError,
	})
	observability.IncrementCounter(ctx, s.metricsCollector, metricRollbackTotal, map[string]string{
		labelIsolationLevel: tx.IsolationLevel().String(),
		labelReason:         reason,
	})
}

func (s *settings) startSpan(ctx context.Context, name string, tx *Transaction) (context.Context, observability.SpanContext) {
	if s.tracingCollector == nil {
		return ctx, nil
	}

	return s.tracingCollector.StartSpan(ctx, name, map[string]string{
		spanAttrTransactionID:  tx.ID().String(),
		spanAttrIsolationLevel: tx.IsolationLevel().String(),
	})
}

func (s *settings) finishSpan(span observability.SpanContext, err error, branchCount int) {
	if s.tracingCollector == nil || span == nil {
		return
	}

	status := observability.StatusSuccess
	if err != nil {
		status = observability.StatusError
	}

	s.tracingCollector.FinishSpan(span, status, map[string]string{
		spanAttrBranchCount: strconv.Itoa(branchCount),
	})
}

// toMilliseconds converts a time.Duration to float64 milliseconds with 3 decimal places.
func toMilliseconds(d time.Duration) float64 {
	return math.Round(float64(d.Nanoseconds())/1e6*1000) / 1000
}

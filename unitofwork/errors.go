package unitofwork

import "errors"

var (
	// ErrInvalidOptions is returned when options hold unknown enum values or a negative timeout.
	ErrInvalidOptions = errors.New("invalid unit of work options")

	// ErrNilEngine is returned when a strategy or factory is created without an engine.
	ErrNilEngine = errors.New("engine must not be nil")

	// ErrNilResolver is returned when CreateContext is called without a resolver.
	ErrNilResolver = errors.New("context resolver must not be nil")

	// ErrTransactionAlreadyStarted is returned when options are changed after the transaction started.
	ErrTransactionAlreadyStarted = errors.New("transaction already started")

	// ErrTransactionCompleted is returned when a committed or rolled back strategy is used again.
	ErrTransactionCompleted = errors.New("transaction already completed")

	// ErrDisposed is returned when a disposed strategy or unit is used.
	ErrDisposed = errors.New("unit of work already disposed")

	// ErrBeginFailed is joined with the engine error when a transaction branch could not be started.
	ErrBeginFailed = errors.New("beginning the transaction failed")

	// ErrConnectionFailed is joined with the engine error when a non-transactional connection could not be acquired.
	ErrConnectionFailed = errors.New("acquiring a connection failed")

	// ErrContextResolutionFailed is joined with the resolver error when a persistence context could not be created.
	ErrContextResolutionFailed = errors.New("resolving the persistence context failed")

	// ErrCommitFailed is joined with the engine error when committing failed.
	ErrCommitFailed = errors.New("committing the transaction failed")

	// ErrPartialCommit is joined with ErrCommitFailed when some branches were already committed.
	ErrPartialCommit = errors.New("transaction was partially committed")

	// ErrRollbackFailed is joined with the engine error when rolling back failed.
	ErrRollbackFailed = errors.New("rolling back the transaction failed")

	// ErrTransactionAborted is returned from Commit when a participant disposed its unit without committing.
	ErrTransactionAborted = errors.New("transaction was aborted by a participant")

	// ErrTransactionTimedOut is returned from Commit when the transaction exceeded its timeout.
	ErrTransactionTimedOut = errors.New("transaction timed out")

	// ErrSerializationFailure is joined with engine errors that signal a retryable serialization conflict.
	ErrSerializationFailure = errors.New("serialization failure")

	// ErrUnsupportedIsolationLevel is returned by engines that cannot provide the requested isolation level.
	ErrUnsupportedIsolationLevel = errors.New("unsupported isolation level")

	// ErrIsolationLevelMismatch is returned when a unit joins an ambient unit with a different isolation level.
	ErrIsolationLevelMismatch = errors.New("isolation level differs from the ambient unit of work")

	// ErrNoUnitOfWork is returned when a unit of work is required but the context carries none.
	ErrNoUnitOfWork = errors.New("no unit of work in context")

	// ErrAfterCommitHookFailed is joined with hook errors; the transaction itself was committed.
	ErrAfterCommitHookFailed = errors.New("after-commit hook failed")

	// ErrInvalidMaxAttempts is returned when max attempts are not positive.
	ErrInvalidMaxAttempts = errors.New("max attempts must be positive")

	// ErrNegativeBaseDelay is returned when the base delay is negative.
	ErrNegativeBaseDelay = errors.New("base delay must not be negative")

	// ErrInvalidJitterFactor is returned when the jitter factor is not between 0.0 and 1.0.
	ErrInvalidJitterFactor = errors.New("jitter factor must be between 0.0 and 1.0")
)

package unitofwork

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/AntonStoeckl/uow-eventbus-go/observability"
)

// State is the lifecycle state of a TransactionStrategy.
type State int

const (
	StateUninitialized State = iota
	StateOptionsSet
	StateTransactionStarted
	StateCommitted
	StateRolledBack
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateOptionsSet:
		return "options_set"
	case StateTransactionStarted:
		return "transaction_started"
	case StateCommitted:
		return "committed"
	case StateRolledBack:
		return "rolled_back"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// TransactionStrategy owns the ambient transaction of one unit of work and every
// persistence context enlisted in it, and commits or rolls them back together.
//
// The transaction starts lazily with the first CreateContext call. Methods are safe to call from
// several goroutines, but a strategy is meant to serve one business operation.
type TransactionStrategy struct {
	mu       sync.Mutex
	engine   Engine
	settings settings

	options     Options
	state       State
	disposed    bool
	doomed      bool
	transaction *Transaction
	conns       map[string]DBTX
}

// NewTransactionStrategy creates a strategy in StateUninitialized.
func NewTransactionStrategy(engine Engine, options ...Option) (*TransactionStrategy, error) {
	if engine == nil {
		return nil, ErrNilEngine
	}

	s, err := newSettings(options)
	if err != nil {
		return nil, err
	}

	return &TransactionStrategy{engine: engine, settings: s}, nil
}

// InitOptions sets the options for the transaction. It does not start the transaction
// and may be called again until the transaction started.
func (s *TransactionStrategy) InitOptions(options Options) error {
	if err := options.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.disposed {
		return ErrDisposed
	}

	switch s.state {
	case StateTransactionStarted:
		return ErrTransactionAlreadyStarted
	case StateCommitted, StateRolledBack:
		return ErrTransactionCompleted
	}

	s.options = options
	s.state = StateOptionsSet

	return nil
}

// State returns the current lifecycle state.
func (s *TransactionStrategy) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.state
}

// Disposed reports whether Dispose was called.
func (s *TransactionStrategy) Disposed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.disposed
}

// Options returns the options with defaults applied.
func (s *TransactionStrategy) Options() Options {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.options.WithDefaults(s.settings.defaults)
}

// Transaction returns the ambient transaction, or nil if it did not start yet.
func (s *TransactionStrategy) Transaction() *Transaction {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.transaction
}

// CreateContext returns a persistence context built by resolver and enlisted in the strategy's transaction.
//
// The first call starts the transaction. Later calls reuse it, and contexts for the same connection
// string share one branch. A resolver failure leaves the transaction open.
func CreateContext[T any](
	ctx context.Context,
	strategy *TransactionStrategy,
	connectionString string,
	resolver Resolver[T],
) (T, error) {
	var zero T

	if resolver == nil {
		return zero, ErrNilResolver
	}

	enlistment, err := strategy.enlist(ctx, connectionString)
	if err != nil {
		return zero, err
	}

	persistenceContext, err := resolver(ctx, enlistment)
	if err != nil {
		return zero, errors.Join(ErrContextResolutionFailed, err)
	}

	return persistenceContext, nil
}

func (s *TransactionStrategy) enlist(ctx context.Context, connectionString string) (Enlistment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.disposed {
		return Enlistment{}, ErrDisposed
	}

	if s.state == StateCommitted || s.state == StateRolledBack {
		return Enlistment{}, ErrTransactionCompleted
	}

	options := s.options.WithDefaults(s.settings.defaults)

	if options.Scope == ScopeSuppress {
		return s.enlistSuppressed(ctx, connectionString)
	}

	if s.transaction == nil {
		return s.startTransaction(ctx, connectionString, options)
	}

	tx := s.transaction
	if tx.TimedOut() {
		return Enlistment{}, ErrTransactionTimedOut
	}

	if branch, ok := tx.branchFor(connectionString); ok {
		return Enlistment{ConnectionString: connectionString, DB: branch, Transaction: tx}, nil
	}

	branch, err := s.engine.Begin(tx.ctx, connectionString, TxOptions{IsolationLevel: options.IsolationLevel})
	if err != nil {
		return Enlistment{}, errors.Join(ErrBeginFailed, err)
	}

	tx.enlist(connectionString, branch)

	s.settings.logDebug(ctx, logMsgBranchEnlisted,
		logAttrTransactionID, tx.ID().String(),
		logAttrConnectionString, connectionString,
		logAttrBranchCount, tx.BranchCount(),
	)

	return Enlistment{ConnectionString: connectionString, DB: branch, Transaction: tx}, nil
}

// startTransaction must be called with the lock held. A failing first branch leaves no transaction behind.
func (s *TransactionStrategy) startTransaction(
	ctx context.Context,
	connectionString string,
	options Options,
) (Enlistment, error) {
	tx := newTransaction(ctx, options)

	branch, err := s.engine.Begin(tx.ctx, connectionString, TxOptions{IsolationLevel: options.IsolationLevel})
	if err != nil {
		tx.release()
		return Enlistment{}, errors.Join(ErrBeginFailed, err)
	}

	tx.enlist(connectionString, branch)
	if s.doomed {
		tx.SetRollbackOnly()
	}

	s.options = options
	s.transaction = tx
	s.state = StateTransactionStarted

	s.settings.logDebug(ctx, logMsgTransactionStarted,
		logAttrTransactionID, tx.ID().String(),
		logAttrConnectionString, connectionString,
		logAttrIsolationLevel, options.IsolationLevel.String(),
	)

	return Enlistment{ConnectionString: connectionString, DB: branch, Transaction: tx}, nil
}

func (s *TransactionStrategy) enlistSuppressed(ctx context.Context, connectionString string) (Enlistment, error) {
	if conn, ok := s.conns[connectionString]; ok {
		return Enlistment{ConnectionString: connectionString, DB: conn}, nil
	}

	conn, err := s.engine.Conn(ctx, connectionString)
	if err != nil {
		return Enlistment{}, errors.Join(ErrConnectionFailed, err)
	}

	if s.conns == nil {
		s.conns = make(map[string]DBTX)
	}
	s.conns[connectionString] = conn

	if s.state == StateUninitialized {
		s.state = StateOptionsSet
	}

	return Enlistment{ConnectionString: connectionString, DB: conn}, nil
}

// Commit commits all branches of the transaction. Without a started transaction it does nothing.
//
// A doomed transaction is rolled back and fails with ErrTransactionAborted, an expired one with
// ErrTransactionTimedOut. Branches commit in enlistment order; if one fails the rest roll back.
func (s *TransactionStrategy) Commit(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.disposed {
		return ErrDisposed
	}

	switch s.state {
	case StateCommitted, StateRolledBack:
		return ErrTransactionCompleted
	case StateTransactionStarted:
	default:
		return nil
	}

	tx := s.transaction
	defer tx.release()

	if tx.RollbackOnly() {
		return s.rollbackOnCommit(ctx, tx, ErrTransactionAborted, reasonAborted)
	}

	if tx.TimedOut() {
		return s.rollbackOnCommit(ctx, tx, ErrTransactionTimedOut, reasonTimeout)
	}

	start := time.Now()
	spanCtx, span := s.settings.startSpan(ctx, spanNameCommit, tx)

	committed, err := tx.commit(spanCtx)
	duration := time.Since(start)
	s.settings.finishSpan(span, err, tx.BranchCount())

	if err != nil {
		s.state = StateRolledBack
		s.settings.logError(spanCtx, logMsgCommitFailed, err,
			logAttrTransactionID, tx.ID().String(),
			logAttrBranchCount, tx.BranchCount(),
		)
		s.settings.recordRollback(spanCtx, tx, reasonFailed)

		return err
	}

	s.state = StateCommitted
	s.settings.logInfo(spanCtx, logMsgTransactionCommitted,
		logAttrTransactionID, tx.ID().String(),
		logAttrBranchCount, committed,
		logAttrDurationMS, toMilliseconds(duration),
	)
	s.settings.recordCommit(spanCtx, tx, observability.StatusSuccess, committed)

	return nil
}

// rollbackOnCommit must be called with the lock held.
func (s *TransactionStrategy) rollbackOnCommit(ctx context.Context, tx *Transaction, cause error, reason string) error {
	rollbackErr := tx.rollback(context.WithoutCancel(ctx))
	s.state = StateRolledBack

	s.settings.logWarn(ctx, logMsgTransactionAborted,
		logAttrTransactionID, tx.ID().String(),
		logAttrReason, reason,
	)
	s.settings.recordRollback(ctx, tx, reason)

	if rollbackErr != nil {
		s.settings.logError(ctx, logMsgRollbackFailed, rollbackErr, logAttrTransactionID, tx.ID().String())
	}

	return errors.Join(cause, rollbackErr)
}

// Dispose rolls back a transaction that was not committed and marks the strategy disposed.
// Calling it again does nothing.
func (s *TransactionStrategy) Dispose(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.disposed {
		return nil
	}

	s.disposed = true
	s.conns = nil

	if s.state != StateTransactionStarted {
		return nil
	}

	tx := s.transaction
	defer tx.release()

	spanCtx, span := s.settings.startSpan(ctx, spanNameRollback, tx)
	err := tx.rollback(context.WithoutCancel(spanCtx))
	s.settings.finishSpan(span, err, tx.BranchCount())

	s.state = StateRolledBack
	s.settings.logDebug(spanCtx, logMsgTransactionDisposed,
		logAttrTransactionID, tx.ID().String(),
		logAttrBranchCount, tx.BranchCount(),
	)
	s.settings.recordRollback(spanCtx, tx, reasonDisposed)

	if err != nil {
		s.settings.logError(spanCtx, logMsgRollbackFailed, err, logAttrTransactionID, tx.ID().String())
		return err
	}

	return nil
}

// markRollbackOnly dooms the current or future transaction; participants use it when they fail.
func (s *TransactionStrategy) markRollbackOnly() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.doomed = true
	if s.transaction != nil {
		s.transaction.SetRollbackOnly()
	}
}

package unitofwork

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Transaction is the ambient transaction of a TransactionStrategy.
// It holds one branch per connection string, in enlistment order.
type Transaction struct {
	id        uuid.UUID
	options   Options
	startedAt time.Time

	ctx    context.Context
	cancel context.CancelFunc

	mu           sync.Mutex
	branches     []*branchEntry
	rollbackOnly bool
}

type branchEntry struct {
	connectionString string
	branch           Branch
}

// newTransaction detaches from the caller's cancellation; only the timeout ends the transaction.
func newTransaction(ctx context.Context, options Options) *Transaction {
	txCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), options.Timeout)

	return &Transaction{
		id:        uuid.New(),
		options:   options,
		startedAt: time.Now(),
		ctx:       txCtx,
		cancel:    cancel,
	}
}

// ID returns the unique id of the transaction.
func (t *Transaction) ID() uuid.UUID {
	return t.id
}

// Options returns the resolved options the transaction was started with.
func (t *Transaction) Options() Options {
	return t.options
}

// IsolationLevel returns the isolation level of all branches.
func (t *Transaction) IsolationLevel() IsolationLevel {
	return t.options.IsolationLevel
}

// StartedAt returns when the transaction started.
func (t *Transaction) StartedAt() time.Time {
	return t.startedAt
}

// Deadline returns when the transaction times out.
func (t *Transaction) Deadline() time.Time {
	deadline, _ := t.ctx.Deadline()
	return deadline
}

// TimedOut reports whether the transaction exceeded its timeout.
func (t *Transaction) TimedOut() bool {
	return errors.Is(t.ctx.Err(), context.DeadlineExceeded)
}

// ConnectionStrings returns the connection strings of all enlisted branches in enlistment order.
func (t *Transaction) ConnectionStrings() []string {
	t.mu.Lock()
	defer t.mu.Unlock()

	result := make([]string, 0, len(t.branches))
	for _, entry := range t.branches {
		result = append(result, entry.connectionString)
	}

	return result
}

// BranchCount returns the number of enlisted branches.
func (t *Transaction) BranchCount() int {
	t.mu.Lock()
	defer t.mu.Unlock()

	return len(t.branches)
}

// SetRollbackOnly dooms the transaction; a later commit rolls back and fails with ErrTransactionAborted.
func (t *Transaction) SetRollbackOnly() {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.rollbackOnly = true
}

// RollbackOnly reports whether the transaction is doomed.
func (t *Transaction) RollbackOnly() bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	return t.rollbackOnly
}

func (t *Transaction) branchFor(connectionString string) (Branch, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	for _, entry := range t.branches {
		if entry.connectionString == connectionString {
			return entry.branch, true
		}
	}

	return nil, false
}

func (t *Transaction) enlist(connectionString string, branch Branch) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.branches = append(t.branches, &branchEntry{connectionString: connectionString, branch: branch})
}

func (t *Transaction) snapshot() []*branchEntry {
	t.mu.Lock()
	defer t.mu.Unlock()

	return append([]*branchEntry(nil), t.branches...)
}

// commit commits the branches in enlistment order. After the first failure the remaining
// branches are rolled back; committed branches cannot be undone and yield ErrPartialCommit.
func (t *Transaction) commit(ctx context.Context) (committed int, err error) {
	branches := t.snapshot()

	for i, entry := range branches {
		if commitErr := entry.branch.Commit(ctx); commitErr != nil {
			rollbackErr := rollbackBranches(ctx, branches[i+1:])

			errs := []error{ErrCommitFailed}
			if i > 0 {
				errs = append(errs, ErrPartialCommit)
			}
			errs = append(errs, commitErr)
			if rollbackErr != nil {
				errs = append(errs, rollbackErr)
			}

			return i, errors.Join(errs...)
		}
	}

	return len(branches), nil
}

func (t *Transaction) rollback(ctx context.Context) error {
	return rollbackBranches(ctx, t.snapshot())
}

func (t *Transaction) release() {
	t.cancel()
}

func rollbackBranches(ctx context.Context, branches []*branchEntry) error {
	var errs []error
	for _, entry := range branches {
		if err := entry.branch.Rollback(ctx); err != nil {
			errs = append(errs, err)
		}
	}

	if len(errs) == 0 {
		return nil
	}

	return errors.Join(append([]error{ErrRollbackFailed}, errs...)...)
}

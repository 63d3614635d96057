package unitofwork

import "context"

// Result is the outcome of a statement that does not return rows.
type Result interface {
	RowsAffected() (int64, error)
}

// Rows is a forward-only cursor over a query result.
type Rows interface {
	Next() bool
	Scan(dest ...any) error
	Columns() ([]string, error)
	Close() error
	Err() error
}

// DBTX is the minimal statement interface shared by transactional and non-transactional connections.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (Rows, error)
}

// Branch is the part of a transaction that lives on one connection string.
type Branch interface {
	DBTX
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

// TxOptions are passed to the engine when a branch starts.
type TxOptions struct {
	IsolationLevel IsolationLevel
}

// Engine is the persistence engine a TransactionStrategy coordinates.
// Connection strings are opaque to the strategy; engines typically resolve them to pools.
type Engine interface {
	// Begin starts a transaction branch. The context bounds the lifetime of the branch.
	Begin(ctx context.Context, connectionString string, options TxOptions) (Branch, error)

	// Conn returns a non-transactional connection, used for units with ScopeSuppress.
	Conn(ctx context.Context, connectionString string) (DBTX, error)
}

// Enlistment is what a Resolver receives to build a persistence context.
type Enlistment struct {
	ConnectionString string

	// DB runs statements inside the transaction branch, or without a transaction for suppressed units.
	DB DBTX

	// Transaction is nil for suppressed units.
	Transaction *Transaction
}

// Resolver builds a persistence context of type T on top of an Enlistment.
type Resolver[T any] func(ctx context.Context, enlistment Enlistment) (T, error)

package adapters

import (
	"context"
	"database/sql"
)

// DBExecutor runs statements, either on a pool or inside a transaction.
type DBExecutor interface {
	Query(ctx context.Context, query string, args ...any) (DBRows, error)
	Exec(ctx context.Context, query string, args ...any) (DBResult, error)
}

// DBAdapter defines the interface for database operations needed by the engine.
type DBAdapter interface {
	DBExecutor
	BeginTx(ctx context.Context, isolation sql.IsolationLevel) (TxAdapter, error)
	Close() error
}

// TxAdapter is a transaction started by a DBAdapter.
type TxAdapter interface {
	DBExecutor
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

// DBRows defines the interface for query result rows.
type DBRows interface {
	Next() bool
	Scan(dest ...any) error
	Columns() ([]string, error)
	Close() error
	Err() error
}

// DBResult defines the interface for execution results.
type DBResult interface {
	RowsAffected() (int64, error)
}

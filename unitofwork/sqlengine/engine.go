package sqlengine

import (
	"context"
	"database/sql"
	"errors"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jmoiron/sqlx"

	"github.com/AntonStoeckl/uow-eventbus-go/observability"
	"github.com/AntonStoeckl/uow-eventbus-go/unitofwork"
	"github.com/AntonStoeckl/uow-eventbus-go/unitofwork/sqlengine/internal/adapters"
)

// Engine implements unitofwork.Engine on top of SQL connection pools.
// Each connection string is resolved once through the Opener and cached.
type Engine struct {
	mu        sync.Mutex
	opener    Opener
	databases map[string]*Database
	closed    bool

	logger           observability.Logger
	contextualLogger observability.ContextualLogger
	metricsCollector observability.MetricsCollector
}

var _ unitofwork.Engine = (*Engine)(nil)

// Option defines a functional option for configuring an Engine.
type Option func(*Engine) error

// WithLogger sets the logger for the Engine.
//
// Debug level: SQL statements with execution timing, opened databases
// Warn level: failures closing databases.
func WithLogger(logger observability.Logger) Option {
	return func(e *Engine) error {
		e.logger = logger
		return nil
	}
}

// WithContextualLogger sets a context-aware logger for trace correlation.
func WithContextualLogger(logger observability.ContextualLogger) Option {
	return func(e *Engine) error {
		e.contextualLogger = logger
		return nil
	}
}

// WithMetrics sets the metrics collector for the Engine.
func WithMetrics(collector observability.MetricsCollector) Option {
	return func(e *Engine) error {
		e.metricsCollector = collector
		return nil
	}
}

// New creates an Engine that resolves connection strings through opener.
func New(opener Opener, options ...Option) (*Engine, error) {
	if opener == nil {
		return nil, ErrNilOpener
	}

	e := &Engine{
		opener:    opener,
		databases: make(map[string]*Database),
	}

	for _, option := range options {
		if err := option(e); err != nil {
			return nil, err
		}
	}

	return e, nil
}

// NewEngineFromPGXPool creates an Engine that runs every connection string on pool.
func NewEngineFromPGXPool(pool *pgxpool.Pool, options ...Option) (*Engine, error) {
	if pool == nil {
		return nil, ErrNilDatabase
	}

	return New(SingleOpener(FromPGXPool(pool)), options...)
}

// NewEngineFromSQLDB creates an Engine that runs every connection string on db.
func NewEngineFromSQLDB(db *sql.DB, dialect Dialect, options ...Option) (*Engine, error) {
	if db == nil {
		return nil, ErrNilDatabase
	}

	return New(SingleOpener(FromSQLDB(db, dialect)), options...)
}

// NewEngineFromSQLX creates an Engine that runs every connection string on db.
func NewEngineFromSQLX(db *sqlx.DB, options ...Option) (*Engine, error) {
	if db == nil {
		return nil, ErrNilDatabase
	}

	database, err := FromSQLX(db)
	if err != nil {
		return nil, err
	}

	return New(SingleOpener(database), options...)
}

// Database returns the database a connection string resolves to, opening it on first use.
func (e *Engine) Database(ctx context.Context, connectionString string) (*Database, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return nil, ErrEngineClosed
	}

	if db, ok := e.databases[connectionString]; ok {
		return db, nil
	}

	db, err := e.opener(ctx, connectionString)
	if err != nil {
		return nil, err
	}

	if db == nil {
		return nil, ErrNilDatabase
	}

	e.databases[connectionString] = db
	e.logDebug(ctx, logMsgDatabaseOpened, logAttrDialect, string(db.dialect))

	return db, nil
}

// Begin implements unitofwork.Engine.
func (e *Engine) Begin(
	ctx context.Context,
	connectionString string,
	options unitofwork.TxOptions,
) (unitofwork.Branch, error) {
	db, err := e.Database(ctx, connectionString)
	if err != nil {
		return nil, err
	}

	isolation, err := sqlIsolation(db.dialect, options.IsolationLevel)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	tx, err := db.adapter.BeginTx(ctx, isolation)
	e.observe(ctx, operationBegin, start, err)
	if err != nil {
		return nil, classify(err)
	}

	return &branch{
		executor: executor{engine: e, exec: tx, dialect: db.dialect},
		tx:       tx,
	}, nil
}

// Conn implements unitofwork.Engine; statements run on the pool without a transaction.
func (e *Engine) Conn(ctx context.Context, connectionString string) (unitofwork.DBTX, error) {
	db, err := e.Database(ctx, connectionString)
	if err != nil {
		return nil, err
	}

	return &executor{engine: e, exec: db.adapter, dialect: db.dialect}, nil
}

// Close closes every database the engine opened itself. Databases wrapped from caller-owned
// pools stay open.
func (e *Engine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return nil
	}
	e.closed = true

	var errs []error
	for connectionString, db := range e.databases {
		if err := db.close(); err != nil {
			e.logWarn(context.Background(), logMsgCloseFailed, logAttrError, err.Error())
			errs = append(errs, err)
		}
		delete(e.databases, connectionString)
	}

	return errors.Join(errs...)
}

// executor runs statements on a pool or a transaction and classifies their errors.
type executor struct {
	engine  *Engine
	exec    adapters.DBExecutor
	dialect Dialect
}

// Dialect returns the SQL dialect statements must be written in.
func (x *executor) Dialect() string {
	return string(x.dialect)
}

func (x *executor) ExecContext(ctx context.Context, query string, args ...any) (unitofwork.Result, error) {
	start := time.Now()
	result, err := x.exec.Exec(ctx, query, args...)
	x.engine.observeStatement(ctx, operationExec, query, start, err)
	if err != nil {
		return nil, classify(err)
	}

	return result, nil
}

func (x *executor) QueryContext(ctx context.Context, query string, args ...any) (unitofwork.Rows, error) {
	start := time.Now()
	rows, err := x.exec.Query(ctx, query, args...)
	x.engine.observeStatement(ctx, operationQuery, query, start, err)
	if err != nil {
		return nil, classify(err)
	}

	return rows, nil
}

type branch struct {
	executor
	tx adapters.TxAdapter
}

func (b *branch) Commit(ctx context.Context) error {
	start := time.Now()
	err := b.tx.Commit(ctx)
	b.engine.observe(ctx, operationCommit, start, err)

	return classify(err)
}

func (b *branch) Rollback(ctx context.Context) error {
	start := time.Now()
	err := b.tx.Rollback(ctx)
	b.engine.observe(ctx, operationRollback, start, err)

	return err
}

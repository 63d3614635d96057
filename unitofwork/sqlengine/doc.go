// Package sqlengine implements unitofwork.Engine for SQL databases.
//
// Connection strings are resolved to connection pools through an Opener. The engine supports
// pgxpool.Pool, sql.DB and sqlx.DB, in the PostgreSQL and SQLite dialects:
//
//	engine, err := sqlengine.New(sqlengine.SQLDBOpener("sqlite"))
//	factory, err := unitofwork.NewFactory(engine)
//
// Errors that signal a retryable conflict (PostgreSQL serialization failures and deadlocks,
// SQLite busy and locked errors) are joined with unitofwork.ErrSerializationFailure, so that
// unitofwork.RetryWithExponentialBackoff can retry the whole unit of work.
//
// Isolation levels map to the database's nearest equivalent. IsolationSnapshot becomes
// repeatable read on PostgreSQL; SQLite transactions are always serializable.
// IsolationChaos is rejected with unitofwork.ErrUnsupportedIsolationLevel.
package sqlengine

// Package adapters provide database adapter implementations for the SQL engine.
//
// This package implements the adapter pattern to support multiple database libraries:
// pgxpool.Pool, sql.DB, and sqlx.DB. All adapters provide equivalent functionality through
// a common DBAdapter interface, so the engine runs transactions the same way on any
// supported connection type.
package adapters

package sqlengine

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/jackc/pgx/v5/stdlib" // registers the "pgx" database/sql driver
	"github.com/jmoiron/sqlx"

	"github.com/AntonStoeckl/uow-eventbus-go/unitofwork/sqlengine/internal/adapters"
)

// Database is a connection pool the engine runs transactions on.
type Database struct {
	adapter adapters.DBAdapter
	dialect Dialect
	owned   bool
}

// FromPGXPool wraps a pgx pool. The caller keeps ownership of the pool.
func FromPGXPool(pool *pgxpool.Pool) *Database {
	return &Database{adapter: adapters.NewPGXAdapter(pool), dialect: DialectPostgres}
}

// FromSQLDB wraps a database/sql pool. The caller keeps ownership of the pool.
func FromSQLDB(db *sql.DB, dialect Dialect) *Database {
	return &Database{adapter: adapters.NewSQLAdapter(db), dialect: dialect}
}

// FromSQLX wraps a sqlx pool, deriving the dialect from its driver name.
// The caller keeps ownership of the pool.
func FromSQLX(db *sqlx.DB) (*Database, error) {
	dialect, err := DialectForDriver(db.DriverName())
	if err != nil {
		return nil, err
	}

	return &Database{adapter: adapters.NewSQLXAdapter(db), dialect: dialect}, nil
}

// Dialect returns the SQL dialect of the database.
func (d *Database) Dialect() Dialect {
	return d.dialect
}

func (d *Database) close() error {
	if !d.owned {
		return nil
	}

	return d.adapter.Close()
}

// Opener resolves a connection string to a Database. Engines call it once per connection string.
type Opener func(ctx context.Context, connectionString string) (*Database, error)

// PGXPoolOpener opens a pgx pool per connection string, treating it as a PostgreSQL DSN.
func PGXPoolOpener(configure ...func(*pgxpool.Config)) Opener {
	return func(ctx context.Context, connectionString string) (*Database, error) {
		config, err := pgxpool.ParseConfig(connectionString)
		if err != nil {
			return nil, errors.Join(ErrOpenFailed, err)
		}

		for _, fn := range configure {
			fn(config)
		}

		pool, err := pgxpool.NewWithConfig(ctx, config)
		if err != nil {
			return nil, errors.Join(ErrOpenFailed, err)
		}

		db := FromPGXPool(pool)
		db.owned = true

		return db, nil
	}
}

// SQLDBOpener opens a database/sql pool per connection string with the given driver,
// for example "postgres" (lib/pq) or "sqlite" (modernc.org/sqlite).
func SQLDBOpener(driverName string, configure ...func(*sql.DB)) Opener {
	return func(_ context.Context, connectionString string) (*Database, error) {
		dialect, err := DialectForDriver(driverName)
		if err != nil {
			return nil, err
		}

		sqlDB, err := sql.Open(driverName, connectionString)
		if err != nil {
			return nil, errors.Join(ErrOpenFailed, err)
		}

		for _, fn := range configure {
			fn(sqlDB)
		}

		db := FromSQLDB(sqlDB, dialect)
		db.owned = true

		return db, nil
	}
}

// SQLXOpener opens a sqlx pool per connection string with the given driver.
func SQLXOpener(driverName string, configure ...func(*sqlx.DB)) Opener {
	return func(_ context.Context, connectionString string) (*Database, error) {
		sqlxDB, err := sqlx.Open(driverName, connectionString)
		if err != nil {
			return nil, errors.Join(ErrOpenFailed, err)
		}

		for _, fn := range configure {
			fn(sqlxDB)
		}

		db, err := FromSQLX(sqlxDB)
		if err != nil {
			_ = sqlxDB.Close()
			return nil, err
		}
		db.owned = true

		return db, nil
	}
}

// StaticOpener serves a fixed set of databases keyed by connection string.
func StaticOpener(databases map[string]*Database) Opener {
	return func(_ context.Context, connectionString string) (*Database, error) {
		db, ok := databases[connectionString]
		if !ok || db == nil {
			return nil, fmt.Errorf("%w: %q", ErrUnknownConnectionString, connectionString)
		}

		return db, nil
	}
}

// SingleOpener serves the same database for every connection string.
func SingleOpener(db *Database) Opener {
	return func(_ context.Context, _ string) (*Database, error) {
		if db == nil {
			return nil, ErrNilDatabase
		}

		return db, nil
	}
}

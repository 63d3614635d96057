package sqlengine

import (
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/AntonStoeckl/uow-eventbus-go/unitofwork"
)

var (
	// ErrNilOpener is returned when an engine is created without an opener.
	ErrNilOpener = errors.New("database opener must not be nil")

	// ErrNilDatabase is returned when a nil database or pool is given to the engine.
	ErrNilDatabase = errors.New("database must not be nil")

	// ErrUnknownDriver is returned for driver names without a known dialect.
	ErrUnknownDriver = errors.New("unknown database driver")

	// ErrUnknownConnectionString is returned by a static opener for names it does not hold.
	ErrUnknownConnectionString = errors.New("unknown connection string")

	// ErrOpenFailed is joined with the driver error when a database could not be opened.
	ErrOpenFailed = errors.New("opening the database failed")

	// ErrEngineClosed is returned when a closed engine is used.
	ErrEngineClosed = errors.New("engine is closed")
)

const (
	pgSerializationFailure = "40001"
	pgDeadlockDetected     = "40P01"
)

// classify joins err with unitofwork.ErrSerializationFailure when the database reports a conflict
// that a retry with a fresh transaction can resolve.
func classify(err error) error {
	if err == nil || errors.Is(err, unitofwork.ErrSerializationFailure) {
		return err
	}

	if isSerializationFailure(err) {
		return errors.Join(unitofwork.ErrSerializationFailure, err)
	}

	return err
}

func isSerializationFailure(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == pgSerializationFailure || pgErr.Code == pgDeadlockDetected
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return string(pqErr.Code) == pgSerializationFailure || string(pqErr.Code) == pgDeadlockDetected
	}

	var sqliteErr *sqlite.Error
	if errors.As(err, &sqliteErr) {
		primary := sqliteErr.Code() & 0xff
		return primary == sqlite3.SQLITE_BUSY || primary == sqlite3.SQLITE_LOCKED
	}

	return false
}

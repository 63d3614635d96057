package sqlengine

import (
	"database/sql"
	"fmt"
	"strings"

	"github.com/AntonStoeckl/uow-eventbus-go/unitofwork"
)

// Dialect names the SQL dialect of a database. The values match the goqu dialect names.
type Dialect string

const (
	DialectPostgres Dialect = "postgres"
	DialectSQLite   Dialect = "sqlite3"
)

// DialectForDriver returns the dialect of a database/sql driver name such as "pgx", "postgres" or "sqlite".
func DialectForDriver(driverName string) (Dialect, error) {
	switch strings.ToLower(driverName) {
	case "pgx", "postgres", "postgresql":
		return DialectPostgres, nil
	case "sqlite", "sqlite3":
		return DialectSQLite, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownDriver, driverName)
	}
}

// sqlIsolation maps an isolation level to database/sql for the dialect.
//
// PostgreSQL's repeatable read is snapshot isolation, so IsolationSnapshot maps there.
// SQLite transactions are always serializable and take no isolation level.
func sqlIsolation(dialect Dialect, level unitofwork.IsolationLevel) (sql.IsolationLevel, error) {
	if level == unitofwork.IsolationChaos {
		return sql.LevelDefault, fmt.Errorf("%w: %s on %s", unitofwork.ErrUnsupportedIsolationLevel, level, dialect)
	}

	if dialect == DialectSQLite {
		return sql.LevelDefault, nil
	}

	switch level {
	case unitofwork.IsolationReadUncommitted:
		return sql.LevelReadUncommitted, nil
	case unitofwork.IsolationReadCommitted:
		return sql.LevelReadCommitted, nil
	case unitofwork.IsolationRepeatableRead, unitofwork.IsolationSnapshot:
		return sql.LevelRepeatableRead, nil
	case unitofwork.IsolationSerializable:
		return sql.LevelSerializable, nil
	case unitofwork.IsolationUnspecified:
		return sql.LevelDefault, nil
	default:
		return sql.LevelDefault, fmt.Errorf("%w: %s on %s", unitofwork.ErrUnsupportedIsolationLevel, level, dialect)
	}
}

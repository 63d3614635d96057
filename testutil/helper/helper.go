package helper

import (
	"database/sql"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite" // registers the "sqlite" database/sql driver
)

// SQLiteDriver is the database/sql driver name of modernc.org/sqlite.
const SQLiteDriver = "sqlite"

func GivenUniqueID(t testing.TB) uuid.UUID {
	id, err := uuid.NewV7()
	require.NoError(t, err, "error in arranging test data")

	return id
}

// GivenSQLiteDSN returns the DSN of a fresh SQLite database file in the test's temp dir.
// WAL mode lets readers see committed data while a writer holds its transaction open.
func GivenSQLiteDSN(t testing.TB, name string) string {
	path := filepath.Join(t.TempDir(), name+".db")

	return fmt.Sprintf("file:%s?_pragma=busy_timeout(2000)&_pragma=journal_mode(wal)&_txlock=immediate", path)
}

// GivenSQLiteDB opens dsn and runs the schema statements on it.
func GivenSQLiteDB(t testing.TB, dsn string, schema ...string) *sql.DB {
	db, err := sql.Open(SQLiteDriver, dsn)
	require.NoError(t, err, "error in arranging test data")
	t.Cleanup(func() { _ = db.Close() })

	for _, statement := range schema {
		_, err = db.Exec(statement)
		require.NoError(t, err, "error in arranging test data")
	}

	return db
}

// CountRows counts the rows of table as seen outside of any transaction.
func CountRows(t testing.TB, db *sql.DB, table string) int {
	var count int
	err := db.QueryRow("select count(*) from " + table).Scan(&count)
	require.NoError(t, err, "error in asserting test results")

	return count
}

package sqlstore

import (
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib" // registers the "pgx" driver
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

// Dialect adapts the store to one SQL engine
type Dialect interface {
	Name() string

	// DriverName is the database/sql driver to open connections with
	DriverName() string

	// Placeholder returns the n-th (1-based) statement parameter
	Placeholder(n int) string

	// BinaryType is the column type for documents and index keys
	BinaryType() string

	// TimestampType is the column type for record timestamps
	TimestampType() string

	// Timestamp converts a time to a value of TimestampType
	Timestamp(t time.Time) any

	// IsUniqueViolation recognizes errors caused by primary key and unique
	// constraints
	IsUniqueViolation(err error) bool

	// MaxOpenConns limits the connection pool (0 = unlimited)
	MaxOpenConns() int
}

type postgres struct{}

// Postgres is the PostgreSQL dialect (pgx driver)
var Postgres Dialect = postgres{}

func (postgres) Name() string       { return "postgres" }
func (postgres) DriverName() string { return "pgx" }

func (postgres) Placeholder(n int) string {
	return fmt.Sprintf("$%d", n)
}

func (postgres) BinaryType() string    { return "BYTEA" }
func (postgres) TimestampType() string { return "TIMESTAMPTZ" }

func (postgres) Timestamp(t time.Time) any {
	return t.UTC()
}

const pgUniqueViolation = "23505"

func (postgres) IsUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation
}

func (postgres) MaxOpenConns() int { return 0 }

type sqliteDialect struct{}

// SQLite is the SQLite dialect (modernc.org/sqlite driver, no cgo).
// Timestamps are stored as Unix nanoseconds.
var SQLite Dialect = sqliteDialect{}

func (sqliteDialect) Name() string       { return "sqlite" }
func (sqliteDialect) DriverName() string { return "sqlite" }

func (sqliteDialect) Placeholder(int) string {
	return "?"
}

func (sqliteDialect) BinaryType() string    { return "BLOB" }
func (sqliteDialect) TimestampType() string { return "INTEGER" }

func (sqliteDialect) Timestamp(t time.Time) any {
	return t.UnixNano()
}

func (sqliteDialect) IsUniqueViolation(err error) bool {
	var sqliteErr *sqlite.Error
	if !errors.As(err, &sqliteErr) {
		return false
	}
	switch sqliteErr.Code() {
	case sqlite3.SQLITE_CONSTRAINT_UNIQUE, sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY:
		return true
	default:
		return false
	}
}

// one writer at a time
func (sqliteDialect) MaxOpenConns() int { return 1 }

// SQLiteDSN returns a DSN for a database file with foreign keys enabled and
// a busy timeout set
func SQLiteDSN(path string) string {
	return "file:" + path + "?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"
}

// DialectByName returns a dialect by its name
func DialectByName(name string) (Dialect, error) {
	switch name {
	case Postgres.Name():
		return Postgres, nil
	case SQLite.Name():
		return SQLite, nil
	default:
		return nil, fmt.Errorf("unknown SQL dialect %q", name)
	}
}

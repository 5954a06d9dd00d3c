package sqlstore

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/ridge/quarry"
	"github.com/ridge/quarry/codec"
	"github.com/ridge/quarry/indices"
	"github.com/ridge/quarry/retry"
	"github.com/ridge/quarry/storetest"
	"github.com/ridge/quarry/test"
	"github.com/stretchr/testify/require"
)

func openSQLite(t *testing.T) *sql.DB {
	db, err := Open(test.Context(t), SQLite, SQLiteDSN(filepath.Join(t.TempDir(), "quarry.db")))
	require.NoError(t, err)
	t.Cleanup(func() {
		require.NoError(t, db.Close())
	})
	return db
}

func TestSQLiteConformance(t *testing.T) {
	storetest.Run(t, func(t *testing.T) quarry.Backend[storetest.User] {
		return New[storetest.User](openSQLite(t), WithDialect(SQLite))
	})
}

func TestSQLiteConformanceMsgpackZstd(t *testing.T) {
	storetest.Run(t, func(t *testing.T) quarry.Backend[storetest.User] {
		return New[storetest.User](openSQLite(t), WithDialect(SQLite), WithCodec(codec.Zstd(codec.Msgpack{})))
	})
}

func TestSQLiteAccounts(t *testing.T) {
	storetest.RunAccounts(t, func(t *testing.T) quarry.Backend[storetest.Account] {
		return New[storetest.Account](openSQLite(t), WithDialect(SQLite))
	})
}

func TestPostgresConformance(t *testing.T) {
	dsn := os.Getenv("QUARRY_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("QUARRY_POSTGRES_DSN is not set")
	}
	db, err := Open(test.Context(t), Postgres, dsn)
	require.NoError(t, err)
	t.Cleanup(func() {
		require.NoError(t, db.Close())
	})

	storetest.Run(t, func(t *testing.T) quarry.Backend[storetest.User] {
		dropTables(t, db, storetest.User{}.Table(), storetest.User{}.Indices().Names())
		return New[storetest.User](db)
	})
	storetest.RunAccounts(t, func(t *testing.T) quarry.Backend[storetest.Account] {
		dropTables(t, db, storetest.Account{}.Table(), storetest.Account{}.Indices().Names())
		return New[storetest.Account](db)
	})
}

func dropTables(t *testing.T, db *sql.DB, table string, indexNames []string) {
	ctx := test.Context(t)
	for _, name := range indexNames {
		_, err := db.ExecContext(ctx, "DROP TABLE IF EXISTS "+sideTable(table, name))
		require.NoError(t, err)
	}
	_, err := db.ExecContext(ctx, "DROP TABLE IF EXISTS "+table)
	require.NoError(t, err)
}

func TestSchemaLayout(t *testing.T) {
	db := openSQLite(t)
	ctx := test.Context(t)
	store := New[storetest.User](db, WithDialect(SQLite))
	require.NoError(t, store.InitializeSchema(ctx))

	rows, err := db.QueryContext(ctx, "SELECT type, name FROM sqlite_master WHERE name NOT LIKE 'sqlite_%' ORDER BY name")
	require.NoError(t, err)
	defer rows.Close()
	var objects []string
	for rows.Next() {
		var typ, name string
		require.NoError(t, rows.Scan(&typ, &name))
		objects = append(objects, typ+" "+name)
	}
	require.NoError(t, rows.Err())
	require.Equal(t, []string{
		"index idx_users__idx_email_key",
		"index idx_users__idx_name_age_key",
		"index idx_users__idx_name_age_record",
		"index idx_users__idx_name_key",
		"index idx_users__idx_name_record",
		"index idx_users_updated_at",
		"table users",
		"table users__idx_email",
		"table users__idx_name",
		"table users__idx_name_age",
	}, objects)
}

func TestDDLPostgres(t *testing.T) {
	l := newLayout(Postgres, "users", storetest.User{}.Indices())
	ddl := l.ddl()
	require.Equal(t, `CREATE TABLE IF NOT EXISTS users (
	id TEXT PRIMARY KEY,
	document BYTEA NOT NULL,
	created_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL
)`, ddl[0])
	require.Equal(t, `CREATE TABLE IF NOT EXISTS users__idx_email (
	index_key BYTEA NOT NULL,
	record_id TEXT NOT NULL REFERENCES users (id) ON DELETE CASCADE,
	UNIQUE (index_key)
)`, ddl[2])
	require.Equal(t, `CREATE TABLE IF NOT EXISTS users__idx_name (
	index_key BYTEA NOT NULL,
	record_id TEXT NOT NULL REFERENCES users (id) ON DELETE CASCADE
)`, ddl[4])
	require.Equal(t, "INSERT INTO users (id, document, created_at, updated_at) VALUES ($1, $2, $3, $4)", l.insertRecord())
	require.Equal(t, "SELECT document FROM users ORDER BY updated_at DESC, id DESC LIMIT $1 OFFSET $2", l.listRecords())
}

// Index entries must vanish with their record: no orphans after delete and
// no stale entries after update.
func TestNoOrphans(t *testing.T) {
	db := openSQLite(t)
	ctx := test.Context(t)
	store := quarry.New[storetest.User](New[storetest.User](db, WithDialect(SQLite)))
	require.NoError(t, store.InitializeSchema(ctx))

	u := storetest.NewUser("a@x", "A", 1)
	require.NoError(t, store.Insert(ctx, u))
	u.Name = "B"
	require.NoError(t, store.Update(ctx, u))
	require.Equal(t, 1, countRows(t, db, "users__idx_name"))

	// failed insert leaves no entries behind
	require.ErrorIs(t, store.Insert(ctx, storetest.NewUser("a@x", "C", 2)), quarry.ErrUniqueViolation)
	require.Equal(t, 1, countRows(t, db, "users__idx_name"))
	require.Equal(t, 1, countRows(t, db, "users__idx_name_age"))

	require.NoError(t, store.Delete(ctx, u.RecordID))
	for _, table := range []string{"users", "users__idx_email", "users__idx_name", "users__idx_name_age"} {
		require.Zero(t, countRows(t, db, table), table)
	}
}

func countRows(t *testing.T, db *sql.DB, table string) int {
	var n int
	require.NoError(t, db.QueryRow("SELECT COUNT(*) FROM "+table).Scan(&n))
	return n
}

func TestCanceledContext(t *testing.T) {
	db := openSQLite(t)
	store := New[storetest.User](db, WithDialect(SQLite))
	require.NoError(t, store.InitializeSchema(test.Context(t)))

	ctx, cancel := context.WithCancel(test.Context(t))
	cancel()
	err := store.Insert(ctx, storetest.NewUser("a@x", "A", 1))
	require.ErrorIs(t, err, quarry.ErrBackend)
	require.ErrorIs(t, err, context.Canceled)

	n, err := store.Count(test.Context(t))
	require.NoError(t, err)
	require.Zero(t, n)
}

// A context canceled halfway through a write rolls the whole write back.
func TestCanceledMidTransaction(t *testing.T) {
	db := openSQLite(t)
	ctx := test.Context(t)
	backend := New[storetest.User](db, WithDialect(SQLite))
	store := quarry.New[storetest.User](backend)
	require.NoError(t, store.InitializeSchema(ctx))

	u := storetest.NewUser("a@x", "A", 1)
	require.NoError(t, store.Insert(ctx, u))

	var canceled []string
	var cancel context.CancelFunc
	backend.afterFirstStatement = func(_ context.Context, op string) {
		canceled = append(canceled, op)
		cancel()
	}
	cancelable := func() context.Context {
		var c context.Context
		c, cancel = context.WithCancel(ctx)
		return c
	}

	err := store.Insert(cancelable(), storetest.NewUser("b@x", "B", 2))
	require.ErrorIs(t, err, quarry.ErrBackend)
	require.ErrorIs(t, err, context.Canceled)

	renamed := u
	renamed.Email = "z@x"
	renamed.Name = "Z"
	err = store.Update(cancelable(), renamed)
	require.ErrorIs(t, err, quarry.ErrBackend)
	require.ErrorIs(t, err, context.Canceled)

	err = store.Delete(cancelable(), u.RecordID)
	require.ErrorIs(t, err, quarry.ErrBackend)
	require.ErrorIs(t, err, context.Canceled)

	require.Equal(t, []string{"insert", "update", "delete"}, canceled)
	backend.afterFirstStatement = nil

	got, err := store.GetOrError(ctx, u.RecordID)
	require.NoError(t, err)
	require.Equal(t, u, got)
	for _, table := range []string{"users", "users__idx_email", "users__idx_name", "users__idx_name_age"} {
		require.Equal(t, 1, countRows(t, db, table), table)
	}
	_, found, err := store.FindByUniqueIndex(ctx, "email", indices.NewValue("a@x"))
	require.NoError(t, err)
	require.True(t, found)
	_, found, err = store.FindByUniqueIndex(ctx, "email", indices.NewValue("z@x"))
	require.NoError(t, err)
	require.False(t, found)
}

func TestCountByIndexNative(t *testing.T) {
	var _ quarry.IndexCounter = (*Store[storetest.User])(nil)

	db := openSQLite(t)
	ctx := test.Context(t)
	store := New[storetest.User](db, WithDialect(SQLite))
	require.NoError(t, store.InitializeSchema(ctx))
	require.NoError(t, store.Insert(ctx, storetest.NewUser("a@x", "A", 1)))
	n, err := store.CountByIndex(ctx, "name", indices.NewValue("A"))
	require.NoError(t, err)
	require.EqualValues(t, 1, n)
}

func TestOpenFails(t *testing.T) {
	ctx := test.Context(t)
	backoff := retry.Backoff{Min: time.Millisecond, Max: time.Millisecond, Scale: 1, MaxAttempts: 2}
	_, err := OpenWithBackoff(ctx, SQLite, SQLiteDSN(filepath.Join(t.TempDir(), "missing", "dir", "quarry.db")), backoff)
	require.Error(t, err)
}

func TestDialectByName(t *testing.T) {
	d, err := DialectByName("sqlite")
	require.NoError(t, err)
	require.Equal(t, SQLite, d)
	d, err = DialectByName("postgres")
	require.NoError(t, err)
	require.Equal(t, Postgres, d)
	_, err = DialectByName("mysql")
	require.Error(t, err)
}

package boltstore

import (
	"path/filepath"
	"testing"

	"github.com/ridge/quarry"
	"github.com/ridge/quarry/codec"
	"github.com/ridge/quarry/indices"
	"github.com/ridge/quarry/storetest"
	"github.com/ridge/quarry/test"
	"github.com/stretchr/testify/require"
	"go.etcd.io/bbolt"
)

func openBolt(t *testing.T) *bbolt.DB {
	db, err := Open(filepath.Join(t.TempDir(), "quarry.bolt"))
	require.NoError(t, err)
	t.Cleanup(func() {
		require.NoError(t, db.Close())
	})
	return db
}

func TestConformance(t *testing.T) {
	storetest.Run(t, func(t *testing.T) quarry.Backend[storetest.User] {
		return New[storetest.User](openBolt(t))
	})
}

func TestConformanceLZ4(t *testing.T) {
	storetest.Run(t, func(t *testing.T) quarry.Backend[storetest.User] {
		return New[storetest.User](openBolt(t), WithCodec(codec.LZ4(codec.Msgpack{})))
	})
}

func TestAccounts(t *testing.T) {
	storetest.RunAccounts(t, func(t *testing.T) quarry.Backend[storetest.Account] {
		return New[storetest.Account](openBolt(t))
	})
}

func TestSharedDatabase(t *testing.T) {
	db := openBolt(t)
	ctx := test.Context(t)
	users := quarry.New[storetest.User](New[storetest.User](db))
	accounts := quarry.New[storetest.Account](New[storetest.Account](db))
	require.NoError(t, users.InitializeSchema(ctx))
	require.NoError(t, accounts.InitializeSchema(ctx))

	require.NoError(t, users.Insert(ctx, storetest.NewUser("a@x", "A", 1)))
	require.NoError(t, accounts.Insert(ctx, storetest.Account{AccountID: quarry.NewRecordID(), Login: "a"}))

	n, err := users.Count(ctx)
	require.NoError(t, err)
	require.EqualValues(t, 1, n)
	n, err = accounts.Count(ctx)
	require.NoError(t, err)
	require.EqualValues(t, 1, n)
}

func TestNoSchema(t *testing.T) {
	store := New[storetest.User](openBolt(t))
	err := store.Insert(test.Context(t), storetest.NewUser("a@x", "A", 1))
	require.ErrorIs(t, err, quarry.ErrBackend)
	require.ErrorIs(t, err, errNoSchema)
}

func TestEmptyKeys(t *testing.T) {
	ctx := test.Context(t)
	store := quarry.New[storetest.User](New[storetest.User](openBolt(t)))
	require.NoError(t, store.InitializeSchema(ctx))

	u := storetest.NewUser("", "", 0)
	require.NoError(t, store.Insert(ctx, u))
	got, err := store.FindByUniqueIndexOrError(ctx, "email", indices.NewValue(""))
	require.NoError(t, err)
	require.Equal(t, u, got)
	require.ErrorIs(t, store.Insert(ctx, storetest.NewUser("", "B", 1)), quarry.ErrUniqueViolation)
}

func TestLookupExact(t *testing.T) {
	db := openBolt(t)
	require.NoError(t, db.Update(func(tx *bbolt.Tx) error {
		b, err := tx.CreateBucket([]byte("idx"))
		require.NoError(t, err)
		require.NoError(t, b.Put(entryKey("a", "1"), []byte("1")))
		require.NoError(t, b.Put(entryKey("a\x00b", "2"), []byte("2")))
		require.NoError(t, b.Put(entryKey("ab", "3"), []byte("3")))

		require.Equal(t, []string{"1"}, lookup(b, false, "a"))
		require.Equal(t, []string{"2"}, lookup(b, false, "a\x00b"))
		require.Empty(t, lookup(b, false, "b"))
		return nil
	}))
}

package memstore

import (
	"testing"

	"github.com/ridge/quarry"
	"github.com/ridge/quarry/codec"
	"github.com/ridge/quarry/indices"
	"github.com/ridge/quarry/storetest"
	"github.com/ridge/quarry/test"
	"github.com/stretchr/testify/require"
)

func TestConformance(t *testing.T) {
	storetest.Run(t, func(t *testing.T) quarry.Backend[storetest.User] {
		return New[storetest.User]()
	})
}

func TestConformanceMsgpack(t *testing.T) {
	storetest.Run(t, func(t *testing.T) quarry.Backend[storetest.User] {
		return New[storetest.User](WithCodec(codec.Msgpack{}))
	})
}

func TestAccounts(t *testing.T) {
	storetest.RunAccounts(t, func(t *testing.T) quarry.Backend[storetest.Account] {
		return New[storetest.Account]()
	})
}

func TestLenClear(t *testing.T) {
	ctx := test.Context(t)
	store := New[storetest.User]()
	require.Zero(t, store.Len())

	require.NoError(t, store.Insert(ctx, storetest.NewUser("a@x", "A", 1)))
	require.NoError(t, store.Insert(ctx, storetest.NewUser("b@x", "B", 2)))
	require.Equal(t, 2, store.Len())

	store.Clear()
	require.Zero(t, store.Len())
	users, err := store.FindByIndex(ctx, "name", indices.NewValue("A"))
	require.NoError(t, err)
	require.Empty(t, users)
	// unique keys are released
	require.NoError(t, store.Insert(ctx, storetest.NewUser("a@x", "A", 1)))
}

func TestSnapshotIsolation(t *testing.T) {
	ctx := test.Context(t)
	store := New[storetest.User]()
	u := storetest.NewUser("a@x", "A", 1)
	require.NoError(t, store.Insert(ctx, u))

	snapshot := store.db.Txn(false)
	require.NoError(t, store.Delete(ctx, u.RecordID))

	require.NotNil(t, store.get(snapshot, string(u.RecordID)))
	require.Nil(t, store.get(store.db.Txn(false), string(u.RecordID)))
}

func TestCountByIndexNative(t *testing.T) {
	var _ quarry.IndexCounter = (*Store[storetest.User])(nil)
}

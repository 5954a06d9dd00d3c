package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/ridge/quarry"
	"github.com/ridge/quarry/indices"
	"github.com/ridge/quarry/memstore"
	"github.com/ridge/quarry/storetest"
	"github.com/ridge/quarry/test"
	"github.com/stretchr/testify/require"
)

func TestConformance(t *testing.T) {
	storetest.Run(t, func(t *testing.T) quarry.Backend[storetest.User] {
		return Instrument[storetest.User](memstore.New[storetest.User](), prometheus.NewRegistry())
	})
}

func TestCounts(t *testing.T) {
	ctx := test.Context(t)
	reg := prometheus.NewRegistry()
	backend := Instrument[storetest.User](memstore.New[storetest.User](), reg)
	store := quarry.New[storetest.User](backend)
	require.NoError(t, store.InitializeSchema(ctx))

	u := storetest.NewUser("a@x", "A", 1)
	require.NoError(t, store.Insert(ctx, u))
	require.ErrorIs(t, store.Insert(ctx, storetest.NewUser("a@x", "B", 2)), quarry.ErrUniqueViolation)
	require.ErrorIs(t, store.Update(ctx, storetest.NewUser("c@x", "C", 3)), quarry.ErrNotFound)
	n, err := store.CountByIndex(ctx, "name", indices.NewValue("A"))
	require.NoError(t, err)
	require.EqualValues(t, 1, n)

	ops := backend.operations
	require.Equal(t, 1.0, testutil.ToFloat64(ops.WithLabelValues("users", "initialize_schema", "ok")))
	require.Equal(t, 1.0, testutil.ToFloat64(ops.WithLabelValues("users", "insert", "ok")))
	require.Equal(t, 1.0, testutil.ToFloat64(ops.WithLabelValues("users", "insert", "unique_violation")))
	require.Equal(t, 1.0, testutil.ToFloat64(ops.WithLabelValues("users", "update", "not_found")))
	require.Equal(t, 1.0, testutil.ToFloat64(ops.WithLabelValues("users", "count_by_index", "ok")))
	require.Equal(t, 5, testutil.CollectAndCount(backend.duration))
}

func TestSharedRegistry(t *testing.T) {
	ctx := test.Context(t)
	reg := prometheus.NewRegistry()
	users := Instrument[storetest.User](memstore.New[storetest.User](), reg)
	accounts := Instrument[storetest.Account](memstore.New[storetest.Account](), reg)
	require.Same(t, users.operations, accounts.operations)

	require.NoError(t, users.InitializeSchema(ctx))
	require.NoError(t, accounts.InitializeSchema(ctx))
	require.Equal(t, 2, testutil.CollectAndCount(users.operations, "quarry_store_operations_total"))
}

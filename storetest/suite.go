// Package storetest is the conformance suite for quarry backends.
//
// Every backend package runs it against its own backend:
//
//	func TestConformance(t *testing.T) {
//	    storetest.Run(t, func(t *testing.T) quarry.Backend[storetest.User] {
//	        return memstore.New[storetest.User]()
//	    })
//	}
package storetest

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/ridge/quarry"
	"github.com/ridge/quarry/indices"
	"github.com/ridge/quarry/test"
	"github.com/stretchr/testify/require"
)

// Factory creates a new empty backend for one test
type Factory[M quarry.Model[M]] func(t *testing.T) quarry.Backend[M]

type env struct {
	ctx   context.Context
	store *quarry.Store[User]
}

func setup(t *testing.T, factory Factory[User]) env {
	ctx := test.Context(t)
	store := quarry.New(factory(t))
	require.NoError(t, store.InitializeSchema(ctx))
	return env{ctx: ctx, store: store}
}

func (e env) insert(t *testing.T, users ...User) {
	for _, u := range users {
		require.NoError(t, e.store.Insert(e.ctx, u))
	}
}

func (e env) count(t *testing.T) uint64 {
	n, err := e.store.Count(e.ctx)
	require.NoError(t, err)
	return n
}

func (e env) findByName(t *testing.T, name string) []User {
	users, err := e.store.FindByIndex(e.ctx, "name", indices.NewValue(name))
	require.NoError(t, err)
	return users
}

func (e env) byEmail(t *testing.T, email string) (User, bool) {
	u, ok, err := e.store.FindByUniqueIndex(e.ctx, "email", indices.NewValue(email))
	require.NoError(t, err)
	return u, ok
}

// Run runs the conformance suite. factory is called once per subtest and
// must return an empty backend; the suite initializes its schema.
func Run(t *testing.T, factory Factory[User]) {
	tests := []struct {
		name string
		fn   func(t *testing.T, e env)
	}{
		{"InitializeSchemaIdempotent", testInitializeSchemaIdempotent},
		{"InsertGet", testInsertGet},
		{"DuplicateID", testDuplicateID},
		{"DuplicateUnique", testDuplicateUnique},
		{"Update", testUpdate},
		{"UpdateNonexistent", testUpdateNonexistent},
		{"UpdateUniqueConflict", testUpdateUniqueConflict},
		{"Delete", testDelete},
		{"Upsert", testUpsert},
		{"DeleteAndReturn", testDeleteAndReturn},
		{"GetMany", testGetMany},
		{"Pagination", testPagination},
		{"ListOrder", testListOrder},
		{"FindByUniqueIndex", testFindByUniqueIndex},
		{"FindByIndex", testFindByIndex},
		{"CompositeIndex", testCompositeIndex},
		{"IndexSelectors", testIndexSelectors},
		{"CountByIndex", testCountByIndex},
		{"Exists", testExists},
		{"Scenario", testScenario},
		{"ConcurrentInserts", testConcurrentInserts},
		{"ConcurrentUniqueInserts", testConcurrentUniqueInserts},
	}
	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			tc.fn(t, setup(t, factory))
		})
	}
}

func testInitializeSchemaIdempotent(t *testing.T, e env) {
	e.insert(t, NewUser("a@x", "A", 1))
	require.NoError(t, e.store.InitializeSchema(e.ctx))
	require.EqualValues(t, 1, e.count(t))
}

func testInsertGet(t *testing.T, e env) {
	u := NewUser("alice@example.com", "Alice", 30)
	e.insert(t, u)

	got, ok, err := e.store.Get(e.ctx, u.RecordID)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, u, got)

	_, ok, err = e.store.Get(e.ctx, quarry.NewRecordID())
	require.NoError(t, err)
	require.False(t, ok)

	got, err = e.store.GetOrError(e.ctx, u.RecordID)
	require.NoError(t, err)
	require.Equal(t, u, got)

	missing := quarry.NewRecordID()
	_, err = e.store.GetOrError(e.ctx, missing)
	require.ErrorIs(t, err, quarry.ErrNotFound)
	var nf quarry.NotFoundError
	require.True(t, errors.As(err, &nf))
	require.Equal(t, string(missing), nf.Key)
}

func testDuplicateID(t *testing.T, e env) {
	u := NewUser("a@x", "A", 1)
	e.insert(t, u)

	dup := u
	dup.Email = "other@x"
	dup.Name = "Other"
	err := e.store.Insert(e.ctx, dup)
	require.ErrorIs(t, err, quarry.ErrDuplicateID)
	require.ErrorIs(t, err, quarry.ErrBackend)

	require.EqualValues(t, 1, e.count(t))
	got, err := e.store.GetOrError(e.ctx, u.RecordID)
	require.NoError(t, err)
	require.Equal(t, u, got)
	require.Empty(t, e.findByName(t, "Other"))
	_, ok := e.byEmail(t, "other@x")
	require.False(t, ok)
}

func testDuplicateUnique(t *testing.T, e env) {
	u1 := NewUser("same@x", "First", 1)
	u2 := NewUser("same@x", "Second", 2)
	e.insert(t, u1)

	err := e.store.Insert(e.ctx, u2)
	require.ErrorIs(t, err, quarry.ErrUniqueViolation)
	var uv quarry.UniqueViolationError
	require.True(t, errors.As(err, &uv))
	require.Equal(t, "email", uv.Index)
	require.Equal(t, "same@x", uv.Value)

	require.EqualValues(t, 1, e.count(t))
	exists, err := e.store.Exists(e.ctx, u2.RecordID)
	require.NoError(t, err)
	require.False(t, exists)
	require.Empty(t, e.findByName(t, "Second"))

	got, ok := e.byEmail(t, "same@x")
	require.True(t, ok)
	require.Equal(t, u1, got)
}

func testUpdate(t *testing.T, e env) {
	u := NewUser("old@x", "Old", 20)
	e.insert(t, u)

	u.Email = "new@x"
	u.Name = "New"
	u.Age = 21
	require.NoError(t, e.store.Update(e.ctx, u))

	got, err := e.store.GetOrError(e.ctx, u.RecordID)
	require.NoError(t, err)
	require.Equal(t, u, got)

	require.Empty(t, e.findByName(t, "Old"))
	require.Equal(t, []User{u}, e.findByName(t, "New"))
	_, ok := e.byEmail(t, "old@x")
	require.False(t, ok)
	got, ok = e.byEmail(t, "new@x")
	require.True(t, ok)
	require.Equal(t, u, got)

	// keeping own unique key is not a conflict
	u.Age = 22
	require.NoError(t, e.store.Update(e.ctx, u))
	require.EqualValues(t, 1, e.count(t))
}

func testUpdateNonexistent(t *testing.T, e env) {
	u := NewUser("ghost@x", "Ghost", 1)
	err := e.store.Update(e.ctx, u)
	require.ErrorIs(t, err, quarry.ErrNotFound)

	require.EqualValues(t, 0, e.count(t))
	require.Empty(t, e.findByName(t, "Ghost"))
	_, ok := e.byEmail(t, "ghost@x")
	require.False(t, ok)
}

func testUpdateUniqueConflict(t *testing.T, e env) {
	u1 := NewUser("one@x", "One", 1)
	u2 := NewUser("two@x", "Two", 2)
	e.insert(t, u1, u2)

	changed := u2
	changed.Email = "one@x"
	changed.Name = "Changed"
	err := e.store.Update(e.ctx, changed)
	require.ErrorIs(t, err, quarry.ErrUniqueViolation)

	got, err := e.store.GetOrError(e.ctx, u2.RecordID)
	require.NoError(t, err)
	require.Equal(t, u2, got)
	require.Empty(t, e.findByName(t, "Changed"))
	require.Equal(t, []User{u2}, e.findByName(t, "Two"))
	got, ok := e.byEmail(t, "one@x")
	require.True(t, ok)
	require.Equal(t, u1, got)
}

func testDelete(t *testing.T, e env) {
	u := NewUser("gone@x", "Gone", 5)
	keep := NewUser("keep@x", "Gone", 6)
	e.insert(t, u, keep)

	require.NoError(t, e.store.Delete(e.ctx, u.RecordID))

	_, ok, err := e.store.Get(e.ctx, u.RecordID)
	require.NoError(t, err)
	require.False(t, ok)
	require.Equal(t, []User{keep}, e.findByName(t, "Gone"))
	_, ok = e.byEmail(t, "gone@x")
	require.False(t, ok)
	n, err := e.store.CountByIndex(e.ctx, "name_age", indices.NewValue("Gone", "5"))
	require.NoError(t, err)
	require.Zero(t, n)

	err = e.store.Delete(e.ctx, u.RecordID)
	require.ErrorIs(t, err, quarry.ErrNotFound)
	require.EqualValues(t, 1, e.count(t))

	// the unique key is free again
	e.insert(t, NewUser("gone@x", "Again", 1))
}

func testUpsert(t *testing.T, e env) {
	u := NewUser("up@x", "Up", 1)

	inserted, err := e.store.Upsert(e.ctx, u)
	require.NoError(t, err)
	require.True(t, inserted)

	u.Name = "Upserted"
	inserted, err = e.store.Upsert(e.ctx, u)
	require.NoError(t, err)
	require.False(t, inserted)

	got, err := e.store.GetOrError(e.ctx, u.RecordID)
	require.NoError(t, err)
	require.Equal(t, u, got)
	require.EqualValues(t, 1, e.count(t))

	conflicting := NewUser("up@x", "Conflict", 2)
	inserted, err = e.store.Upsert(e.ctx, conflicting)
	require.ErrorIs(t, err, quarry.ErrUniqueViolation)
	require.False(t, inserted)
}

func testDeleteAndReturn(t *testing.T, e env) {
	u := NewUser("dar@x", "Dar", 1)
	e.insert(t, u)

	got, err := e.store.DeleteAndReturn(e.ctx, u.RecordID)
	require.NoError(t, err)
	require.Equal(t, u, got)
	require.EqualValues(t, 0, e.count(t))

	_, err = e.store.DeleteAndReturn(e.ctx, u.RecordID)
	require.ErrorIs(t, err, quarry.ErrNotFound)
}

func testGetMany(t *testing.T, e env) {
	a := NewUser("a@x", "A", 1)
	b := NewUser("b@x", "B", 2)
	e.insert(t, a, b)
	missing := quarry.NewRecordID()

	got, err := e.store.GetMany(e.ctx, []quarry.RecordID{b.RecordID, missing, a.RecordID, b.RecordID})
	require.NoError(t, err)
	require.Len(t, got, 4)
	require.Equal(t, &b, got[0])
	require.Nil(t, got[1])
	require.Equal(t, &a, got[2])
	require.Equal(t, &b, got[3])

	got, err = e.store.GetMany(e.ctx, nil)
	require.NoError(t, err)
	require.Empty(t, got)
}

func testPagination(t *testing.T, e env) {
	const n = 10
	ids := map[quarry.RecordID]bool{}
	for i := 0; i < n; i++ {
		u := NewUser(fmt.Sprintf("u%d@x", i), "Page", uint32(i))
		e.insert(t, u)
		ids[u.RecordID] = true
	}

	seen := map[quarry.RecordID]int{}
	for offset := 0; ; offset += 3 {
		page, err := e.store.List(e.ctx, 3, offset)
		require.NoError(t, err)
		if len(page) == 0 {
			break
		}
		require.LessOrEqual(t, len(page), 3)
		for _, u := range page {
			seen[u.RecordID]++
		}
	}
	require.Len(t, seen, n)
	for id, times := range seen {
		require.True(t, ids[id])
		require.Equal(t, 1, times)
	}

	all, err := e.store.ListAll(e.ctx)
	require.NoError(t, err)
	require.Len(t, all, n)

	page, err := e.store.List(e.ctx, 0, 0)
	require.NoError(t, err)
	require.Empty(t, page)
	page, err = e.store.List(e.ctx, 5, n)
	require.NoError(t, err)
	require.Empty(t, page)
}

func testListOrder(t *testing.T, e env) {
	a := NewUser("a@x", "A", 1)
	b := NewUser("b@x", "B", 2)
	c := NewUser("c@x", "C", 3)
	for _, u := range []User{a, b, c} {
		e.insert(t, u)
		time.Sleep(2 * time.Millisecond)
	}

	all, err := e.store.ListAll(e.ctx)
	require.NoError(t, err)
	require.Equal(t, []User{c, b, a}, all)

	a.Age = 10
	require.NoError(t, e.store.Update(e.ctx, a))
	all, err = e.store.ListAll(e.ctx)
	require.NoError(t, err)
	require.Equal(t, []User{a, c, b}, all)
}

func testFindByUniqueIndex(t *testing.T, e env) {
	u := NewUser("find@x", "Find", 1)
	e.insert(t, u)

	got, err := e.store.FindByUniqueIndexOrError(e.ctx, "email", indices.NewValue("find@x"))
	require.NoError(t, err)
	require.Equal(t, u, got)

	_, err = e.store.FindByUniqueIndexOrError(e.ctx, "email", indices.NewValue("nobody@x"))
	require.ErrorIs(t, err, quarry.ErrNotFound)
	var nf quarry.NotFoundError
	require.True(t, errors.As(err, &nf))
	require.Equal(t, "email=nobody@x", nf.Key)

	exists, err := e.store.ExistsByUniqueIndex(e.ctx, "email", indices.NewValue("find@x"))
	require.NoError(t, err)
	require.True(t, exists)
	exists, err = e.store.ExistsByUniqueIndex(e.ctx, "email", indices.NewValue("nobody@x"))
	require.NoError(t, err)
	require.False(t, exists)
}

func testFindByIndex(t *testing.T, e env) {
	a1 := NewUser("a1@x", "Alice", 30)
	a2 := NewUser("a2@x", "Alice", 31)
	b := NewUser("b@x", "Bob", 30)
	e.insert(t, a1, a2, b)

	require.ElementsMatch(t, []User{a1, a2}, e.findByName(t, "Alice"))
	require.Equal(t, []User{b}, e.findByName(t, "Bob"))
	require.Empty(t, e.findByName(t, "Carol"))
	// keys are compared exactly, never by prefix
	require.Empty(t, e.findByName(t, "Ali"))

	one, ok, err := e.store.FindOneByIndex(e.ctx, "name", indices.NewValue("Alice"))
	require.NoError(t, err)
	require.True(t, ok)
	require.Contains(t, []User{a1, a2}, one)

	_, ok, err = e.store.FindOneByIndex(e.ctx, "name", indices.NewValue("Carol"))
	require.NoError(t, err)
	require.False(t, ok)

	// a unique index can be used for non-unique lookups
	users, err := e.store.FindByIndex(e.ctx, "email", indices.NewValue("b@x"))
	require.NoError(t, err)
	require.Equal(t, []User{b}, users)
}

func testCompositeIndex(t *testing.T, e env) {
	a30 := NewUser("a30@x", "Alice", 30)
	a31 := NewUser("a31@x", "Alice", 31)
	// same segments joined differently must not collide
	tricky := NewUser("t@x", "Alice\x0030", 0)
	e.insert(t, a30, a31, tricky)

	users, err := e.store.FindByIndex(e.ctx, "name_age", indices.NewValue("Alice", "30"))
	require.NoError(t, err)
	require.Equal(t, []User{a30}, users)

	users, err = e.store.FindByIndex(e.ctx, "name_age", indices.NewValue("Alice", "32"))
	require.NoError(t, err)
	require.Empty(t, users)

	users, err = e.store.FindByIndex(e.ctx, "name_age", indices.NewValue("Alice"))
	require.NoError(t, err)
	require.Empty(t, users)
}

func testIndexSelectors(t *testing.T, e env) {
	e.insert(t, NewUser("a@x", "A", 1))

	_, err := e.store.FindByIndex(e.ctx, "nope", indices.NewValue("A"))
	require.ErrorIs(t, err, quarry.ErrIndexNotFound)
	var ie quarry.IndexError
	require.True(t, errors.As(err, &ie))
	require.Equal(t, "nope", ie.Selector)

	_, _, err = e.store.FindByUniqueIndex(e.ctx, "nope", indices.NewValue("A"))
	require.ErrorIs(t, err, quarry.ErrIndexNotFound)

	_, _, err = e.store.FindByUniqueIndex(e.ctx, "name", indices.NewValue("A"))
	require.ErrorIs(t, err, quarry.ErrIndexNotUnique)

	_, err = e.store.CountByIndex(e.ctx, "nope", indices.NewValue("A"))
	require.ErrorIs(t, err, quarry.ErrIndexNotFound)
}

func testCountByIndex(t *testing.T, e env) {
	e.insert(t,
		NewUser("a1@x", "Alice", 1),
		NewUser("a2@x", "Alice", 2),
		NewUser("b1@x", "Bob", 3),
	)
	for _, name := range []string{"Alice", "Bob", "Carol"} {
		n, err := e.store.CountByIndex(e.ctx, "name", indices.NewValue(name))
		require.NoError(t, err)
		require.EqualValues(t, len(e.findByName(t, name)), n, name)
	}
	require.EqualValues(t, 3, e.count(t))
}

func testExists(t *testing.T, e env) {
	u := NewUser("e@x", "E", 1)
	exists, err := e.store.Exists(e.ctx, u.RecordID)
	require.NoError(t, err)
	require.False(t, exists)

	e.insert(t, u)
	exists, err = e.store.Exists(e.ctx, u.RecordID)
	require.NoError(t, err)
	require.True(t, exists)
}

// testScenario: five users (two named Alice, three named Bob); one Alice is
// renamed to Alicia; then the other Alice is deleted.
func testScenario(t *testing.T, e env) {
	alice1 := NewUser("alice1@x", "Alice", 30)
	alice2 := NewUser("alice2@x", "Alice", 25)
	bobs := []User{
		NewUser("bob1@x", "Bob", 40),
		NewUser("bob2@x", "Bob", 41),
		NewUser("bob3@x", "Bob", 42),
	}
	e.insert(t, alice1, alice2)
	e.insert(t, bobs...)

	require.EqualValues(t, 5, e.count(t))
	require.Len(t, e.findByName(t, "Alice"), 2)
	require.Len(t, e.findByName(t, "Bob"), 3)

	alice1.Name = "Alicia"
	require.NoError(t, e.store.Update(e.ctx, alice1))
	require.Equal(t, []User{alice2}, e.findByName(t, "Alice"))
	require.Equal(t, []User{alice1}, e.findByName(t, "Alicia"))

	require.NoError(t, e.store.Delete(e.ctx, alice2.RecordID))
	require.Empty(t, e.findByName(t, "Alice"))
	require.EqualValues(t, 4, e.count(t))
	n, err := e.store.CountByIndex(e.ctx, "name", indices.NewValue("Bob"))
	require.NoError(t, err)
	require.EqualValues(t, 3, n)
}

func testConcurrentInserts(t *testing.T, e env) {
	const workers, perWorker = 4, 10
	test.Workers(t, workers, func(ctx context.Context, worker int) error {
		for i := 0; i < perWorker; i++ {
			u := NewUser(fmt.Sprintf("w%d-%d@x", worker, i), fmt.Sprintf("W%d", worker), uint32(i))
			if err := e.store.Insert(ctx, u); err != nil {
				return err
			}
		}
		return nil
	})
	require.EqualValues(t, workers*perWorker, e.count(t))
	for w := 0; w < workers; w++ {
		require.Len(t, e.findByName(t, fmt.Sprintf("W%d", w)), perWorker)
	}
}

func testConcurrentUniqueInserts(t *testing.T, e env) {
	const workers = 8
	results := make([]error, workers)
	test.Workers(t, workers, func(ctx context.Context, worker int) error {
		results[worker] = e.store.Insert(ctx, NewUser("contended@x", fmt.Sprintf("C%d", worker), 0))
		return nil
	})

	succeeded := 0
	for _, err := range results {
		if err == nil {
			succeeded++
			continue
		}
		require.ErrorIs(t, err, quarry.ErrUniqueViolation)
	}
	require.Equal(t, 1, succeeded)
	require.EqualValues(t, 1, e.count(t))
}

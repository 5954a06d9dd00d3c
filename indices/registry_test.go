package indices

import (
	"testing"

	"github.com/stretchr/testify/require"
)

type person struct {
	ID    string
	Email string
	Name  string
	Age   uint32
}

func personRegistry() *Registry[person] {
	return NewRegistry(
		Unique("email", Field[person]("Email", IgnoreCase)),
		NonUnique("name", Field[person]("Name")),
		NonUnique("name_age", Fields[person]("Name Age")),
	)
}

func TestRegistry(t *testing.T) {
	r := personRegistry()
	require.Equal(t, 3, r.Len())
	require.Equal(t, []string{"email", "name", "name_age"}, r.Names())

	def, ok := r.Get("email")
	require.True(t, ok)
	require.True(t, def.Unique)
	_, ok = r.Get("missing")
	require.False(t, ok)

	require.Len(t, r.Unique(), 1)
	require.Equal(t, "email", r.Unique()[0].Name)
	require.Len(t, r.NonUnique(), 2)
	require.Len(t, r.All(), 3)
}

func TestRegistryKeys(t *testing.T) {
	keys := personRegistry().Keys(person{ID: "1", Email: "Alice@Example.com", Name: "Alice", Age: 30})
	require.Equal(t, map[string]string{
		"email":    "alice@example.com",
		"name":     "Alice",
		"name_age": "Alice\x0030",
	}, keys)
}

func TestRegistryInvalid(t *testing.T) {
	email := Field[person]("Email")
	require.PanicsWithError(t, `invalid index name "Email"`, func() {
		NewRegistry(Unique("Email", email))
	})
	require.PanicsWithError(t, `invalid index name ""`, func() {
		NewRegistry(Unique("", email))
	})
	require.PanicsWithError(t, "duplicate index name: email", func() {
		NewRegistry(Unique("email", email), NonUnique("email", email))
	})
	require.PanicsWithError(t, "index email has no extractor", func() {
		NewRegistry(Definition[person]{Name: "email"})
	})
}

func TestDefinitionKeyEmpty(t *testing.T) {
	def := NonUnique("broken", func(person) Value { return Value{} })
	require.Panics(t, func() { def.Key(person{}) })
}

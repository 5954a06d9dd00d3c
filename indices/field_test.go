package indices

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type color int

func (c color) IndexSegment() string {
	return [...]string{"red", "green"}[c]
}

type version struct{ major, minor int }

func (v version) String() string {
	return "v" + string(rune('0'+v.major)) + "." + string(rune('0'+v.minor))
}

type kinds struct {
	S     string
	B     bool
	I     int64
	U     uint8
	F     float64
	T     time.Time
	P     *string
	C     color
	V     version
	Slice []string
	hidden string
}

func TestFieldKinds(t *testing.T) {
	s := "ptr"
	obj := kinds{
		S: "str",
		B: true,
		I: -42,
		U: 7,
		F: 1.5,
		T: time.Date(2024, 1, 2, 3, 4, 5, 6, time.FixedZone("X", 3600)),
		P: &s,
		C: 1,
		V: version{1, 2},
	}
	cases := map[string]string{
		"S": "str",
		"B": "true",
		"I": "-42",
		"U": "7",
		"F": "1.5",
		"T": "2024-01-02T02:04:05.000000006Z",
		"P": "ptr",
		"C": "green",
		"V": "v1.2",
	}
	for name, expected := range cases {
		require.Equal(t, expected, Field[kinds](name)(obj).Key(), name)
	}
	require.Equal(t, "", Field[kinds]("P")(kinds{}).Key())
}

func TestFieldInvalid(t *testing.T) {
	require.PanicsWithError(t, "field indices.kinds.Missing not found", func() {
		Field[kinds]("Missing")
	})
	require.PanicsWithError(t, "field indices.kinds.hidden is not exported", func() {
		Field[kinds]("hidden")
	})
	require.PanicsWithError(t, "field indices.kinds.Slice has unsupported type []string", func() {
		Field[kinds]("Slice")
	})
	require.PanicsWithError(t, "field indices.kinds.I must be string-based for case-insensitive indexing", func() {
		Field[kinds]("I", IgnoreCase)
	})
	require.Panics(t, func() { Field[*kinds]("S") })
}

func TestFieldIgnoreCase(t *testing.T) {
	extract := Field[person]("Email", IgnoreCase)
	require.Equal(t, extract(person{Email: "A@B.c"}).Key(), extract(person{Email: "a@b.C"}).Key())
	require.Equal(t, extract(person{Email: "straße@x"}).Key(), extract(person{Email: "STRASSE@X"}).Key())
	require.NotEqual(t, extract(person{Email: "a@x"}).Key(), extract(person{Email: "b@x"}).Key())
}

type Address struct {
	City string
}

type customer struct {
	Name string
	*Address
}

func TestFieldNilEmbedded(t *testing.T) {
	extract := Field[customer]("City")
	require.Equal(t, "", extract(customer{Name: "Bob"}).Key())
	require.Equal(t, "Paris", extract(customer{Name: "Bob", Address: &Address{City: "Paris"}}).Key())

	compound := Fields[customer]("Name City~")
	require.Equal(t, []string{"Bob", ""}, compound(customer{Name: "Bob"}).Segments())
}

func TestCompound(t *testing.T) {
	extract := Compound(Field[person]("Name"), Field[person]("Age"))
	v := extract(person{Name: "Bob", Age: 40})
	require.Equal(t, []string{"Bob", "40"}, v.Segments())
	require.Panics(t, func() { Compound[person]() })
}

func TestFields(t *testing.T) {
	p := person{Name: "Bob", Email: "BOB@x", Age: 40}
	require.Equal(t, Compound(Field[person]("Name"), Field[person]("Age"))(p), Fields[person]("Name Age")(p))
	require.Equal(t, Field[person]("Email", IgnoreCase)(p), Fields[person]("Email~")(p))
	require.PanicsWithError(t, `"name" is not a valid field`, func() { Fields[person]("name") })
	require.PanicsWithError(t, `"" does not name any fields`, func() { Fields[person]("") })
}

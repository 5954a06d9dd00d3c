package meta

import (
	"reflect"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestField(t *testing.T) {
	require.Equal(t, "Foo", Field{GoName: "Foo"}.String())
}

func TestStruct(t *testing.T) {
	type FooID string
	type Foo struct {
		ID     FooID
		hidden int
	}
	s := Struct{
		Table: "foo",
		Type:  reflect.TypeOf(Foo{}),
		Fields: []Field{
			{
				GoName: "ID",
				Index:  []int{0},
				Type:   reflect.TypeOf(FooID("")),
			},
		},
		identity: 0,
	}
	require.Equal(t, "meta.Foo (foo)", s.String())
	require.Equal(t, Field{
		GoName: "ID",
		Index:  []int{0},
		Type:   reflect.TypeOf(FooID("")),
	}, s.Identity())
	field, ok := s.Field("ID")
	require.True(t, ok)
	require.Equal(t, s.Identity(), field)
	_, ok = s.Field("id")
	require.False(t, ok)
	field, ok = s.Field("hidden")
	require.True(t, ok)
	require.Equal(t, []int{1}, field.Index)
	require.Empty(t, s.Indices())
}

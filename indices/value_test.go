package indices

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestValueSanitize(t *testing.T) {
	v := NewValue("a:b", "c\x00d")
	require.Equal(t, []string{"a-b", "c\x1ad"}, v.Segments())
	require.Equal(t, "a-b\x00c\x1ad", v.Key())
	require.Equal(t, "a-b:c\x1ad", v.String())
}

func TestValueKeyOrderSensitive(t *testing.T) {
	require.NotEqual(t, NewValue("a", "b").Key(), NewValue("b", "a").Key())
	require.NotEqual(t, NewValue("ab").Key(), NewValue("a", "b").Key())
	require.Equal(t, NewValue("a", "b").Key(), NewValue("a", "b").Key())
}

func TestValueEmptySegment(t *testing.T) {
	v := NewValue("")
	require.False(t, v.IsZero())
	require.Equal(t, 1, v.Len())
	require.Equal(t, "", v.Key())
	require.Equal(t, "\x00", NewValue("", "").Key())
}

func TestValueNoSegments(t *testing.T) {
	require.Panics(t, func() { NewValue() })
	require.Panics(t, func() { Concat() })
	require.True(t, Value{}.IsZero())
}

func TestConcat(t *testing.T) {
	v := Concat(NewValue("a"), NewValue("b", "c"))
	require.Equal(t, []string{"a", "b", "c"}, v.Segments())
	require.True(t, v.Equal(NewValue("a", "b", "c")))
	require.False(t, v.Equal(NewValue("a", "b")))
}

func TestFormatKey(t *testing.T) {
	require.Equal(t, "alice:30", FormatKey(NewValue("alice", "30").Key()))
}

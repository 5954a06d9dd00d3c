package indices

import (
	"strings"
)

// Delimiter separates the segments of a composite key
const Delimiter = "\x00"

var sanitizer = strings.NewReplacer(Delimiter, "\x1a", ":", "-")

// Value is an index value: an ordered, non-empty sequence of sanitized
// string segments. The zero Value is invalid.
type Value struct {
	segments []string
}

// NewValue creates a Value from one or more segments.
// Panics if no segments are given.
func NewValue(segments ...string) Value {
	if len(segments) == 0 {
		panic("indices: index value must have at least one segment")
	}
	v := Value{segments: make([]string, len(segments))}
	for i, s := range segments {
		v.segments[i] = Sanitize(s)
	}
	return v
}

// Sanitize makes a string safe to use as a segment
func Sanitize(segment string) string {
	return sanitizer.Replace(segment)
}

// Concat joins values into one compound value, preserving order
func Concat(values ...Value) Value {
	n := 0
	for _, v := range values {
		n += len(v.segments)
	}
	if n == 0 {
		panic("indices: index value must have at least one segment")
	}
	res := Value{segments: make([]string, 0, n)}
	for _, v := range values {
		res.segments = append(res.segments, v.segments...)
	}
	return res
}

// IsZero returns true for the zero (invalid) Value
func (v Value) IsZero() bool {
	return len(v.segments) == 0
}

// Segments returns a copy of the segments
func (v Value) Segments() []string {
	return append([]string(nil), v.segments...)
}

// Len returns the number of segments
func (v Value) Len() int {
	return len(v.segments)
}

// Key returns the canonical composite key
func (v Value) Key() string {
	return strings.Join(v.segments, Delimiter)
}

// Equal compares values segment by segment
func (v Value) Equal(other Value) bool {
	if len(v.segments) != len(other.segments) {
		return false
	}
	for i := range v.segments {
		if v.segments[i] != other.segments[i] {
			return false
		}
	}
	return true
}

// String returns a human-readable form of the value. Colons never occur
// inside segments, so the form is as unambiguous as Key.
func (v Value) String() string {
	return strings.Join(v.segments, ":")
}

// FormatKey returns a human-readable form of a composite key
func FormatKey(key string) string {
	return strings.ReplaceAll(key, Delimiter, ":")
}

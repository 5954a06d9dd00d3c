package indices

import (
	"fmt"
	"reflect"

	"golang.org/x/text/cases"
)

type fieldDef struct {
	name       string
	ignoreCase bool
}

// FieldOption modifies the behavior of Field
type FieldOption interface {
	apply(fd *fieldDef)
}

// IgnoreCase is an option to Field that makes the index case-insensitive
// (Unicode case folding). The field must be a string, a named type based on a
// string, or a pointer to one of those. Values that only differ in case
// produce the same key: in a unique index, they conflict.
var IgnoreCase ignoreCase

type ignoreCase struct{}

func (ignoreCase) apply(fd *fieldDef) {
	fd.ignoreCase = true
}

func modelStruct[M any]() reflect.Type {
	t := reflect.TypeOf((*M)(nil)).Elem()
	if t.Kind() != reflect.Struct {
		panic(fmt.Errorf("%v expected to be a struct type", t))
	}
	return t
}

// Field returns an extractor producing a one-segment value from the named
// field of M. M must be a struct type; the field must be of an indexable type
// (see package documentation). Panics on unknown fields and unsupported types.
func Field[M any](name string, options ...FieldOption) func(M) Value {
	fd := fieldDef{name: name}
	for _, opt := range options {
		opt.apply(&fd)
	}
	fn := fieldSegmentFn(modelStruct[M](), fd)
	return func(m M) Value {
		return NewValue(fn(reflect.ValueOf(m)))
	}
}

func fieldSegmentFn(st reflect.Type, fd fieldDef) segmentFn {
	f, ok := st.FieldByName(fd.name)
	if !ok {
		panic(fmt.Errorf("field %s.%s not found", st, fd.name))
	}
	if !f.IsExported() {
		panic(fmt.Errorf("field %s.%s is not exported", st, fd.name))
	}
	fn := segmentFnForType(f.Type)
	if fn == nil {
		panic(fmt.Errorf("field %s.%s has unsupported type %s", st, fd.name, f.Type))
	}
	if fd.ignoreCase {
		t := f.Type
		if t.Kind() == reflect.Ptr {
			t = t.Elem()
		}
		if t.Kind() != reflect.String {
			panic(fmt.Errorf("field %s.%s must be string-based for case-insensitive indexing", st, fd.name))
		}
		caseFn := fn
		fn = func(v reflect.Value) string {
			return cases.Fold().String(caseFn(v))
		}
	}
	index := f.Index
	return fieldAt(index, fn)
}

// fieldAt applies fn to a nested field. A field promoted through a nil
// embedded pointer yields an empty segment.
func fieldAt(index []int, fn segmentFn) segmentFn {
	return func(v reflect.Value) string {
		fv, err := v.FieldByIndexErr(index)
		if err != nil {
			return ""
		}
		return fn(fv)
	}
}

package indices

import (
	"fmt"
	"reflect"
	"strconv"
	"time"
)

// A segmentFn formats a value of a known type as an index segment
type segmentFn func(reflect.Value) string

// IndexSegment is an interface that can be implemented to make any type
// indexable
type IndexSegment interface {
	IndexSegment() string
}

var (
	indexSegmentInterface = reflect.TypeOf((*IndexSegment)(nil)).Elem()
	stringerInterface     = reflect.TypeOf((*fmt.Stringer)(nil)).Elem()
	timeType              = reflect.TypeOf(time.Time{})
)

func segmentFnForType(t reflect.Type) segmentFn {
	if t.Implements(indexSegmentInterface) {
		return func(v reflect.Value) string {
			return v.Interface().(IndexSegment).IndexSegment()
		}
	}
	if t == timeType {
		return func(v reflect.Value) string {
			// UTC so that the same instant always yields the same key
			return v.Interface().(time.Time).UTC().Format(time.RFC3339Nano)
		}
	}
	switch t.Kind() {
	case reflect.String:
		return func(v reflect.Value) string {
			return v.String()
		}
	case reflect.Bool:
		return func(v reflect.Value) string {
			return strconv.FormatBool(v.Bool())
		}
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return func(v reflect.Value) string {
			return strconv.FormatInt(v.Int(), 10)
		}
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return func(v reflect.Value) string {
			return strconv.FormatUint(v.Uint(), 10)
		}
	case reflect.Float32, reflect.Float64:
		bits := t.Bits()
		return func(v reflect.Value) string {
			return strconv.FormatFloat(v.Float(), 'g', -1, bits)
		}
	case reflect.Ptr:
		elemFn := segmentFnForType(t.Elem())
		if elemFn == nil {
			return nil
		}
		return func(v reflect.Value) string {
			if v.IsNil() {
				return ""
			}
			return elemFn(v.Elem())
		}
	}
	if t.Implements(stringerInterface) {
		return func(v reflect.Value) string {
			return v.Interface().(fmt.Stringer).String()
		}
	}
	return nil
}

package indices

import (
	"fmt"
	"reflect"
	"regexp"
	"strings"
)

var tokenRx = regexp.MustCompile(`^([A-Z][A-Za-z0-9_]*)(~)?$`)

// Fields is a shorthand for common extractors. The description contains
// space-separated field names of M, in forms "Field" and "Field~". The
// resulting value has one segment per field, in order of appearance. Fields
// of form "Field~" are compared case-insensitively (see IgnoreCase).
//
// Examples:
//
//	Fields[User]("Email~") => Field[User]("Email", IgnoreCase)
//	Fields[User]("Name Age") => Compound(Field[User]("Name"), Field[User]("Age"))
func Fields[M any](def string) func(M) Value {
	st := modelStruct[M]()
	tokens := strings.Fields(def)
	if len(tokens) == 0 {
		panic(fmt.Errorf("%q does not name any fields", def))
	}
	fns := make([]segmentFn, 0, len(tokens))
	for _, token := range tokens {
		m := tokenRx.FindStringSubmatch(token)
		if m == nil {
			panic(fmt.Errorf("%q is not a valid field", token))
		}
		fns = append(fns, fieldSegmentFn(st, fieldDef{name: m[1], ignoreCase: m[2] == "~"}))
	}
	return segmentsExtractor[M](fns)
}

func segmentsExtractor[M any](fns []segmentFn) func(M) Value {
	return func(m M) Value {
		v := reflect.ValueOf(m)
		segments := make([]string, 0, len(fns))
		for _, fn := range fns {
			segments = append(segments, fn(v))
		}
		return NewValue(segments...)
	}
}

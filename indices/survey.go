package indices

import (
	"fmt"
	"reflect"

	"github.com/ridge/quarry/meta"
)

// Schema is everything a store needs to know about a tagged model type
type Schema[M any] struct {
	Table    string
	Registry *Registry[M]

	identity []int
}

// ID returns the value of the identity field of the model
func (s Schema[M]) ID(m M) string {
	return reflect.ValueOf(m).FieldByIndex(s.identity).String()
}

// Survey builds the Schema of M from its `quarry` struct tags (see
// meta.Survey). Indices appear in the registry in order of first appearance
// of their fields. Panics on malformed tags and unindexable field types.
//
// Survey uses reflection and is relatively expensive: call it once per type.
func Survey[M any]() Schema[M] {
	st := meta.Survey(modelStruct[M]())

	var defs []Definition[M]
	for _, index := range st.Indices() {
		fns := make([]segmentFn, 0, len(index.Fields))
		for _, field := range index.Fields {
			fn := segmentFnForType(field.Type)
			if fn == nil {
				panic(fmt.Errorf("field %s.%s has unsupported type %s", st.Type, field, field.Type))
			}
			fns = append(fns, fieldAt(field.Index, fn))
		}
		defs = append(defs, Definition[M]{
			Name:    index.Name,
			Unique:  index.Unique,
			Extract: segmentsExtractor[M](fns),
		})
	}

	return Schema[M]{
		Table:    st.Table,
		Registry: NewRegistry(defs...),
		identity: st.Identity().Index,
	}
}

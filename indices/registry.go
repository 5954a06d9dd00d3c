package indices

import (
	"fmt"
	"regexp"
)

var nameRx = regexp.MustCompile(`^[a-z][a-z0-9_]*$`)

// ValidName reports whether name can be used as an index or table name.
// Such names are safe to embed in SQL identifiers unquoted.
func ValidName(name string) bool {
	return nameRx.MatchString(name)
}

// Registry is the immutable set of index definitions of one model type.
// Definitions keep their declaration order.
type Registry[M any] struct {
	defs   []Definition[M]
	byName map[string]int
}

// NewRegistry creates a registry. Panics on invalid or duplicate names and
// on missing extractors: those are programming errors.
func NewRegistry[M any](defs ...Definition[M]) *Registry[M] {
	r := &Registry[M]{
		defs:   make([]Definition[M], 0, len(defs)),
		byName: make(map[string]int, len(defs)),
	}
	for _, def := range defs {
		if !ValidName(def.Name) {
			panic(fmt.Errorf("invalid index name %q", def.Name))
		}
		if _, ok := r.byName[def.Name]; ok {
			panic(fmt.Errorf("duplicate index name: %s", def.Name))
		}
		if def.Extract == nil {
			panic(fmt.Errorf("index %s has no extractor", def.Name))
		}
		r.byName[def.Name] = len(r.defs)
		r.defs = append(r.defs, def)
	}
	return r
}

// Get finds an index definition by name
func (r *Registry[M]) Get(name string) (Definition[M], bool) {
	i, ok := r.byName[name]
	if !ok {
		return Definition[M]{}, false
	}
	return r.defs[i], true
}

// All returns all definitions in declaration order
func (r *Registry[M]) All() []Definition[M] {
	return append([]Definition[M](nil), r.defs...)
}

// Unique returns the unique definitions
func (r *Registry[M]) Unique() []Definition[M] {
	return r.filter(true)
}

// NonUnique returns the non-unique definitions
func (r *Registry[M]) NonUnique() []Definition[M] {
	return r.filter(false)
}

func (r *Registry[M]) filter(unique bool) []Definition[M] {
	var res []Definition[M]
	for _, def := range r.defs {
		if def.Unique == unique {
			res = append(res, def)
		}
	}
	return res
}

// Names returns the index names in declaration order
func (r *Registry[M]) Names() []string {
	names := make([]string, 0, len(r.defs))
	for _, def := range r.defs {
		names = append(names, def.Name)
	}
	return names
}

// Len returns the number of definitions
func (r *Registry[M]) Len() int {
	return len(r.defs)
}

// Keys extracts the composite keys of every index from the model
func (r *Registry[M]) Keys(m M) map[string]string {
	keys := make(map[string]string, len(r.defs))
	for _, def := range r.defs {
		keys[def.Name] = def.Key(m)
	}
	return keys
}

package meta

import (
	"fmt"
	"reflect"
)

// Meta is a type for dummy fields bearing tags for the containing structure
type Meta struct{}

var metaType = reflect.TypeOf(Meta{})

// IndexRef names an index a field participates in.
type IndexRef struct {
	Name   string
	Unique bool
}

// Field describes a leaf structure field (not an embedded substructure).
// All fields are read-only.
type Field struct {
	GoName  string
	Index   []int
	Type    reflect.Type
	Indices []IndexRef
}

// String returns the Go field name
func (f Field) String() string {
	return f.GoName
}

// Struct describes a model structure.
// All fields are read-only.
type Struct struct {
	Table    string
	Type     reflect.Type
	Fields   []Field
	identity int // index into Fields
}

const noIdentity = -1

// String returns the Go type and table names
func (s Struct) String() string {
	return fmt.Sprintf("%s (%s)", s.Type, s.Table)
}

// Identity returns the structure's identity field
func (s Struct) Identity() Field {
	return s.Fields[s.identity]
}

// Field finds the field with a given Go name (if exists and is unique)
func (s Struct) Field(name string) (Field, bool) {
	f, ok := s.Type.FieldByName(name)
	if !ok {
		return Field{}, false
	}
	for _, field := range s.Fields {
		if field.GoName == name {
			return field, true
		}
	}
	// skipped field: return anyway to allow indices on skipped fields
	return Field{GoName: name, Index: f.Index, Type: f.Type}, true
}

// Index describes one index declared through field tags. Fields are listed in
// declaration order, which is also the order of the index value segments.
type Index struct {
	Name   string
	Unique bool
	Fields []Field
}

// Indices groups the tagged fields by index name, in order of first
// appearance.
func (s Struct) Indices() []Index {
	var res []Index
	byName := map[string]int{}
	for _, field := range s.Fields {
		for _, ref := range field.Indices {
			i, ok := byName[ref.Name]
			if !ok {
				i = len(res)
				byName[ref.Name] = i
				res = append(res, Index{Name: ref.Name, Unique: ref.Unique})
			}
			if res[i].Unique != ref.Unique {
				panicf("index %s of %v is declared both unique and non-unique", ref.Name, s)
			}
			res[i].Fields = append(res[i].Fields, field)
		}
	}
	return res
}

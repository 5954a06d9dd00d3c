package quarry

import (
	"github.com/google/uuid"
	"github.com/ridge/quarry/indices"
)

// RecordID is an opaque record identifier, unique within a model table.
// The zero RecordID is invalid.
type RecordID string

// NewRecordID generates a new time-ordered RecordID (UUIDv7)
func NewRecordID() RecordID {
	return RecordID(uuid.Must(uuid.NewV7()).String())
}

// IsZero returns true for the zero (invalid) RecordID
func (id RecordID) IsZero() bool {
	return id == ""
}

func (id RecordID) String() string {
	return string(id)
}

// Model is the contract a type must satisfy to be stored.
//
// Table and Indices must not depend on the receiver: they are called on zero
// values. Indices should return the same registry on every call.
type Model[M any] interface {
	ID() RecordID
	Table() string
	Indices() *indices.Registry[M]
}

// TableOf returns the table name of model type M
func TableOf[M Model[M]]() string {
	var zero M
	return zero.Table()
}

// IndicesOf returns the index registry of model type M
func IndicesOf[M Model[M]]() *indices.Registry[M] {
	var zero M
	return zero.Indices()
}

// ResolveIndex finds the definition of the named index of M. If unique is
// set, the index must be unique.
func ResolveIndex[M Model[M]](name string, unique bool) (indices.Definition[M], error) {
	def, ok := IndicesOf[M]().Get(name)
	if !ok {
		return def, IndexNotFound(name)
	}
	if unique && !def.Unique {
		return def, IndexNotUnique(name)
	}
	return def, nil
}

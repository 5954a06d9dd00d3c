package quarry

import (
	"context"
	"fmt"
	"math"

	"github.com/ridge/quarry/indices"
)

// Backend is the set of primitive operations implemented by every storage
// backend. Implementations must be safe for concurrent use.
type Backend[M Model[M]] interface {
	// InitializeSchema creates the physical structures. Idempotent.
	InitializeSchema(ctx context.Context) error

	// Insert stores a new record. Fails with ErrDuplicateID if the id is
	// present and with UniqueViolationError on unique index conflicts.
	Insert(ctx context.Context, m M) error

	// Update replaces an existing record and recomputes its index entries.
	// Fails with NotFoundError if the id is absent.
	Update(ctx context.Context, m M) error

	// Delete removes a record with all its index entries. Fails with
	// NotFoundError if the id is absent.
	Delete(ctx context.Context, id RecordID) error

	Get(ctx context.Context, id RecordID) (M, bool, error)
	FindByUniqueIndex(ctx context.Context, index string, value indices.Value) (M, bool, error)
	FindByIndex(ctx context.Context, index string, value indices.Value) ([]M, error)

	// List returns records ordered by last update, newest first
	List(ctx context.Context, limit, offset int) ([]M, error)

	Count(ctx context.Context) (uint64, error)
	Exists(ctx context.Context, id RecordID) (bool, error)
}

// IndexCounter is implemented by backends that can count index matches
// without loading the records
type IndexCounter interface {
	CountByIndex(ctx context.Context, index string, value indices.Value) (uint64, error)
}

// Store wraps a Backend and adds operations derived from its primitives
type Store[M Model[M]] struct {
	backend Backend[M]
}

// New creates a Store over a backend
func New[M Model[M]](backend Backend[M]) *Store[M] {
	return &Store[M]{backend: backend}
}

// Backend returns the wrapped backend
func (s *Store[M]) Backend() Backend[M] {
	return s.backend
}

// InitializeSchema creates the physical structures of the backend
func (s *Store[M]) InitializeSchema(ctx context.Context) error {
	return s.backend.InitializeSchema(ctx)
}

// Insert stores a new record
func (s *Store[M]) Insert(ctx context.Context, m M) error {
	return s.backend.Insert(ctx, m)
}

// Update replaces an existing record
func (s *Store[M]) Update(ctx context.Context, m M) error {
	return s.backend.Update(ctx, m)
}

// Delete removes a record
func (s *Store[M]) Delete(ctx context.Context, id RecordID) error {
	return s.backend.Delete(ctx, id)
}

// Get returns a record by id
func (s *Store[M]) Get(ctx context.Context, id RecordID) (M, bool, error) {
	return s.backend.Get(ctx, id)
}

// FindByUniqueIndex returns the record mapped to the value by a unique index
func (s *Store[M]) FindByUniqueIndex(ctx context.Context, index string, value indices.Value) (M, bool, error) {
	return s.backend.FindByUniqueIndex(ctx, index, value)
}

// FindByIndex returns all records mapped to the value by an index
func (s *Store[M]) FindByIndex(ctx context.Context, index string, value indices.Value) ([]M, error) {
	return s.backend.FindByIndex(ctx, index, value)
}

// List returns a page of records, newest first
func (s *Store[M]) List(ctx context.Context, limit, offset int) ([]M, error) {
	return s.backend.List(ctx, limit, offset)
}

// Count returns the number of records
func (s *Store[M]) Count(ctx context.Context) (uint64, error) {
	return s.backend.Count(ctx)
}

// Exists checks whether a record is present
func (s *Store[M]) Exists(ctx context.Context, id RecordID) (bool, error) {
	return s.backend.Exists(ctx, id)
}

// Upsert inserts the record if its id is absent and updates it otherwise.
// Returns true if the record was inserted, false if it was updated or the
// write failed.
//
// The check and the write are separate operations: a concurrent writer of
// the same id can make the write fail with ErrDuplicateID or NotFoundError.
func (s *Store[M]) Upsert(ctx context.Context, m M) (bool, error) {
	exists, err := s.backend.Exists(ctx, m.ID())
	if err != nil {
		return false, err
	}
	if exists {
		return false, s.backend.Update(ctx, m)
	}
	if err := s.backend.Insert(ctx, m); err != nil {
		return false, err
	}
	return true, nil
}

// DeleteAndReturn removes a record and returns it
func (s *Store[M]) DeleteAndReturn(ctx context.Context, id RecordID) (M, error) {
	m, err := s.GetOrError(ctx, id)
	if err != nil {
		return m, err
	}
	if err := s.backend.Delete(ctx, id); err != nil {
		var zero M
		return zero, err
	}
	return m, nil
}

// GetOrError returns a record by id, or NotFoundError
func (s *Store[M]) GetOrError(ctx context.Context, id RecordID) (M, error) {
	m, ok, err := s.backend.Get(ctx, id)
	if err != nil {
		return m, err
	}
	if !ok {
		return m, NotFound(string(id))
	}
	return m, nil
}

// GetMany returns records by ids. The result is positional: the element at
// position i corresponds to ids[i] and is nil if that record is absent.
func (s *Store[M]) GetMany(ctx context.Context, ids []RecordID) ([]*M, error) {
	res := make([]*M, len(ids))
	for i, id := range ids {
		m, ok, err := s.backend.Get(ctx, id)
		if err != nil {
			return nil, err
		}
		if ok {
			res[i] = &m
		}
	}
	return res, nil
}

// FindByUniqueIndexOrError returns the record mapped to the value by a unique
// index, or NotFoundError with key "index=value"
func (s *Store[M]) FindByUniqueIndexOrError(ctx context.Context, index string, value indices.Value) (M, error) {
	m, ok, err := s.backend.FindByUniqueIndex(ctx, index, value)
	if err != nil {
		return m, err
	}
	if !ok {
		return m, NotFound(fmt.Sprintf("%s=%s", index, value))
	}
	return m, nil
}

// FindOneByIndex returns any one record mapped to the value by an index.
// Which one is unspecified when there are several.
func (s *Store[M]) FindOneByIndex(ctx context.Context, index string, value indices.Value) (M, bool, error) {
	ms, err := s.backend.FindByIndex(ctx, index, value)
	if err != nil || len(ms) == 0 {
		var zero M
		return zero, false, err
	}
	return ms[0], true, nil
}

// ListAll returns all records, newest first
func (s *Store[M]) ListAll(ctx context.Context) ([]M, error) {
	return s.backend.List(ctx, math.MaxInt32, 0)
}

// CountByIndex returns the number of records mapped to the value by an index
func (s *Store[M]) CountByIndex(ctx context.Context, index string, value indices.Value) (uint64, error) {
	if counter, ok := s.backend.(IndexCounter); ok {
		return counter.CountByIndex(ctx, index, value)
	}
	ms, err := s.backend.FindByIndex(ctx, index, value)
	if err != nil {
		return 0, err
	}
	return uint64(len(ms)), nil
}

// ExistsByUniqueIndex checks whether a unique index maps the value to a
// record
func (s *Store[M]) ExistsByUniqueIndex(ctx context.Context, index string, value indices.Value) (bool, error) {
	_, ok, err := s.backend.FindByUniqueIndex(ctx, index, value)
	return ok, err
}

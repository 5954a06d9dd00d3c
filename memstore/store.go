// Package memstore is an in-memory quarry backend over go-memdb.
//
// Writers are serialized by the memdb writer lock; readers work on immutable
// snapshots and never block or observe a partially applied write. Every
// write validates all its constraints inside the write transaction before
// mutating anything, and a failed write aborts the transaction.
package memstore

import (
	"context"
	"fmt"
	"time"

	"github.com/hashicorp/go-memdb"
	"github.com/ridge/must/v2"
	"github.com/ridge/quarry"
	"github.com/ridge/quarry/codec"
	"github.com/ridge/quarry/indices"
	"github.com/ridge/quarry/tlog"
	"go.uber.org/zap"
)

type options struct {
	codec codec.Codec
}

// Option configures a Store
type Option func(*options)

// WithCodec sets the document codec (codec.Default if not set)
func WithCodec(c codec.Codec) Option {
	return func(o *options) {
		o.codec = c
	}
}

// Store is an in-memory backend for models of type M.
// Safe for concurrent use.
type Store[M quarry.Model[M]] struct {
	db       *memdb.MemDB
	table    string
	registry *indices.Registry[M]
	codec    codec.Codec
}

// New creates an empty store
func New[M quarry.Model[M]](opts ...Option) *Store[M] {
	o := options{codec: codec.Default}
	for _, opt := range opts {
		opt(&o)
	}
	table := quarry.TableOf[M]()
	registry := quarry.IndicesOf[M]()
	return &Store[M]{
		db: must.OK1(memdb.NewMemDB(&memdb.DBSchema{
			Tables: map[string]*memdb.TableSchema{table: tableSchema(table, registry)},
		})),
		table:    table,
		registry: registry,
		codec:    o.codec,
	}
}

func (s *Store[M]) logger(ctx context.Context, id quarry.RecordID) *zap.Logger {
	return tlog.Get(ctx).With(zap.String("table", s.table), zap.String("id", string(id)))
}

// InitializeSchema is a no-op: the schema is created by New
func (s *Store[M]) InitializeSchema(ctx context.Context) error {
	return ctx.Err()
}

func (s *Store[M]) encode(m M, prev *record) (*record, error) {
	doc, err := s.codec.Marshal(m)
	if err != nil {
		return nil, quarry.Serialization(err)
	}
	now := time.Now()
	r := &record{
		ID:        string(m.ID()),
		Document:  doc,
		Keys:      s.registry.Keys(m),
		CreatedAt: now,
		UpdatedAt: now,
	}
	if prev != nil {
		r.CreatedAt = prev.CreatedAt
	}
	return r, nil
}

func (s *Store[M]) decode(r *record) (M, error) {
	var m M
	if err := s.codec.Unmarshal(r.Document, &m); err != nil {
		return m, quarry.Serialization(err)
	}
	return m, nil
}

func (s *Store[M]) get(txn *memdb.Txn, id string) *record {
	obj := must.OK1(txn.First(s.table, idIndex, id))
	if obj == nil {
		return nil
	}
	return obj.(*record)
}

// lookup returns the records whose key in the index is exactly key. memdb
// matches index values by prefix, so results are filtered.
func (s *Store[M]) lookup(txn *memdb.Txn, index, key string) []*record {
	var res []*record
	iter := must.OK1(txn.Get(s.table, indexName(index), key))
	for obj := iter.Next(); obj != nil; obj = iter.Next() {
		r := obj.(*record)
		if r.Keys[index] == key {
			res = append(res, r)
		}
	}
	return res
}

// checkUnique verifies that no other record holds any of the unique keys of r
func (s *Store[M]) checkUnique(txn *memdb.Txn, r *record) error {
	for _, def := range s.registry.Unique() {
		key := r.Keys[def.Name]
		for _, other := range s.lookup(txn, def.Name, key) {
			if other.ID != r.ID {
				return quarry.UniqueViolation(def.Name, key)
			}
		}
	}
	return nil
}

// Insert stores a new record
func (s *Store[M]) Insert(ctx context.Context, m M) error {
	if err := ctx.Err(); err != nil {
		return quarry.BackendError("insert", err)
	}
	r, err := s.encode(m, nil)
	if err != nil {
		return err
	}

	txn := s.db.Txn(true)
	defer txn.Abort()

	if s.get(txn, r.ID) != nil {
		return fmt.Errorf("%w: %s", quarry.ErrDuplicateID, r.ID)
	}
	if err := s.checkUnique(txn, r); err != nil {
		return err
	}
	must.OK(txn.Insert(s.table, r))
	txn.Commit()

	s.logger(ctx, m.ID()).Debug("Record inserted")
	return nil
}

// Update replaces an existing record
func (s *Store[M]) Update(ctx context.Context, m M) error {
	if err := ctx.Err(); err != nil {
		return quarry.BackendError("update", err)
	}

	txn := s.db.Txn(true)
	defer txn.Abort()

	prev := s.get(txn, string(m.ID()))
	if prev == nil {
		s.logger(ctx, m.ID()).Warn("Record to update not found")
		return quarry.NotFound(string(m.ID()))
	}
	r, err := s.encode(m, prev)
	if err != nil {
		return err
	}
	if err := s.checkUnique(txn, r); err != nil {
		return err
	}
	must.OK(txn.Insert(s.table, r))
	txn.Commit()

	s.logger(ctx, m.ID()).Debug("Record updated")
	return nil
}

// Delete removes a record
func (s *Store[M]) Delete(ctx context.Context, id quarry.RecordID) error {
	if err := ctx.Err(); err != nil {
		return quarry.BackendError("delete", err)
	}

	txn := s.db.Txn(true)
	defer txn.Abort()

	r := s.get(txn, string(id))
	if r == nil {
		s.logger(ctx, id).Warn("Record to delete not found")
		return quarry.NotFound(string(id))
	}
	must.OK(txn.Delete(s.table, r))
	txn.Commit()

	s.logger(ctx, id).Debug("Record deleted")
	return nil
}

// Get returns a record by id
func (s *Store[M]) Get(ctx context.Context, id quarry.RecordID) (M, bool, error) {
	var zero M
	if err := ctx.Err(); err != nil {
		return zero, false, quarry.BackendError("get", err)
	}
	r := s.get(s.db.Txn(false), string(id))
	if r == nil {
		return zero, false, nil
	}
	m, err := s.decode(r)
	if err != nil {
		return zero, false, err
	}
	return m, true, nil
}

// FindByUniqueIndex returns the record mapped to the value by a unique index
func (s *Store[M]) FindByUniqueIndex(ctx context.Context, index string, value indices.Value) (M, bool, error) {
	var zero M
	if err := ctx.Err(); err != nil {
		return zero, false, quarry.BackendError("find by unique index", err)
	}
	if _, err := quarry.ResolveIndex[M](index, true); err != nil {
		return zero, false, err
	}
	found := s.lookup(s.db.Txn(false), index, value.Key())
	if len(found) == 0 {
		return zero, false, nil
	}
	m, err := s.decode(found[0])
	if err != nil {
		return zero, false, err
	}
	return m, true, nil
}

// FindByIndex returns all records mapped to the value by an index
func (s *Store[M]) FindByIndex(ctx context.Context, index string, value indices.Value) ([]M, error) {
	if err := ctx.Err(); err != nil {
		return nil, quarry.BackendError("find by index", err)
	}
	if _, err := quarry.ResolveIndex[M](index, false); err != nil {
		return nil, err
	}
	return s.decodeAll(s.lookup(s.db.Txn(false), index, value.Key()))
}

// CountByIndex returns the number of records mapped to the value by an index
// without decoding them
func (s *Store[M]) CountByIndex(ctx context.Context, index string, value indices.Value) (uint64, error) {
	if err := ctx.Err(); err != nil {
		return 0, quarry.BackendError("count by index", err)
	}
	if _, err := quarry.ResolveIndex[M](index, false); err != nil {
		return 0, err
	}
	return uint64(len(s.lookup(s.db.Txn(false), index, value.Key()))), nil
}

func (s *Store[M]) decodeAll(records []*record) ([]M, error) {
	res := make([]M, 0, len(records))
	for _, r := range records {
		m, err := s.decode(r)
		if err != nil {
			return nil, err
		}
		res = append(res, m)
	}
	return res, nil
}

// List returns a page of records ordered by last update, newest first
func (s *Store[M]) List(ctx context.Context, limit, offset int) ([]M, error) {
	if err := ctx.Err(); err != nil {
		return nil, quarry.BackendError("list", err)
	}
	var records []*record
	iter := must.OK1(s.db.Txn(false).GetReverse(s.table, updatedIndex))
	for obj := iter.Next(); obj != nil && len(records) < limit; obj = iter.Next() {
		if offset > 0 {
			offset--
			continue
		}
		records = append(records, obj.(*record))
	}
	return s.decodeAll(records)
}

// Count returns the number of records
func (s *Store[M]) Count(ctx context.Context) (uint64, error) {
	if err := ctx.Err(); err != nil {
		return 0, quarry.BackendError("count", err)
	}
	return uint64(s.Len()), nil
}

// Exists checks whether a record is present
func (s *Store[M]) Exists(ctx context.Context, id quarry.RecordID) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, quarry.BackendError("exists", err)
	}
	return s.get(s.db.Txn(false), string(id)) != nil, nil
}

// Len returns the number of records
func (s *Store[M]) Len() int {
	n := 0
	iter := must.OK1(s.db.Txn(false).Get(s.table, idIndex))
	for obj := iter.Next(); obj != nil; obj = iter.Next() {
		n++
	}
	return n
}

// Clear removes all records
func (s *Store[M]) Clear() {
	txn := s.db.Txn(true)
	defer txn.Abort()
	must.OK1(txn.DeleteAll(s.table, idIndex))
	txn.Commit()
}

// Package boltstore is an embedded quarry backend over bbolt.
//
// Each model table is a root bucket holding the records, an update-time
// ordering and one bucket per declared index. Every write is a single bbolt
// read-write transaction: constraints are checked before anything is put, and
// any error rolls the transaction back.
package boltstore

import (
	"context"
	"fmt"
	"time"

	"github.com/ridge/quarry"
	"github.com/ridge/quarry/codec"
	"github.com/ridge/quarry/indices"
	"github.com/ridge/quarry/tlog"
	"go.etcd.io/bbolt"
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

// Open opens or creates a bbolt database file
func Open(path string) (*bbolt.DB, error) {
	db, err := bbolt.Open(path, 0o600, &bbolt.Options{Timeout: 10 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open bolt database %s: %w", path, err)
	}
	return db, nil
}

// Store is a bbolt backend for models of type M.
// Safe for concurrent use.
type Store[M quarry.Model[M]] struct {
	db       *bbolt.DB
	table    string
	registry *indices.Registry[M]
	codec    codec.Codec
}

// New creates a store over an open bbolt database. Several stores (of
// different model types) can share a database.
func New[M quarry.Model[M]](db *bbolt.DB, opts ...Option) *Store[M] {
	o := options{codec: codec.Default}
	for _, opt := range opts {
		opt(&o)
	}
	return &Store[M]{
		db:       db,
		table:    quarry.TableOf[M](),
		registry: quarry.IndicesOf[M](),
		codec:    o.codec,
	}
}

func (s *Store[M]) logger(ctx context.Context, id quarry.RecordID) *zap.Logger {
	return tlog.Get(ctx).With(zap.String("table", s.table), zap.String("id", string(id)))
}

func (s *Store[M]) update(ctx context.Context, op string, f func(tb tableBuckets) error) error {
	if err := ctx.Err(); err != nil {
		return quarry.BackendError(op, err)
	}
	err := s.db.Update(func(tx *bbolt.Tx) error {
		tb, err := openBuckets(tx, s.table)
		if err != nil {
			return quarry.BackendError(op, err)
		}
		return f(tb)
	})
	return s.wrap(op, err)
}

func (s *Store[M]) view(ctx context.Context, op string, f func(tb tableBuckets) error) error {
	if err := ctx.Err(); err != nil {
		return quarry.BackendError(op, err)
	}
	err := s.db.View(func(tx *bbolt.Tx) error {
		tb, err := openBuckets(tx, s.table)
		if err != nil {
			return quarry.BackendError(op, err)
		}
		return f(tb)
	})
	return s.wrap(op, err)
}

// wrap classifies errors of bbolt itself; errors produced by the store are
// already classified
func (s *Store[M]) wrap(op string, err error) error {
	if err == nil || quarry.KindOf(err) != "other" {
		return err
	}
	return quarry.BackendError(op, err)
}

// InitializeSchema creates the buckets of the table. Idempotent.
func (s *Store[M]) InitializeSchema(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return quarry.BackendError("initialize schema", err)
	}
	err := s.db.Update(func(tx *bbolt.Tx) error {
		root, err := tx.CreateBucketIfNotExists([]byte(s.table))
		if err != nil {
			return err
		}
		names := [][]byte{recordsBucket, updatedBucket}
		for _, def := range s.registry.All() {
			names = append(names, indexBucket(def.Name))
		}
		for _, name := range names {
			if _, err := root.CreateBucketIfNotExists(name); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return quarry.BackendError("initialize schema", err)
	}
	tlog.Get(ctx).Debug("Schema initialized", zap.String("table", s.table))
	return nil
}

func (s *Store[M]) encode(m M, created, updated int64) ([]byte, map[string]string, error) {
	doc, err := s.codec.Marshal(m)
	if err != nil {
		return nil, nil, quarry.Serialization(err)
	}
	keys := s.registry.Keys(m)
	data, err := encodeEnvelope(envelope{Doc: doc, Keys: keys, Created: created, Updated: updated})
	if err != nil {
		return nil, nil, quarry.Serialization(err)
	}
	return data, keys, nil
}

func (s *Store[M]) decode(data []byte) (M, error) {
	var m M
	env, err := decodeEnvelope(data)
	if err != nil {
		return m, quarry.Serialization(err)
	}
	if err := s.codec.Unmarshal(env.Doc, &m); err != nil {
		return m, quarry.Serialization(err)
	}
	return m, nil
}

// checkUnique verifies that no other record holds any of the unique keys
func (s *Store[M]) checkUnique(tb tableBuckets, id string, keys map[string]string) error {
	for _, def := range s.registry.Unique() {
		owner := tb.index(def.Name).Get(uniqueKey(keys[def.Name]))
		if owner != nil && string(owner) != id {
			return quarry.UniqueViolation(def.Name, keys[def.Name])
		}
	}
	return nil
}

func (s *Store[M]) putEntries(tb tableBuckets, id string, keys map[string]string, updated int64) error {
	for _, def := range s.registry.All() {
		b := tb.index(def.Name)
		var err error
		if def.Unique {
			err = b.Put(uniqueKey(keys[def.Name]), []byte(id))
		} else {
			err = b.Put(entryKey(keys[def.Name], id), []byte(id))
		}
		if err != nil {
			return err
		}
	}
	return tb.updated.Put(updatedKey(updated, id), []byte(id))
}

func (s *Store[M]) deleteEntries(tb tableBuckets, id string, env envelope) error {
	for _, def := range s.registry.All() {
		b := tb.index(def.Name)
		var err error
		if def.Unique {
			err = b.Delete(uniqueKey(env.Keys[def.Name]))
		} else {
			err = b.Delete(entryKey(env.Keys[def.Name], id))
		}
		if err != nil {
			return err
		}
	}
	return tb.updated.Delete(updatedKey(env.Updated, id))
}

// Insert stores a new record
func (s *Store[M]) Insert(ctx context.Context, m M) error {
	id := string(m.ID())
	now := time.Now().UnixNano()
	data, keys, err := s.encode(m, now, now)
	if err != nil {
		return err
	}

	err = s.update(ctx, "insert", func(tb tableBuckets) error {
		if tb.records.Get([]byte(id)) != nil {
			return fmt.Errorf("%w: %s", quarry.ErrDuplicateID, id)
		}
		if err := s.checkUnique(tb, id, keys); err != nil {
			return err
		}
		if err := tb.records.Put([]byte(id), data); err != nil {
			return err
		}
		return s.putEntries(tb, id, keys, now)
	})
	if err != nil {
		return err
	}
	s.logger(ctx, m.ID()).Debug("Record inserted")
	return nil
}

// Update replaces an existing record and its index entries
func (s *Store[M]) Update(ctx context.Context, m M) error {
	id := string(m.ID())
	err := s.update(ctx, "update", func(tb tableBuckets) error {
		old := tb.records.Get([]byte(id))
		if old == nil {
			return quarry.NotFound(id)
		}
		prev, err := decodeEnvelope(old)
		if err != nil {
			return quarry.Serialization(err)
		}
		now := time.Now().UnixNano()
		data, keys, err := s.encode(m, prev.Created, now)
		if err != nil {
			return err
		}
		if err := s.checkUnique(tb, id, keys); err != nil {
			return err
		}
		if err := s.deleteEntries(tb, id, prev); err != nil {
			return err
		}
		if err := tb.records.Put([]byte(id), data); err != nil {
			return err
		}
		return s.putEntries(tb, id, keys, now)
	})
	if quarry.KindOf(err) == "not_found" {
		s.logger(ctx, m.ID()).Warn("Record to update not found")
	}
	if err != nil {
		return err
	}
	s.logger(ctx, m.ID()).Debug("Record updated")
	return nil
}

// Delete removes a record with its index entries
func (s *Store[M]) Delete(ctx context.Context, id quarry.RecordID) error {
	err := s.update(ctx, "delete", func(tb tableBuckets) error {
		old := tb.records.Get([]byte(id))
		if old == nil {
			return quarry.NotFound(string(id))
		}
		prev, err := decodeEnvelope(old)
		if err != nil {
			return quarry.Serialization(err)
		}
		if err := s.deleteEntries(tb, string(id), prev); err != nil {
			return err
		}
		return tb.records.Delete([]byte(id))
	})
	if quarry.KindOf(err) == "not_found" {
		s.logger(ctx, id).Warn("Record to delete not found")
	}
	if err != nil {
		return err
	}
	s.logger(ctx, id).Debug("Record deleted")
	return nil
}

// Get returns a record by id
func (s *Store[M]) Get(ctx context.Context, id quarry.RecordID) (M, bool, error) {
	var m M
	var found bool
	err := s.view(ctx, "get", func(tb tableBuckets) error {
		data := tb.records.Get([]byte(id))
		if data == nil {
			return nil
		}
		var err error
		m, err = s.decode(data)
		found = err == nil
		return err
	})
	return m, found, err
}

func (s *Store[M]) find(ctx context.Context, op, index string, unique bool, value indices.Value) ([]M, error) {
	def, err := quarry.ResolveIndex[M](index, unique)
	if err != nil {
		return nil, err
	}
	var res []M
	err = s.view(ctx, op, func(tb tableBuckets) error {
		for _, id := range lookup(tb.index(index), def.Unique, value.Key()) {
			m, err := s.decode(tb.records.Get([]byte(id)))
			if err != nil {
				return err
			}
			res = append(res, m)
		}
		return nil
	})
	return res, err
}

// FindByUniqueIndex returns the record mapped to the value by a unique index
func (s *Store[M]) FindByUniqueIndex(ctx context.Context, index string, value indices.Value) (M, bool, error) {
	var zero M
	found, err := s.find(ctx, "find by unique index", index, true, value)
	if err != nil || len(found) == 0 {
		return zero, false, err
	}
	return found[0], true, nil
}

// FindByIndex returns all records mapped to the value by an index, in order
// of their ids
func (s *Store[M]) FindByIndex(ctx context.Context, index string, value indices.Value) ([]M, error) {
	return s.find(ctx, "find by index", index, false, value)
}

// CountByIndex counts the index entries matching the value
func (s *Store[M]) CountByIndex(ctx context.Context, index string, value indices.Value) (uint64, error) {
	def, err := quarry.ResolveIndex[M](index, false)
	if err != nil {
		return 0, err
	}
	var n uint64
	err = s.view(ctx, "count by index", func(tb tableBuckets) error {
		n = uint64(len(lookup(tb.index(index), def.Unique, value.Key())))
		return nil
	})
	return n, err
}

// List returns a page of records ordered by last update, newest first
func (s *Store[M]) List(ctx context.Context, limit, offset int) ([]M, error) {
	var res []M
	err := s.view(ctx, "list", func(tb tableBuckets) error {
		c := tb.updated.Cursor()
		for k, id := c.Last(); k != nil && len(res) < limit; k, id = c.Prev() {
			if offset > 0 {
				offset--
				continue
			}
			m, err := s.decode(tb.records.Get(id))
			if err != nil {
				return err
			}
			res = append(res, m)
		}
		return nil
	})
	return res, err
}

// Count returns the number of records
func (s *Store[M]) Count(ctx context.Context) (uint64, error) {
	var n uint64
	err := s.view(ctx, "count", func(tb tableBuckets) error {
		n = uint64(tb.records.Stats().KeyN)
		return nil
	})
	return n, err
}

// Exists checks whether a record is present
func (s *Store[M]) Exists(ctx context.Context, id quarry.RecordID) (bool, error) {
	var exists bool
	err := s.view(ctx, "exists", func(tb tableBuckets) error {
		exists = tb.records.Get([]byte(id)) != nil
		return nil
	})
	return exists, err
}

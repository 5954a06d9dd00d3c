// Package sqlstore is a relational quarry backend over database/sql.
//
// Each model is kept in a main table plus one side table per declared index,
// named {table}__idx_{index}, mapping index keys to record ids. Index keys
// are stored as binary strings since they may contain zero bytes.
//
// Every multi-statement operation runs in one transaction begun with the
// caller's context, so a failed or canceled operation leaves nothing behind.
package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/ridge/quarry"
	"github.com/ridge/quarry/codec"
	"github.com/ridge/quarry/indices"
	"github.com/ridge/quarry/tlog"
	"go.uber.org/zap"
)

type options struct {
	codec   codec.Codec
	dialect Dialect
}

// Option configures a Store
type Option func(*options)

// WithCodec sets the document codec (codec.Default if not set)
func WithCodec(c codec.Codec) Option {
	return func(o *options) {
		o.codec = c
	}
}

// WithDialect sets the SQL dialect (Postgres if not set)
func WithDialect(d Dialect) Option {
	return func(o *options) {
		o.dialect = d
	}
}

// Store is a relational backend for models of type M.
// Safe for concurrent use.
type Store[M quarry.Model[M]] struct {
	db       *sql.DB
	codec    codec.Codec
	dialect  Dialect
	registry *indices.Registry[M]
	layout   layout

	// afterFirstStatement runs inside write transactions once their first
	// statement succeeded (tests only)
	afterFirstStatement func(ctx context.Context, op string)
}

// New creates a store over an open database. The schema is not touched until
// InitializeSchema.
func New[M quarry.Model[M]](db *sql.DB, opts ...Option) *Store[M] {
	o := options{codec: codec.Default, dialect: Postgres}
	for _, opt := range opts {
		opt(&o)
	}
	table := quarry.TableOf[M]()
	if !indices.ValidName(table) {
		panic(fmt.Errorf("invalid table name %q", table))
	}
	registry := quarry.IndicesOf[M]()
	return &Store[M]{
		db:       db,
		codec:    o.codec,
		dialect:  o.dialect,
		registry: registry,
		layout:   newLayout(o.dialect, table, registry),
	}
}

func (s *Store[M]) logger(ctx context.Context, id quarry.RecordID) *zap.Logger {
	return tlog.Get(ctx).With(zap.String("table", s.layout.table), zap.String("id", string(id)))
}

func (s *Store[M]) firstStatementDone(ctx context.Context, op string) {
	if s.afterFirstStatement != nil {
		s.afterFirstStatement(ctx, op)
	}
}

// inTx runs f in a transaction, committing if f succeeds
func (s *Store[M]) inTx(ctx context.Context, op string, f func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return quarry.BackendError(op, err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if err := f(tx); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return quarry.BackendError(op, err)
	}
	return nil
}

// InitializeSchema creates the main table, the side tables and their
// indices. Idempotent.
func (s *Store[M]) InitializeSchema(ctx context.Context) error {
	err := s.inTx(ctx, "initialize schema", func(tx *sql.Tx) error {
		for _, stmt := range s.layout.ddl() {
			if _, err := tx.ExecContext(ctx, stmt); err != nil {
				return quarry.BackendError("initialize schema", err)
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	tlog.Get(ctx).Debug("Schema initialized", zap.String("table", s.layout.table), zap.String("dialect", s.dialect.Name()))
	return nil
}

func (s *Store[M]) encode(m M) ([]byte, error) {
	doc, err := s.codec.Marshal(m)
	if err != nil {
		return nil, quarry.Serialization(err)
	}
	return doc, nil
}

func (s *Store[M]) decode(doc []byte) (M, error) {
	var m M
	if err := s.codec.Unmarshal(doc, &m); err != nil {
		return m, quarry.Serialization(err)
	}
	return m, nil
}

// insertEntries adds the index entries of the model
func (s *Store[M]) insertEntries(ctx context.Context, tx *sql.Tx, m M, op string) error {
	id := string(m.ID())
	keys := s.registry.Keys(m)
	for _, idx := range s.layout.indices {
		key := keys[idx.name]
		if _, err := tx.ExecContext(ctx, idx.insertEntry(s.layout), []byte(key), id); err != nil {
			if s.dialect.IsUniqueViolation(err) {
				return quarry.UniqueViolation(idx.name, key)
			}
			return quarry.BackendError(op, err)
		}
	}
	return nil
}

// deleteEntries removes the index entries of the record
func (s *Store[M]) deleteEntries(ctx context.Context, tx *sql.Tx, id quarry.RecordID, op string) error {
	for _, idx := range s.layout.indices {
		if _, err := tx.ExecContext(ctx, idx.deleteEntries(s.layout), string(id)); err != nil {
			return quarry.BackendError(op, err)
		}
	}
	return nil
}

// Insert stores a new record
func (s *Store[M]) Insert(ctx context.Context, m M) error {
	doc, err := s.encode(m)
	if err != nil {
		return err
	}
	now := s.dialect.Timestamp(time.Now())

	err = s.inTx(ctx, "insert", func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, s.layout.insertRecord(), string(m.ID()), doc, now, now); err != nil {
			if s.dialect.IsUniqueViolation(err) {
				return fmt.Errorf("%w: %s", quarry.ErrDuplicateID, m.ID())
			}
			return quarry.BackendError("insert", err)
		}
		s.firstStatementDone(ctx, "insert")
		return s.insertEntries(ctx, tx, m, "insert")
	})
	if err != nil {
		return err
	}
	s.logger(ctx, m.ID()).Debug("Record inserted")
	return nil
}

// Update replaces an existing record and its index entries
func (s *Store[M]) Update(ctx context.Context, m M) error {
	doc, err := s.encode(m)
	if err != nil {
		return err
	}

	err = s.inTx(ctx, "update", func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, s.layout.updateRecord(), doc, s.dialect.Timestamp(time.Now()), string(m.ID()))
		if err != nil {
			return quarry.BackendError("update", err)
		}
		if err := checkAffected(res, m.ID(), "update"); err != nil {
			return err
		}
		s.firstStatementDone(ctx, "update")
		if err := s.deleteEntries(ctx, tx, m.ID(), "update"); err != nil {
			return err
		}
		return s.insertEntries(ctx, tx, m, "update")
	})
	if errors.Is(err, quarry.ErrNotFound) {
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
	err := s.inTx(ctx, "delete", func(tx *sql.Tx) error {
		// entries go first, so that no foreign key setting is required
		if err := s.deleteEntries(ctx, tx, id, "delete"); err != nil {
			return err
		}
		s.firstStatementDone(ctx, "delete")
		res, err := tx.ExecContext(ctx, s.layout.deleteRecord(), string(id))
		if err != nil {
			return quarry.BackendError("delete", err)
		}
		return checkAffected(res, id, "delete")
	})
	if errors.Is(err, quarry.ErrNotFound) {
		s.logger(ctx, id).Warn("Record to delete not found")
	}
	if err != nil {
		return err
	}
	s.logger(ctx, id).Debug("Record deleted")
	return nil
}

func checkAffected(res sql.Result, id quarry.RecordID, op string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return quarry.BackendError(op, err)
	}
	if n == 0 {
		return quarry.NotFound(string(id))
	}
	return nil
}

// Get returns a record by id
func (s *Store[M]) Get(ctx context.Context, id quarry.RecordID) (M, bool, error) {
	var zero M
	var doc []byte
	err := s.db.QueryRowContext(ctx, s.layout.selectRecord(), string(id)).Scan(&doc)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return zero, false, nil
	case err != nil:
		return zero, false, quarry.BackendError("get", err)
	}
	m, err := s.decode(doc)
	if err != nil {
		return zero, false, err
	}
	return m, true, nil
}

func (s *Store[M]) query(ctx context.Context, op string, query string, args ...any) ([]M, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, quarry.BackendError(op, err)
	}
	defer rows.Close()

	var res []M
	for rows.Next() {
		var doc []byte
		if err := rows.Scan(&doc); err != nil {
			return nil, quarry.BackendError(op, err)
		}
		m, err := s.decode(doc)
		if err != nil {
			return nil, err
		}
		res = append(res, m)
	}
	if err := rows.Err(); err != nil {
		return nil, quarry.BackendError(op, err)
	}
	return res, nil
}

// FindByUniqueIndex returns the record mapped to the value by a unique index
func (s *Store[M]) FindByUniqueIndex(ctx context.Context, index string, value indices.Value) (M, bool, error) {
	var zero M
	if _, err := quarry.ResolveIndex[M](index, true); err != nil {
		return zero, false, err
	}
	found, err := s.query(ctx, "find by unique index", s.layout.side(index).selectByKey(s.layout), []byte(value.Key()))
	if err != nil || len(found) == 0 {
		return zero, false, err
	}
	return found[0], true, nil
}

// FindByIndex returns all records mapped to the value by an index, most
// recently updated first
func (s *Store[M]) FindByIndex(ctx context.Context, index string, value indices.Value) ([]M, error) {
	if _, err := quarry.ResolveIndex[M](index, false); err != nil {
		return nil, err
	}
	return s.query(ctx, "find by index", s.layout.side(index).selectByKey(s.layout), []byte(value.Key()))
}

// CountByIndex counts the index entries matching the value
func (s *Store[M]) CountByIndex(ctx context.Context, index string, value indices.Value) (uint64, error) {
	if _, err := quarry.ResolveIndex[M](index, false); err != nil {
		return 0, err
	}
	return s.count(ctx, "count by index", s.layout.side(index).countByKey(s.layout), []byte(value.Key()))
}

// List returns a page of records ordered by last update, newest first
func (s *Store[M]) List(ctx context.Context, limit, offset int) ([]M, error) {
	if limit <= 0 {
		return nil, nil
	}
	return s.query(ctx, "list", s.layout.listRecords(), limit, offset)
}

// Count returns the number of records
func (s *Store[M]) Count(ctx context.Context) (uint64, error) {
	return s.count(ctx, "count", s.layout.countRecords())
}

func (s *Store[M]) count(ctx context.Context, op string, query string, args ...any) (uint64, error) {
	var n int64
	if err := s.db.QueryRowContext(ctx, query, args...).Scan(&n); err != nil {
		return 0, quarry.BackendError(op, err)
	}
	return uint64(n), nil
}

// Exists checks whether a record is present
func (s *Store[M]) Exists(ctx context.Context, id quarry.RecordID) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx, s.layout.existsRecord(), string(id)).Scan(&one)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return false, nil
	case err != nil:
		return false, quarry.BackendError("exists", err)
	}
	return true, nil
}

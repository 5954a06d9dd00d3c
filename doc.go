// Package quarry is a storage engine for domain entities (models) that keeps
// primary records and their declared secondary indices consistent across
// pluggable backends.
//
// # Models
//
// A model is a serializable Go struct with a RecordID and a static set of
// indices:
//
//	type User struct {
//	    RecordID quarry.RecordID `json:"id"`
//	    Email    string          `json:"email"`
//	    Name     string          `json:"name"`
//	}
//
//	func (u User) ID() quarry.RecordID             { return u.RecordID }
//	func (User) Table() string                     { return "users" }
//	func (User) Indices() *indices.Registry[User]  { return userIndices() }
//
// See package indices for declaring the registry, either explicitly or from
// struct tags.
//
// # Backends and stores
//
// A Backend implements the primitive operations (insert, update, delete,
// point and index lookups, paging, counting) on top of some physical storage.
// Every backend guarantees that:
//
//   - every live record has exactly one up-to-date entry per declared index;
//   - no index entry references a record that does not exist;
//   - a unique index maps any key to at most one record;
//   - insert never silently overwrites an existing record.
//
// A failed write leaves no trace: validation happens before mutation, and
// mutation happens inside one backend transaction.
//
// New wraps a backend into a Store that adds derived operations (Upsert,
// GetMany, the OrError lookups and so on). Code that works with a Store does
// not depend on the backend:
//
//	store := quarry.New[User](memstore.New[User]())
//	if err := store.InitializeSchema(ctx); err != nil {
//	    return err
//	}
//	inserted, err := store.Upsert(ctx, user)
//
// Available backends: memstore (in-memory, over go-memdb), sqlstore
// (PostgreSQL and SQLite) and boltstore (embedded, over bbolt). Packages
// metrics and cache provide decorators that wrap any backend.
//
// # Errors
//
// All errors returned by stores can be classified with errors.Is against the
// Err* sentinels. Details are available through errors.As with NotFoundError,
// IndexError and UniqueViolationError.
package quarry

// Package indices contains index definitions for quarry models.
//
// quarry keeps every model in a primary record store plus one secondary
// structure per declared index. An index is identified by a name and maps a
// composite key extracted from the model to the record id. A unique index
// admits at most one record per key; a non-unique index admits any number.
//
// To declare the indices of a model, build a Registry once and hand it out
// from the model's Indices method:
//
//	var userIndices = sync.OnceValue(func() *indices.Registry[User] {
//	    return indices.NewRegistry(
//	        indices.Unique("email", indices.Field[User]("Email", indices.IgnoreCase)),
//	        indices.NonUnique("name", indices.Field[User]("Name")),
//	        indices.NonUnique("name_age", indices.Fields[User]("Name Age")),
//	    )
//	})
//
//	func (User) Indices() *indices.Registry[User] { return userIndices() }
//
// Extractors are plain functions from the model to a Value, so any derived
// property can be indexed:
//
//	indices.NonUnique("domain", func(u User) indices.Value {
//	    _, domain, _ := strings.Cut(u.Email, "@")
//	    return indices.NewValue(domain)
//	})
//
// Alternatively, Survey builds the registry and the table name from
// `quarry` struct tags (see package meta).
//
// # Values and keys
//
// A Value is an ordered, non-empty sequence of string segments. Segments are
// sanitized on construction so that they never contain the key delimiter
// (a zero byte) or a colon. Key joins the segments with the delimiter, which
// makes it an unambiguous, order-sensitive encoding of the value: backends
// store and compare keys, never segments.
//
// # Indexable field types
//
// Field and Fields format struct fields into segments. Strings, booleans,
// all integer and float types, time.Time and all named types based on them
// are supported, as well as pointers to those (a nil pointer produces an
// empty segment). Any other type can be made indexable by implementing
//
//	IndexSegment() string
//
// or fmt.Stringer.
package indices

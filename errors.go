package quarry

import (
	"errors"
	"fmt"

	"github.com/ridge/quarry/indices"
)

// Error classes. Every error returned by a store matches exactly one of them
// with errors.Is.
var (
	ErrNotFound        = errors.New("not found")
	ErrIndexNotFound   = errors.New("index not found")
	ErrIndexNotUnique  = errors.New("index is not unique")
	ErrUniqueViolation = errors.New("unique constraint violation")
	ErrSerialization   = errors.New("serialization error")
	ErrBackend         = errors.New("backend error")
	ErrOther           = errors.New("error")
)

// ErrDuplicateID is returned when inserting a record whose id is already
// present
var ErrDuplicateID = fmt.Errorf("%w: duplicate record id", ErrBackend)

// NotFoundError is returned when a record is absent. Key is either a record
// id or "index=value" for index lookups.
type NotFoundError struct {
	Key string
}

// NotFound creates a NotFoundError
func NotFound(key string) error {
	return NotFoundError{Key: key}
}

func (e NotFoundError) Error() string {
	return fmt.Sprintf("not found: %s", e.Key)
}

// Is makes NotFoundError match ErrNotFound
func (e NotFoundError) Is(target error) bool {
	return target == ErrNotFound
}

// IndexError is returned when an index selector can't be used for a lookup.
// Err is ErrIndexNotFound or ErrIndexNotUnique.
type IndexError struct {
	Selector string
	Err      error
}

// IndexNotFound creates an IndexError for an undeclared index
func IndexNotFound(selector string) error {
	return IndexError{Selector: selector, Err: ErrIndexNotFound}
}

// IndexNotUnique creates an IndexError for a unique-only lookup against a
// non-unique index
func IndexNotUnique(selector string) error {
	return IndexError{Selector: selector, Err: ErrIndexNotUnique}
}

func (e IndexError) Error() string {
	return fmt.Sprintf("%s: %s", e.Err, e.Selector)
}

func (e IndexError) Unwrap() error {
	return e.Err
}

// UniqueViolationError is returned when a write would map a unique index key
// to a second record
type UniqueViolationError struct {
	Index string
	Value string // human-readable, see indices.FormatKey
}

// UniqueViolation creates a UniqueViolationError from a composite key
func UniqueViolation(index, key string) error {
	return UniqueViolationError{Index: index, Value: indices.FormatKey(key)}
}

func (e UniqueViolationError) Error() string {
	return fmt.Sprintf("unique constraint violation on index %s: %s", e.Index, e.Value)
}

// Is makes UniqueViolationError match ErrUniqueViolation
func (e UniqueViolationError) Is(target error) bool {
	return target == ErrUniqueViolation
}

// Serialization wraps a codec error
func Serialization(err error) error {
	return fmt.Errorf("%w: %w", ErrSerialization, err)
}

// BackendError wraps an error of the underlying storage
func BackendError(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrBackend, op, err)
}

// Other wraps an error that fits no other class
func Other(err error) error {
	return fmt.Errorf("%w: %w", ErrOther, err)
}

// KindOf classifies an error. Returns "ok" for nil.
func KindOf(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrIndexNotFound):
		return "index_not_found"
	case errors.Is(err, ErrIndexNotUnique):
		return "index_not_unique"
	case errors.Is(err, ErrUniqueViolation):
		return "unique_violation"
	case errors.Is(err, ErrSerialization):
		return "serialization"
	case errors.Is(err, ErrBackend):
		return "backend"
	default:
		return "other"
	}
}

// Package cache puts an LRU cache of records in front of a quarry backend.
//
// Only lookups by id are served from the cache. Index lookups always reach
// the backend, which stays the single source of truth for uniqueness.
package cache

import (
	"context"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/ridge/quarry"
	"github.com/ridge/quarry/indices"
	"github.com/ridge/quarry/tlog"
	"go.uber.org/zap"
)

// Backend is a caching quarry.Backend decorator
type Backend[M quarry.Model[M]] struct {
	inner   quarry.Backend[M]
	records *lru.Cache[quarry.RecordID, M]

	mu sync.Mutex
	// generation is bumped by every write; a read fills the cache only if no
	// write happened while it was in flight
	generation uint64
}

// New wraps a backend with a cache holding up to size records
func New[M quarry.Model[M]](inner quarry.Backend[M], size int) (*Backend[M], error) {
	records, err := lru.New[quarry.RecordID, M](size)
	if err != nil {
		return nil, err
	}
	return &Backend[M]{inner: inner, records: records}, nil
}

// Len returns the number of cached records
func (b *Backend[M]) Len() int {
	return b.records.Len()
}

// Purge drops all cached records
func (b *Backend[M]) Purge() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.generation++
	b.records.Purge()
}

func (b *Backend[M]) snapshot() uint64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.generation
}

func (b *Backend[M]) fill(generation uint64, m M) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.generation == generation {
		b.records.Add(m.ID(), m)
	}
}

// evict drops id after a write to it. Writes never fill the cache: two
// writes to one id may return in either order, so only a read that saw no
// write while in flight may store a value.
func (b *Backend[M]) evict(id quarry.RecordID) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.generation++
	b.records.Remove(id)
}

// InitializeSchema implements quarry.Backend
func (b *Backend[M]) InitializeSchema(ctx context.Context) error {
	return b.inner.InitializeSchema(ctx)
}

// Insert implements quarry.Backend
func (b *Backend[M]) Insert(ctx context.Context, m M) error {
	err := b.inner.Insert(ctx, m)
	b.evict(m.ID())
	return err
}

// Update implements quarry.Backend
func (b *Backend[M]) Update(ctx context.Context, m M) error {
	err := b.inner.Update(ctx, m)
	b.evict(m.ID())
	return err
}

// Delete implements quarry.Backend
func (b *Backend[M]) Delete(ctx context.Context, id quarry.RecordID) error {
	err := b.inner.Delete(ctx, id)
	b.evict(id)
	return err
}

// Get implements quarry.Backend
func (b *Backend[M]) Get(ctx context.Context, id quarry.RecordID) (M, bool, error) {
	if m, ok := b.records.Get(id); ok {
		return m, true, nil
	}
	generation := b.snapshot()
	m, ok, err := b.inner.Get(ctx, id)
	if err != nil || !ok {
		return m, ok, err
	}
	b.fill(generation, m)
	tlog.Get(ctx).Debug("Record cached", zap.Stringer("id", id))
	return m, true, nil
}

// FindByUniqueIndex implements quarry.Backend
func (b *Backend[M]) FindByUniqueIndex(ctx context.Context, index string, value indices.Value) (M, bool, error) {
	return b.inner.FindByUniqueIndex(ctx, index, value)
}

// FindByIndex implements quarry.Backend
func (b *Backend[M]) FindByIndex(ctx context.Context, index string, value indices.Value) ([]M, error) {
	return b.inner.FindByIndex(ctx, index, value)
}

// CountByIndex implements quarry.IndexCounter
func (b *Backend[M]) CountByIndex(ctx context.Context, index string, value indices.Value) (uint64, error) {
	if counter, ok := b.inner.(quarry.IndexCounter); ok {
		return counter.CountByIndex(ctx, index, value)
	}
	ms, err := b.inner.FindByIndex(ctx, index, value)
	return uint64(len(ms)), err
}

// List implements quarry.Backend
func (b *Backend[M]) List(ctx context.Context, limit, offset int) ([]M, error) {
	return b.inner.List(ctx, limit, offset)
}

// Count implements quarry.Backend
func (b *Backend[M]) Count(ctx context.Context) (uint64, error) {
	return b.inner.Count(ctx)
}

// Exists implements quarry.Backend
func (b *Backend[M]) Exists(ctx context.Context, id quarry.RecordID) (bool, error) {
	if b.records.Contains(id) {
		return true, nil
	}
	return b.inner.Exists(ctx, id)
}

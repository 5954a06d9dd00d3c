// Package metrics instruments quarry backends with Prometheus metrics
package metrics

import (
	"context"
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/ridge/quarry"
	"github.com/ridge/quarry/indices"
)

// Metric labels: table, op (operation name), outcome (quarry.KindOf)
var labels = []string{"table", "op", "outcome"}

func newOperations() *prometheus.CounterVec {
	return prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "quarry",
		Subsystem: "store",
		Name:      "operations_total",
		Help:      "Store operations by table, operation and outcome",
	}, labels)
}

func newDuration() *prometheus.HistogramVec {
	return prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "quarry",
		Subsystem: "store",
		Name:      "operation_duration_seconds",
		Help:      "Store operation latency",
		Buckets:   []float64{.0001, .0005, .001, .005, .01, .05, .1, .5, 1, 5},
	}, labels)
}

// register registers a collector, returning the already registered one if an
// identical collector exists (several instrumented backends share metrics)
func register[C prometheus.Collector](reg prometheus.Registerer, c C) C {
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			return are.ExistingCollector.(C)
		}
		panic(err)
	}
	return c
}

// Backend is a quarry.Backend decorator counting and timing every operation
type Backend[M quarry.Model[M]] struct {
	inner      quarry.Backend[M]
	table      string
	operations *prometheus.CounterVec
	duration   *prometheus.HistogramVec
}

// Instrument wraps a backend, registering the metrics in reg
func Instrument[M quarry.Model[M]](inner quarry.Backend[M], reg prometheus.Registerer) *Backend[M] {
	return &Backend[M]{
		inner:      inner,
		table:      quarry.TableOf[M](),
		operations: register(reg, newOperations()),
		duration:   register(reg, newDuration()),
	}
}

func (b *Backend[M]) observe(op string, started time.Time, err error) {
	outcome := quarry.KindOf(err)
	b.operations.WithLabelValues(b.table, op, outcome).Inc()
	b.duration.WithLabelValues(b.table, op, outcome).Observe(time.Since(started).Seconds())
}

// InitializeSchema implements quarry.Backend
func (b *Backend[M]) InitializeSchema(ctx context.Context) error {
	started := time.Now()
	err := b.inner.InitializeSchema(ctx)
	b.observe("initialize_schema", started, err)
	return err
}

// Insert implements quarry.Backend
func (b *Backend[M]) Insert(ctx context.Context, m M) error {
	started := time.Now()
	err := b.inner.Insert(ctx, m)
	b.observe("insert", started, err)
	return err
}

// Update implements quarry.Backend
func (b *Backend[M]) Update(ctx context.Context, m M) error {
	started := time.Now()
	err := b.inner.Update(ctx, m)
	b.observe("update", started, err)
	return err
}

// Delete implements quarry.Backend
func (b *Backend[M]) Delete(ctx context.Context, id quarry.RecordID) error {
	started := time.Now()
	err := b.inner.Delete(ctx, id)
	b.observe("delete", started, err)
	return err
}

// Get implements quarry.Backend
func (b *Backend[M]) Get(ctx context.Context, id quarry.RecordID) (M, bool, error) {
	started := time.Now()
	m, ok, err := b.inner.Get(ctx, id)
	b.observe("get", started, err)
	return m, ok, err
}

// FindByUniqueIndex implements quarry.Backend
func (b *Backend[M]) FindByUniqueIndex(ctx context.Context, index string, value indices.Value) (M, bool, error) {
	started := time.Now()
	m, ok, err := b.inner.FindByUniqueIndex(ctx, index, value)
	b.observe("find_by_unique_index", started, err)
	return m, ok, err
}

// FindByIndex implements quarry.Backend
func (b *Backend[M]) FindByIndex(ctx context.Context, index string, value indices.Value) ([]M, error) {
	started := time.Now()
	ms, err := b.inner.FindByIndex(ctx, index, value)
	b.observe("find_by_index", started, err)
	return ms, err
}

// CountByIndex implements quarry.IndexCounter, using the native count of the
// wrapped backend when it has one
func (b *Backend[M]) CountByIndex(ctx context.Context, index string, value indices.Value) (uint64, error) {
	started := time.Now()
	var n uint64
	var err error
	if counter, ok := b.inner.(quarry.IndexCounter); ok {
		n, err = counter.CountByIndex(ctx, index, value)
	} else {
		var ms []M
		ms, err = b.inner.FindByIndex(ctx, index, value)
		n = uint64(len(ms))
	}
	b.observe("count_by_index", started, err)
	return n, err
}

// List implements quarry.Backend
func (b *Backend[M]) List(ctx context.Context, limit, offset int) ([]M, error) {
	started := time.Now()
	ms, err := b.inner.List(ctx, limit, offset)
	b.observe("list", started, err)
	return ms, err
}

// Count implements quarry.Backend
func (b *Backend[M]) Count(ctx context.Context) (uint64, error) {
	started := time.Now()
	n, err := b.inner.Count(ctx)
	b.observe("count", started, err)
	return n, err
}

// Exists implements quarry.Backend
func (b *Backend[M]) Exists(ctx context.Context, id quarry.RecordID) (bool, error) {
	started := time.Now()
	ok, err := b.inner.Exists(ctx, id)
	b.observe("exists", started, err)
	return ok, err
}

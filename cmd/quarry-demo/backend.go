package main

import (
	"context"
	"database/sql"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/ridge/quarry"
	"github.com/ridge/quarry/boltstore"
	"github.com/ridge/quarry/cache"
	"github.com/ridge/quarry/codec"
	"github.com/ridge/quarry/memstore"
	"github.com/ridge/quarry/metrics"
	"github.com/ridge/quarry/sqlstore"
	"github.com/ridge/quarry/tlog"
	"go.uber.org/zap"
)

type env struct {
	store    *quarry.Store[user]
	registry *prometheus.Registry
	close    func()
}

// open builds the backend chain: storage, then metrics, then the cache
func open(ctx context.Context, cfg config) (env, error) {
	c, err := codec.ByName(cfg.codec)
	if err != nil {
		return env{}, err
	}

	closer := func() {}
	var backend quarry.Backend[user]
	switch cfg.backend {
	case "memory":
		backend = memstore.New[user](memstore.WithCodec(c))
	case "sqlite", "postgres":
		dialect, dsn := sqlstore.Postgres, cfg.dsn
		if cfg.backend == "sqlite" {
			path := cfg.dsn
			if path == "" {
				path = ":memory:"
			}
			dialect, dsn = sqlstore.SQLite, sqlstore.SQLiteDSN(path)
		}
		var db *sql.DB
		db, err = sqlstore.Open(ctx, dialect, dsn)
		if err != nil {
			return env{}, err
		}
		closer = func() { _ = db.Close() }
		backend = sqlstore.New[user](db, sqlstore.WithDialect(dialect), sqlstore.WithCodec(c))
	case "bolt":
		db, err := boltstore.Open(cfg.dsn)
		if err != nil {
			return env{}, err
		}
		closer = func() { _ = db.Close() }
		backend = boltstore.New[user](db, boltstore.WithCodec(c))
	}

	registry := prometheus.NewRegistry()
	backend = metrics.Instrument[user](backend, registry)
	if cfg.cacheSize > 0 {
		cached, err := cache.New(backend, cfg.cacheSize)
		if err != nil {
			closer()
			return env{}, err
		}
		backend = cached
	}

	tlog.Get(ctx).Info("Store opened",
		zap.String("backend", cfg.backend),
		zap.String("codec", c.Name()),
		zap.Int("cacheSize", cfg.cacheSize))
	return env{store: quarry.New(backend), registry: registry, close: closer}, nil
}

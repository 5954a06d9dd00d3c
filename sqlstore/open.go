package sqlstore

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/ridge/quarry/retry"
	"github.com/ridge/quarry/tlog"
	"go.uber.org/zap"
)

// Open opens a database with the dialect's driver and waits until it accepts
// connections, retrying with exponential backoff. The caller closes the
// returned database.
func Open(ctx context.Context, dialect Dialect, dsn string) (*sql.DB, error) {
	return OpenWithBackoff(ctx, dialect, dsn, retry.DefaultBackoff)
}

// OpenWithBackoff is Open with explicit retry settings
func OpenWithBackoff(ctx context.Context, dialect Dialect, dsn string, backoff retry.Backoff) (*sql.DB, error) {
	db, err := sql.Open(dialect.DriverName(), dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s database: %w", dialect.Name(), err)
	}
	if n := dialect.MaxOpenConns(); n > 0 {
		db.SetMaxOpenConns(n)
	}

	err = retry.Do(ctx, backoff, func(ctx context.Context) error {
		return retry.Retriable(db.PingContext(ctx))
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to connect to %s database: %w", dialect.Name(), err)
	}
	tlog.Get(ctx).Debug("Connected to database", zap.String("dialect", dialect.Name()))
	return db, nil
}

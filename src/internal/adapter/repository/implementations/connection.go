package implementations

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/api-sage/ledger-core/src/internal/logger"
)

type PoolOptions struct {
	MaxIdleConns    int
	MaxOpenConns    int
	ConnMaxIdleTime time.Duration
	ConnMaxLifetime time.Duration
}

func DefaultPoolOptions() PoolOptions {
	return PoolOptions{
		MaxIdleConns:    20,
		MaxOpenConns:    30,
		ConnMaxIdleTime: 5 * time.Minute,
		ConnMaxLifetime: 15 * time.Minute,
	}
}

func Open(ctx context.Context, dsn string, pool PoolOptions) (*sql.DB, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres connection: %w", err)
	}

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	// Transfers and the interest workers share the pool.
	db.SetMaxIdleConns(pool.MaxIdleConns)
	db.SetMaxOpenConns(pool.MaxOpenConns)
	db.SetConnMaxIdleTime(pool.ConnMaxIdleTime)
	db.SetConnMaxLifetime(pool.ConnMaxLifetime)

	logger.Info("postgres connection ready", logger.Fields{
		"maxOpenConns": pool.MaxOpenConns,
		"maxIdleConns": pool.MaxIdleConns,
	})
	return db, nil
}

package config

import (
	"context"
	"fmt"
	"log"
	"time"

	"familytrack/internal/core/repository"

	"github.com/jackc/pgx/v5/pgxpool"
)

// ConnectPostgres opens a pool, retrying while the database comes up, and applies the schema.
func ConnectPostgres(ctx context.Context, dsn string, attempts int, delay time.Duration) (*pgxpool.Pool, error) {
	var lastErr error
	for i := 1; i <= attempts; i++ {
		pool, err := pgxpool.New(ctx, dsn)
		if err == nil {
			if err = pool.Ping(ctx); err == nil {
				if err := repository.MigratePostgres(ctx, pool); err != nil {
					pool.Close()
					return nil, fmt.Errorf("postgres migrate: %w", err)
				}
				log.Printf("[config] connected to Postgres")
				return pool, nil
			}
			pool.Close()
		}

		lastErr = err
		log.Printf("[config] postgres attempt %d/%d failed: %v", i, attempts, err)
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(delay):
		}
	}
	return nil, fmt.Errorf("postgres connect failed after %d attempts: %w", attempts, lastErr)
}

// Package postgres is the production store. Activities, users, and
// completion records live in separate tables; the completion table
// carries a denormalized copy of the activity fields so listings never
// join. Cascades that keep those copies consistent run in the same
// transaction as the catalog write.
package postgres

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Connect opens a connection pool and verifies it with a ping.
func Connect(ctx context.Context, databaseURL string) (*pgxpool.Pool, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, err
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return pool, nil
}

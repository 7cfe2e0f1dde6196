package store

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Postgres is a Store backed by a single kv_entries table:
//
//	CREATE TABLE kv_entries (
//	    key        TEXT PRIMARY KEY,
//	    value      BYTEA NOT NULL,
//	    bytes      BIGINT NOT NULL,
//	    updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
//	);
//
// The capacity ceiling is enforced against sum(bytes) inside the write
// transaction, so a Put that would pass the ceiling fails atomically and
// leaves prior state untouched.
type Postgres struct {
	pool     *pgxpool.Pool
	capacity int64
}

// NewPostgres wraps an existing pool as a bounded store.
func NewPostgres(pool *pgxpool.Pool, capacityBytes int64) *Postgres {
	if capacityBytes <= 0 {
		capacityBytes = DefaultCapacityBytes
	}
	return &Postgres{pool: pool, capacity: capacityBytes}
}

func (p *Postgres) Put(ctx context.Context, key string, value []byte) error {
	tx, err := p.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	size := int64(len(key) + len(value))

	var used int64
	err = tx.QueryRow(ctx, `
		SELECT COALESCE(SUM(bytes), 0)
		FROM kv_entries
		WHERE key <> $1
	`, key).Scan(&used)
	if err != nil {
		return err
	}
	if used+size > p.capacity {
		return ErrCapacityExceeded
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO kv_entries (key, value, bytes, updated_at)
		VALUES ($1, $2, $3, now())
		ON CONFLICT (key) DO UPDATE
		  SET value = EXCLUDED.value, bytes = EXCLUDED.bytes, updated_at = now()
	`, key, value, size)
	if err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func (p *Postgres) Get(ctx context.Context, key string) ([]byte, error) {
	var value []byte
	err := p.pool.QueryRow(ctx, `SELECT value FROM kv_entries WHERE key = $1`, key).Scan(&value)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return value, nil
}

func (p *Postgres) Remove(ctx context.Context, key string) error {
	_, err := p.pool.Exec(ctx, `DELETE FROM kv_entries WHERE key = $1`, key)
	return err
}

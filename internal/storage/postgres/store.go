// Package postgres keeps client storage in a shared PostgreSQL table so several
// client processes can share one session and one progress record per namespace.
package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/and161185/learnhub-client/internal/errs"
)

// PgxPool is the part of a connection pool the store queries through.
// *pgxpool.Pool and pgxmock.PgxPoolIface both satisfy it.
type PgxPool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Close()
}

// DB owns the pool shared by every namespace store opened on it.
type DB struct{ Pool PgxPool }

// New connects to the storage database at dsn.
func New(ctx context.Context, dsn string) (*DB, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, err
	}
	return &DB{Pool: pool}, nil
}

// Close releases the pool; stores opened on db stop working.
func (db *DB) Close() { db.Pool.Close() }

// Store keeps client values in the client_storage table, isolated by namespace.
type Store struct {
	db        *DB
	namespace string
}

// NewStore constructs a store for one namespace (typically one client profile).
func NewStore(db *DB, namespace string) *Store {
	return &Store{db: db, namespace: namespace}
}

// Get selects the value of key.
func (s *Store) Get(ctx context.Context, key string) ([]byte, error) {
	const q = `
SELECT value FROM client_storage WHERE namespace=$1 AND key=$2`
	var v []byte
	if err := s.db.Pool.QueryRow(ctx, q, s.namespace, key).Scan(&v); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, errs.ErrNotFound
		}
		return nil, err
	}
	return v, nil
}

// Set upserts the value of key.
func (s *Store) Set(ctx context.Context, key string, value []byte) error {
	const q = `
INSERT INTO client_storage (namespace, key, value, updated_at)
VALUES ($1, $2, $3, now())
ON CONFLICT (namespace, key) DO UPDATE SET value = EXCLUDED.value, updated_at = now()`
	_, err := s.db.Pool.Exec(ctx, q, s.namespace, key, value)
	return err
}

// Delete removes key.
func (s *Store) Delete(ctx context.Context, key string) error {
	const q = `
DELETE FROM client_storage WHERE namespace=$1 AND key=$2`
	_, err := s.db.Pool.Exec(ctx, q, s.namespace, key)
	return err
}

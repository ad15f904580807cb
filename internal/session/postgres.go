package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore persists records as JSONB rows keyed by user id. It is the
// backend for multi-instance deployments where a flat file cannot be shared.
//
// All methods are safe for concurrent use.
type PostgresStore struct {
	pool *pgxpool.Pool
}

var _ Store = (*PostgresStore)(nil)

const schema = `
	CREATE TABLE IF NOT EXISTS user_sessions (
	    user_id    BIGINT PRIMARY KEY,
	    record     JSONB NOT NULL,
	    updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`

// NewPostgresStore connects to dsn, verifies the connection, and ensures the
// user_sessions table exists.
func NewPostgresStore(ctx context.Context, dsn string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("session: connect postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("session: ping postgres: %w", err)
	}
	if _, err := pool.Exec(ctx, schema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("session: create schema: %w", err)
	}
	return &PostgresStore{pool: pool}, nil
}

func (s *PostgresStore) Get(ctx context.Context, userID int64) (Record, error) {
	const q = `SELECT record FROM user_sessions WHERE user_id = $1`

	var raw []byte
	err := s.pool.QueryRow(ctx, q, userID).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return Record{}, fmt.Errorf("%w: user %d", ErrNotFound, userID)
	}
	if err != nil {
		return Record{}, fmt.Errorf("session: get record: %w", err)
	}

	var rec Record
	if err := json.Unmarshal(raw, &rec); err != nil {
		return Record{}, fmt.Errorf("session: decode record: %w", err)
	}
	return rec, nil
}

func (s *PostgresStore) Put(ctx context.Context, rec Record) error {
	const q = `
		INSERT INTO user_sessions (user_id, record, updated_at)
		VALUES ($1, $2, now())
		ON CONFLICT (user_id)
		DO UPDATE SET record = EXCLUDED.record, updated_at = now()`

	raw, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("session: encode record: %w", err)
	}
	if _, err := s.pool.Exec(ctx, q, rec.UserID, raw); err != nil {
		return fmt.Errorf("session: put record: %w", err)
	}
	return nil
}

func (s *PostgresStore) Delete(ctx context.Context, userID int64) error {
	const q = `DELETE FROM user_sessions WHERE user_id = $1`
	if _, err := s.pool.Exec(ctx, q, userID); err != nil {
		return fmt.Errorf("session: delete record: %w", err)
	}
	return nil
}

func (s *PostgresStore) List(ctx context.Context) ([]Record, error) {
	const q = `SELECT record FROM user_sessions ORDER BY updated_at DESC`

	rows, err := s.pool.Query(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("session: list records: %w", err)
	}
	recs, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (Record, error) {
		var raw []byte
		if err := row.Scan(&raw); err != nil {
			return Record{}, err
		}
		var rec Record
		if err := json.Unmarshal(raw, &rec); err != nil {
			return Record{}, err
		}
		return rec, nil
	})
	if err != nil {
		return nil, fmt.Errorf("session: collect records: %w", err)
	}
	return recs, nil
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	if err := s.pool.Ping(ctx); err != nil {
		return fmt.Errorf("session: ping postgres: %w", err)
	}
	return nil
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

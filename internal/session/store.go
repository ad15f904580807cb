package session

import (
	"context"
	"errors"
)

// ErrNotFound is returned by Store.Get when no record exists for the user.
var ErrNotFound = errors.New("session: record not found")

// Store persists per-user records.
type Store interface {
	// Get returns the record for userID, or ErrNotFound.
	Get(ctx context.Context, userID int64) (Record, error)

	// Put inserts or replaces the record keyed by its UserID.
	Put(ctx context.Context, rec Record) error

	// Delete removes the record for userID. Deleting an absent record is not
	// an error.
	Delete(ctx context.Context, userID int64) error

	// List returns all records, most recently active first.
	List(ctx context.Context) ([]Record, error)

	// Ping verifies the backend is reachable.
	Ping(ctx context.Context) error

	Close() error
}

// GetOrCreate fetches the record for userID, creating a default one when the
// user is new. The created record is not persisted until Put.
func GetOrCreate(ctx context.Context, s Store, userID int64) (Record, error) {
	rec, err := s.Get(ctx, userID)
	if errors.Is(err, ErrNotFound) {
		return NewRecord(userID), nil
	}
	if err != nil {
		return Record{}, err
	}
	return rec, nil
}

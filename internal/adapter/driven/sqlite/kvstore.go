package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// KVStore is a string key-value table on top of SQLite. Writes replace the
// whole value; there are no partial updates.
type KVStore struct {
	db *DB
}

// NewKVStore creates a KVStore backed by the given DB.
func NewKVStore(db *DB) *KVStore {
	return &KVStore{db: db}
}

// Get returns the value stored under key. ok is false if the key is absent.
func (s *KVStore) Get(ctx context.Context, key string) (value string, ok bool, err error) {
	const query = `SELECT value FROM kv_entries WHERE key = ?`

	err = s.db.Reader.QueryRowContext(ctx, query, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("get key %q: %w", key, err)
	}
	return value, true, nil
}

// Set stores value under key, replacing any previous value.
func (s *KVStore) Set(ctx context.Context, key, value string) error {
	const query = `INSERT OR REPLACE INTO kv_entries (key, value, updated_at) VALUES (?, ?, CURRENT_TIMESTAMP)`

	if _, err := s.db.Writer.ExecContext(ctx, query, key, value); err != nil {
		return fmt.Errorf("set key %q: %w", key, err)
	}
	return nil
}

// Delete removes key. Deleting a missing key is not an error.
func (s *KVStore) Delete(ctx context.Context, key string) error {
	const query = `DELETE FROM kv_entries WHERE key = ?`

	if _, err := s.db.Writer.ExecContext(ctx, query, key); err != nil {
		return fmt.Errorf("delete key %q: %w", key, err)
	}
	return nil
}

package repository

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	_ "modernc.org/sqlite" // pure go sqlite driver
)

// SQLiteStore implements KeyValueStore as a single SQLite table of JSON blobs
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens or creates the database file at dbPath
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o750); err != nil {
		return nil, errors.Wrap(err, "create dirs")
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, errors.Wrap(err, "open sqlite")
	}
	// one writer, so concurrent statements never hit SQLITE_BUSY
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS state (
		bucket TEXT PRIMARY KEY,
		payload BLOB NOT NULL
	)`); err != nil {
		_ = db.Close()
		return nil, errors.Wrap(err, "create state table")
	}

	return &SQLiteStore{db: db}, nil
}

// Get reads a document
func (s *SQLiteStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	var payload []byte
	err := s.db.QueryRowContext(ctx, `SELECT payload FROM state WHERE bucket = ?`, key).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, errors.Wrapf(err, "select %s", key)
	}
	return payload, true, nil
}

// Set writes a document, replacing any previous value
func (s *SQLiteStore) Set(ctx context.Context, key string, value []byte) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO state (bucket, payload) VALUES (?, ?)
		ON CONFLICT(bucket) DO UPDATE SET payload = excluded.payload`,
		key, value)
	if err != nil {
		return errors.Wrapf(err, "upsert %s", key)
	}
	return nil
}

// Close closes the database connection
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

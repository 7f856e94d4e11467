package repository

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"github.com/pkg/errors"
	"go.etcd.io/bbolt"
)

const documentsBucket = "documents"

// BoltStore implements KeyValueStore using BoltDB (bbolt)
type BoltStore struct {
	db *bbolt.DB
}

// NewBoltStore opens or creates a BoltDB file at dbPath
func NewBoltStore(dbPath string) (*BoltStore, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, errors.Wrap(err, "failed to create parent directory for bolt db")
	}

	db, err := bbolt.Open(dbPath, 0600, &bbolt.Options{
		Timeout:      1 * time.Second,
		NoGrowSync:   false,
		FreelistType: bbolt.FreelistMapType,
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to open bolt db")
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(documentsBucket))
		return err
	})
	if err != nil {
		db.Close()
		return nil, errors.Wrapf(err, "failed to create bucket %s", documentsBucket)
	}

	return &BoltStore{db: db}, nil
}

// Get reads a document. The returned slice is a copy and stays valid after the transaction.
func (s *BoltStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	var value []byte
	var found bool

	err := s.db.View(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(documentsBucket))
		if bucket == nil {
			return errors.New("documents bucket not found")
		}

		data := bucket.Get([]byte(key))
		if data != nil {
			value = append([]byte{}, data...)
			found = true
		}
		return nil
	})
	if err != nil {
		return nil, false, err
	}

	return value, found, nil
}

// Set writes a document, replacing any previous value
func (s *BoltStore) Set(ctx context.Context, key string, value []byte) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(documentsBucket))
		if bucket == nil {
			return errors.New("documents bucket not found")
		}
		return bucket.Put([]byte(key), value)
	})
}

// Close closes the database connection
func (s *BoltStore) Close() error {
	return s.db.Close()
}

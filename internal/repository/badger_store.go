package repository

import (
	"context"

	"github.com/dgraph-io/badger/v4"
	"github.com/pkg/errors"
)

const documentPrefix = "doc:"

// BadgerStore implements KeyValueStore using BadgerDB
type BadgerStore struct {
	db *badger.DB
}

// NewBadgerStore opens or creates a BadgerDB directory at dbPath
func NewBadgerStore(dbPath string) (*BadgerStore, error) {
	opts := badger.DefaultOptions(dbPath)
	opts.Logger = nil // Disable badger logging

	db, err := badger.Open(opts)
	if err != nil {
		return nil, errors.Wrap(err, "failed to open badger db")
	}

	return &BadgerStore{db: db}, nil
}

// Get reads a document
func (s *BadgerStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	var value []byte

	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(documentPrefix + key))
		if err != nil {
			return err
		}
		value, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, errors.Wrapf(err, "failed to read %s", key)
	}

	return value, true, nil
}

// Set writes a document, replacing any previous value
func (s *BadgerStore) Set(ctx context.Context, key string, value []byte) error {
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(documentPrefix+key), value)
	})
}

// Close closes the database connection
func (s *BadgerStore) Close() error {
	return s.db.Close()
}

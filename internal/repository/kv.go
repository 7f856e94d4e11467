package repository

import (
	"context"
	"fmt"
	"strings"
)

// KeyValueStore is the durable blob store the document layer is built on
type KeyValueStore interface {
	// Get returns the stored value and whether the key exists.
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte) error
	Close() error
}

// DatabaseType represents different database backend options
type DatabaseType string

const (
	DatabaseTypeBolt   DatabaseType = "bolt"
	DatabaseTypeBadger DatabaseType = "badger"
	DatabaseTypeSQLite DatabaseType = "sqlite"
	DatabaseTypeMemory DatabaseType = "memory"
)

// ParseDatabaseType maps a configuration string to a DatabaseType.
func ParseDatabaseType(s string) (DatabaseType, error) {
	switch t := DatabaseType(strings.ToLower(strings.TrimSpace(s))); t {
	case DatabaseTypeBolt, DatabaseTypeBadger, DatabaseTypeSQLite, DatabaseTypeMemory:
		return t, nil
	case "":
		return DatabaseTypeBolt, nil
	default:
		return "", fmt.Errorf("unsupported database type: %s", s)
	}
}

// NewKeyValueStore creates a key-value store with the specified database type
//
// Database Types:
// - bolt: Compact B+ tree database in a single file (default)
// - badger: LSM-tree database, directory based, larger footprint
// - sqlite: single-file SQLite database with one state table
// - memory: non-durable map, for tests and dry runs
func NewKeyValueStore(dbPath string, dbType DatabaseType) (KeyValueStore, error) {
	switch dbType {
	case DatabaseTypeBolt:
		if !strings.HasSuffix(dbPath, ".bolt") {
			dbPath = dbPath + ".bolt"
		}
		return NewBoltStore(dbPath)

	case DatabaseTypeBadger:
		return NewBadgerStore(dbPath)

	case DatabaseTypeSQLite:
		if !strings.HasSuffix(dbPath, ".sqlite") {
			dbPath = dbPath + ".sqlite"
		}
		return NewSQLiteStore(dbPath)

	case DatabaseTypeMemory:
		return NewMemoryStore(), nil

	default:
		return nil, fmt.Errorf("unsupported database type: %s", dbType)
	}
}

// GetDatabaseInfo returns information about the different database options
func GetDatabaseInfo() map[DatabaseType]string {
	return map[DatabaseType]string{
		DatabaseTypeBolt:   "Compact B+ tree database. Single file, small footprint. Default for local use.",
		DatabaseTypeBadger: "LSM-tree database. Directory based, fast writes, creates large value log files.",
		DatabaseTypeSQLite: "Pure Go SQLite. Single file readable with standard sqlite tooling.",
		DatabaseTypeMemory: "In-process map. Nothing survives a restart.",
	}
}

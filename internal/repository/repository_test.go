package repository

import (
	"context"
	"iter"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func createTestStores(t *testing.T) iter.Seq2[DatabaseType, KeyValueStore] {
	return func(yield func(DatabaseType, KeyValueStore) bool) {
		for _, dbType := range []DatabaseType{DatabaseTypeBolt, DatabaseTypeBadger, DatabaseTypeSQLite, DatabaseTypeMemory} {
			dbPath := filepath.Join(t.TempDir(), "test")

			store, err := NewKeyValueStore(dbPath, dbType)
			if err != nil {
				t.Fatalf("Failed to create %s store: %v", dbType, err)
			}

			cont := yield(dbType, store)
			store.Close()
			if !cont {
				return
			}
		}
	}
}

func TestKeyValueStoreGetMissing(t *testing.T) {
	for dbType, store := range createTestStores(t) {
		t.Run(string(dbType), func(t *testing.T) {
			value, ok, err := store.Get(context.Background(), "absent")
			require.NoError(t, err)
			assert.False(t, ok)
			assert.Nil(t, value)
		})
	}
}

func TestKeyValueStoreSetAndOverwrite(t *testing.T) {
	for dbType, store := range createTestStores(t) {
		t.Run(string(dbType), func(t *testing.T) {
			ctx := context.Background()

			require.NoError(t, store.Set(ctx, "mhd.items", []byte(`[{"id":"1"}]`)))
			require.NoError(t, store.Set(ctx, "mhd.items", []byte(`[]`)))

			value, ok, err := store.Get(ctx, "mhd.items")
			require.NoError(t, err)
			assert.True(t, ok)
			assert.Equal(t, "[]", string(value))
		})
	}
}

func TestKeyValueStorePersistsAcrossReopen(t *testing.T) {
	for _, dbType := range []DatabaseType{DatabaseTypeBolt, DatabaseTypeBadger, DatabaseTypeSQLite} {
		t.Run(string(dbType), func(t *testing.T) {
			ctx := context.Background()
			dbPath := filepath.Join(t.TempDir(), "reopen")

			store, err := NewKeyValueStore(dbPath, dbType)
			require.NoError(t, err)
			require.NoError(t, store.Set(ctx, "mhd.settings", []byte(`{"soonThresholdDays":3}`)))
			require.NoError(t, store.Close())

			reopened, err := NewKeyValueStore(dbPath, dbType)
			require.NoError(t, err)
			defer reopened.Close()

			value, ok, err := reopened.Get(ctx, "mhd.settings")
			require.NoError(t, err)
			assert.True(t, ok)
			assert.JSONEq(t, `{"soonThresholdDays":3}`, string(value))
		})
	}
}

func TestParseDatabaseType(t *testing.T) {
	tests := []struct {
		in          string
		expected    DatabaseType
		shouldError bool
	}{
		{in: "", expected: DatabaseTypeBolt},
		{in: "BOLT", expected: DatabaseTypeBolt},
		{in: "badger", expected: DatabaseTypeBadger},
		{in: " sqlite ", expected: DatabaseTypeSQLite},
		{in: "memory", expected: DatabaseTypeMemory},
		{in: "postgres", shouldError: true},
	}

	for _, tt := range tests {
		got, err := ParseDatabaseType(tt.in)
		if tt.shouldError {
			assert.Error(t, err, tt.in)
			continue
		}
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.expected, got)
	}

	for dbType := range GetDatabaseInfo() {
		_, err := ParseDatabaseType(string(dbType))
		assert.NoError(t, err)
	}
}

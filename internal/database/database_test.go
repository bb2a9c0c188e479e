package database

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// setupTestDB creates a fresh test database
func setupTestDB(t *testing.T) *Database {
	t.Helper()
	db, err := NewDatabase(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func TestNewDatabase(t *testing.T) {
	t.Run("creates parent directories", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "nested", "dir", "test.db")
		db, err := NewDatabase(path, WithLogLevel("warn"))
		require.NoError(t, err)
		defer db.Close()

		assert.NoError(t, db.Ping(context.Background()))
	})
}

func TestKeyValueOperations(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)

	t.Run("Get returns ErrKeyNotFound for missing key", func(t *testing.T) {
		_, err := db.Get(ctx, "missing")
		assert.ErrorIs(t, err, ErrKeyNotFound)
	})

	t.Run("Set creates new entry", func(t *testing.T) {
		require.NoError(t, db.Set(ctx, "ns:books", `[]`))

		value, err := db.Get(ctx, "ns:books")
		require.NoError(t, err)
		assert.Equal(t, `[]`, value)
	})

	t.Run("Set replaces existing entry", func(t *testing.T) {
		require.NoError(t, db.Set(ctx, "ns:replace", `[1]`))
		require.NoError(t, db.Set(ctx, "ns:replace", `[1,2]`))

		value, err := db.Get(ctx, "ns:replace")
		require.NoError(t, err)
		assert.Equal(t, `[1,2]`, value)

		var count int64
		require.NoError(t, db.DB.Table("kv_entries").Where("key = ?", "ns:replace").Count(&count).Error)
		assert.Equal(t, int64(1), count)
	})

	t.Run("Delete removes entry", func(t *testing.T) {
		require.NoError(t, db.Set(ctx, "ns:gone", "x"))
		require.NoError(t, db.Delete(ctx, "ns:gone"))

		_, err := db.Get(ctx, "ns:gone")
		assert.ErrorIs(t, err, ErrKeyNotFound)
	})

	t.Run("Delete of missing key is not an error", func(t *testing.T) {
		assert.NoError(t, db.Delete(ctx, "never-existed"))
	})
}

func TestKeys(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)

	for _, k := range []string{"@LoveBooks:books", "@LoveBooks:chapters", "@lovebooks:other", "other:books", "@LoveBooks_x"} {
		require.NoError(t, db.Set(ctx, k, "v"))
	}

	keys, err := db.Keys(ctx, "@LoveBooks:")
	require.NoError(t, err)
	assert.Equal(t, []string{"@LoveBooks:books", "@LoveBooks:chapters"}, keys)
}

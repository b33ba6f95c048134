package cache

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"agrohub/internal/storage"
)

// runStoreContract exercises the behaviour every backend must share.
func runStoreContract(t *testing.T, store Store) {
	t.Helper()
	ctx := context.Background()

	t.Run("MissingKey", func(t *testing.T) {
		v, ok, err := store.Get(ctx, "absent")
		require.NoError(t, err)
		assert.False(t, ok)
		assert.Empty(t, v)
	})

	t.Run("SetGet", func(t *testing.T) {
		require.NoError(t, store.Set(ctx, "agrohub_loc_v2_3_0", `{"country":"Uganda"}`))
		v, ok, err := store.Get(ctx, "agrohub_loc_v2_3_0")
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Equal(t, `{"country":"Uganda"}`, v)
	})

	t.Run("Overwrite", func(t *testing.T) {
		require.NoError(t, store.Set(ctx, "k", "one"))
		require.NoError(t, store.Set(ctx, "k", "two"))
		v, ok, err := store.Get(ctx, "k")
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Equal(t, "two", v)
	})

	t.Run("Delete", func(t *testing.T) {
		require.NoError(t, store.Set(ctx, "gone", "x"))
		require.NoError(t, store.Delete(ctx, "gone"))
		_, ok, err := store.Get(ctx, "gone")
		require.NoError(t, err)
		assert.False(t, ok)

		assert.NoError(t, store.Delete(ctx, "never-existed"))
	})

	t.Run("Concurrent", func(t *testing.T) {
		var wg sync.WaitGroup
		for i := 0; i < 20; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				key := fmt.Sprintf("c-%d", i)
				assert.NoError(t, store.Set(ctx, key, key))
				_, _, err := store.Get(ctx, key)
				assert.NoError(t, err)
			}(i)
		}
		wg.Wait()

		for i := 0; i < 20; i++ {
			key := fmt.Sprintf("c-%d", i)
			v, ok, err := store.Get(ctx, key)
			require.NoError(t, err)
			assert.True(t, ok)
			assert.Equal(t, key, v)
		}
	})
}

func TestMemoryStore(t *testing.T) {
	store := NewMemoryStore()
	runStoreContract(t, store)
	assert.NoError(t, store.Close())
}

func TestLocalStore(t *testing.T) {
	store, err := NewLocalStore(filepath.Join(t.TempDir(), "nested", "cache.json"))
	require.NoError(t, err)
	runStoreContract(t, store)
}

func TestLocalStore_PersistsAcrossReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "cache.json")

	first, err := NewLocalStore(path)
	require.NoError(t, err)
	require.NoError(t, first.Set(ctx, "a", "1"))
	require.NoError(t, first.Set(ctx, "b", "2"))
	require.NoError(t, first.Delete(ctx, "b"))

	_, err = os.Stat(path + ".tmp")
	assert.True(t, os.IsNotExist(err), "temp file should be renamed away")

	second, err := NewLocalStore(path)
	require.NoError(t, err)
	v, ok, err := second.Get(ctx, "a")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "1", v)

	_, ok, err = second.Get(ctx, "b")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestLocalStore_InvalidFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cache.json")
	require.NoError(t, os.WriteFile(path, []byte("not json"), 0o644))

	_, err := NewLocalStore(path)
	assert.Error(t, err)
}

func TestLocalStore_EmptyPathIsMemoryOnly(t *testing.T) {
	store, err := NewLocalStore("")
	require.NoError(t, err)
	require.NoError(t, store.Set(context.Background(), "k", "v"))
	v, ok, err := store.Get(context.Background(), "k")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "v", v)
}

func TestSQLiteStore(t *testing.T) {
	ctx := context.Background()
	conn, err := storage.NewSQLite(ctx, storage.SQLiteConfig{Path: filepath.Join(t.TempDir(), "cache.db")})
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	store, err := NewSQLiteStore(ctx, conn.SQLiteDB())
	require.NoError(t, err)
	runStoreContract(t, store)

	// Re-running table creation on an existing table is harmless.
	_, err = NewSQLiteStore(ctx, conn.SQLiteDB())
	assert.NoError(t, err)
}

func TestRedisStore(t *testing.T) {
	url := os.Getenv("AGROHUB_TEST_REDIS_URL")
	if url == "" {
		t.Skip("AGROHUB_TEST_REDIS_URL not set")
	}
	store, err := NewRedisStore(context.Background(), RedisConfig{URL: url, Prefix: "agrohub-test:"})
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	runStoreContract(t, store)
}

func TestNewRedisStore_InvalidURL(t *testing.T) {
	_, err := NewRedisStore(context.Background(), RedisConfig{URL: "://bad"})
	assert.Error(t, err)
}

func TestNew(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name    string
		cfg     Config
		want    interface{}
		storage bool
	}{
		{name: "default is memory", cfg: Config{}, want: &MemoryStore{}},
		{name: "memory", cfg: Config{Type: TypeMemory}, want: &MemoryStore{}},
		{name: "local", cfg: Config{Type: TypeLocal, LocalPath: filepath.Join(t.TempDir(), "c.json")}, want: &LocalStore{}},
		{
			name: "sqlite storage",
			cfg: Config{Type: TypeStorage, Storage: storage.Config{
				Type:   storage.TypeSQLite,
				SQLite: storage.SQLiteConfig{Path: filepath.Join(t.TempDir(), "c.db")},
			}},
			want:    &SQLiteStore{},
			storage: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := New(ctx, tt.cfg)
			require.NoError(t, err)
			assert.IsType(t, tt.want, result.Store)
			assert.Equal(t, tt.storage, result.Storage != nil)

			assert.NoError(t, result.Close())
			assert.NoError(t, result.Close(), "Close must be idempotent")
		})
	}
}

func TestNew_Errors(t *testing.T) {
	ctx := context.Background()

	_, err := New(ctx, Config{Type: "memcached"})
	assert.ErrorContains(t, err, "unknown cache type")

	_, err = New(ctx, Config{Type: TypeStorage, Storage: storage.Config{Type: "oracle"}})
	assert.Error(t, err)

	_, err = NewWithStorage(ctx, nil)
	assert.Error(t, err)
}

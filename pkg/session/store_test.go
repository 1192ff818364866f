package session

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

func storesUnderTest(t *testing.T) map[string]Store {
	t.Helper()
	return map[string]Store{
		"memory": NewMemoryStore(),
		"file":   NewFileStore(t.TempDir()),
	}
}

func TestStore_Contract(t *testing.T) {
	for name, store := range storesUnderTest(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			_, err := store.Get(ctx, KeyToken)
			require.ErrorIs(t, err, ErrNotFound, "empty store must report not found")

			require.NoError(t, store.Set(ctx, KeyToken, "first"))
			require.NoError(t, store.Set(ctx, KeyToken, "second"))

			v, err := store.Get(ctx, KeyToken)
			require.NoError(t, err)
			require.Equal(t, "second", v, "last writer wins")

			require.NoError(t, store.Remove(ctx, KeyToken))
			_, err = store.Get(ctx, KeyToken)
			require.ErrorIs(t, err, ErrNotFound)

			require.NoError(t, store.Remove(ctx, "never-set"), "removing absent key is not an error")
		})
	}
}

func TestStore_ConcurrentWrites(t *testing.T) {
	for name, store := range storesUnderTest(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			var wg sync.WaitGroup
			for i := 0; i < 20; i++ {
				wg.Add(1)
				go func() {
					defer wg.Done()
					_ = store.Set(ctx, KeyToken, "tok")
					_ = store.Set(ctx, KeyName, "Budi")
				}()
			}
			wg.Wait()

			v, err := store.Get(ctx, KeyToken)
			require.NoError(t, err)
			require.Equal(t, "tok", v)

			v, err = store.Get(ctx, KeyName)
			require.NoError(t, err)
			require.Equal(t, "Budi", v)
		})
	}
}

func TestFileStore_Persists(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	require.NoError(t, NewFileStore(dir).Set(ctx, KeyToken, "tok"))

	v, err := NewFileStore(dir).Get(ctx, KeyToken)
	require.NoError(t, err)
	require.Equal(t, "tok", v, "a fresh store over the same dir sees the value")

	info, err := os.Stat(filepath.Join(dir, storeFileName))
	require.NoError(t, err)
	require.Equal(t, os.FileMode(0o600), info.Mode().Perm())
}

func TestFileStore_CorruptFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, storeFileName), []byte("{not json"), 0o600))

	_, err := NewFileStore(dir).Get(context.Background(), KeyToken)
	require.Error(t, err)
	require.NotErrorIs(t, err, ErrNotFound, "corrupt storage is a storage error, not an absent key")
}

func TestDefaultDir(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", "/tmp/xdg")
	require.Equal(t, "/tmp/xdg/kopkar", DefaultDir())
}

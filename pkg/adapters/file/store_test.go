package file_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/aretw0/ferry/pkg/adapters/file"
	"github.com/aretw0/ferry/pkg/domain"
	"github.com/aretw0/ferry/pkg/ports"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Ensure Store implements EntryStore
var _ ports.EntryStore = (*file.Store)(nil)

func TestFileStore_Contract(t *testing.T) {
	store := file.New(t.TempDir())
	ports.RunEntryStoreContract(t, store)
}

func TestFileStore_KeysWithSeparators(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	store := file.New(dir)

	key := "tab/1:entry/../2"
	require.NoError(t, store.Save(ctx, key, &domain.Entry{Key: key}))

	files, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, files, 1, "key must map to a single flat file")

	loaded, err := store.Load(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, key, loaded.Key)

	keys, err := store.List(ctx, "tab/1:")
	require.NoError(t, err)
	assert.Equal(t, []string{key}, keys)
}

func TestFileStore_ListMissingDir(t *testing.T) {
	store := file.New(filepath.Join(t.TempDir(), "absent"))
	keys, err := store.List(context.Background(), "")
	require.NoError(t, err)
	assert.Empty(t, keys)
}

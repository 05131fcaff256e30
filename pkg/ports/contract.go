package ports

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/aretw0/ferry/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// RunEntryStoreContract runs a suite of tests to verify that an EntryStore implementation
// adheres to the defined interface contract.
func RunEntryStoreContract(t *testing.T, store EntryStore) {
	ctx := context.Background()
	scope := "contract-" + time.Now().Format("20060102150405") + ":"

	newEntry := func(key, url string) *domain.Entry {
		page, err := domain.ParsePage([]byte(`{"component":"Users/Index","props":{"users":[{"id":1,"name":"Al"}],"meta":{"page":2}},"url":"` + url + `","version":"v1"}`))
		require.NoError(t, err)
		return &domain.Entry{
			Key:        key,
			Page:       page,
			Remembered: map[string]json.RawMessage{"form": json.RawMessage(`{"name":"Al"}`)},
			Scroll:     map[string]domain.ScrollPosition{domain.DocumentRegion: {X: 0, Y: 120}},
			UpdatedAt:  time.Now().UTC().Truncate(time.Second),
		}
	}

	t.Run("Save and Load", func(t *testing.T) {
		key := scope + "a"
		entry := newEntry(key, "/users")

		require.NoError(t, store.Save(ctx, key, entry), "Save should not return error")

		loaded, err := store.Load(ctx, key)
		require.NoError(t, err, "Load should not return error")
		assert.Equal(t, key, loaded.Key)
		require.NotNil(t, loaded.Page)
		assert.Equal(t, "Users/Index", loaded.Page.Component())
		assert.Equal(t, "/users", loaded.Page.URL())
		assert.True(t, loaded.Page.Version().Equal(domain.StringVersion("v1")))
		assert.Equal(t, entry.Page.Props(), loaded.Page.Props(), "props must survive byte-for-byte")
		assert.JSONEq(t, `{"name":"Al"}`, string(loaded.Remembered["form"]))
		assert.Equal(t, domain.ScrollPosition{Y: 120}, loaded.Scroll[domain.DocumentRegion])
	})

	t.Run("Save Replaces", func(t *testing.T) {
		key := scope + "b"
		require.NoError(t, store.Save(ctx, key, newEntry(key, "/first")))
		require.NoError(t, store.Save(ctx, key, newEntry(key, "/second")))

		loaded, err := store.Load(ctx, key)
		require.NoError(t, err)
		assert.Equal(t, "/second", loaded.URL())
	})

	t.Run("Load Non-Existent", func(t *testing.T) {
		_, err := store.Load(ctx, scope+"missing")
		assert.ErrorIs(t, err, domain.ErrEntryNotFound)
	})

	t.Run("Delete", func(t *testing.T) {
		key := scope + "c"
		require.NoError(t, store.Save(ctx, key, newEntry(key, "/c")))

		require.NoError(t, store.Delete(ctx, key), "Delete should not return error")

		_, err := store.Load(ctx, key)
		assert.ErrorIs(t, err, domain.ErrEntryNotFound, "Load after Delete should return ErrEntryNotFound")

		assert.NoError(t, store.Delete(ctx, key), "Deleting twice is not an error")
	})

	t.Run("List by prefix", func(t *testing.T) {
		other := "other-" + scope
		k1, k2, k3 := scope+"list-1", scope+"list-2", other+"list-3"
		require.NoError(t, store.Save(ctx, k1, newEntry(k1, "/1")))
		require.NoError(t, store.Save(ctx, k2, newEntry(k2, "/2")))
		require.NoError(t, store.Save(ctx, k3, newEntry(k3, "/3")))
		defer func() {
			_ = store.Delete(ctx, k1)
			_ = store.Delete(ctx, k2)
			_ = store.Delete(ctx, k3)
		}()

		keys, err := store.List(ctx, scope+"list-")
		require.NoError(t, err)
		assert.ElementsMatch(t, []string{k1, k2}, keys)
	})
}

package history_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/aretw0/ferry/pkg/adapters/headless"
	"github.com/aretw0/ferry/pkg/adapters/memory"
	"github.com/aretw0/ferry/pkg/adapters/redis"
	"github.com/aretw0/ferry/pkg/domain"
	"github.com/aretw0/ferry/pkg/history"
	backend "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func page(t *testing.T, component, url string) *domain.Page {
	t.Helper()
	p, err := domain.NewPage(component, map[string]any{"at": url}, url, domain.StringVersion("v1"))
	require.NoError(t, err)
	return p
}

func TestStore_PushAndRestore(t *testing.T) {
	ctx := context.Background()
	browser := headless.New("/")
	store := history.NewStore(memory.NewStore(), browser)

	_, err := store.Push(ctx, page(t, "Home", "/"), nil, "/", true)
	require.NoError(t, err)
	assert.Equal(t, 1, browser.Len(), "first page replaces the initial browser entry")

	users := page(t, "Users/Index", "/users")
	_, err = store.Push(ctx, users, nil, "/users", false)
	require.NoError(t, err)
	assert.Equal(t, 2, browser.Len())
	assert.Equal(t, "/users", browser.Location())

	loc, err := browser.Back()
	require.NoError(t, err)

	entry, err := store.Restore(ctx, loc)
	require.NoError(t, err)
	assert.Equal(t, "Home", entry.Page.Component())

	_, err = browser.Forward()
	require.NoError(t, err)
	entry, err = store.Restore(ctx, "/users")
	require.NoError(t, err)
	assert.Equal(t, users.Props(), entry.Page.Props())
}

func TestStore_RestoreMissing(t *testing.T) {
	ctx := context.Background()
	browser := headless.New("/")
	store := history.NewStore(memory.NewStore(), browser)

	_, err := store.Restore(ctx, "/")
	assert.ErrorIs(t, err, domain.ErrEntryNotFound, "keyless entry")

	_, err = store.Push(ctx, page(t, "Home", "/"), nil, "/", true)
	require.NoError(t, err)
	_, err = store.Restore(ctx, "/elsewhere")
	assert.ErrorIs(t, err, domain.ErrEntryNotFound, "location mismatch")
}

func TestStore_ReplaceKeepsKey(t *testing.T) {
	ctx := context.Background()
	browser := headless.New("/")
	store := history.NewStore(memory.NewStore(), browser)

	first, err := store.Push(ctx, page(t, "Home", "/"), nil, "/", true)
	require.NoError(t, err)
	second, err := store.Push(ctx, page(t, "Home", "/?tab=2"), nil, "/?tab=2", true)
	require.NoError(t, err)

	assert.Equal(t, first.Key, second.Key)
	assert.Equal(t, 1, browser.Len())

	entries, err := store.Entries(ctx)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "/?tab=2", entries[0].URL())
}

func TestStore_UpdateRememberedIdempotent(t *testing.T) {
	ctx := context.Background()
	browser := headless.New("/")
	store := history.NewStore(memory.NewStore(), browser)

	_, err := store.UpdateRemembered(ctx, "form", json.RawMessage(`{}`))
	assert.ErrorIs(t, err, domain.ErrEntryNotFound)

	_, err = store.Push(ctx, page(t, "Home", "/"), nil, "/", true)
	require.NoError(t, err)

	changed, err := store.UpdateRemembered(ctx, "form", json.RawMessage(`{"q": "go"}`))
	require.NoError(t, err)
	assert.True(t, changed)

	before, err := store.Current(ctx)
	require.NoError(t, err)

	changed, err = store.UpdateRemembered(ctx, "form", json.RawMessage(`{"q":"go"}`))
	require.NoError(t, err)
	assert.False(t, changed)

	after, err := store.Current(ctx)
	require.NoError(t, err)
	assert.Equal(t, before, after)

	got, err := store.Remembered(ctx, "form")
	require.NoError(t, err)
	assert.Equal(t, `{"q":"go"}`, string(got))

	_, err = store.UpdateRemembered(ctx, "bad", json.RawMessage(`{`))
	assert.Error(t, err)
}

func TestStore_ScopesDoNotCrossContaminate(t *testing.T) {
	ctx := context.Background()
	shared := memory.NewStore()

	tabA := history.NewStore(shared, headless.New("/"))
	tabB := history.NewStore(shared, headless.New("/"))

	_, err := tabA.Push(ctx, page(t, "A", "/"), nil, "/", true)
	require.NoError(t, err)
	_, err = tabB.Push(ctx, page(t, "B", "/"), nil, "/", true)
	require.NoError(t, err)

	_, err = tabA.UpdateRemembered(ctx, "k", json.RawMessage(`1`))
	require.NoError(t, err)

	_, err = tabB.Remembered(ctx, "k")
	assert.ErrorIs(t, err, domain.ErrEntryNotFound)

	require.NoError(t, tabA.Clear(ctx))
	entries, err := tabB.Entries(ctx)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestStore_ReattachScope(t *testing.T) {
	ctx := context.Background()
	shared := memory.NewStore()
	browser := headless.New("/")

	first := history.NewStore(shared, browser, history.WithScope("tab-1"))
	_, err := first.Push(ctx, page(t, "Home", "/"), nil, "/", true)
	require.NoError(t, err)

	// A full reload keeps the browser entry and the scope.
	reloaded := history.NewStore(shared, browser, history.WithScope("tab-1"))
	entry, err := reloaded.Restore(ctx, "/")
	require.NoError(t, err)
	assert.Equal(t, "Home", entry.Page.Component())
}

func TestStore_DistributedLock(t *testing.T) {
	ctx := context.Background()
	mr := miniredis.RunT(t)
	client := backend.NewClient(&backend.Options{Addr: mr.Addr()})
	defer client.Close()

	entries := redis.NewFromClient(client)
	store := history.NewStore(entries, headless.New("/"),
		history.WithScope("tab-1"),
		history.WithLocker(redis.NewLocker(client, "test:")),
	)
	_, err := store.Push(ctx, page(t, "Home", "/"), nil, "/", true)
	require.NoError(t, err)

	require.NoError(t, store.UpdateScroll(ctx, map[string]domain.ScrollPosition{domain.DocumentRegion: {Y: 50}}))

	current, err := store.Current(ctx)
	require.NoError(t, err)
	assert.Equal(t, domain.ScrollPosition{Y: 50}, current.Scroll[domain.DocumentRegion])
	assert.WithinDuration(t, time.Now(), current.UpdatedAt, time.Minute)

	keys := mr.Keys()
	for _, k := range keys {
		assert.NotContains(t, k, "lock:", "lock must be released")
	}
}

func TestSameLocation(t *testing.T) {
	assert.True(t, history.SameLocation("/users", "http://app.test/users"))
	assert.True(t, history.SameLocation("", "/"))
	assert.False(t, history.SameLocation("/users?page=2", "/users"))
	assert.False(t, history.SameLocation("http://a.test/x", "http://b.test/x"))
}

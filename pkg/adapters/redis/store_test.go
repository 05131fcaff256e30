package redis_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/aretw0/ferry/pkg/adapters/redis"
	"github.com/aretw0/ferry/pkg/domain"
	"github.com/aretw0/ferry/pkg/ports"
	backend "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newClient(t *testing.T) (*miniredis.Miniredis, *backend.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := backend.NewClient(&backend.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, client
}

func TestRedisStore_Contract(t *testing.T) {
	_, client := newClient(t)
	store := redis.NewFromClient(client)
	ports.RunEntryStoreContract(t, store)
}

func TestRedisStore_TTL_Expiration(t *testing.T) {
	mr, client := newClient(t)
	store := redis.NewFromClient(client, redis.WithTTL(time.Minute), redis.WithPrefix("test:"))
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, "tab:1", &domain.Entry{Key: "tab:1"}))
	assert.True(t, mr.Exists("test:tab:1"))

	mr.FastForward(2 * time.Minute)

	_, err := store.Load(ctx, "tab:1")
	assert.ErrorIs(t, err, domain.ErrEntryNotFound)
}

func TestRedisStore_Prefix(t *testing.T) {
	mr, client := newClient(t)
	store := redis.NewFromClient(client, redis.WithPrefix("app:"))

	require.NoError(t, store.Save(context.Background(), "k", &domain.Entry{Key: "k"}))
	assert.True(t, mr.Exists("app:k"))
	assert.True(t, mr.Exists("app:index"))
}

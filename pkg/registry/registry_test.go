package registry

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/ferry/pkg/domain"
	"github.com/aretw0/ferry/pkg/ports"
)

var _ ports.ComponentResolver = (*Registry)(nil)

func TestRegistry_Eager(t *testing.T) {
	r := NewRegistry()
	r.Register("Home", "home-view")

	got, err := r.Resolve(context.Background(), "Home")
	require.NoError(t, err)
	assert.Equal(t, "home-view", got)

	_, err = r.Resolve(context.Background(), "Missing")
	assert.ErrorIs(t, err, domain.ErrComponentNotFound)
}

func TestRegistry_LazyLoadsOnce(t *testing.T) {
	r := NewRegistry()
	var (
		mu    sync.Mutex
		calls int
	)
	r.RegisterLazy("Users/Index", func(ctx context.Context) (any, error) {
		mu.Lock()
		defer mu.Unlock()
		calls++
		return "users-view", nil
	})

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			got, err := r.Resolve(context.Background(), "Users/Index")
			assert.NoError(t, err)
			assert.Equal(t, "users-view", got)
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, calls)
}

func TestRegistry_FailedLoadIsRetried(t *testing.T) {
	r := NewRegistry()
	attempts := 0
	r.RegisterLazy("Flaky", func(ctx context.Context) (any, error) {
		attempts++
		if attempts == 1 {
			return nil, errors.New("bundle unavailable")
		}
		return "flaky-view", nil
	})

	_, err := r.Resolve(context.Background(), "Flaky")
	require.Error(t, err)

	got, err := r.Resolve(context.Background(), "Flaky")
	require.NoError(t, err)
	assert.Equal(t, "flaky-view", got)
}

func TestRegistry_CancelledContext(t *testing.T) {
	r := NewRegistry()
	r.RegisterLazy("Slow", func(ctx context.Context) (any, error) {
		t.Fatal("loader must not run with a done context")
		return nil, nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := r.Resolve(ctx, "Slow")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRegistry_Names(t *testing.T) {
	r := NewRegistry()
	r.Register("b", 1)
	r.RegisterLazy("a", func(context.Context) (any, error) { return 2, nil })
	assert.Equal(t, []string{"a", "b"}, r.Names())
}

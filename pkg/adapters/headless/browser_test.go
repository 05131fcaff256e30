package headless_test

import (
	"testing"

	"github.com/aretw0/ferry/pkg/adapters/headless"
	"github.com/aretw0/ferry/pkg/domain"
	"github.com/aretw0/ferry/pkg/ports"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var _ ports.Browser = (*headless.Browser)(nil)

func TestBrowser_History(t *testing.T) {
	b := headless.New("/")
	assert.Equal(t, "", b.StateKey())

	require.NoError(t, b.ReplaceState("k0", "/"))
	require.NoError(t, b.PushState("k1", "/users"))
	require.NoError(t, b.PushState("k2", "/users/1"))

	url, err := b.Back()
	require.NoError(t, err)
	assert.Equal(t, "/users", url)
	assert.Equal(t, "k1", b.StateKey())

	// Pushing from the middle drops forward entries.
	require.NoError(t, b.PushState("k3", "/about"))
	_, err = b.Forward()
	assert.Error(t, err)
	assert.Equal(t, 3, b.Len())

	_, err = b.Go(-5)
	assert.Error(t, err)
}

func TestBrowser_Scroll(t *testing.T) {
	b := headless.New("/", "sidebar")
	b.Scroll(domain.DocumentRegion, domain.ScrollPosition{Y: 300})

	b.ScrollTo(map[string]domain.ScrollPosition{"sidebar": {Y: 10}, "unknown": {Y: 1}})

	pos := b.ScrollPositions()
	assert.Equal(t, domain.ScrollPosition{Y: 300}, pos[domain.DocumentRegion])
	assert.Equal(t, domain.ScrollPosition{Y: 10}, pos["sidebar"])
	_, ok := pos["unknown"]
	assert.False(t, ok)
}

func TestBrowser_Reload(t *testing.T) {
	b := headless.New("/")
	require.NoError(t, b.Reload("/users"))
	assert.Equal(t, []string{"/users"}, b.Reloads())
	assert.Equal(t, "/users", b.Location())
	assert.Equal(t, "", b.StateKey())
}

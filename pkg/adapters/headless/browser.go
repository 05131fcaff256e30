// Package headless is an in-process browser: a session history stack with
// keyed entries, scroll regions, and a log of full reloads. It backs the CLI
// and tests wherever no real browser drives the engine.
package headless

import (
	"fmt"
	"sync"

	"github.com/aretw0/ferry/pkg/domain"
)

type slot struct {
	url string
	key string
}

// Browser implements ports.Browser.
type Browser struct {
	mu       sync.Mutex
	entries  []slot
	index    int
	scroll   map[string]domain.ScrollPosition
	reloads  []string
	fragment string
}

// New opens a browser at initialURL with the given scroll regions tagged.
// The document region always exists.
func New(initialURL string, regions ...string) *Browser {
	b := &Browser{
		entries: []slot{{url: initialURL}},
		scroll:  map[string]domain.ScrollPosition{domain.DocumentRegion: {}},
	}
	for _, r := range regions {
		b.scroll[r] = domain.ScrollPosition{}
	}
	return b
}

// Location returns the address currently shown.
func (b *Browser) Location() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.entries[b.index].url
}

// StateKey returns the key attached to the active entry.
func (b *Browser) StateKey() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.entries[b.index].key
}

// PushState adds an entry after the active one, dropping forward history.
func (b *Browser) PushState(key, url string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.entries = append(b.entries[:b.index+1], slot{url: url, key: key})
	b.index = len(b.entries) - 1
	return nil
}

// ReplaceState rewrites the active entry.
func (b *Browser) ReplaceState(key, url string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.entries[b.index] = slot{url: url, key: key}
	return nil
}

// Reload records a full navigation and moves to url on a fresh, keyless entry.
func (b *Browser) Reload(url string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.reloads = append(b.reloads, url)
	b.entries = append(b.entries[:b.index+1], slot{url: url})
	b.index = len(b.entries) - 1
	return nil
}

// Reloads returns every url passed to Reload, in order.
func (b *Browser) Reloads() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string(nil), b.reloads...)
}

// Back moves one entry back and returns the new location, like history.back().
func (b *Browser) Back() (string, error) {
	return b.Go(-1)
}

// Forward moves one entry forward.
func (b *Browser) Forward() (string, error) {
	return b.Go(1)
}

// Go moves delta entries through history.
func (b *Browser) Go(delta int) (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	target := b.index + delta
	if target < 0 || target >= len(b.entries) {
		return "", fmt.Errorf("no history entry at offset %d", delta)
	}
	b.index = target
	return b.entries[target].url, nil
}

// Len returns the number of history entries.
func (b *Browser) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.entries)
}

// Scroll simulates the user scrolling one region.
func (b *Browser) Scroll(region string, pos domain.ScrollPosition) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.scroll[region] = pos
}

// ScrollPositions returns the offsets of every region.
func (b *Browser) ScrollPositions() map[string]domain.ScrollPosition {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make(map[string]domain.ScrollPosition, len(b.scroll))
	for k, v := range b.scroll {
		out[k] = v
	}
	return out
}

// ScrollTo applies offsets to known regions.
func (b *Browser) ScrollTo(positions map[string]domain.ScrollPosition) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for k, v := range positions {
		if _, ok := b.scroll[k]; ok {
			b.scroll[k] = v
		}
	}
}

// ScrollToFragment records the anchor the native handling would jump to.
func (b *Browser) ScrollToFragment(fragment string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.fragment = fragment
}

// Fragment returns the last anchor scrolled to.
func (b *Browser) Fragment() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.fragment
}

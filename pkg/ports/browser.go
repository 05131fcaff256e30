package ports

import "github.com/aretw0/ferry/pkg/domain"

// Browser is the environment the engine navigates in.
type Browser interface {
	// Location returns the address currently shown.
	Location() string

	// StateKey returns the history key attached to the active entry, or "" if none.
	StateKey() string

	// PushState adds a history entry for url carrying key.
	PushState(key, url string) error

	// ReplaceState rewrites the active history entry.
	ReplaceState(key, url string) error

	// Reload performs a full, non-protocol navigation to url.
	Reload(url string) error

	// ScrollPositions returns the offsets of the document and every tagged scroll region.
	ScrollPositions() map[string]domain.ScrollPosition

	// ScrollTo applies offsets. Unknown regions are ignored.
	ScrollTo(positions map[string]domain.ScrollPosition)

	// ScrollToFragment lets native anchor handling run for the given fragment.
	ScrollToFragment(fragment string)
}

// Traverser is implemented by browsers that can move through their own
// history, like history.go(delta).
type Traverser interface {
	Go(delta int) (location string, err error)
}

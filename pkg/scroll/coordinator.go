// Package scroll captures and restores scroll offsets and remembered local
// component state per history entry.
package scroll

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/url"

	"github.com/aretw0/ferry/internal/logging"
	"github.com/aretw0/ferry/pkg/domain"
	"github.com/aretw0/ferry/pkg/history"
	"github.com/aretw0/ferry/pkg/ports"
)

// Coordinator is the Scroll & Remember Coordinator.
type Coordinator struct {
	browser ports.Browser
	history *history.Store
	logger  *slog.Logger
}

// Option configures the Coordinator.
type Option func(*Coordinator)

// WithLogger configures a logger for the Coordinator.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Coordinator) {
		c.logger = logger
	}
}

// New creates a Coordinator.
func New(browser ports.Browser, store *history.Store, opts ...Option) *Coordinator {
	c := &Coordinator{
		browser: browser,
		history: store,
		logger:  logging.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Save captures the current offsets into the active entry, before it is left.
// Having no active entry yet is not an error.
func (c *Coordinator) Save(ctx context.Context) error {
	err := c.history.UpdateScroll(ctx, c.browser.ScrollPositions())
	if errors.Is(err, domain.ErrEntryNotFound) {
		return nil
	}
	return err
}

// Apply runs after a committed visit: unless preserve keeps the offsets for
// next, every region goes back to the origin and the url fragment is honored.
func (c *Coordinator) Apply(next *domain.Page, preserve domain.Preserve) {
	if preserve.Keep(next) {
		return
	}
	c.Reset(next.URL())
}

// Reset scrolls the document and every region to {0,0}, then lets native
// anchor handling run for the fragment of location.
func (c *Coordinator) Reset(location string) {
	positions := c.browser.ScrollPositions()
	for k := range positions {
		positions[k] = domain.ScrollPosition{}
	}
	c.browser.ScrollTo(positions)

	if u, err := url.Parse(location); err == nil && u.Fragment != "" {
		c.browser.ScrollToFragment(u.Fragment)
	}
}

// Restore applies the offsets stored with a history entry.
func (c *Coordinator) Restore(entry *domain.Entry) {
	if len(entry.Scroll) == 0 {
		c.Reset(entry.URL())
		return
	}
	c.browser.ScrollTo(entry.Scroll)
}

// Remember stores value under key on the active entry. Keys are caller-chosen;
// two components using the same key on one page overwrite each other.
// It reports whether the stored state changed.
func (c *Coordinator) Remember(ctx context.Context, key string, value any) (bool, error) {
	raw, err := json.Marshal(value)
	if err != nil {
		return false, fmt.Errorf("failed to marshal remembered state %q: %w", key, err)
	}
	changed, err := c.history.UpdateRemembered(ctx, key, raw)
	if err != nil {
		return false, err
	}
	if changed {
		c.logger.Debug("Remembered state updated", "key", key)
	}
	return changed, nil
}

// Restored decodes the value remembered under key into dst.
// It returns false when nothing is remembered under key.
func (c *Coordinator) Restored(ctx context.Context, key string, dst any) (bool, error) {
	raw, err := c.history.Remembered(ctx, key)
	if errors.Is(err, domain.ErrEntryNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return false, fmt.Errorf("failed to decode remembered state %q: %w", key, err)
	}
	return true, nil
}

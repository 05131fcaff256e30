package history

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/aretw0/ferry/internal/logging"
	"github.com/aretw0/ferry/pkg/domain"
	"github.com/aretw0/ferry/pkg/ports"
	"github.com/google/uuid"
)

// lockTTL bounds how long a crashed holder can block an entry.
const lockTTL = 10 * time.Second

// Store persists pages and remembered state against browser history entries.
type Store struct {
	backend ports.EntryStore
	browser ports.Browser
	scope   string

	mu     sync.Mutex              // serializes read-modify-write in this process
	locker ports.DistributedLocker // optional, for stores shared across processes
	logger *slog.Logger
	now    func() time.Time
}

// Option configures the Store.
type Option func(*Store)

// WithScope sets the tab scope. Reusing a scope reattaches to a previous
// tab's entries, e.g. after a process restart.
func WithScope(scope string) Option {
	return func(s *Store) {
		s.scope = scope
	}
}

// WithLocker enables distributed locking around in-place updates.
func WithLocker(locker ports.DistributedLocker) Option {
	return func(s *Store) {
		s.locker = locker
	}
}

// WithLogger configures a logger for the Store.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) {
		s.logger = logger
	}
}

// NewStore creates a Store writing to backend and driving browser.
func NewStore(backend ports.EntryStore, browser ports.Browser, opts ...Option) *Store {
	s := &Store{
		backend: backend,
		browser: browser,
		scope:   "tab-" + uuid.NewString(),
		logger:  logging.NewNop(),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Scope returns the tab scope of this store.
func (s *Store) Scope() string {
	return s.scope
}

func (s *Store) slot(key string) string {
	return s.scope + ":" + key
}

// Push creates a new history entry for page, or replaces the active one when
// replace is set. It is the only way entries are created.
func (s *Store) Push(ctx context.Context, page *domain.Page, remembered map[string]json.RawMessage, url string, replace bool) (*domain.Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := ""
	if replace {
		key = s.browser.StateKey()
	}
	if key == "" {
		// The first page of a tab has a browser entry without a key yet.
		key = uuid.NewString()
	}

	entry := &domain.Entry{
		Key:        key,
		Page:       page,
		Remembered: copyRaw(remembered),
		UpdatedAt:  s.now().UTC(),
	}
	if err := s.backend.Save(ctx, s.slot(key), entry); err != nil {
		return nil, fmt.Errorf("failed to save history entry: %w", err)
	}

	var err error
	if replace {
		err = s.browser.ReplaceState(key, url)
	} else {
		err = s.browser.PushState(key, url)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to update browser history: %w", err)
	}

	s.logger.Debug("History entry written", "key", key, "url", url, "replace", replace)
	return entry.Clone(), nil
}

// Restore returns the entry of the active browser history slot, as needed on
// popstate. It returns domain.ErrEntryNotFound when the slot is empty or holds
// a page for another location.
func (s *Store) Restore(ctx context.Context, location string) (*domain.Entry, error) {
	key := s.browser.StateKey()
	if key == "" {
		return nil, domain.ErrEntryNotFound
	}
	entry, err := s.backend.Load(ctx, s.slot(key))
	if err != nil {
		return nil, err
	}
	if entry.Page == nil || !SameLocation(entry.URL(), location) {
		return nil, domain.ErrEntryNotFound
	}
	return entry, nil
}

// Current returns the active entry.
func (s *Store) Current(ctx context.Context) (*domain.Entry, error) {
	key := s.browser.StateKey()
	if key == "" {
		return nil, domain.ErrEntryNotFound
	}
	return s.backend.Load(ctx, s.slot(key))
}

// UpdateRemembered sets one remembered value on the active entry without
// navigating. It reports whether the stored state changed; writing an
// identical value is a no-op.
func (s *Store) UpdateRemembered(ctx context.Context, key string, value json.RawMessage) (bool, error) {
	var compacted bytes.Buffer
	if err := json.Compact(&compacted, value); err != nil {
		return false, fmt.Errorf("remembered value for %q is not valid JSON: %w", key, err)
	}

	changed := false
	err := s.update(ctx, func(e *domain.Entry) bool {
		if prev, ok := e.Remembered[key]; ok && bytes.Equal(prev, compacted.Bytes()) {
			return false
		}
		if e.Remembered == nil {
			e.Remembered = make(map[string]json.RawMessage)
		}
		e.Remembered[key] = compacted.Bytes()
		changed = true
		return true
	})
	return changed, err
}

// Remembered reads one remembered value from the active entry.
func (s *Store) Remembered(ctx context.Context, key string) (json.RawMessage, error) {
	entry, err := s.Current(ctx)
	if err != nil {
		return nil, err
	}
	v, ok := entry.Remembered[key]
	if !ok {
		return nil, domain.ErrEntryNotFound
	}
	return v, nil
}

// UpdateScroll stores scroll offsets on the active entry.
func (s *Store) UpdateScroll(ctx context.Context, positions map[string]domain.ScrollPosition) error {
	return s.update(ctx, func(e *domain.Entry) bool {
		e.Scroll = make(map[string]domain.ScrollPosition, len(positions))
		for k, v := range positions {
			e.Scroll[k] = v
		}
		return true
	})
}

// Entries lists every entry of this tab scope.
func (s *Store) Entries(ctx context.Context) ([]*domain.Entry, error) {
	keys, err := s.backend.List(ctx, s.scope+":")
	if err != nil {
		return nil, err
	}
	out := make([]*domain.Entry, 0, len(keys))
	for _, k := range keys {
		e, err := s.backend.Load(ctx, k)
		if err != nil {
			if errors.Is(err, domain.ErrEntryNotFound) {
				continue
			}
			return nil, err
		}
		out = append(out, e)
	}
	return out, nil
}

// Clear deletes every entry of this tab scope.
func (s *Store) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	keys, err := s.backend.List(ctx, s.scope+":")
	if err != nil {
		return err
	}
	for _, k := range keys {
		if err := s.backend.Delete(ctx, k); err != nil {
			return fmt.Errorf("failed to delete history entry %s: %w", k, err)
		}
	}
	return nil
}

// update runs a read-modify-write on the active entry. fn reports whether it changed anything.
func (s *Store) update(ctx context.Context, fn func(*domain.Entry) bool) error {
	key := s.browser.StateKey()
	if key == "" {
		return domain.ErrEntryNotFound
	}
	slot := s.slot(key)

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.locker != nil {
		unlock, err := s.locker.Lock(ctx, slot, lockTTL)
		if err != nil {
			return fmt.Errorf("failed to acquire distributed lock: %w", err)
		}
		defer func() {
			if err := unlock(ctx); err != nil {
				s.logger.Warn("Failed to release distributed lock (will expire via TTL)",
					"slot", slot,
					"err", err,
				)
			}
		}()
	}

	entry, err := s.backend.Load(ctx, slot)
	if err != nil {
		return err
	}
	if !fn(entry) {
		return nil
	}
	entry.UpdatedAt = s.now().UTC()
	if err := s.backend.Save(ctx, slot, entry); err != nil {
		return fmt.Errorf("failed to update history entry: %w", err)
	}
	return nil
}

// SameLocation compares two locations by path, query and fragment. The
// origin is compared only when both are absolute.
func SameLocation(a, b string) bool {
	if a == b {
		return true
	}
	ua, errA := url.Parse(a)
	ub, errB := url.Parse(b)
	if errA != nil || errB != nil {
		return false
	}
	if ua.IsAbs() && ub.IsAbs() && !strings.EqualFold(ua.Host, ub.Host) {
		return false
	}
	return normalizePath(ua.Path) == normalizePath(ub.Path) &&
		ua.RawQuery == ub.RawQuery &&
		ua.Fragment == ub.Fragment
}

func normalizePath(p string) string {
	if p == "" {
		return "/"
	}
	return p
}

func copyRaw(in map[string]json.RawMessage) map[string]json.RawMessage {
	if in == nil {
		return nil
	}
	out := make(map[string]json.RawMessage, len(in))
	for k, v := range in {
		out[k] = append(json.RawMessage(nil), v...)
	}
	return out
}

package middleware

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"

	"github.com/aretw0/ferry/pkg/domain"
	"github.com/aretw0/ferry/pkg/ports"
)

// Mask replaces redacted values.
const Mask = "***"

type redactMiddleware struct {
	next     ports.EntryStore
	patterns []*regexp.Regexp
}

// NewRedactMiddleware creates a middleware that masks the values of prop and
// remembered-state keys matching any pattern, at any depth, before persisting.
// Props without a match keep their exact bytes. Entries whose page lost a
// value are marked Redacted.
func NewRedactMiddleware(patternStrings []string) Middleware {
	patterns := make([]*regexp.Regexp, len(patternStrings))
	for i, p := range patternStrings {
		patterns[i] = regexp.MustCompile(p)
	}
	return func(next ports.EntryStore) ports.EntryStore {
		return &redactMiddleware{next: next, patterns: patterns}
	}
}

func (m *redactMiddleware) Save(ctx context.Context, key string, entry *domain.Entry) error {
	cloned := entry.Clone()

	if entry.Page != nil {
		props, masked, err := m.redact(entry.Page.Props())
		if err != nil {
			return err
		}
		cloned.Redacted = entry.Redacted || masked
		page, err := domain.NewRawPage(entry.Page.Component(), props, entry.Page.URL(), entry.Page.Version())
		if err != nil {
			return err
		}
		cloned.Page = page
	}
	if cloned.Remembered != nil {
		remembered, _, err := m.redact(cloned.Remembered)
		if err != nil {
			return err
		}
		cloned.Remembered = remembered
	}

	return m.next.Save(ctx, key, cloned)
}

func (m *redactMiddleware) Load(ctx context.Context, key string) (*domain.Entry, error) {
	return m.next.Load(ctx, key)
}

func (m *redactMiddleware) Delete(ctx context.Context, key string) error {
	return m.next.Delete(ctx, key)
}

func (m *redactMiddleware) List(ctx context.Context, prefix string) ([]string, error) {
	return m.next.List(ctx, prefix)
}

// redact masks values and reports whether anything was masked.
func (m *redactMiddleware) redact(values map[string]json.RawMessage) (map[string]json.RawMessage, bool, error) {
	out := make(map[string]json.RawMessage, len(values))
	redacted := false
	for k, raw := range values {
		if m.matches(k) {
			out[k] = json.RawMessage(`"` + Mask + `"`)
			redacted = true
			continue
		}

		var decoded any
		if err := json.Unmarshal(raw, &decoded); err != nil {
			return nil, false, fmt.Errorf("failed to decode %q for redaction: %w", k, err)
		}
		masked, changed := m.mask(decoded)
		if !changed {
			out[k] = raw
			continue
		}
		encoded, err := json.Marshal(masked)
		if err != nil {
			return nil, false, fmt.Errorf("failed to encode redacted %q: %w", k, err)
		}
		out[k] = encoded
		redacted = true
	}
	return out, redacted, nil
}

func (m *redactMiddleware) mask(v any) (any, bool) {
	switch val := v.(type) {
	case map[string]any:
		changed := false
		for k, sub := range val {
			if m.matches(k) {
				val[k] = Mask
				changed = true
				continue
			}
			if masked, ok := m.mask(sub); ok {
				val[k] = masked
				changed = true
			}
		}
		return val, changed
	case []any:
		changed := false
		for i, sub := range val {
			if masked, ok := m.mask(sub); ok {
				val[i] = masked
				changed = true
			}
		}
		return val, changed
	}
	return v, false
}

func (m *redactMiddleware) matches(key string) bool {
	for _, p := range m.patterns {
		if p.MatchString(key) {
			return true
		}
	}
	return false
}

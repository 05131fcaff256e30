// Package codec is the compact binary form of history entries used by the
// network and database backed stores.
package codec

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/aretw0/ferry/pkg/domain"
	"github.com/vmihailenco/msgpack/v5"
)

type envelope struct {
	Key        string                `msgpack:"k"`
	Page       []byte                `msgpack:"p,omitempty"`
	Remembered map[string][]byte     `msgpack:"r,omitempty"`
	Scroll     map[string][2]float64 `msgpack:"s,omitempty"`
	UpdatedAt  time.Time             `msgpack:"t"`
	Redacted   bool                  `msgpack:"x,omitempty"`
}

// MarshalEntry encodes an entry. The page keeps its JSON form so prop bytes survive unchanged.
func MarshalEntry(e *domain.Entry) ([]byte, error) {
	env := envelope{Key: e.Key, UpdatedAt: e.UpdatedAt, Redacted: e.Redacted}
	if e.Page != nil {
		page, err := json.Marshal(e.Page)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal page: %w", err)
		}
		env.Page = page
	}
	if len(e.Remembered) > 0 {
		env.Remembered = make(map[string][]byte, len(e.Remembered))
		for k, v := range e.Remembered {
			env.Remembered[k] = v
		}
	}
	if len(e.Scroll) > 0 {
		env.Scroll = make(map[string][2]float64, len(e.Scroll))
		for k, v := range e.Scroll {
			env.Scroll[k] = [2]float64{v.X, v.Y}
		}
	}
	return msgpack.Marshal(&env)
}

// UnmarshalEntry decodes what MarshalEntry produced.
func UnmarshalEntry(data []byte) (*domain.Entry, error) {
	var env envelope
	if err := msgpack.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("failed to unmarshal entry: %w", err)
	}

	e := &domain.Entry{Key: env.Key, UpdatedAt: env.UpdatedAt, Redacted: env.Redacted}
	if len(env.Page) > 0 {
		page, err := domain.ParsePage(env.Page)
		if err != nil {
			return nil, fmt.Errorf("failed to decode stored page: %w", err)
		}
		e.Page = page
	}
	if len(env.Remembered) > 0 {
		e.Remembered = make(map[string]json.RawMessage, len(env.Remembered))
		for k, v := range env.Remembered {
			e.Remembered[k] = json.RawMessage(v)
		}
	}
	if len(env.Scroll) > 0 {
		e.Scroll = make(map[string]domain.ScrollPosition, len(env.Scroll))
		for k, v := range env.Scroll {
			e.Scroll[k] = domain.ScrollPosition{X: v[0], Y: v[1]}
		}
	}
	return e, nil
}

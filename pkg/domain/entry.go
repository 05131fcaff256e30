package domain

import (
	"encoding/json"
	"time"
)

// DocumentRegion is the scroll region identifier of the document itself.
const DocumentRegion = "document"

// ScrollPosition is the offset of one scroll region.
type ScrollPosition struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Entry is one slot of session history.
type Entry struct {
	// Key identifies the browser history entry this slot belongs to.
	Key string `json:"key"`

	// Page is the committed page for this entry.
	Page *Page `json:"page"`

	// Remembered holds caller-keyed local UI state. The engine never inspects it.
	Remembered map[string]json.RawMessage `json:"remembered,omitempty"`

	// Scroll holds offsets per scroll region, including DocumentRegion.
	Scroll map[string]ScrollPosition `json:"scroll,omitempty"`

	// Redacted marks a stored page whose props were masked, so it cannot be
	// restored as is.
	Redacted bool `json:"redacted,omitempty"`

	UpdatedAt time.Time `json:"updated_at"`
}

// URL returns the url of the stored page.
func (e *Entry) URL() string {
	if e.Page == nil {
		return ""
	}
	return e.Page.URL()
}

// Clone returns a deep copy. Page is shared because it is immutable.
func (e *Entry) Clone() *Entry {
	if e == nil {
		return nil
	}
	cp := *e
	if e.Remembered != nil {
		cp.Remembered = make(map[string]json.RawMessage, len(e.Remembered))
		for k, v := range e.Remembered {
			cp.Remembered[k] = append(json.RawMessage(nil), v...)
		}
	}
	if e.Scroll != nil {
		cp.Scroll = make(map[string]ScrollPosition, len(e.Scroll))
		for k, v := range e.Scroll {
			cp.Scroll[k] = v
		}
	}
	return &cp
}

package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
)

// Page is the unit of navigation state returned by a Page Source.
//
// A Page is immutable once constructed: every accessor returns a copy, and a
// new visit always produces a new Page.
type Page struct {
	component string
	props     map[string]json.RawMessage
	url       string
	version   Version
}

// requiredPageFields are the keys every page payload must carry.
var requiredPageFields = []string{"component", "props", "url", "version"}

// NewPage builds a Page from Go values. Each prop is marshaled to JSON.
func NewPage(component string, props map[string]any, url string, version Version) (*Page, error) {
	raw := make(map[string]json.RawMessage, len(props))
	for k, v := range props {
		b, err := json.Marshal(v)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal prop %q: %w", k, err)
		}
		raw[k] = b
	}
	return NewRawPage(component, raw, url, version)
}

// NewRawPage builds a Page from already encoded props.
// The values are compacted and copied; the caller keeps ownership of the map.
func NewRawPage(component string, props map[string]json.RawMessage, url string, version Version) (*Page, error) {
	if component == "" {
		return nil, fmt.Errorf("%w: component is empty", ErrMalformedResponse)
	}
	p := &Page{
		component: component,
		props:     make(map[string]json.RawMessage, len(props)),
		url:       url,
		version:   version,
	}
	for k, v := range props {
		var buf bytes.Buffer
		if err := json.Compact(&buf, v); err != nil {
			return nil, fmt.Errorf("%w: prop %q: %v", ErrMalformedResponse, k, err)
		}
		p.props[k] = buf.Bytes()
	}
	return p, nil
}

// ParsePage decodes and validates a page payload.
// It fails with ErrMalformedResponse when a required field is missing, has the
// wrong type, or when props is not a JSON object.
func ParsePage(data []byte) (*Page, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	if fields == nil {
		return nil, fmt.Errorf("%w: payload is null", ErrMalformedResponse)
	}
	for _, name := range requiredPageFields {
		if _, ok := fields[name]; !ok {
			return nil, fmt.Errorf("%w: missing field %q", ErrMalformedResponse, name)
		}
	}

	var component, url string
	if err := json.Unmarshal(fields["component"], &component); err != nil {
		return nil, fmt.Errorf("%w: component must be a string", ErrMalformedResponse)
	}
	if err := json.Unmarshal(fields["url"], &url); err != nil {
		return nil, fmt.Errorf("%w: url must be a string", ErrMalformedResponse)
	}
	version, err := ParseVersion(fields["version"])
	if err != nil {
		return nil, err
	}

	rawProps := bytes.TrimSpace(fields["props"])
	if len(rawProps) == 0 || rawProps[0] != '{' {
		return nil, fmt.Errorf("%w: props must be an object", ErrMalformedResponse)
	}
	var props map[string]json.RawMessage
	if err := json.Unmarshal(rawProps, &props); err != nil {
		return nil, fmt.Errorf("%w: props: %v", ErrMalformedResponse, err)
	}

	return NewRawPage(component, props, url, version)
}

// Component names the UI component that renders this page.
func (p *Page) Component() string { return p.component }

// URL is the canonical location of this page.
func (p *Page) URL() string { return p.url }

// Version is the asset version the page was produced for.
func (p *Page) Version() Version { return p.version }

// Prop returns a copy of the encoded value of one prop.
func (p *Page) Prop(key string) (json.RawMessage, bool) {
	v, ok := p.props[key]
	if !ok {
		return nil, false
	}
	return append(json.RawMessage(nil), v...), true
}

// HasProp reports whether the page carries the given prop.
func (p *Page) HasProp(key string) bool {
	_, ok := p.props[key]
	return ok
}

// PropKeys returns the prop names in sorted order.
func (p *Page) PropKeys() []string {
	keys := make([]string, 0, len(p.props))
	for k := range p.props {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Props returns a deep copy of the encoded props.
func (p *Page) Props() map[string]json.RawMessage {
	out := make(map[string]json.RawMessage, len(p.props))
	for k, v := range p.props {
		out[k] = append(json.RawMessage(nil), v...)
	}
	return out
}

// WithURL returns a copy of the page located at url.
func (p *Page) WithURL(url string) *Page {
	cp := *p
	cp.url = url
	return &cp
}

type pageWire struct {
	Component string                     `json:"component"`
	Props     map[string]json.RawMessage `json:"props"`
	URL       string                     `json:"url"`
	Version   Version                    `json:"version"`
}

// MarshalJSON implements json.Marshaler.
func (p *Page) MarshalJSON() ([]byte, error) {
	props := p.props
	if props == nil {
		props = map[string]json.RawMessage{}
	}
	return json.Marshal(pageWire{
		Component: p.component,
		Props:     props,
		URL:       p.url,
		Version:   p.version,
	})
}

// UnmarshalJSON implements json.Unmarshaler with the same validation as ParsePage.
func (p *Page) UnmarshalJSON(data []byte) error {
	parsed, err := ParsePage(data)
	if err != nil {
		return err
	}
	*p = *parsed
	return nil
}

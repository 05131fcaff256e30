package domain

import (
	"fmt"
	"io"
	"net/http"
	"strings"
)

// Method is the HTTP method of a visit.
type Method string

const (
	MethodGet    Method = http.MethodGet
	MethodPost   Method = http.MethodPost
	MethodPut    Method = http.MethodPut
	MethodPatch  Method = http.MethodPatch
	MethodDelete Method = http.MethodDelete
)

// ParseMethod normalizes a method name. Empty input yields MethodGet.
func ParseMethod(s string) (Method, error) {
	if s == "" {
		return MethodGet, nil
	}
	m := Method(strings.ToUpper(s))
	switch m {
	case MethodGet, MethodPost, MethodPut, MethodPatch, MethodDelete:
		return m, nil
	}
	return "", fmt.Errorf("unsupported visit method %q", s)
}

// DataInQuery reports whether visit data travels in the query string.
func (m Method) DataInQuery() bool {
	return m == MethodGet || m == MethodDelete
}

// Preserve decides, given the page about to be committed, whether something
// (scroll offsets) is kept. A nil Preserve means false.
type Preserve func(next *Page) bool

// PreserveAlways always keeps.
func PreserveAlways(*Page) bool { return true }

// PreserveIf wraps a constant.
func PreserveIf(keep bool) Preserve {
	return func(*Page) bool { return keep }
}

// Keep evaluates the policy against the next page.
func (p Preserve) Keep(next *Page) bool {
	if p == nil {
		return false
	}
	return p(next)
}

// File is a binary upload. Visit data holding a File is sent as multipart/form-data.
type File struct {
	Filename    string
	ContentType string
	Content     io.Reader
}

// VisitRequest is the transient description of one navigation.
type VisitRequest struct {
	URL    string
	Method Method

	// Data is the request payload: a map, url.Values, or any JSON-encodable value.
	// GET and DELETE data is merged into the query string.
	Data any

	// Headers are extra request headers. Protocol headers always win.
	Headers http.Header

	// Only lists the props requested by a partial reload, in order.
	Only []string
	// Except lists props the Page Source may omit on a partial reload.
	Except []string
	// ErrorBag scopes validation errors on the Page Source side.
	ErrorBag string
	// ForceFormData sends the body as multipart/form-data even without files.
	ForceFormData bool

	PreserveScroll Preserve
	PreserveState  bool
	Replace        bool
}

// Normalize fills defaults and validates the request.
func (r VisitRequest) Normalize() (VisitRequest, error) {
	if strings.TrimSpace(r.URL) == "" {
		return r, fmt.Errorf("visit url is required")
	}
	m, err := ParseMethod(string(r.Method))
	if err != nil {
		return r, err
	}
	r.Method = m
	return r, nil
}

// IsPartial reports whether the visit asks for a subset of props.
func (r VisitRequest) IsPartial() bool {
	return len(r.Only) > 0 || len(r.Except) > 0
}

// Package http answers requests the way a Page Source does: protocol visits
// get a JSON page, plain browser loads get the root HTML document with the
// page embedded. It backs the demo server and the engine's test fixtures.
package http

import (
	"encoding/json"
	"fmt"
	"html"
	"log/slog"
	"net/http"
	"strings"
	"sync"

	"github.com/aretw0/ferry/internal/logging"
	"github.com/aretw0/ferry/pkg/domain"
	"github.com/aretw0/ferry/pkg/protocol"
)

// Lazy marks a prop that is only evaluated when a partial reload asks for it.
type Lazy func() any

// Responder renders pages with protocol semantics.
type Responder struct {
	mu      sync.RWMutex
	version domain.Version
	rootID  string
	title   string
	logger  *slog.Logger
	shared  func(r *http.Request) map[string]any
}

// Option configures a Responder.
type Option func(*Responder)

// WithVersion sets the asset version pages are stamped with.
func WithVersion(v domain.Version) Option {
	return func(s *Responder) {
		s.version = v
	}
}

// WithRootID sets the id of the root element in HTML responses.
func WithRootID(id string) Option {
	return func(s *Responder) {
		s.rootID = id
	}
}

// WithTitle sets the title of HTML responses.
func WithTitle(title string) Option {
	return func(s *Responder) {
		s.title = title
	}
}

// WithShared merges props computed per request into every page.
// Page props win on conflict.
func WithShared(fn func(r *http.Request) map[string]any) Option {
	return func(s *Responder) {
		s.shared = fn
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Responder) {
		s.logger = logger
	}
}

// NewResponder creates a Responder.
func NewResponder(opts ...Option) *Responder {
	s := &Responder{
		rootID: "app",
		title:  "ferry",
		logger: logging.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Version returns the current asset version.
func (s *Responder) Version() domain.Version {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.version
}

// SetVersion changes the asset version, as a deploy would.
func (s *Responder) SetVersion(v domain.Version) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.version = v
}

// IsProtocol reports whether r is a protocol visit rather than a plain load.
func IsProtocol(r *http.Request) bool {
	return r.Header.Get(protocol.HeaderMarker) != ""
}

// Render answers with status 200.
func (s *Responder) Render(w http.ResponseWriter, r *http.Request, component string, props map[string]any) {
	s.RenderStatus(w, r, http.StatusOK, component, props)
}

// RenderStatus answers with a page. Stale GET visits get a 409 location
// response instead; partial reloads of the same component are filtered.
func (s *Responder) RenderStatus(w http.ResponseWriter, r *http.Request, status int, component string, props map[string]any) {
	version := s.Version()
	url := r.URL.RequestURI()

	if IsProtocol(r) && r.Method == http.MethodGet && !version.IsZero() {
		if sent := r.Header.Get(protocol.HeaderVersion); sent != version.String() {
			s.logger.Debug("Asset version mismatch", "sent", sent, "current", version.String(), "url", url)
			w.Header().Set(protocol.HeaderLocation, url)
			w.WriteHeader(http.StatusConflict)
			return
		}
	}

	merged := make(map[string]any, len(props))
	if s.shared != nil {
		for k, v := range s.shared(r) {
			merged[k] = v
		}
	}
	for k, v := range props {
		merged[k] = v
	}

	resolved := make(map[string]any, len(merged))
	partial := IsProtocol(r) && r.Header.Get(protocol.HeaderPartialComponent) == component
	only := splitList(r.Header.Get(protocol.HeaderPartialData))
	except := splitList(r.Header.Get(protocol.HeaderPartialExcept))
	for k, v := range merged {
		if partial {
			if len(only) > 0 && !contains(only, k) {
				continue
			}
			if contains(except, k) {
				continue
			}
		} else if _, lazy := v.(Lazy); lazy {
			continue
		}
		if fn, lazy := v.(Lazy); lazy {
			v = fn()
		}
		resolved[k] = v
	}

	page, err := domain.NewPage(component, resolved, url, version)
	if err != nil {
		http.Error(w, fmt.Sprintf("Render error: %v", err), http.StatusInternalServerError)
		s.logger.Error("Render failed", "err", err, "component", component)
		return
	}

	w.Header().Add("Vary", protocol.HeaderMarker)
	if IsProtocol(r) {
		w.Header().Set(protocol.HeaderMarker, "true")
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		if err := json.NewEncoder(w).Encode(page); err != nil {
			s.logger.Error("Page encode failed", "err", err)
		}
		return
	}

	data, err := json.Marshal(page)
	if err != nil {
		http.Error(w, "Render error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	fmt.Fprintf(w, rootTemplate, html.EscapeString(s.title), html.EscapeString(s.rootID), html.EscapeString(string(data)))
}

// Redirect sends the client to url. PUT, PATCH and DELETE get a 303 so the
// follow-up request is a GET.
func (s *Responder) Redirect(w http.ResponseWriter, r *http.Request, url string) {
	status := http.StatusFound
	switch r.Method {
	case http.MethodPut, http.MethodPatch, http.MethodDelete, http.MethodPost:
		status = http.StatusSeeOther
	}
	http.Redirect(w, r, url, status)
}

// Location forces a full browser navigation to url, possibly off-site.
func (s *Responder) Location(w http.ResponseWriter, r *http.Request, url string) {
	if IsProtocol(r) {
		w.Header().Set(protocol.HeaderLocation, url)
		w.WriteHeader(http.StatusConflict)
		return
	}
	http.Redirect(w, r, url, http.StatusFound)
}

// CORS allows cross-origin protocol visits.
func CORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", strings.Join([]string{
			"Content-Type",
			protocol.HeaderMarker,
			protocol.HeaderVersion,
			protocol.HeaderPartialData,
			protocol.HeaderPartialExcept,
			protocol.HeaderPartialComponent,
			protocol.HeaderErrorBag,
			protocol.HeaderRequestedWith,
		}, ", "))
		w.Header().Set("Access-Control-Expose-Headers", strings.Join([]string{protocol.HeaderMarker, protocol.HeaderLocation}, ", "))
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func splitList(v string) []string {
	if v == "" {
		return nil
	}
	parts := strings.Split(v, ",")
	out := parts[:0]
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

const rootTemplate = `<!DOCTYPE html>
<html lang="en">
<head>
    <meta charset="utf-8" />
    <title>%s</title>
</head>
<body>
<div id="%s" data-page="%s"></div>
</body>
</html>
`

package http

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/ferry/pkg/domain"
	"github.com/aretw0/ferry/pkg/protocol"
)

func protocolRequest(method, target string, version string) *http.Request {
	req := httptest.NewRequest(method, target, nil)
	req.Header.Set(protocol.HeaderMarker, "true")
	if version != "" {
		req.Header.Set(protocol.HeaderVersion, version)
	}
	return req
}

func decodePage(t *testing.T, w *httptest.ResponseRecorder) *domain.Page {
	t.Helper()
	page, err := domain.ParsePage(w.Body.Bytes())
	require.NoError(t, err)
	return page
}

func TestRender_ProtocolVisit(t *testing.T) {
	s := NewResponder(WithVersion(domain.StringVersion("v1")))

	w := httptest.NewRecorder()
	s.Render(w, protocolRequest("GET", "/users?page=2", "v1"), "Users/Index", map[string]any{"users": []string{}})

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "true", w.Header().Get(protocol.HeaderMarker))
	page := decodePage(t, w)
	assert.Equal(t, "Users/Index", page.Component())
	assert.Equal(t, "/users?page=2", page.URL())
	assert.True(t, page.Version().Equal(domain.StringVersion("v1")))
}

func TestRender_StaleVersionGets409(t *testing.T) {
	s := NewResponder(WithVersion(domain.StringVersion("v2")))

	w := httptest.NewRecorder()
	s.Render(w, protocolRequest("GET", "/users", "v1"), "Users/Index", nil)

	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "/users", w.Header().Get(protocol.HeaderLocation))
}

func TestRender_StaleVersionOnPostStillRenders(t *testing.T) {
	s := NewResponder(WithVersion(domain.StringVersion("v2")))

	w := httptest.NewRecorder()
	s.RenderStatus(w, protocolRequest("POST", "/users", "v1"), http.StatusUnprocessableEntity, "Users/Create", map[string]any{
		"errors": map[string]string{"name": "required"},
	})

	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	page := decodePage(t, w)
	assert.True(t, page.HasProp("errors"))
}

func TestRender_PartialReload(t *testing.T) {
	s := NewResponder()
	evaluated := false
	props := map[string]any{
		"users": []string{"al"},
		"stats": Lazy(func() any { evaluated = true; return 3 }),
		"flash": "hi",
	}

	t.Run("Full visit skips lazy props", func(t *testing.T) {
		w := httptest.NewRecorder()
		s.Render(w, protocolRequest("GET", "/users", ""), "Users/Index", props)
		page := decodePage(t, w)
		assert.Equal(t, []string{"flash", "users"}, page.PropKeys())
		assert.False(t, evaluated)
	})

	t.Run("Only", func(t *testing.T) {
		req := protocolRequest("GET", "/users", "")
		req.Header.Set(protocol.HeaderPartialComponent, "Users/Index")
		req.Header.Set(protocol.HeaderPartialData, "stats")
		w := httptest.NewRecorder()
		s.Render(w, req, "Users/Index", props)
		page := decodePage(t, w)
		assert.Equal(t, []string{"stats"}, page.PropKeys())
		assert.True(t, evaluated)
	})

	t.Run("Except", func(t *testing.T) {
		req := protocolRequest("GET", "/users", "")
		req.Header.Set(protocol.HeaderPartialComponent, "Users/Index")
		req.Header.Set(protocol.HeaderPartialExcept, "flash, stats")
		w := httptest.NewRecorder()
		s.Render(w, req, "Users/Index", props)
		page := decodePage(t, w)
		assert.Equal(t, []string{"users"}, page.PropKeys())
	})

	t.Run("Other component ignores partial headers", func(t *testing.T) {
		req := protocolRequest("GET", "/users", "")
		req.Header.Set(protocol.HeaderPartialComponent, "Home")
		req.Header.Set(protocol.HeaderPartialData, "stats")
		w := httptest.NewRecorder()
		s.Render(w, req, "Users/Index", props)
		page := decodePage(t, w)
		assert.Equal(t, []string{"flash", "users"}, page.PropKeys())
	})
}

func TestRender_SharedProps(t *testing.T) {
	s := NewResponder(WithShared(func(r *http.Request) map[string]any {
		return map[string]any{"auth": "guest", "flash": "shared"}
	}))

	w := httptest.NewRecorder()
	s.Render(w, protocolRequest("GET", "/", ""), "Home", map[string]any{"flash": "page"})

	page := decodePage(t, w)
	flash, _ := page.Prop("flash")
	assert.JSONEq(t, `"page"`, string(flash))
	assert.True(t, page.HasProp("auth"))
}

func TestRender_PlainLoadEmbedsPage(t *testing.T) {
	s := NewResponder(WithRootID("root"), WithVersion(domain.NumberVersion(7)))

	w := httptest.NewRecorder()
	s.Render(w, httptest.NewRequest("GET", "/", nil), "Home", map[string]any{"title": `"quoted" <b>`})

	assert.Equal(t, http.StatusOK, w.Code)
	assert.True(t, strings.HasPrefix(w.Header().Get("Content-Type"), "text/html"))

	page, err := protocol.ParseRootDocument(w.Body, "root")
	require.NoError(t, err)
	assert.Equal(t, "Home", page.Component())
	title, _ := page.Prop("title")
	var s2 string
	require.NoError(t, json.Unmarshal(title, &s2))
	assert.Equal(t, `"quoted" <b>`, s2)
	assert.True(t, page.Version().Equal(domain.NumberVersion(7)))
}

func TestRedirectAndLocation(t *testing.T) {
	s := NewResponder()

	for _, method := range []string{"POST", "PUT", "PATCH", "DELETE"} {
		w := httptest.NewRecorder()
		s.Redirect(w, protocolRequest(method, "/users/1", ""), "/users")
		assert.Equal(t, http.StatusSeeOther, w.Code, method)
		assert.Equal(t, "/users", w.Header().Get("Location"))
	}

	w := httptest.NewRecorder()
	s.Redirect(w, protocolRequest("GET", "/old", ""), "/new")
	assert.Equal(t, http.StatusFound, w.Code)

	w = httptest.NewRecorder()
	s.Location(w, protocolRequest("GET", "/out", ""), "https://example.org/")
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "https://example.org/", w.Header().Get(protocol.HeaderLocation))

	w = httptest.NewRecorder()
	s.Location(w, httptest.NewRequest("GET", "/out", nil), "https://example.org/")
	assert.Equal(t, http.StatusFound, w.Code)
}

func TestCORS_Preflight(t *testing.T) {
	h := CORS(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("preflight must not reach the handler")
	}))

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest("OPTIONS", "/", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Access-Control-Allow-Headers"), protocol.HeaderVersion)
}

package testutils

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"

	"github.com/go-chi/chi/v5"

	ferryhttp "github.com/aretw0/ferry/pkg/adapters/http"
	"github.com/aretw0/ferry/pkg/domain"
)

// User is a record of the fixture's user list.
type User struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

// PageSource is a small Page Source application: a user list with create,
// update and delete, plus endpoints that misbehave on purpose.
//
//	GET    /               Home
//	GET    /users          Users/Index {users, stats (lazy)}
//	POST   /users          303 /users, or 422 Users/Create {errors}
//	GET    /users/{id}     Users/Show {user}
//	PUT    /users/{id}     303 /users
//	DELETE /users/{id}     303 /users
//	POST   /uploads        Uploads/Show {files, fields}
//	GET    /slow           blocks until ReleaseSlow or the client gives up
//	GET    /malformed      protocol response missing fields
//	GET    /broken         500 with an HTML body
//	GET    /external       409 location to an off-site url
type PageSource struct {
	*ferryhttp.Responder
	router chi.Router

	mu    sync.Mutex
	users []User
	next  int
	hits  map[string]int

	arrived chan string
	gate    chan struct{}
	once    sync.Once
}

// NewPageSource builds the fixture at the given asset version.
func NewPageSource(version domain.Version) *PageSource {
	ps := &PageSource{
		Responder: ferryhttp.NewResponder(ferryhttp.WithVersion(version), ferryhttp.WithTitle("fixture")),
		hits:      make(map[string]int),
		arrived:   make(chan string, 64),
		gate:      make(chan struct{}),
		next:      1,
	}

	r := chi.NewRouter()
	r.Use(ps.count)
	r.Get("/", ps.home)
	r.Route("/users", func(r chi.Router) {
		r.Get("/", ps.listUsers)
		r.Post("/", ps.createUser)
		r.Get("/{id}", ps.showUser)
		r.Put("/{id}", ps.updateUser)
		r.Patch("/{id}", ps.updateUser)
		r.Delete("/{id}", ps.deleteUser)
	})
	r.Post("/uploads", ps.upload)
	r.Get("/slow", ps.slow)
	r.Get("/malformed", ps.malformed)
	r.Get("/broken", ps.broken)
	r.Get("/external", ps.external)
	ps.router = r
	return ps
}

// Serve starts the fixture on a test server closed at cleanup.
func Serve(t *testing.T, ps *PageSource) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(ps)
	t.Cleanup(srv.Close)
	return srv
}

func (ps *PageSource) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ps.router.ServeHTTP(w, r)
}

// Hits returns how many requests reached "METHOD /path".
func (ps *PageSource) Hits(method, path string) int {
	ps.mu.Lock()
	defer ps.mu.Unlock()
	return ps.hits[method+" "+path]
}

// TotalHits counts every request served.
func (ps *PageSource) TotalHits() int {
	ps.mu.Lock()
	defer ps.mu.Unlock()
	n := 0
	for _, v := range ps.hits {
		n += v
	}
	return n
}

// Arrived delivers the raw query of every request that reached /slow.
func (ps *PageSource) Arrived() <-chan string {
	return ps.arrived
}

// ReleaseSlow unblocks every pending and future /slow request.
func (ps *PageSource) ReleaseSlow() {
	ps.once.Do(func() { close(ps.gate) })
}

// Users returns a copy of the user list.
func (ps *PageSource) Users() []User {
	ps.mu.Lock()
	defer ps.mu.Unlock()
	return append([]User(nil), ps.users...)
}

func (ps *PageSource) count(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path := r.URL.Path
		if path != "/" {
			path = strings.TrimSuffix(path, "/")
		}
		ps.mu.Lock()
		ps.hits[r.Method+" "+path]++
		ps.mu.Unlock()
		next.ServeHTTP(w, r)
	})
}

func (ps *PageSource) home(w http.ResponseWriter, r *http.Request) {
	ps.Render(w, r, "Home", map[string]any{"greeting": "hello"})
}

func (ps *PageSource) listUsers(w http.ResponseWriter, r *http.Request) {
	users := ps.Users()
	if users == nil {
		users = []User{}
	}
	ps.Render(w, r, "Users/Index", map[string]any{
		"users": users,
		"stats": ferryhttp.Lazy(func() any { return map[string]int{"count": len(users)} }),
	})
}

func (ps *PageSource) createUser(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Name string `json:"name"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil && err != io.EOF {
		http.Error(w, "invalid body", http.StatusBadRequest)
		return
	}
	if strings.TrimSpace(body.Name) == "" {
		ps.RenderStatus(w, r, http.StatusUnprocessableEntity, "Users/Create", map[string]any{
			"errors": map[string]string{"name": "The name field is required."},
		})
		return
	}

	ps.mu.Lock()
	ps.users = append(ps.users, User{ID: ps.next, Name: body.Name})
	ps.next++
	ps.mu.Unlock()
	ps.Redirect(w, r, "/users")
}

func (ps *PageSource) find(r *http.Request) (int, bool) {
	id, err := strconv.Atoi(chi.URLParam(r, "id"))
	if err != nil {
		return -1, false
	}
	ps.mu.Lock()
	defer ps.mu.Unlock()
	for i, u := range ps.users {
		if u.ID == id {
			return i, true
		}
	}
	return -1, false
}

func (ps *PageSource) showUser(w http.ResponseWriter, r *http.Request) {
	i, ok := ps.find(r)
	if !ok {
		http.NotFound(w, r)
		return
	}
	ps.mu.Lock()
	u := ps.users[i]
	ps.mu.Unlock()
	ps.Render(w, r, "Users/Show", map[string]any{"user": u})
}

func (ps *PageSource) updateUser(w http.ResponseWriter, r *http.Request) {
	i, ok := ps.find(r)
	if !ok {
		http.NotFound(w, r)
		return
	}
	var body struct {
		Name string `json:"name"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "invalid body", http.StatusBadRequest)
		return
	}
	ps.mu.Lock()
	ps.users[i].Name = body.Name
	ps.mu.Unlock()
	ps.Redirect(w, r, "/users")
}

func (ps *PageSource) deleteUser(w http.ResponseWriter, r *http.Request) {
	i, ok := ps.find(r)
	if !ok {
		http.NotFound(w, r)
		return
	}
	ps.mu.Lock()
	ps.users = append(ps.users[:i], ps.users[i+1:]...)
	ps.mu.Unlock()
	ps.Redirect(w, r, "/users")
}

func (ps *PageSource) upload(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(8 << 20); err != nil {
		http.Error(w, fmt.Sprintf("invalid form: %v", err), http.StatusBadRequest)
		return
	}
	files := map[string]string{}
	for field, headers := range r.MultipartForm.File {
		for _, h := range headers {
			f, err := h.Open()
			if err != nil {
				continue
			}
			content, _ := io.ReadAll(f)
			f.Close()
			files[field] = h.Filename + ":" + string(content)
		}
	}
	fields := map[string]string{}
	for k, v := range r.MultipartForm.Value {
		fields[k] = strings.Join(v, ",")
	}
	ps.Render(w, r, "Uploads/Show", map[string]any{"files": files, "fields": fields})
}

func (ps *PageSource) slow(w http.ResponseWriter, r *http.Request) {
	select {
	case ps.arrived <- r.URL.RawQuery:
	default:
	}
	select {
	case <-ps.gate:
	case <-r.Context().Done():
		return
	}
	ps.Render(w, r, "Slow", map[string]any{"query": r.URL.RawQuery})
}

func (ps *PageSource) malformed(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("X-Inertia", "true")
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write([]byte(`{"component":"Broken","props":[]}`))
}

func (ps *PageSource) broken(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html")
	w.WriteHeader(http.StatusInternalServerError)
	_, _ = w.Write([]byte("<h1>Server Error</h1>"))
}

func (ps *PageSource) external(w http.ResponseWriter, r *http.Request) {
	ps.Location(w, r, "https://example.org/elsewhere")
}

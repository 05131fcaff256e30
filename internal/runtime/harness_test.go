package runtime_test

import (
	"context"
	"net/url"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/aretw0/ferry/internal/runtime"
	"github.com/aretw0/ferry/internal/testutils"
	"github.com/aretw0/ferry/pkg/adapters/headless"
	"github.com/aretw0/ferry/pkg/adapters/memory"
	"github.com/aretw0/ferry/pkg/domain"
	"github.com/aretw0/ferry/pkg/events"
	"github.com/aretw0/ferry/pkg/history"
	"github.com/aretw0/ferry/pkg/persistence/middleware"
	"github.com/aretw0/ferry/pkg/protocol"
)

var (
	v1 = domain.StringVersion("v1")
	v2 = domain.StringVersion("v2")
)

// recorder captures every event delivered by a dispatcher.
type recorder struct {
	mu     sync.Mutex
	events []domain.Event
}

func newRecorder(d *events.Dispatcher) *recorder {
	r := &recorder{}
	for _, t := range []domain.EventType{
		domain.EventBefore, domain.EventStart, domain.EventProgress, domain.EventSuccess,
		domain.EventError, domain.EventCancel, domain.EventFinish, domain.EventNavigate,
	} {
		d.On(t, func(ctx context.Context, e *domain.Event) {
			r.mu.Lock()
			defer r.mu.Unlock()
			r.events = append(r.events, *e)
		})
	}
	return r
}

func (r *recorder) reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = nil
}

// all returns the recorded events without progress ticks.
func (r *recorder) all() []domain.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]domain.Event, 0, len(r.events))
	for _, e := range r.events {
		if e.Type != domain.EventProgress {
			out = append(out, e)
		}
	}
	return out
}

func (r *recorder) count() int {
	return len(r.all())
}

// types lists the lifecycle of the visits to target, without progress ticks.
func (r *recorder) types(target string) []domain.EventType {
	var out []domain.EventType
	for _, e := range r.all() {
		if e.Visit != nil && e.Visit.URL == target {
			out = append(out, e.Type)
		}
	}
	return out
}

// sequence lists every event of the visits to target, progress included.
func (r *recorder) sequence(target string) []domain.EventType {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.EventType
	for _, e := range r.events {
		if e.Visit != nil && e.Visit.URL == target {
			out = append(out, e.Type)
		}
	}
	return out
}

func (r *recorder) ofType(t domain.EventType) []domain.Event {
	var out []domain.Event
	for _, e := range r.all() {
		if e.Type == t {
			out = append(out, e)
		}
	}
	return out
}

type harness struct {
	ps      *testutils.PageSource
	browser *headless.Browser
	backend *memory.Store
	store   *history.Store
	client  *protocol.Client
	engine  *runtime.Engine
	rec     *recorder
}

// newHarness boots an engine on "/" of a fresh fixture Page Source.
func newHarness(t *testing.T, opts ...runtime.EngineOption) *harness {
	t.Helper()
	return newHarnessWith(t, nil, opts...)
}

// newHarnessWith is newHarness with middlewares between the history store and
// its in-memory backend.
func newHarnessWith(t *testing.T, mws []middleware.Middleware, opts ...runtime.EngineOption) *harness {
	t.Helper()
	ctx := context.Background()

	ps := testutils.NewPageSource(v1)
	srv := testutils.Serve(t, ps)
	base, err := url.Parse(srv.URL)
	require.NoError(t, err)

	h := &harness{
		ps:      ps,
		browser: headless.New("/", "sidebar"),
		backend: memory.NewStore(),
		client:  protocol.NewClient(protocol.WithBaseURL(base), protocol.WithHTTPClient(srv.Client())),
	}
	h.store = history.NewStore(middleware.Chain(h.backend, mws...), h.browser)
	h.engine = runtime.NewEngine(h.client, h.store, h.browser, opts...)
	h.rec = newRecorder(h.engine.Events())

	page, err := h.client.FetchRoot(ctx, "/", "")
	require.NoError(t, err)
	require.NoError(t, h.engine.Boot(ctx, page))
	h.rec.reset()
	return h
}

func (h *harness) visit(t *testing.T, req domain.VisitRequest) *domain.Page {
	t.Helper()
	page, err := h.engine.Visit(context.Background(), req)
	require.NoError(t, err)
	return page
}

func (h *harness) entries(t *testing.T) []*domain.Entry {
	t.Helper()
	list, err := h.store.Entries(context.Background())
	require.NoError(t, err)
	return list
}

// slot is the storage key of the active browser entry.
func (h *harness) slot() string {
	return h.store.Scope() + ":" + h.browser.StateKey()
}

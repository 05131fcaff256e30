package ferry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"

	"github.com/aretw0/ferry/internal/logging"
	"github.com/aretw0/ferry/internal/runtime"
	"github.com/aretw0/ferry/pkg/adapters/headless"
	"github.com/aretw0/ferry/pkg/adapters/memory"
	"github.com/aretw0/ferry/pkg/domain"
	"github.com/aretw0/ferry/pkg/history"
	"github.com/aretw0/ferry/pkg/observability"
	"github.com/aretw0/ferry/pkg/persistence/middleware"
	"github.com/aretw0/ferry/pkg/ports"
	"github.com/aretw0/ferry/pkg/protocol"
)

// Version of the ferry module.
const Version = "0.1.0"

// DefaultRootID is the id of the element carrying the initial page.
const DefaultRootID = "app"

// ReloadOptions narrows a reload of the current page.
type ReloadOptions = runtime.ReloadOptions

// State is the Visit Controller state.
type State = runtime.State

// Engine is the high-level entry point for the ferry library.
// It wires the protocol client, history store, scroll coordinator and event
// dispatcher around one Visit Controller, one per browser tab.
type Engine struct {
	runtime *runtime.Engine
	client  *protocol.Client
	history *history.Store
	browser ports.Browser

	base        *url.URL
	httpClient  *http.Client
	store       ports.EntryStore
	middlewares []middleware.Middleware
	resolver    ports.ComponentResolver
	hooks       domain.LifecycleHooks
	scope       string
	locker      ports.DistributedLocker
	rootID      string
	metrics     *observability.Metrics
	logger      *slog.Logger
}

// Option defines a functional option for configuring the Engine.
type Option func(*Engine)

// WithLogger sets a custom structured logger for the engine.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = logger
	}
}

// WithHTTPClient sets the client used for every request.
func WithHTTPClient(hc *http.Client) Option {
	return func(e *Engine) {
		e.httpClient = hc
	}
}

// WithStore sets the history entry storage. Default: in memory.
func WithStore(store ports.EntryStore) Option {
	return func(e *Engine) {
		e.store = store
	}
}

// WithMiddlewares wraps the entry storage, first one outermost.
func WithMiddlewares(mws ...middleware.Middleware) Option {
	return func(e *Engine) {
		e.middlewares = append(e.middlewares, mws...)
	}
}

// WithBrowser sets the browser history the engine drives.
// Default: a headless browser starting at the root of the base URL.
func WithBrowser(b ports.Browser) Option {
	return func(e *Engine) {
		e.browser = b
	}
}

// WithResolver sets the Component Resolver, e.g. a *registry.Registry.
func WithResolver(r ports.ComponentResolver) Option {
	return func(e *Engine) {
		e.resolver = r
	}
}

// WithLifecycleHooks registers observability hooks.
func WithLifecycleHooks(hooks domain.LifecycleHooks) Option {
	return func(e *Engine) {
		e.hooks = hooks
	}
}

// WithScope reattaches to the history entries of a previous tab.
func WithScope(scope string) Option {
	return func(e *Engine) {
		e.scope = scope
	}
}

// WithLocker enables distributed locking for storage shared across processes.
func WithLocker(locker ports.DistributedLocker) Option {
	return func(e *Engine) {
		e.locker = locker
	}
}

// WithRootID sets the id of the root element read by BootFromRoot.
func WithRootID(id string) Option {
	return func(e *Engine) {
		e.rootID = id
	}
}

// WithMetrics feeds the visit lifecycle into m.
func WithMetrics(m *observability.Metrics) Option {
	return func(e *Engine) {
		e.metrics = m
	}
}

// New creates an engine for the Page Source at baseURL.
func New(baseURL string, opts ...Option) (*Engine, error) {
	base, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid base url: %w", err)
	}
	if !base.IsAbs() || base.Host == "" {
		return nil, fmt.Errorf("base url %q must be absolute", baseURL)
	}

	eng := &Engine{
		base:   base,
		rootID: DefaultRootID,
	}
	for _, opt := range opts {
		opt(eng)
	}

	if eng.logger == nil {
		eng.logger = logging.NewNop()
	}
	if eng.store == nil {
		eng.store = memory.NewStore()
	}
	if eng.browser == nil {
		start := base.EscapedPath()
		if start == "" {
			start = "/"
		}
		eng.browser = headless.New(start)
	}

	clientOpts := []protocol.Option{protocol.WithBaseURL(base), protocol.WithLogger(eng.logger)}
	if eng.httpClient != nil {
		clientOpts = append(clientOpts, protocol.WithHTTPClient(eng.httpClient))
	}
	eng.client = protocol.NewClient(clientOpts...)

	historyOpts := []history.Option{history.WithLogger(eng.logger)}
	if eng.scope != "" {
		historyOpts = append(historyOpts, history.WithScope(eng.scope))
	}
	if eng.locker != nil {
		historyOpts = append(historyOpts, history.WithLocker(eng.locker))
	}
	store := middleware.Chain(eng.store, eng.middlewares...)
	eng.history = history.NewStore(store, eng.browser, historyOpts...)

	runtimeOpts := []runtime.EngineOption{
		runtime.WithLogger(eng.logger.With("scope", eng.history.Scope())),
		runtime.WithLifecycleHooks(eng.hooks),
	}
	if eng.resolver != nil {
		runtimeOpts = append(runtimeOpts, runtime.WithResolver(eng.resolver))
	}
	eng.runtime = runtime.NewEngine(eng.client, eng.history, eng.browser, runtimeOpts...)

	if eng.metrics != nil {
		eng.metrics.Attach(eng.runtime.Events())
	}
	return eng, nil
}

// Boot starts the engine from a page the host already holds.
func (e *Engine) Boot(ctx context.Context, page *domain.Page) error {
	return e.runtime.Boot(ctx, page)
}

// BootFromRoot loads the root document at path and boots from the page it embeds.
func (e *Engine) BootFromRoot(ctx context.Context, path string) (*domain.Page, error) {
	page, err := e.client.FetchRoot(ctx, path, e.rootID)
	if err != nil {
		return nil, fmt.Errorf("failed to load root document: %w", err)
	}
	if err := e.runtime.Boot(ctx, page); err != nil {
		return nil, err
	}
	return page, nil
}

// Visit navigates to req.URL and returns the committed page.
func (e *Engine) Visit(ctx context.Context, req domain.VisitRequest) (*domain.Page, error) {
	return e.runtime.Visit(ctx, req)
}

// Get visits target with data in the query string.
func (e *Engine) Get(ctx context.Context, target string, data any) (*domain.Page, error) {
	return e.Visit(ctx, domain.VisitRequest{URL: target, Method: domain.MethodGet, Data: data})
}

// Post submits data to target.
func (e *Engine) Post(ctx context.Context, target string, data any) (*domain.Page, error) {
	return e.Visit(ctx, domain.VisitRequest{URL: target, Method: domain.MethodPost, Data: data})
}

// Put submits data to target.
func (e *Engine) Put(ctx context.Context, target string, data any) (*domain.Page, error) {
	return e.Visit(ctx, domain.VisitRequest{URL: target, Method: domain.MethodPut, Data: data})
}

// Patch submits data to target.
func (e *Engine) Patch(ctx context.Context, target string, data any) (*domain.Page, error) {
	return e.Visit(ctx, domain.VisitRequest{URL: target, Method: domain.MethodPatch, Data: data})
}

// Delete visits target with the DELETE method.
func (e *Engine) Delete(ctx context.Context, target string) (*domain.Page, error) {
	return e.Visit(ctx, domain.VisitRequest{URL: target, Method: domain.MethodDelete})
}

// Reload visits the current page again. Only and Except ask for a partial reload.
func (e *Engine) Reload(ctx context.Context, opts ReloadOptions) (*domain.Page, error) {
	return e.runtime.Reload(ctx, opts)
}

// PopState handles a back/forward move of the browser.
func (e *Engine) PopState(ctx context.Context) (*domain.Page, error) {
	return e.runtime.PopState(ctx)
}

// Back moves the browser one entry back and restores it.
func (e *Engine) Back(ctx context.Context) (*domain.Page, error) {
	return e.Go(ctx, -1)
}

// Forward moves the browser one entry forward and restores it.
func (e *Engine) Forward(ctx context.Context) (*domain.Page, error) {
	return e.Go(ctx, 1)
}

// Go traverses the browser history by delta entries. It needs a browser
// that can traverse, such as the headless one.
func (e *Engine) Go(ctx context.Context, delta int) (*domain.Page, error) {
	t, ok := e.browser.(ports.Traverser)
	if !ok {
		return nil, errors.New("browser does not support history traversal")
	}
	if _, err := t.Go(delta); err != nil {
		return nil, err
	}
	return e.runtime.PopState(ctx)
}

// Cancel aborts the pending visit, if any.
func (e *Engine) Cancel() bool {
	return e.runtime.Cancel()
}

// On registers a listener and returns a function removing it.
func (e *Engine) On(t domain.EventType, l domain.Listener) (remove func()) {
	return e.runtime.Events().On(t, l)
}

// Remember stores value under key on the active history entry.
func (e *Engine) Remember(ctx context.Context, key string, value any) (bool, error) {
	return e.runtime.Remember(ctx, key, value)
}

// Restored decodes the value remembered under key into dst.
func (e *Engine) Restored(ctx context.Context, key string, dst any) (bool, error) {
	return e.runtime.Restored(ctx, key, dst)
}

// Page returns the current page, nil before boot.
func (e *Engine) Page() *domain.Page {
	return e.runtime.Page()
}

// Component returns the component resolved for the current page.
func (e *Engine) Component() any {
	return e.runtime.Component()
}

// AssetVersion returns the last observed asset version.
func (e *Engine) AssetVersion() domain.Version {
	return e.runtime.Version()
}

// State reports whether a visit is pending.
func (e *Engine) State() State {
	return e.runtime.State()
}

// Entries lists the stored history entries of this tab.
func (e *Engine) Entries(ctx context.Context) ([]*domain.Entry, error) {
	return e.history.Entries(ctx)
}

// ClearHistory deletes every stored entry of this tab.
func (e *Engine) ClearHistory(ctx context.Context) error {
	return e.history.Clear(ctx)
}

// Scope returns the tab scope, for WithScope on a later run.
func (e *Engine) Scope() string {
	return e.history.Scope()
}

// Browser returns the browser history the engine drives.
func (e *Engine) Browser() ports.Browser {
	return e.browser
}

package runtime

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"go.uber.org/atomic"

	"github.com/aretw0/ferry/internal/logging"
	"github.com/aretw0/ferry/pkg/domain"
	"github.com/aretw0/ferry/pkg/events"
	"github.com/aretw0/ferry/pkg/history"
	"github.com/aretw0/ferry/pkg/ports"
	"github.com/aretw0/ferry/pkg/protocol"
	"github.com/aretw0/ferry/pkg/scroll"
)

// State is the controller state. Committed, Cancelled and Failed are
// momentary: the controller is back to Idle once a visit resolves.
type State string

const (
	StateIdle    State = "idle"
	StatePending State = "pending"
)

// Engine is the Visit Controller. It owns the Shared/Version State (current
// page and last-observed version) and is its single writer.
type Engine struct {
	client   *protocol.Client
	history  *history.Store
	scroll   *scroll.Coordinator
	browser  ports.Browser
	resolver ports.ComponentResolver
	events   *events.Dispatcher
	hooks    domain.LifecycleHooks
	logger   *slog.Logger

	ids atomic.Uint64

	mu        sync.Mutex
	page      *domain.Page
	version   domain.Version
	component any
	active    *visit
	latest    uint64
}

// EngineOption configures the Engine.
type EngineOption func(*Engine)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) EngineOption {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// WithResolver sets the Component Resolver. Without one, events carry no component.
func WithResolver(r ports.ComponentResolver) EngineOption {
	return func(e *Engine) {
		e.resolver = r
	}
}

// WithDispatcher shares an event dispatcher with other components.
func WithDispatcher(d *events.Dispatcher) EngineOption {
	return func(e *Engine) {
		if d != nil {
			e.events = d
		}
	}
}

// WithLifecycleHooks registers observability hooks.
func WithLifecycleHooks(hooks domain.LifecycleHooks) EngineOption {
	return func(e *Engine) {
		e.hooks = hooks
	}
}

// NewEngine creates a Visit Controller.
func NewEngine(client *protocol.Client, store *history.Store, browser ports.Browser, opts ...EngineOption) *Engine {
	e := &Engine{
		client:  client,
		history: store,
		browser: browser,
		logger:  logging.NewNop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.events == nil {
		e.events = events.NewDispatcher(events.WithLogger(e.logger))
	}
	e.events.Register(e.hooks)
	e.scroll = scroll.New(browser, store, scroll.WithLogger(e.logger))
	return e
}

// Boot initializes the Shared/Version State from the first server-rendered
// page and records it on the active browser entry. Remembered state of an
// entry already stored for that slot (a reload of the tab) is kept.
func (e *Engine) Boot(ctx context.Context, page *domain.Page) error {
	if page == nil {
		return fmt.Errorf("boot page is required")
	}

	prior, err := e.history.Restore(ctx, page.URL())
	if err != nil && !errors.Is(err, domain.ErrEntryNotFound) {
		return fmt.Errorf("failed to read history entry: %w", err)
	}
	var remembered map[string]json.RawMessage
	if prior != nil {
		remembered = prior.Remembered
	}

	if _, err := e.history.Push(ctx, page, remembered, page.URL(), true); err != nil {
		return err
	}

	id := e.ids.Inc()
	e.mu.Lock()
	e.page = page
	e.version = page.Version()
	e.latest = id
	e.mu.Unlock()

	component, err := e.resolve(ctx, page)
	if err != nil {
		return err
	}
	e.setComponent(page, component)

	if prior != nil && len(prior.Scroll) > 0 {
		e.scroll.Restore(prior)
		if err := e.scroll.Save(ctx); err != nil {
			e.logger.Warn("Failed to keep scroll offsets", "err", err)
		}
	}

	e.logger.Info("Engine booted", "component", page.Component(), "url", page.URL(), "version", page.Version().String())
	e.emit(ctx, &domain.Event{
		Type:      domain.EventNavigate,
		VisitID:   id,
		Page:      page,
		Component: component,
		Source:    domain.SourceInitial,
	})
	return nil
}

// Page returns the current page, or nil before Boot.
func (e *Engine) Page() *domain.Page {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.page
}

// Component returns the resolved component of the current page.
func (e *Engine) Component() any {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.component
}

// Version returns the last-observed asset version.
func (e *Engine) Version() domain.Version {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.version
}

// State reports whether a visit is pending.
func (e *Engine) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.active != nil {
		return StatePending
	}
	return StateIdle
}

// Events returns the dispatcher delivering the lifecycle.
func (e *Engine) Events() *events.Dispatcher {
	return e.events
}

// History returns the History State Store.
func (e *Engine) History() *history.Store {
	return e.history
}

// Remember stores local component state on the active history entry
// without navigating. No lifecycle event fires.
func (e *Engine) Remember(ctx context.Context, key string, value any) (bool, error) {
	return e.scroll.Remember(ctx, key, value)
}

// Restored decodes state remembered under key into dst.
func (e *Engine) Restored(ctx context.Context, key string, dst any) (bool, error) {
	return e.scroll.Restored(ctx, key, dst)
}

func (e *Engine) resolve(ctx context.Context, page *domain.Page) (any, error) {
	if e.resolver == nil {
		return nil, nil
	}
	component, err := e.resolver.Resolve(ctx, page.Component())
	if err != nil {
		return nil, fmt.Errorf("failed to resolve component %s: %w", page.Component(), err)
	}
	return component, nil
}

// setComponent records the component unless another page became current meanwhile.
func (e *Engine) setComponent(page *domain.Page, component any) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.page != page {
		return false
	}
	e.component = component
	return true
}

func (e *Engine) emit(ctx context.Context, ev *domain.Event) bool {
	return e.events.Emit(ctx, ev)
}

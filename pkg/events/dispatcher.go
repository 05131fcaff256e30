// Package events is the synchronous listener registry that delivers the visit
// lifecycle to external collaborators (progress indicators, component swaps, metrics).
package events

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/aretw0/ferry/internal/logging"
	"github.com/aretw0/ferry/pkg/domain"
)

type registration struct {
	id       uint64
	listener domain.Listener
}

// Dispatcher invokes listeners synchronously, in registration order.
// Safe for concurrent use. Listeners may call back into the engine.
type Dispatcher struct {
	mu        sync.RWMutex
	listeners map[domain.EventType][]registration
	nextID    uint64
	logger    *slog.Logger
}

// Option configures the Dispatcher.
type Option func(*Dispatcher)

// WithLogger configures a logger for listener panics.
func WithLogger(logger *slog.Logger) Option {
	return func(d *Dispatcher) {
		d.logger = logger
	}
}

// NewDispatcher creates an empty registry.
func NewDispatcher(opts ...Option) *Dispatcher {
	d := &Dispatcher{
		listeners: make(map[domain.EventType][]registration),
		logger:    logging.NewNop(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// On registers a listener for one event type and returns a function removing it.
func (d *Dispatcher) On(t domain.EventType, l domain.Listener) (remove func()) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.nextID++
	id := d.nextID
	d.listeners[t] = append(d.listeners[t], registration{id: id, listener: l})

	return func() {
		d.mu.Lock()
		defer d.mu.Unlock()
		regs := d.listeners[t]
		for i, r := range regs {
			if r.id == id {
				d.listeners[t] = append(regs[:i:i], regs[i+1:]...)
				return
			}
		}
	}
}

// Register adds every non-nil hook of the bundle and returns a function removing them all.
func (d *Dispatcher) Register(h domain.LifecycleHooks) (remove func()) {
	pairs := []struct {
		t domain.EventType
		l domain.Listener
	}{
		{domain.EventBefore, h.OnBefore},
		{domain.EventStart, h.OnStart},
		{domain.EventProgress, h.OnProgress},
		{domain.EventSuccess, h.OnSuccess},
		{domain.EventError, h.OnError},
		{domain.EventCancel, h.OnCancel},
		{domain.EventFinish, h.OnFinish},
		{domain.EventNavigate, h.OnNavigate},
	}
	var removers []func()
	for _, p := range pairs {
		if p.l != nil {
			removers = append(removers, d.On(p.t, p.l))
		}
	}
	return func() {
		for _, r := range removers {
			r()
		}
	}
}

// Emit delivers e to the listeners of e.Type and reports whether the event
// was not prevented. A panicking listener is logged and skipped.
func (d *Dispatcher) Emit(ctx context.Context, e *domain.Event) bool {
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now()
	}

	d.mu.RLock()
	regs := append([]registration(nil), d.listeners[e.Type]...)
	d.mu.RUnlock()

	for _, r := range regs {
		d.call(ctx, r.listener, e)
	}
	return !e.Prevented()
}

func (d *Dispatcher) call(ctx context.Context, l domain.Listener, e *domain.Event) {
	defer func() {
		if rec := recover(); rec != nil {
			d.logger.Error("Listener panicked", "event", e.Type, "visit_id", e.VisitID, "panic", rec)
		}
	}()
	l(ctx, e)
}

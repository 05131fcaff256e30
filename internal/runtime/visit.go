package runtime

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"sync"

	"github.com/aretw0/ferry/pkg/domain"
	"github.com/aretw0/ferry/pkg/history"
	"github.com/aretw0/ferry/pkg/protocol"
)

// visit is one Pending navigation. Its terminal events (cancel, error or
// success, then finish) are emitted exactly once, by whoever ends it first,
// and never before a start or progress emission still under way.
type visit struct {
	id     uint64
	req    domain.VisitRequest
	source domain.Source
	cancel context.CancelFunc

	mu       sync.Mutex
	ended    bool
	inflight int    // start or progress emissions under way
	deferred func() // terminal emission waiting for inflight to drain
	done     chan struct{}
}

func newVisit(id uint64, req domain.VisitRequest, source domain.Source) *visit {
	return &visit{id: id, req: req, source: source, done: make(chan struct{})}
}

// begin opens a non-terminal emission. It fails once v has ended.
func (v *visit) begin() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.ended {
		return false
	}
	v.inflight++
	return true
}

// settle closes an emission opened by begin, running the terminal emission
// that was waiting for it.
func (v *visit) settle() {
	v.mu.Lock()
	v.inflight--
	var fn func()
	if v.inflight == 0 {
		fn, v.deferred = v.deferred, nil
	}
	v.mu.Unlock()

	if fn != nil {
		fn()
		close(v.done)
	}
}

func (v *visit) isEnded() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.ended
}

// ReloadOptions narrows a reload of the current page.
type ReloadOptions struct {
	Only    []string
	Except  []string
	Data    any
	Headers http.Header
}

// Visit navigates to req.URL. It blocks until the visit resolves and returns
// the committed page.
//
// Errors: domain.ErrVisitPrevented when a before listener vetoed the visit,
// domain.ErrCancelled when it was superseded or cancelled,
// domain.ErrVersionMismatch when a full reload replaced it, and a
// *domain.VisitError for failures.
func (e *Engine) Visit(ctx context.Context, req domain.VisitRequest) (*domain.Page, error) {
	return e.visit(ctx, req, domain.SourceVisit)
}

// Reload visits the current page again, keeping scroll, remembered state and
// the history entry. Only and Except ask for a partial reload.
func (e *Engine) Reload(ctx context.Context, opts ReloadOptions) (*domain.Page, error) {
	current := e.Page()
	if current == nil {
		return nil, domain.ErrNotBooted
	}
	return e.Visit(ctx, domain.VisitRequest{
		URL:            current.URL(),
		Method:         domain.MethodGet,
		Data:           opts.Data,
		Headers:        opts.Headers,
		Only:           opts.Only,
		Except:         opts.Except,
		PreserveScroll: domain.PreserveAlways,
		PreserveState:  true,
		Replace:        true,
	})
}

// Cancel aborts the pending visit, if any. It reports whether one was cancelled.
func (e *Engine) Cancel() bool {
	e.mu.Lock()
	v := e.active
	e.active = nil
	e.latest = 0
	e.mu.Unlock()

	if v == nil {
		return false
	}
	e.abandon(context.Background(), v, domain.CancelExplicit)
	return true
}

func (e *Engine) visit(ctx context.Context, req domain.VisitRequest, source domain.Source) (*domain.Page, error) {
	req, err := req.Normalize()
	if err != nil {
		return nil, err
	}
	if e.Page() == nil {
		return nil, domain.ErrNotBooted
	}

	v := newVisit(e.ids.Inc(), req, source)
	log := e.logger.With("visit_id", v.id, "method", string(req.Method), "url", req.URL)

	if !e.emit(ctx, &domain.Event{Type: domain.EventBefore, VisitID: v.id, Visit: &v.req}) {
		log.Debug("Visit prevented by listener")
		return nil, domain.ErrVisitPrevented
	}

	vctx, cancel := context.WithCancel(ctx)
	defer cancel()
	v.cancel = cancel

	e.mu.Lock()
	prev := e.active
	e.active = v
	e.latest = v.id
	st := protocol.PerformState{Version: e.version, Component: e.page.Component()}
	e.mu.Unlock()

	if prev != nil {
		e.abandon(ctx, prev, domain.CancelSuperseded)
	}

	// A listener of the superseded visit, or another goroutine, may already
	// have cancelled this one.
	if !v.begin() {
		log.Debug("Visit cancelled before start")
		return nil, domain.ErrCancelled
	}
	e.emit(ctx, &domain.Event{Type: domain.EventStart, VisitID: v.id, Visit: &v.req})
	v.settle()
	if v.isEnded() {
		log.Debug("Visit cancelled by a start listener")
		return nil, domain.ErrCancelled
	}

	st.OnProgress = func(p domain.Progress) {
		if !v.begin() {
			return
		}
		defer v.settle()
		e.emit(ctx, &domain.Event{Type: domain.EventProgress, VisitID: v.id, Visit: &v.req, Progress: &p})
	}

	log.Debug("Visit started")
	out := e.client.Perform(vctx, req, st)

	switch out.Kind {
	case protocol.Success:
		return e.commit(ctx, v, out.Page, log)

	case protocol.VersionMismatch:
		if !e.release(v) {
			return nil, e.superseded(ctx, v, log)
		}
		log.Info("Asset version changed, performing full reload", "location", out.Location)
		if err := e.browser.Reload(out.Location); err != nil {
			log.Warn("Full reload failed", "err", err)
		}
		e.end(v, func() {
			e.emit(ctx, &domain.Event{Type: domain.EventCancel, VisitID: v.id, Visit: &v.req, Reason: domain.CancelVersionMismatch})
			e.emit(ctx, &domain.Event{Type: domain.EventFinish, VisitID: v.id, Visit: &v.req})
		})
		return nil, fmt.Errorf("%w: reloaded %s", domain.ErrVersionMismatch, out.Location)

	case protocol.Cancelled:
		if !e.release(v) {
			return nil, e.superseded(ctx, v, log)
		}
		// Still the latest visit: the caller's context gave up.
		log.Warn("Visit cancelled by context", "err", out.Err)
		e.end(v, func() {
			e.emit(ctx, &domain.Event{Type: domain.EventCancel, VisitID: v.id, Visit: &v.req, Reason: domain.CancelContext})
			e.emit(ctx, &domain.Event{Type: domain.EventFinish, VisitID: v.id, Visit: &v.req})
		})
		return nil, fmt.Errorf("%w: %v", domain.ErrCancelled, out.Err)

	default:
		if !e.release(v) {
			return nil, e.superseded(ctx, v, log)
		}
		verr := &domain.VisitError{Method: req.Method, URL: req.URL, Status: out.Status, Err: out.Err}
		log.Warn("Visit failed", "status", out.Status, "err", out.Err)
		e.fail(ctx, v, verr)
		return nil, verr
	}
}

// commit makes page current: history first, then the Shared/Version State,
// then the component, then the success events.
func (e *Engine) commit(ctx context.Context, v *visit, page *domain.Page, log *slog.Logger) (*domain.Page, error) {
	e.mu.Lock()
	if e.active != v || e.latest != v.id {
		e.mu.Unlock()
		return nil, e.superseded(ctx, v, log)
	}
	entry, err := e.record(ctx, v, page)
	e.active = nil
	if err != nil {
		e.mu.Unlock()
		verr := &domain.VisitError{Method: v.req.Method, URL: v.req.URL, Err: err}
		log.Warn("Failed to record history entry", "err", err)
		e.fail(ctx, v, verr)
		return nil, verr
	}
	e.page = page
	e.version = page.Version()
	e.mu.Unlock()

	log.Info("Visit committed", "component", page.Component(), "page_url", page.URL(), "entry", entry.Key)

	component, err := e.resolve(ctx, page)
	if err != nil {
		verr := &domain.VisitError{Method: v.req.Method, URL: v.req.URL, Err: err}
		log.Warn("Component resolution failed", "err", err)
		e.fail(ctx, v, verr)
		return nil, verr
	}
	if !e.setComponent(page, component) {
		// Another page became current while the component loaded.
		return nil, e.superseded(ctx, v, log)
	}

	e.scroll.Apply(page, v.req.PreserveScroll)

	e.end(v, func() {
		e.emit(ctx, &domain.Event{Type: domain.EventSuccess, VisitID: v.id, Visit: &v.req, Page: page, Component: component})
		e.emit(ctx, &domain.Event{Type: domain.EventNavigate, VisitID: v.id, Visit: &v.req, Page: page, Component: component, Source: v.source})
		e.emit(ctx, &domain.Event{Type: domain.EventFinish, VisitID: v.id, Visit: &v.req})
	})
	return page, nil
}

// record writes the history entry for page. Must hold e.mu.
func (e *Engine) record(ctx context.Context, v *visit, page *domain.Page) (*domain.Entry, error) {
	replace := v.req.Replace || sameDocument(page.URL(), e.browser.Location())

	var remembered map[string]json.RawMessage
	if v.req.PreserveState {
		current, err := e.history.Current(ctx)
		if err != nil && !errors.Is(err, domain.ErrEntryNotFound) {
			return nil, err
		}
		if current != nil {
			remembered = current.Remembered
		}
	}
	if !replace {
		if err := e.scroll.Save(ctx); err != nil {
			e.logger.Warn("Failed to save scroll offsets", "err", err)
		}
	}
	return e.history.Push(ctx, page, remembered, page.URL(), replace)
}

// release ends v's Pending state if v is still the active visit.
func (e *Engine) release(v *visit) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.active != v {
		return false
	}
	e.active = nil
	return true
}

// abandon cancels v's request and ends it with reason.
func (e *Engine) abandon(ctx context.Context, v *visit, reason domain.CancelReason) {
	v.cancel()
	e.end(v, func() {
		e.logger.Warn("Visit cancelled", "visit_id", v.id, "reason", string(reason))
		e.emit(ctx, &domain.Event{Type: domain.EventCancel, VisitID: v.id, Visit: &v.req, Reason: reason})
		e.emit(ctx, &domain.Event{Type: domain.EventFinish, VisitID: v.id, Visit: &v.req})
	})
}

// superseded ends v, if nobody has yet, and returns the caller-facing error.
func (e *Engine) superseded(ctx context.Context, v *visit, log *slog.Logger) error {
	e.end(v, func() {
		log.Warn("Visit superseded")
		e.emit(ctx, &domain.Event{Type: domain.EventCancel, VisitID: v.id, Visit: &v.req, Reason: domain.CancelSuperseded})
		e.emit(ctx, &domain.Event{Type: domain.EventFinish, VisitID: v.id, Visit: &v.req})
	})
	return domain.ErrCancelled
}

func (e *Engine) fail(ctx context.Context, v *visit, verr *domain.VisitError) {
	e.end(v, func() {
		e.emit(ctx, &domain.Event{Type: domain.EventError, VisitID: v.id, Visit: &v.req, Err: verr})
		e.emit(ctx, &domain.Event{Type: domain.EventFinish, VisitID: v.id, Visit: &v.req})
	})
}

// end runs the terminal emission of v once. Later callers wait for it to
// complete, so a superseding visit starts only after the old one finished.
// While a start or progress emission is under way, fn is handed to it and
// runs as soon as that emission returns.
func (e *Engine) end(v *visit, fn func()) {
	v.mu.Lock()
	if v.ended {
		v.mu.Unlock()
		<-v.done
		return
	}
	v.ended = true
	if v.inflight > 0 {
		v.deferred = fn
		v.mu.Unlock()
		return
	}
	v.mu.Unlock()

	fn()
	close(v.done)
}

// sameDocument compares two locations ignoring the fragment.
func sameDocument(a, b string) bool {
	return history.SameLocation(stripFragment(a), stripFragment(b))
}

func stripFragment(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return raw
	}
	u.Fragment = ""
	u.RawFragment = ""
	return u.String()
}

package runtime

import (
	"context"
	"errors"
	"fmt"

	"github.com/aretw0/ferry/pkg/domain"
)

// PopState handles browser back/forward, after the browser moved to its new
// entry. A stored page with the current version is restored without a
// request and only a navigate event fires. Otherwise, or when the stored
// props were redacted, the location is fetched with a regular visit that
// replaces the entry.
func (e *Engine) PopState(ctx context.Context) (*domain.Page, error) {
	if e.Page() == nil {
		return nil, domain.ErrNotBooted
	}

	location := e.browser.Location()
	entry, err := e.history.Restore(ctx, location)
	switch {
	case err == nil && entry.Redacted:
		e.logger.Debug("Stored page is redacted, fetching it again", "url", location)
	case err == nil:
		version := e.Version()
		if version.IsZero() || entry.Page.Version().Equal(version) {
			return e.restore(ctx, entry)
		}
		e.logger.Info("Stored page is stale, fetching it again", "url", location,
			"stored_version", entry.Page.Version().String(), "version", version.String())
	case errors.Is(err, domain.ErrEntryNotFound):
		e.logger.Debug("No stored page for history entry", "url", location)
	default:
		return nil, fmt.Errorf("failed to restore history entry: %w", err)
	}

	return e.visit(ctx, domain.VisitRequest{
		URL:           location,
		Method:        domain.MethodGet,
		PreserveState: true,
		Replace:       true,
	}, domain.SourceRefetch)
}

// restore commits a stored entry synchronously, superseding any pending visit.
func (e *Engine) restore(ctx context.Context, entry *domain.Entry) (*domain.Page, error) {
	id := e.ids.Inc()

	e.mu.Lock()
	prev := e.active
	e.active = nil
	e.latest = id
	e.page = entry.Page
	e.mu.Unlock()

	if prev != nil {
		e.abandon(ctx, prev, domain.CancelSuperseded)
	}

	component, err := e.resolve(ctx, entry.Page)
	if err != nil {
		e.logger.Warn("Component resolution failed on restore", "err", err, "url", entry.URL())
		return nil, err
	}
	if !e.setComponent(entry.Page, component) {
		return nil, domain.ErrCancelled
	}

	e.scroll.Restore(entry)
	e.logger.Info("History entry restored", "component", entry.Page.Component(), "url", entry.URL(), "entry", entry.Key)
	e.emit(ctx, &domain.Event{
		Type:      domain.EventNavigate,
		VisitID:   id,
		Page:      entry.Page,
		Component: component,
		Source:    domain.SourceHistory,
	})
	return entry.Page, nil
}

package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/aretw0/ferry/internal/logging"
	"github.com/aretw0/ferry/pkg/domain"
)

// SignalContext is cancelled on SIGINT or SIGTERM and remembers which
// signal did it.
type SignalContext struct {
	context.Context
	cancel context.CancelCauseFunc
}

// InterruptedError is the cancellation cause when a signal ended the context.
type InterruptedError struct {
	Sig os.Signal
}

func (e *InterruptedError) Error() string {
	return "interrupted by " + e.Sig.String()
}

// NewSignalContext creates a context that is cancelled on SIGINT or SIGTERM.
// Unlike signal.NotifyContext it lets the caller retrieve the signal.
func NewSignalContext(parent context.Context) *SignalContext {
	ctx, cancel := context.WithCancelCause(parent)
	sc := &SignalContext{Context: ctx, cancel: cancel}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		defer signal.Stop(sigCh)
		select {
		case sig := <-sigCh:
			cancel(&InterruptedError{Sig: sig})
		case <-ctx.Done():
		}
	}()
	return sc
}

// Cancel releases the context and its signal handler.
func (sc *SignalContext) Cancel() {
	sc.cancel(nil)
}

// Signal returns the signal that caused the context to be cancelled, or nil.
func (sc *SignalContext) Signal() os.Signal {
	var interrupted *InterruptedError
	if errors.As(context.Cause(sc.Context), &interrupted) {
		return interrupted.Sig
	}
	return nil
}

// NewLogger configures the application logger from a level name.
// Logs go to w so stdout stays free for pages.
func NewLogger(w io.Writer, level string) (*slog.Logger, error) {
	lvl, err := logging.ParseLevel(level)
	if err != nil {
		return nil, err
	}
	return logging.NewWriter(w, lvl), nil
}

// DebugHooks logs every visit lifecycle event at debug level.
func DebugHooks(logger *slog.Logger) domain.LifecycleHooks {
	log := func(ctx context.Context, e *domain.Event) {
		attrs := []any{"visit_id", e.VisitID}
		if e.Visit != nil {
			attrs = append(attrs, "method", string(e.Visit.Method), "url", e.Visit.URL)
		}
		switch e.Type {
		case domain.EventProgress:
			attrs = append(attrs, "loaded", e.Progress.Loaded, "total", e.Progress.Total)
		case domain.EventError:
			attrs = append(attrs, "err", e.Err)
		case domain.EventCancel:
			attrs = append(attrs, "reason", string(e.Reason))
		case domain.EventNavigate:
			attrs = append(attrs, "component", e.Page.Component(), "source", string(e.Source))
		}
		logger.DebugContext(ctx, "Visit event "+string(e.Type), attrs...)
	}
	return domain.LifecycleHooks{
		OnBefore:   log,
		OnStart:    log,
		OnProgress: log,
		OnSuccess:  log,
		OnError:    log,
		OnCancel:   log,
		OnFinish:   log,
		OnNavigate: log,
	}
}

// printSystemMessage prints a standardized system message.
func printSystemMessage(w io.Writer, format string, args ...any) {
	fmt.Fprintf(w, ">>> %s\n", fmt.Sprintf(format, args...))
}

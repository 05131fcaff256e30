package domain

import (
	"errors"
	"fmt"
)

// ErrMalformedResponse is returned when a response does not carry a valid page.
// It indicates a Page Source bug and is never retried.
var ErrMalformedResponse = errors.New("malformed page response")

// ErrNetworkFailure is returned when the transport fails or the Page Source
// answers with a non-redirect status and no page.
var ErrNetworkFailure = errors.New("network failure")

// ErrVersionMismatch is returned when the Page Source reports a different asset
// version. It is not user-facing: the engine performs a full reload instead of committing.
var ErrVersionMismatch = errors.New("asset version mismatch")

// ErrCancelled is returned to the caller of a visit superseded by a newer one
// or cancelled explicitly.
var ErrCancelled = errors.New("visit cancelled")

// ErrVisitPrevented is returned when a before listener vetoed the visit.
var ErrVisitPrevented = errors.New("visit prevented")

// ErrEntryNotFound is returned when no history entry matches a lookup.
var ErrEntryNotFound = errors.New("history entry not found")

// ErrNotBooted is returned when the engine has no initial page yet.
var ErrNotBooted = errors.New("engine not booted")

// ErrComponentNotFound is returned when a component name cannot be resolved.
var ErrComponentNotFound = errors.New("component not found")

// VisitError describes a failed visit for error listeners.
type VisitError struct {
	Method Method
	URL    string
	Status int // 0 when no response was received
	Err    error
}

func (e *VisitError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("%s %s: status %d: %v", e.Method, e.URL, e.Status, e.Err)
	}
	return fmt.Sprintf("%s %s: %v", e.Method, e.URL, e.Err)
}

func (e *VisitError) Unwrap() error {
	return e.Err
}

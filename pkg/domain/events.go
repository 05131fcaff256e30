package domain

import (
	"context"
	"time"
)

// EventType defines the lifecycle step of an event.
type EventType string

const (
	EventBefore   EventType = "before"   // Cancelable, fires before any request is sent
	EventStart    EventType = "start"    // Request is about to be sent
	EventProgress EventType = "progress" // Network progress tick
	EventSuccess  EventType = "success"  // Page committed
	EventError    EventType = "error"    // Visit failed
	EventCancel   EventType = "cancel"   // Visit superseded, cancelled, or replaced by a full reload
	EventFinish   EventType = "finish"   // Always last for a started visit
	EventNavigate EventType = "navigate" // A page became current (visit or history restore)
)

// CancelReason explains why a visit ended with a cancel event.
type CancelReason string

const (
	CancelSuperseded      CancelReason = "superseded"
	CancelExplicit        CancelReason = "explicit"
	CancelContext         CancelReason = "context"
	CancelVersionMismatch CancelReason = "version_mismatch"
)

// Source tells where the page of a navigate event came from.
type Source string

const (
	SourceInitial Source = "initial" // bootstrapped from the root document
	SourceVisit   Source = "visit"   // committed by a network visit
	SourceHistory Source = "history" // restored from a history entry, no request
	SourceRefetch Source = "refetch" // history traversal that had to go to the network
)

// Progress is one network progress tick.
type Progress struct {
	Upload     bool    `json:"upload"`
	Loaded     int64   `json:"loaded"`
	Total      int64   `json:"total"` // -1 when unknown
	Percentage float64 `json:"percentage"`
}

// Event is delivered to listeners. Fields are set according to Type.
type Event struct {
	Type      EventType
	Timestamp time.Time
	VisitID   uint64
	Visit     *VisitRequest

	Page      *Page     // success, navigate
	Component any       // success, navigate: the resolved component
	Progress  *Progress // progress
	Err       error     // error
	Reason    CancelReason
	Source    Source // navigate

	prevented bool
}

// Prevent vetoes the visit. Only meaningful for EventBefore.
func (e *Event) Prevent() {
	e.prevented = true
}

// Prevented reports whether a listener vetoed the event.
func (e *Event) Prevented() bool {
	return e.prevented
}

// Listener receives lifecycle events synchronously.
type Listener func(ctx context.Context, e *Event)

// LifecycleHooks bundles one optional listener per event type.
type LifecycleHooks struct {
	OnBefore   Listener
	OnStart    Listener
	OnProgress Listener
	OnSuccess  Listener
	OnError    Listener
	OnCancel   Listener
	OnFinish   Listener
	OnNavigate Listener
}

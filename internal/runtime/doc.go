// Package runtime is the Visit Controller: the state machine that runs one
// navigation at a time.
//
// A visit moves Idle -> Pending -> {Committed, Cancelled, Failed} -> Idle.
// Entering Pending cancels the visit already pending, whose cancel and
// finish events are delivered before the new visit's start. Every visit
// carries a sequence number and commits only while it is the latest issued,
// so a stale response is discarded even if the transport ignored the abort.
//
// Commit order is fixed: history entry, Shared/Version State, component
// resolution, scroll handling, then success, navigate and finish events.
// A version mismatch skips the commit and triggers exactly one full reload.
// Browser back/forward restores a stored page without any request when its
// version is current.
package runtime

/*
Package domain contains the core data contract of the visit engine.

It defines the values exchanged with a Page Source and kept in history, the
description of a visit, the lifecycle events, and the error taxonomy. This
package is kept free of I/O and persistence concerns.

# Key Entities

  - Page: the immutable JSON descriptor of one rendered view (component, props, url, version).
  - Version: the opaque asset-version token compared byte-for-byte.
  - VisitRequest: a transient description of one navigation attempt.
  - Entry: one slot of session history (page, remembered state, scroll offsets).
  - Event: one step of the visit lifecycle delivered to listeners.
*/
package domain

/*
Package ports defines the driven ports (interfaces) of the visit engine.

These interfaces decouple the engine from the environment it runs in: where
history entries are serialized, how the browser history and scroll regions are
driven, and how component names become renderable components.

# Key Interfaces

  - EntryStore: persists history entries in per-entry storage slots.
  - Browser: the session history, location, scroll regions, and full reloads.
  - ComponentResolver: resolves a component name, possibly lazily.
  - DistributedLocker: serializes read-modify-write of shared entry storage.
*/
package ports

/*
Package history implements the History State Store.

It owns history entries: every committed page is written to a per-entry
storage slot (an EntryStore key built from the tab scope and the browser's
history key), so entries survive full reloads while two tabs or history
branches never share state. Entries are created only by Push; remembered
state and scroll offsets are updated in place on the active entry.
*/
package history

// Package middleware wraps an EntryStore to change how history entries are persisted.
package middleware

import "github.com/aretw0/ferry/pkg/ports"

// Middleware allows wrapping an EntryStore to add behavior.
type Middleware func(ports.EntryStore) ports.EntryStore

// Chain applies middlewares so that the first one is the outermost.
func Chain(store ports.EntryStore, mws ...Middleware) ports.EntryStore {
	for i := len(mws) - 1; i >= 0; i-- {
		store = mws[i](store)
	}
	return store
}

// Package middleware wraps a HistoryStore with cross-cutting behavior.
package middleware

import "github.com/aretw0/gokernel/pkg/ports"

// Middleware allows wrapping a HistoryStore to add behavior.
type Middleware func(ports.HistoryStore) ports.HistoryStore

// Wrap applies mws to store so that the first middleware is the outermost.
func Wrap(store ports.HistoryStore, mws ...Middleware) ports.HistoryStore {
	for i := len(mws) - 1; i >= 0; i-- {
		store = mws[i](store)
	}
	return store
}

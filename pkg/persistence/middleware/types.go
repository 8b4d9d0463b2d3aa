package middleware

import "github.com/aretw0/caregraph/pkg/ports"

// Middleware allows wrapping a ThreadStore to add behavior.
type Middleware = ports.StoreMiddleware

// Chain wraps store so that the first middleware sees calls first.
// Chain(s, a, b) is a(b(s)).
func Chain(store ports.ThreadStore, mws ...Middleware) ports.ThreadStore {
	for i := len(mws) - 1; i >= 0; i-- {
		store = mws[i](store)
	}
	return store
}

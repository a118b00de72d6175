package xdispatch

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// route is the registry entry for one Category. A route holding a single
// handler delivers directly; with more it fans out in registration order.
// chain is the route wrapped in recovery and the dispatcher middlewares.
type route struct {
	handlers []Handler
	chain    Handler
}

func newRoute(handlers []Handler, mws []Middleware) *route {
	rt := &route{handlers: handlers}
	rt.chain = Chain(RecoveryMiddleware()(rt), mws...)
	return rt
}

func (r *route) fanOut() bool { return len(r.handlers) > 1 }

// Handle delivers e to every handler of the route. A fan-out keeps going after
// a failing listener and reports all failures joined.
func (r *route) Handle(ctx context.Context, e Event) error {
	if !r.fanOut() {
		return r.handlers[0].Handle(ctx, e)
	}
	var errs []error
	for i, h := range r.handlers {
		if err := handleRecovered(ctx, h, e); err != nil {
			errs = append(errs, fmt.Errorf("listener %d: %w", i, err))
		}
	}
	return errors.Join(errs...)
}

func handleRecovered(ctx context.Context, h Handler, e Event) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", ErrHandlerPanic, r)
		}
	}()
	return h.Handle(ctx, e)
}

// registry maps a Category to its route. Routes are replaced, never mutated,
// so a route obtained by lookup is safe to use without the lock.
type registry struct {
	mu     sync.RWMutex
	routes map[Category]*route
	mws    []Middleware
}

func newRegistry(mws ...Middleware) *registry {
	return &registry{routes: make(map[Category]*route), mws: mws}
}

// register adds h for c and reports whether c now fans out.
func (r *registry) register(c Category, h Handler) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	cur, ok := r.routes[c]
	if !ok {
		r.routes[c] = newRoute([]Handler{h}, r.mws)
		return false
	}
	next := make([]Handler, len(cur.handlers), len(cur.handlers)+1)
	copy(next, cur.handlers)
	r.routes[c] = newRoute(append(next, h), r.mws)
	return true
}

func (r *registry) lookup(c Category) (*route, bool) {
	r.mu.RLock()
	rt, ok := r.routes[c]
	r.mu.RUnlock()
	return rt, ok
}

// count returns the number of handlers registered for c.
func (r *registry) count(c Category) int {
	rt, ok := r.lookup(c)
	if !ok {
		return 0
	}
	return len(rt.handlers)
}

func (r *registry) categories() []Category {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Category, 0, len(r.routes))
	for c := range r.routes {
		out = append(out, c)
	}
	return out
}

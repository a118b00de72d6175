package xdispatch

import (
	"context"
)

// Dispatcher routes events to handlers registered per Category.
type Dispatcher interface {
	// EventHandler returns the producer-side handle; its Handle enqueues.
	EventHandler() Handler
	// Register adds h for c. A second registration for c turns the route
	// into an ordered fan-out.
	Register(c Category, h Handler)
}

// EventTypeMetrics is the per-category metrics collaborator. Increment runs
// inline on the consumer goroutine and must not block meaningfully.
type EventTypeMetrics interface {
	Increment(t Type, processingTimeUs int64)
	Get(t Type) int64
}

// HealthChecker provides health status for production monitoring.
type HealthChecker interface {
	Health(ctx context.Context) HealthStatus
}

// Terminator ends the hosting process after a fatal dispatch error.
type Terminator func()

var (
	_ Dispatcher    = (*AsyncDispatcher)(nil)
	_ Lifecycle     = (*AsyncDispatcher)(nil)
	_ HealthChecker = (*AsyncDispatcher)(nil)
)

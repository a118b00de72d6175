package xdispatch

import (
	"context"
	"time"

	"github.com/trickstertwo/xclock"
)

// Category identifies a closed family of event types. Handlers and metrics are
// keyed by Category, so one handler serves every Type of the family.
type Category string

// Type is one member of an event family.
type Type interface {
	Category() Category
	String() string
}

// Event is the unit travelling through the dispatcher. Implementations must be
// immutable once handed to EventHandler().Handle.
type Event interface {
	Type() Type
	Timestamp() time.Time
}

// Handler consumes a single event. Returning an error escalates per the
// dispatcher's failure policy.
type Handler interface {
	Handle(ctx context.Context, e Event) error
}

// HandlerFunc is an Adapter that lets a plain function satisfy Handler.
type HandlerFunc func(ctx context.Context, e Event) error

func (f HandlerFunc) Handle(ctx context.Context, e Event) error { return f(ctx, e) }

// BaseEvent is an embeddable Event implementation.
type BaseEvent struct {
	kind Type
	ts   time.Time
}

// NewEvent stamps an event of type t with the clock's current time.
// A nil clock falls back to xclock.Default().
func NewEvent(t Type, clk xclock.Clock) BaseEvent {
	if clk == nil {
		clk = xclock.Default()
	}
	return BaseEvent{kind: t, ts: clk.Now()}
}

func (e BaseEvent) Type() Type           { return e.kind }
func (e BaseEvent) Timestamp() time.Time { return e.ts }
func (e BaseEvent) String() string      { return qualifiedTypeName(e) }

// categoryOf returns the routing key for e, or "" when e carries no type.
func categoryOf(e Event) Category {
	if e == nil {
		return ""
	}
	t := e.Type()
	if t == nil {
		return ""
	}
	return t.Category()
}

func typeName(e Event) string {
	if e == nil || e.Type() == nil {
		return "<untyped>"
	}
	return e.Type().String()
}

// qualifiedTypeName renders e's type as "category.type".
func qualifiedTypeName(e Event) string {
	if e == nil || e.Type() == nil {
		return "<untyped>"
	}
	return string(e.Type().Category()) + "." + e.Type().String()
}

package xdispatch

import (
	"context"

	"github.com/trickstertwo/xclock"
	"github.com/trickstertwo/xlog"
)

// ctxKey is the base for all context keys in xdispatch (prevents collisions).
type ctxKey string

const (
	loggerCtxKey   ctxKey = "xdispatch:logger"
	clockCtxKey    ctxKey = "xdispatch:clock"
	categoryCtxKey ctxKey = "xdispatch:category"
)

// withValue stores v under key unless v is the zero value.
func withValue[T comparable](ctx context.Context, key ctxKey, v T) context.Context {
	var zero T
	if v == zero {
		return ctx
	}
	return context.WithValue(ctx, key, v)
}

func valueFrom[T comparable](ctx context.Context, key ctxKey) (T, bool) {
	var zero T
	v, ok := ctx.Value(key).(T)
	if !ok || v == zero {
		return zero, false
	}
	return v, true
}

func injectLogger(ctx context.Context, l *xlog.Logger) context.Context {
	return withValue(ctx, loggerCtxKey, l)
}

func injectClock(ctx context.Context, c xclock.Clock) context.Context {
	return withValue(ctx, clockCtxKey, c)
}

func injectCategory(ctx context.Context, c Category) context.Context {
	return withValue(ctx, categoryCtxKey, c)
}

// consumerContext is the base context of the consumer goroutine; every handler
// context derives from it.
func consumerContext(l *xlog.Logger, c xclock.Clock) context.Context {
	return injectClock(injectLogger(context.Background(), l), c)
}

// LoggerFromContext returns the dispatcher logger handed to a Handler.
func LoggerFromContext(ctx context.Context) (*xlog.Logger, bool) {
	return valueFrom[*xlog.Logger](ctx, loggerCtxKey)
}

// ClockFromContext returns the dispatcher clock handed to a Handler.
func ClockFromContext(ctx context.Context) (xclock.Clock, bool) {
	return valueFrom[xclock.Clock](ctx, clockCtxKey)
}

// CategoryFromContext returns the category an event was routed by.
func CategoryFromContext(ctx context.Context) (Category, bool) {
	return valueFrom[Category](ctx, categoryCtxKey)
}

// clockFrom returns the injected clock or xclock.Default().
func clockFrom(ctx context.Context) xclock.Clock {
	if c, ok := ClockFromContext(ctx); ok {
		return c
	}
	return xclock.Default()
}

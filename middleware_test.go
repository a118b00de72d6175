package xdispatch

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/trickstertwo/xlog"
)

// TestChain_Order tests that the first middleware is the outermost.
func TestChain_Order(t *testing.T) {
	var order []string
	mw := func(name string) Middleware {
		return func(next Handler) Handler {
			return HandlerFunc(func(ctx context.Context, e Event) error {
				order = append(order, name)
				return next.Handle(ctx, e)
			})
		}
	}
	h := Chain(HandlerFunc(func(context.Context, Event) error {
		order = append(order, "handler")
		return nil
	}), mw("a"), nil, mw("b"))

	require.NoError(t, h.Handle(context.Background(), newTestEvent(jobCreated, 0)))
	assert.Equal(t, []string{"a", "b", "handler"}, order)
}

// TestRecoveryMiddleware tests that panics become ErrHandlerPanic.
func TestRecoveryMiddleware(t *testing.T) {
	h := RecoveryMiddleware()(HandlerFunc(func(context.Context, Event) error { panic("boom") }))
	err := h.Handle(context.Background(), newTestEvent(jobCreated, 0))
	assert.ErrorIs(t, err, ErrHandlerPanic)
	assert.Contains(t, err.Error(), "boom")
}

// TestTimeoutMiddleware tests bounding a slow handler.
func TestTimeoutMiddleware(t *testing.T) {
	slow := HandlerFunc(func(ctx context.Context, e Event) error {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(time.Second):
			return nil
		}
	})

	err := TimeoutMiddleware(20*time.Millisecond)(slow).Handle(context.Background(), newTestEvent(jobCreated, 0))
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	boom := errors.New("boom")
	fast := HandlerFunc(func(context.Context, Event) error { return boom })
	assert.ErrorIs(t, TimeoutMiddleware(time.Second)(fast).Handle(context.Background(), newTestEvent(jobCreated, 0)), boom)

	panicky := HandlerFunc(func(context.Context, Event) error { panic("late") })
	assert.ErrorIs(t, TimeoutMiddleware(time.Second)(panicky).Handle(context.Background(), newTestEvent(jobCreated, 0)), ErrHandlerPanic)
}

// TestTimeoutMiddleware_Disabled tests that a non-positive timeout is a pass-through.
func TestTimeoutMiddleware_Disabled(t *testing.T) {
	called := false
	h := TimeoutMiddleware(0)(HandlerFunc(func(ctx context.Context, e Event) error {
		_, hasDeadline := ctx.Deadline()
		assert.False(t, hasDeadline)
		called = true
		return nil
	}))
	require.NoError(t, h.Handle(context.Background(), newTestEvent(jobCreated, 0)))
	assert.True(t, called)
}

// TestLoggingMiddleware tests that errors pass through unchanged.
func TestLoggingMiddleware(t *testing.T) {
	boom := errors.New("boom")
	h := LoggingMiddleware(xlog.Default())(HandlerFunc(func(context.Context, Event) error { return boom }))
	assert.ErrorIs(t, h.Handle(context.Background(), newTestEvent(jobCreated, 0)), boom)
}

// TestContextHelpers tests logger, clock and category injection.
func TestContextHelpers(t *testing.T) {
	ctx := context.Background()
	_, ok := LoggerFromContext(ctx)
	assert.False(t, ok)
	_, ok = CategoryFromContext(ctx)
	assert.False(t, ok)

	ctx = injectCategory(injectLogger(ctx, xlog.Default()), "job")
	l, ok := LoggerFromContext(ctx)
	assert.True(t, ok)
	assert.NotNil(t, l)
	c, ok := CategoryFromContext(ctx)
	assert.True(t, ok)
	assert.Equal(t, Category("job"), c)

	assert.Equal(t, ctx, injectLogger(ctx, nil))
	assert.Equal(t, ctx, injectClock(ctx, nil))
}

// TestBaseEvent tests type and timestamp accessors.
func TestBaseEvent(t *testing.T) {
	e := NewEvent(jobCreated, nil)
	assert.Equal(t, jobCreated, e.Type())
	assert.False(t, e.Timestamp().IsZero())
	assert.Equal(t, "job.created", e.String())
	assert.Equal(t, "<untyped>", BaseEvent{}.String())

	assert.Equal(t, Category("job"), categoryOf(e))
	assert.Equal(t, Category(""), categoryOf(nil))
	assert.Equal(t, "created", typeName(e))
}

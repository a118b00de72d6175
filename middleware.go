package xdispatch

import (
	"context"
	"time"

	"github.com/trickstertwo/xlog"
)

// Middleware composes processing concerns around a Handler.
type Middleware func(next Handler) Handler

// RecoveryMiddleware turns a handler panic into an error wrapping ErrHandlerPanic.
// The dispatcher always installs it innermost, around the route.
func RecoveryMiddleware() Middleware {
	return func(next Handler) Handler {
		return HandlerFunc(func(ctx context.Context, e Event) error {
			return handleRecovered(ctx, next, e)
		})
	}
}

// TimeoutMiddleware gives each event at most d. On expiry the consumer moves on
// with context.DeadlineExceeded; the handler keeps its cancelled context and
// finishes in the background. Non-positive d disables the bound.
//
// A timed-out handler may still be running while the consumer dispatches the
// next event, so handlers behind this middleware lose the one-at-a-time
// ordering guarantee and must tolerate overlapping calls. Handlers that honour
// ctx cancellation promptly keep the overlap short.
func TimeoutMiddleware(d time.Duration) Middleware {
	return func(next Handler) Handler {
		if d <= 0 {
			return next
		}
		return HandlerFunc(func(ctx context.Context, e Event) error {
			tctx, cancel := context.WithTimeout(ctx, d)
			defer cancel()

			done := make(chan error, 1)
			go func() { done <- handleRecovered(tctx, next, e) }()

			select {
			case err := <-done:
				return err
			case <-tctx.Done():
				return tctx.Err()
			}
		})
	}
}

// LoggingMiddleware logs every dispatched event at debug level, with its
// duration and outcome.
func LoggingMiddleware(l *xlog.Logger) Middleware {
	return func(next Handler) Handler {
		return HandlerFunc(func(ctx context.Context, e Event) error {
			clk := clockFrom(ctx)
			start := clk.Now()
			err := next.Handle(ctx, e)
			l.Debug().
				Str("event", qualifiedTypeName(e)).
				Dur("dur", clk.Since(start)).
				Err(err).
				Msg("handler done")
			return err
		})
	}
}

// Chain wraps h so that mws[0] runs first. Nil entries are skipped.
func Chain(h Handler, mws ...Middleware) Handler {
	for i := len(mws) - 1; i >= 0; i-- {
		if mws[i] != nil {
			h = mws[i](h)
		}
	}
	return h
}

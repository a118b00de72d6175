package xdispatch

import (
	"errors"
	"fmt"
)

var (
	ErrNoHandler          = errors.New("xdispatch: no handler registered for category")
	ErrNilHandler         = errors.New("xdispatch: handler must not be nil")
	ErrEnqueueInterrupted = errors.New("xdispatch: enqueue interrupted")
	ErrInvalidTransition  = errors.New("xdispatch: invalid service state transition")
	ErrHandlerPanic       = errors.New("xdispatch: handler panic")
	ErrPoolShutdown       = errors.New("xdispatch: detail pool is shut down")
)

// ServiceError wraps a failure raised by a lifecycle hook.
type ServiceError struct {
	Service string
	Op      string
	State   State
	Err     error
}

func (e *ServiceError) Error() string {
	return fmt.Sprintf("service %s: %s failed in state %s: %v", e.Service, e.Op, e.State, e.Err)
}

func (e *ServiceError) Unwrap() error { return e.Err }

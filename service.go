package xdispatch

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/trickstertwo/xclock"
	"github.com/trickstertwo/xlog"
)

// State enumerates the lifecycle of a Service.
type State int32

const (
	StateNotInited State = iota
	StateInited
	StateStarted
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateNotInited:
		return "NOTINITED"
	case StateInited:
		return "INITED"
	case StateStarted:
		return "STARTED"
	case StateStopped:
		return "STOPPED"
	default:
		return "UNKNOWN"
	}
}

// Hooks are invoked at most once each, on the transition into their state.
type Hooks struct {
	OnInit  func(ctx context.Context) error
	OnStart func(ctx context.Context) error
	OnStop  func(ctx context.Context) error
}

// Lifecycle is the surface shared by every component driven by a Service.
type Lifecycle interface {
	Name() string
	State() State
	Init(ctx context.Context) error
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
}

// StateListener is notified after a Service enters a new state.
type StateListener interface {
	OnStateChange(service string, s State)
}

// StateListenerFunc is an Adapter that lets a plain function satisfy StateListener.
type StateListenerFunc func(service string, s State)

func (f StateListenerFunc) OnStateChange(service string, s State) { f(service, s) }

// Service is the NOTINITED -> INITED -> STARTED -> STOPPED state machine.
// It is meant to be owned as a field by the component it drives.
type Service struct {
	name   string
	hooks  Hooks
	logger *xlog.Logger
	clock  xclock.Clock

	// stateMu serializes transitions, hooks included.
	stateMu   sync.Mutex
	state     atomic.Int32
	startTime atomic.Int64

	failMu       sync.Mutex
	failureCause error
	failureState State

	terminated    chan struct{}
	terminateOnce sync.Once

	blockersMu sync.Mutex
	blockers   map[string]string

	listenersMu sync.RWMutex
	listeners   []StateListener
}

var _ Lifecycle = (*Service)(nil)

// NewService returns a Service in StateNotInited. Nil logger or clock fall back
// to the xlog and xclock defaults.
func NewService(name string, hooks Hooks, logger *xlog.Logger, clock xclock.Clock) *Service {
	if logger == nil {
		logger = xlog.Default()
	}
	if clock == nil {
		clock = xclock.Default()
	}
	return &Service{
		name:       name,
		hooks:      hooks,
		logger:     logger,
		clock:      clock,
		terminated: make(chan struct{}),
		blockers:   make(map[string]string),
	}
}

func (s *Service) Name() string { return s.name }

func (s *Service) State() State { return State(s.state.Load()) }

func (s *Service) IsInState(expected State) bool { return s.State() == expected }

// StartTime returns when Start last ran its hook, or the zero time.
func (s *Service) StartTime() time.Time {
	ns := s.startTime.Load()
	if ns == 0 {
		return time.Time{}
	}
	return time.Unix(0, ns)
}

// Init moves NOTINITED -> INITED and runs OnInit. No-op in any later state.
func (s *Service) Init(ctx context.Context) error {
	if s.State() >= StateInited {
		return nil
	}
	s.stateMu.Lock()
	defer s.stateMu.Unlock()

	if s.State() >= StateInited {
		return nil
	}
	s.enterState(StateInited)
	return s.runHook(ctx, "init", s.hooks.OnInit)
}

// Start moves INITED -> STARTED and runs OnStart. No-op once started or stopped.
func (s *Service) Start(ctx context.Context) error {
	if s.State() >= StateStarted {
		return nil
	}
	s.stateMu.Lock()
	defer s.stateMu.Unlock()

	cur := s.State()
	if cur >= StateStarted {
		return nil
	}
	if cur != StateInited {
		return &ServiceError{Service: s.name, Op: "start", State: cur, Err: ErrInvalidTransition}
	}
	s.enterState(StateStarted)
	s.startTime.Store(s.clock.Now().UnixNano())
	return s.runHook(ctx, "start", s.hooks.OnStart)
}

// Stop enters STOPPED from any state and runs OnStop, even when earlier hooks
// failed. Waiters in WaitForServiceToStop are released whatever the outcome.
// A caller that finds the service already stopping waits for the first Stop
// to finish, or for ctx.
func (s *Service) Stop(ctx context.Context) error {
	if s.IsInState(StateStopped) {
		return s.awaitTerminated(ctx)
	}
	s.stateMu.Lock()
	defer s.stateMu.Unlock()

	if s.IsInState(StateStopped) {
		s.logger.Debug().Str("service", s.name).Msg("ignoring re-entrant call to stop")
		return nil
	}
	s.enterState(StateStopped)
	defer s.terminateOnce.Do(func() { close(s.terminated) })
	return s.runHook(ctx, "stop", s.hooks.OnStop)
}

func (s *Service) awaitTerminated(ctx context.Context) error {
	select {
	case <-s.terminated:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close is Stop with a background context.
func (s *Service) Close() error {
	return s.Stop(context.Background())
}

// WaitForServiceToStop blocks until Stop has completed or timeout elapses and
// reports whether the service terminated. A non-positive timeout waits forever.
func (s *Service) WaitForServiceToStop(timeout time.Duration) bool {
	if timeout <= 0 {
		<-s.terminated
		return true
	}
	t := time.NewTimer(timeout)
	defer t.Stop()
	select {
	case <-s.terminated:
		return true
	case <-t.C:
		return false
	}
}

// FailureCause returns the first recorded hook failure, if any.
func (s *Service) FailureCause() error {
	s.failMu.Lock()
	defer s.failMu.Unlock()
	return s.failureCause
}

// FailureState returns the state the service was in when FailureCause was recorded.
func (s *Service) FailureState() (State, bool) {
	s.failMu.Lock()
	defer s.failMu.Unlock()
	return s.failureState, s.failureCause != nil
}

// PutBlocker records a named reason the service cannot make progress.
func (s *Service) PutBlocker(name, details string) {
	s.blockersMu.Lock()
	s.blockers[name] = details
	s.blockersMu.Unlock()
}

func (s *Service) RemoveBlocker(name string) {
	s.blockersMu.Lock()
	delete(s.blockers, name)
	s.blockersMu.Unlock()
}

// Blockers returns a snapshot of the current blockers.
func (s *Service) Blockers() map[string]string {
	s.blockersMu.Lock()
	defer s.blockersMu.Unlock()
	out := make(map[string]string, len(s.blockers))
	for k, v := range s.blockers {
		out[k] = v
	}
	return out
}

// RegisterListener adds l unless it is already registered.
func (s *Service) RegisterListener(l StateListener) {
	if l == nil {
		return
	}
	s.listenersMu.Lock()
	defer s.listenersMu.Unlock()
	for _, cur := range s.listeners {
		if cur == l {
			return
		}
	}
	s.listeners = append(s.listeners, l)
}

func (s *Service) UnregisterListener(l StateListener) {
	s.listenersMu.Lock()
	defer s.listenersMu.Unlock()
	for i, cur := range s.listeners {
		if cur == l {
			s.listeners = append(s.listeners[:i:i], s.listeners[i+1:]...)
			return
		}
	}
}

func (s *Service) String() string {
	return "Service " + s.name + " in state " + s.State().String()
}

func (s *Service) enterState(next State) {
	old := State(s.state.Swap(int32(next)))
	if old == next {
		return
	}
	s.logger.Debug().Str("service", s.name).Str("state", next.String()).Msg("service entered state")

	s.listenersMu.RLock()
	ls := make([]StateListener, len(s.listeners))
	copy(ls, s.listeners)
	s.listenersMu.RUnlock()
	for _, l := range ls {
		l.OnStateChange(s.name, next)
	}
}

func (s *Service) runHook(ctx context.Context, op string, hook func(context.Context) error) error {
	if hook == nil {
		return nil
	}
	if err := hook(ctx); err != nil {
		s.noteFailure(err)
		return &ServiceError{Service: s.name, Op: op, State: s.State(), Err: err}
	}
	return nil
}

// noteFailure keeps only the first failure.
func (s *Service) noteFailure(err error) {
	if err == nil {
		return
	}
	s.failMu.Lock()
	defer s.failMu.Unlock()
	if s.failureCause != nil {
		return
	}
	s.failureCause = err
	s.failureState = s.State()
	s.logger.Info().Err(err).Str("service", s.name).Str("state", s.failureState.String()).Msg("service failed")
}

// StopQuietly stops l and logs, rather than returns, any failure.
func StopQuietly(l Lifecycle, logger *xlog.Logger) error {
	if l == nil {
		return nil
	}
	err := l.Stop(context.Background())
	if err != nil && logger != nil {
		logger.Warn().Err(err).Str("service", l.Name()).Msg("error stopping service")
	}
	return err
}

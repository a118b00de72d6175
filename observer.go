package xdispatch

import (
	"sort"
	"strconv"
	"time"

	"github.com/trickstertwo/xlog"
)

// NoticeType enumerates the observational signals a dispatcher emits.
type NoticeType string

const (
	NoticeQueueSize      NoticeType = "queue_size"
	NoticeQueueDetails   NoticeType = "queue_details"
	NoticeLowCapacity    NoticeType = "low_capacity"
	NoticeLatestDispatch NoticeType = "latest_dispatch"
	NoticeDispatchError  NoticeType = "dispatch_error"
	NoticeInterrupted    NoticeType = "interrupted"
	NoticeDrainStarted   NoticeType = "drain_started"
	NoticeDrainWaiting   NoticeType = "drain_waiting"
	NoticeDrainTimeout   NoticeType = "drain_timeout"
	NoticeDrained        NoticeType = "drained"
	NoticeExiting        NoticeType = "exiting"
	NoticeRegistered     NoticeType = "registered"
)

// Notice carries dispatcher telemetry to observers. Notices never influence delivery.
type Notice struct {
	Type       NoticeType
	Dispatcher string
	Category   Category
	EventType  string
	Handler    string
	Listeners  int
	QueueSize  int
	Remaining  int
	Counts     map[string]int64
	Duration   time.Duration
	Err        error
}

// Observer receives dispatcher notices. Notices are delivered synchronously on
// the emitting goroutine, so implementations must not block.
type Observer interface {
	OnNotice(n Notice)
}

// ObserverFunc is an Adapter that lets a plain function satisfy Observer.
type ObserverFunc func(n Notice)

func (f ObserverFunc) OnNotice(n Notice) { f(n) }

// LoggingObserver is an Adapter that emits notices via xlog.
type LoggingObserver struct {
	Logger *xlog.Logger
}

func (o LoggingObserver) OnNotice(n Notice) {
	if o.Logger == nil {
		return
	}
	l := o.Logger
	switch n.Type {
	case NoticeQueueSize:
		l.Info().Str("size", strconv.Itoa(n.QueueSize)).Msg("size of event-queue is " + strconv.Itoa(n.QueueSize))
	case NoticeQueueDetails:
		keys := make([]string, 0, len(n.Counts))
		for k := range n.Counts {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			l.Info().
				Str("event_type", k).
				Str("count", strconv.FormatInt(n.Counts[k], 10)).
				Msg("event type: " + k + ", event record counter: " + strconv.FormatInt(n.Counts[k], 10))
		}
	case NoticeLowCapacity:
		l.Warn().Str("remaining", strconv.Itoa(n.Remaining)).Msg("very low remaining capacity in the event-queue: " + strconv.Itoa(n.Remaining))
	case NoticeLatestDispatch:
		l.Info().Str("event_type", n.EventType).Msg("latest dispatch event type: " + n.EventType)
	case NoticeDispatchError:
		l.Error().Err(n.Err).Str("category", string(n.Category)).Str("event_type", n.EventType).Msg("FATAL: error in dispatcher loop")
	case NoticeInterrupted:
		l.Warn().Err(n.Err).Msg("dispatcher interrupted")
	case NoticeDrainStarted:
		l.Info().Msg("dispatcher is draining to stop, ignoring any new events")
	case NoticeDrainWaiting:
		l.Info().Str("size", strconv.Itoa(n.QueueSize)).Msg("waiting for dispatcher to drain")
	case NoticeDrainTimeout:
		l.Warn().Str("size", strconv.Itoa(n.QueueSize)).Dur("timeout", n.Duration).Msg("dispatcher drain timed out, stopping anyway")
	case NoticeDrained:
		l.Info().Dur("waited", n.Duration).Msg("dispatcher drained")
	case NoticeExiting:
		l.Info().Msg("exiting after fatal dispatch error")
	case NoticeRegistered:
		l.Info().
			Str("category", string(n.Category)).
			Str("handler", n.Handler).
			Str("listeners", strconv.Itoa(n.Listeners)).
			Msg("registering " + n.Handler + " for " + string(n.Category))
	default:
		l.Debug().Str("type", string(n.Type)).Msg("xdispatch notice")
	}
}

package xdispatch

import (
	"context"
	"time"
)

// Stats defines observable telemetry for a dispatcher.
type Stats struct {
	Enqueued            uint64
	Discarded           uint64
	Dispatched          uint64
	Errors              uint64
	QueueSize           int
	RemainingCapacity   int
	AvgProcessingTimeMs float64
	Pool                PoolStats
}

// HealthStatus indicates dispatcher health for Kubernetes probes.
type HealthStatus struct {
	Status    string // "healthy", "degraded", "unhealthy"
	State     State
	Stats     Stats
	Blockers  map[string]string
	Timestamp time.Time
	Message   string
}

// Stats returns current dispatcher telemetry.
func (d *AsyncDispatcher) Stats() Stats {
	s := Stats{
		Enqueued:            d.stats.enqueued.Load(),
		Discarded:           d.stats.discarded.Load(),
		Dispatched:          d.stats.dispatched.Load(),
		Errors:              d.stats.errors.Load(),
		QueueSize:           d.queue.Size(),
		RemainingCapacity:   d.queue.RemainingCapacity(),
		AvgProcessingTimeMs: float64(d.stats.processingNs.Load()) / 1e6,
	}
	if p := d.pool.Load(); p != nil {
		s.Pool = p.Stats()
	}
	return s
}

// Health reports unhealthy unless started and running, degraded while the
// service has blockers or after dispatch errors, healthy otherwise.
func (d *AsyncDispatcher) Health(ctx context.Context) HealthStatus {
	hs := HealthStatus{
		State:     d.State(),
		Stats:     d.Stats(),
		Blockers:  d.service.Blockers(),
		Timestamp: d.clock.Now(),
	}

	switch {
	case hs.State == StateStopped || d.stopped.Load():
		hs.Status = "unhealthy"
		hs.Message = "dispatcher is stopped"
	case hs.State != StateStarted:
		hs.Status = "unhealthy"
		hs.Message = "dispatcher is not started"
	case len(hs.Blockers) > 0 || d.blockNewEvents.Load():
		hs.Status = "degraded"
		hs.Message = "dispatcher is blocked"
	case hs.Stats.Errors > 0:
		hs.Status = "degraded"
		hs.Message = "dispatch errors recorded"
	default:
		hs.Status = "healthy"
	}
	return hs
}

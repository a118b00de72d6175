package xdispatch

import "time"

type jobType string

func (jobType) Category() Category { return "job" }
func (t jobType) String() string   { return string(t) }

type taskType string

func (taskType) Category() Category { return "task" }
func (t taskType) String() string   { return string(t) }

const (
	jobCreated jobType  = "created"
	jobDone    jobType  = "done"
	taskQueued taskType = "queued"
)

type testEvent struct {
	BaseEvent
	seq int
}

func newTestEvent(t Type, seq int) testEvent {
	return testEvent{BaseEvent: BaseEvent{kind: t, ts: time.Now()}, seq: seq}
}

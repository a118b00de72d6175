package metrics

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/trickstertwo/xdispatch"
)

type jobType string

func (jobType) Category() xdispatch.Category { return "job" }
func (t jobType) String() string             { return string(t) }

type taskType string

func (taskType) Category() xdispatch.Category { return "task" }
func (t taskType) String() string             { return string(t) }

const (
	jobCreated jobType = "created"
	jobDone    jobType = "done"
	jobFailed  jobType = "failed"
)

// TestSimple_Increment tests counting and time accumulation per type.
func TestSimple_Increment(t *testing.T) {
	s := NewSimple("job", jobCreated, jobDone)
	s.Increment(jobCreated, 100)
	s.Increment(jobCreated, 250)
	s.Increment(jobDone, 1)

	assert.Equal(t, int64(2), s.Get(jobCreated))
	assert.Equal(t, int64(350), s.TotalProcessingTime(jobCreated))
	assert.Equal(t, int64(1), s.Get(jobDone))
	assert.Equal(t, xdispatch.Category("job"), s.Category())
	assert.Equal(t, []xdispatch.Type{jobCreated, jobDone}, s.Types())
}

// TestSimple_IgnoresUnknown tests undeclared and foreign-category types.
func TestSimple_IgnoresUnknown(t *testing.T) {
	s := NewSimple("job", jobCreated)
	s.Increment(jobFailed, 10)
	s.Increment(taskType("created"), 10)
	s.Increment(nil, 10)

	assert.Zero(t, s.Get(jobFailed))
	assert.Zero(t, s.Get(taskType("created")))
	assert.Zero(t, s.TotalProcessingTime(jobFailed))
	assert.Zero(t, s.Get(jobCreated))
}

// TestSimple_Concurrent tests lock-free increments from many goroutines.
func TestSimple_Concurrent(t *testing.T) {
	s := NewSimple("job", jobCreated)
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 1000; j++ {
				s.Increment(jobCreated, 2)
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, int64(8000), s.Get(jobCreated))
	assert.Equal(t, int64(16000), s.TotalProcessingTime(jobCreated))
}

// Package metrics provides in-process EventTypeMetrics collaborators.
package metrics

import (
	"sync/atomic"

	"github.com/trickstertwo/xdispatch"
)

type counter struct {
	count  atomic.Int64
	timeUs atomic.Int64
}

// Simple counts events and sums processing time per declared type using
// atomics. Types not declared at construction are ignored.
type Simple struct {
	category xdispatch.Category
	types    []xdispatch.Type
	counters map[string]*counter
}

var _ xdispatch.EventTypeMetrics = (*Simple)(nil)

// NewSimple tracks the given types of category.
func NewSimple(category xdispatch.Category, types ...xdispatch.Type) *Simple {
	s := &Simple{
		category: category,
		types:    append([]xdispatch.Type(nil), types...),
		counters: make(map[string]*counter, len(types)),
	}
	for _, t := range types {
		if t == nil || t.Category() != category {
			continue
		}
		s.counters[t.String()] = &counter{}
	}
	return s
}

func (s *Simple) Category() xdispatch.Category { return s.category }

// Types returns the declared types in declaration order.
func (s *Simple) Types() []xdispatch.Type {
	return append([]xdispatch.Type(nil), s.types...)
}

func (s *Simple) lookup(t xdispatch.Type) *counter {
	if t == nil || t.Category() != s.category {
		return nil
	}
	return s.counters[t.String()]
}

func (s *Simple) Increment(t xdispatch.Type, processingTimeUs int64) {
	c := s.lookup(t)
	if c == nil {
		return
	}
	c.count.Add(1)
	c.timeUs.Add(processingTimeUs)
}

// Get returns how many events of t were dispatched.
func (s *Simple) Get(t xdispatch.Type) int64 {
	c := s.lookup(t)
	if c == nil {
		return 0
	}
	return c.count.Load()
}

// TotalProcessingTime returns the summed dispatch time of t in microseconds.
func (s *Simple) TotalProcessingTime(t xdispatch.Type) int64 {
	c := s.lookup(t)
	if c == nil {
		return 0
	}
	return c.timeUs.Load()
}

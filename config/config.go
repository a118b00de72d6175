package config

import (
	"strconv"
	"strings"
	"sync"
)

const (
	// PrintEventsInfoThreshold is the queue size interval between per-type queue dumps.
	PrintEventsInfoThreshold        = "dispatcher.print-events-info.threshold"
	DefaultPrintEventsInfoThreshold = 5000

	// DrainEventsTimeout bounds, in milliseconds, how long a draining stop waits.
	DrainEventsTimeout        = "dispatcher.drain-events.timeout"
	DefaultDrainEventsTimeout = int64(300_000)
)

// Source answers typed key lookups, falling back to the supplied default when
// a key is absent or its value does not parse.
type Source interface {
	GetInt(name string, defaultValue int) int
	GetInt64(name string, defaultValue int64) int64
}

// Configuration is a concurrency-safe string property set.
type Configuration struct {
	mu    sync.RWMutex
	props map[string]string
}

var _ Source = (*Configuration)(nil)

// New returns an empty Configuration; every lookup yields its default.
func New() *Configuration {
	return &Configuration{props: make(map[string]string)}
}

func (c *Configuration) Get(name string) (string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	v, ok := c.props[strings.TrimSpace(name)]
	return v, ok
}

func (c *Configuration) GetTrimmed(name string) (string, bool) {
	v, ok := c.Get(name)
	if !ok {
		return "", false
	}
	return strings.TrimSpace(v), true
}

func (c *Configuration) Set(name, value string) {
	c.mu.Lock()
	c.props[strings.TrimSpace(name)] = value
	c.mu.Unlock()
}

func (c *Configuration) SetInt(name string, value int) {
	c.Set(name, strconv.Itoa(value))
}

func (c *Configuration) SetInt64(name string, value int64) {
	c.Set(name, strconv.FormatInt(value, 10))
}

func (c *Configuration) GetInt(name string, defaultValue int) int {
	v, ok := c.GetTrimmed(name)
	if !ok {
		return defaultValue
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return defaultValue
	}
	return n
}

func (c *Configuration) GetInt64(name string, defaultValue int64) int64 {
	v, ok := c.GetTrimmed(name)
	if !ok {
		return defaultValue
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return defaultValue
	}
	return n
}

// Keys returns the configured property names.
func (c *Configuration) Keys() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]string, 0, len(c.props))
	for k := range c.props {
		out = append(out, k)
	}
	return out
}

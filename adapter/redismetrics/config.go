package redismetrics

import (
	"fmt"
	"time"
)

// Config for the Redis metrics collaborator.
type Config struct {
	// Connection
	Addr          string
	Username      string
	Password      string
	DB            int
	TLS           bool
	TLSServerName string

	// KeyPrefix is prepended to the category to form the hash key.
	KeyPrefix string
	// Timeout bounds each pipelined increment.
	Timeout time.Duration
}

// Defaults returns a Config suitable for a local Redis.
func Defaults() Config {
	return Config{
		Addr:      "127.0.0.1:6379",
		KeyPrefix: "xdispatch:metrics",
		Timeout:   50 * time.Millisecond,
	}
}

// Validate checks Config for production readiness.
func (c Config) Validate() error {
	if c.Addr == "" {
		return fmt.Errorf("config: addr required")
	}
	if c.KeyPrefix == "" {
		return fmt.Errorf("config: key_prefix required")
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("config: timeout must be > 0, got %v", c.Timeout)
	}
	return nil
}

// ConfigFromMap safely converts generic map to Config with defaults.
func ConfigFromMap(m map[string]any) Config {
	c := Defaults()

	if v, ok := m["addr"].(string); ok && v != "" {
		c.Addr = v
	}
	if v, ok := m["username"].(string); ok {
		c.Username = v
	}
	if v, ok := m["password"].(string); ok {
		c.Password = v
	}
	if v, ok := m["db"].(int); ok {
		c.DB = v
	}
	if v, ok := m["tls"].(bool); ok {
		c.TLS = v
	}
	if v, ok := m["tls_server_name"].(string); ok {
		c.TLSServerName = v
	}
	if v, ok := m["key_prefix"].(string); ok && v != "" {
		c.KeyPrefix = v
	}
	switch v := m["timeout"].(type) {
	case time.Duration:
		if v > 0 {
			c.Timeout = v
		}
	case string:
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			c.Timeout = d
		}
	}

	return c
}

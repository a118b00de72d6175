package redismetrics

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/trickstertwo/xlog"

	"github.com/trickstertwo/xdispatch"
	"github.com/trickstertwo/xdispatch/metrics"
)

const (
	fieldCount = ":count"
	fieldTime  = ":processing_time_us"
)

// Metrics mirrors per-type counters into a Redis hash.
type Metrics struct {
	client  redis.UniversalClient
	key     string
	timeout time.Duration
	local   *metrics.Simple
	logger  *xlog.Logger

	writeErrors atomic.Uint64
}

var _ xdispatch.EventTypeMetrics = (*Metrics)(nil)

// Option configures Metrics.
type Option func(*Metrics)

// WithLogger reports failed writes through l.
func WithLogger(l *xlog.Logger) Option {
	return func(m *Metrics) { m.logger = l }
}

// NewClient opens a client for cfg and verifies it with a PING.
func NewClient(cfg Config) (*redis.Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	opts := &redis.Options{
		Addr:         cfg.Addr,
		Username:     cfg.Username,
		Password:     cfg.Password,
		DB:           cfg.DB,
		MaxRetries:   1,
		PoolSize:     4,
		MinIdleConns: 1,
	}
	if cfg.TLS {
		opts.TLSConfig = &tls.Config{
			MinVersion: tls.VersionTLS12,
			ServerName: cfg.TLSServerName,
		}
	}

	client := redis.NewClient(opts)
	if err := ping(client); err != nil {
		_ = client.Close()
		return nil, err
	}
	return client, nil
}

// New tracks the given types of category in Redis through client.
func New(client redis.UniversalClient, cfg Config, category xdispatch.Category, types ...xdispatch.Type) *Metrics {
	return NewWithOptions(client, cfg, category, types)
}

// NewWithOptions is New with options.
func NewWithOptions(client redis.UniversalClient, cfg Config, category xdispatch.Category, types []xdispatch.Type, opts ...Option) *Metrics {
	if cfg.KeyPrefix == "" {
		cfg.KeyPrefix = Defaults().KeyPrefix
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = Defaults().Timeout
	}
	m := &Metrics{
		client:  client,
		key:     cfg.KeyPrefix + ":" + string(category),
		timeout: cfg.Timeout,
		local:   metrics.NewSimple(category, types...),
		logger:  xlog.Default(),
	}
	for _, o := range opts {
		if o != nil {
			o(m)
		}
	}
	return m
}

// Key returns the Redis hash this collaborator writes to.
func (m *Metrics) Key() string { return m.key }

func (m *Metrics) Increment(t xdispatch.Type, processingTimeUs int64) {
	if t == nil || t.Category() != m.local.Category() {
		return
	}
	m.local.Increment(t, processingTimeUs)

	ctx, cancel := context.WithTimeout(context.Background(), m.timeout)
	defer cancel()

	pipe := m.client.Pipeline()
	pipe.HIncrBy(ctx, m.key, t.String()+fieldCount, 1)
	pipe.HIncrBy(ctx, m.key, t.String()+fieldTime, processingTimeUs)
	if _, err := pipe.Exec(ctx); err != nil {
		m.writeErrors.Add(1)
		if m.logger != nil {
			m.logger.Warn().Err(err).Str("key", m.key).Str("event_type", t.String()).Msg("redismetrics: increment failed")
		}
	}
}

// Get returns the in-process count of t.
func (m *Metrics) Get(t xdispatch.Type) int64 { return m.local.Get(t) }

// TotalProcessingTime returns the in-process summed dispatch time of t in microseconds.
func (m *Metrics) TotalProcessingTime(t xdispatch.Type) int64 { return m.local.TotalProcessingTime(t) }

// WriteErrors returns how many increments failed to reach Redis.
func (m *Metrics) WriteErrors() uint64 { return m.writeErrors.Load() }

// Snapshot reads the stored counters back from Redis, keyed by type.
func (m *Metrics) Snapshot(ctx context.Context) (map[string]Counts, error) {
	raw, err := m.client.HGetAll(ctx, m.key).Result()
	if err != nil {
		return nil, fmt.Errorf("redismetrics: read %s: %w", m.key, err)
	}
	out := make(map[string]Counts)
	for field, val := range raw {
		n, err := strconv.ParseInt(val, 10, 64)
		if err != nil {
			continue
		}
		switch {
		case strings.HasSuffix(field, fieldCount):
			name := strings.TrimSuffix(field, fieldCount)
			c := out[name]
			c.Count = n
			out[name] = c
		case strings.HasSuffix(field, fieldTime):
			name := strings.TrimSuffix(field, fieldTime)
			c := out[name]
			c.ProcessingTimeUs = n
			out[name] = c
		}
	}
	return out, nil
}

// Reset deletes the stored counters.
func (m *Metrics) Reset(ctx context.Context) error {
	return m.client.Del(ctx, m.key).Err()
}

// Counts is the stored state of one event type.
type Counts struct {
	Count            int64
	ProcessingTimeUs int64
}

func ping(c *redis.Client) error {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	res, err := c.Ping(ctx).Result()
	if err != nil {
		var netErr net.Error
		if errors.As(err, &netErr) && netErr.Timeout() {
			return fmt.Errorf("redis ping timeout: %w", err)
		}
		return err
	}
	if strings.ToUpper(res) != "PONG" {
		return fmt.Errorf("unexpected redis ping result: %s", res)
	}
	return nil
}

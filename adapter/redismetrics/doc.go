// Package redismetrics provides a Redis-backed EventTypeMetrics for xdispatch.
//
// Each dispatched event issues one pipelined round trip that increments two
// fields of the hash "<key_prefix>:<category>":
//
//	<type>:count               number of dispatched events
//	<type>:processing_time_us  summed dispatch time in microseconds
//
// The round trip is bounded by Config.Timeout because Increment runs inline on
// the dispatcher's consumer goroutine. Failed writes are counted and logged,
// never retried. Get answers from in-process counters so it stays cheap.
//
// Minimal config keys for ConfigFromMap:
// - addr: "host:port" (default "127.0.0.1:6379")
// - username, password, db, tls, tls_server_name
// - key_prefix: hash key prefix (default "xdispatch:metrics")
// - timeout: per-increment timeout (default 50ms)
//
// Example:
//
//	client, _ := redismetrics.NewClient(redismetrics.Defaults())
//	m := redismetrics.New(client, redismetrics.Defaults(), "job", JobCreated, JobDone)
//	d.AddMetrics("job", m)
package redismetrics

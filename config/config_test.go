package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestConfiguration_Defaults tests that absent keys yield the supplied default.
func TestConfiguration_Defaults(t *testing.T) {
	c := New()
	assert.Equal(t, DefaultPrintEventsInfoThreshold, c.GetInt(PrintEventsInfoThreshold, DefaultPrintEventsInfoThreshold))
	assert.Equal(t, DefaultDrainEventsTimeout, c.GetInt64(DrainEventsTimeout, DefaultDrainEventsTimeout))
	assert.Empty(t, c.Keys())
}

// TestConfiguration_Unparsable tests that bad values fall back silently.
func TestConfiguration_Unparsable(t *testing.T) {
	c := New()
	c.Set(PrintEventsInfoThreshold, "lots")
	c.Set(DrainEventsTimeout, "12s")
	assert.Equal(t, 5000, c.GetInt(PrintEventsInfoThreshold, 5000))
	assert.Equal(t, int64(300_000), c.GetInt64(DrainEventsTimeout, 300_000))
}

// TestConfiguration_Trimmed tests whitespace handling of keys and values.
func TestConfiguration_Trimmed(t *testing.T) {
	c := New()
	c.Set(" "+PrintEventsInfoThreshold+" ", " 250 ")
	assert.Equal(t, 250, c.GetInt(PrintEventsInfoThreshold, 0))

	v, ok := c.Get(PrintEventsInfoThreshold)
	assert.True(t, ok)
	assert.Equal(t, " 250 ", v)

	c.SetInt64(DrainEventsTimeout, 42)
	assert.Equal(t, int64(42), c.GetInt64(DrainEventsTimeout, 0))
	assert.ElementsMatch(t, []string{PrintEventsInfoThreshold, DrainEventsTimeout}, c.Keys())
}

// TestFromMap tests flattening of nested maps and durations.
func TestFromMap(t *testing.T) {
	c := FromMap(map[string]any{
		"dispatcher": map[string]any{
			"print-events-info": map[string]any{"threshold": 100},
			"drain-events":      map[string]any{"timeout": 2 * time.Second},
		},
		"ignored": nil,
	})
	assert.Equal(t, 100, c.GetInt(PrintEventsInfoThreshold, 0))
	assert.Equal(t, int64(2000), c.GetInt64(DrainEventsTimeout, 0))
	_, ok := c.Get("ignored")
	assert.False(t, ok)
}

// TestFromYAML tests the YAML loader.
func TestFromYAML(t *testing.T) {
	c, err := FromYAML([]byte(`
dispatcher:
  print-events-info:
    threshold: 250
  drain-events:
    timeout: 1500
`))
	require.NoError(t, err)
	assert.Equal(t, 250, c.GetInt(PrintEventsInfoThreshold, 0))
	assert.Equal(t, int64(1500), c.GetInt64(DrainEventsTimeout, 0))

	_, err = FromYAML([]byte("dispatcher: [unterminated"))
	assert.Error(t, err)
}

// TestFromFile tests file loading by extension.
func TestFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "dispatcher.yaml")
	require.NoError(t, os.WriteFile(path, []byte("dispatcher.drain-events.timeout: 10\n"), 0o600))

	c, err := FromFile(path)
	require.NoError(t, err)
	assert.Equal(t, int64(10), c.GetInt64(DrainEventsTimeout, 0))

	_, err = FromFile(filepath.Join(dir, "dispatcher.toml"))
	assert.Error(t, err)

	other := filepath.Join(dir, "dispatcher.json")
	require.NoError(t, os.WriteFile(other, []byte("{}"), 0o600))
	_, err = FromFile(other)
	assert.ErrorContains(t, err, "unsupported config file extension")
}

// TestFromEnv tests environment and .env loading.
func TestFromEnv(t *testing.T) {
	t.Setenv("DISPATCHER_PRINT_EVENTS_INFO_THRESHOLD", "750")

	dir := t.TempDir()
	dotenv := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(dotenv, []byte("DISPATCHER_PRINT_EVENTS_INFO_THRESHOLD=1\nDISPATCHER_DRAIN_EVENTS_TIMEOUT=900\n"), 0o600))
	t.Cleanup(func() { _ = os.Unsetenv("DISPATCHER_DRAIN_EVENTS_TIMEOUT") })

	c, err := FromEnv(dotenv, filepath.Join(dir, "missing.env"))
	require.NoError(t, err)
	assert.Equal(t, 750, c.GetInt(PrintEventsInfoThreshold, 0))
	assert.Equal(t, int64(900), c.GetInt64(DrainEventsTimeout, 0))
}

// TestFromEnv_Empty tests that unset variables leave defaults in place.
func TestFromEnv_Empty(t *testing.T) {
	t.Setenv("DISPATCHER_PRINT_EVENTS_INFO_THRESHOLD", "")
	t.Setenv("DISPATCHER_DRAIN_EVENTS_TIMEOUT", "")

	c, err := FromEnv()
	require.NoError(t, err)
	assert.Equal(t, 5000, c.GetInt(PrintEventsInfoThreshold, 5000))
	assert.Empty(t, c.Keys())
}

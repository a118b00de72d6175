package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// FromMap builds a Configuration from a generic map. Nested maps are flattened
// with dots; durations are stored in milliseconds.
func FromMap(m map[string]any) *Configuration {
	c := New()
	flatten(c, "", m)
	return c
}

func flatten(c *Configuration, prefix string, m map[string]any) {
	for k, v := range m {
		key := k
		if prefix != "" {
			key = prefix + "." + k
		}
		switch val := v.(type) {
		case map[string]any:
			flatten(c, key, val)
		case time.Duration:
			c.SetInt64(key, val.Milliseconds())
		case nil:
		default:
			c.Set(key, fmt.Sprint(val))
		}
	}
}

// FromFile loads a YAML configuration file.
func FromFile(path string) (*Configuration, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		return FromYAML(data)
	default:
		return nil, fmt.Errorf("unsupported config file extension: %s", ext)
	}
}

// FromYAML parses YAML data into a Configuration.
func FromYAML(data []byte) (*Configuration, error) {
	var m map[string]any
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parse yaml: %w", err)
	}
	return FromMap(m), nil
}

// envConfig binds the dispatcher keys to environment variables. Values stay
// strings so that unparsable input falls back to defaults at lookup time.
type envConfig struct {
	PrintEventsInfoThreshold string `env:"DISPATCHER_PRINT_EVENTS_INFO_THRESHOLD"`
	DrainEventsTimeout       string `env:"DISPATCHER_DRAIN_EVENTS_TIMEOUT"`
}

// FromEnv reads the dispatcher keys from the environment after loading the
// given .env files. Missing .env files are ignored; variables already set in
// the environment win over .env content.
func FromEnv(dotenvFiles ...string) (*Configuration, error) {
	for _, f := range dotenvFiles {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("load %s: %w", f, err)
		}
	}

	var ec envConfig
	if err := env.Parse(&ec); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	c := New()
	if ec.PrintEventsInfoThreshold != "" {
		c.Set(PrintEventsInfoThreshold, ec.PrintEventsInfoThreshold)
	}
	if ec.DrainEventsTimeout != "" {
		c.Set(DrainEventsTimeout, ec.DrainEventsTimeout)
	}
	return c, nil
}

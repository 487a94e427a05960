// Package config resolves watson configuration from an ordered stack of
// layers (built-in defaults < global file < project file) and locates
// project roots on disk.
package config

import (
	"fmt"
	"maps"
	"strconv"
	"strings"
	"time"
)

// Keys recognised in global and project configuration.
const (
	KeyName         = "name"
	KeyScript       = "script"
	KeyIgnore       = "ignore"
	KeyBuildTimeout = "build_timeout"
	KeyEndpoint     = "endpoint"
)

// DefaultEndpoint is where the daemon listens unless configured otherwise.
const DefaultEndpoint = "localhost:8731"

// Keys whose scalar values are wrapped into one-element lists on lookup.
var wrapKeys = map[string]bool{
	KeyIgnore: true,
	KeyScript: true,
}

// Defaults returns a fresh copy of the built-in default layer.
func Defaults() map[string]any {
	return map[string]any{
		KeyIgnore:       []string{`.git/.*`, `.*\.pyc`},
		KeyBuildTimeout: 3,
		KeyEndpoint:     DefaultEndpoint,
	}
}

// Config is an immutable view over configuration layers, most specific first.
// The last layer is always the built-in defaults.
type Config struct {
	layers []map[string]any
}

// New creates a Config from the given layers (most specific first) followed
// by the built-in defaults.
func New(layers ...map[string]any) *Config {
	c := &Config{layers: make([]map[string]any, 0, len(layers)+1)}
	for _, layer := range layers {
		c.layers = append(c.layers, cloneLayer(layer))
	}
	c.layers = append(c.layers, Defaults())
	return c
}

// Push returns a new Config whose most specific layer is layer, followed by
// all of c's layers. c is not modified.
func (c *Config) Push(layer map[string]any) *Config {
	layers := make([]map[string]any, 0, len(c.layers)+1)
	layers = append(layers, cloneLayer(layer))
	layers = append(layers, c.layers...)
	return &Config{layers: layers}
}

// Replace returns a new Config with the most specific layer swapped for
// layer. Deeper layers are shared unchanged.
func (c *Config) Replace(layer map[string]any) *Config {
	layers := make([]map[string]any, len(c.layers))
	copy(layers, c.layers)
	layers[0] = cloneLayer(layer)
	return &Config{layers: layers}
}

// Depth returns the number of layers, including the defaults.
func (c *Config) Depth() int {
	return len(c.layers)
}

// Get returns the value of key from the most specific layer that defines it.
// Values of list keys (ignore, script) are always returned as []string.
func (c *Config) Get(key string) (any, error) {
	for _, layer := range c.layers {
		value, ok := layer[key]
		if !ok {
			continue
		}
		if wrapKeys[key] {
			return toStrings(key, value)
		}
		return value, nil
	}
	return nil, fmt.Errorf("%w: %s", ErrKeyNotFound, key)
}

// Strings returns a list-valued key as a string slice.
func (c *Config) Strings(key string) ([]string, error) {
	value, err := c.Get(key)
	if err != nil {
		return nil, err
	}
	if wrapKeys[key] {
		return value.([]string), nil
	}
	return toStrings(key, value)
}

// String returns a string-valued key.
func (c *Config) String(key string) (string, error) {
	value, err := c.Get(key)
	if err != nil {
		return "", err
	}
	s, ok := value.(string)
	if !ok {
		return "", fmt.Errorf("%w: %s must be a string, got %T", ErrConfigMalformed, key, value)
	}
	return s, nil
}

// Script returns the ordered shell commands of the build script.
func (c *Config) Script() ([]string, error) {
	return c.Strings(KeyScript)
}

// Ignore returns the ignore patterns.
func (c *Config) Ignore() ([]string, error) {
	return c.Strings(KeyIgnore)
}

// Name returns the configured project name, if any.
func (c *Config) Name() (string, bool) {
	name, err := c.String(KeyName)
	if err != nil || strings.TrimSpace(name) == "" {
		return "", false
	}
	return name, true
}

// Endpoint returns the daemon's RPC address.
func (c *Config) Endpoint() string {
	endpoint, err := c.String(KeyEndpoint)
	if err != nil || endpoint == "" {
		return DefaultEndpoint
	}
	return endpoint
}

// BuildTimeout returns the quiescence window before a build fires.
func (c *Config) BuildTimeout() (time.Duration, error) {
	value, err := c.Get(KeyBuildTimeout)
	if err != nil {
		return 0, err
	}
	d, err := toDuration(value)
	if err != nil {
		return 0, fmt.Errorf("%w: %s: %v", ErrConfigMalformed, KeyBuildTimeout, err)
	}
	if d < 0 {
		return 0, fmt.Errorf("%w: %s must not be negative", ErrConfigMalformed, KeyBuildTimeout)
	}
	return d, nil
}

// toStrings normalises the shapes YAML, TOML and JSON decoders produce for
// a string or list of strings.
func toStrings(key string, value any) ([]string, error) {
	switch v := value.(type) {
	case nil:
		return []string{}, nil
	case string:
		return []string{v}, nil
	case []string:
		out := make([]string, len(v))
		copy(out, v)
		return out, nil
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			s, ok := item.(string)
			if !ok {
				return nil, fmt.Errorf("%w: %s entries must be strings, got %T", ErrConfigMalformed, key, item)
			}
			out = append(out, s)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("%w: %s must be a string or a list of strings, got %T", ErrConfigMalformed, key, value)
	}
}

// toDuration accepts seconds as a number or a numeric string, or a Go
// duration string such as "500ms".
func toDuration(value any) (time.Duration, error) {
	switch v := value.(type) {
	case time.Duration:
		return v, nil
	case int:
		return time.Duration(v) * time.Second, nil
	case int64:
		return time.Duration(v) * time.Second, nil
	case uint64:
		return time.Duration(v) * time.Second, nil
	case float64:
		return time.Duration(v * float64(time.Second)), nil
	case string:
		if secs, err := strconv.ParseFloat(v, 64); err == nil {
			return time.Duration(secs * float64(time.Second)), nil
		}
		return time.ParseDuration(v)
	default:
		return 0, fmt.Errorf("unsupported type %T", value)
	}
}

func cloneLayer(layer map[string]any) map[string]any {
	if layer == nil {
		return map[string]any{}
	}
	return maps.Clone(layer)
}

// Package config implements the Configurator: process-wide, validated
// runtime configuration. A fixed set of keys is immutable after the
// embedding model and hash algorithm are chosen for a database; the
// remainder are mutable within documented ranges.
package config

import (
	"fmt"
	"os"
	"sync"

	ptserrors "github.com/ptts-corpus/ptts/internal/errors"
	"gopkg.in/yaml.v3"
)

// Keys that may never change once a database has been created, since
// changing them would silently invalidate every existing content hash or
// embedding.
const (
	KeyEmbeddingModel      = "embedding_model"
	KeyEmbeddingDimensions = "embedding_dimensions"
	KeyHashAlgorithm       = "hash_algorithm"
)

// Mutable keys.
const (
	KeyDatalabDefaultMode   = "datalab_default_mode"
	KeyDatalabMaxConcurrent = "datalab_max_concurrent"
	KeyEmbeddingBatchSize   = "embedding_batch_size"
	KeyEmbeddingDevice      = "embedding_device"
	KeyChunkSize            = "chunk_size"
	KeyChunkOverlapPercent  = "chunk_overlap_percent"
	KeyLogLevel             = "log_level"
)

var immutableKeys = map[string]bool{
	KeyEmbeddingModel:      true,
	KeyEmbeddingDimensions: true,
	KeyHashAlgorithm:       true,
}

// validator checks a candidate value for a mutable key, returning a
// human-readable reason if it is out of range.
type validator func(v any) error

var mutableValidators = map[string]validator{
	KeyDatalabDefaultMode:   validateEnum("fast", "balanced", "accurate"),
	KeyDatalabMaxConcurrent: validateIntRange(1, 10),
	KeyEmbeddingBatchSize:   validateIntRange(1, 1024),
	KeyEmbeddingDevice:      validateString,
	KeyChunkSize:            validateIntRange(100, 10000),
	KeyChunkOverlapPercent:  validateIntRange(0, 50),
	KeyLogLevel:             validateEnum("debug", "info", "warn", "error"),
}

// Defaults returns the configuration every new database starts with.
func Defaults() map[string]any {
	return map[string]any{
		KeyEmbeddingModel:       "nomic-embed-text",
		KeyEmbeddingDimensions:  768,
		KeyHashAlgorithm:        "sha256",
		KeyDatalabDefaultMode:   "balanced",
		KeyDatalabMaxConcurrent: 4,
		KeyEmbeddingBatchSize:   32,
		KeyEmbeddingDevice:      "cpu",
		KeyChunkSize:            1000,
		KeyChunkOverlapPercent:  15,
		KeyLogLevel:             "info",
	}
}

// Configurator holds process-wide configuration state for one open
// database. Get/Set are safe for concurrent use.
type Configurator struct {
	mu       sync.RWMutex
	values   map[string]any
	diskPath string // empty disables persistence
}

// New returns a Configurator seeded with defaults overridden by initial.
func New(initial map[string]any) *Configurator {
	values := Defaults()
	for k, v := range initial {
		values[k] = v
	}
	return &Configurator{values: values}
}

// Load reads a previously persisted snapshot from path, falling back to
// defaults if the file does not exist. Persistence is optional (§4.10);
// a Configurator with no diskPath simply keeps state in memory.
func Load(path string) (*Configurator, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		c := New(nil)
		c.diskPath = path
		return c, nil
	}
	if err != nil {
		return nil, ptserrors.Internal("read config snapshot", err)
	}

	var stored map[string]any
	if err := yaml.Unmarshal(data, &stored); err != nil {
		return nil, ptserrors.Internal("parse config snapshot", err)
	}

	c := New(stored)
	c.diskPath = path
	return c, nil
}

// Save persists the current snapshot to diskPath, if one was configured.
func (c *Configurator) Save() error {
	c.mu.RLock()
	path := c.diskPath
	snapshot := make(map[string]any, len(c.values))
	for k, v := range c.values {
		snapshot[k] = v
	}
	c.mu.RUnlock()

	if path == "" {
		return nil
	}

	data, err := yaml.Marshal(snapshot)
	if err != nil {
		return ptserrors.Internal("marshal config snapshot", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return ptserrors.Internal("write config snapshot", err)
	}
	return nil
}

// Get returns the current value of key, or the full snapshot if key is
// empty.
func (c *Configurator) Get(key string) (any, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if key == "" {
		snapshot := make(map[string]any, len(c.values))
		for k, v := range c.values {
			snapshot[k] = v
		}
		return snapshot, nil
	}

	v, ok := c.values[key]
	if !ok {
		return nil, ptserrors.Validation(fmt.Sprintf("unknown config key %q", key))
	}
	return v, nil
}

// Set validates and atomically replaces one field in process-wide state.
// Immutable keys are always rejected; mutable keys are validated against
// their documented range.
func (c *Configurator) Set(key string, value any) error {
	if immutableKeys[key] {
		return ptserrors.Validation(fmt.Sprintf("%q is immutable and cannot be changed after database creation", key))
	}

	validate, ok := mutableValidators[key]
	if !ok {
		return ptserrors.Validation(fmt.Sprintf("unknown config key %q", key))
	}
	if err := validate(value); err != nil {
		return ptserrors.Validation(fmt.Sprintf("%s: %s", key, err))
	}

	c.mu.Lock()
	c.values[key] = value
	c.mu.Unlock()
	return nil
}

func validateEnum(allowed ...string) validator {
	return func(v any) error {
		s, ok := v.(string)
		if !ok {
			return fmt.Errorf("expected string, got %T", v)
		}
		for _, a := range allowed {
			if s == a {
				return nil
			}
		}
		return fmt.Errorf("must be one of %v, got %q", allowed, s)
	}
}

func validateIntRange(min, max int) validator {
	return func(v any) error {
		n, ok := toInt(v)
		if !ok {
			return fmt.Errorf("expected integer, got %T", v)
		}
		if n < min || n > max {
			return fmt.Errorf("must be in [%d, %d], got %d", min, max, n)
		}
		return nil
	}
}

func validateString(v any) error {
	if _, ok := v.(string); !ok {
		return fmt.Errorf("expected string, got %T", v)
	}
	return nil
}

// toInt accepts both int and float64 since values loaded from YAML/JSON
// may decode as either depending on source.
func toInt(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int64:
		return int(n), true
	case float64:
		return int(n), true
	default:
		return 0, false
	}
}

// Package config loads gokernel settings from a YAML file and GOKERNEL_* variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/aretw0/gokernel/pkg/domain"
	"github.com/mitchellh/mapstructure"
	"gopkg.in/yaml.v3"
)

// DefaultFile is read when no explicit path is given. It may be absent.
const DefaultFile = "gokernel.yaml"

// Store kinds.
const (
	StoreMemory = "memory"
	StoreFile   = "file"
	StoreRedis  = "redis"
	StoreSQLite = "sqlite"
)

// Config is the resolved configuration. CLI flags are applied on top by the caller.
type Config struct {
	Language       string        `mapstructure:"language"`
	LogLevel       string        `mapstructure:"log_level"`
	Store          StoreConfig   `mapstructure:"store"`
	HTTP           HTTPConfig    `mapstructure:"http"`
	MaxInputSize   int           `mapstructure:"max_input_size"`
	SessionLockTTL time.Duration `mapstructure:"session_lock_ttl"`
}

type StoreConfig struct {
	Kind          string        `mapstructure:"kind"`
	Path          string        `mapstructure:"path"`
	RedisAddr     string        `mapstructure:"redis_addr"`
	TTL           time.Duration `mapstructure:"ttl"`
	EncryptionKey string        `mapstructure:"encryption_key"`
}

type HTTPConfig struct {
	Port int `mapstructure:"port"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Language:       "go",
		LogLevel:       "info",
		Store:          StoreConfig{Kind: StoreMemory},
		HTTP:           HTTPConfig{Port: 8080},
		SessionLockTTL: 30 * time.Second,
	}
}

// envKeys maps each environment variable to its position in the config tree.
var envKeys = map[string][]string{
	"GOKERNEL_LANGUAGE":             {"language"},
	"GOKERNEL_LOG_LEVEL":            {"log_level"},
	"GOKERNEL_STORE_KIND":           {"store", "kind"},
	"GOKERNEL_STORE_PATH":           {"store", "path"},
	"GOKERNEL_STORE_REDIS_ADDR":     {"store", "redis_addr"},
	"GOKERNEL_STORE_TTL":            {"store", "ttl"},
	"GOKERNEL_STORE_ENCRYPTION_KEY": {"store", "encryption_key"},
	"GOKERNEL_HTTP_PORT":            {"http", "port"},
	"GOKERNEL_MAX_INPUT_SIZE":       {"max_input_size"},
	"GOKERNEL_SESSION_LOCK_TTL":     {"session_lock_ttl"},
}

type loader struct {
	lookup func(string) (string, bool)
}

// LoadOption configures Load.
type LoadOption func(*loader)

// WithLookupEnv replaces os.LookupEnv.
func WithLookupEnv(fn func(string) (string, bool)) LoadOption {
	return func(l *loader) { l.lookup = fn }
}

// Load reads path (or DefaultFile when path is empty), overlays the
// environment and decodes the result over Default().
// A missing DefaultFile is not an error; a missing explicit path is.
func Load(path string, opts ...LoadOption) (Config, error) {
	l := &loader{lookup: os.LookupEnv}
	for _, opt := range opts {
		opt(l)
	}

	explicit := path != ""
	if !explicit {
		path = DefaultFile
	}

	raw := map[string]any{}
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, &raw); err != nil {
			return Config{}, &domain.ConfigurationError{
				Reason: fmt.Sprintf("invalid config file %s: %v", path, err),
				Input:  string(data),
			}
		}
		if raw == nil {
			raw = map[string]any{}
		}
	case errors.Is(err, os.ErrNotExist) && !explicit:
	default:
		return Config{}, fmt.Errorf("failed to read config: %w", err)
	}

	for env, keys := range envKeys {
		if v, ok := l.lookup(env); ok {
			set(raw, keys, v)
		}
	}

	cfg := Default()
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		DecodeHook:       mapstructure.StringToTimeDurationHookFunc(),
		WeaklyTypedInput: true,
		ErrorUnused:      true,
		Result:           &cfg,
	})
	if err != nil {
		return Config{}, err
	}
	if err := decoder.Decode(raw); err != nil {
		return Config{}, &domain.ConfigurationError{
			Reason: fmt.Sprintf("invalid configuration: %v", err),
			Input:  string(data),
		}
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks values that decode cleanly but make no sense.
func (c Config) Validate() error {
	var problems []string
	switch c.Store.Kind {
	case StoreMemory, StoreFile, StoreRedis, StoreSQLite:
	default:
		problems = append(problems, fmt.Sprintf("unknown store kind %q", c.Store.Kind))
	}
	if c.Store.Kind == StoreRedis && c.Store.RedisAddr == "" {
		problems = append(problems, "store.redis_addr is required for the redis store")
	}
	if c.Language == "" {
		problems = append(problems, "language must not be empty")
	}
	if c.MaxInputSize < 0 {
		problems = append(problems, "max_input_size must not be negative")
	}
	if len(problems) == 0 {
		return nil
	}
	return &domain.ConfigurationError{
		Reason: "invalid configuration: " + strings.Join(problems, "; "),
	}
}

// set writes v at keys, creating intermediate maps. YAML decodes nested
// mappings as map[string]any, so those are reused.
func set(m map[string]any, keys []string, v string) {
	for _, k := range keys[:len(keys)-1] {
		next, ok := m[k].(map[string]any)
		if !ok {
			next = map[string]any{}
			m[k] = next
		}
		m = next
	}
	m[keys[len(keys)-1]] = v
}

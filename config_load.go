package review4d

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/ferro-labs/review4d/plugin"
)

// ConfigEnvVar names a config file used when none is given explicitly.
const ConfigEnvVar = "REVIEW4D_CONFIG"

// LoadConfig reads and parses a config file from the given path.
// Supported formats: JSON (.json), YAML (.yaml, .yml).
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path) //nolint:gosec
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	var cfg Config
	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parsing YAML config: %w", err)
		}
	case ".json":
		if err := json.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parsing JSON config: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported config file extension %q: use .json, .yaml, or .yml", ext)
	}

	return &cfg, nil
}

// LoadConfigOrDefault loads path, or the file named by REVIEW4D_CONFIG when
// path is empty, or returns an empty Config when neither is set.
func LoadConfigOrDefault(path string) (*Config, error) {
	if path == "" {
		path = os.Getenv(ConfigEnvVar)
	}
	if path == "" {
		return &Config{}, nil
	}
	return LoadConfig(path)
}

// ValidateConfig validates a Config for correctness.
func ValidateConfig(cfg Config) error {
	for i, p := range cfg.Plugins {
		if p.Name == "" {
			return fmt.Errorf("plugins[%d]: name is required", i)
		}
		if _, ok := plugin.GetFactory(p.Name); !ok {
			return fmt.Errorf("plugins[%d]: unknown plugin %q", i, p.Name)
		}
	}

	if rl := cfg.RenderLog; rl != nil {
		switch strings.ToLower(rl.Driver) {
		case "", "sqlite", "sqlite3":
		case "postgres", "postgresql":
			if rl.DSN == "" {
				return fmt.Errorf("render_log: postgres requires a dsn")
			}
		default:
			return fmt.Errorf("render_log: unknown driver %q", rl.Driver)
		}
	}

	if cfg.Server.ContextCache.Capacity < 0 {
		return fmt.Errorf("server.context_cache.capacity must not be negative")
	}
	if rl := cfg.Server.RateLimit; rl != nil && (rl.RPS <= 0 || rl.Burst < 0) {
		return fmt.Errorf("server.rate_limit: rps must be positive and burst not negative")
	}
	if _, err := cfg.Server.ContextCache.TTLDuration(); err != nil {
		return err
	}
	return nil
}

// TTLDuration parses TTL. An empty TTL means entries never expire.
func (c ContextCacheConfig) TTLDuration() (time.Duration, error) {
	if c.TTL == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(c.TTL)
	if err != nil {
		return 0, fmt.Errorf("server.context_cache.ttl: %w", err)
	}
	if d < 0 {
		return 0, fmt.Errorf("server.context_cache.ttl must not be negative")
	}
	return d, nil
}

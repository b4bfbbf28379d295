package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Duration is a time.Duration that unmarshals from YAML strings like "5m".
type Duration time.Duration

func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	var raw string
	if err := node.Decode(&raw); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("config: invalid duration %q: %w", raw, err)
	}
	*d = Duration(parsed)
	return nil
}

func (d Duration) MarshalYAML() (any, error) {
	return time.Duration(d).String(), nil
}

// Std returns the value as a time.Duration.
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

// Config holds runtime configuration.
type Config struct {
	// ListenAddr is the route feed websocket listen address.
	ListenAddr string `yaml:"listen_addr"`
	// TickInterval is the period of the engine tick loop.
	TickInterval Duration `yaml:"tick_interval"`
	LogLevel     string   `yaml:"log_level"`
	// StatePath is the preference snapshot file. Empty keeps preferences
	// in memory only.
	StatePath string `yaml:"state_path"`

	ModuleCache  ModuleCacheConfig `yaml:"module_cache"`
	ErrorLogSize int               `yaml:"error_log_size"`
}

// ModuleCacheConfig bounds the module activation cache.
type ModuleCacheConfig struct {
	TTL        Duration `yaml:"ttl"`
	MaxEntries int      `yaml:"max_entries"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		ListenAddr:   "127.0.0.1:8600",
		TickInterval: Duration(16 * time.Millisecond),
		LogLevel:     "info",
		StatePath:    "",
		ModuleCache: ModuleCacheConfig{
			TTL:        Duration(5 * time.Minute),
			MaxEntries: 10,
		},
		ErrorLogSize: 100,
	}
}

// Load reads the YAML file at path over the defaults. An empty path returns
// the defaults unchanged.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("config: read %s: %w", path, err)
	}
	if err = yaml.Unmarshal(raw, &cfg); err != nil {
		return cfg, fmt.Errorf("config: parse %s: %w", path, err)
	}
	return cfg, cfg.Validate()
}

// Validate rejects values the runtime cannot operate with.
func (c Config) Validate() error {
	if c.TickInterval.Std() <= 0 {
		return fmt.Errorf("config: tick_interval must be positive")
	}
	if c.ModuleCache.MaxEntries <= 0 {
		return fmt.Errorf("config: module_cache.max_entries must be positive")
	}
	if c.ErrorLogSize <= 0 {
		return fmt.Errorf("config: error_log_size must be positive")
	}
	return nil
}

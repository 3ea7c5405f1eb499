// Package config loads the orchestrator's own tunables (worker pool size,
// lease TTL, poll intervals, retention windows) as a layered Koanf
// configuration, additive to the teacher's plain os.Getenv Config.Load in
// internal/config/config.go: defaults -> optional YAML file -> environment
// variables, env taking highest precedence.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// Config holds every orchestrator-specific tunable named across
// SPEC_FULL.md's dispatcher, scheduler, watcher, and retention sections.
type Config struct {
	Dispatcher DispatcherConfig `koanf:"dispatcher"`
	Scheduler  SchedulerConfig  `koanf:"scheduler"`
	Watcher    WatcherConfig    `koanf:"watcher"`
	Retention  RetentionConfig  `koanf:"retention"`
	Providers  ProvidersConfig  `koanf:"providers"`
}

type DispatcherConfig struct {
	Workers         int           `koanf:"workers"`
	LeaseTTL        time.Duration `koanf:"lease_ttl"`
	HeartbeatEvery  time.Duration `koanf:"heartbeat_every"`
	PollInterval    time.Duration `koanf:"poll_interval"`
	PollIdleBackoff time.Duration `koanf:"poll_idle_backoff"`
}

type SchedulerConfig struct {
	GlobalConcurrency int      `koanf:"global_concurrency"`
	Shards            []string `koanf:"shards"`
}

type WatcherConfig struct {
	DebounceWindow time.Duration `koanf:"debounce_window"`
}

type RetentionConfig struct {
	FileWatchEventDays int `koanf:"file_watch_event_days"`
}

type ProvidersConfig struct {
	MetadataRateLimitPerSecond float64 `koanf:"metadata_rate_limit_per_second"`
	ImageRateLimitPerSecond    float64 `koanf:"image_rate_limit_per_second"`
}

// ConfigPathEnvVar overrides the default search paths below.
const ConfigPathEnvVar = "ORCHESTRATOR_CONFIG_PATH"

var defaultConfigPaths = []string{
	"orchestrator.yaml",
	"orchestrator.yml",
	"/etc/cinevault/orchestrator.yaml",
}

func defaultConfig() *Config {
	return &Config{
		Dispatcher: DispatcherConfig{
			Workers:         8,
			LeaseTTL:        2 * time.Minute,
			HeartbeatEvery:  40 * time.Second,
			PollInterval:    250 * time.Millisecond,
			PollIdleBackoff: 2 * time.Second,
		},
		Scheduler: SchedulerConfig{
			GlobalConcurrency: 16,
		},
		Watcher: WatcherConfig{
			DebounceWindow: time.Second,
		},
		Retention: RetentionConfig{
			FileWatchEventDays: 30,
		},
		Providers: ProvidersConfig{
			MetadataRateLimitPerSecond: 4,
			ImageRateLimitPerSecond:    8,
		},
	}
}

// Load layers defaults, an optional YAML file, and environment variables
// (prefixed ORCHESTRATOR_, double-underscore nesting, e.g.
// ORCHESTRATOR_DISPATCHER__WORKERS) into a Config.
func Load() (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("orchestrator config: load defaults: %w", err)
	}

	if path := findConfigFile(); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("orchestrator config: load file %s: %w", path, err)
		}
	}

	envProvider := env.Provider("ORCHESTRATOR_", ".", envTransform)
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("orchestrator config: load env: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("orchestrator config: unmarshal: %w", err)
	}
	return cfg, nil
}

func findConfigFile() string {
	if p := os.Getenv(ConfigPathEnvVar); p != "" {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	for _, p := range defaultConfigPaths {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}

// envTransform turns ORCHESTRATOR_DISPATCHER__WORKERS into
// dispatcher.workers: strip the prefix, lowercase, and replace the
// double-underscore nesting separator with a dot.
func envTransform(key string) string {
	key = strings.TrimPrefix(key, "ORCHESTRATOR_")
	return strings.ReplaceAll(strings.ToLower(key), "__", ".")
}

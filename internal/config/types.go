package config

import (
	"fmt"
	"time"

	"gopkg.in/yaml.v3"
)

// Duration wraps time.Duration so config files can use human-readable
// values like "30s" or "5m".
type Duration time.Duration

// UnmarshalYAML accepts a duration string ("30s", "5m") or a bare
// integer nanosecond count.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var raw interface{}
	if err := value.Decode(&raw); err != nil {
		return err
	}
	switch v := raw.(type) {
	case string:
		parsed, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("invalid duration %q: %w", v, err)
		}
		*d = Duration(parsed)
		return nil
	case int:
		*d = Duration(time.Duration(v))
		return nil
	default:
		return fmt.Errorf("invalid duration value %v (want a string like \"30s\")", raw)
	}
}

// MarshalYAML renders the duration in its string form.
func (d Duration) MarshalYAML() (interface{}, error) {
	return time.Duration(d).String(), nil
}

// Std returns the wrapped time.Duration.
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

// CapstanConfig is the top-level configuration structure for capstan.
type CapstanConfig struct {
	Server   ServerConfig   `yaml:"server"`
	Engine   EngineConfig   `yaml:"engine"`
	Source   SourceConfig   `yaml:"source"`
	Health   HealthConfig   `yaml:"health"`
	History  HistoryConfig  `yaml:"history"`
	Registry RegistryConfig `yaml:"registry"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// ServerConfig configures the operator status API.
type ServerConfig struct {
	// Host to bind to (default: localhost).
	Host string `yaml:"host,omitempty"`
	// Port for the status API endpoint (default: 8530).
	Port int `yaml:"port,omitempty"`
	// Enabled toggles the status API (default: true).
	Enabled *bool `yaml:"enabled,omitempty"`
}

// ServerEnabled resolves the optional Enabled flag, defaulting to true.
func (s ServerConfig) ServerEnabled() bool {
	return s.Enabled == nil || *s.Enabled
}

// Address renders the bind address.
func (s ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// RetryConfig shapes transient-error backoff. Per-Application policies
// may override these values.
type RetryConfig struct {
	// Limit caps consecutive transient failures; zero means unlimited.
	Limit int `yaml:"limit,omitempty"`
	// BaseBackoff is the delay before the first retry (default: 5s).
	BaseBackoff Duration `yaml:"baseBackoff,omitempty"`
	// MaxBackoff caps the exponential growth (default: 5m).
	MaxBackoff Duration `yaml:"maxBackoff,omitempty"`
}

// EngineConfig configures the reconciliation loop.
type EngineConfig struct {
	// Workers is the number of concurrent reconciliations (default: 4).
	Workers int `yaml:"workers,omitempty"`
	// ResyncInterval is the scheduled reconciliation period per
	// Application unless its policy overrides it (default: 3m).
	ResyncInterval Duration `yaml:"resyncInterval,omitempty"`
	// SourcePollInterval is how often symbolic revisions are re-resolved
	// to detect source changes (default: 1m).
	SourcePollInterval Duration `yaml:"sourcePollInterval,omitempty"`
	// SyncTimeout bounds one whole sync attempt (default: 5m).
	SyncTimeout Duration `yaml:"syncTimeout,omitempty"`
	// Retry shapes transient-error backoff.
	Retry RetryConfig `yaml:"retry,omitempty"`
}

// SourceConfig configures manifest fetching.
type SourceConfig struct {
	// CacheDir holds bare git clones and parsed revision caches.
	// Empty means <config dir>/cache.
	CacheDir string `yaml:"cacheDir,omitempty"`
	// FetchTimeout bounds a single fetch or resolve (default: 60s).
	FetchTimeout Duration `yaml:"fetchTimeout,omitempty"`
}

// HealthConfig configures post-sync health assessment.
type HealthConfig struct {
	// Timeout is the bounded wait for workloads to converge before the
	// sync is graded degraded (default: 2m).
	Timeout Duration `yaml:"timeout,omitempty"`
	// PollInterval is how often converging workloads are re-read
	// (default: 5s).
	PollInterval Duration `yaml:"pollInterval,omitempty"`
}

// HistoryConfig bounds the retained sync results.
type HistoryConfig struct {
	// Limit is the number of sync results kept per Application
	// (default: 20).
	Limit int `yaml:"limit,omitempty"`
}

// Registry modes.
const (
	// RegistryModeFilesystem reads Application definitions from YAML
	// files in a watched directory.
	RegistryModeFilesystem = "filesystem"
	// RegistryModeKubernetes reads Application custom resources from the
	// cluster capstan runs against.
	RegistryModeKubernetes = "kubernetes"
)

// RegistryConfig selects where Application definitions live.
type RegistryConfig struct {
	// Mode is "filesystem" or "kubernetes" (default: filesystem).
	Mode string `yaml:"mode,omitempty"`
	// Dir is the definition directory in filesystem mode.
	// Empty means <config dir>/apps.
	Dir string `yaml:"dir,omitempty"`
	// Namespace scopes the Application watch in kubernetes mode
	// (default: default).
	Namespace string `yaml:"namespace,omitempty"`
	// Debounce coalesces rapid file change bursts (default: 500ms).
	Debounce Duration `yaml:"debounce,omitempty"`
}

// LoggingConfig controls log output.
type LoggingConfig struct {
	// Level is debug, info, warn, or error (default: info).
	Level string `yaml:"level,omitempty"`
	// Format is text or json (default: text).
	Format string `yaml:"format,omitempty"`
}

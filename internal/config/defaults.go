package config

import (
	"path/filepath"
	"time"
)

// GetDefaultConfig returns the default configuration for capstan.
func GetDefaultConfig() CapstanConfig {
	return CapstanConfig{
		Server: ServerConfig{
			Host: "localhost",
			Port: 8530,
		},
		Engine: EngineConfig{
			Workers:            4,
			ResyncInterval:     Duration(3 * time.Minute),
			SourcePollInterval: Duration(1 * time.Minute),
			SyncTimeout:        Duration(5 * time.Minute),
			Retry: RetryConfig{
				Limit:       0,
				BaseBackoff: Duration(5 * time.Second),
				MaxBackoff:  Duration(5 * time.Minute),
			},
		},
		Source: SourceConfig{
			FetchTimeout: Duration(60 * time.Second),
		},
		Health: HealthConfig{
			Timeout:      Duration(2 * time.Minute),
			PollInterval: Duration(5 * time.Second),
		},
		History: HistoryConfig{
			Limit: 20,
		},
		Registry: RegistryConfig{
			Mode:      RegistryModeFilesystem,
			Namespace: "default",
			Debounce:  Duration(500 * time.Millisecond),
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// ApplyPathDefaults fills directory fields that default relative to the
// configuration directory: the source cache and the Application
// definition directory.
func (c *CapstanConfig) ApplyPathDefaults(configPath string) {
	if c.Source.CacheDir == "" {
		c.Source.CacheDir = filepath.Join(configPath, "cache")
	}
	if c.Registry.Dir == "" {
		c.Registry.Dir = filepath.Join(configPath, "apps")
	}
}

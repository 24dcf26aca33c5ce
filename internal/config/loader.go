package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"capstan/pkg/logging"

	"gopkg.in/yaml.v3"
)

const (
	userConfigDir  = ".config/capstan"
	configFileName = "config.yaml"
)

func GetDefaultConfigPathOrPanic() string {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		panic(fmt.Errorf("could not determine user config directory: %w", err))
	}

	return filepath.Join(homeDir, userConfigDir)
}

// LoadConfig loads configuration from a single specified directory.
// The directory should contain config.yaml; the Application definition
// directory and the source cache live beside it unless overridden.
// A missing config.yaml is not an error: defaults apply.
func LoadConfig(configPath string) (CapstanConfig, error) {
	configFilePath := filepath.Join(configPath, configFileName)
	config := GetDefaultConfig() // Start with default config

	data, err := os.ReadFile(configFilePath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			logging.Info("ConfigLoader", "No config.yaml found at %s, using defaults", configFilePath)
			config.ApplyPathDefaults(configPath)
			return config, nil
		}
		logging.Info("ConfigLoader", "Error loading config.yaml from %s: %s", configFilePath, err)
		return CapstanConfig{}, err
	}
	err = yaml.Unmarshal(data, &config)
	if err != nil {
		// config malformed
		return CapstanConfig{}, fmt.Errorf("error loading config from %s: %w", configFilePath, err)
	}
	config.ApplyPathDefaults(configPath)

	if verrs := config.Validate(); verrs.HasErrors() {
		return CapstanConfig{}, fmt.Errorf("invalid config at %s: %w", configFilePath, verrs)
	}

	logging.Info("ConfigLoader", "Loaded configuration from %s", configFilePath)
	return config, nil
}

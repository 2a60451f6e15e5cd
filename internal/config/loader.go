package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"mcp-remote/pkg/logging"
)

const configFileName = "config.yaml"

// LoadConfig returns the defaults overlaid with {configDir}/config.yaml.
// A missing file is not an error.
func LoadConfig(configDir string) (Config, error) {
	config := DefaultConfig()
	config.ConfigDir = configDir

	configFilePath := filepath.Join(configDir, configFileName)
	data, err := os.ReadFile(configFilePath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			logging.Debug("Config", "No config.yaml found at %s, using defaults", configFilePath)
			return config, nil
		}
		return Config{}, fmt.Errorf("error reading %s: %w", configFilePath, err)
	}

	if err := yaml.Unmarshal(data, &config); err != nil {
		return Config{}, fmt.Errorf("error loading config from %s: %w", configFilePath, err)
	}
	config.ConfigDir = configDir

	logging.Debug("Config", "Loaded configuration from %s", configFilePath)
	return config, nil
}

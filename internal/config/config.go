// Package config loads and saves the on-disk configuration under the
// user's home directory. Sink passwords are encrypted at rest.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"mallard/internal/common"
	"mallard/pkg/models"
)

// GetConfigPath returns the configuration directory.
func GetConfigPath() string {
	if configFile := os.Getenv("MALLARD_CONFIG"); configFile != "" {
		return filepath.Dir(configFile)
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".mallard")
}

// GetConfigFile returns the configuration file path. MALLARD_CONFIG
// overrides the default ~/.mallard/config.yaml.
func GetConfigFile() string {
	if configFile := os.Getenv("MALLARD_CONFIG"); configFile != "" {
		cleaned, err := common.CleanPath(configFile)
		if err != nil {
			return filepath.Join(GetConfigPath(), "config.yaml")
		}
		return cleaned
	}
	return filepath.Join(GetConfigPath(), "config.yaml")
}

// Load reads the configuration, decrypting stored passwords. A missing
// file yields an empty config rather than an error.
func Load() (*models.Config, error) {
	configFile := GetConfigFile()

	cleanedPath, err := common.CleanPath(configFile)
	if err != nil {
		return nil, fmt.Errorf("invalid config file path: %w", err)
	}

	if _, err := os.Stat(cleanedPath); os.IsNotExist(err) {
		return &models.Config{}, nil
	}

	data, err := os.ReadFile(cleanedPath) // #nosec G304 - path is validated
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config models.Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := DecryptConfigPasswords(&config); err != nil {
		return nil, err
	}
	return &config, nil
}

// Save writes the configuration, encrypting passwords first.
func Save(config *models.Config) error {
	if err := EncryptConfigPasswords(config); err != nil {
		return err
	}

	configPath := GetConfigPath()
	if err := os.MkdirAll(configPath, 0700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(config)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(GetConfigFile(), data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// Exists reports whether a configuration file is present.
func Exists() bool {
	_, err := os.Stat(GetConfigFile())
	return err == nil
}

package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// LoadConfigFile loads configuration from a YAML file on top of base.
// Keys absent from the file keep base's values; unknown keys are an error.
func LoadConfigFile(path string, base *Config) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := base.Copy()
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	return cfg, nil
}

// FindConfigFile searches for config file in standard locations
// Returns empty string if not found (non-fatal)
func FindConfigFile() string {
	home, _ := os.UserHomeDir()
	locations := []string{
		"./autoedit.yaml",
		"./autoedit.yml",
	}
	if home != "" {
		locations = append(locations,
			filepath.Join(home, ".autoedit", "config.yaml"),
			filepath.Join(home, ".autoedit", "config.yml"),
		)
	}
	locations = append(locations,
		"/etc/autoedit/config.yaml",
		"/etc/autoedit/config.yml",
	)

	for _, path := range locations {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}

	return ""
}

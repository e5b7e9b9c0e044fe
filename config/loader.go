package config

import (
	"fmt"

	"github.com/spf13/pflag"
)

// LoadConfig loads configuration with priority:
// CLI flags > environment (.env file included) > config file > defaults
func LoadConfig(fs *pflag.FlagSet) (*Config, error) {
	// 1. Start with defaults
	cfg := DefaultConfig()

	// 2. Config file: explicit --config, else the first standard location
	configPath, _ := fs.GetString(FlagConfig)
	if configPath == "" {
		configPath = FindConfigFile()
	}
	if configPath != "" {
		fileCfg, err := LoadConfigFile(configPath, cfg)
		if err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
		cfg = fileCfg
	}

	// 3. Environment, with .env values as fallback
	envFile, _ := fs.GetString(FlagEnvFile)
	lookup, err := EnvLookup(envFile)
	if err != nil {
		return nil, err
	}
	if err := cfg.ApplyEnv(lookup); err != nil {
		return nil, err
	}

	// 4. Merge CLI flags (highest priority, overwrites everything)
	if err := cfg.MergeFromFlags(fs); err != nil {
		return nil, err
	}

	// --debug-cmds implies verbose output from the tools
	if cfg.DebugCmds {
		cfg.Verbose = true
	}

	// Validate final configuration
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

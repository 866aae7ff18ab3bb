package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Load parses a YAML config file as-is, with no defaults or
// validation. ${VAR} references are expanded from the environment
// before parsing.
func Load(path string) (*FeeddConfig, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	var cfg FeeddConfig
	if err := yaml.Unmarshal([]byte(os.ExpandEnv(string(raw))), &cfg); err != nil {
		return nil, fmt.Errorf("parse config yaml: %w", err)
	}
	return &cfg, nil
}

// LoadAndValidate loads a config file, fills in defaults, and
// validates the result. This is the loader the daemon uses.
func LoadAndValidate(path string) (*FeeddConfig, error) {
	cfg, err := Load(path)
	if err != nil {
		return nil, err
	}

	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return cfg, nil
}

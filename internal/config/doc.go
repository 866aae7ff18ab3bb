// Package config loads and validates feedd configuration from YAML
// with ${VAR} environment expansion.
package config

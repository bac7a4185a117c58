//go:build sqlite_vtable

// Package cli provides the command-line interface for tablebridge.
package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/pflag"
)

// Config holds all CLI configuration options.
type Config struct {
	Format  string            `koanf:"format"`
	Verbose bool              `koanf:"verbose"`
	History string            `koanf:"history"`
	Tables  map[string]string `koanf:"tables"`
}

// Default configuration values.
const (
	DefaultFormat = "table"
)

var configFileUsed string

// findConfigFile finds the config file to use.
// Priority: explicit path > tablebridge.yaml > tablebridge.yml
func findConfigFile(explicit string) string {
	if explicit != "" {
		return explicit
	}
	for _, name := range []string{"tablebridge.yaml", "tablebridge.yml"} {
		if _, err := os.Stat(name); err == nil {
			return name
		}
	}
	if dir, err := os.UserConfigDir(); err == nil {
		for _, name := range []string{"tablebridge.yaml", "tablebridge.yml"} {
			candidate := filepath.Join(dir, "tablebridge", name)
			if _, err := os.Stat(candidate); err == nil {
				return candidate
			}
		}
	}
	return ""
}

// defaultHistoryFile returns the REPL history location under the user
// config dir.
func defaultHistoryFile() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ".tablebridge_history"
	}
	return filepath.Join(dir, "tablebridge", "history")
}

// LoadConfig loads configuration from file, environment variables, and
// flags. Precedence (highest to lowest): flags > env vars > config
// file > defaults.
func LoadConfig(cfgFile string, flags *pflag.FlagSet) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(confmap.Provider(map[string]interface{}{
		"format":  DefaultFormat,
		"verbose": false,
		"history": defaultHistoryFile(),
	}, "."), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	configFileUsed = findConfigFile(cfgFile)
	if configFileUsed != "" {
		if err := k.Load(file.Provider(configFileUsed), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("error reading config file %s: %w", configFileUsed, err)
		}
	}

	// TABLEBRIDGE_FORMAT -> format
	if err := k.Load(env.Provider("TABLEBRIDGE_", ".", func(s string) string {
		return strings.ToLower(strings.TrimPrefix(s, "TABLEBRIDGE_"))
	}), nil); err != nil {
		return nil, fmt.Errorf("failed to load env vars: %w", err)
	}

	if flags != nil {
		if err := k.Load(posflag.ProviderWithFlag(flags, ".", k, func(f *pflag.Flag) (string, interface{}) {
			if !f.Changed {
				return "", nil
			}
			return strings.ReplaceAll(f.Name, "-", "_"), posflag.FlagVal(flags, f)
		}), nil); err != nil {
			return nil, fmt.Errorf("failed to load flags: %w", err)
		}
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}
	return &cfg, nil
}

// GetConfigFileUsed returns the path to the config file being used, if any.
func GetConfigFileUsed() string {
	return configFileUsed
}

// ABOUTME: Loads configuration from TOML files and the environment
// ABOUTME: Environment variables override file values
package config

import (
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/BurntSushi/toml"
)

// Load reads configuration from standard locations with environment overrides.
// Search order: ~/.sendspin-cast.toml, $XDG_CONFIG_HOME/sendspin-cast/config.toml,
// ~/.config/sendspin-cast/config.toml
func Load() (*Config, error) {
	cfg := &Config{}

	// Try loading from file
	path := findConfigFile()
	if path != "" {
		if _, err := toml.DecodeFile(path, cfg); err != nil {
			return nil, err
		}
	}

	// Apply defaults, then environment variable overrides
	cfg.ApplyDefaults()
	applyEnvOverrides(cfg)

	return cfg, nil
}

// LoadFrom reads configuration from a specific file path.
func LoadFrom(path string) (*Config, error) {
	cfg := &Config{}
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, err
	}
	cfg.ApplyDefaults()
	applyEnvOverrides(cfg)
	return cfg, nil
}

// findConfigFile returns the first existing config file path.
func findConfigFile() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}

	paths := []string{
		filepath.Join(home, ".sendspin-cast.toml"),
	}

	// XDG_CONFIG_HOME or default
	xdgConfig := os.Getenv("XDG_CONFIG_HOME")
	if xdgConfig == "" {
		xdgConfig = filepath.Join(home, ".config")
	}
	paths = append(paths, filepath.Join(xdgConfig, "sendspin-cast", "config.toml"))

	for _, p := range paths {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}

	return ""
}

// applyEnvOverrides applies environment variable overrides to the config.
func applyEnvOverrides(cfg *Config) {
	// Cast
	if v := os.Getenv("SENDSPIN_CAST_APP_ID"); v != "" {
		cfg.Cast.AppID = v
	}
	envInt("SENDSPIN_CAST_JOIN_TIMEOUT", &cfg.Cast.JoinTimeout)
	envInt("SENDSPIN_CAST_JOIN_RETRIES", &cfg.Cast.JoinRetries)
	envInt("SENDSPIN_CAST_MEDIA_LOAD_TIMEOUT", &cfg.Cast.MediaLoadTimeout)

	// Discovery
	envInt("SENDSPIN_CAST_QUERY_TIMEOUT", &cfg.Discovery.QueryTimeout)
	envInt("SENDSPIN_CAST_ROUTE_TTL", &cfg.Discovery.RouteTTL)

	// Transport
	if v := os.Getenv("SENDSPIN_CAST_SENDER_ID"); v != "" {
		cfg.Transport.SenderID = v
	}

	// Settings
	if v := os.Getenv("SENDSPIN_CAST_SETTINGS_DIR"); v != "" {
		cfg.Settings.Dir = v
	}

	// Log
	if v := os.Getenv("SENDSPIN_CAST_LOG_FILE"); v != "" {
		cfg.Log.File = v
	}
}

func envInt(name string, dst *int) {
	if v := os.Getenv(name); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			*dst = i
		}
	}
}

// Seconds converts a configured number of seconds into a duration.
func Seconds(n int) time.Duration {
	return time.Duration(n) * time.Second
}

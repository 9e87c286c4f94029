// Package config holds rmi's settings: viper-backed defaults, environment
// overrides and config files, plus the import profile and seed file formats.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment override (RMI_DB, RMI_LOG_LEVEL, ...).
const EnvPrefix = "RMI"

var v *viper.Viper

// Initialize sets up the viper configuration singleton. The config file is
// the first of .rmi/config.yaml in the working directory or a parent, then
// $HOME/.config/rmi/config.yaml. A missing file is not an error.
func Initialize() error {
	return InitializeFile("")
}

// InitializeFile is Initialize with an explicit config file. An empty path
// falls back to discovery.
func InitializeFile(path string) error {
	v = viper.New()
	v.SetConfigType("yaml")

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	v.SetDefault("db", "")
	v.SetDefault("driver", "sqlite")
	v.SetDefault("actor", "")
	v.SetDefault("json", false)
	v.SetDefault("sqlite.busy_timeout", 30*time.Second)
	v.SetDefault("session.backend", "sql")
	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.prefix", "rmi:import:")
	v.SetDefault("import.encoding", "UTF-8")
	v.SetDefault("import.delimiter", ",")
	v.SetDefault("import.quote", `"`)
	v.SetDefault("import.retention", 72*time.Hour)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
	v.SetDefault("telemetry.enabled", false)
	v.SetDefault("telemetry.endpoint", "")
	v.SetDefault("telemetry.interval", 30*time.Second)

	if path == "" {
		path = discover()
	}
	if path == "" {
		return nil
	}
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return fmt.Errorf("error reading config file %s: %w", path, err)
	}
	return nil
}

// discover walks up from the working directory looking for .rmi/config.yaml,
// then tries the user config directory.
func discover() string {
	if cwd, err := os.Getwd(); err == nil {
		for dir := cwd; ; {
			candidate := filepath.Join(dir, ".rmi", "config.yaml")
			if _, err := os.Stat(candidate); err == nil {
				return candidate
			}
			parent := filepath.Dir(dir)
			if parent == dir {
				break
			}
			dir = parent
		}
	}
	if home, err := os.UserHomeDir(); err == nil {
		candidate := filepath.Join(home, ".config", "rmi", "config.yaml")
		if _, err := os.Stat(candidate); err == nil {
			return candidate
		}
	}
	return ""
}

// ConfigFileUsed returns the path of the loaded config file, if any.
func ConfigFileUsed() string {
	if v == nil {
		return ""
	}
	return v.ConfigFileUsed()
}

// GetString retrieves a string configuration value.
func GetString(key string) string {
	if v == nil {
		return ""
	}
	return v.GetString(key)
}

// GetBool retrieves a boolean configuration value.
func GetBool(key string) bool {
	if v == nil {
		return false
	}
	return v.GetBool(key)
}

// GetInt retrieves an integer configuration value.
func GetInt(key string) int {
	if v == nil {
		return 0
	}
	return v.GetInt(key)
}

// GetDuration retrieves a duration configuration value.
func GetDuration(key string) time.Duration {
	if v == nil {
		return 0
	}
	return v.GetDuration(key)
}

// Set overrides a value for the rest of the process, e.g. from a flag.
func Set(key string, value any) {
	if v != nil {
		v.Set(key, value)
	}
}

package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/kelseyhightower/envconfig"
)

const (
	// ConfigDir is the default config directory name.
	ConfigDir = ".zelador"
	// ConfigFile is the default config file name.
	ConfigFile = "config.json"
)

// ConfigPath returns the path to the config file.
func ConfigPath() (string, error) {
	if explicit := strings.TrimSpace(os.Getenv("ZELADOR_CONFIG")); explicit != "" {
		if strings.HasPrefix(explicit, "~") {
			home, err := resolveHomeDir()
			if err != nil {
				return "", err
			}
			return filepath.Join(home, explicit[1:]), nil
		}
		return explicit, nil
	}
	home, err := resolveHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ConfigDir, ConfigFile), nil
}

func resolveHomeDir() (string, error) {
	if h := strings.TrimSpace(os.Getenv("ZELADOR_HOME")); h != "" {
		if strings.HasPrefix(h, "~") {
			base, err := os.UserHomeDir()
			if err != nil {
				return "", err
			}
			return filepath.Join(base, h[1:]), nil
		}
		return h, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return home, nil
}

// Load reads the config file, applies env overrides and resolves derived
// paths. A missing file is not an error: defaults are used.
func Load() (*Config, error) {
	cfg := DefaultConfig()

	path, err := ConfigPath()
	if err != nil {
		return cfg, err
	}

	data, err := os.ReadFile(path)
	if err == nil {
		if err := json.Unmarshal(data, cfg); err != nil {
			return cfg, fmt.Errorf("parse %s: %w", path, err)
		}
	} else if !os.IsNotExist(err) {
		return cfg, fmt.Errorf("read %s: %w", path, err)
	}

	if err := envconfig.Process("zelador", cfg); err != nil {
		return cfg, fmt.Errorf("env overrides: %w", err)
	}

	if err := cfg.Resolve(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Save writes the config file, creating the config directory if needed.
func Save(cfg *Config) error {
	path, err := ConfigPath()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0600)
}

// Resolve fills derived path defaults and expands a leading ~ in DataDir.
func (c *Config) Resolve() error {
	if c.Paths.DataDir == "" {
		home, err := resolveHomeDir()
		if err != nil {
			return err
		}
		c.Paths.DataDir = filepath.Join(home, ConfigDir)
	} else if strings.HasPrefix(c.Paths.DataDir, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return err
		}
		c.Paths.DataDir = filepath.Join(home, c.Paths.DataDir[1:])
	}
	if c.Paths.AuthDir == "" {
		c.Paths.AuthDir = filepath.Join(c.Paths.DataDir, "auth")
	}
	if c.Paths.GroupsDir == "" {
		c.Paths.GroupsDir = filepath.Join(c.Paths.DataDir, "groups")
	}
	if c.Paths.ModLogPath == "" {
		c.Paths.ModLogPath = filepath.Join(c.Paths.DataDir, "modlog.db")
	}
	return nil
}

package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Config holds display-policy defaults. Everything here is presentation
// tuning; nothing in it changes what gets aggregated. Flags override it.
type Config struct {
	// UserLimit caps per-user tables (chats-per-user, activity). 0 = no cap.
	UserLimit int `yaml:"user_limit" json:"user_limit"`
	// MinChats hides users below this chat count in the feedback report.
	MinChats int `yaml:"min_chats" json:"min_chats"`
	// RecentDays is the window of the timeline's daily-activity section.
	RecentDays int `yaml:"recent_days" json:"recent_days"`
}

// Default returns the built-in display policy.
func Default() *Config {
	return &Config{
		UserLimit:  20,
		MinChats:   0,
		RecentDays: 14,
	}
}

// GetConfigDir returns the config directory, honoring an explicit override
// (useful for tests and portable installs) and XDG conventions.
func GetConfigDir() (string, error) {
	if override := os.Getenv("WEBUIDB_CONFIG_DIR"); override != "" {
		return override, nil
	}

	var base string
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		base = xdg
	} else {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to get home directory: %w", err)
		}
		base = filepath.Join(home, ".config")
	}
	return filepath.Join(base, "webuidb"), nil
}

// Load reads config.yaml from the config directory. A missing file yields
// the defaults; a malformed file is an error the caller should see.
func Load() (*Config, error) {
	configDir, err := GetConfigDir()
	if err != nil {
		return nil, err
	}

	configPath := filepath.Join(configDir, "config.yaml")

	data, err := os.ReadFile(configPath)
	if err != nil {
		if os.IsNotExist(err) {
			return Default(), nil
		}
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return cfg, nil
}

// Save writes the config to the config file.
func (c *Config) Save() error {
	configDir, err := GetConfigDir()
	if err != nil {
		return err
	}

	if err := os.MkdirAll(configDir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(filepath.Join(configDir, "config.yaml"), data, 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// Package config provides YAML-based configuration loading for Aloqa.
package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// DefaultRejectionReasons is the fallback list used when the config
// supplies no usable rejection reasons.
var DefaultRejectionReasons = []string{
	"I cannot respond within the available time",
	"Other reasons",
}

// Config is the top-level Aloqa configuration, loaded from aloqa.yaml.
type Config struct {
	AdminChatID      int64           `yaml:"admin_chat_id"`
	DirectoryPath    string          `yaml:"directory_path"`
	RejectionReasons []string        `yaml:"rejection_reasons"`
	Telegram         TelegramConfig  `yaml:"telegram"`
	DB               DBConfig        `yaml:"db"`
	Dashboard        DashboardConfig `yaml:"dashboard"`
	Digest           DigestConfig    `yaml:"digest"`
}

// TelegramConfig holds credentials for the Telegram transport.
type TelegramConfig struct {
	BotToken string `yaml:"bot_token"`
}

// DBConfig selects and configures the request store backend.
type DBConfig struct {
	Driver   string `yaml:"driver"` // "sqlite" (default) or "mysql"
	Path     string `yaml:"path"`   // sqlite file path
	Host     string `yaml:"host"`   // mysql
	Port     int    `yaml:"port"`   // mysql
	Database string `yaml:"database"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
}

// DashboardConfig controls the read-only HTTP stats endpoint.
type DashboardConfig struct {
	Enabled bool `yaml:"enabled"`
	Port    int  `yaml:"port"`
}

// DigestConfig controls the daily admin digest.
type DigestConfig struct {
	Cron string `yaml:"cron"` // 5-field cron expression; empty disables
}

// Load reads a YAML config file from path and returns a validated Config.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	return Parse(data)
}

// Parse unmarshals YAML bytes into a validated Config.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: parse: %w", err)
	}
	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// applyDefaults fills in derived and default values.
func (c *Config) applyDefaults() {
	if c.DirectoryPath == "" {
		c.DirectoryPath = "directory.json"
	}
	c.RejectionReasons = cleanReasons(c.RejectionReasons)
	if len(c.RejectionReasons) == 0 {
		c.RejectionReasons = append([]string(nil), DefaultRejectionReasons...)
	}
	if c.DB.Driver == "" {
		c.DB.Driver = "sqlite"
	}
	if c.DB.Driver == "sqlite" && c.DB.Path == "" {
		c.DB.Path = "aloqa.db"
	}
	if c.DB.Driver == "mysql" {
		if c.DB.Host == "" {
			c.DB.Host = "127.0.0.1"
		}
		if c.DB.Port == 0 {
			c.DB.Port = 3306
		}
		if c.DB.Database == "" {
			c.DB.Database = "aloqa"
		}
		if c.DB.User == "" {
			c.DB.User = "root"
		}
	}
	if c.Dashboard.Enabled && c.Dashboard.Port == 0 {
		c.Dashboard.Port = 8080
	}
}

// cleanReasons trims reasons and drops empty entries.
func cleanReasons(reasons []string) []string {
	var out []string
	for _, r := range reasons {
		r = strings.TrimSpace(r)
		if r != "" {
			out = append(out, r)
		}
	}
	return out
}

// validate checks that all required fields are present and consistent.
func (c *Config) validate() error {
	var errs []string
	if c.AdminChatID == 0 {
		errs = append(errs, "admin_chat_id is required")
	}
	if c.DB.Driver != "sqlite" && c.DB.Driver != "mysql" {
		errs = append(errs, fmt.Sprintf("db.driver must be sqlite or mysql, got %q", c.DB.Driver))
	}
	if len(errs) > 0 {
		return fmt.Errorf("config: validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}

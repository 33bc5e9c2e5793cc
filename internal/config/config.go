// Package config handles configuration loading for orderdesk.
// It supports XDG config paths, project-level overrides, and environment variables.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for orderdesk.
type Config struct {
	Server  ServerConfig  `mapstructure:"server"`
	Model   ModelConfig   `mapstructure:"model"`
	Agent   AgentConfig   `mapstructure:"agent"`
	Backend BackendConfig `mapstructure:"backend"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// Addr returns the host:port the server listens on.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// ModelConfig holds language-model settings.
type ModelConfig struct {
	Name   string `mapstructure:"name"`
	APIKey string `mapstructure:"api_key"`
}

// AgentConfig holds agent loop settings.
type AgentConfig struct {
	// HistoryWindow is the number of recent history entries shown to the
	// decision policy.
	HistoryWindow int `mapstructure:"history_window"`
	// FaultProbability is the chance that an unknown order reports a
	// simulated backend failure instead of not_found.
	FaultProbability float64 `mapstructure:"fault_probability"`
}

// BackendConfig holds order-store settings.
type BackendConfig struct {
	DBPath string `mapstructure:"db_path"`
	Seed   bool   `mapstructure:"seed"`
}

// Load loads configuration from XDG paths, a project override, and
// environment variables.
// Precedence (highest to lowest):
// 1. Environment variables (GEMINI_API_KEY)
// 2. Project config (.orderdesk.yaml in current directory or parent)
// 3. User config (~/.config/orderdesk/config.yaml)
// 4. Built-in defaults
func Load() (*Config, error) {
	v := viper.New()

	setDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(getUserConfigDir())

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading user config: %w", err)
		}
	}

	if projectConfig := findProjectConfig(); projectConfig != "" {
		projectViper := viper.New()
		projectViper.SetConfigFile(projectConfig)
		if err := projectViper.ReadInConfig(); err == nil {
			if err := v.MergeConfigMap(projectViper.AllSettings()); err != nil {
				return nil, fmt.Errorf("merging project config: %w", err)
			}
		}
	}

	v.AutomaticEnv()
	v.BindEnv("model.api_key", "GEMINI_API_KEY")
	v.BindEnv("server.port", "ORDERDESK_PORT")
	v.BindEnv("backend.db_path", "ORDERDESK_DB_PATH")

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	cfg.Model.APIKey = os.ExpandEnv(cfg.Model.APIKey)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// LoadFromPath loads configuration from a specific file (for testing).
func LoadFromPath(path string) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("reading config from %s: %w", path, err)
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	cfg.Model.APIKey = os.ExpandEnv(cfg.Model.APIKey)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Default returns a Config with default values.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host:            "",
			Port:            8000,
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    60 * time.Second,
			ShutdownTimeout: 10 * time.Second,
		},
		Model: ModelConfig{
			Name: "gemini-2.0-flash",
		},
		Agent: AgentConfig{
			HistoryWindow:    5,
			FaultProbability: 0.1,
		},
		Backend: BackendConfig{
			DBPath: "data/orders.db",
			Seed:   true,
		},
	}
}

// Validate checks config values for correctness.
func (c *Config) Validate() error {
	var errs []string

	if c.Server.Port < 1 || c.Server.Port > 65535 {
		errs = append(errs, "server.port must be between 1 and 65535")
	}
	if c.Server.ReadTimeout < time.Second {
		errs = append(errs, "server.read_timeout must be >= 1s")
	}
	if c.Server.WriteTimeout < time.Second {
		errs = append(errs, "server.write_timeout must be >= 1s")
	}
	if c.Server.ShutdownTimeout < time.Second {
		errs = append(errs, "server.shutdown_timeout must be >= 1s")
	}
	if c.Model.Name == "" {
		errs = append(errs, "model.name must not be empty")
	}
	if c.Agent.HistoryWindow < 1 {
		errs = append(errs, "agent.history_window must be >= 1")
	}
	if c.Agent.FaultProbability < 0 || c.Agent.FaultProbability > 1 {
		errs = append(errs, "agent.fault_probability must be between 0 and 1")
	}
	if c.Backend.DBPath == "" {
		errs = append(errs, "backend.db_path must not be empty")
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed: %v", errs)
	}
	return nil
}

// HasUsableAPIKey reports whether the configured key looks real. Placeholder
// values left from setup templates count as absent.
func (c *Config) HasUsableAPIKey() bool {
	key := strings.TrimSpace(c.Model.APIKey)
	if key == "" {
		return false
	}
	lower := strings.ToLower(key)
	for _, placeholder := range []string{"dummy", "your_api_key", "changeme", "<", "${"} {
		if strings.Contains(lower, placeholder) {
			return false
		}
	}
	return true
}

// setDefaults configures default values.
func setDefaults(v *viper.Viper) {
	d := Default()

	v.SetDefault("server.host", d.Server.Host)
	v.SetDefault("server.port", d.Server.Port)
	v.SetDefault("server.read_timeout", d.Server.ReadTimeout.String())
	v.SetDefault("server.write_timeout", d.Server.WriteTimeout.String())
	v.SetDefault("server.shutdown_timeout", d.Server.ShutdownTimeout.String())

	v.SetDefault("model.name", d.Model.Name)
	v.SetDefault("model.api_key", "")

	v.SetDefault("agent.history_window", d.Agent.HistoryWindow)
	v.SetDefault("agent.fault_probability", d.Agent.FaultProbability)

	v.SetDefault("backend.db_path", d.Backend.DBPath)
	v.SetDefault("backend.seed", d.Backend.Seed)
}

// getUserConfigDir returns the XDG config directory for orderdesk.
func getUserConfigDir() string {
	if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
		return filepath.Join(xdgConfig, "orderdesk")
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", ".config", "orderdesk")
	}
	return filepath.Join(home, ".config", "orderdesk")
}

// findProjectConfig searches for .orderdesk.yaml in the current directory
// and parents.
func findProjectConfig() string {
	cwd, err := os.Getwd()
	if err != nil {
		return ""
	}

	for {
		configPath := filepath.Join(cwd, ".orderdesk.yaml")
		if _, err := os.Stat(configPath); err == nil {
			return configPath
		}

		parent := filepath.Dir(cwd)
		if parent == cwd {
			break
		}
		cwd = parent
	}

	return ""
}

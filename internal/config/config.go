// Package config provides YAML-based configuration loading for stitch.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the top-level stitch configuration, loaded from config.yaml.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	DB       DBConfig       `yaml:"db"`
	Model    ModelConfig    `yaml:"model"`
	Auth     AuthConfig     `yaml:"auth"`
	Session  SessionConfig  `yaml:"session"`
	Poll     PollConfig     `yaml:"poll"`
	Push     PushConfig     `yaml:"push"`
	Finalize FinalizeConfig `yaml:"finalize"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port int `yaml:"port"`
}

// DBConfig holds connection settings for the durable store. Driver is
// "sqlite" (default) or "mysql".
type DBConfig struct {
	Driver   string `yaml:"driver"`
	Path     string `yaml:"path"` // sqlite file path
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Database string `yaml:"database"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
}

// ModelConfig holds settings for the generative model API.
type ModelConfig struct {
	APIKey    string `yaml:"api_key"`
	BaseURL   string `yaml:"base_url"`
	Model     string `yaml:"model"`
	MaxTokens int    `yaml:"max_tokens"`
}

// AuthConfig holds JWT settings for the token pair minted at signup commit.
type AuthConfig struct {
	JWTSecret       string `yaml:"jwt_secret"`
	AccessTTLMins   int    `yaml:"access_ttl_minutes"`
	RefreshTTLHours int    `yaml:"refresh_ttl_hours"`
}

// SessionConfig holds ephemeral-store settings.
type SessionConfig struct {
	TTLMinutes       int    `yaml:"ttl_minutes"`
	MarkerTTLMinutes int    `yaml:"marker_ttl_minutes"`
	SweepSchedule    string `yaml:"sweep_schedule"` // cron spec, e.g. "@every 1m"
}

// PollConfig holds completion-poller settings.
type PollConfig struct {
	IntervalMillis int `yaml:"interval_ms"`
	BudgetSeconds  int `yaml:"budget_seconds"`
}

// PushConfig selects the push-delivery provider for fan-out.
// Provider is "slack", "discord", or "none".
type PushConfig struct {
	Provider string `yaml:"provider"`
}

// FinalizeConfig holds worker-pool settings for background commits.
type FinalizeConfig struct {
	Workers   int `yaml:"workers"`
	QueueSize int `yaml:"queue_size"`
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

// applyDefaults fills in derived and default values. Secrets fall back to
// environment variables so they can stay out of the config file.
func (c *Config) applyDefaults() {
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.DB.Driver == "" {
		c.DB.Driver = "sqlite"
	}
	if c.DB.Path == "" {
		c.DB.Path = "stitch.db"
	}
	if c.DB.Host == "" {
		c.DB.Host = "127.0.0.1"
	}
	if c.DB.Port == 0 {
		c.DB.Port = 3306
	}
	if c.DB.User == "" {
		c.DB.User = "root"
	}
	if c.Model.APIKey == "" {
		c.Model.APIKey = os.Getenv("STITCH_MODEL_API_KEY")
	}
	if c.Model.Model == "" {
		c.Model.Model = "gpt-4o-mini"
	}
	if c.Model.MaxTokens == 0 {
		c.Model.MaxTokens = 500
	}
	if c.Auth.JWTSecret == "" {
		c.Auth.JWTSecret = os.Getenv("STITCH_JWT_SECRET")
	}
	if c.Auth.AccessTTLMins == 0 {
		c.Auth.AccessTTLMins = 30
	}
	if c.Auth.RefreshTTLHours == 0 {
		c.Auth.RefreshTTLHours = 24 * 30
	}
	if c.Session.TTLMinutes == 0 {
		c.Session.TTLMinutes = 30
	}
	if c.Session.MarkerTTLMinutes == 0 {
		c.Session.MarkerTTLMinutes = 5
	}
	if c.Session.SweepSchedule == "" {
		c.Session.SweepSchedule = "@every 1m"
	}
	if c.Poll.IntervalMillis == 0 {
		c.Poll.IntervalMillis = 500
	}
	if c.Poll.BudgetSeconds == 0 {
		c.Poll.BudgetSeconds = 10
	}
	if c.Push.Provider == "" {
		c.Push.Provider = "none"
	}
	if c.Finalize.Workers == 0 {
		c.Finalize.Workers = 4
	}
	if c.Finalize.QueueSize == 0 {
		c.Finalize.QueueSize = 64
	}
}

// validate checks that all required fields are present and consistent.
func (c *Config) validate() error {
	var errs []string
	switch c.DB.Driver {
	case "sqlite", "mysql":
	default:
		errs = append(errs, fmt.Sprintf("db.driver must be sqlite or mysql, got %q", c.DB.Driver))
	}
	if c.DB.Driver == "mysql" && c.DB.Database == "" {
		errs = append(errs, "db.database is required for mysql")
	}
	switch c.Push.Provider {
	case "slack", "discord", "none":
	default:
		errs = append(errs, fmt.Sprintf("push.provider must be slack, discord or none, got %q", c.Push.Provider))
	}
	if c.Poll.IntervalMillis >= c.Poll.BudgetSeconds*1000 {
		errs = append(errs, "poll.interval_ms must be smaller than poll.budget_seconds")
	}
	if len(errs) > 0 {
		return fmt.Errorf("config: validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}

// SessionTTL returns the staged-session lifetime as a duration.
func (c *Config) SessionTTL() time.Duration {
	return time.Duration(c.Session.TTLMinutes) * time.Minute
}

// MarkerTTL returns the completion-marker lifetime as a duration.
func (c *Config) MarkerTTL() time.Duration {
	return time.Duration(c.Session.MarkerTTLMinutes) * time.Minute
}

// AccessTTL returns the access-token lifetime as a duration.
func (c *Config) AccessTTL() time.Duration {
	return time.Duration(c.Auth.AccessTTLMins) * time.Minute
}

// RefreshTTL returns the refresh-token lifetime as a duration.
func (c *Config) RefreshTTL() time.Duration {
	return time.Duration(c.Auth.RefreshTTLHours) * time.Hour
}

// PollInterval returns the poller check interval as a duration.
func (c *Config) PollInterval() time.Duration {
	return time.Duration(c.Poll.IntervalMillis) * time.Millisecond
}

// PollBudget returns the poller wall-clock budget as a duration.
func (c *Config) PollBudget() time.Duration {
	return time.Duration(c.Poll.BudgetSeconds) * time.Second
}

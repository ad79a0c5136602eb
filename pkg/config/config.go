package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

// Config represents the complete engine configuration
type Config struct {
	Server        ServerConfig        `yaml:"server" envPrefix:"LAURELS_SERVER_"`
	Catalog       CatalogConfig       `yaml:"catalog" envPrefix:"LAURELS_CATALOG_"`
	Persistence   PersistenceConfig   `yaml:"persistence" envPrefix:"LAURELS_PERSISTENCE_"`
	Rewards       RewardsConfig       `yaml:"rewards" envPrefix:"LAURELS_REWARDS_"`
	Logging       LoggingConfig       `yaml:"logging" envPrefix:"LAURELS_LOG_"`
	Notifications NotificationsConfig `yaml:"notifications" envPrefix:"LAURELS_NOTIFY_"`
	Scheduler     SchedulerConfig     `yaml:"scheduler" envPrefix:"LAURELS_SCHEDULER_"`
}

// ServerConfig contains HTTP server settings
type ServerConfig struct {
	Host         string        `yaml:"host" env:"HOST"`
	Port         int           `yaml:"port" env:"PORT"`
	Environment  string        `yaml:"environment" env:"ENVIRONMENT"`
	ReadTimeout  time.Duration `yaml:"read_timeout" env:"READ_TIMEOUT"`
	WriteTimeout time.Duration `yaml:"write_timeout" env:"WRITE_TIMEOUT"`
}

// CatalogConfig points at the achievement definition source
type CatalogConfig struct {
	Path  string `yaml:"path" env:"PATH"`
	Watch bool   `yaml:"watch" env:"WATCH"`
}

// PersistenceConfig contains progress snapshot settings
type PersistenceConfig struct {
	// Backend is "file" or "sqlite"
	Backend          string `yaml:"backend" env:"BACKEND"`
	Path             string `yaml:"path" env:"PATH"`
	Profile          string `yaml:"profile" env:"PROFILE"`
	SaveOnCompletion bool   `yaml:"save_on_completion" env:"SAVE_ON_COMPLETION"`

	// Backups apply to the sqlite backend only
	BackupDir       string `yaml:"backup_dir" env:"BACKUP_DIR"`
	MaxBackups      int    `yaml:"max_backups" env:"MAX_BACKUPS"`
	CompressBackups bool   `yaml:"compress_backups" env:"COMPRESS_BACKUPS"`
}

// RewardsConfig contains dispatcher settings
type RewardsConfig struct {
	AutoGrant     bool `yaml:"auto_grant" env:"AUTO_GRANT"`
	BatchPerEvent bool `yaml:"batch_per_event" env:"BATCH_PER_EVENT"`
	HistoryLimit  int  `yaml:"history_limit" env:"HISTORY_LIMIT"`
	// PersistHistory writes reward records to sqlite when the sqlite backend is used
	PersistHistory bool `yaml:"persist_history" env:"PERSIST_HISTORY"`
}

// LoggingConfig contains logging settings
type LoggingConfig struct {
	Level      string `yaml:"level" env:"LEVEL"`
	Format     string `yaml:"format" env:"FORMAT"`
	ShowCaller bool   `yaml:"show_caller" env:"SHOW_CALLER"`
}

// NotificationsConfig contains websocket hub settings
type NotificationsConfig struct {
	WebSocket  bool `yaml:"websocket" env:"WEBSOCKET"`
	BufferSize int  `yaml:"buffer_size" env:"BUFFER_SIZE"`
}

// SchedulerConfig contains periodic job settings
type SchedulerConfig struct {
	AutosaveInterval   time.Duration `yaml:"autosave_interval" env:"AUTOSAVE_INTERVAL"`
	ResetCheckInterval time.Duration `yaml:"reset_check_interval" env:"RESET_CHECK_INTERVAL"`
	BackupInterval     time.Duration `yaml:"backup_interval" env:"BACKUP_INTERVAL"`
}

// DefaultConfig returns the configuration used when no file is present
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:         "0.0.0.0",
			Port:         5090,
			Environment:  "production",
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 15 * time.Second,
		},
		Catalog: CatalogConfig{
			Path: "data/achievements.yml",
		},
		Persistence: PersistenceConfig{
			Backend:          "file",
			Path:             "data/progress.json",
			Profile:          "default",
			SaveOnCompletion: true,
			MaxBackups:       20,
			CompressBackups:  true,
		},
		Rewards: RewardsConfig{
			AutoGrant:    true,
			HistoryLimit: 100,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
		Notifications: NotificationsConfig{
			WebSocket:  true,
			BufferSize: 256,
		},
		Scheduler: SchedulerConfig{
			AutosaveInterval:   5 * time.Minute,
			ResetCheckInterval: time.Hour,
			BackupInterval:     6 * time.Hour,
		},
	}
}

// LoadConfig loads configuration from a YAML file on top of the defaults
func LoadConfig(filename string) (*Config, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if err := cfg.applyEnvironmentOverrides(); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// FromEnvironment returns the defaults with environment overrides applied
func FromEnvironment() (*Config, error) {
	cfg := DefaultConfig()
	if err := cfg.applyEnvironmentOverrides(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// applyEnvironmentOverrides applies LAURELS_* variables and development tweaks
func (c *Config) applyEnvironmentOverrides() error {
	if err := env.Parse(c); err != nil {
		return fmt.Errorf("failed to apply environment overrides: %w", err)
	}

	if c.Server.Environment == "development" {
		c.Logging.Level = "debug"
		c.Logging.ShowCaller = true
		c.Scheduler.AutosaveInterval = 30 * time.Second
	}
	return nil
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	var errs []error

	if c.Server.Port < 1 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("invalid port number: %d", c.Server.Port))
	}

	if c.Catalog.Path == "" {
		errs = append(errs, errors.New("catalog path is required"))
	}

	switch c.Persistence.Backend {
	case "file", "sqlite":
	default:
		errs = append(errs, fmt.Errorf("unknown persistence backend: %q", c.Persistence.Backend))
	}

	if c.Persistence.Path == "" {
		errs = append(errs, errors.New("persistence path is required"))
	}

	if c.Rewards.HistoryLimit < 0 {
		errs = append(errs, fmt.Errorf("reward history limit cannot be negative: %d", c.Rewards.HistoryLimit))
	}

	if c.Persistence.MaxBackups < 0 {
		errs = append(errs, fmt.Errorf("max backups cannot be negative: %d", c.Persistence.MaxBackups))
	}

	if c.Scheduler.AutosaveInterval < 0 || c.Scheduler.ResetCheckInterval < 0 || c.Scheduler.BackupInterval < 0 {
		errs = append(errs, errors.New("scheduler intervals cannot be negative"))
	}

	return errors.Join(errs...)
}

// GetAddr returns the server address in host:port format
func (c *Config) GetAddr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

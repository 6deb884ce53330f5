package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the full engine configuration loaded from yaml.
type Config struct {
	Database DatabaseConfig `yaml:"database"`
	Logger   LoggerConfig   `yaml:"logger"`
	Audit    AuditConfig    `yaml:"audit"`
	Engine   EngineConfig   `yaml:"engine"`
}

// Duration accepts yaml duration strings such as "30m" or "1h".
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	parsed, err := time.ParseDuration(value.Value)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", value.Value, err)
	}
	*d = Duration(parsed)
	return nil
}

// Std returns the wrapped time.Duration.
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

// DatabaseConfig selects and tunes the storage engine. Driver is either
// "postgres" or "sqlite"; the storage backend is a dependency-injection
// concern, not baked into the sync logic.
type DatabaseConfig struct {
	Driver          string   `yaml:"driver"`
	DSN             string   `yaml:"dsn"`
	MaxOpenConns    int      `yaml:"max_open_conns"`
	MaxIdleConns    int      `yaml:"max_idle_conns"`
	ConnMaxLifetime Duration `yaml:"conn_max_lifetime"`
}

// GetDSN returns the configured DSN, honoring the DATABASE_DSN override.
func (d DatabaseConfig) GetDSN() string {
	if dsn := os.Getenv("DATABASE_DSN"); dsn != "" {
		return dsn
	}
	return d.DSN
}

// LoggerConfig controls zap initialization.
type LoggerConfig struct {
	Level string `yaml:"level"`
}

// AuditConfig controls the placement-consistency audit job.
type AuditConfig struct {
	Schedule string `yaml:"schedule"`
	Repair   bool   `yaml:"repair"`
}

// EngineConfig holds board defaults applied when a board is created
// without explicit columns.
type EngineConfig struct {
	DefaultColumns []string `yaml:"default_columns"`
}

// Load reads the configuration file and applies defaults.
func Load(path string) (*Config, error) {
	cfg := defaults()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if cfg.Database.GetDSN() == "" {
		return nil, fmt.Errorf("database.dsn is required")
	}
	return cfg, nil
}

func defaults() *Config {
	return &Config{
		Database: DatabaseConfig{
			Driver:          "sqlite",
			DSN:             "board.db",
			MaxOpenConns:    10,
			MaxIdleConns:    5,
			ConnMaxLifetime: Duration(30 * time.Minute),
		},
		Logger: LoggerConfig{Level: "info"},
		Audit: AuditConfig{
			Schedule: "@every 10m",
			Repair:   true,
		},
		Engine: EngineConfig{
			DefaultColumns: []string{"todo", "doing", "done"},
		},
	}
}

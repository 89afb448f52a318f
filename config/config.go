// Package config provides configuration loading and management for QueryTrio.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/querytrio/querytrio/model"
)

// Config represents the complete QueryTrio configuration.
type Config struct {
	Models   *model.RegistryConfig `yaml:"models"`
	Database DatabaseConfig        `yaml:"database"`
	Schema   SchemaConfig          `yaml:"schema"`
	Generate GenerateConfig        `yaml:"generate"`
	Repair   RepairConfig          `yaml:"repair"`
	HTTP     HTTPConfig            `yaml:"http"`
	NATS     NATSConfig            `yaml:"nats"`
}

// DatabaseConfig configures the execution database.
type DatabaseConfig struct {
	// URL is the Postgres connection string.
	// Overridable via QUERYTRIO_DATABASE_URL.
	URL string `yaml:"url"`
	// Dialect is the SQL dialect name interpolated into prompts.
	Dialect string `yaml:"dialect"`
	// QueryTimeout bounds a single query execution.
	QueryTimeout time.Duration `yaml:"query_timeout"`
	// MaxRows caps the number of rows fetched from a result set.
	MaxRows int `yaml:"max_rows"`
}

// SchemaConfig configures the entity-relationship document supplier.
type SchemaConfig struct {
	// Path is the location of the entity-relationship document.
	Path string `yaml:"path"`
	// Watch reloads the document when the file changes.
	Watch bool `yaml:"watch"`
	// DebounceDelay is how long to wait for more changes before reloading.
	DebounceDelay time.Duration `yaml:"debounce_delay"`
}

// GenerateConfig configures candidate generation.
type GenerateConfig struct {
	// RowLimit is interpolated into prompts so generated queries bound
	// their result size.
	RowLimit int `yaml:"row_limit"`
	// Temperature controls generation randomness (0.0-1.0).
	Temperature float64 `yaml:"temperature"`
	// Timeout bounds a single generation call.
	Timeout time.Duration `yaml:"timeout"`
}

// RepairConfig configures the automatic repair loop.
type RepairConfig struct {
	// MaxAttempts bounds repair retries for a single failing candidate.
	MaxAttempts int `yaml:"max_attempts"`
}

// HTTPConfig configures the HTTP API server.
type HTTPConfig struct {
	// Addr is the listen address (e.g., ":8080").
	Addr string `yaml:"addr"`
}

// NATSConfig configures round lifecycle event publishing.
type NATSConfig struct {
	// URL is the NATS server URL (empty = event publishing disabled).
	URL string `yaml:"url"`
	// SubjectPrefix is prepended to all event subjects.
	SubjectPrefix string `yaml:"subject_prefix"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Database: DatabaseConfig{
			Dialect:      "postgresql",
			QueryTimeout: 30 * time.Second,
			MaxRows:      500,
		},
		Schema: SchemaConfig{
			Path:          "schema.md",
			Watch:         false,
			DebounceDelay: 500 * time.Millisecond,
		},
		Generate: GenerateConfig{
			RowLimit:    5,
			Temperature: 0.2,
			Timeout:     2 * time.Minute,
		},
		Repair: RepairConfig{
			MaxAttempts: 3,
		},
		HTTP: HTTPConfig{
			Addr: ":8080",
		},
		NATS: NATSConfig{
			URL:           "",
			SubjectPrefix: "querytrio",
		},
	}
}

// Validate checks that the configuration is valid.
func (c *Config) Validate() error {
	if c.Database.Dialect == "" {
		return fmt.Errorf("database.dialect is required")
	}
	if c.Schema.Path == "" {
		return fmt.Errorf("schema.path is required")
	}
	if c.Generate.RowLimit <= 0 {
		return fmt.Errorf("generate.row_limit must be positive")
	}
	if c.Generate.Temperature < 0 || c.Generate.Temperature > 1 {
		return fmt.Errorf("generate.temperature must be between 0 and 1")
	}
	if c.Repair.MaxAttempts < 1 {
		return fmt.Errorf("repair.max_attempts must be at least 1")
	}
	return nil
}

// Registry builds the model registry by layering the models section over
// the built-in defaults. A partial models section tweaks individual
// capabilities or endpoints without restating the rest.
func (c *Config) Registry() *model.Registry {
	reg := model.NewDefaultRegistry()
	if c.Models != nil {
		reg.MergeFromConfig(c.Models)
	}
	return reg
}

// LoadFromFile loads configuration from a YAML file.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := DefaultConfig()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	return config, nil
}

// SaveToFile saves configuration to a YAML file.
func (c *Config) SaveToFile(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// Merge merges another config into this one (other takes precedence for
// non-zero values).
func (c *Config) Merge(other *Config) {
	if other == nil {
		return
	}

	if other.Models != nil {
		c.Models = other.Models
	}

	if other.Database.URL != "" {
		c.Database.URL = other.Database.URL
	}
	if other.Database.Dialect != "" {
		c.Database.Dialect = other.Database.Dialect
	}
	if other.Database.QueryTimeout != 0 {
		c.Database.QueryTimeout = other.Database.QueryTimeout
	}
	if other.Database.MaxRows != 0 {
		c.Database.MaxRows = other.Database.MaxRows
	}

	if other.Schema.Path != "" {
		c.Schema.Path = other.Schema.Path
	}
	if other.Schema.Watch {
		c.Schema.Watch = true
	}
	if other.Schema.DebounceDelay != 0 {
		c.Schema.DebounceDelay = other.Schema.DebounceDelay
	}

	if other.Generate.RowLimit != 0 {
		c.Generate.RowLimit = other.Generate.RowLimit
	}
	if other.Generate.Temperature != 0 {
		c.Generate.Temperature = other.Generate.Temperature
	}
	if other.Generate.Timeout != 0 {
		c.Generate.Timeout = other.Generate.Timeout
	}

	if other.Repair.MaxAttempts != 0 {
		c.Repair.MaxAttempts = other.Repair.MaxAttempts
	}

	if other.HTTP.Addr != "" {
		c.HTTP.Addr = other.HTTP.Addr
	}

	if other.NATS.URL != "" {
		c.NATS.URL = other.NATS.URL
	}
	if other.NATS.SubjectPrefix != "" {
		c.NATS.SubjectPrefix = other.NATS.SubjectPrefix
	}
}

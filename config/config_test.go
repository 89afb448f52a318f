package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/querytrio/querytrio/model"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	require.NoError(t, cfg.Validate())
	assert.Equal(t, "postgresql", cfg.Database.Dialect)
	assert.Equal(t, 5, cfg.Generate.RowLimit)
	assert.Equal(t, 3, cfg.Repair.MaxAttempts)
	assert.Equal(t, ":8080", cfg.HTTP.Addr)
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:    "empty dialect",
			mutate:  func(c *Config) { c.Database.Dialect = "" },
			wantErr: "database.dialect is required",
		},
		{
			name:    "empty schema path",
			mutate:  func(c *Config) { c.Schema.Path = "" },
			wantErr: "schema.path is required",
		},
		{
			name:    "zero row limit",
			mutate:  func(c *Config) { c.Generate.RowLimit = 0 },
			wantErr: "generate.row_limit must be positive",
		},
		{
			name:    "temperature out of range",
			mutate:  func(c *Config) { c.Generate.Temperature = 1.5 },
			wantErr: "generate.temperature must be between 0 and 1",
		},
		{
			name:    "zero repair attempts",
			mutate:  func(c *Config) { c.Repair.MaxAttempts = 0 },
			wantErr: "repair.max_attempts must be at least 1",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			assert.ErrorContains(t, cfg.Validate(), tt.wantErr)
		})
	}
}

func TestConfig_Merge(t *testing.T) {
	base := DefaultConfig()
	other := &Config{
		Database: DatabaseConfig{
			URL:     "postgres://localhost/app",
			Dialect: "cockroachdb",
		},
		Generate: GenerateConfig{RowLimit: 10},
		NATS:     NATSConfig{URL: "nats://localhost:4222"},
	}

	base.Merge(other)

	assert.Equal(t, "postgres://localhost/app", base.Database.URL)
	assert.Equal(t, "cockroachdb", base.Database.Dialect)
	assert.Equal(t, 10, base.Generate.RowLimit)
	assert.Equal(t, "nats://localhost:4222", base.NATS.URL)
	// Untouched values keep their defaults.
	assert.Equal(t, 3, base.Repair.MaxAttempts)
	assert.Equal(t, 30*time.Second, base.Database.QueryTimeout)
}

func TestLoadFromFile_RoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "querytrio.yaml")

	cfg := DefaultConfig()
	cfg.Database.URL = "postgres://localhost/test"
	cfg.Schema.Path = "docs/er.md"
	require.NoError(t, cfg.SaveToFile(path))

	loaded, err := LoadFromFile(path)
	require.NoError(t, err)
	assert.Equal(t, "postgres://localhost/test", loaded.Database.URL)
	assert.Equal(t, "docs/er.md", loaded.Schema.Path)
}

func TestLoader_EnvOverrides(t *testing.T) {
	t.Setenv("QUERYTRIO_DATABASE_URL", "postgres://env/db")
	t.Setenv("QUERYTRIO_HTTP_ADDR", ":9090")

	// Run from an empty directory so no project config is picked up.
	dir := t.TempDir()
	cwd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(cwd) })

	cfg, err := NewLoader(nil).Load()
	require.NoError(t, err)
	assert.Equal(t, "postgres://env/db", cfg.Database.URL)
	assert.Equal(t, ":9090", cfg.HTTP.Addr)
}

func TestConfig_RegistryLayersOverDefaults(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Models = &model.RegistryConfig{
		Endpoints: map[string]*model.EndpointConfig{
			"local": {Provider: "ollama", Model: "sqlcoder"},
		},
		Defaults: &model.DefaultsConfig{Model: "local"},
	}

	reg := cfg.Registry()
	// The configured endpoint and the built-in ones coexist.
	assert.NotNil(t, reg.GetEndpoint("local"))
	assert.NotNil(t, reg.GetEndpoint("qwen"))

	// No models section still yields a usable registry.
	assert.NotEmpty(t, DefaultConfig().Registry().ListEndpoints())
}

// Package config provides deployment-level configuration for the tile-graph
// engine: settings an operator tunes once per deployment (ring-buffer sizing
// defaults, the storage backend, logging, tracing) as opposed to per-run
// parameters, which arrive as CLI flags (see cmd/tile-graph).
package config

import (
	"bytes"
	"fmt"
	"os"

	"github.com/spf13/viper"
)

// Config holds all deployment configuration for the engine.
type Config struct {
	Engine    EngineConfig    `mapstructure:"engine"`
	Storage   StorageConfig   `mapstructure:"storage"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
	Log       LogConfig       `mapstructure:"log"`
}

// EngineConfig holds runtime pipeline defaults. CLI flags take precedence
// when set explicitly for a given run.
type EngineConfig struct {
	HostTilesRBSize     int64   `mapstructure:"host_tiles_rb_size"`
	ProcessedRBSize     int64   `mapstructure:"processed_rb_size"`
	ReadTilesRBSize     int64   `mapstructure:"read_tiles_rb_size"`
	EdgesStripeSize     int     `mapstructure:"edges_stripe_size"`
	SampleThreshold     float64 `mapstructure:"sample_threshold"`
	MinTileBreakPoint   int     `mapstructure:"min_tile_break_point"`
	VertexLockTableSize int     `mapstructure:"vertex_lock_table_size"`
}

// StorageConfig holds object storage configuration.
type StorageConfig struct {
	Type      string `mapstructure:"type"` // cos or local
	Bucket    string `mapstructure:"bucket"`
	Region    string `mapstructure:"region"`
	SecretID  string `mapstructure:"secret_id"`
	SecretKey string `mapstructure:"secret_key"`
	Domain    string `mapstructure:"domain"`     // e.g., "myqcloud.com"
	Scheme    string `mapstructure:"scheme"`     // e.g., "https" or "http"
	LocalPath string `mapstructure:"local_path"` // for local storage
}

// TelemetryConfig configures the performance-event tracing sidecar.
type TelemetryConfig struct {
	Enabled     bool   `mapstructure:"enabled"`
	ServiceName string `mapstructure:"service_name"`
	Endpoint    string `mapstructure:"endpoint"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level      string `mapstructure:"level"`
	OutputPath string `mapstructure:"output_path"`
	Format     string `mapstructure:"format"` // json or text
}

// Load reads configuration from the specified file path.
func Load(configPath string) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
		v.AddConfigPath("/etc/tile-graph")
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			fmt.Println("Config file not found, using defaults")
		} else if os.IsNotExist(err) {
			fmt.Printf("Config file %s not found, using defaults\n", configPath)
		} else {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

// LoadFromReader loads configuration from an io.Reader (useful for testing).
func LoadFromReader(configType string, content []byte) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigType(configType)
	if err := v.ReadConfig(bytes.NewReader(content)); err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}

// setDefaults sets default configuration values.
func setDefaults(v *viper.Viper) {
	// Engine defaults, mirroring the single-host reference deployment.
	v.SetDefault("engine.host_tiles_rb_size", 64*1024*1024)
	v.SetDefault("engine.processed_rb_size", 64*1024*1024)
	v.SetDefault("engine.read_tiles_rb_size", 64*1024*1024)
	v.SetDefault("engine.edges_stripe_size", 64)
	v.SetDefault("engine.sample_threshold", 0.01)
	v.SetDefault("engine.min_tile_break_point", 256)
	v.SetDefault("engine.vertex_lock_table_size", 4096)

	// Storage defaults
	v.SetDefault("storage.type", "local")
	v.SetDefault("storage.local_path", "./tiles")

	// Telemetry defaults
	v.SetDefault("telemetry.enabled", false)
	v.SetDefault("telemetry.service_name", "tile-graph")

	// Log defaults
	v.SetDefault("log.level", "info")
	v.SetDefault("log.output_path", "")
	v.SetDefault("log.format", "text")
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.Engine.EdgesStripeSize < 1 {
		return fmt.Errorf("edges stripe size must be at least 1")
	}
	if c.Engine.VertexLockTableSize < 1 {
		return fmt.Errorf("vertex lock table size must be at least 1")
	}
	if c.Storage.Type != "" && c.Storage.Type != "local" && c.Storage.Type != "cos" {
		return fmt.Errorf("unsupported storage type: %s", c.Storage.Type)
	}
	return nil
}

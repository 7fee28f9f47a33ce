package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"

	"img-compress-go/internal/codec"
	"img-compress-go/internal/search"
)

// Config represents the main configuration structure
type Config struct {
	OutputDirectory string            `mapstructure:"output_directory"`
	Format          string            `mapstructure:"format"`
	TargetKB        int               `mapstructure:"target_kb"`
	Quality         QualityConfig     `mapstructure:"quality"`
	Background      string            `mapstructure:"background"`
	Force           bool              `mapstructure:"force"`
	SkipMarked      bool              `mapstructure:"skip_marked"`
	Performance     PerformanceConfig `mapstructure:"performance"`
	Logging         LoggingConfig     `mapstructure:"logging"`
}

// QualityConfig contains the search bounds for lossy formats
type QualityConfig struct {
	Min int `mapstructure:"min"`
	Max int `mapstructure:"max"`
}

// PerformanceConfig contains performance tuning settings
type PerformanceConfig struct {
	WorkerThreads int `mapstructure:"worker_threads"`
}

// LoggingConfig contains logging settings
type LoggingConfig struct {
	Level      string `mapstructure:"level"`
	FilePath   string `mapstructure:"file_path"`
	MaxSize    int    `mapstructure:"max_size"` // MB
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAge     int    `mapstructure:"max_age"` // days
	Compress   bool   `mapstructure:"compress"`
}

// DefaultConfig returns a configuration with default values
func DefaultConfig() *Config {
	return &Config{
		OutputDirectory: "./output",
		Format:          "jpg",
		Quality: QualityConfig{
			Min: 25,
			Max: 95,
		},
		Background: "#ffffff",
		Force:      false,
		SkipMarked: true,
		Performance: PerformanceConfig{
			WorkerThreads: 0, // 0 means NumCPU
		},
		Logging: LoggingConfig{
			Level:      "info",
			FilePath:   "img-compress.log",
			MaxSize:    10,
			MaxBackups: 3,
			MaxAge:     30,
			Compress:   true,
		},
	}
}

// LoadConfig loads configuration from file and environment variables
func LoadConfig(configPath string) (*Config, error) {
	config := DefaultConfig()

	viper.SetConfigType("yaml")

	if configPath != "" {
		viper.SetConfigFile(configPath)
	} else {
		viper.SetConfigName("config")
		viper.AddConfigPath(".")
		viper.AddConfigPath("$HOME/.img-compress")
		viper.AddConfigPath("/etc/img-compress")
	}

	viper.SetEnvPrefix("IMG_COMPRESS")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		// Config file not found is OK, we'll use defaults
	}

	if err := viper.Unmarshal(config); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return config, nil
}

// Validate validates the configuration. The target itself is allowed to
// be zero here because serve mode takes it per request; the compressor
// rejects a missing target before any probe.
func (c *Config) Validate() error {
	if _, err := search.ParseFormat(c.Format); err != nil {
		return err
	}

	if err := c.Bounds().Validate(); err != nil {
		return err
	}

	if c.TargetKB < 0 {
		return fmt.Errorf("target_kb must not be negative: %d", c.TargetKB)
	}

	if _, err := codec.ParseHexColor(c.Background); err != nil {
		return err
	}

	if c.Performance.WorkerThreads < 0 {
		c.Performance.WorkerThreads = 0
	}

	validLogLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLogLevels[strings.ToLower(c.Logging.Level)] {
		return fmt.Errorf("invalid log level: %s (valid: debug, info, warn, error)", c.Logging.Level)
	}

	return nil
}

// Bounds returns the configured quality bounds as search bounds.
func (c *Config) Bounds() search.Bounds {
	return search.Bounds{Min: c.Quality.Min, Max: c.Quality.Max}
}

// TargetBytes converts the configured KB target to bytes.
func (c *Config) TargetBytes() int64 {
	return int64(c.TargetKB) * 1024
}

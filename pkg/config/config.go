/*
Copyright © 2025 NAME HERE <EMAIL ADDRESS>
*/
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v3"
)

// Config represents the binderdump configuration
type Config struct {
	DataDir string  `yaml:"data_dir"`
	Capture Capture `yaml:"capture"`
	Metrics Metrics `yaml:"metrics"`
	Logging Logging `yaml:"logging"`
}

// Capture configures the event source and the capture pipeline.
type Capture struct {
	BPFObject         string        `yaml:"bpf_object"`
	RingBufferMap     string        `yaml:"ring_buffer_map"`
	Output            string        `yaml:"output"`
	ChannelSize       int           `yaml:"channel_size"`
	AggregatorTimeout time.Duration `yaml:"aggregator_timeout"`
	ProcRoot          string        `yaml:"proc_root"`
	ProcessCacheSize  int           `yaml:"process_cache_size"`
	// SpoolPath, when set, receives every raw sample for later replay.
	SpoolPath          string        `yaml:"spool_path"`
	SpoolFsyncInterval time.Duration `yaml:"spool_fsync_interval"`
	VerifyOffsets      bool          `yaml:"verify_offsets"`
}

// Metrics configures the Prometheus endpoint served during capture.
type Metrics struct {
	Enabled bool   `yaml:"enabled"`
	Bind    string `yaml:"bind"`
	Port    int    `yaml:"port"`
}

// Logging contains logging configuration
type Logging struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// DefaultConfig returns a default configuration
func DefaultConfig() *Config {
	return &Config{
		DataDir: "./data",
		Capture: Capture{
			BPFObject:          "binderdump.bpf.o",
			RingBufferMap:      "binder_events_buffer",
			Output:             "binderdump.pcapng",
			ChannelSize:        4096,
			AggregatorTimeout:  0,
			ProcRoot:           "/proc",
			ProcessCacheSize:   4096,
			SpoolFsyncInterval: time.Second,
		},
		Metrics: Metrics{
			Enabled: false,
			Bind:    "127.0.0.1",
			Port:    9464,
		},
		Logging: Logging{
			Level:  "info",
			Format: "json",
		},
	}
}

// Validate reports every invalid setting at once.
func (c *Config) Validate() error {
	var errs []error
	if c.DataDir == "" {
		errs = append(errs, errors.New("data_dir is required"))
	}
	if c.Capture.BPFObject == "" {
		errs = append(errs, errors.New("capture.bpf_object is required"))
	}
	if c.Capture.RingBufferMap == "" {
		errs = append(errs, errors.New("capture.ring_buffer_map is required"))
	}
	if c.Capture.Output == "" {
		errs = append(errs, errors.New("capture.output is required"))
	}
	if c.Capture.ChannelSize <= 0 {
		errs = append(errs, fmt.Errorf("capture.channel_size must be positive, got %d", c.Capture.ChannelSize))
	}
	if c.Capture.ProcessCacheSize <= 0 {
		errs = append(errs, fmt.Errorf("capture.process_cache_size must be positive, got %d", c.Capture.ProcessCacheSize))
	}
	if c.Capture.AggregatorTimeout < 0 {
		errs = append(errs, errors.New("capture.aggregator_timeout must not be negative"))
	}
	if c.Capture.SpoolFsyncInterval < 0 {
		errs = append(errs, errors.New("capture.spool_fsync_interval must not be negative"))
	}
	if c.Metrics.Enabled && (c.Metrics.Port <= 0 || c.Metrics.Port > 65535) {
		errs = append(errs, fmt.Errorf("metrics.port out of range: %d", c.Metrics.Port))
	}
	if _, err := zapcore.ParseLevel(c.Logging.Level); err != nil {
		errs = append(errs, fmt.Errorf("logging.level: %w", err))
	}
	switch c.Logging.Format {
	case "", "json", "console":
	default:
		errs = append(errs, fmt.Errorf("logging.format must be json or console, got %q", c.Logging.Format))
	}
	return multierr.Combine(errs...)
}

// CatalogDir is where the session catalog lives.
func (c *Config) CatalogDir() string {
	return filepath.Join(c.DataDir, "catalog")
}

// LoadConfig loads configuration from the specified path. Missing keys
// keep their default values.
func LoadConfig(configPath string) (*Config, error) {
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return nil, fmt.Errorf("config file does not exist: %s", configPath)
	}

	if !filepath.IsAbs(configPath) {
		absPath, err := filepath.Abs(configPath)
		if err != nil {
			return nil, fmt.Errorf("invalid config path: %w", err)
		}
		configPath = absPath
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := DefaultConfig()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	return config, nil
}

// SaveConfig saves the configuration to the specified path
func SaveConfig(config *Config, configPath string) error {
	configDir := filepath.Dir(configPath)
	if err := os.MkdirAll(configDir, 0750); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(config)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(configPath, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// BootstrapConfig writes a default configuration rooted at dataDir and
// creates the data directory.
func BootstrapConfig(configPath string, dataDir string) (*Config, error) {
	config := DefaultConfig()
	if dataDir != "" {
		config.DataDir = dataDir
	}
	config.Capture.Output = filepath.Join(config.DataDir, "binderdump.pcapng")

	if err := os.MkdirAll(config.DataDir, 0750); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}
	if err := SaveConfig(config, configPath); err != nil {
		return nil, fmt.Errorf("failed to save bootstrap config: %w", err)
	}

	return config, nil
}

// GetDefaultConfigPath returns the default configuration path for the current platform
func GetDefaultConfigPath() string {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "./binderdump.yaml"
	}

	// ~/.config/binderdump/config.yaml
	configDir := filepath.Join(homeDir, ".config", "binderdump")
	return filepath.Join(configDir, "config.yaml")
}

// ConfigExists checks if a configuration file exists
func ConfigExists(configPath string) bool {
	_, err := os.Stat(configPath)
	return !os.IsNotExist(err)
}

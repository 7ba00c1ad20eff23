package config

import (
	"fmt"
	"os"
	"slices"
	"strings"
	"time"

	"github.com/mcuadros/go-defaults"
	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

// Supported output formats
var OutputFormats = []string{"table", "json", "hex"}

// Config holds application configuration
type Config struct {
	LogLevel string `yaml:"log_level" json:"log_level" default:"info"`

	Model   string `yaml:"model" json:"model" default:"ganglion"`
	Address string `yaml:"address" json:"address"`
	Adapter int    `yaml:"adapter" json:"adapter" default:"0"`

	ScanWindow      time.Duration `yaml:"scan_window" json:"scan_window" default:"2s"`
	ScanSettle      time.Duration `yaml:"scan_settle" json:"scan_settle" default:"500ms"`
	ScanJoinTimeout time.Duration `yaml:"scan_join_timeout" json:"scan_join_timeout" default:"1s"`

	// OperationTimeout overrides the per-model timeout when non-zero
	OperationTimeout time.Duration `yaml:"operation_timeout" json:"operation_timeout"`

	QueueCapacity   uint32 `yaml:"queue_capacity" json:"queue_capacity" default:"4096"`
	LegacyStopToken bool   `yaml:"legacy_stop_token" json:"legacy_stop_token" default:"true"`
	// KeepPairing skips the unpair step of session teardown
	KeepPairing bool `yaml:"keep_pairing" json:"keep_pairing" default:"false"`

	OutputFormat string        `yaml:"output_format" json:"output_format" default:"hex"`
	MetricsAddr  string        `yaml:"metrics_addr" json:"metrics_addr"`
	PollInterval time.Duration `yaml:"poll_interval" json:"poll_interval" default:"5ms"`
}

// DefaultConfig returns default configuration values
func DefaultConfig() *Config {
	cfg := &Config{}
	defaults.SetDefaults(cfg)
	return cfg
}

// Load reads a YAML file over the defaults. Keys absent from the file keep
// their default values.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks value ranges
func (c *Config) Validate() error {
	if _, err := c.Level(); err != nil {
		return err
	}
	if strings.TrimSpace(c.Model) == "" {
		return fmt.Errorf("model cannot be empty")
	}
	if c.Adapter < 0 {
		return fmt.Errorf("adapter must be >= 0, got %d", c.Adapter)
	}
	if c.ScanWindow <= 0 {
		return fmt.Errorf("scan_window must be > 0")
	}
	if c.ScanJoinTimeout <= 0 {
		return fmt.Errorf("scan_join_timeout must be > 0")
	}
	if c.ScanSettle < 0 || c.OperationTimeout < 0 {
		return fmt.Errorf("durations cannot be negative")
	}
	if c.QueueCapacity == 0 {
		return fmt.Errorf("queue_capacity must be > 0")
	}
	if c.PollInterval <= 0 {
		return fmt.Errorf("poll_interval must be > 0")
	}
	if !slices.Contains(OutputFormats, c.OutputFormat) {
		return fmt.Errorf("output_format must be one of %s, got %q", strings.Join(OutputFormats, ", "), c.OutputFormat)
	}
	return nil
}

// Level parses LogLevel
func (c *Config) Level() (logrus.Level, error) {
	lvl, err := logrus.ParseLevel(c.LogLevel)
	if err != nil {
		return logrus.InfoLevel, fmt.Errorf("invalid log_level %q: %w", c.LogLevel, err)
	}
	return lvl, nil
}

// NewLogger creates a configured logger instance
func (c *Config) NewLogger() *logrus.Logger {
	logger := logrus.New()
	lvl, err := c.Level()
	if err != nil {
		lvl = logrus.InfoLevel
	}
	logger.SetLevel(lvl)

	// Use structured logging format
	logger.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: time.RFC3339,
	})

	return logger
}

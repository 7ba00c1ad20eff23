package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	require.NotNil(t, cfg)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "ganglion", cfg.Model)
	assert.Equal(t, 2*time.Second, cfg.ScanWindow)
	assert.Equal(t, 500*time.Millisecond, cfg.ScanSettle)
	assert.Equal(t, time.Second, cfg.ScanJoinTimeout)
	assert.Zero(t, cfg.OperationTimeout, "operation timeout MUST default to the model value")
	assert.Equal(t, uint32(4096), cfg.QueueCapacity)
	assert.True(t, cfg.LegacyStopToken)
	assert.False(t, cfg.KeepPairing, "close MUST unpair by default")
	assert.Equal(t, "hex", cfg.OutputFormat)
	assert.NoError(t, cfg.Validate())
}

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "bioble.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoad_OverridesOnlyPresentKeys(t *testing.T) {
	path := writeConfig(t, `
model: brainalive
address: "AA:BB:CC:DD:EE:FF"
scan_window: 5s
operation_timeout: 8s
legacy_stop_token: false
queue_capacity: 128
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "brainalive", cfg.Model)
	assert.Equal(t, "AA:BB:CC:DD:EE:FF", cfg.Address)
	assert.Equal(t, 5*time.Second, cfg.ScanWindow)
	assert.Equal(t, 8*time.Second, cfg.OperationTimeout)
	assert.False(t, cfg.LegacyStopToken, "explicit false MUST survive defaults")
	assert.Equal(t, uint32(128), cfg.QueueCapacity)
	assert.Equal(t, time.Second, cfg.ScanJoinTimeout, "absent keys MUST keep defaults")
	assert.Equal(t, "info", cfg.LogLevel)
}

func TestLoad_Errors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	_, err = Load(writeConfig(t, "model: [unterminated"))
	assert.ErrorContains(t, err, "failed to parse")

	_, err = Load(writeConfig(t, "output_format: xml"))
	assert.ErrorContains(t, err, "output_format")
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		errMsg string
	}{
		{"bad log level", func(c *Config) { c.LogLevel = "loud" }, "log_level"},
		{"empty model", func(c *Config) { c.Model = " " }, "model"},
		{"negative adapter", func(c *Config) { c.Adapter = -1 }, "adapter"},
		{"zero window", func(c *Config) { c.ScanWindow = 0 }, "scan_window"},
		{"zero join timeout", func(c *Config) { c.ScanJoinTimeout = 0 }, "scan_join_timeout"},
		{"negative settle", func(c *Config) { c.ScanSettle = -time.Second }, "negative"},
		{"zero capacity", func(c *Config) { c.QueueCapacity = 0 }, "queue_capacity"},
		{"zero poll", func(c *Config) { c.PollInterval = 0 }, "poll_interval"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			assert.ErrorContains(t, cfg.Validate(), tt.errMsg)
		})
	}
}

func TestConfig_NewLogger(t *testing.T) {
	tests := []struct {
		level string
		want  logrus.Level
	}{
		{"debug", logrus.DebugLevel},
		{"info", logrus.InfoLevel},
		{"warn", logrus.WarnLevel},
		{"error", logrus.ErrorLevel},
		{"garbage", logrus.InfoLevel},
	}

	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			cfg := &Config{LogLevel: tt.level}

			logger := cfg.NewLogger()

			assert.NotNil(t, logger)
			assert.Equal(t, tt.want, logger.GetLevel())

			formatter, ok := logger.Formatter.(*logrus.TextFormatter)
			assert.True(t, ok)
			assert.True(t, formatter.FullTimestamp)
			assert.Equal(t, time.RFC3339, formatter.TimestampFormat)
		})
	}
}

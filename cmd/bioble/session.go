package main

import (
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/srg/bioble/internal/catalog"
	"github.com/srg/bioble/internal/devicefactory"
	"github.com/srg/bioble/pkg/config"
	"github.com/srg/bioble/pkg/headset"
	"github.com/srg/bioble/scanner"
)

// session carries what every device-facing command needs.
type session struct {
	cfg     *config.Config
	profile catalog.Profile
	logger  *logrus.Logger
	backend *devicefactory.Backend
}

// loadConfig reads --config when given, otherwise the defaults. The second
// result reports whether a file was read.
func loadConfig(cmd *cobra.Command) (*config.Config, bool, error) {
	path, _ := cmd.Flags().GetString("config")
	if path == "" {
		return config.DefaultConfig(), false, nil
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, false, err
	}
	return cfg, true, nil
}

// applyGlobalFlags copies explicitly set global flags over cfg.
func applyGlobalFlags(cmd *cobra.Command, cfg *config.Config) {
	flags := cmd.Flags()
	if flags.Changed("model") {
		cfg.Model, _ = flags.GetString("model")
	}
	if flags.Changed("address") {
		cfg.Address, _ = flags.GetString("address")
	}
	if flags.Changed("adapter") {
		cfg.Adapter, _ = flags.GetInt("adapter")
	}
}

// newSession resolves configuration, logger, profile and radio backend.
// override applies command-specific flags before validation.
func newSession(cmd *cobra.Command, override func(cfg *config.Config)) (*session, error) {
	cfg, fromFile, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	applyGlobalFlags(cmd, cfg)
	if override != nil {
		override(cfg)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	fallback := ""
	if fromFile {
		fallback = cfg.LogLevel
	}
	logger, err := configureLogger(cmd, "verbose", fallback)
	if err != nil {
		return nil, err
	}

	profile, err := catalog.Default().Lookup(cfg.Model)
	if err != nil {
		return nil, err
	}

	// All arguments validated - don't show usage on runtime errors
	cmd.SilenceUsage = true

	simulate, _ := cmd.Flags().GetBool("simulate")
	backend, err := devicefactory.BackendFactory(profile, devicefactory.Options{
		Adapter:  cfg.Adapter,
		Simulate: simulate,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to open Bluetooth backend: %w", err)
	}

	return &session{cfg: cfg, profile: profile, logger: logger, backend: backend}, nil
}

// Close releases the backend.
func (s *session) Close() {
	if err := s.backend.Close(); err != nil {
		s.logger.WithError(err).Warn("Failed to release Bluetooth backend")
	}
}

func (s *session) scanOptions() scanner.Options {
	opts := scanner.Options{
		Window:      s.cfg.ScanWindow,
		Settle:      s.cfg.ScanSettle,
		JoinTimeout: s.cfg.ScanJoinTimeout,
	}
	if opts.Settle == 0 {
		opts.Settle = -1
	}
	return opts
}

func (s *session) clientOptions() headset.Options {
	opts := headset.DefaultOptions()
	opts.OperationTimeout = s.cfg.OperationTimeout
	opts.Scan = s.scanOptions()
	opts.QueueCapacity = s.cfg.QueueCapacity
	opts.LegacyStopToken = s.cfg.LegacyStopToken
	opts.KeepPairingOnClose = s.cfg.KeepPairing
	return opts
}

func (s *session) newScanner() (*scanner.Scanner, error) {
	return scanner.NewScanner(s.backend.Central, s.logger)
}

func (s *session) newClient() (*headset.Client, error) {
	return headset.NewClient(s.profile, s.backend.Central, s.backend.Pairer, s.clientOptions(), s.logger)
}

//go:build test

package main

import (
	"bytes"
	"os"
	"path/filepath"
	"time"

	"github.com/fatih/color"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/srg/bioble/internal/catalog"
	"github.com/srg/bioble/internal/devicefactory"
	"github.com/srg/bioble/internal/device/simulator"
	"github.com/stretchr/testify/suite"
)

// testConfig keeps discovery and polling fast against the simulator.
const testConfig = `
scan_window: 400ms
scan_settle: 0s
scan_join_timeout: 200ms
operation_timeout: 500ms
poll_interval: 2ms
`

// CommandTestSuite runs commands against the in-process simulator.
// All cmd/bioble test suites should embed this.
type CommandTestSuite struct {
	suite.Suite

	// SimOptions configures the simulator created by the next command
	SimOptions simulator.Options
	// Sim is the simulator created by the last command
	Sim *simulator.Headset
	// Stderr holds what the last command wrote to its error stream
	Stderr string

	configPath      string
	originalFactory func(catalog.Profile, devicefactory.Options, *logrus.Logger) (*devicefactory.Backend, error)
}

func (s *CommandTestSuite) SetupSuite() {
	color.NoColor = true

	s.configPath = filepath.Join(s.T().TempDir(), "bioble.yaml")
	s.Require().NoError(os.WriteFile(s.configPath, []byte(testConfig), 0o600), "config file MUST be written")
}

func (s *CommandTestSuite) SetupTest() {
	s.SimOptions = simulator.Options{
		AdvertiseInterval: 10 * time.Millisecond,
		SampleInterval:    2 * time.Millisecond,
		Seed:              1,
	}
	s.Sim = nil
	s.Stderr = ""

	s.originalFactory = devicefactory.BackendFactory
	devicefactory.BackendFactory = func(profile catalog.Profile, _ devicefactory.Options, logger *logrus.Logger) (*devicefactory.Backend, error) {
		s.Sim = simulator.New(profile, s.SimOptions, logger)
		return &devicefactory.Backend{Central: s.Sim, Pairer: s.Sim}, nil
	}

	resetFlags(rootCmd)
}

func (s *CommandTestSuite) TearDownTest() {
	devicefactory.BackendFactory = s.originalFactory
}

// resetFlags restores every flag of cmd and its subcommands to its default.
func resetFlags(cmd *cobra.Command) {
	reset := func(f *pflag.Flag) {
		_ = f.Value.Set(f.DefValue)
		f.Changed = false
	}
	cmd.Flags().VisitAll(reset)
	cmd.PersistentFlags().VisitAll(reset)
	for _, sub := range cmd.Commands() {
		resetFlags(sub)
	}
}

// ExecuteCommand runs the root command with args and the test configuration,
// returns stdout and error. Stderr is kept in s.Stderr.
func (s *CommandTestSuite) ExecuteCommand(args ...string) (string, error) {
	var stdout, stderr bytes.Buffer
	rootCmd.SetOut(&stdout)
	rootCmd.SetErr(&stderr)
	rootCmd.SetArgs(append([]string{"--config=" + s.configPath}, args...))
	defer func() {
		rootCmd.SetOut(nil)
		rootCmd.SetErr(nil)
		rootCmd.SetArgs(nil)
	}()

	err := rootCmd.Execute()
	s.Stderr = stderr.String()
	return stdout.String(), err
}

// writtenTokens returns every payload the simulator received as a string.
func (s *CommandTestSuite) writtenTokens() []string {
	s.Require().NotNil(s.Sim, "simulator MUST have been created")
	conn := s.Sim.Active()
	s.Require().NotNil(conn, "a connection MUST have been dialled")

	var out []string
	for _, w := range conn.Writes() {
		out = append(out, string(w))
	}
	return out
}

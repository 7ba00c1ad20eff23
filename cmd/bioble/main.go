package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"unicode"

	"github.com/spf13/cobra"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// formatVersion adds 'v' prefix if version starts with a digit
func formatVersion(ver string) string {
	if len(ver) > 0 && unicode.IsDigit(rune(ver[0])) {
		return "v" + ver
	}
	return ver
}

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "bioble",
	Short: "BLE biosignal headset client",
	Long: `Command-line client for Bluetooth Low Energy EEG headsets that provides:

- Discover supported headsets (Ganglion, BrainAlive) nearby
- Pair and unpair through the platform pairing agent
- Stream raw sample packets as hex or JSON lines
- Send board configuration commands
- Export stream counters for Prometheus

Use --simulate to run every command against an in-process simulated headset.`,
	Version: formatVersion(version),
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		// Ctrl+C is a normal exit, not an error - exit silently
		if errors.Is(err, context.Canceled) {
			return
		}
		fmt.Fprintf(os.Stderr, "ERROR: %s\n", FormatUserError(err))
		os.Exit(1)
	}
}

func init() {
	// Silence Cobra's "Error:" prefix - main() prints clean errors
	rootCmd.SilenceErrors = true
	rootCmd.SetVersionTemplate(fmt.Sprintf("bioble %s (commit %s, built %s)\n", formatVersion(version), commit, date))

	rootCmd.AddCommand(profilesCmd)
	rootCmd.AddCommand(scanCmd)
	rootCmd.AddCommand(streamCmd)
	rootCmd.AddCommand(configBoardCmd)
	rootCmd.AddCommand(pairCmd)
	rootCmd.AddCommand(unpairCmd)

	// Global flags
	flags := rootCmd.PersistentFlags()
	flags.String("log-level", "", "Log level (debug, info, warn, error)")
	flags.Bool("verbose", false, "Enable debug logging")
	flags.String("config", "", "Path to a YAML configuration file")
	flags.StringP("model", "m", "", "Headset model (see 'bioble profiles')")
	flags.StringP("address", "a", "", "Device address or address fragment")
	flags.Int("adapter", 0, "HCI adapter index")
	flags.Bool("simulate", false, "Use an in-process simulated headset")

	// Add -v as a short flag for --version
	rootCmd.Flags().BoolP("version", "v", false, "Show version information")
}

package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/srg/bioble/internal/catalog"
	"github.com/srg/bioble/internal/device"
	"github.com/srg/bioble/pkg/config"
	"github.com/srg/bioble/scanner"
)

// scanCmd represents the scan command
var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Scan for headsets",
	Long: `Scan for and display headsets of the selected model in the vicinity.

Devices are matched by advertised name (model prefix or alternate name) and
optionally by an address fragment. Use --all to list every advertiser.`,
	Args: cobra.NoArgs,
	RunE: runScan,
}

var (
	scanDuration time.Duration
	scanFormat   string
	scanAll      bool
	scanWatch    bool
)

func init() {
	scanCmd.Flags().DurationVarP(&scanDuration, "duration", "d", 5*time.Second, "Scan duration")
	scanCmd.Flags().StringVarP(&scanFormat, "format", "f", "table", "Output format (table, json)")
	scanCmd.Flags().BoolVar(&scanAll, "all", false, "List every advertiser, not only the selected model")
	scanCmd.Flags().BoolVarP(&scanWatch, "watch", "w", false, "Print discovery events as they arrive")
}

func runScan(cmd *cobra.Command, _ []string) error {
	if err := validateFormat(scanFormat, []string{"table", "json"}); err != nil {
		return err
	}
	if scanDuration <= 0 {
		return fmt.Errorf("scan duration must be > 0")
	}

	sess, err := newSession(cmd, func(cfg *config.Config) {
		cfg.ScanWindow = scanDuration
	})
	if err != nil {
		return err
	}
	defer sess.Close()

	s, err := sess.newScanner()
	if err != nil {
		return fmt.Errorf("failed to create BLE scanner: %w", err)
	}
	defer s.Close()

	filter := scanner.Filter{Address: sess.cfg.Address}
	if !scanAll {
		filter.Profile = sess.profile
	}

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	// Listen for Ctrl+C to cancel
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		select {
		case <-sigCh:
			cancel()
		case <-ctx.Done():
		}
	}()

	out := cmd.OutOrStdout()
	watchDone := make(chan struct{})
	if scanWatch {
		go func() {
			defer close(watchDone)
			printEvents(ctx, out, s.Events())
		}()
	} else {
		close(watchDone)
	}

	progress := NewCountdownProgressPrinter(os.Stderr, fmt.Sprintf("Scanning for %s devices", modelLabel(filter.Profile)), "Scanning", scanDuration)
	progress.Start()
	devices, err := s.ScanAll(ctx, filter, scanDuration)
	progress.Stop()

	cancel()
	<-watchDone
	if scanWatch {
		drainEvents(out, s.Events())
	}
	if err != nil {
		return err
	}

	if scanFormat == "json" {
		return writeJSON(out, devices)
	}
	return displayDevicesTable(out, devices)
}

func modelLabel(p catalog.Profile) string {
	if p.Model == "" {
		return "BLE"
	}
	return p.Model
}

func formatEvent(ev scanner.DeviceEvent) string {
	d := ev.Descriptor
	return fmt.Sprintf("%-7s %s %s %d dBm", ev.Type, d.Address, d.Name, d.RSSI)
}

func printEvents(ctx context.Context, w io.Writer, events <-chan scanner.DeviceEvent) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			fmt.Fprintln(w, formatEvent(ev))
		}
	}
}

// drainEvents prints events that were queued after the watcher stopped.
func drainEvents(w io.Writer, events <-chan scanner.DeviceEvent) {
	for {
		select {
		case ev, ok := <-events:
			if !ok {
				return
			}
			fmt.Fprintln(w, formatEvent(ev))
		default:
			return
		}
	}
}

func displayDevicesTable(w io.Writer, devices []device.Descriptor) error {
	if len(devices) == 0 {
		fmt.Fprintln(w, "No devices discovered")
		return nil
	}

	tw := newTable(w)
	fmt.Fprintln(tw, "NAME\tADDRESS\tRSSI\tCONNECTABLE")
	for _, d := range devices {
		name := d.Name
		if len(name) > 24 {
			name = name[:21] + "..."
		}
		fmt.Fprintf(tw, "%s\t%s\t%d dBm\t%t\n", name, d.Address, d.RSSI, d.Connectable)
	}
	return tw.Flush()
}

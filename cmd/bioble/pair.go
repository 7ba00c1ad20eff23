package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"github.com/srg/bioble/internal/device"
	"github.com/srg/bioble/pkg/status"
	"github.com/srg/bioble/scanner"
)

// pairCmd pairs with a headset through the platform pairing agent
var pairCmd = &cobra.Command{
	Use:   "pair",
	Short: "Pair with a headset",
	Long: `Discover a headset of the selected model and pair with it through the
platform pairing agent. Devices that are already paired, or that do not
require pairing, are reported as already_paired.`,
	Args: cobra.NoArgs,
	RunE: runPair,
}

// unpairCmd removes the platform pairing of a headset
var unpairCmd = &cobra.Command{
	Use:   "unpair",
	Short: "Remove the pairing with a headset",
	Args:  cobra.NoArgs,
	RunE:  runUnpair,
}

// pairTarget discovers the device to (un)pair and returns its address.
func (s *session) pairTarget(ctx context.Context) (string, error) {
	if s.backend.Pairer == nil {
		return "", fmt.Errorf("%w: no pairing agent on this platform", device.ErrUnsupported)
	}

	sc, err := s.newScanner()
	if err != nil {
		return "", fmt.Errorf("failed to create BLE scanner: %w", err)
	}
	defer sc.Close()

	desc, err := sc.Find(ctx, scanner.Filter{Profile: s.profile, Address: s.cfg.Address}, s.scanOptions())
	if err != nil {
		return "", status.New(status.General, "discover", err)
	}
	if desc == nil {
		return "", status.New(status.NotFound, "discover", fmt.Errorf("no %s headset advertised within %s", s.profile.Model, s.cfg.ScanWindow))
	}
	return desc.Address, nil
}

func (s *session) operationTimeout() time.Duration {
	if s.cfg.OperationTimeout > 0 {
		return s.cfg.OperationTimeout
	}
	return s.profile.OperationTimeout
}

func runPair(cmd *cobra.Command, _ []string) error {
	sess, err := newSession(cmd, nil)
	if err != nil {
		return err
	}
	defer sess.Close()

	address, err := sess.pairTarget(cmd.Context())
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), sess.operationTimeout())
	defer cancel()

	label := "pair " + address
	info, err := sess.backend.Pairer.PairingInfo(ctx, address)
	if err != nil {
		return status.New(status.General, "pair", err)
	}
	if info.Paired || !info.CanPair {
		printStatus(cmd.OutOrStdout(), label, status.ErrAlreadyPaired)
		return nil
	}

	err = sess.backend.Pairer.Pair(ctx, address)
	if errors.Is(err, context.DeadlineExceeded) {
		err = status.New(status.Timeout, "pair", err)
	} else if err != nil {
		err = status.New(status.General, "pair", err)
	}
	printStatus(cmd.OutOrStdout(), label, err)
	return err
}

func runUnpair(cmd *cobra.Command, _ []string) error {
	sess, err := newSession(cmd, nil)
	if err != nil {
		return err
	}
	defer sess.Close()

	address, err := sess.pairTarget(cmd.Context())
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), sess.operationTimeout())
	defer cancel()

	label := "unpair " + address
	err = sess.backend.Pairer.Unpair(ctx, address)
	switch {
	case err == nil:
		printStatus(cmd.OutOrStdout(), label, nil)
		return nil
	case errors.Is(err, device.ErrNotPaired):
		printStatus(cmd.OutOrStdout(), label, status.ErrNotPaired)
		return nil
	case errors.Is(err, device.ErrUnsupported):
		return fmt.Errorf("unpair is not supported here, remove the device in the system Bluetooth settings: %w", err)
	default:
		return status.New(status.General, "unpair", err)
	}
}

// Package devicefactory selects the radio backend a headset client talks to:
// the platform Bluetooth stack through go-ble, or the in-process simulator.
package devicefactory

import (
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/srg/bioble/internal/catalog"
	"github.com/srg/bioble/internal/device"
	goble "github.com/srg/bioble/internal/device/go-ble"
	"github.com/srg/bioble/internal/device/simulator"
)

// Options select and tune a backend.
type Options struct {
	Adapter   int  // HCI adapter index, also used to derive the BlueZ adapter name
	Simulate  bool // use the in-process simulator instead of the platform stack
	Simulator simulator.Options
}

// Backend bundles the central and the pairing agent of one radio.
type Backend struct {
	Central device.Central
	Pairer  device.Pairer // nil when the platform offers no pairing agent

	stop func() error
}

// Close releases the platform device. Safe to call on a nil Backend.
func (b *Backend) Close() error {
	if b == nil || b.stop == nil {
		return nil
	}
	stop := b.stop
	b.stop = nil
	return stop()
}

// BackendFactory creates the backend for profile.
// This is a variable so that it can be overridden in tests.
var BackendFactory = func(profile catalog.Profile, opts Options, logger *logrus.Logger) (*Backend, error) {
	if logger == nil {
		logger = logrus.New()
	}

	if opts.Simulate {
		sim := simulator.New(profile, opts.Simulator, logger)
		logger.WithFields(logrus.Fields{
			"model":   profile.Model,
			"address": sim.Address(),
		}).Info("Using simulated headset")
		return &Backend{Central: sim, Pairer: sim}, nil
	}

	central, err := goble.NewCentral(opts.Adapter, logger)
	if err != nil {
		return nil, err
	}

	// Pairing is optional: without an agent the client treats the device as already paired.
	pairer, err := goble.NewPairer(fmt.Sprintf("hci%d", opts.Adapter), logger)
	if err != nil {
		logger.WithError(err).Warn("Pairing agent unavailable, continuing without pairing")
		pairer = nil
	}

	return &Backend{Central: central, Pairer: pairer, stop: central.Stop}, nil
}

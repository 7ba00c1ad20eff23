package goble

import (
	"context"
	"fmt"
	"strings"

	"github.com/go-ble/ble"
	"github.com/sirupsen/logrus"
	"github.com/srg/bioble/internal/device"
)

// DeviceFactory creates ble.Device instances for the given HCI adapter index
// (can be overridden in tests)
//
//nolint:revive // DeviceFactory name is intentional for test mocking
var DeviceFactory = newDevice

// BLECentral implements device.Central on top of a go-ble device
type BLECentral struct {
	dev    ble.Device
	logger *logrus.Logger
}

// NewCentral opens the platform Bluetooth device.
func NewCentral(adapter int, logger *logrus.Logger) (*BLECentral, error) {
	if logger == nil {
		logger = logrus.New()
	}

	dev, err := DeviceFactory(adapter)
	if err != nil {
		return nil, fmt.Errorf("failed to create BLE device: %w", NormalizeError(err))
	}
	return &BLECentral{dev: dev, logger: logger}, nil
}

// Scan wraps the raw ble.Device.Scan to convert ble.Advertisement to the device.Advertisement
func (c *BLECentral) Scan(ctx context.Context, allowDup bool, handler func(device.Advertisement)) error {
	err := c.dev.Scan(ctx, allowDup, func(adv ble.Advertisement) {
		handler(NewBLEAdvertisement(adv))
	})
	if err != nil {
		return NormalizeError(err)
	}
	return nil
}

// Dial connects to address and returns the live session.
func (c *BLECentral) Dial(ctx context.Context, address string) (device.Connection, error) {
	if strings.TrimSpace(address) == "" {
		return nil, fmt.Errorf("device address is empty")
	}

	c.logger.WithField("address", address).Debug("Dialing BLE device...")
	client, err := c.dev.Dial(ctx, ble.NewAddr(address))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to device with address %q: %w", address, NormalizeError(err))
	}

	c.logger.WithField("address", address).Info("BLE device connected")
	return NewBLEConnection(address, client, c.logger), nil
}

// Stop releases the platform device.
func (c *BLECentral) Stop() error {
	return NormalizeError(c.dev.Stop())
}

package goble

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/srg/bioble/internal/device"
)

// OSManagedPairer reports pairing as handled by the operating system.
// CoreBluetooth pairs on demand when an encrypted attribute is accessed.
type OSManagedPairer struct {
	logger *logrus.Logger
}

// NewPairer returns the CoreBluetooth pairer. adapter is ignored.
func NewPairer(_ string, logger *logrus.Logger) (device.Pairer, error) {
	if logger == nil {
		logger = logrus.New()
	}
	return &OSManagedPairer{logger: logger}, nil
}

func (p *OSManagedPairer) PairingInfo(ctx context.Context, _ string) (device.PairingInfo, error) {
	if err := ctx.Err(); err != nil {
		return device.PairingInfo{}, err
	}
	return device.PairingInfo{CanPair: false, Paired: true}, nil
}

func (p *OSManagedPairer) Pair(ctx context.Context, _ string) error {
	return ctx.Err()
}

func (p *OSManagedPairer) Unpair(_ context.Context, address string) error {
	return fmt.Errorf("%w: CoreBluetooth does not expose unpairing for %s", device.ErrUnsupported, address)
}

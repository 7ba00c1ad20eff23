//go:build !linux && !darwin

package goble

import (
	"fmt"
	"runtime"

	"github.com/sirupsen/logrus"
	"github.com/srg/bioble/internal/device"
)

func NewPairer(_ string, _ *logrus.Logger) (device.Pairer, error) {
	return nil, fmt.Errorf("%w: pairing on %s", device.ErrUnsupported, runtime.GOOS)
}

package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/srg/bioble/internal/device"
	"github.com/srg/bioble/pkg/status"
)

// Command-level errors
var (
	// ErrConnectionLost indicates the headset link dropped while streaming.
	// This is distinct from status.NotOpen, which is reported for commands
	// issued without an open session.
	ErrConnectionLost = errors.New("connection lost")
)

var hints = []struct {
	target error
	hint   string
}{
	{device.ErrBluetoothOff, "turn Bluetooth on and retry"},
	{status.ErrNotFound, "make sure the headset is powered on and not connected elsewhere"},
	{status.ErrServiceNotFound, "the device does not look like the selected model, check --model"},
	{status.ErrTimeout, "the headset did not answer in time, move it closer and retry"},
	{ErrConnectionLost, "the headset went out of range or was switched off"},
}

// FormatUserError renders err for the terminal: the message, the status name
// and integer code when one is attached, and a hint for common failures.
func FormatUserError(err error) string {
	if err == nil {
		return ""
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return "operation timed out"
	}

	msg := err.Error()
	var serr *status.Error
	if errors.As(err, &serr) {
		msg = fmt.Sprintf("%s [status %s=%d]", msg, serr.Code, int(serr.Code))
	}

	for _, h := range hints {
		if errors.Is(err, h.target) {
			return fmt.Sprintf("%s (%s)", msg, h.hint)
		}
	}
	return msg
}

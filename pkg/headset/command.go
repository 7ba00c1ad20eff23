package headset

import (
	"context"

	"github.com/sirupsen/logrus"
	"github.com/srg/bioble/internal/device"
	"github.com/srg/bioble/pkg/status"
)

// send encodes token with the profile encoding and writes it, with response,
// to target. Writes on one handle never overlap.
func (c *Client) send(ctx context.Context, op string, h *connectionHandle, target device.Characteristic, token string) error {
	if h == nil || target == nil {
		return status.New(status.NotOpen, op, nil)
	}

	payloads, err := c.profile.Encode(token)
	if err != nil {
		return status.New(status.General, op, err)
	}

	h.writeMu.Lock()
	defer h.writeMu.Unlock()

	for _, p := range payloads {
		err := call(ctx, c.timeout(), "headset-write", func(context.Context) error {
			return h.conn.WriteCharacteristic(target, p)
		})
		if err != nil {
			return commandFailure(op, err)
		}
	}

	c.logger.WithFields(logrus.Fields{
		"op":     op,
		"token":  token,
		"writes": len(payloads),
	}).Debug("Command sent")
	return nil
}

// stopStream sends the stop token and, when enabled, the legacy disconnect
// token. Both are always attempted; the first failure wins.
func (c *Client) stopStream(ctx context.Context, h *connectionHandle) error {
	first := c.send(ctx, "stop_stream", h, h.send, c.profile.Stop)
	if first != nil {
		c.logger.WithError(first).Warn("Stop command failed")
	}

	if c.opts.LegacyStopToken {
		if err := c.send(ctx, "stop_stream", h, h.disconnect, c.profile.DisconnectToken); err != nil {
			c.logger.WithError(err).Warn("Legacy disconnect token failed")
			if first == nil {
				first = err
			}
		}
	}
	return first
}

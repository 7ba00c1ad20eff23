package headset

import (
	"context"

	"github.com/sirupsen/logrus"
	"github.com/srg/bioble/internal/device"
	"github.com/srg/bioble/internal/stream"
	"github.com/srg/bioble/pkg/status"
)

// subscribe enables notifications on the receive characteristic, attaches the
// ingest callback once the write succeeded, then verifies through a CCCD
// read-back. An unconfirmed state gets exactly one more write and read.
func (c *Client) subscribe(ctx context.Context, h *connectionHandle) error {
	const op = "subscribe"
	timeout := c.timeout()

	enable := func() error {
		return call(ctx, timeout, "headset-enable-notify", func(context.Context) error {
			return h.conn.WriteClientConfig(h.receive, device.NotifyConfig)
		})
	}

	if err := enable(); err != nil {
		return status.New(status.FailedToSetCallback, op, err)
	}
	h.conn.SetNotificationHandler(h.receive, c.ingest(h.queue))

	if c.verify(ctx, h) {
		h.subscription = Subscribed
		return nil
	}

	c.logger.Debug("Notification state not confirmed, retrying once")
	if err := enable(); err != nil {
		return status.New(status.FailedToSetCallback, op, err)
	}
	if c.verify(ctx, h) {
		h.subscription = Subscribed
		return nil
	}

	h.subscription = SubscriptionUnverified
	return status.New(status.FailedToSetCallback, op, ErrSubscriptionUnverified)
}

func (c *Client) verify(ctx context.Context, h *connectionHandle) bool {
	cfg, err := withTimeout(ctx, c.timeout(), "headset-read-cccd", func(context.Context) (*device.ClientConfig, error) {
		return h.conn.ReadClientConfig(h.receive)
	}, nil)
	if err != nil {
		c.logger.WithError(err).Debug("Client configuration read-back failed")
		return false
	}
	c.logger.WithField("cccd", cfg).Debug("Client configuration read back")
	return cfg != nil && cfg.Notifications
}

// unsubscribe detaches the callback first, then disables notifications.
func (c *Client) unsubscribe(ctx context.Context, h *connectionHandle) error {
	if h.receive == nil {
		return nil
	}
	h.conn.SetNotificationHandler(h.receive, nil)

	err := call(ctx, c.timeout(), "headset-disable-notify", func(context.Context) error {
		return h.conn.WriteClientConfig(h.receive, device.DisabledConfig)
	})
	if err != nil {
		return status.New(status.FailedToUnsubscribe, "unsubscribe", err)
	}
	h.subscription = Unsubscribed
	return nil
}

// ingest returns the notification callback. It runs on the platform delivery
// goroutine and only touches the queue.
func (c *Client) ingest(q *stream.SampleQueue) device.NotificationHandler {
	return func(data []byte) {
		if !q.Ingest(data, c.now()) && c.logger.IsLevelEnabled(logrus.DebugLevel) {
			c.logger.WithFields(logrus.Fields{
				"bytes":    len(data),
				"expected": q.PacketLength(),
			}).Debug("Dropped packet with unexpected length")
		}
	}
}


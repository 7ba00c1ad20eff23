package headset

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/srg/bioble/internal/device"
	"github.com/srg/bioble/internal/groutine"
	"github.com/srg/bioble/internal/stream"
	"github.com/srg/bioble/pkg/status"
	"github.com/srg/bioble/scanner"
)

// connectionHandle owns one live GATT session and everything resolved on it.
// Either all three characteristics are set or the open failed.
type connectionHandle struct {
	conn    device.Connection
	address string

	service    device.Service
	send       device.Characteristic
	receive    device.Characteristic
	disconnect device.Characteristic

	queue        *stream.SampleQueue
	subscription SubscriptionState

	writeMu sync.Mutex
	lost    atomic.Bool

	stopMonitor context.CancelFunc
	monitorDone <-chan struct{}
}

func (h *connectionHandle) characteristic(t Target) device.Characteristic {
	if t == TargetDisconnect {
		return h.disconnect
	}
	return h.send
}

// release stops the link monitor and closes the connection.
func (h *connectionHandle) release() error {
	if h.stopMonitor != nil {
		h.stopMonitor()
	}
	err := h.conn.Close()
	h.service, h.send, h.receive, h.disconnect = nil, nil, nil, nil
	return err
}

// discover finds the headset address, narrowed by an optional address substring.
func (c *Client) discover(ctx context.Context, op, address string) (string, error) {
	desc, err := c.scanner.Find(ctx, scanner.Filter{Profile: c.profile, Address: address}, c.opts.Scan)
	if err != nil {
		return "", nativeFailure(op, fmt.Errorf("discovery failed: %w", err))
	}
	if desc == nil {
		return "", status.New(status.NotFound, op, fmt.Errorf("no %s headset advertised within %s", c.profile.Model, c.opts.Scan.Window))
	}
	return desc.Address, nil
}

// connect dials address and resolves the profile service and characteristics
// with fresh discovery. On failure nothing is left open.
func (c *Client) connect(ctx context.Context, op, address string) (*connectionHandle, error) {
	timeout := c.timeout()

	c.logger.WithFields(logrus.Fields{
		"address": address,
		"timeout": timeout,
	}).Info("Connecting to headset...")

	conn, err := withTimeout(ctx, timeout, "headset-dial", func(dctx context.Context) (device.Connection, error) {
		return c.central.Dial(dctx, address)
	}, func(late device.Connection) {
		_ = late.Close()
	})
	if err != nil {
		return nil, nativeFailure(op, fmt.Errorf("dial %s: %w", address, err))
	}

	h := &connectionHandle{conn: conn, address: address}
	if err := c.resolve(ctx, op, h); err != nil {
		if cerr := h.release(); cerr != nil {
			c.logger.WithError(cerr).Warn("Failed to release partially opened connection")
		}
		return nil, err
	}

	q, err := stream.NewSampleQueue(c.opts.QueueCapacity, c.profile.PacketLength)
	if err != nil {
		_ = h.release()
		return nil, status.New(status.General, op, err)
	}
	h.queue = q

	c.logger.WithField("address", address).Info("Connected, headset characteristics resolved")
	return h, nil
}

func (c *Client) resolve(ctx context.Context, op string, h *connectionHandle) error {
	timeout := c.timeout()

	services, err := withTimeout(ctx, timeout, "headset-discover-services", func(context.Context) ([]device.Service, error) {
		return h.conn.DiscoverServices()
	}, nil)
	if err != nil {
		return nativeFailure(op, fmt.Errorf("service discovery: %w", err))
	}
	for _, svc := range services {
		if svc.UUID() == c.profile.Service {
			h.service = svc
			break
		}
	}
	if h.service == nil {
		return status.New(status.ServiceNotFound, op, &device.NotFoundError{Resource: "service", UUIDs: []uuid.UUID{c.profile.Service}})
	}

	chars, err := withTimeout(ctx, timeout, "headset-discover-characteristics", func(context.Context) ([]device.Characteristic, error) {
		return h.conn.DiscoverCharacteristics(h.service)
	}, nil)
	if err != nil {
		return nativeFailure(op, fmt.Errorf("characteristic discovery: %w", err))
	}

	// one characteristic may fill several roles
	for _, ch := range chars {
		id := ch.UUID()
		if id == c.profile.Send {
			h.send = ch
		}
		if id == c.profile.Receive {
			h.receive = ch
		}
		if id == c.profile.Disconnect {
			h.disconnect = ch
		}
	}

	missing := func(code status.Code, id uuid.UUID) error {
		return status.New(code, op, &device.NotFoundError{Resource: "characteristic", UUIDs: []uuid.UUID{c.profile.Service, id}})
	}
	switch {
	case h.receive == nil:
		return missing(status.ReceiveCharacteristicNotFound, c.profile.Receive)
	case h.send == nil:
		return missing(status.SendCharacteristicNotFound, c.profile.Send)
	case h.disconnect == nil:
		return missing(status.DisconnectCharacteristicNotFound, c.profile.Disconnect)
	}

	c.logger.WithFields(logrus.Fields{
		"service":    device.ShortUUID(c.profile.Service),
		"send":       h.send.Properties().String(),
		"receive":    h.receive.Properties().String(),
		"disconnect": h.disconnect.Properties().String(),
	}).Debug("Resolved headset characteristics")
	return nil
}

// pair runs the platform pairing handshake. A peripheral that cannot be
// paired or is already paired yields the benign AlreadyPaired status.
func (c *Client) pair(ctx context.Context, address string) error {
	const op = "pair"
	if c.pairer == nil {
		return status.New(status.AlreadyPaired, op, nil)
	}
	timeout := c.timeout()

	info, err := withTimeout(ctx, timeout, "headset-pairing-info", func(pctx context.Context) (device.PairingInfo, error) {
		return c.pairer.PairingInfo(pctx, address)
	}, nil)
	if err != nil {
		return nativeFailure(op, err)
	}
	if !info.CanPair || info.Paired {
		c.logger.WithFields(logrus.Fields{
			"can_pair": info.CanPair,
			"paired":   info.Paired,
		}).Debug("Pairing not required")
		return status.New(status.AlreadyPaired, op, nil)
	}

	c.logger.WithField("address", address).Info("Pairing with headset...")
	if err := call(ctx, timeout, "headset-pair", func(pctx context.Context) error { return c.pairer.Pair(pctx, address) }); err != nil {
		return nativeFailure(op, err)
	}
	return nil
}

// unpair removes the OS pairing. Devices that are not paired, and platforms
// without explicit unpairing, are not failures.
func (c *Client) unpair(ctx context.Context, address string) error {
	if c.pairer == nil {
		return nil
	}
	err := call(ctx, c.timeout(), "headset-unpair", func(uctx context.Context) error { return c.pairer.Unpair(uctx, address) })
	switch {
	case err == nil:
		return nil
	case errors.Is(err, device.ErrNotPaired), errors.Is(err, device.ErrUnsupported):
		c.logger.WithError(err).Debug("Unpair skipped")
		return nil
	default:
		return nativeFailure("unpair", err)
	}
}

// monitor marks the handle lost when the link drops.
func (c *Client) monitor(h *connectionHandle) {
	ctx, cancel := context.WithCancel(context.Background())
	h.stopMonitor = cancel
	h.monitorDone = groutine.Go(ctx, "headset-link-monitor", func(ctx context.Context) {
		select {
		case <-h.conn.Disconnected():
			if ctx.Err() != nil {
				return
			}
			h.lost.Store(true)
			c.logger.WithField("address", h.address).Warn("Headset link lost")
		case <-ctx.Done():
		}
	})
}

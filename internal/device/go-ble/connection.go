package goble

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/go-ble/ble"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/srg/bioble/internal/device"
	"github.com/srg/bioble/internal/groutine"
)

// gattClient is the subset of ble.Client a headset session needs.
type gattClient interface {
	DiscoverServices(filter []ble.UUID) ([]*ble.Service, error)
	DiscoverCharacteristics(filter []ble.UUID, s *ble.Service) ([]*ble.Characteristic, error)
	DiscoverDescriptors(filter []ble.UUID, c *ble.Characteristic) ([]*ble.Descriptor, error)
	WriteCharacteristic(c *ble.Characteristic, value []byte, noRsp bool) error
	ReadDescriptor(d *ble.Descriptor) ([]byte, error)
	WriteDescriptor(d *ble.Descriptor, v []byte) error
	Subscribe(c *ble.Characteristic, ind bool, h ble.NotificationHandler) error
	Unsubscribe(c *ble.Characteristic, ind bool) error
	CancelConnection() error
	Disconnected() <-chan struct{}
}

// BLEConnection is a live GATT session on top of a go-ble client
type BLEConnection struct {
	address string
	client  gattClient
	logger  *logrus.Logger

	writeMu sync.Mutex // writes are never pipelined

	subMu      sync.Mutex
	subscribed map[uuid.UUID]bool // characteristics registered through client.Subscribe
	handlers   sync.Map           // uuid.UUID -> device.NotificationHandler

	closing   chan struct{}
	done      chan struct{}
	closeOnce sync.Once
	closed    atomic.Bool
}

// NewBLEConnection wraps an established client. The connection watches the
// client's Disconnected channel until Close.
func NewBLEConnection(address string, client gattClient, logger *logrus.Logger) *BLEConnection {
	if logger == nil {
		logger = logrus.New()
	}

	c := &BLEConnection{
		address:    address,
		client:     client,
		logger:     logger,
		subscribed: make(map[uuid.UUID]bool),
		closing:    make(chan struct{}),
		done:       make(chan struct{}),
	}

	groutine.Go(context.Background(), "ble-connection-monitor", func(ctx context.Context) {
		defer close(c.done)
		select {
		case <-client.Disconnected():
			c.closed.Store(true)
			c.logger.WithField("address", address).Warn("Peripheral reported disconnection")
		case <-c.closing:
		}
	})

	return c
}

func (c *BLEConnection) Address() string {
	return c.address
}

// Disconnected is closed when the link drops or the connection is closed.
func (c *BLEConnection) Disconnected() <-chan struct{} {
	return c.done
}

func (c *BLEConnection) ensureOpen() error {
	if c.closed.Load() {
		return device.ErrNotConnected
	}
	return nil
}

// DiscoverServices performs a fresh primary service discovery.
func (c *BLEConnection) DiscoverServices() ([]device.Service, error) {
	if err := c.ensureOpen(); err != nil {
		return nil, err
	}

	svcs, err := c.client.DiscoverServices(nil)
	if err != nil {
		return nil, NormalizeError(err)
	}

	out := make([]device.Service, 0, len(svcs))
	for _, s := range svcs {
		out = append(out, newService(s))
	}

	c.logger.WithFields(logrus.Fields{
		"address":  c.address,
		"services": len(out),
	}).Debug("Services discovered")
	return out, nil
}

// DiscoverCharacteristics performs a fresh discovery of the characteristics
// of svc and their descriptors.
func (c *BLEConnection) DiscoverCharacteristics(svc device.Service) ([]device.Characteristic, error) {
	if err := c.ensureOpen(); err != nil {
		return nil, err
	}
	bs, err := asService(svc)
	if err != nil {
		return nil, err
	}

	chars, err := c.client.DiscoverCharacteristics(nil, bs.svc)
	if err != nil {
		return nil, NormalizeError(err)
	}

	out := make([]device.Characteristic, 0, len(chars))
	for _, ch := range chars {
		// CCCD lookup needs the descriptors; platforms without descriptor
		// handles fall back to the tracked subscription state.
		if _, err := c.client.DiscoverDescriptors(nil, ch); err != nil {
			c.logger.WithFields(logrus.Fields{
				"char_uuid": toUUID(ch.UUID).String(),
				"error":     err,
			}).Debug("Descriptor discovery failed")
		}
		out = append(out, newCharacteristic(ch))
	}

	c.logger.WithFields(logrus.Fields{
		"service_uuid":    device.ShortUUID(bs.uuid),
		"characteristics": len(out),
	}).Debug("Characteristics discovered")
	return out, nil
}

// WriteCharacteristic writes data with response.
func (c *BLEConnection) WriteCharacteristic(ch device.Characteristic, data []byte) error {
	if err := c.ensureOpen(); err != nil {
		return err
	}
	bc, err := asCharacteristic(ch)
	if err != nil {
		return err
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	return NormalizeError(c.client.WriteCharacteristic(bc.char, data, false))
}

// WriteClientConfig enables or disables notifications on ch.
//
// The first enable goes through client.Subscribe, which writes the CCCD and
// installs the dispatcher. Later enables write the descriptor directly.
func (c *BLEConnection) WriteClientConfig(ch device.Characteristic, cfg device.ClientConfig) error {
	if err := c.ensureOpen(); err != nil {
		return err
	}
	bc, err := asCharacteristic(ch)
	if err != nil {
		return err
	}

	c.subMu.Lock()
	defer c.subMu.Unlock()

	enable := cfg.Notifications || cfg.Indications
	subscribed := c.subscribed[bc.uuid]

	switch {
	case enable && !subscribed:
		indicate := cfg.Indications && !cfg.Notifications
		if err := c.client.Subscribe(bc.char, indicate, c.dispatcher(bc.uuid)); err != nil {
			return NormalizeError(err)
		}
		c.subscribed[bc.uuid] = true
	case enable && subscribed:
		if bc.char.CCCD == nil {
			// nothing to rewrite; the platform owns the descriptor
			return nil
		}
		if err := c.client.WriteDescriptor(bc.char.CCCD, cfg.Bytes()); err != nil {
			return NormalizeError(err)
		}
	case !enable && subscribed:
		if err := c.client.Unsubscribe(bc.char, false); err != nil {
			return NormalizeError(err)
		}
		delete(c.subscribed, bc.uuid)
	default:
		if bc.char.CCCD != nil {
			if err := c.client.WriteDescriptor(bc.char.CCCD, cfg.Bytes()); err != nil {
				return NormalizeError(err)
			}
		}
	}

	c.logger.WithFields(logrus.Fields{
		"char_uuid": device.ShortUUID(bc.uuid),
		"config":    cfg.String(),
	}).Debug("Client configuration written")
	return nil
}

// ReadClientConfig reads back the CCCD of ch. Without a discovered descriptor
// it reports the subscription state tracked by this connection.
func (c *BLEConnection) ReadClientConfig(ch device.Characteristic) (*device.ClientConfig, error) {
	if err := c.ensureOpen(); err != nil {
		return nil, err
	}
	bc, err := asCharacteristic(ch)
	if err != nil {
		return nil, err
	}

	if bc.char.CCCD == nil {
		c.subMu.Lock()
		defer c.subMu.Unlock()
		return &device.ClientConfig{Notifications: c.subscribed[bc.uuid]}, nil
	}

	data, err := c.client.ReadDescriptor(bc.char.CCCD)
	if err != nil {
		return nil, NormalizeError(err)
	}
	return device.ParseClientConfig(data)
}

// SetNotificationHandler attaches h to notifications of ch. A nil h detaches.
func (c *BLEConnection) SetNotificationHandler(ch device.Characteristic, h device.NotificationHandler) {
	id := ch.UUID()
	if h == nil {
		c.handlers.Delete(id)
		return
	}
	c.handlers.Store(id, h)
}

func (c *BLEConnection) dispatcher(id uuid.UUID) ble.NotificationHandler {
	return func(data []byte) {
		v, ok := c.handlers.Load(id)
		if !ok {
			return
		}
		v.(device.NotificationHandler)(data)
	}
}

// Close cancels the connection. Calling it again is a no-op.
func (c *BLEConnection) Close() error {
	var err error
	c.closeOnce.Do(func() {
		c.closed.Store(true)
		close(c.closing)
		<-c.done

		if cerr := c.client.CancelConnection(); cerr != nil {
			err = fmt.Errorf("cancel connection: %w", NormalizeError(cerr))
		}

		c.logger.WithFields(logrus.Fields{
			"address": c.address,
			"error":   err,
		}).Info("BLE connection closed")
	})
	return err
}

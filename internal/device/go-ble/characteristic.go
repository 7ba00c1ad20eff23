package goble

import (
	"fmt"

	"github.com/go-ble/ble"
	"github.com/google/uuid"
	"github.com/srg/bioble/internal/device"
)

// BLECharacteristic wraps a discovered ble.Characteristic together with its
// descriptors.
type BLECharacteristic struct {
	char  *ble.Characteristic
	uuid  uuid.UUID
	props device.Properties
}

func newCharacteristic(c *ble.Characteristic) *BLECharacteristic {
	return &BLECharacteristic{
		char:  c,
		uuid:  toUUID(c.UUID),
		props: NewProperties(c.Property),
	}
}

func (c *BLECharacteristic) UUID() uuid.UUID {
	return c.uuid
}

func (c *BLECharacteristic) Properties() device.Properties {
	return c.props
}

// HasClientConfig reports whether the 0x2902 descriptor was discovered.
func (c *BLECharacteristic) HasClientConfig() bool {
	return c.char.CCCD != nil
}

func asCharacteristic(c device.Characteristic) (*BLECharacteristic, error) {
	bc, ok := c.(*BLECharacteristic)
	if !ok || bc == nil || bc.char == nil {
		return nil, fmt.Errorf("characteristic %T was not discovered by this connection", c)
	}
	return bc, nil
}

func asService(s device.Service) (*BLEService, error) {
	bs, ok := s.(*BLEService)
	if !ok || bs == nil || bs.svc == nil {
		return nil, fmt.Errorf("service %T was not discovered by this connection", s)
	}
	return bs, nil
}

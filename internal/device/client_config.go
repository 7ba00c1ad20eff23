package device

import (
	"encoding/binary"
	"fmt"
)

// DescriptorClientConfig is the Client Characteristic Configuration descriptor
const DescriptorClientConfig uint16 = 0x2902

// ClientConfig represents the Client Characteristic Configuration descriptor (0x2902)
type ClientConfig struct {
	Notifications bool // Notifications enabled
	Indications   bool // Indications enabled
}

var (
	NotifyConfig   = ClientConfig{Notifications: true}
	DisabledConfig = ClientConfig{}
)

// ParseClientConfig parses the Client Characteristic Configuration descriptor value.
// The descriptor is 2 bytes: bit 0 = Notifications, bit 1 = Indications.
func ParseClientConfig(data []byte) (*ClientConfig, error) {
	if len(data) != 2 {
		return nil, fmt.Errorf("invalid length for client config: expected 2, got %d", len(data))
	}
	value := binary.LittleEndian.Uint16(data)
	return &ClientConfig{
		Notifications: (value & 0x0001) != 0,
		Indications:   (value & 0x0002) != 0,
	}, nil
}

// Bytes encodes the configuration as the 2-byte little-endian descriptor value.
func (c ClientConfig) Bytes() []byte {
	var value uint16
	if c.Notifications {
		value |= 0x0001
	}
	if c.Indications {
		value |= 0x0002
	}
	out := make([]byte, 2)
	binary.LittleEndian.PutUint16(out, value)
	return out
}

func (c ClientConfig) String() string {
	switch {
	case c.Notifications && c.Indications:
		return "notify+indicate"
	case c.Notifications:
		return "notify"
	case c.Indications:
		return "indicate"
	default:
		return "none"
	}
}

package goble

import (
	"github.com/go-ble/ble"
	"github.com/google/uuid"
	"github.com/srg/bioble/internal/device"
)

// toUUID converts a little-endian ble.UUID into a typed uuid.UUID.
// 16- and 32-bit values are expanded into the Bluetooth base UUID.
func toUUID(u ble.UUID) uuid.UUID {
	switch len(u) {
	case 2:
		return device.UUID16(uint16(u[1])<<8 | uint16(u[0]))
	case 4:
		out := device.BaseUUID
		out[0], out[1], out[2], out[3] = u[3], u[2], u[1], u[0]
		return out
	case 16:
		var out uuid.UUID
		for i := range out {
			out[i] = u[15-i]
		}
		return out
	default:
		return uuid.Nil
	}
}

// fromUUID converts a typed uuid.UUID into the ble.UUID wire form, using the
// 16-bit form for base-range identifiers.
func fromUUID(u uuid.UUID) ble.UUID {
	if device.IsShort(u) {
		return ble.UUID16(uint16(u[2])<<8 | uint16(u[3]))
	}
	out := make(ble.UUID, 16)
	for i := range u {
		out[15-i] = u[i]
	}
	return out
}

func toUUIDs(in []ble.UUID) []uuid.UUID {
	out := make([]uuid.UUID, 0, len(in))
	for _, u := range in {
		out = append(out, toUUID(u))
	}
	return out
}

package device

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"
)

// BaseUUID is the Bluetooth SIG base UUID (0000xxxx-0000-1000-8000-00805f9b34fb)
var BaseUUID = uuid.MustParse("00000000-0000-1000-8000-00805f9b34fb")

// UUID16 expands a 16-bit assigned number into the Bluetooth base UUID
func UUID16(v uint16) uuid.UUID {
	u := BaseUUID
	u[2] = byte(v >> 8)
	u[3] = byte(v)
	return u
}

// ParseUUID parses a UUID in short ("fe84", "0xFE84"), 32-bit ("0000fe84")
// or full 128-bit form (with or without dashes).
func ParseUUID(s string) (uuid.UUID, error) {
	raw := strings.TrimSpace(strings.ToLower(s))
	raw = strings.TrimPrefix(raw, "0x")

	switch len(raw) {
	case 4, 8:
		v, err := strconv.ParseUint(raw, 16, 32)
		if err != nil {
			return uuid.Nil, fmt.Errorf("invalid UUID %q: %w", s, err)
		}
		u := BaseUUID
		u[0] = byte(v >> 24)
		u[1] = byte(v >> 16)
		u[2] = byte(v >> 8)
		u[3] = byte(v)
		return u, nil
	case 32, 36:
		u, err := uuid.Parse(raw)
		if err != nil {
			return uuid.Nil, fmt.Errorf("invalid UUID %q: %w", s, err)
		}
		return u, nil
	default:
		return uuid.Nil, fmt.Errorf("invalid UUID %q: unexpected length %d", s, len(raw))
	}
}

// MustParseUUID is like ParseUUID but panics on malformed input.
func MustParseUUID(s string) uuid.UUID {
	u, err := ParseUUID(s)
	if err != nil {
		panic(err)
	}
	return u
}

// IsShort reports whether u lives in the Bluetooth base range with a 16-bit value.
func IsShort(u uuid.UUID) bool {
	return u[0] == 0 && u[1] == 0 && [12]byte(u[4:]) == [12]byte(BaseUUID[4:])
}

// ShortUUID renders base-range UUIDs in 16-bit form ("fe84") and everything
// else in the canonical dashed form.
func ShortUUID(u uuid.UUID) string {
	if IsShort(u) {
		return fmt.Sprintf("%02x%02x", u[2], u[3])
	}
	return u.String()
}

// ValidateUUID validates that UUID strings are non-empty and well-formed.
// Accepts one or more UUIDs as variadic arguments.
func ValidateUUID(uuids ...string) ([]uuid.UUID, error) {
	if len(uuids) == 0 {
		return nil, fmt.Errorf("at least one UUID is required")
	}

	result := make([]uuid.UUID, 0, len(uuids))
	for i, s := range uuids {
		if s == "" {
			return nil, fmt.Errorf("UUID at index %d cannot be empty", i)
		}
		u, err := ParseUUID(s)
		if err != nil {
			return nil, fmt.Errorf("invalid UUID format at index %d: %w", i, err)
		}
		result = append(result, u)
	}
	return result, nil
}

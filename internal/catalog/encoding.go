package catalog

import (
	"fmt"
	"strings"
)

// Encoding selects how command tokens become write payloads.
type Encoding int

const (
	// EncodingByte sends every character as its own one-byte write.
	EncodingByte Encoding = iota
	// EncodingString sends the whole token as one UTF-8 write.
	EncodingString
)

func (e Encoding) String() string {
	switch e {
	case EncodingByte:
		return "byte"
	case EncodingString:
		return "string"
	default:
		return fmt.Sprintf("encoding(%d)", int(e))
	}
}

// ParseEncoding parses "byte" or "string".
func ParseEncoding(s string) (Encoding, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "byte":
		return EncodingByte, nil
	case "string":
		return EncodingString, nil
	default:
		return 0, fmt.Errorf("unknown command encoding %q", s)
	}
}

// Encode turns token into the sequence of payloads written to the peripheral.
func (e Encoding) Encode(token string) ([][]byte, error) {
	if token == "" {
		return nil, fmt.Errorf("empty command")
	}

	switch e {
	case EncodingByte:
		writes := make([][]byte, 0, len(token))
		for i := 0; i < len(token); i++ {
			if token[i] > 0x7f {
				return nil, fmt.Errorf("command %q: non-ASCII byte at offset %d", token, i)
			}
			writes = append(writes, []byte{token[i]})
		}
		return writes, nil
	case EncodingString:
		return [][]byte{[]byte(token)}, nil
	default:
		return nil, fmt.Errorf("command %q: %v is not supported", token, e)
	}
}

// validateToken checks a lifecycle token, which must map to exactly one write.
func (e Encoding) validateToken(role, token string) error {
	writes, err := e.Encode(token)
	if err != nil {
		return fmt.Errorf("%s token: %w", role, err)
	}
	if len(writes) != 1 {
		return fmt.Errorf("%s token %q: %v encoding requires a single character", role, token, e)
	}
	return nil
}

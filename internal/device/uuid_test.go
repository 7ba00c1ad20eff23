package device

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseUUID(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
		wantErr  bool
	}{
		// 16-bit forms expand into the Bluetooth base UUID
		{name: "16-bit lowercase", input: "fe84", expected: "0000fe84-0000-1000-8000-00805f9b34fb"},
		{name: "16-bit uppercase", input: "FE84", expected: "0000fe84-0000-1000-8000-00805f9b34fb"},
		{name: "16-bit with 0x prefix", input: "0x2902", expected: "00002902-0000-1000-8000-00805f9b34fb"},
		{name: "16-bit with 0X prefix", input: "0X2902", expected: "00002902-0000-1000-8000-00805f9b34fb"},
		{name: "32-bit", input: "1234fe84", expected: "1234fe84-0000-1000-8000-00805f9b34fb"},

		// 128-bit forms
		{name: "dashed", input: "2d30c083-f39f-4ce6-923f-3484ea480596", expected: "2d30c083-f39f-4ce6-923f-3484ea480596"},
		{name: "dashed uppercase", input: "0000FE40-8E22-4541-9D4C-21EDAE82ED19", expected: "0000fe40-8e22-4541-9d4c-21edae82ed19"},
		{name: "undashed", input: "2d30c082f39f4ce6923f3484ea480596", expected: "2d30c082-f39f-4ce6-923f-3484ea480596"},

		// Edge cases
		{name: "empty", input: "", wantErr: true},
		{name: "non-hex short", input: "zz84", wantErr: true},
		{name: "odd length", input: "fe845", wantErr: true},
		{name: "malformed dashed", input: "2d30c083-f39f-4ce6-923f-3484ea48059x", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseUUID(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
				assert.Equal(t, uuid.Nil, got)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expected, got.String())
		})
	}
}

func TestUUID16(t *testing.T) {
	assert.Equal(t, MustParseUUID("fe84"), UUID16(0xfe84))
	assert.Equal(t, "00002902-0000-1000-8000-00805f9b34fb", UUID16(DescriptorClientConfig).String())
}

func TestShortUUID(t *testing.T) {
	assert.Equal(t, "fe84", ShortUUID(MustParseUUID("fe84")))
	assert.Equal(t, "180d", ShortUUID(MustParseUUID("0000180d-0000-1000-8000-00805f9b34fb")))

	// 32-bit values and vendor UUIDs keep the full form
	assert.Equal(t, "1234fe84-0000-1000-8000-00805f9b34fb", ShortUUID(MustParseUUID("1234fe84")))
	assert.Equal(t, "0000fe40-8e22-4541-9d4c-21edae82ed19", ShortUUID(MustParseUUID("0000fe40-8e22-4541-9d4c-21edae82ed19")))
}

func TestMustParseUUID_Panics(t *testing.T) {
	assert.Panics(t, func() { MustParseUUID("not-a-uuid") })
}

func TestValidateUUID(t *testing.T) {
	t.Run("all valid", func(t *testing.T) {
		got, err := ValidateUUID("fe84", "2d30c083-f39f-4ce6-923f-3484ea480596")
		require.NoError(t, err)
		assert.Len(t, got, 2)
		assert.Equal(t, UUID16(0xfe84), got[0])
	})

	t.Run("no arguments", func(t *testing.T) {
		_, err := ValidateUUID()
		assert.ErrorContains(t, err, "at least one UUID")
	})

	t.Run("empty entry", func(t *testing.T) {
		_, err := ValidateUUID("fe84", "")
		assert.ErrorContains(t, err, "index 1 cannot be empty")
	})

	t.Run("malformed entry", func(t *testing.T) {
		_, err := ValidateUUID("xyz")
		assert.ErrorContains(t, err, "invalid UUID format at index 0")
	})
}

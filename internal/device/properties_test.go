package device

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProperties_String(t *testing.T) {
	assert.Equal(t, "", Properties(0).String())
	assert.Equal(t, "read,notify", (PropRead | PropNotify).String())
	assert.Equal(t, "write-without-response,write", (PropWrite | PropWriteWithoutResponse).String())
}

func TestProperties_Has(t *testing.T) {
	p := PropRead | PropWrite | PropNotify

	assert.True(t, p.Has(PropWrite))
	assert.True(t, p.Has(PropRead|PropNotify))
	assert.False(t, p.Has(PropIndicate))
	assert.False(t, p.Has(PropWrite|PropIndicate))
	assert.True(t, p.CanNotify())
	assert.True(t, PropIndicate.CanNotify())
	assert.False(t, PropWrite.CanNotify())
}

func TestParseProperties(t *testing.T) {
	p, err := ParseProperties("Read, notify ,write")
	require.NoError(t, err)
	assert.Equal(t, PropRead|PropNotify|PropWrite, p)

	p, err = ParseProperties("")
	require.NoError(t, err)
	assert.Equal(t, Properties(0), p)

	_, err = ParseProperties("read,teleport")
	assert.ErrorContains(t, err, "teleport")
}

func TestProperties_BitValues(t *testing.T) {
	// Bit positions follow the GATT characteristic declaration
	assert.Equal(t, Properties(0x02), PropRead)
	assert.Equal(t, Properties(0x04), PropWriteWithoutResponse)
	assert.Equal(t, Properties(0x08), PropWrite)
	assert.Equal(t, Properties(0x10), PropNotify)
	assert.Equal(t, Properties(0x20), PropIndicate)
}

package sensors

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeHMC(t *testing.T) {
	// X=1090, Z=-545, Y=0 counts
	buf := []byte{0x04, 0x42, 0xFD, 0xDF, 0x00, 0x00}
	v, err := decodeHMC(buf)
	require.NoError(t, err)
	assert.InDelta(t, 100.0, v.X, 1e-9)
	assert.InDelta(t, 0.0, v.Y, 1e-9)
	assert.InDelta(t, -50.0, v.Z, 1e-9)

	_, err = decodeHMC([]byte{0xF0, 0x00, 0, 0, 0, 0})
	assert.ErrorIs(t, err, ErrMagOverflow)
}

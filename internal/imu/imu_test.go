package imu

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVec3Norm(t *testing.T) {
	assert.InDelta(t, 5.0, Vec3{X: 3, Y: 4}.Norm(), 1e-12)
	assert.InDelta(t, math.Sqrt(3), Vec3{X: 1, Y: 1, Z: 1}.Norm(), 1e-12)
	assert.Zero(t, Vec3{}.Norm())
}

func TestMockSource(t *testing.T) {
	m := NewMockSource()
	m.now = func() time.Time { return m.start.Add(1500 * time.Millisecond) }

	accel, _, err := m.ReadAccelGyro()
	require.NoError(t, err)
	assert.InDelta(t, 1.0, accel.Norm(), 1e-9, "gravity only")

	mag, err := m.ReadMagnetometer()
	require.NoError(t, err)
	assert.InDelta(t, -42.0, mag.Z, 1e-9)

	m.FailNext(2)
	_, _, err = m.ReadAccelGyro()
	assert.ErrorIs(t, err, ErrMockFailure)
	_, err = m.ReadMagnetometer()
	assert.ErrorIs(t, err, ErrMockFailure)
	_, _, err = m.ReadAccelGyro()
	assert.NoError(t, err)

	m.FailNext(5)
	require.NoError(t, m.Reset())
	assert.Equal(t, 1, m.Resets())
	_, _, err = m.ReadAccelGyro()
	assert.NoError(t, err, "reset clears injected failures")
}

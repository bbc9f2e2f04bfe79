package imu

import (
	"math"
	"time"
)

// Vec3 is a three-axis reading.
type Vec3 struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// Norm returns the Euclidean length of v.
func (v Vec3) Norm() float64 {
	return math.Sqrt(v.X*v.X + v.Y*v.Y + v.Z*v.Z)
}

// Sample is one inertial + magnetic reading.
type Sample struct {
	Timestamp time.Time `json:"timestamp"`
	Valid     bool      `json:"valid"`
	Accel     Vec3      `json:"accel"` // g
	Gyro      Vec3      `json:"gyro"`  // deg/s
	Mag       Vec3      `json:"mag"`   // µT
}

// Raw is a sample as acquired from the devices.
type Raw Sample

// Processed is a sample after calibration and filtering.
type Processed Sample

// AccelGyroReader reads the accelerometer and gyroscope together.
type AccelGyroReader interface {
	ReadAccelGyro() (accel, gyro Vec3, err error)
}

// MagReader reads the magnetometer.
type MagReader interface {
	ReadMagnetometer() (Vec3, error)
}

// Resetter is implemented by devices that can be re-initialized after a run
// of failed reads.
type Resetter interface {
	Reset() error
}

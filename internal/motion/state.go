package motion

import (
	"math"
	"time"

	"github.com/relabs-tech/motion_computer/internal/gps"
	"github.com/relabs-tech/motion_computer/internal/imu"
)

// State is the fused motion record handed to display, telemetry and logging.
type State struct {
	Timestamp time.Time `json:"timestamp"`
	Accel     imu.Vec3  `json:"accel"`
	Gyro      imu.Vec3  `json:"gyro"`
	Mag       imu.Vec3  `json:"mag"`

	TotalAccel float64 `json:"total_accel"` // g
	Pose       Pose    `json:"pose"`

	// Copied from the last valid fix.
	GPSValid   bool      `json:"gps_valid"`
	Latitude   float64   `json:"lat"`
	Longitude  float64   `json:"lon"`
	SpeedKnots float64   `json:"speed_knots"`
	HeadingDeg float64   `json:"heading_deg"`
	Satellites int       `json:"satellites"`
	GPSTime    string    `json:"gps_time,omitempty"`
	FixTime    time.Time `json:"fix_time"`
}

// Pose is a roll/pitch estimate in degrees.
type Pose struct {
	Roll  float64 `json:"roll"`
	Pitch float64 `json:"pitch"`
}

// TiltFromAccel computes roll and pitch from the gravity vector alone:
//
//	roll  = atan2(ay, az)
//	pitch = atan2(-ax, sqrt(ay² + az²))
//
// It is only meaningful while the instrument is not accelerating.
func TiltFromAccel(a imu.Vec3) Pose {
	roll := math.Atan2(a.Y, a.Z)
	pitch := math.Atan2(-a.X, math.Sqrt(a.Y*a.Y+a.Z*a.Z))
	return Pose{
		Roll:  roll * 180 / math.Pi,
		Pitch: pitch * 180 / math.Pi,
	}
}

// Fuse builds a State from a processed sample and the last known fix. The fix
// is copied by value. fixValid is passed separately so callers can age out a
// sticky fix without touching its coordinates.
func Fuse(s imu.Processed, fix gps.Fix, fixValid bool) State {
	return State{
		Timestamp:  s.Timestamp,
		Accel:      s.Accel,
		Gyro:       s.Gyro,
		Mag:        s.Mag,
		TotalAccel: s.Accel.Norm(),
		Pose:       TiltFromAccel(s.Accel),
		GPSValid:   fixValid,
		Latitude:   fix.Latitude,
		Longitude:  fix.Longitude,
		SpeedKnots: fix.SpeedKnots,
		HeadingDeg: fix.HeadingDeg,
		Satellites: fix.Satellites,
		GPSTime:    fix.Time,
		FixTime:    fix.Timestamp,
	}
}

package gps

import "time"

// Fix is a position/velocity solution, suitable for JSON and MQTT.
type Fix struct {
	Timestamp  time.Time `json:"timestamp"`   // when the record left the decoder
	Valid      bool      `json:"valid"`       // receiver reports a 2D/3D fix
	Time       string    `json:"time"`        // receiver time of day, "12:34:56"
	Latitude   float64   `json:"lat"`         // decimal degrees
	Longitude  float64   `json:"lon"`         // decimal degrees
	SpeedKnots float64   `json:"speed_knots"` // speed over ground
	HeadingDeg float64   `json:"heading_deg"` // course over ground, [0,360)
	Satellites int       `json:"satellites"`
}

// Accuracy is the companion quality record of a Fix.
type Accuracy struct {
	HorizontalMM uint32 `json:"h_acc_mm"`
	SpeedMMS     uint32 `json:"s_acc_mms"`
	FixType      uint8  `json:"fix_type"` // 0 none, 1 dead reckoning, 2 2D, 3 3D, ...
}

// Record is one decoded output. NMEA sentences carry no accuracy, so
// HasAccuracy is false for them.
type Record struct {
	Fix         Fix      `json:"fix"`
	Accuracy    Accuracy `json:"accuracy"`
	HasAccuracy bool     `json:"has_accuracy"`
}

// Age returns how old the fix is at now. A zero timestamp is treated as
// infinitely old.
func (f Fix) Age(now time.Time) time.Duration {
	if f.Timestamp.IsZero() {
		return time.Duration(1<<63 - 1)
	}
	return now.Sub(f.Timestamp)
}

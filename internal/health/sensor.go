package health

// SensorStatus counts consecutive read failures of one device so its task can
// decide when to reset it. Like Component, it is owned by a single task.
type SensorStatus struct {
	limit       int
	consecutive int
	resets      int
}

// NewSensorStatus creates a tracker that trips after limit consecutive
// failures. A limit <= 0 disables tripping.
func NewSensorStatus(limit int) *SensorStatus {
	return &SensorStatus{limit: limit}
}

// Success clears the failure streak.
func (s *SensorStatus) Success() {
	s.consecutive = 0
}

// Failure extends the failure streak and returns true when the device should
// be reset. The streak starts over after a trip, whether or not the reset
// works.
func (s *SensorStatus) Failure() bool {
	s.consecutive++
	if s.limit > 0 && s.consecutive >= s.limit {
		s.consecutive = 0
		s.resets++
		return true
	}
	return false
}

func (s *SensorStatus) Consecutive() int { return s.consecutive }
func (s *SensorStatus) Resets() int      { return s.resets }

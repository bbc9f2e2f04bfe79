package pipeline

import (
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/relabs-tech/motion_computer/internal/health"
	"github.com/relabs-tech/motion_computer/internal/imu"
	"github.com/relabs-tech/motion_computer/internal/timing"
)

// acquisitionTask samples the inertial devices and feeds RawIMU.
type acquisitionTask struct {
	c   *Context
	ag  imu.AccelGyroReader
	mag imu.MagReader
	log *log.Entry

	imuHealth, magHealth *health.Component
	imuStatus, magStatus *health.SensorStatus
	limiter              *timing.RateLimiter
}

func newAcquisitionTask(c *Context, ag imu.AccelGyroReader, mag imu.MagReader) *acquisitionTask {
	limit := c.Config.Health.MaxConsecutiveFailures
	return &acquisitionTask{
		c:         c,
		ag:        ag,
		mag:       mag,
		log:       c.Log.WithField("task", "acquisition"),
		imuHealth: c.Health.Get(ComponentIMU),
		magHealth: c.Health.Get(ComponentMag),
		imuStatus: health.NewSensorStatus(limit),
		magStatus: health.NewSensorStatus(limit),
		limiter:   timing.NewRateLimiter(c.Config.Log.HighFreqHz),
	}
}

// step takes one sample. A failed accel/gyro read produces no sample; a
// failed magnetometer read zeroes the magnetic field only.
func (t *acquisitionTask) step(now time.Time) (imu.Raw, bool) {
	accel, gyro, err := t.ag.ReadAccelGyro()
	if err != nil {
		t.imuHealth.RecordFailure()
		t.log.WithError(err).Debug("accel/gyro read failed")
		if t.imuStatus.Failure() {
			t.reset("accel/gyro", t.ag)
		}
		t.report()
		return imu.Raw{}, false
	}
	t.imuHealth.RecordSuccess()
	t.imuStatus.Success()

	s := imu.Raw{Timestamp: now, Valid: true, Accel: accel, Gyro: gyro}

	if t.mag != nil {
		m, err := t.mag.ReadMagnetometer()
		if err != nil {
			t.magHealth.RecordFailure()
			t.log.WithError(err).Debug("magnetometer read failed")
			if t.magStatus.Failure() {
				t.reset("magnetometer", t.mag)
			}
		} else {
			t.magHealth.RecordSuccess()
			t.magStatus.Success()
			s.Mag = m
		}
	}

	recordSend(t.imuHealth, t.c.RawIMU.Send(s))
	t.debug(now, s)
	t.report()
	return s, true
}

func (t *acquisitionTask) reset(what string, dev any) {
	r, ok := dev.(imu.Resetter)
	if !ok {
		t.log.Warnf("%s: %d consecutive failures, device cannot be reset",
			what, t.c.Config.Health.MaxConsecutiveFailures)
		return
	}
	if err := r.Reset(); err != nil {
		t.log.WithError(err).Errorf("%s reset failed", what)
		return
	}
	t.log.Warnf("%s reset after %d consecutive failures", what, t.c.Config.Health.MaxConsecutiveFailures)
}

func (t *acquisitionTask) report() {
	interval := t.c.Config.Health.ReportInterval
	if t.imuHealth.ShouldReport(interval) {
		t.imuHealth.Report(t.log)
	}
	if t.mag != nil && t.magHealth.ShouldReport(interval) {
		t.magHealth.Report(t.log)
	}
}

func (t *acquisitionTask) debug(now time.Time, s imu.Raw) {
	if !t.log.Logger.IsLevelEnabled(log.DebugLevel) {
		return
	}
	if !t.c.Runtime.Verbose() {
		ok, suppressed := t.limiter.Allow(now)
		if !ok {
			return
		}
		if suppressed > 0 {
			t.log.Debugf("%d sample lines suppressed", suppressed)
		}
	}
	t.log.Debugf("A[%.2f, %.2f, %.2f]g G[%.1f, %.1f, %.1f]°/s M[%.1f, %.1f, %.1f]µT",
		s.Accel.X, s.Accel.Y, s.Accel.Z, s.Gyro.X, s.Gyro.Y, s.Gyro.Z, s.Mag.X, s.Mag.Y, s.Mag.Z)
}

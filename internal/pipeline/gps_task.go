package pipeline

import (
	"context"
	"errors"
	"io"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/relabs-tech/motion_computer/internal/gps"
	"github.com/relabs-tech/motion_computer/internal/health"
	"github.com/relabs-tech/motion_computer/internal/queue"
)

const (
	gpsReadChunk        = 512
	gpsMaxReadsPerCycle = 16
	gpsSendTimeout      = 100 * time.Millisecond
	gpsLogEvery         = 10
)

// gpsTask reads whatever the receiver sent since the last cycle, decodes it
// and forwards each record to Fixes.
type gpsTask struct {
	c       *Context
	r       io.Reader
	dec     gps.Decoder
	buf     []byte
	health  *health.Component
	status  *health.SensorStatus
	log     *log.Entry
	last    gps.Stats
	records int
}

func newGPSTask(c *Context, r io.Reader, dec gps.Decoder) *gpsTask {
	return &gpsTask{
		c:      c,
		r:      r,
		dec:    dec,
		buf:    make([]byte, gpsReadChunk),
		health: c.Health.Get(ComponentGPS),
		status: health.NewSensorStatus(c.Config.Health.MaxConsecutiveFailures),
		log:    c.Log.WithField("task", "gps"),
	}
}

// step drains the reader and returns the records it forwarded.
func (t *gpsTask) step(ctx context.Context, now time.Time) []gps.Record {
	var out []gps.Record
	for i := 0; i < gpsMaxReadsPerCycle; i++ {
		n, err := t.r.Read(t.buf)
		gps.DecodeAll(t.dec, t.buf[:n], func(rec gps.Record) {
			rec.Fix.Timestamp = now
			t.health.RecordSuccess()
			t.status.Success()
			r := t.c.Fixes.SendBlocking(ctx, rec, gpsSendTimeout)
			recordSend(t.health, r)
			if r == queue.Sent {
				out = append(out, rec)
			}
			t.logFix(rec)
		})
		if err != nil {
			if !errors.Is(err, io.EOF) {
				t.readFailed(err)
			}
			break
		}
		if n == 0 {
			break
		}
	}

	// Framing errors count against the receiver link.
	st := t.dec.Stats()
	for i := st.ChecksumErrors + st.Overflows; i > t.last.ChecksumErrors+t.last.Overflows; i-- {
		t.health.RecordFailure()
	}
	t.last = st

	if t.health.ShouldReport(gpsLogEvery) {
		if _, reported := t.health.Report(t.log); reported {
			t.log.WithFields(log.Fields{
				"records":         st.Records,
				"checksum_errors": st.ChecksumErrors,
				"overflows":       st.Overflows,
				"ignored":         st.Ignored,
				"coerced":         st.CoercedCoordinates,
			}).Warn("decoder stats")
		}
	}
	return out
}

func (t *gpsTask) readFailed(err error) {
	t.health.RecordFailure()
	t.log.WithError(err).Debug("serial read failed")
	if !t.status.Failure() {
		return
	}
	t.dec.Reset()
	if r, ok := t.r.(interface{ Reset() error }); ok {
		if err := r.Reset(); err != nil {
			t.log.WithError(err).Error("receiver reset failed")
			return
		}
	}
	t.log.Warnf("receiver link reset after %d consecutive failures", t.c.Config.Health.MaxConsecutiveFailures)
}

func (t *gpsTask) logFix(rec gps.Record) {
	t.records++
	if t.records%gpsLogEvery != 1 {
		return
	}
	f := rec.Fix
	if f.Valid {
		t.log.Infof("position %.6f, %.6f | speed %.1f kn | sats %d", f.Latitude, f.Longitude, f.SpeedKnots, f.Satellites)
	} else {
		t.log.Infof("searching for fix, satellites %d", f.Satellites)
	}
}

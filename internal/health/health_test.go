package health

import (
	"testing"

	log "github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newEntry() (*log.Entry, *test.Hook) {
	logger, hook := test.NewNullLogger()
	return log.NewEntry(logger), hook
}

func TestSuccessRate(t *testing.T) {
	c := NewComponent("imu", DefaultPolicy)
	assert.Zero(t, c.SuccessRate())

	for i := 0; i < 3; i++ {
		c.RecordSuccess()
	}
	c.RecordFailure()
	assert.EqualValues(t, 75, c.SuccessRate())

	c.RecordDrop()
	s := c.Snapshot()
	assert.EqualValues(t, 4, s.Total, "drops are not operations")
	assert.EqualValues(t, 1, s.Drops)
	assert.True(t, s.HasIssue)
}

func TestShouldReport(t *testing.T) {
	entry, _ := newEntry()
	c := NewComponent("gps", DefaultPolicy)
	assert.False(t, c.ShouldReport(10))
	assert.True(t, c.ShouldReport(0))

	for i := 0; i < 10; i++ {
		c.RecordSuccess()
	}
	assert.True(t, c.ShouldReport(10))

	c.Report(entry)
	assert.False(t, c.ShouldReport(10))
	for i := 0; i < 9; i++ {
		c.RecordSuccess()
	}
	assert.False(t, c.ShouldReport(10))
	c.RecordFailure()
	assert.True(t, c.ShouldReport(10))
}

func TestReportOnlyRegressions(t *testing.T) {
	entry, hook := newEntry()
	c := NewComponent("imu", DefaultPolicy)

	for i := 0; i < 9; i++ {
		c.RecordSuccess()
	}
	_, reported := c.Report(entry)
	assert.False(t, reported, "below the sample floor")

	c.RecordSuccess()
	_, reported = c.Report(entry)
	assert.False(t, reported, "100% with no issues is silent")
	assert.Empty(t, hook.AllEntries())
}

func TestReportOneFailureInTen(t *testing.T) {
	entry, hook := newEntry()
	c := NewComponent("imu", DefaultPolicy)

	for i := 0; i < 9; i++ {
		c.RecordSuccess()
	}
	c.RecordFailure()

	snap, reported := c.Report(entry)
	require.True(t, reported)
	assert.EqualValues(t, 90, snap.SuccessRate)
	require.Len(t, hook.AllEntries(), 1)
	assert.Equal(t, log.WarnLevel, hook.LastEntry().Level)
	assert.Equal(t, "imu", hook.LastEntry().Data["component"])
	assert.False(t, c.Snapshot().HasIssue, "issue flag cleared after reporting")
	assert.EqualValues(t, 10, c.Snapshot().Total, "counters retained")

	for i := 0; i < 10; i++ {
		c.RecordSuccess()
	}
	_, reported = c.Report(entry)
	assert.False(t, reported, "19/20 is at the threshold")
	assert.Len(t, hook.AllEntries(), 1)
}

func TestReportDrops(t *testing.T) {
	entry, hook := newEntry()
	c := NewComponent("fusion", DefaultPolicy)
	for i := 0; i < 20; i++ {
		c.RecordSuccess()
	}
	c.RecordDrop()

	_, reported := c.Report(entry)
	require.True(t, reported)
	assert.EqualValues(t, 1, hook.LastEntry().Data["drops"])

	// Drops are cumulative, so the component keeps reporting until restart.
	_, reported = c.Report(entry)
	assert.True(t, reported)
}

func TestSensorStatus(t *testing.T) {
	s := NewSensorStatus(3)
	assert.False(t, s.Failure())
	assert.False(t, s.Failure())
	s.Success()
	assert.Zero(t, s.Consecutive())

	assert.False(t, s.Failure())
	assert.False(t, s.Failure())
	assert.True(t, s.Failure())
	assert.Zero(t, s.Consecutive())
	assert.Equal(t, 1, s.Resets())

	off := NewSensorStatus(0)
	for i := 0; i < 100; i++ {
		assert.False(t, off.Failure())
	}
}

func TestRegistry(t *testing.T) {
	_, err := NewRegistry(DefaultPolicy, "imu", "imu")
	require.Error(t, err)

	r, err := NewRegistry(DefaultPolicy, "imu", "gps")
	require.NoError(t, err)
	require.NotNil(t, r.Get("imu"))
	assert.Nil(t, r.Get("mag"))

	for i := 0; i < 10; i++ {
		r.Get("gps").RecordFailure()
	}
	entry, hook := newEntry()
	hook.Reset()
	entry.Logger.SetLevel(log.DebugLevel)
	snaps := r.LogSummary(entry)
	require.Len(t, snaps, 2)
	assert.Equal(t, "imu", snaps[0].Name)

	var warned []string
	for _, e := range hook.AllEntries() {
		if e.Level == log.WarnLevel {
			warned = append(warned, e.Data["component"].(string))
		}
	}
	assert.Equal(t, []string{"gps"}, warned)
	assert.True(t, r.Get("gps").Snapshot().HasIssue, "summary does not clear issues")
}

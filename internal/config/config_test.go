package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func writeTempConfig(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "motion.yaml")
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))
	return path
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, 10*time.Millisecond, cfg.Timing.IMUPeriod)
	assert.Equal(t, time.Second, cfg.Timing.GPSPeriod)
	assert.Equal(t, 20*time.Millisecond, cfg.Timing.FusionPeriod)
	assert.Equal(t, 100*time.Millisecond, cfg.Timing.ConsumerPeriod)
	assert.Equal(t, 5*time.Second, cfg.Timing.HealthPeriod)

	assert.Equal(t, 256, cfg.Queues.IMURaw)
	assert.Equal(t, 16, cfg.Queues.GPS)
	assert.Equal(t, 128, cfg.Queues.Fused)

	assert.EqualValues(t, 10, cfg.Health.MinSamples)
	assert.EqualValues(t, 95, cfg.Health.SuccessThreshold)
	assert.EqualValues(t, 1000, cfg.Health.ReportInterval)
	assert.Equal(t, 10, cfg.Health.MaxConsecutiveFailures)

	assert.Equal(t, 50*time.Millisecond, cfg.Latency.Threshold)
	assert.Zero(t, cfg.GPS.FixMaxAge, "sticky fix never expires by default")
	assert.Equal(t, "ubx", cfg.GPS.Protocol)
	assert.EqualValues(t, 0x1E, cfg.Mag.I2CAddr)
}

func TestLoadFileOverrides(t *testing.T) {
	path := writeTempConfig(t, `
timing:
  imu_period: 5ms
gps:
  protocol: nmea
  fix_max_age: 30s
queues:
  fused: 4
imu:
  source: mock
`)
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 5*time.Millisecond, cfg.Timing.IMUPeriod)
	assert.Equal(t, "nmea", cfg.GPS.Protocol)
	assert.Equal(t, 30*time.Second, cfg.GPS.FixMaxAge)
	assert.Equal(t, 4, cfg.Queues.Fused)
	assert.Equal(t, "mock", cfg.IMU.Source)
	assert.Equal(t, 256, cfg.Queues.IMURaw, "untouched keys keep defaults")
}

func TestLoadEnvOverride(t *testing.T) {
	t.Setenv("MOTION_GPS_PORT", "/dev/ttyUSB0")
	t.Setenv("MOTION_QUEUES_GPS", "8")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "/dev/ttyUSB0", cfg.GPS.Port)
	assert.Equal(t, 8, cfg.Queues.GPS)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
}

func TestValidate(t *testing.T) {
	cases := []struct {
		name  string
		extra string
		want  string
	}{
		{"ZeroPeriod", "timing:\n  fusion_period: 0s\n", "invalid config: timing.fusion_period must be > 0"},
		{"ZeroQueue", "queues:\n  imu_raw: 0\n", "invalid config: queues.imu_raw must be > 0"},
		{"BadProtocol", "gps:\n  protocol: sirf\n", "invalid config: gps.protocol must be 'ubx' or 'nmea'"},
		{"ReplayNeedsFile", "gps:\n  source: replay\n", "invalid config: gps.replay_file is required when gps.source is 'replay'"},
		{"BadIMU", "imu:\n  source: bno085\n", "invalid config: imu.source must be 'mpu9250' or 'mock'"},
		{"BadRange", "imu:\n  gyro_range: 4\n", "invalid config: imu.accel_range and imu.gyro_range must be 0-3"},
		{"Threshold", "health:\n  success_threshold: 101\n", "invalid config: health.success_threshold must be <= 100"},
		{"NegativeAge", "gps:\n  fix_max_age: -1s\n", "invalid config: gps.fix_max_age must be >= 0"},
		{"BadFormat", "log:\n  format: xml\n", "invalid config: log.format must be 'text' or 'json'"},
		{"DisplayAddr", "display:\n  enabled: true\n  i2c_addr: 0x3D\n", "invalid config: display.i2c_addr must be 0x3C"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Load(writeTempConfig(t, tc.extra))
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrInvalid))
			assert.Equal(t, tc.want, err.Error())
		})
	}
}

func TestYAMLRoundTrip(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	out, err := cfg.YAML()
	require.NoError(t, err)
	assert.Contains(t, string(out), "imu_period: 10ms")

	reloaded, err := Load(writeTempConfig(t, string(out)))
	require.NoError(t, err)
	assert.Equal(t, cfg, reloaded)

	var generic map[string]any
	require.NoError(t, yaml.Unmarshal(out, &generic))
	assert.Contains(t, generic, "sched")
}

func TestRuntime(t *testing.T) {
	logger, _ := test.NewNullLogger()
	r, err := NewRuntime(logger, LogConfig{Level: "warn", Format: "json"})
	require.NoError(t, err)
	assert.Equal(t, log.WarnLevel, logger.GetLevel())
	assert.IsType(t, &log.JSONFormatter{}, logger.Formatter)
	assert.False(t, r.Verbose())

	r.SetVerbose(true)
	assert.True(t, r.Verbose())
	assert.Equal(t, log.DebugLevel, r.Level())

	r.SetLevel(log.ErrorLevel)
	assert.Equal(t, log.ErrorLevel, logger.GetLevel())
	assert.True(t, r.Verbose(), "level and verbose are independent afterwards")

	_, err = NewRuntime(logger, LogConfig{Level: "loud"})
	assert.Error(t, err)
}

func TestShippedConfigMatchesDefaults(t *testing.T) {
	shipped, err := Load(filepath.Join("..", "..", "motion_config.yaml"))
	require.NoError(t, err)
	defaults, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, defaults, shipped)
}

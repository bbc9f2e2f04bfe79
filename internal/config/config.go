package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// ErrInvalid wraps every validation failure returned by Load.
var ErrInvalid = errors.New("invalid config")

// Config holds all application configuration values.
type Config struct {
	Log     LogConfig     `mapstructure:"log" yaml:"log"`
	Timing  TimingConfig  `mapstructure:"timing" yaml:"timing"`
	Queues  QueueConfig   `mapstructure:"queues" yaml:"queues"`
	Health  HealthConfig  `mapstructure:"health" yaml:"health"`
	Latency LatencyConfig `mapstructure:"latency" yaml:"latency"`
	GPS     GPSConfig     `mapstructure:"gps" yaml:"gps"`
	IMU     IMUConfig     `mapstructure:"imu" yaml:"imu"`
	Mag     MagConfig     `mapstructure:"mag" yaml:"mag"`
	MQTT    MQTTConfig    `mapstructure:"mqtt" yaml:"mqtt"`
	Web     WebConfig     `mapstructure:"web" yaml:"web"`
	Display DisplayConfig `mapstructure:"display" yaml:"display"`
	Sched   SchedConfig   `mapstructure:"sched" yaml:"sched"`
}

type LogConfig struct {
	Level   string `mapstructure:"level" yaml:"level"`   // logrus level name
	Format  string `mapstructure:"format" yaml:"format"` // text or json
	Verbose bool   `mapstructure:"verbose" yaml:"verbose"`
	// HighFreqHz caps per-sample debug lines when not verbose.
	HighFreqHz int `mapstructure:"high_freq_hz" yaml:"high_freq_hz"`
}

// TimingConfig holds the task periods.
type TimingConfig struct {
	IMUPeriod      time.Duration `mapstructure:"imu_period" yaml:"imu_period"`
	FilterPeriod   time.Duration `mapstructure:"filter_period" yaml:"filter_period"`
	GPSPeriod      time.Duration `mapstructure:"gps_period" yaml:"gps_period"`
	FusionPeriod   time.Duration `mapstructure:"fusion_period" yaml:"fusion_period"`
	ConsumerPeriod time.Duration `mapstructure:"consumer_period" yaml:"consumer_period"`
	HealthPeriod   time.Duration `mapstructure:"health_period" yaml:"health_period"`
}

// QueueConfig holds the queue capacities.
type QueueConfig struct {
	IMURaw       int `mapstructure:"imu_raw" yaml:"imu_raw"`
	IMUProcessed int `mapstructure:"imu_processed" yaml:"imu_processed"`
	GPS          int `mapstructure:"gps" yaml:"gps"`
	Fused        int `mapstructure:"fused" yaml:"fused"`
}

type HealthConfig struct {
	MinSamples             uint64 `mapstructure:"min_samples" yaml:"min_samples"`
	SuccessThreshold       uint64 `mapstructure:"success_threshold" yaml:"success_threshold"`
	ReportInterval         uint64 `mapstructure:"report_interval" yaml:"report_interval"`
	MaxConsecutiveFailures int    `mapstructure:"max_consecutive_failures" yaml:"max_consecutive_failures"`
}

type LatencyConfig struct {
	Threshold      time.Duration `mapstructure:"threshold" yaml:"threshold"`
	ReportInterval time.Duration `mapstructure:"report_interval" yaml:"report_interval"`
}

type GPSConfig struct {
	Source   string `mapstructure:"source" yaml:"source"`     // serial, replay or none
	Protocol string `mapstructure:"protocol" yaml:"protocol"` // ubx or nmea
	Port     string `mapstructure:"port" yaml:"port"`
	Baud     uint   `mapstructure:"baud" yaml:"baud"`
	// ReplayFile is read in a loop when Source is "replay".
	ReplayFile         string `mapstructure:"replay_file" yaml:"replay_file"`
	VerifyNMEAChecksum bool   `mapstructure:"verify_nmea_checksum" yaml:"verify_nmea_checksum"`
	MaxPayload         int    `mapstructure:"max_payload" yaml:"max_payload"`
	// FixMaxAge marks a sticky fix invalid once it is older than this.
	// Zero keeps it forever.
	FixMaxAge time.Duration `mapstructure:"fix_max_age" yaml:"fix_max_age"`
}

type IMUConfig struct {
	Source    string `mapstructure:"source" yaml:"source"` // mpu9250 or mock
	SPIDevice string `mapstructure:"spi_device" yaml:"spi_device"`
	CSPin     string `mapstructure:"cs_pin" yaml:"cs_pin"`
	// AccelRange: 0=±2g, 1=±4g, 2=±8g, 3=±16g
	AccelRange byte `mapstructure:"accel_range" yaml:"accel_range"`
	// GyroRange: 0=±250°/s, 1=±500°/s, 2=±1000°/s, 3=±2000°/s
	GyroRange byte `mapstructure:"gyro_range" yaml:"gyro_range"`
	Calibrate bool `mapstructure:"calibrate" yaml:"calibrate"`
}

type MagConfig struct {
	Source  string `mapstructure:"source" yaml:"source"` // hmc5883, mock or none
	I2CBus  string `mapstructure:"i2c_bus" yaml:"i2c_bus"`
	I2CAddr uint16 `mapstructure:"i2c_addr" yaml:"i2c_addr"`
}

type MQTTConfig struct {
	Enabled     bool   `mapstructure:"enabled" yaml:"enabled"`
	Broker      string `mapstructure:"broker" yaml:"broker"`
	ClientID    string `mapstructure:"client_id" yaml:"client_id"`
	TopicState  string `mapstructure:"topic_state" yaml:"topic_state"`
	TopicHealth string `mapstructure:"topic_health" yaml:"topic_health"`
	TopicFix    string `mapstructure:"topic_fix" yaml:"topic_fix"`
}

type WebConfig struct {
	Enabled bool   `mapstructure:"enabled" yaml:"enabled"`
	Addr    string `mapstructure:"addr" yaml:"addr"`
}

type DisplayConfig struct {
	Enabled  bool          `mapstructure:"enabled" yaml:"enabled"`
	I2CBus   string        `mapstructure:"i2c_bus" yaml:"i2c_bus"`
	I2CAddr  uint16        `mapstructure:"i2c_addr" yaml:"i2c_addr"`
	Interval time.Duration `mapstructure:"interval" yaml:"interval"`
}

// SchedConfig places the two execution contexts on CPUs. A negative CPU
// leaves that context unpinned.
type SchedConfig struct {
	Pin           bool `mapstructure:"pin" yaml:"pin"`
	CriticalCPU   int  `mapstructure:"critical_cpu" yaml:"critical_cpu"`
	BestEffortCPU int  `mapstructure:"best_effort_cpu" yaml:"best_effort_cpu"`
}

// EnvPrefix is the prefix of environment overrides, e.g. MOTION_GPS_PORT.
const EnvPrefix = "MOTION"

// SetDefaults registers every default on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
	v.SetDefault("log.verbose", false)
	v.SetDefault("log.high_freq_hz", 10)

	v.SetDefault("timing.imu_period", 10*time.Millisecond)
	v.SetDefault("timing.filter_period", 10*time.Millisecond)
	v.SetDefault("timing.gps_period", 1000*time.Millisecond)
	v.SetDefault("timing.fusion_period", 20*time.Millisecond)
	v.SetDefault("timing.consumer_period", 100*time.Millisecond)
	v.SetDefault("timing.health_period", 5000*time.Millisecond)

	v.SetDefault("queues.imu_raw", 256)
	v.SetDefault("queues.imu_processed", 256)
	v.SetDefault("queues.gps", 16)
	v.SetDefault("queues.fused", 128)

	v.SetDefault("health.min_samples", 10)
	v.SetDefault("health.success_threshold", 95)
	v.SetDefault("health.report_interval", 1000)
	v.SetDefault("health.max_consecutive_failures", 10)

	v.SetDefault("latency.threshold", 50*time.Millisecond)
	v.SetDefault("latency.report_interval", 5*time.Second)

	v.SetDefault("gps.source", "serial")
	v.SetDefault("gps.protocol", "ubx")
	v.SetDefault("gps.port", "/dev/serial0")
	v.SetDefault("gps.baud", 9600)
	v.SetDefault("gps.replay_file", "")
	v.SetDefault("gps.verify_nmea_checksum", true)
	v.SetDefault("gps.max_payload", 256)
	v.SetDefault("gps.fix_max_age", time.Duration(0))

	v.SetDefault("imu.source", "mpu9250")
	v.SetDefault("imu.spi_device", "/dev/spidev0.0")
	v.SetDefault("imu.cs_pin", "8")
	v.SetDefault("imu.accel_range", 0)
	v.SetDefault("imu.gyro_range", 0)
	v.SetDefault("imu.calibrate", true)

	v.SetDefault("mag.source", "hmc5883")
	v.SetDefault("mag.i2c_bus", "")
	v.SetDefault("mag.i2c_addr", 0x1E)

	v.SetDefault("mqtt.enabled", false)
	v.SetDefault("mqtt.broker", "tcp://localhost:1883")
	v.SetDefault("mqtt.client_id", "motion-core")
	v.SetDefault("mqtt.topic_state", "motion/state")
	v.SetDefault("mqtt.topic_health", "motion/health")
	v.SetDefault("mqtt.topic_fix", "motion/gps")

	v.SetDefault("web.enabled", false)
	v.SetDefault("web.addr", ":8080")

	v.SetDefault("display.enabled", false)
	v.SetDefault("display.i2c_bus", "")
	v.SetDefault("display.i2c_addr", 0x3C)
	v.SetDefault("display.interval", 500*time.Millisecond)

	v.SetDefault("sched.pin", false)
	v.SetDefault("sched.critical_cpu", 1)
	v.SetDefault("sched.best_effort_cpu", 0)
}

// NewViper returns a viper instance with defaults and environment overrides
// set up. Callers may bind flags on it before calling Decode.
func NewViper() *viper.Viper {
	v := viper.New()
	SetDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// Load reads path (YAML) on top of the defaults and validates the result.
// An empty path loads defaults and environment only.
func Load(path string) (*Config, error) {
	return LoadWith(NewViper(), path)
}

// LoadWith is Load on a caller-prepared viper, e.g. one with flags bound.
func LoadWith(v *viper.Viper, path string) (*Config, error) {
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}
	return Decode(v)
}

// Decode unmarshals and validates the settings held by v.
func Decode(v *viper.Viper) (*Config, error) {
	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks ranges and enumerations.
func (c *Config) Validate() error {
	periods := []struct {
		key string
		d   time.Duration
	}{
		{"timing.imu_period", c.Timing.IMUPeriod},
		{"timing.filter_period", c.Timing.FilterPeriod},
		{"timing.gps_period", c.Timing.GPSPeriod},
		{"timing.fusion_period", c.Timing.FusionPeriod},
		{"timing.consumer_period", c.Timing.ConsumerPeriod},
		{"timing.health_period", c.Timing.HealthPeriod},
		{"latency.report_interval", c.Latency.ReportInterval},
	}
	for _, p := range periods {
		if p.d <= 0 {
			return invalid("%s must be > 0", p.key)
		}
	}

	sizes := []struct {
		key string
		n   int
	}{
		{"queues.imu_raw", c.Queues.IMURaw},
		{"queues.imu_processed", c.Queues.IMUProcessed},
		{"queues.gps", c.Queues.GPS},
		{"queues.fused", c.Queues.Fused},
	}
	for _, s := range sizes {
		if s.n <= 0 {
			return invalid("%s must be > 0", s.key)
		}
	}

	if c.Health.SuccessThreshold > 100 {
		return invalid("health.success_threshold must be <= 100")
	}
	if c.GPS.FixMaxAge < 0 {
		return invalid("gps.fix_max_age must be >= 0")
	}

	switch c.GPS.Protocol {
	case "ubx", "nmea":
	default:
		return invalid("gps.protocol must be 'ubx' or 'nmea'")
	}
	switch c.GPS.Source {
	case "serial":
		if c.GPS.Port == "" {
			return invalid("gps.port is required when gps.source is 'serial'")
		}
		if c.GPS.Baud == 0 {
			return invalid("gps.baud is required when gps.source is 'serial'")
		}
	case "replay":
		if c.GPS.ReplayFile == "" {
			return invalid("gps.replay_file is required when gps.source is 'replay'")
		}
	case "none":
	default:
		return invalid("gps.source must be 'serial', 'replay' or 'none'")
	}

	switch c.IMU.Source {
	case "mpu9250", "mock":
	default:
		return invalid("imu.source must be 'mpu9250' or 'mock'")
	}
	if c.IMU.AccelRange > 3 || c.IMU.GyroRange > 3 {
		return invalid("imu.accel_range and imu.gyro_range must be 0-3")
	}
	switch c.Mag.Source {
	case "hmc5883", "mock", "none":
	default:
		return invalid("mag.source must be 'hmc5883', 'mock' or 'none'")
	}

	switch c.Log.Format {
	case "text", "json":
	default:
		return invalid("log.format must be 'text' or 'json'")
	}
	if _, err := ParseLevel(c.Log.Level); err != nil {
		return invalid("log.level: %v", err)
	}

	if c.MQTT.Enabled && c.MQTT.Broker == "" {
		return invalid("mqtt.broker is required when mqtt is enabled")
	}
	if c.Web.Enabled && c.Web.Addr == "" {
		return invalid("web.addr is required when web is enabled")
	}
	if c.Display.Enabled && c.Display.Interval <= 0 {
		return invalid("display.interval must be > 0")
	}
	// The ssd1306 driver only addresses 0x3C.
	if c.Display.Enabled && c.Display.I2CAddr != 0x3C {
		return invalid("display.i2c_addr must be 0x3C")
	}
	return nil
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalid, fmt.Sprintf(format, args...))
}

// YAML renders the effective configuration.
func (c *Config) YAML() ([]byte, error) {
	return yaml.Marshal(c)
}

package sensors

import (
	"errors"
	"fmt"

	log "github.com/sirupsen/logrus"
	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/host/v3"

	"github.com/relabs-tech/motion_computer/internal/config"
	"github.com/relabs-tech/motion_computer/internal/imu"
)

// HMC5883L registers.
const (
	hmcRegConfigA = 0x00
	hmcRegConfigB = 0x01
	hmcRegMode    = 0x02
	hmcRegDataX   = 0x03 // X, Z, Y, each big-endian
	hmcRegIDA     = 0x0A

	hmcConfigA        = 0x70 // 8-sample average, 15 Hz, normal measurement
	hmcConfigB        = 0x20 // ±1.3 Ga
	hmcModeCont       = 0x00
	hmcCountsPerGauss = 1090.0
	hmcOverflow       = -4096
)

// ErrMagOverflow is returned when an axis saturates.
var ErrMagOverflow = errors.New("magnetometer: axis overflow")

// HMC5883 reads an HMC5883L compass over I2C.
type HMC5883 struct {
	bus i2c.BusCloser
	dev *i2c.Dev
}

// NewHMC5883 opens the I2C bus named in cfg and configures the device for
// continuous measurement.
func NewHMC5883(cfg config.MagConfig) (*HMC5883, error) {
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("mag: periph host init: %w", err)
	}
	bus, err := i2creg.Open(cfg.I2CBus)
	if err != nil {
		return nil, fmt.Errorf("mag: i2c open %q: %w", cfg.I2CBus, err)
	}
	h := &HMC5883{bus: bus, dev: &i2c.Dev{Bus: bus, Addr: cfg.I2CAddr}}

	id := make([]byte, 3)
	if err := h.dev.Tx([]byte{hmcRegIDA}, id); err != nil {
		bus.Close()
		return nil, fmt.Errorf("mag: read ID: %w", err)
	}
	if string(id) != "H43" {
		bus.Close()
		return nil, fmt.Errorf("mag: unexpected ID %q at 0x%02X", id, cfg.I2CAddr)
	}
	if err := h.Reset(); err != nil {
		bus.Close()
		return nil, err
	}
	log.WithField("device", "hmc5883").Infof("initialized at 0x%02X", cfg.I2CAddr)
	return h, nil
}

// Reset rewrites the configuration registers.
func (h *HMC5883) Reset() error {
	for _, w := range [][]byte{
		{hmcRegConfigA, hmcConfigA},
		{hmcRegConfigB, hmcConfigB},
		{hmcRegMode, hmcModeCont},
	} {
		if err := h.dev.Tx(w, nil); err != nil {
			return fmt.Errorf("mag: write reg 0x%02X: %w", w[0], err)
		}
	}
	return nil
}

// ReadMagnetometer returns the field in µT.
func (h *HMC5883) ReadMagnetometer() (imu.Vec3, error) {
	buf := make([]byte, 6)
	if err := h.dev.Tx([]byte{hmcRegDataX}, buf); err != nil {
		return imu.Vec3{}, fmt.Errorf("mag: read data: %w", err)
	}
	return decodeHMC(buf)
}

func decodeHMC(buf []byte) (imu.Vec3, error) {
	x := int16(uint16(buf[0])<<8 | uint16(buf[1]))
	z := int16(uint16(buf[2])<<8 | uint16(buf[3]))
	y := int16(uint16(buf[4])<<8 | uint16(buf[5]))
	if x == hmcOverflow || y == hmcOverflow || z == hmcOverflow {
		return imu.Vec3{}, ErrMagOverflow
	}
	const toUT = 100 / hmcCountsPerGauss
	return imu.Vec3{X: float64(x) * toUT, Y: float64(y) * toUT, Z: float64(z) * toUT}, nil
}

// Close releases the I2C bus.
func (h *HMC5883) Close() error {
	return h.bus.Close()
}

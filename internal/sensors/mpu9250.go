// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package sensors

import (
	"fmt"
	"math"

	log "github.com/sirupsen/logrus"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/devices/v3/mpu9250"
	"periph.io/x/host/v3"

	"github.com/relabs-tech/motion_computer/internal/config"
	"github.com/relabs-tech/motion_computer/internal/imu"
)

// MPU9250 reads acceleration and rotation from an MPU9250 on SPI and
// converts them to g and deg/s.
type MPU9250 struct {
	cfg      config.IMUConfig
	dev      *mpu9250.MPU9250
	accelLSB float64 // counts per g
	gyroLSB  float64 // counts per deg/s
}

// NewMPU9250 opens and initializes the device described by cfg.
func NewMPU9250(cfg config.IMUConfig) (*MPU9250, error) {
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("IMU: periph host init: %w", err)
	}

	cs := gpioreg.ByName(cfg.CSPin)
	if cs == nil {
		return nil, fmt.Errorf("IMU: CS pin %q not found", cfg.CSPin)
	}

	tr, err := mpu9250.NewSpiTransport(cfg.SPIDevice, cs)
	if err != nil {
		return nil, fmt.Errorf("IMU: SPI transport (%s): %w", cfg.SPIDevice, err)
	}

	dev, err := mpu9250.New(*tr)
	if err != nil {
		return nil, fmt.Errorf("IMU: device creation: %w", err)
	}

	m := &MPU9250{
		cfg:      cfg,
		dev:      dev,
		accelLSB: 16384 / math.Pow(2, float64(cfg.AccelRange)),
		gyroLSB:  131 / math.Pow(2, float64(cfg.GyroRange)),
	}
	if err := m.setup(); err != nil {
		return nil, err
	}

	if cfg.Calibrate {
		if res, err := dev.SelfTest(); err != nil {
			log.WithField("device", "mpu9250").Warnf("self-test failed: %v", err)
		} else {
			log.WithField("device", "mpu9250").Infof("self-test accel dev %.2f/%.2f/%.2f%% gyro dev %.2f/%.2f/%.2f%%",
				res.AccelDeviation.X, res.AccelDeviation.Y, res.AccelDeviation.Z,
				res.GyroDeviation.X, res.GyroDeviation.Y, res.GyroDeviation.Z)
		}
		if err := dev.Calibrate(); err != nil {
			log.WithField("device", "mpu9250").Warnf("calibration failed: %v", err)
		}
	}
	return m, nil
}

func (m *MPU9250) setup() error {
	if err := m.dev.Init(); err != nil {
		return fmt.Errorf("IMU: initialization: %w", err)
	}
	if err := m.dev.SetAccelRange(m.cfg.AccelRange); err != nil {
		return fmt.Errorf("IMU: set accel range: %w", err)
	}
	if err := m.dev.SetGyroRange(m.cfg.GyroRange); err != nil {
		return fmt.Errorf("IMU: set gyro range: %w", err)
	}
	log.WithField("device", "mpu9250").Infof("ranges set: ±%dg, ±%d°/s",
		[]int{2, 4, 8, 16}[m.cfg.AccelRange], []int{250, 500, 1000, 2000}[m.cfg.GyroRange])
	return nil
}

// ReadAccelGyro reads all six axes.
func (m *MPU9250) ReadAccelGyro() (accel, gyro imu.Vec3, err error) {
	reads := []struct {
		name string
		fn   func() (int16, error)
		dst  *float64
		lsb  float64
	}{
		{"accel X", m.dev.GetAccelerationX, &accel.X, m.accelLSB},
		{"accel Y", m.dev.GetAccelerationY, &accel.Y, m.accelLSB},
		{"accel Z", m.dev.GetAccelerationZ, &accel.Z, m.accelLSB},
		{"gyro X", m.dev.GetRotationX, &gyro.X, m.gyroLSB},
		{"gyro Y", m.dev.GetRotationY, &gyro.Y, m.gyroLSB},
		{"gyro Z", m.dev.GetRotationZ, &gyro.Z, m.gyroLSB},
	}
	for _, r := range reads {
		v, err := r.fn()
		if err != nil {
			return imu.Vec3{}, imu.Vec3{}, fmt.Errorf("IMU %s: %w", r.name, err)
		}
		*r.dst = float64(v) / r.lsb
	}
	return accel, gyro, nil
}

// Reset re-initializes the device and re-applies the ranges.
func (m *MPU9250) Reset() error {
	return m.setup()
}

// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"errors"
	"fmt"
	"io"

	log "github.com/sirupsen/logrus"

	"github.com/relabs-tech/motion_computer/internal/config"
	"github.com/relabs-tech/motion_computer/internal/gps"
	"github.com/relabs-tech/motion_computer/internal/imu"
	"github.com/relabs-tech/motion_computer/internal/pipeline"
	"github.com/relabs-tech/motion_computer/internal/sensors"
)

// serialReadTimeoutMS bounds how long a GPS read may wait for the first byte.
const serialReadTimeoutMS = 10

// OpenDevices opens the sensors named in cfg. The returned closer releases
// whatever was opened and is valid even when err is not nil.
func OpenDevices(cfg *config.Config, entry *log.Entry) (pipeline.Devices, io.Closer, error) {
	var (
		dev     pipeline.Devices
		closers closerList
		mock    *imu.MockSource
	)

	switch cfg.IMU.Source {
	case "mpu9250":
		m, err := sensors.NewMPU9250(cfg.IMU)
		if err != nil {
			return dev, closers, err
		}
		dev.AccelGyro = m
		entry.WithField("spi", cfg.IMU.SPIDevice).Info("MPU9250 ready")
	case "mock":
		mock = imu.NewMockSource()
		dev.AccelGyro = mock
		entry.Warn("using mock accel/gyro")
	}

	switch cfg.Mag.Source {
	case "hmc5883":
		h, err := sensors.NewHMC5883(cfg.Mag)
		if err != nil {
			return dev, closers, err
		}
		closers = append(closers, h)
		dev.Mag = h
		entry.WithField("addr", fmt.Sprintf("0x%02X", cfg.Mag.I2CAddr)).Info("HMC5883 ready")
	case "mock":
		if mock == nil {
			mock = imu.NewMockSource()
		}
		dev.Mag = mock
		entry.Warn("using mock magnetometer")
	}

	dec, err := gps.NewDecoder(gps.Protocol(cfg.GPS.Protocol), gps.Options{
		MaxPayload:     cfg.GPS.MaxPayload,
		VerifyChecksum: cfg.GPS.VerifyNMEAChecksum,
	})
	if err != nil {
		return dev, closers, err
	}

	switch cfg.GPS.Source {
	case "serial":
		port, err := sensors.OpenSerial(cfg.GPS.Port, cfg.GPS.Baud, serialReadTimeoutMS)
		if err != nil {
			return dev, closers, err
		}
		closers = append(closers, port)
		dev.GPS = port
		dev.Decoder = dec
	case "replay":
		r, err := OpenReplayFile(cfg.GPS.ReplayFile, cfg.GPS.Baud)
		if err != nil {
			return dev, closers, err
		}
		dev.GPS = r
		dev.Decoder = dec
		entry.WithField("file", cfg.GPS.ReplayFile).Warn("replaying recorded GPS stream")
	case "none":
		entry.Warn("GPS disabled")
	}
	return dev, closers, nil
}

type closerList []io.Closer

func (l closerList) Close() error {
	var errs []error
	for i := len(l) - 1; i >= 0; i-- {
		if err := l[i].Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

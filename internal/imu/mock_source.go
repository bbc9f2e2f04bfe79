// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package imu

import (
	"errors"
	"math"
	"sync"
	"time"
)

// ErrMockFailure is returned by a MockSource while it is told to fail.
var ErrMockFailure = errors.New("imu: mock read failure")

// MockSource generates smoothly changing readings for running without
// hardware. It implements AccelGyroReader, MagReader and Resetter.
type MockSource struct {
	start time.Time
	now   func() time.Time

	mu       sync.Mutex
	failNext int
	resets   int
}

// NewMockSource creates a mock that starts its waveforms now.
func NewMockSource() *MockSource {
	return &MockSource{start: time.Now(), now: time.Now}
}

// FailNext makes the next n reads return ErrMockFailure.
func (m *MockSource) FailNext(n int) {
	m.mu.Lock()
	m.failNext = n
	m.mu.Unlock()
}

// Resets returns how many times Reset was called.
func (m *MockSource) Resets() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.resets
}

func (m *MockSource) fail() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failNext > 0 {
		m.failNext--
		return true
	}
	return false
}

func (m *MockSource) ReadAccelGyro() (Vec3, Vec3, error) {
	if m.fail() {
		return Vec3{}, Vec3{}, ErrMockFailure
	}
	elapsed := m.now().Sub(m.start).Seconds()

	roll := 20 * math.Pi / 180 * math.Sin(elapsed)
	pitch := 15 * math.Pi / 180 * math.Cos(elapsed*0.7)
	accel := Vec3{
		X: -math.Sin(pitch),
		Y: math.Sin(roll) * math.Cos(pitch),
		Z: math.Cos(roll) * math.Cos(pitch),
	}
	gyro := Vec3{
		X: 20 * math.Cos(elapsed),
		Y: -15 * 0.7 * math.Sin(elapsed*0.7),
		Z: 30,
	}
	return accel, gyro, nil
}

func (m *MockSource) ReadMagnetometer() (Vec3, error) {
	if m.fail() {
		return Vec3{}, ErrMockFailure
	}
	yaw := math.Mod(m.now().Sub(m.start).Seconds()*30, 360) * math.Pi / 180
	return Vec3{X: 22 * math.Cos(yaw), Y: -22 * math.Sin(yaw), Z: -42}, nil
}

func (m *MockSource) Reset() error {
	m.mu.Lock()
	m.resets++
	m.failNext = 0
	m.mu.Unlock()
	return nil
}

// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package odometry

import (
	"math"
	"time"
)

// MockSource generates a smooth circular trajectory for bench testing
// without a camera.
type MockSource struct {
	start time.Time

	Radius   float64 // m
	Rate     float64 // rad/s
	Altitude float64 // m above origin
	StdDev   float64 // reported position stddev; 0 omits the covariance
}

// NewMockSource creates a mock odometry source starting at start.
func NewMockSource(start time.Time) *MockSource {
	return &MockSource{
		start:    start,
		Radius:   2,
		Rate:     0.5,
		Altitude: 1,
		StdDev:   0.05,
	}
}

// Next returns the position at now.
func (m *MockSource) Next(now time.Time) Message {
	elapsed := now.Sub(m.start).Seconds()
	a := elapsed * m.Rate

	msg := Message{
		TimestampUS: now.UnixMicro(),
		X:           m.Radius * math.Cos(a),
		Y:           m.Radius * math.Sin(a),
		Z:           -m.Altitude + 0.1*math.Sin(elapsed*0.7),
	}
	if m.StdDev > 0 {
		v := m.StdDev * m.StdDev
		msg.PoseCovariance = make([]float64, CovarianceLen)
		for _, idx := range covDiag {
			msg.PoseCovariance[idx] = v
		}
	}
	return msg
}

// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package estimator

import "strings"

// State vector layout.
const (
	StateX = iota
	StateY
	StateZ
	StateVX
	StateVY
	StateVZ
	StateBiasX
	StateBiasY
	StateBiasZ
	StateTerrainZ
	NumStates
)

// SensorMask identifies one sensor type within the health bitmasks.
type SensorMask uint16

const (
	SensorBaro SensorMask = 1 << iota
	SensorLidar
	SensorSonar
	SensorGPS
	SensorFlow
	SensorVision
	SensorMocap
	SensorLand
)

var sensorNames = []struct {
	mask SensorMask
	name string
}{
	{SensorBaro, "baro"},
	{SensorLidar, "lidar"},
	{SensorSonar, "sonar"},
	{SensorGPS, "gps"},
	{SensorFlow, "flow"},
	{SensorVision, "vision"},
	{SensorMocap, "mocap"},
	{SensorLand, "land"},
}

// Names lists the sensors set in m.
func (m SensorMask) Names() []string {
	var out []string
	for _, s := range sensorNames {
		if m&s.mask != 0 {
			out = append(out, s.name)
		}
	}
	return out
}

func (m SensorMask) String() string {
	if m == 0 {
		return "none"
	}
	return strings.Join(m.Names(), "|")
}

// Health holds the fault and timeout bitmasks shared by every unit of
// one estimator. Each unit touches only its own bits.
type Health struct {
	Fault   SensorMask `json:"fault"`
	Timeout SensorMask `json:"timeout"`
}

// Faulted reports whether the fault bit of s is set.
func (h Health) Faulted(s SensorMask) bool { return h.Fault&s != 0 }

// TimedOut reports whether the timeout bit of s is set.
func (h Health) TimedOut(s SensorMask) bool { return h.Timeout&s != 0 }

// SetFault sets or clears the fault bit of s.
func (h *Health) SetFault(s SensorMask, on bool) {
	if on {
		h.Fault |= s
	} else {
		h.Fault &^= s
	}
}

// SetTimeout sets or clears the timeout bit of s.
func (h *Health) SetTimeout(s SensorMask, on bool) {
	if on {
		h.Timeout |= s
	} else {
		h.Timeout &^= s
	}
}

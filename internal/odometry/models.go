// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package odometry

import (
	"time"

	"github.com/relabs-tech/local_position_estimator/internal/config"
	"github.com/relabs-tech/local_position_estimator/internal/estimator"
)

// Unit tuning that is not exposed as configuration.
const (
	VisionTimeout   = 500 * time.Millisecond
	VisionInitCount = 1
	MocapTimeout    = 200 * time.Millisecond
	MocapInitCount  = 20
)

func positionAxes(c config.SensorConfig) []estimator.Axis {
	return []estimator.Axis{
		{State: estimator.StateX, Group: estimator.Horizontal, FloorStdDev: c.XYStdDev},
		{State: estimator.StateY, Group: estimator.Horizontal, FloorStdDev: c.XYStdDev},
		{State: estimator.StateZ, Group: estimator.Vertical, FloorStdDev: c.ZStdDev},
	}
}

// VisionModel is the visual odometry position unit.
func VisionModel(c config.SensorConfig) estimator.Model {
	return estimator.Model{
		Name:                         "vision",
		Sensor:                       estimator.SensorVision,
		Axes:                         positionAxes(c),
		RequiredInitCount:            VisionInitCount,
		Timeout:                      VisionTimeout,
		MaxStdDev:                    c.MaxStdDev,
		FixedDelay:                   c.DelayDuration(),
		AssumeValidWithoutCovariance: c.AssumeValid,
	}
}

// MocapModel is the motion capture position unit. Motion capture systems
// report no covariance, so AssumeValid should normally stay on.
func MocapModel(c config.SensorConfig) estimator.Model {
	return estimator.Model{
		Name:                         "mocap",
		Sensor:                       estimator.SensorMocap,
		Axes:                         positionAxes(c),
		RequiredInitCount:            MocapInitCount,
		Timeout:                      MocapTimeout,
		MaxStdDev:                    c.MaxStdDev,
		FixedDelay:                   c.DelayDuration(),
		AssumeValidWithoutCovariance: c.AssumeValid,
	}
}

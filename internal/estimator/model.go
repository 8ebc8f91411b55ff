// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package estimator

import (
	"errors"
	"fmt"
	"math"
	"math/bits"
	"time"

	"github.com/relabs-tech/local_position_estimator/internal/stats"
)

// MaxDim is the largest measurement dimension a unit supports.
const MaxDim = stats.MaxDim

// ErrInvalidModel is wrapped by every Model validation failure.
var ErrInvalidModel = errors.New("invalid sensor model")

// Sample is one raw measurement as delivered by a sensor transport.
// A NaN variance marks a covariance entry the sensor did not populate.
type Sample struct {
	Time     time.Time
	Value    [MaxDim]float64
	Variance [MaxDim]float64
}

// Source returns the most recent sample of a sensor without blocking.
// The same sample may be returned on consecutive calls.
type Source interface {
	Latest() (Sample, bool)
}

// SourceFunc adapts a function to Source.
type SourceFunc func() (Sample, bool)

// Latest calls f.
func (f SourceFunc) Latest() (Sample, bool) { return f() }

// AxisGroup groups measurement axes that share one uncertainty figure
// and one validity flag.
type AxisGroup int

const (
	Horizontal AxisGroup = iota
	Vertical
	numAxisGroups
)

func (g AxisGroup) String() string {
	switch g {
	case Horizontal:
		return "horizontal"
	case Vertical:
		return "vertical"
	default:
		return fmt.Sprintf("group(%d)", int(g))
	}
}

// Axis maps one measurement component onto a state component.
type Axis struct {
	State       int       // index into the state vector
	Group       AxisGroup // uncertainty group
	FloorStdDev float64   // lower bound of the noise standard deviation
}

// Model describes a sensor type: its measurement mapping and tuning.
// Every position-like sensor in the estimator is a Model run by a Unit.
type Model struct {
	Name   string
	Sensor SensorMask
	Axes   []Axis

	// Init completes once more than RequiredInitCount consecutive
	// samples were accepted.
	RequiredInitCount int
	Timeout           time.Duration

	// MaxStdDev is the ceiling on reported uncertainty; equal is valid.
	MaxStdDev float64

	// FixedDelay overrides the measured latency when positive.
	FixedDelay time.Duration

	// AssumeValidWithoutCovariance accepts samples whose covariance is
	// not populated instead of rejecting them.
	AssumeValidWithoutCovariance bool
}

// Dim returns the measurement dimension.
func (m Model) Dim() int { return len(m.Axes) }

// Validate checks the model against a state dimension.
func (m Model) Validate(numStates int) error {
	if m.Name == "" {
		return fmt.Errorf("%w: empty name", ErrInvalidModel)
	}
	if m.Sensor == 0 || bits.OnesCount16(uint16(m.Sensor)) != 1 {
		return fmt.Errorf("%w: %s: sensor mask %#x must have exactly one bit", ErrInvalidModel, m.Name, uint16(m.Sensor))
	}
	if len(m.Axes) == 0 || len(m.Axes) > MaxDim {
		return fmt.Errorf("%w: %s: dimension %d outside 1..%d", ErrInvalidModel, m.Name, len(m.Axes), MaxDim)
	}
	seen := make(map[int]bool, len(m.Axes))
	for i, a := range m.Axes {
		if a.State < 0 || a.State >= numStates {
			return fmt.Errorf("%w: %s: axis %d maps to state %d, have %d states", ErrInvalidModel, m.Name, i, a.State, numStates)
		}
		if seen[a.State] {
			return fmt.Errorf("%w: %s: state %d measured twice", ErrInvalidModel, m.Name, a.State)
		}
		seen[a.State] = true
		if a.Group < 0 || a.Group >= numAxisGroups {
			return fmt.Errorf("%w: %s: axis %d has unknown group %d", ErrInvalidModel, m.Name, i, int(a.Group))
		}
		if !(a.FloorStdDev >= 0) || math.IsInf(a.FloorStdDev, 0) {
			return fmt.Errorf("%w: %s: axis %d floor stddev %v", ErrInvalidModel, m.Name, i, a.FloorStdDev)
		}
	}
	if m.RequiredInitCount < 0 {
		return fmt.Errorf("%w: %s: negative init count", ErrInvalidModel, m.Name)
	}
	if m.Timeout <= 0 {
		return fmt.Errorf("%w: %s: timeout must be positive", ErrInvalidModel, m.Name)
	}
	if !(m.MaxStdDev > 0) {
		return fmt.Errorf("%w: %s: max stddev must be positive", ErrInvalidModel, m.Name)
	}
	if m.FixedDelay < 0 {
		return fmt.Errorf("%w: %s: negative fixed delay", ErrInvalidModel, m.Name)
	}
	return nil
}

// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package estimator fuses delayed position measurements into a local
// position/velocity state. Each sensor type is a Model run by a Unit,
// which validates samples, initializes, gates corrections on a
// chi-square fault test and drops back to initialization on timeout.
//
// The estimator does not run a time update: callers that own a process
// model propagate X and P between cycles through SetState/Covariance.
package estimator

import (
	"fmt"
	"math"
	"time"

	"gonum.org/v1/gonum/mat"
)

// Defaults for Options.
const (
	DefaultHistoryLen  = 10
	DefaultHistoryStep = 50 * time.Millisecond
	DefaultMaxDelay    = 500 * time.Millisecond
)

// Options configures an Estimator.
type Options struct {
	HistoryLen  int
	HistoryStep time.Duration
	MaxDelay    time.Duration

	// InitialVariance is the diagonal of P at start; nil uses
	// DefaultInitialVariance(1, 1).
	InitialVariance []float64

	Global      GlobalFrame
	Notifier    Notifier
	Diagnostics Diagnostics
}

// DefaultInitialVariance returns a P diagonal for the given position and
// velocity standard deviations.
func DefaultInitialVariance(posStdDev, velStdDev float64) []float64 {
	pv := 2 * posStdDev * posStdDev
	vv := 2 * velStdDev * velStdDev
	return []float64{
		pv, pv, pv,
		vv, vv, vv,
		1e-6, 1e-6, 1e-6,
		pv,
	}
}

// Estimator owns the state, its covariance and delay history, and runs its
// sensor units strictly one after another.
type Estimator struct {
	x       *mat.VecDense
	p       *mat.Dense
	history *DelayBuffer
	health  Health
	origin  Origin
	units   []*Unit
	opts    Options
}

// New returns an estimator with zero state and diagonal covariance.
func New(opts Options) (*Estimator, error) {
	if opts.HistoryLen <= 0 {
		opts.HistoryLen = DefaultHistoryLen
	}
	if opts.HistoryStep <= 0 {
		opts.HistoryStep = DefaultHistoryStep
	}
	if opts.MaxDelay <= 0 {
		opts.MaxDelay = DefaultMaxDelay
	}
	if opts.InitialVariance == nil {
		opts.InitialVariance = DefaultInitialVariance(1, 1)
	}
	if len(opts.InitialVariance) != NumStates {
		return nil, fmt.Errorf("estimator: initial variance has %d entries, want %d", len(opts.InitialVariance), NumStates)
	}
	for i, v := range opts.InitialVariance {
		if !(v >= 0) {
			return nil, fmt.Errorf("estimator: initial variance %d is %v", i, v)
		}
	}

	p := mat.NewDense(NumStates, NumStates, nil)
	for i, v := range opts.InitialVariance {
		p.Set(i, i, v)
	}

	return &Estimator{
		x:       mat.NewVecDense(NumStates, nil),
		p:       p,
		history: NewDelayBuffer(opts.HistoryLen, NumStates, opts.HistoryStep, opts.MaxDelay),
		opts:    opts,
	}, nil
}

// AddSensor registers a unit for m fed by src. Units run in registration
// order.
func (e *Estimator) AddSensor(m Model, src Source) (*Unit, error) {
	for _, u := range e.units {
		if u.model.Sensor == m.Sensor {
			return nil, fmt.Errorf("estimator: sensor %s already registered as %q", m.Sensor, u.model.Name)
		}
	}
	u, err := NewUnit(m, src, Env{
		X:           e.x,
		P:           e.p,
		History:     e.history,
		Health:      &e.health,
		Origin:      &e.origin,
		Global:      e.opts.Global,
		Notifier:    e.opts.Notifier,
		Diagnostics: e.opts.Diagnostics,
	})
	if err != nil {
		return nil, fmt.Errorf("add sensor %q: %w", m.Name, err)
	}
	e.units = append(e.units, u)
	return u, nil
}

// Update runs one cycle at now.
func (e *Estimator) Update(now time.Time) {
	if e.history.Due(now) {
		e.history.Push(now, e.x)
	}
	for _, u := range e.units {
		u.Update(now)
	}
}

// Units returns the registered units.
func (e *Estimator) Units() []*Unit { return e.units }

// State returns the live state vector.
func (e *Estimator) State() mat.Vector { return e.x }

// Covariance returns the live state covariance.
func (e *Estimator) Covariance() *mat.Dense { return e.p }

// SetState overwrites the state vector.
func (e *Estimator) SetState(x mat.Vector) error {
	if x.Len() != NumStates {
		return fmt.Errorf("estimator: state has %d entries, want %d", x.Len(), NumStates)
	}
	e.x.CopyVec(x)
	return nil
}

// Health returns a copy of the health bitmasks.
func (e *Estimator) Health() Health { return e.health }

// Origin returns the reference anchor.
func (e *Estimator) Origin() *Origin { return &e.origin }

// History returns the delay buffer.
func (e *Estimator) History() *DelayBuffer { return e.history }

// Estimate is a published snapshot of the estimator.
type Estimate struct {
	Time           time.Time  `json:"time"`
	Position       [3]float64 `json:"position"`
	Velocity       [3]float64 `json:"velocity"`
	PositionStdDev [3]float64 `json:"position_stddev"`
	Fault          []string   `json:"fault,omitempty"`
	Timeout        []string   `json:"timeout,omitempty"`
	Origin         OriginInfo `json:"origin"`
	Global         *GeoPoint  `json:"global,omitempty"`
	Sensors        []Status   `json:"sensors"`
}

// Estimate snapshots the estimator at now.
func (e *Estimator) Estimate(now time.Time) Estimate {
	est := Estimate{
		Time:    now,
		Fault:   e.health.Fault.Names(),
		Timeout: e.health.Timeout.Names(),
		Origin:  e.origin.Info(),
	}
	for i := 0; i < 3; i++ {
		est.Position[i] = e.x.AtVec(StateX + i)
		est.Velocity[i] = e.x.AtVec(StateVX + i)
		est.PositionStdDev[i] = sqrtNonNeg(e.p.At(StateX+i, StateX+i))
	}
	if e.origin.GlobalInitialized() {
		if g, err := e.origin.ToGlobal(est.Position[0], est.Position[1], est.Position[2]); err == nil {
			est.Global = &g
		}
	}
	for _, u := range e.units {
		est.Sensors = append(est.Sensors, u.Status())
	}
	return est
}

func sqrtNonNeg(v float64) float64 {
	if v <= 0 {
		return 0
	}
	return math.Sqrt(v)
}

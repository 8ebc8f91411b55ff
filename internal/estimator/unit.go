// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package estimator

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"gonum.org/v1/gonum/mat"

	"github.com/relabs-tech/local_position_estimator/internal/stats"
)

// Env is the estimator state a unit reads and mutates. X and P belong to
// the parent estimator; units must run one at a time against them.
type Env struct {
	X           *mat.VecDense
	P           *mat.Dense
	History     History
	Health      *Health
	Origin      *Origin
	Global      GlobalFrame // optional
	Notifier    Notifier    // optional
	Diagnostics Diagnostics // optional
}

// UnitState is the lifecycle position of a unit.
type UnitState int

const (
	StateUninitialized UnitState = iota
	StateActive
	StateFaulted
	StateTimedOut
)

func (s UnitState) String() string {
	switch s {
	case StateActive:
		return "active"
	case StateFaulted:
		return "faulted"
	case StateTimedOut:
		return "timed_out"
	default:
		return "uninitialized"
	}
}

// MarshalText implements encoding.TextMarshaler.
func (s UnitState) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *UnitState) UnmarshalText(b []byte) error {
	for st := StateUninitialized; st <= StateTimedOut; st++ {
		if st.String() == string(b) {
			*s = st
			return nil
		}
	}
	return fmt.Errorf("unknown unit state %q", b)
}

// Status is a snapshot of one unit.
type Status struct {
	Sensor           string    `json:"sensor"`
	State            UnitState `json:"state"`
	Count            int       `json:"count"`
	Mean             []float64 `json:"mean"`
	StdDev           []float64 `json:"stddev"`
	HorizontalStdDev float64   `json:"eph"`
	VerticalStdDev   float64   `json:"epv"`
	HorizontalValid  bool      `json:"xy_valid"`
	VerticalValid    bool      `json:"z_valid"`
	LastSeen         time.Time `json:"last_seen"`
}

// Unit runs delay-compensated Kalman corrections for one sensor Model:
// measurement validation, initialization, chi-square fault gating and
// timeout tracking.
type Unit struct {
	model Model
	src   Source
	env   Env
	ny    int
	nx    int

	stats       *stats.Stats
	sample      Sample
	uncertainty [numAxisGroups]float64
	valid       [numAxisGroups]bool
	lastSeen    time.Time
	initialized bool

	// preallocated work storage
	y     *mat.VecDense
	x0    *mat.VecDense
	res   *mat.VecDense
	dx    *mat.VecDense
	c     *mat.Dense
	rDiag [MaxDim]float64
	cp    *mat.Dense
	s     *mat.Dense
	sSym  *mat.SymDense
	sInv  *mat.SymDense
	pct   *mat.Dense
	k     *mat.Dense
	kc    *mat.Dense
	kcp   *mat.Dense
	chol  mat.Cholesky
}

// NewUnit validates m against env and returns a unit in the
// uninitialized state, with its timeout bit set.
func NewUnit(m Model, src Source, env Env) (*Unit, error) {
	if src == nil {
		return nil, errors.New("estimator: nil source")
	}
	if env.X == nil || env.P == nil || env.History == nil || env.Health == nil || env.Origin == nil {
		return nil, errors.New("estimator: incomplete unit environment")
	}
	nx := env.X.Len()
	if r, c := env.P.Dims(); r != nx || c != nx {
		return nil, fmt.Errorf("estimator: covariance is %dx%d, state has %d entries", r, c, nx)
	}
	if err := m.Validate(nx); err != nil {
		return nil, err
	}
	if env.Notifier == nil {
		env.Notifier = discard{}
	}
	if env.Diagnostics == nil {
		env.Diagnostics = discard{}
	}

	ny := m.Dim()
	u := &Unit{
		model: m,
		src:   src,
		env:   env,
		ny:    ny,
		nx:    nx,
		stats: stats.New(ny),
		y:     mat.NewVecDense(ny, nil),
		x0:    mat.NewVecDense(nx, nil),
		res:   mat.NewVecDense(ny, nil),
		dx:    mat.NewVecDense(nx, nil),
		c:     mat.NewDense(ny, nx, nil),
		cp:    mat.NewDense(ny, nx, nil),
		s:     mat.NewDense(ny, ny, nil),
		sSym:  mat.NewSymDense(ny, nil),
		sInv:  mat.NewSymDense(ny, nil),
		pct:   mat.NewDense(nx, ny, nil),
		k:     mat.NewDense(nx, ny, nil),
		kc:    mat.NewDense(nx, nx, nil),
		kcp:   mat.NewDense(nx, nx, nil),
	}
	for i, a := range m.Axes {
		u.c.Set(i, a.State, 1)
	}
	u.valid = [numAxisGroups]bool{true, true}
	env.Health.SetTimeout(m.Sensor, true)
	return u, nil
}

// Model returns the sensor model.
func (u *Unit) Model() Model { return u.model }

// Update runs one estimator cycle: timeout check, then initialization or
// correction when the source holds a sample not seen before.
func (u *Unit) Update(now time.Time) {
	u.CheckTimeout(now)

	s, ok := u.src.Latest()
	if !ok || !s.Time.After(u.lastSeen) {
		return
	}

	if u.env.Health.TimedOut(u.model.Sensor) {
		u.Init(now)
	} else {
		u.Correct(now)
	}
}

// Measure reads the latest sample, validates it and on success loads the
// measurement vector and feeds the running statistics. The last-seen
// timestamp advances even when the sample is rejected.
func (u *Unit) Measure() bool {
	s, ok := u.src.Latest()
	if !ok {
		return false
	}
	u.sample = s

	covFinite := true
	for i := 0; i < u.ny; i++ {
		if math.IsNaN(s.Variance[i]) || math.IsInf(s.Variance[i], 0) {
			covFinite = false
			break
		}
	}

	switch {
	case covFinite:
		var maxVar [numAxisGroups]float64
		var seen [numAxisGroups]bool
		for i, a := range u.model.Axes {
			if !seen[a.Group] || s.Variance[i] > maxVar[a.Group] {
				maxVar[a.Group] = s.Variance[i]
				seen[a.Group] = true
			}
		}
		for g := range maxVar {
			u.uncertainty[g] = 0
			u.valid[g] = true
			if seen[g] {
				u.uncertainty[g] = math.Sqrt(maxVar[g])
				u.valid[g] = u.uncertainty[g] <= u.model.MaxStdDev
			}
		}
	case u.model.AssumeValidWithoutCovariance:
		// reported uncertainty is dropped, not carried over: R falls back to the floors
		u.uncertainty = [numAxisGroups]float64{}
		u.valid = [numAxisGroups]bool{true, true}
	default:
		u.uncertainty = [numAxisGroups]float64{}
		u.valid = [numAxisGroups]bool{false, false}
	}

	u.lastSeen = s.Time

	for _, v := range u.valid {
		if !v {
			return false
		}
	}
	for i := 0; i < u.ny; i++ {
		if math.IsNaN(s.Value[i]) || math.IsInf(s.Value[i], 0) {
			return false
		}
	}

	for i := 0; i < u.ny; i++ {
		u.y.SetVec(i, s.Value[i])
	}
	u.stats.Update(u.sample.Value[:u.ny])
	return true
}

// Init accumulates samples while the unit is uninitialized. It returns
// true on the cycle that completes initialization.
func (u *Unit) Init(now time.Time) bool {
	if !u.Measure() {
		u.stats.Reset()
		return false
	}
	if u.stats.Count() <= u.model.RequiredInitCount {
		return false
	}

	u.notify(now, LevelInfo, KindInit, fmt.Sprintf("%s position init: %s std %s",
		u.model.Name, formatVec(u.stats.Mean()), formatVec(u.stats.StdDev())))
	u.env.Health.SetTimeout(u.model.Sensor, false)
	u.env.Health.SetFault(u.model.Sensor, false)
	u.initialized = true
	u.initOrigin(now)
	return true
}

func (u *Unit) initOrigin(now time.Time) {
	var ref GeoPoint
	var globalOK bool
	if u.env.Global != nil {
		ref, globalOK = u.env.Global.GlobalReference()
	}
	u.env.Origin.MarkReference(now)

	if globalOK && u.env.Origin.InitGlobal(ref, now) {
		u.notify(now, LevelInfo, KindOrigin, fmt.Sprintf("global origin init (%s): lat %.6f lon %.6f alt %.1f m",
			u.model.Name, ref.Lat, ref.Lon, ref.Alt))
	}

	alt := 0.0
	if globalOK {
		alt = ref.Alt
	}
	u.env.Origin.InitAltitude(alt, globalOK)
}

// Correct applies one delay-compensated Kalman correction. It returns
// true only when X and P were updated.
func (u *Unit) Correct(now time.Time) bool {
	if !u.Measure() {
		u.notify(now, LevelInfo, KindInvalid, fmt.Sprintf("%s data invalid. eph: %.3f epv: %.3f",
			u.model.Name, u.uncertainty[Horizontal], u.uncertainty[Vertical]))
		return false
	}

	for i, a := range u.model.Axes {
		sd := a.FloorStdDev
		if unc := u.uncertainty[a.Group]; unc > sd {
			sd = unc
		}
		u.rDiag[i] = sd * sd
	}

	delay := now.Sub(u.sample.Time)
	if delay < 0 {
		delay = 0
	}
	if u.model.FixedDelay > 0 {
		delay = u.model.FixedDelay
	}

	hist, err := u.env.History.Index(now, delay)
	if err != nil {
		return false
	}
	u.env.History.At(hist, u.x0)

	// r = y - C x0
	u.res.MulVec(u.c, u.x0)
	u.res.SubVec(u.y, u.res)

	// S = C P C' + R, against the current covariance
	u.cp.Mul(u.c, u.env.P)
	u.s.Mul(u.cp, u.c.T())
	for i := 0; i < u.ny; i++ {
		u.s.Set(i, i, u.s.At(i, i)+u.rDiag[i])
	}
	for i := 0; i < u.ny; i++ {
		for j := i; j < u.ny; j++ {
			u.sSym.SetSym(i, j, 0.5*(u.s.At(i, j)+u.s.At(j, i)))
		}
	}

	if !u.chol.Factorize(u.sSym) {
		return false
	}
	if err := u.chol.InverseTo(u.sInv); err != nil {
		return false
	}

	beta := mat.Inner(u.res, u.sInv, u.res)
	faulted := u.FaultCheck(now, beta)
	u.publish(now, beta, faulted)

	if faulted {
		return false
	}

	// K = P C' S^-1
	u.pct.Mul(u.env.P, u.c.T())
	u.k.Mul(u.pct, u.sInv)

	u.dx.MulVec(u.k, u.res)
	u.env.X.AddVec(u.env.X, u.dx)

	u.kc.Mul(u.k, u.c)
	u.kcp.Mul(u.kc, u.env.P)
	u.env.P.Sub(u.env.P, u.kcp)
	return true
}

// FaultCheck gates beta against the threshold for this unit's dimension
// and returns whether the unit is faulted. Notifications fire only when
// the fault bit changes.
func (u *Unit) FaultCheck(now time.Time, beta float64) bool {
	bit := u.model.Sensor
	if beta > BetaThreshold(u.ny) {
		if !u.env.Health.Faulted(bit) {
			u.notify(now, LevelInfo, KindFault, fmt.Sprintf("%s position fault, beta %5.2f", u.model.Name, beta))
			u.env.Health.SetFault(bit, true)
		}
	} else if u.env.Health.Faulted(bit) {
		u.env.Health.SetFault(bit, false)
		u.notify(now, LevelInfo, KindRecovered, fmt.Sprintf("%s position OK", u.model.Name))
	}
	return u.env.Health.Faulted(bit)
}

// CheckTimeout marks the unit timed out once no sample has been seen for
// longer than the model timeout. Only initialization clears the bit.
func (u *Unit) CheckTimeout(now time.Time) bool {
	if now.Sub(u.lastSeen) <= u.model.Timeout {
		return false
	}
	if u.env.Health.TimedOut(u.model.Sensor) {
		return false
	}
	u.env.Health.SetTimeout(u.model.Sensor, true)
	u.stats.Reset()
	u.notify(now, LevelCritical, KindTimeout, fmt.Sprintf("%s position timeout", u.model.Name))
	return true
}

// Status returns a snapshot of the unit.
func (u *Unit) Status() Status {
	st := Status{
		Sensor:           u.model.Name,
		Count:            u.stats.Count(),
		Mean:             append([]float64(nil), u.stats.Mean()...),
		StdDev:           append([]float64(nil), u.stats.StdDev()...),
		HorizontalStdDev: u.uncertainty[Horizontal],
		VerticalStdDev:   u.uncertainty[Vertical],
		HorizontalValid:  u.valid[Horizontal],
		VerticalValid:    u.valid[Vertical],
		LastSeen:         u.lastSeen,
	}
	switch h := u.env.Health; {
	case h.TimedOut(u.model.Sensor) && u.initialized:
		st.State = StateTimedOut
	case h.TimedOut(u.model.Sensor):
		st.State = StateUninitialized
	case h.Faulted(u.model.Sensor):
		st.State = StateFaulted
	default:
		st.State = StateActive
	}
	return st
}

func (u *Unit) publish(now time.Time, beta float64, faulted bool) {
	in := Innovation{
		Sensor: u.model.Name,
		Time:   now,
		Dim:    u.ny,
		Beta:   beta,
		Fault:  faulted,
	}
	for i := 0; i < InnovationWidth; i++ {
		if i < u.ny {
			in.Residual[i] = u.res.AtVec(i)
			in.Variance[i] = u.s.At(i, i)
		} else {
			in.Variance[i] = 1
		}
	}
	u.env.Diagnostics.PublishInnovation(in)
}

func (u *Unit) notify(now time.Time, level Level, kind Kind, msg string) {
	u.env.Notifier.Notify(NewEvent(now, level, kind, u.model.Name, msg))
}

func formatVec(v []float64) string {
	parts := make([]string, len(v))
	for i, x := range v {
		parts[i] = fmt.Sprintf("%5.2f", x)
	}
	return strings.Join(parts, " ") + " m"
}

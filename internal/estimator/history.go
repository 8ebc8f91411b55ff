// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package estimator

import (
	"errors"
	"fmt"
	"time"

	"gonum.org/v1/gonum/mat"
)

// ErrStaleHistory is returned when a delay reaches past the retained
// state history.
var ErrStaleHistory = errors.New("delay exceeds retained history")

// History gives access to past state vectors for delay compensation.
type History interface {
	// Index returns the position of the newest snapshot that is at
	// least delay old at now.
	Index(now time.Time, delay time.Duration) (int, error)
	// At copies snapshot i into dst.
	At(i int, dst *mat.VecDense)
}

// DelayBuffer is a fixed-size ring of state snapshots, newest first.
type DelayBuffer struct {
	states   []*mat.VecDense
	times    []time.Time
	head     int
	size     int
	step     time.Duration
	maxDelay time.Duration
}

// NewDelayBuffer preallocates length snapshots of n states. Snapshots
// are taken at most every step; lookups older than maxDelay fail.
func NewDelayBuffer(length, n int, step, maxDelay time.Duration) *DelayBuffer {
	if length < 1 {
		length = 1
	}
	b := &DelayBuffer{
		states:   make([]*mat.VecDense, length),
		times:    make([]time.Time, length),
		head:     -1,
		step:     step,
		maxDelay: maxDelay,
	}
	for i := range b.states {
		b.states[i] = mat.NewVecDense(n, nil)
	}
	return b
}

// Len returns the number of snapshots held.
func (b *DelayBuffer) Len() int { return b.size }

// Due reports whether a new snapshot should be pushed at now.
func (b *DelayBuffer) Due(now time.Time) bool {
	return b.size == 0 || now.Sub(b.times[b.head]) >= b.step
}

// Push records x as the state at t, evicting the oldest snapshot when full.
func (b *DelayBuffer) Push(t time.Time, x mat.Vector) {
	b.head = (b.head + 1) % len(b.states)
	b.states[b.head].CopyVec(x)
	b.times[b.head] = t
	if b.size < len(b.states) {
		b.size++
	}
}

func (b *DelayBuffer) slot(i int) int {
	return (b.head - i + len(b.states)) % len(b.states)
}

// Index implements History.
func (b *DelayBuffer) Index(now time.Time, delay time.Duration) (int, error) {
	for i := 0; i < b.size; i++ {
		age := now.Sub(b.times[b.slot(i)])
		if age < delay {
			continue
		}
		if b.maxDelay > 0 && age > b.maxDelay {
			return 0, fmt.Errorf("%w: snapshot age %v over %v", ErrStaleHistory, age, b.maxDelay)
		}
		return i, nil
	}
	return 0, fmt.Errorf("%w: no snapshot %v old among %d", ErrStaleHistory, delay, b.size)
}

// At implements History. i must be below Len.
func (b *DelayBuffer) At(i int, dst *mat.VecDense) {
	dst.CopyVec(b.states[b.slot(i)])
}

// Time returns the timestamp of snapshot i.
func (b *DelayBuffer) Time(i int) time.Time { return b.times[b.slot(i)] }

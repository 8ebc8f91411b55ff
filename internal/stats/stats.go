// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package stats keeps streaming per-axis statistics of sensor samples.
package stats

import "math"

// MaxDim is the largest sample dimension a Stats can track.
const MaxDim = 6

// Stats accumulates count, mean and standard deviation of fixed-size
// samples using Welford's update. It never allocates after construction.
type Stats struct {
	dim   int
	count int
	mean  [MaxDim]float64
	m2    [MaxDim]float64
	std   [MaxDim]float64
}

// New returns an empty accumulator for samples of the given dimension.
// Dimensions outside 1..MaxDim are clamped.
func New(dim int) *Stats {
	if dim < 1 {
		dim = 1
	}
	if dim > MaxDim {
		dim = MaxDim
	}
	return &Stats{dim: dim}
}

// Dim returns the sample dimension.
func (s *Stats) Dim() int { return s.dim }

// Update adds one sample. Extra components beyond Dim are ignored,
// missing ones are treated as zero.
func (s *Stats) Update(y []float64) {
	s.count++
	n := float64(s.count)
	for i := 0; i < s.dim; i++ {
		var v float64
		if i < len(y) {
			v = y[i]
		}
		d := v - s.mean[i]
		s.mean[i] += d / n
		s.m2[i] += d * (v - s.mean[i])
	}
}

// Reset clears all accumulated state.
func (s *Stats) Reset() {
	s.count = 0
	s.mean = [MaxDim]float64{}
	s.m2 = [MaxDim]float64{}
}

// Count returns the number of samples since the last reset.
func (s *Stats) Count() int { return s.count }

// Mean returns the running mean. The slice aliases internal storage and
// is only valid until the next Update or Reset.
func (s *Stats) Mean() []float64 { return s.mean[:s.dim] }

// StdDev returns the population standard deviation per axis, zero while
// fewer than two samples have been seen. The slice aliases internal
// storage like Mean.
func (s *Stats) StdDev() []float64 {
	for i := 0; i < s.dim; i++ {
		if s.count < 2 {
			s.std[i] = 0
			continue
		}
		s.std[i] = math.Sqrt(s.m2[i] / float64(s.count))
	}
	return s.std[:s.dim]
}

package stats

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStats_MeanAndStdDev(t *testing.T) {
	s := New(3)
	s.Update([]float64{1, 2, 3})
	s.Update([]float64{1.1, 2.1, 3.1})

	require.Equal(t, 2, s.Count())
	mean := s.Mean()
	std := s.StdDev()
	for i, want := range []float64{1.05, 2.05, 3.05} {
		assert.InDelta(t, want, mean[i], 1e-12)
		assert.InDelta(t, 0.05, std[i], 1e-12)
	}
}

func TestStats_StdDevZeroBelowTwoSamples(t *testing.T) {
	s := New(2)
	assert.Equal(t, []float64{0, 0}, s.StdDev())

	s.Update([]float64{4, -4})
	assert.Equal(t, []float64{0, 0}, s.StdDev())
	assert.Equal(t, []float64{4, -4}, s.Mean())
}

func TestStats_Reset(t *testing.T) {
	s := New(3)
	for i := 0; i < 5; i++ {
		s.Update([]float64{float64(i), 1, 2})
	}
	s.Reset()

	assert.Equal(t, 0, s.Count())
	assert.Equal(t, []float64{0, 0, 0}, s.Mean())
	assert.Equal(t, []float64{0, 0, 0}, s.StdDev())

	s.Update([]float64{7, 8, 9})
	assert.Equal(t, 1, s.Count())
	assert.Equal(t, []float64{7, 8, 9}, s.Mean())
}

func TestStats_MatchesTwoPass(t *testing.T) {
	data := []float64{1e6 + 4, 1e6 + 7, 1e6 + 13, 1e6 + 16}
	s := New(1)
	for _, v := range data {
		s.Update([]float64{v})
	}

	var sum float64
	for _, v := range data {
		sum += v
	}
	mean := sum / float64(len(data))
	var ss float64
	for _, v := range data {
		ss += (v - mean) * (v - mean)
	}

	assert.InDelta(t, mean, s.Mean()[0], 1e-9)
	assert.InDelta(t, math.Sqrt(ss/float64(len(data))), s.StdDev()[0], 1e-9)
}

func TestNew_ClampsDimension(t *testing.T) {
	assert.Equal(t, 1, New(0).Dim())
	assert.Equal(t, MaxDim, New(MaxDim+3).Dim())

	s := New(2)
	s.Update([]float64{1})
	assert.Equal(t, []float64{1, 0}, s.Mean())
}

package main

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lumen-ml/lumen"
)

// The check list and host oracles are pure; they are tested without a device.

func TestBuildChecks(t *testing.T) {
	xs := []float32{1, -2, 3, -4}
	ys := []float32{0.5, 0.25, -1, 2}

	checks, err := buildChecks(lumen.View{}, lumen.View{}, xs, ys)
	require.NoError(t, err)
	require.Len(t, checks, 7)

	want := map[string]float64{
		"x'y":     float64(hostDot(xs, ys)),
		"asum(x)": 10,
		"max(x)":  3,
		"min(x)":  -4,
	}
	for _, c := range checks {
		if w, ok := want[c.name]; ok {
			assert.InDelta(t, w, c.want, 1e-6, c.name)
		}
	}
}

func TestHostOraclesMatchBLAS(t *testing.T) {
	xs := make([]float32, 997)
	ys := make([]float32, 997)
	for i := range xs {
		xs[i] = float32(i%13) - 6
		ys[i] = float32(i%7) - 3
	}
	assert.LessOrEqual(t, relError(float64(hostDot(xs, ys)), float64(blasDot(xs, ys))), 1e-3)
}

func TestGather(t *testing.T) {
	data := []float32{0, 1, 2, 3, 4, 5, 6, 7, 8, 9}
	assert.Equal(t, []float32{2, 5, 8}, gather(data, 2, 3))
}

func TestRelError(t *testing.T) {
	assert.Equal(t, 0.0, relError(0, 0))
	assert.InDelta(t, 0.5, relError(1, 2), 1e-12)
	assert.False(t, math.IsNaN(relError(0, 1)))
}

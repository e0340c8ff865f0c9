package cluster

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Two tight groups far apart. K-Means must put each group in its own cluster.
func twoBlobs() [][]float64 {
	return [][]float64{
		{0.0, 0.1}, {0.1, 0.0}, {0.05, 0.05},
		{10.0, 10.1}, {10.1, 10.0}, {10.05, 10.05},
	}
}

func TestKMeansSeparatesBlobs(t *testing.T) {
	km := KMeans{K: 2, Seed: 42}
	got, err := km.Fit(twoBlobs())
	require.NoError(t, err)
	require.Len(t, got, 6)

	assert.Equal(t, got[0], got[1])
	assert.Equal(t, got[0], got[2])
	assert.Equal(t, got[3], got[4])
	assert.Equal(t, got[3], got[5])
	assert.NotEqual(t, got[0], got[3])

	for _, c := range got {
		assert.GreaterOrEqual(t, c, 0)
		assert.Less(t, c, 2)
	}
}

func TestKMeansDeterministicForSeed(t *testing.T) {
	points := twoBlobs()

	first, err := KMeans{K: 2, Seed: 7}.Fit(points)
	require.NoError(t, err)
	second, err := KMeans{K: 2, Seed: 7}.Fit(points)
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

func TestKMeansRejectsBadInput(t *testing.T) {
	_, err := KMeans{K: 0, Seed: 1}.Fit(twoBlobs())
	require.Error(t, err)

	_, err = KMeans{K: 5, Seed: 1}.Fit([][]float64{{1}, {2}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "need at least 5 points")
}

func TestStandardize(t *testing.T) {
	points := [][]float64{{1, 5}, {2, 5}, {3, 5}}
	scaled := Standardize(points)
	require.Len(t, scaled, 3)

	// First column is z-scored to zero mean.
	var mean float64
	for _, p := range scaled {
		mean += p[0]
	}
	assert.InDelta(t, 0, mean/3, 1e-12)
	assert.Greater(t, scaled[2][0], scaled[0][0])

	// Constant column maps to zero, never NaN.
	for _, p := range scaled {
		assert.Equal(t, 0.0, p[1])
		assert.False(t, math.IsNaN(p[0]))
	}

	// Input untouched.
	assert.Equal(t, [][]float64{{1, 5}, {2, 5}, {3, 5}}, points)
}

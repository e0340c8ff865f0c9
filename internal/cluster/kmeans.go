// Package cluster implements the seeded K-Means clustering used by both
// segmentation stages. Runs are deterministic: the same seed and input always
// produce the same assignments.
package cluster

import (
	"fmt"
	"math"
	"math/rand"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

const defaultMaxIter = 300

// KMeans clusters points into K groups with k-means++ initialization off a
// seeded source and Lloyd iterations until assignments stop changing.
type KMeans struct {
	K       int
	Seed    int64
	MaxIter int // defaults to 300 when zero
}

// Fit assigns each point a cluster id in [0, K). Ties in distance resolve to
// the lowest centroid index.
func (km KMeans) Fit(points [][]float64) ([]int, error) {
	if km.K <= 0 {
		return nil, fmt.Errorf("k must be positive, got %d", km.K)
	}
	if len(points) < km.K {
		return nil, fmt.Errorf("need at least %d points for %d clusters, got %d", km.K, km.K, len(points))
	}
	maxIter := km.MaxIter
	if maxIter == 0 {
		maxIter = defaultMaxIter
	}

	rng := rand.New(rand.NewSource(km.Seed))
	centroids := km.seedCentroids(points, rng)
	assignments := make([]int, len(points))
	for i := range assignments {
		assignments[i] = -1
	}

	dims := len(points[0])
	for iter := 0; iter < maxIter; iter++ {
		changed := false
		for i, p := range points {
			c := nearest(p, centroids)
			if c != assignments[i] {
				assignments[i] = c
				changed = true
			}
		}
		if !changed {
			break
		}

		// Recompute centroids as member means.
		counts := make([]int, km.K)
		next := make([][]float64, km.K)
		for c := range next {
			next[c] = make([]float64, dims)
		}
		for i, p := range points {
			c := assignments[i]
			counts[c]++
			floats.Add(next[c], p)
		}
		for c := range next {
			if counts[c] == 0 {
				// Empty cluster: move its centroid onto the point farthest
				// from its current assignment's centroid.
				next[c] = append([]float64(nil), points[farthest(points, assignments, centroids)]...)
				continue
			}
			floats.Scale(1/float64(counts[c]), next[c])
		}
		centroids = next
	}

	return assignments, nil
}

// seedCentroids runs k-means++ initialization: the first centroid uniform at
// random, each subsequent one weighted by squared distance to the nearest
// chosen centroid.
func (km KMeans) seedCentroids(points [][]float64, rng *rand.Rand) [][]float64 {
	centroids := make([][]float64, 0, km.K)
	centroids = append(centroids, append([]float64(nil), points[rng.Intn(len(points))]...))

	dists := make([]float64, len(points))
	for len(centroids) < km.K {
		total := 0.0
		for i, p := range points {
			d := sqDist(p, centroids[nearest(p, centroids)])
			dists[i] = d
			total += d
		}
		idx := 0
		if total > 0 {
			target := rng.Float64() * total
			acc := 0.0
			for i, d := range dists {
				acc += d
				if acc >= target {
					idx = i
					break
				}
			}
		} else {
			idx = rng.Intn(len(points))
		}
		centroids = append(centroids, append([]float64(nil), points[idx]...))
	}
	return centroids
}

func nearest(p []float64, centroids [][]float64) int {
	best, bestDist := 0, math.Inf(1)
	for c, centroid := range centroids {
		if d := sqDist(p, centroid); d < bestDist {
			best, bestDist = c, d
		}
	}
	return best
}

func farthest(points [][]float64, assignments []int, centroids [][]float64) int {
	best, bestDist := 0, -1.0
	for i, p := range points {
		if d := sqDist(p, centroids[assignments[i]]); d > bestDist {
			best, bestDist = i, d
		}
	}
	return best
}

func sqDist(a, b []float64) float64 {
	sum := 0.0
	for i := range a {
		d := a[i] - b[i]
		sum += d * d
	}
	return sum
}

// Standardize z-scores each feature column in place-free fashion: the result
// has zero mean and unit variance per column. Constant columns map to zero.
func Standardize(points [][]float64) [][]float64 {
	if len(points) == 0 {
		return nil
	}
	dims := len(points[0])
	out := make([][]float64, len(points))
	for i := range out {
		out[i] = make([]float64, dims)
	}

	col := make([]float64, len(points))
	for d := 0; d < dims; d++ {
		for i := range points {
			col[i] = points[i][d]
		}
		mean, std := stat.MeanStdDev(col, nil)
		for i := range points {
			if std == 0 || math.IsNaN(std) {
				out[i][d] = 0
				continue
			}
			out[i][d] = (points[i][d] - mean) / std
		}
	}
	return out
}

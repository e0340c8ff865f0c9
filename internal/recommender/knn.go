package recommender

import (
	"fmt"
	"math"
	"sort"
)

// KNN is a neighborhood model over item-item (or user-user) similarities.
// Fit materializes the similarity matrix; Predict averages the k most similar
// rated neighbors weighted by similarity.
type KNN struct {
	K          int
	Similarity string // "cosine" or "pearson"
	UserBased  bool

	Sim        [][]float64
	RatingsFor [][]Rating // per entity (item or user): the ratings involving it
	GlobalMean float64
	UserIndex  map[string]int
	ItemIndex  map[string]int
	MinRating  float64
	MaxRating  float64
}

// NewKNN applies the standard defaults for unset fields.
func NewKNN(k int, similarity string, userBased bool) *KNN {
	if k <= 0 {
		k = 40
	}
	if similarity == "" {
		similarity = "cosine"
	}
	return &KNN{K: k, Similarity: similarity, UserBased: userBased}
}

// Name implements Model.
func (m *KNN) Name() string {
	if m.UserBased {
		return "user_knn"
	}
	return "item_knn"
}

// Fit computes the pairwise similarity matrix.
func (m *KNN) Fit(ts *Trainset) error {
	m.GlobalMean = ts.GlobalMean
	m.UserIndex = ts.UserIndex
	m.ItemIndex = ts.ItemIndex
	m.MinRating = ts.MinRating
	m.MaxRating = ts.MaxRating

	// Entity axis is the similarity axis; the other axis indexes the vectors.
	n := len(ts.Items)
	if m.UserBased {
		n = len(ts.Users)
	}

	// Sparse vectors: other-axis index -> rating, per entity.
	vectors := make([]map[int]float64, n)
	for i := range vectors {
		vectors[i] = make(map[int]float64)
	}
	m.RatingsFor = make([][]Rating, n)
	for _, r := range ts.Ratings {
		if m.UserBased {
			vectors[r.User][r.Item] = r.Value
			m.RatingsFor[r.User] = append(m.RatingsFor[r.User], r)
		} else {
			vectors[r.Item][r.User] = r.Value
			m.RatingsFor[r.Item] = append(m.RatingsFor[r.Item], r)
		}
	}

	m.Sim = make([][]float64, n)
	for i := range m.Sim {
		m.Sim[i] = make([]float64, n)
		m.Sim[i][i] = 1
	}
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			var s float64
			switch m.Similarity {
			case "pearson":
				s = pearson(vectors[i], vectors[j])
			case "cosine":
				s = cosine(vectors[i], vectors[j])
			default:
				return fmt.Errorf("unknown similarity %q", m.Similarity)
			}
			m.Sim[i][j] = s
			m.Sim[j][i] = s
		}
	}
	return nil
}

// Predict estimates the rating for a (customer, vendor) pair from the k most
// similar neighbors the counterpart has rated.
func (m *KNN) Predict(userID, itemID string) float64 {
	u, uok := m.UserIndex[userID]
	i, iok := m.ItemIndex[itemID]
	if !uok || !iok {
		return clampTo(m.GlobalMean, m.MinRating, m.MaxRating)
	}

	target, counterpart := i, u
	if m.UserBased {
		target, counterpart = u, i
	}

	type neighbor struct {
		sim   float64
		value float64
	}
	var neighbors []neighbor
	for other, ratings := range m.RatingsFor {
		if other == target {
			continue
		}
		for _, r := range ratings {
			c := r.User
			if m.UserBased {
				c = r.Item
			}
			if c == counterpart && m.Sim[target][other] > 0 {
				neighbors = append(neighbors, neighbor{sim: m.Sim[target][other], value: r.Value})
			}
		}
	}
	if len(neighbors) == 0 {
		return clampTo(m.GlobalMean, m.MinRating, m.MaxRating)
	}

	sort.Slice(neighbors, func(a, b int) bool { return neighbors[a].sim > neighbors[b].sim })
	if len(neighbors) > m.K {
		neighbors = neighbors[:m.K]
	}

	num, den := 0.0, 0.0
	for _, nb := range neighbors {
		num += nb.sim * nb.value
		den += nb.sim
	}
	if den == 0 {
		return clampTo(m.GlobalMean, m.MinRating, m.MaxRating)
	}
	return clampTo(num/den, m.MinRating, m.MaxRating)
}

func cosine(a, b map[int]float64) float64 {
	dot := 0.0
	for k, va := range a {
		if vb, ok := b[k]; ok {
			dot += va * vb
		}
	}
	if dot == 0 {
		return 0
	}
	na, nb := 0.0, 0.0
	for _, v := range a {
		na += v * v
	}
	for _, v := range b {
		nb += v * v
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

func pearson(a, b map[int]float64) float64 {
	// Pearson over the co-rated support only.
	var xs, ys []float64
	for k, va := range a {
		if vb, ok := b[k]; ok {
			xs = append(xs, va)
			ys = append(ys, vb)
		}
	}
	if len(xs) < 2 {
		return 0
	}
	mx, my := mean(xs), mean(ys)
	num, dx, dy := 0.0, 0.0, 0.0
	for k := range xs {
		num += (xs[k] - mx) * (ys[k] - my)
		dx += (xs[k] - mx) * (xs[k] - mx)
		dy += (ys[k] - my) * (ys[k] - my)
	}
	if dx == 0 || dy == 0 {
		return 0
	}
	return num / math.Sqrt(dx*dy)
}

func mean(xs []float64) float64 {
	sum := 0.0
	for _, x := range xs {
		sum += x
	}
	return sum / float64(len(xs))
}

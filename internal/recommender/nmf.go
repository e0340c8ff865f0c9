package recommender

import (
	"math/rand"
)

// NMF is non-negative matrix factorization: r̂ = p_u·q_i with all factors
// kept non-negative. Factors initialize uniformly in (0, 1] and SGD updates
// clamp at zero.
type NMF struct {
	Factors   int
	Epochs    int
	LearnRate float64
	Reg       float64
	Seed      int64

	GlobalMean float64
	P          [][]float64
	Q          [][]float64
	UserIndex  map[string]int
	ItemIndex  map[string]int
	MinRating  float64
	MaxRating  float64
}

// NewNMF applies the standard hyperparameter defaults for unset fields.
func NewNMF(factors, epochs int, lr, reg float64, seed int64) *NMF {
	if factors <= 0 {
		factors = 15
	}
	if epochs <= 0 {
		epochs = 50
	}
	if lr == 0 {
		lr = 0.005
	}
	if reg == 0 {
		reg = 0.06
	}
	return &NMF{Factors: factors, Epochs: epochs, LearnRate: lr, Reg: reg, Seed: seed}
}

// Name implements Model.
func (m *NMF) Name() string { return "nmf" }

// Fit trains non-negative factors on the full trainset.
func (m *NMF) Fit(ts *Trainset) error {
	rng := rand.New(rand.NewSource(m.Seed))
	m.GlobalMean = ts.GlobalMean
	m.UserIndex = ts.UserIndex
	m.ItemIndex = ts.ItemIndex
	m.MinRating = ts.MinRating
	m.MaxRating = ts.MaxRating
	m.P = uniformMatrix(len(ts.Users), m.Factors, rng)
	m.Q = uniformMatrix(len(ts.Items), m.Factors, rng)

	for epoch := 0; epoch < m.Epochs; epoch++ {
		for _, r := range ts.Ratings {
			err := r.Value - m.estimate(r.User, r.Item)
			for f := 0; f < m.Factors; f++ {
				puf, qif := m.P[r.User][f], m.Q[r.Item][f]
				m.P[r.User][f] = nonNegative(puf + m.LearnRate*(err*qif-m.Reg*puf))
				m.Q[r.Item][f] = nonNegative(qif + m.LearnRate*(err*puf-m.Reg*qif))
			}
		}
	}
	return nil
}

func (m *NMF) estimate(u, i int) float64 {
	est := 0.0
	for f := 0; f < m.Factors; f++ {
		est += m.P[u][f] * m.Q[i][f]
	}
	return est
}

// Predict estimates the rating for a (customer, vendor) pair.
func (m *NMF) Predict(userID, itemID string) float64 {
	u, uok := m.UserIndex[userID]
	i, iok := m.ItemIndex[itemID]
	if !uok || !iok {
		return clampTo(m.GlobalMean, m.MinRating, m.MaxRating)
	}
	return clampTo(m.estimate(u, i), m.MinRating, m.MaxRating)
}

func uniformMatrix(rows, cols int, rng *rand.Rand) [][]float64 {
	out := make([][]float64, rows)
	for i := range out {
		out[i] = make([]float64, cols)
		for j := range out[i] {
			out[i][j] = rng.Float64()*0.99 + 0.01
		}
	}
	return out
}

func nonNegative(v float64) float64 {
	if v < 0 {
		return 0
	}
	return v
}

package recommender

import (
	"math/rand"
)

// SVD is biased matrix factorization trained by stochastic gradient descent:
// r̂ = μ + b_u + b_i + p_u·q_i.
type SVD struct {
	Factors   int
	Epochs    int
	LearnRate float64
	Reg       float64
	Seed      int64

	GlobalMean float64
	UserBias   []float64
	ItemBias   []float64
	P          [][]float64 // user factors
	Q          [][]float64 // item factors
	UserIndex  map[string]int
	ItemIndex  map[string]int
	MinRating  float64
	MaxRating  float64
}

// NewSVD applies the standard hyperparameter defaults for unset fields.
func NewSVD(factors, epochs int, lr, reg float64, seed int64) *SVD {
	if factors <= 0 {
		factors = 100
	}
	if epochs <= 0 {
		epochs = 20
	}
	if lr == 0 {
		lr = 0.005
	}
	if reg == 0 {
		reg = 0.02
	}
	return &SVD{Factors: factors, Epochs: epochs, LearnRate: lr, Reg: reg, Seed: seed}
}

// Name implements Model.
func (m *SVD) Name() string { return "svd" }

// Fit trains factors and biases on the full trainset.
func (m *SVD) Fit(ts *Trainset) error {
	rng := rand.New(rand.NewSource(m.Seed))
	m.init(ts, rng)

	for epoch := 0; epoch < m.Epochs; epoch++ {
		for _, r := range ts.Ratings {
			pu, qi := m.P[r.User], m.Q[r.Item]
			err := r.Value - m.estimate(r.User, r.Item)

			m.UserBias[r.User] += m.LearnRate * (err - m.Reg*m.UserBias[r.User])
			m.ItemBias[r.Item] += m.LearnRate * (err - m.Reg*m.ItemBias[r.Item])
			for f := 0; f < m.Factors; f++ {
				puf, qif := pu[f], qi[f]
				pu[f] += m.LearnRate * (err*qif - m.Reg*puf)
				qi[f] += m.LearnRate * (err*puf - m.Reg*qif)
			}
		}
	}
	return nil
}

func (m *SVD) init(ts *Trainset, rng *rand.Rand) {
	m.GlobalMean = ts.GlobalMean
	m.UserIndex = ts.UserIndex
	m.ItemIndex = ts.ItemIndex
	m.MinRating = ts.MinRating
	m.MaxRating = ts.MaxRating
	m.UserBias = make([]float64, len(ts.Users))
	m.ItemBias = make([]float64, len(ts.Items))
	m.P = randomMatrix(len(ts.Users), m.Factors, rng)
	m.Q = randomMatrix(len(ts.Items), m.Factors, rng)
}

func (m *SVD) estimate(u, i int) float64 {
	est := m.GlobalMean + m.UserBias[u] + m.ItemBias[i]
	for f := 0; f < m.Factors; f++ {
		est += m.P[u][f] * m.Q[i][f]
	}
	return est
}

// Predict estimates the rating for a (customer, vendor) pair. Unknown ids
// fall back to the global mean, clamped to the rating scale.
func (m *SVD) Predict(userID, itemID string) float64 {
	u, uok := m.UserIndex[userID]
	i, iok := m.ItemIndex[itemID]
	est := m.GlobalMean
	if uok && iok {
		est = m.estimate(u, i)
	} else if uok {
		est += m.UserBias[u]
	} else if iok {
		est += m.ItemBias[i]
	}
	return clampTo(est, m.MinRating, m.MaxRating)
}

// randomMatrix draws rows×cols factors from N(0, 0.1), the conventional
// initialization for SGD matrix factorization.
func randomMatrix(rows, cols int, rng *rand.Rand) [][]float64 {
	out := make([][]float64, rows)
	for i := range out {
		out[i] = make([]float64, cols)
		for j := range out[i] {
			out[i][j] = rng.NormFloat64() * 0.1
		}
	}
	return out
}

func clampTo(est, min, max float64) float64 {
	if est < min {
		return min
	}
	if est > max {
		return max
	}
	return est
}

package recommender

import (
	"math"
	"math/rand"
)

// SVDPP extends SVD with an implicit-feedback term: every vendor a customer
// ever ordered from contributes to the customer's representation,
// r̂ = μ + b_u + b_i + q_i·(p_u + |N(u)|^-½ Σ y_j).
type SVDPP struct {
	Factors   int
	Epochs    int
	LearnRate float64
	Reg       float64
	Seed      int64

	GlobalMean float64
	UserBias   []float64
	ItemBias   []float64
	P          [][]float64
	Q          [][]float64
	Y          [][]float64 // implicit item factors
	RatedBy    [][]int     // items rated per user
	UserIndex  map[string]int
	ItemIndex  map[string]int
	MinRating  float64
	MaxRating  float64
}

// NewSVDPP applies the standard hyperparameter defaults for unset fields.
func NewSVDPP(factors, epochs int, lr, reg float64, seed int64) *SVDPP {
	if factors <= 0 {
		factors = 20
	}
	if epochs <= 0 {
		epochs = 20
	}
	if lr == 0 {
		lr = 0.007
	}
	if reg == 0 {
		reg = 0.02
	}
	return &SVDPP{Factors: factors, Epochs: epochs, LearnRate: lr, Reg: reg, Seed: seed}
}

// Name implements Model.
func (m *SVDPP) Name() string { return "svdpp" }

// Fit trains explicit and implicit factors on the full trainset.
func (m *SVDPP) Fit(ts *Trainset) error {
	rng := rand.New(rand.NewSource(m.Seed))
	m.GlobalMean = ts.GlobalMean
	m.UserIndex = ts.UserIndex
	m.ItemIndex = ts.ItemIndex
	m.MinRating = ts.MinRating
	m.MaxRating = ts.MaxRating
	m.UserBias = make([]float64, len(ts.Users))
	m.ItemBias = make([]float64, len(ts.Items))
	m.P = randomMatrix(len(ts.Users), m.Factors, rng)
	m.Q = randomMatrix(len(ts.Items), m.Factors, rng)
	m.Y = randomMatrix(len(ts.Items), m.Factors, rng)
	m.RatedBy = ts.ItemsByUser()

	implicit := make([]float64, m.Factors)
	for epoch := 0; epoch < m.Epochs; epoch++ {
		for _, r := range ts.Ratings {
			rated := m.RatedBy[r.User]
			sqrtN := math.Sqrt(float64(len(rated)))

			for f := range implicit {
				implicit[f] = 0
			}
			for _, j := range rated {
				for f := 0; f < m.Factors; f++ {
					implicit[f] += m.Y[j][f]
				}
			}
			if sqrtN > 0 {
				for f := range implicit {
					implicit[f] /= sqrtN
				}
			}

			est := m.GlobalMean + m.UserBias[r.User] + m.ItemBias[r.Item]
			for f := 0; f < m.Factors; f++ {
				est += m.Q[r.Item][f] * (m.P[r.User][f] + implicit[f])
			}
			err := r.Value - est

			m.UserBias[r.User] += m.LearnRate * (err - m.Reg*m.UserBias[r.User])
			m.ItemBias[r.Item] += m.LearnRate * (err - m.Reg*m.ItemBias[r.Item])
			for f := 0; f < m.Factors; f++ {
				puf, qif := m.P[r.User][f], m.Q[r.Item][f]
				m.P[r.User][f] += m.LearnRate * (err*qif - m.Reg*puf)
				m.Q[r.Item][f] += m.LearnRate * (err*(puf+implicit[f]) - m.Reg*qif)
				if sqrtN > 0 {
					for _, j := range rated {
						m.Y[j][f] += m.LearnRate * (err*qif/sqrtN - m.Reg*m.Y[j][f])
					}
				}
			}
		}
	}
	return nil
}

// Predict estimates the rating for a (customer, vendor) pair.
func (m *SVDPP) Predict(userID, itemID string) float64 {
	u, uok := m.UserIndex[userID]
	i, iok := m.ItemIndex[itemID]
	if !uok || !iok {
		return clampTo(m.GlobalMean, m.MinRating, m.MaxRating)
	}

	rated := m.RatedBy[u]
	sqrtN := math.Sqrt(float64(len(rated)))
	est := m.GlobalMean + m.UserBias[u] + m.ItemBias[i]
	for f := 0; f < m.Factors; f++ {
		implicit := 0.0
		for _, j := range rated {
			implicit += m.Y[j][f]
		}
		if sqrtN > 0 {
			implicit /= sqrtN
		}
		est += m.Q[i][f] * (m.P[u][f] + implicit)
	}
	return clampTo(est, m.MinRating, m.MaxRating)
}

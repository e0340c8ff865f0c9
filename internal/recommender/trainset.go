package recommender

import (
	"fmt"

	"github.com/akeed/marketplace-analytics/internal/dataset"
)

// Trainset is the indexed full interaction set shared by every model. It is
// immutable once built; no model's Fit may modify it.
type Trainset struct {
	Users      []string       // index -> customer id
	Items      []string       // index -> vendor id
	UserIndex  map[string]int // customer id -> index
	ItemIndex  map[string]int // vendor id -> index
	Ratings    []Rating
	MinRating  float64 // observed scale lower bound
	MaxRating  float64 // observed scale upper bound
	GlobalMean float64
}

// Rating is one indexed interaction.
type Rating struct {
	User  int
	Item  int
	Value float64
}

// NewTrainset indexes interactions with the rating scale bound to the
// observed minimum and maximum.
func NewTrainset(interactions []dataset.Interaction) (*Trainset, error) {
	if len(interactions) == 0 {
		return nil, fmt.Errorf("no interactions to train on")
	}

	ts := &Trainset{
		UserIndex: make(map[string]int),
		ItemIndex: make(map[string]int),
		Ratings:   make([]Rating, 0, len(interactions)),
	}

	sum := 0.0
	for i, in := range interactions {
		u, ok := ts.UserIndex[in.CustomerID]
		if !ok {
			u = len(ts.Users)
			ts.UserIndex[in.CustomerID] = u
			ts.Users = append(ts.Users, in.CustomerID)
		}
		it, ok := ts.ItemIndex[in.VendorID]
		if !ok {
			it = len(ts.Items)
			ts.ItemIndex[in.VendorID] = it
			ts.Items = append(ts.Items, in.VendorID)
		}
		ts.Ratings = append(ts.Ratings, Rating{User: u, Item: it, Value: in.Rating})

		if i == 0 || in.Rating < ts.MinRating {
			ts.MinRating = in.Rating
		}
		if i == 0 || in.Rating > ts.MaxRating {
			ts.MaxRating = in.Rating
		}
		sum += in.Rating
	}
	ts.GlobalMean = sum / float64(len(ts.Ratings))
	return ts, nil
}

// ItemsByUser groups rated item indices per user.
func (ts *Trainset) ItemsByUser() [][]int {
	out := make([][]int, len(ts.Users))
	for _, r := range ts.Ratings {
		out[r.User] = append(out[r.User], r.Item)
	}
	return out
}

// clamp bounds a prediction to the trainset's rating scale.
func (ts *Trainset) clamp(est float64) float64 {
	if est < ts.MinRating {
		return ts.MinRating
	}
	if est > ts.MaxRating {
		return ts.MaxRating
	}
	return est
}

// Package recommender derives implicit customer×vendor interactions from the
// joined order table and trains a configured menu of collaborative-filtering
// models, publishing each serialized model independently.
package recommender

import "github.com/akeed/marketplace-analytics/internal/dataset"

// restaurantCategory is the vendor category that feeds the recommenders.
const restaurantCategory = "Restaurants"

// Interactions reduces joined orders to implicit ratings: for every
// (customer, vendor) pair where the vendor category is "Restaurants", the
// rating is the count of orders placed. Pair order follows first appearance.
func Interactions(orders []dataset.JoinedOrder) []dataset.Interaction {
	type pair struct {
		customerID string
		vendorID   string
	}
	counts := make(map[pair]float64)
	var pairOrder []pair

	for _, j := range orders {
		if j.Vendor == nil || j.Vendor.Category != restaurantCategory {
			continue
		}
		p := pair{customerID: j.Order.CustomerID, vendorID: j.Order.VendorID}
		if _, ok := counts[p]; !ok {
			pairOrder = append(pairOrder, p)
		}
		counts[p]++
	}

	out := make([]dataset.Interaction, len(pairOrder))
	for i, p := range pairOrder {
		out[i] = dataset.Interaction{CustomerID: p.customerID, VendorID: p.vendorID, Rating: counts[p]}
	}
	return out
}

package cleaning

import "github.com/akeed/marketplace-analytics/internal/dataset"

type locationKey struct {
	customerID string
	number     int
}

// Join builds the denormalized order-level table: orders left-joined with
// customers on customer id, locations on the composite (customer id, location
// number) key, and vendors on vendor id. The output has exactly one row per
// input order; right-hand sides are deduplicated by key (first occurrence
// wins) so the join can never fan out. Unmatched sides stay nil.
func Join(orders []dataset.Order, customers []dataset.Customer, locations []dataset.Location, vendors []dataset.Vendor) []dataset.JoinedOrder {
	custByID := make(map[string]*dataset.Customer, len(customers))
	for i := range customers {
		if _, ok := custByID[customers[i].ID]; !ok {
			custByID[customers[i].ID] = &customers[i]
		}
	}

	locByKey := make(map[locationKey]*dataset.Location, len(locations))
	for i := range locations {
		key := locationKey{customerID: locations[i].CustomerID, number: locations[i].Number}
		if _, ok := locByKey[key]; !ok {
			locByKey[key] = &locations[i]
		}
	}

	vendByID := make(map[string]*dataset.Vendor, len(vendors))
	for i := range vendors {
		if _, ok := vendByID[vendors[i].ID]; !ok {
			vendByID[vendors[i].ID] = &vendors[i]
		}
	}

	out := make([]dataset.JoinedOrder, 0, len(orders))
	for _, o := range orders {
		j := dataset.JoinedOrder{Order: o}
		if c, ok := custByID[o.CustomerID]; ok {
			cc := *c
			j.Customer = &cc
		}
		if l, ok := locByKey[locationKey{customerID: o.CustomerID, number: o.LocationNumber}]; ok {
			ll := *l
			j.Location = &ll
		}
		if v, ok := vendByID[o.VendorID]; ok {
			vv := *v
			j.Vendor = &vv
		}
		out = append(out, j)
	}
	return out
}

// Package cleaning normalizes the four raw marketplace tables and joins them
// into the denormalized order-level table the analytics stages consume. Each
// cleaner takes one raw table and returns fresh typed records; inputs are
// never mutated. A missing required column is fatal for the stage.
package cleaning

import (
	"sort"
	"strings"
	"unicode"

	"gonum.org/v1/gonum/stat"

	"github.com/akeed/marketplace-analytics/internal/dataset"
)

// Birth years outside this range are treated as data-entry noise.
const (
	minBirthYear = 1945
	maxBirthYear = 2020
)

// Customers cleans the raw customer table: deduplicates each customer id to
// its most recently updated row, normalizes gender to {Male, Female, Unknown}
// and nulls out implausible birth years. Bookkeeping columns (status,
// verified, language, created_at) are dropped by projection.
//
// Tie-break: when two rows share the same maximum updated-at timestamp, the
// row appearing first in the input wins. Rows with an unparseable updated-at
// rank below any parseable one.
func Customers(t *dataset.Table) ([]dataset.Customer, error) {
	idCol, err := t.Col("akeed_customer_id")
	if err != nil {
		return nil, err
	}
	genderCol, err := t.Col("gender")
	if err != nil {
		return nil, err
	}
	dobCol, err := t.Col("dob")
	if err != nil {
		return nil, err
	}
	updatedCol, err := t.Col("updated_at")
	if err != nil {
		return nil, err
	}

	type candidate struct {
		row     []string
		rowIdx  int
		updated *float64 // unix seconds; nil sorts below everything
	}
	best := make(map[string]candidate)
	var order []string

	for i, row := range t.Rows {
		id := t.Value(row, idCol)
		if id == "" {
			continue
		}
		var updated *float64
		if ts := dataset.ParseTime(t.Value(row, updatedCol)); ts != nil {
			u := float64(ts.Unix())
			updated = &u
		}

		cur, seen := best[id]
		if !seen {
			best[id] = candidate{row: row, rowIdx: i, updated: updated}
			order = append(order, id)
			continue
		}
		// Strictly-greater comparison keeps the first occurrence on ties.
		if updated != nil && (cur.updated == nil || *updated > *cur.updated) {
			best[id] = candidate{row: row, rowIdx: i, updated: updated}
		}
	}

	out := make([]dataset.Customer, 0, len(order))
	for _, id := range order {
		c := best[id]
		cust := dataset.Customer{
			ID:     id,
			Gender: normalizeGender(t.Value(c.row, genderCol)),
		}
		if dob := dataset.ParseFloat(t.Value(c.row, dobCol)); dob != nil {
			if *dob >= minBirthYear && *dob <= maxBirthYear {
				cust.BirthYear = dob
			}
		}
		out = append(out, cust)
	}
	return out, nil
}

func normalizeGender(s string) string {
	s = titleCase(strings.TrimSpace(s))
	if s != "Male" && s != "Female" {
		return "Unknown"
	}
	return s
}

func titleCase(s string) string {
	if s == "" {
		return s
	}
	lower := strings.ToLower(s)
	r := []rune(lower)
	r[0] = unicode.ToUpper(r[0])
	return string(r)
}

// Locations cleans the raw location table. Rows missing latitude or longitude
// carry no usable geographic signal and are dropped; missing location types
// default to "Other".
func Locations(t *dataset.Table) ([]dataset.Location, error) {
	custCol, err := t.Col("customer_id")
	if err != nil {
		return nil, err
	}
	numCol, err := t.Col("location_number")
	if err != nil {
		return nil, err
	}
	typeCol, err := t.Col("location_type")
	if err != nil {
		return nil, err
	}
	latCol, err := t.Col("latitude")
	if err != nil {
		return nil, err
	}
	lonCol, err := t.Col("longitude")
	if err != nil {
		return nil, err
	}

	out := make([]dataset.Location, 0, len(t.Rows))
	for _, row := range t.Rows {
		lat := dataset.ParseFloat(t.Value(row, latCol))
		lon := dataset.ParseFloat(t.Value(row, lonCol))
		if lat == nil || lon == nil {
			continue
		}
		locType := t.Value(row, typeCol)
		if locType == "" {
			locType = "Other"
		}
		out = append(out, dataset.Location{
			CustomerID: t.Value(row, custCol),
			Number:     dataset.ParseIntOr(t.Value(row, numCol), 0),
			Type:       locType,
			Latitude:   *lat,
			Longitude:  *lon,
		})
	}
	return out, nil
}

// Orders cleans the raw order table: lenient timestamp parsing, promo code
// presence reduced to a 0/1 flag, numeric coercion with explicit defaults, and
// per-customer median imputation of missing item counts. A stray delivery-time
// column is ignored when present.
func Orders(t *dataset.Table) ([]dataset.Order, error) {
	required := []string{
		"akeed_order_id", "customer_id", "vendor_id", "LOCATION_NUMBER",
		"created_at", "promo_code", "promo_code_discount_percentage",
		"item_count", "is_favorite", "vendor_rating", "grand_total",
	}
	cols := make(map[string]int, len(required))
	for _, name := range required {
		idx, err := t.Col(name)
		if err != nil {
			return nil, err
		}
		cols[name] = idx
	}
	get := func(row []string, name string) string { return t.Value(row, cols[name]) }

	out := make([]dataset.Order, 0, len(t.Rows))
	for _, row := range t.Rows {
		o := dataset.Order{
			ID:               get(row, "akeed_order_id"),
			CustomerID:       get(row, "customer_id"),
			VendorID:         get(row, "vendor_id"),
			LocationNumber:   dataset.ParseIntOr(get(row, "LOCATION_NUMBER"), 0),
			CreatedAt:        dataset.ParseTime(get(row, "created_at")),
			PromoDiscountPct: dataset.FloatOr(get(row, "promo_code_discount_percentage"), 0),
			ItemCount:        dataset.ParseFloat(get(row, "item_count")),
			IsFavorite:       get(row, "is_favorite"),
			VendorRating:     dataset.FloatOr(get(row, "vendor_rating"), 0),
			GrandTotal:       dataset.FloatOr(get(row, "grand_total"), 0),
		}
		if get(row, "promo_code") != "" {
			o.Promo = 1
		}
		if o.IsFavorite == "" {
			o.IsFavorite = "No"
		}
		out = append(out, o)
	}

	imputeItemCounts(out)
	return out, nil
}

// imputeItemCounts fills each order's missing item count with the median of
// the same customer's valid counts. A customer with no valid counts at all
// keeps the nulls.
func imputeItemCounts(orders []dataset.Order) {
	byCustomer := make(map[string][]float64)
	for _, o := range orders {
		if o.ItemCount != nil {
			byCustomer[o.CustomerID] = append(byCustomer[o.CustomerID], *o.ItemCount)
		}
	}

	medians := make(map[string]float64, len(byCustomer))
	for cust, counts := range byCustomer {
		sort.Float64s(counts)
		medians[cust] = stat.Quantile(0.5, stat.LinInterp, counts, nil)
	}

	for i := range orders {
		if orders[i].ItemCount == nil {
			if m, ok := medians[orders[i].CustomerID]; ok {
				v := m
				orders[i].ItemCount = &v
			}
		}
	}
}

// Vendors projects the raw vendor table to the fixed column set, with
// latitude/longitude renamed into vendor scope to avoid join collisions.
func Vendors(t *dataset.Table) ([]dataset.Vendor, error) {
	required := []string{"id", "latitude", "longitude", "vendor_category_en", "delivery_charge", "vendor_tag_name"}
	cols := make(map[string]int, len(required))
	for _, name := range required {
		idx, err := t.Col(name)
		if err != nil {
			return nil, err
		}
		cols[name] = idx
	}
	get := func(row []string, name string) string { return t.Value(row, cols[name]) }

	out := make([]dataset.Vendor, 0, len(t.Rows))
	for _, row := range t.Rows {
		out = append(out, dataset.Vendor{
			ID:             get(row, "id"),
			Latitude:       dataset.FloatOr(get(row, "latitude"), 0),
			Longitude:      dataset.FloatOr(get(row, "longitude"), 0),
			Category:       get(row, "vendor_category_en"),
			DeliveryCharge: dataset.FloatOr(get(row, "delivery_charge"), 0),
			Tags:           get(row, "vendor_tag_name"),
		})
	}
	return out, nil
}

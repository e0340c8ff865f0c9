package dataset

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"time"
)

const joinedTimeLayout = "2006-01-02 15:04:05"

// JoinedColumns is the versioned schema of the published order_clean_join_all
// table. Producers and consumers share this contract; columns are never
// renamed by merge suffixes.
var JoinedColumns = []string{
	"order_id", "customer_id", "vendor_id", "location_number", "created_at",
	"promo", "promo_discount_pct", "item_count", "is_favorite", "vendor_rating",
	"grand_total", "gender", "birth_year", "location_type", "latitude",
	"longitude", "vendor_latitude", "vendor_longitude", "vendor_category",
	"delivery_charge", "vendor_tags",
}

// SegmentColumns is the versioned schema of the published per-customer
// segmentation table.
var SegmentColumns = []string{"customer_id", "rfm_segment", "clv_30", "food_segment"}

// WriteJoined encodes joined orders as CSV under the JoinedColumns schema.
// Unmatched join sides encode as empty cells.
func WriteJoined(w io.Writer, rows []JoinedOrder) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(JoinedColumns); err != nil {
		return fmt.Errorf("write header: %w", err)
	}

	for _, j := range rows {
		rec := make([]string, 0, len(JoinedColumns))
		o := j.Order

		createdAt := ""
		if o.CreatedAt != nil {
			createdAt = o.CreatedAt.Format(joinedTimeLayout)
		}
		itemCount := ""
		if o.ItemCount != nil {
			itemCount = FormatFloat(*o.ItemCount)
		}
		rec = append(rec,
			o.ID, o.CustomerID, o.VendorID, strconv.Itoa(o.LocationNumber), createdAt,
			strconv.Itoa(o.Promo), FormatFloat(o.PromoDiscountPct), itemCount,
			o.IsFavorite, FormatFloat(o.VendorRating), FormatFloat(o.GrandTotal),
		)

		if c := j.Customer; c != nil {
			birthYear := ""
			if c.BirthYear != nil {
				birthYear = FormatFloat(*c.BirthYear)
			}
			rec = append(rec, c.Gender, birthYear)
		} else {
			rec = append(rec, "", "")
		}

		if l := j.Location; l != nil {
			rec = append(rec, l.Type, FormatFloat(l.Latitude), FormatFloat(l.Longitude))
		} else {
			rec = append(rec, "", "", "")
		}

		if v := j.Vendor; v != nil {
			rec = append(rec, FormatFloat(v.Latitude), FormatFloat(v.Longitude),
				v.Category, FormatFloat(v.DeliveryCharge), v.Tags)
		} else {
			rec = append(rec, "", "", "", "", "")
		}

		if err := cw.Write(rec); err != nil {
			return fmt.Errorf("write row: %w", err)
		}
	}

	cw.Flush()
	return cw.Error()
}

// ReadJoined decodes a CSV stream written under the JoinedColumns schema.
// A join side is considered matched when its sentinel column is non-empty:
// gender for customers, location_type for locations, vendor_latitude for
// vendors (the cleaners guarantee those columns are set on matched rows).
func ReadJoined(r io.Reader) ([]JoinedOrder, error) {
	t, err := ReadTable(r)
	if err != nil {
		return nil, err
	}

	cols := make(map[string]int, len(JoinedColumns))
	for _, name := range JoinedColumns {
		idx, err := t.Col(name)
		if err != nil {
			return nil, err
		}
		cols[name] = idx
	}

	get := func(row []string, name string) string { return t.Value(row, cols[name]) }

	out := make([]JoinedOrder, 0, len(t.Rows))
	for _, row := range t.Rows {
		j := JoinedOrder{
			Order: Order{
				ID:               get(row, "order_id"),
				CustomerID:       get(row, "customer_id"),
				VendorID:         get(row, "vendor_id"),
				LocationNumber:   ParseIntOr(get(row, "location_number"), 0),
				CreatedAt:        ParseTime(get(row, "created_at")),
				Promo:            ParseIntOr(get(row, "promo"), 0),
				PromoDiscountPct: FloatOr(get(row, "promo_discount_pct"), 0),
				ItemCount:        ParseFloat(get(row, "item_count")),
				IsFavorite:       get(row, "is_favorite"),
				VendorRating:     FloatOr(get(row, "vendor_rating"), 0),
				GrandTotal:       FloatOr(get(row, "grand_total"), 0),
			},
		}

		if gender := get(row, "gender"); gender != "" {
			j.Customer = &Customer{
				ID:        j.Order.CustomerID,
				Gender:    gender,
				BirthYear: ParseFloat(get(row, "birth_year")),
			}
		}
		if locType := get(row, "location_type"); locType != "" {
			j.Location = &Location{
				CustomerID: j.Order.CustomerID,
				Number:     j.Order.LocationNumber,
				Type:       locType,
				Latitude:   FloatOr(get(row, "latitude"), 0),
				Longitude:  FloatOr(get(row, "longitude"), 0),
			}
		}
		if vlat := get(row, "vendor_latitude"); vlat != "" {
			j.Vendor = &Vendor{
				ID:             j.Order.VendorID,
				Latitude:       FloatOr(vlat, 0),
				Longitude:      FloatOr(get(row, "vendor_longitude"), 0),
				Category:       get(row, "vendor_category"),
				DeliveryCharge: FloatOr(get(row, "delivery_charge"), 0),
				Tags:           get(row, "vendor_tags"),
			}
		}

		out = append(out, j)
	}
	return out, nil
}

// WriteSegments encodes the merged per-customer segmentation table under the
// SegmentColumns schema.
func WriteSegments(w io.Writer, rows []CustomerSegments) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(SegmentColumns); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	for _, s := range rows {
		rec := []string{s.CustomerID, s.RFMSegment, FormatFloat(s.CLV30), s.FoodSegment}
		if err := cw.Write(rec); err != nil {
			return fmt.Errorf("write row: %w", err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// TimestampedName builds the default clustering artifact name for a run that
// did not configure an explicit filename.
func TimestampedName(now time.Time) string {
	return "clustering_" + now.Format("20060102_150405") + ".csv"
}

// Package dataset defines the typed records flowing between pipeline stages
// and the CSV codecs for every table the pipeline reads or writes. Nullable
// fields use pointers; the CSV codecs encode null as an empty cell.
package dataset

import "time"

// Customer is one cleaned customer row. IDs are unique after deduplication.
type Customer struct {
	ID        string
	Gender    string   // Male, Female or Unknown
	BirthYear *float64 // null when outside the plausible range
}

// Location is one cleaned saved-delivery-location row. Rows missing latitude
// or longitude never survive cleaning.
type Location struct {
	CustomerID string
	Number     int
	Type       string
	Latitude   float64
	Longitude  float64
}

// Order is one cleaned order row.
type Order struct {
	ID               string
	CustomerID       string
	VendorID         string
	LocationNumber   int
	CreatedAt        *time.Time // null when the source value was unparseable
	Promo            int        // 1 iff the source row carried a promo code
	PromoDiscountPct float64
	ItemCount        *float64 // null when the customer had no valid counts to impute from
	IsFavorite       string
	VendorRating     float64
	GrandTotal       float64
}

// Vendor is one cleaned vendor row, projected to the fixed column set.
type Vendor struct {
	ID             string
	Latitude       float64
	Longitude      float64
	Category       string
	DeliveryCharge float64
	Tags           string // comma-separated cuisine/category tags
}

// JoinedOrder is one denormalized order-level row: the order plus its
// left-joined customer, location and vendor. Unmatched joins leave nil
// pointers, which encode as null columns. Every JoinedOrder traces to exactly
// one source Order.
type JoinedOrder struct {
	Order    Order
	Customer *Customer
	Location *Location
	Vendor   *Vendor
}

// RFMRecord is the per-customer output of RFM segmentation.
type RFMRecord struct {
	CustomerID string
	Recency    int // days since last order relative to the snapshot date
	Frequency  int // order count
	Monetary   float64
	Cluster    int
	Segment    string // empty when the cluster id has no configured label
	CLV30      float64
}

// FoodSegment is the per-customer output of cuisine segmentation.
type FoodSegment struct {
	CustomerID string
	Cluster    int
	Segment    string
}

// CustomerSegments is the merged per-customer segmentation row published for
// the dashboard. Column names are the output contract; consumers must not
// depend on merge-order suffixes.
type CustomerSegments struct {
	CustomerID  string
	RFMSegment  string
	CLV30       float64
	FoodSegment string
}

// Interaction is one implicit (customer, vendor) rating: the count of
// restaurant orders the customer placed with the vendor.
type Interaction struct {
	CustomerID string
	VendorID   string
	Rating     float64
}

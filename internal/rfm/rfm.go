// Package rfm computes Recency/Frequency/Monetary customer segmentation with
// a cluster-derived segment label and a per-segment 30-day lifetime value
// estimate.
package rfm

import (
	"fmt"
	"math"
	"time"

	"github.com/akeed/marketplace-analytics/internal/cluster"
	"github.com/akeed/marketplace-analytics/internal/config"
	"github.com/akeed/marketplace-analytics/internal/dataset"
	"github.com/akeed/marketplace-analytics/internal/pkg/logger"
)

// Floor applied to Monetary before the log transform so zero or negative
// totals never reach math.Log.
const logFloor = 1e-10

// Analyzer runs RFM segmentation against the joined order table.
type Analyzer struct {
	snapshot time.Time
	k        int
	seed     int64
	mapping  map[int]string
	log      *logger.Logger
}

// New builds an Analyzer from validated configuration.
func New(cfg config.RFMConfig, log *logger.Logger) (*Analyzer, error) {
	snapshot, err := cfg.Snapshot()
	if err != nil {
		return nil, err
	}
	return &Analyzer{
		snapshot: snapshot,
		k:        cfg.NClusters,
		seed:     cfg.RandomState,
		mapping:  cfg.ClusterMapping,
		log:      log,
	}, nil
}

// Run aggregates orders per customer, clusters the standardized features and
// attaches segment labels and CLV_30. One output row per customer; customers
// whose orders all lack a parseable date are skipped with a warning since
// recency is undefined for them.
func (a *Analyzer) Run(orders []dataset.JoinedOrder) ([]dataset.RFMRecord, error) {
	records := a.aggregate(orders)
	if len(records) == 0 {
		return nil, fmt.Errorf("no customers with dated orders to segment")
	}

	a.log.Info("training RFM clustering model", "customers", len(records), "k", a.k)

	features := make([][]float64, len(records))
	for i, r := range records {
		logMonetary := math.Log(math.Max(r.Monetary, logFloor))
		features[i] = []float64{float64(r.Recency), float64(r.Frequency), logMonetary}
	}

	km := cluster.KMeans{K: a.k, Seed: a.seed}
	assignments, err := km.Fit(cluster.Standardize(features))
	if err != nil {
		return nil, fmt.Errorf("rfm clustering: %w", err)
	}

	for i := range records {
		records[i].Cluster = assignments[i]
		records[i].Segment = a.mapping[assignments[i]]
	}

	clv := a.segmentCLV(orders, records)
	for i := range records {
		records[i].CLV30 = clv[records[i].Segment]
	}

	a.log.Info("RFM segmentation complete", "customers", len(records))
	return records, nil
}

// aggregate computes per-customer Recency, Frequency and Monetary. Customer
// order follows first appearance in the input, keeping runs reproducible.
func (a *Analyzer) aggregate(orders []dataset.JoinedOrder) []dataset.RFMRecord {
	type agg struct {
		lastOrder time.Time
		dated     bool
		frequency int
		monetary  float64
	}
	byCustomer := make(map[string]*agg)
	var customerOrder []string

	for _, j := range orders {
		o := j.Order
		c, ok := byCustomer[o.CustomerID]
		if !ok {
			c = &agg{}
			byCustomer[o.CustomerID] = c
			customerOrder = append(customerOrder, o.CustomerID)
		}
		c.frequency++
		c.monetary += o.GrandTotal
		if o.CreatedAt != nil {
			d := dateOf(*o.CreatedAt)
			if !c.dated || d.After(c.lastOrder) {
				c.lastOrder = d
				c.dated = true
			}
		}
	}

	snapshot := dateOf(a.snapshot)
	records := make([]dataset.RFMRecord, 0, len(customerOrder))
	for _, id := range customerOrder {
		c := byCustomer[id]
		if !c.dated {
			a.log.Warn("skipping customer with no parseable order dates", "customer_id", id)
			continue
		}
		recency := int(snapshot.Sub(c.lastOrder).Hours() / 24)
		records = append(records, dataset.RFMRecord{
			CustomerID: id,
			Recency:    recency,
			Frequency:  c.frequency,
			Monetary:   c.monetary,
		})
	}
	return records
}

// segmentCLV computes CLV_30 per segment: average monthly orders per active
// user multiplied by the segment's average order value (mean Monetary over
// mean Frequency). Segments with no dated orders or a zero frequency mean get
// a CLV of zero rather than propagating a division error.
func (a *Analyzer) segmentCLV(orders []dataset.JoinedOrder, records []dataset.RFMRecord) map[string]float64 {
	segmentOf := make(map[string]string, len(records))
	for _, r := range records {
		segmentOf[r.CustomerID] = r.Segment
	}

	// Orders and distinct users per (segment, calendar month).
	type monthKey struct {
		segment string
		month   string
	}
	monthOrders := make(map[monthKey]int)
	monthUsers := make(map[monthKey]map[string]bool)
	for _, j := range orders {
		o := j.Order
		seg, ok := segmentOf[o.CustomerID]
		if !ok || o.CreatedAt == nil {
			continue
		}
		key := monthKey{segment: seg, month: o.CreatedAt.Format("2006-01")}
		monthOrders[key]++
		if monthUsers[key] == nil {
			monthUsers[key] = make(map[string]bool)
		}
		monthUsers[key][o.CustomerID] = true
	}

	// Average the per-month orders-per-user ratio across months per segment.
	ratioSum := make(map[string]float64)
	ratioCount := make(map[string]int)
	for key, n := range monthOrders {
		users := len(monthUsers[key])
		if users == 0 {
			continue
		}
		ratioSum[key.segment] += float64(n) / float64(users)
		ratioCount[key.segment]++
	}

	// Per-segment average order value from the RFM aggregates.
	monetarySum := make(map[string]float64)
	frequencySum := make(map[string]int)
	memberCount := make(map[string]int)
	for _, r := range records {
		monetarySum[r.Segment] += r.Monetary
		frequencySum[r.Segment] += r.Frequency
		memberCount[r.Segment]++
	}

	clv := make(map[string]float64, len(memberCount))
	for seg, members := range memberCount {
		if seg == "" {
			// Unmapped cluster ids carry no segment-level estimate.
			clv[seg] = 0
			continue
		}
		if ratioCount[seg] == 0 || frequencySum[seg] == 0 {
			clv[seg] = 0
			continue
		}
		avgMonthlyOrders := ratioSum[seg] / float64(ratioCount[seg])
		meanMonetary := monetarySum[seg] / float64(members)
		meanFrequency := float64(frequencySum[seg]) / float64(members)
		avgOrderValue := meanMonetary / meanFrequency
		clv[seg] = avgMonthlyOrders * avgOrderValue
	}
	return clv
}

func dateOf(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

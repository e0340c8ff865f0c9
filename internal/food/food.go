// Package food clusters customers by cuisine preference: vendor tags are
// expanded per order, aggregated into configured coarse categories, TF-IDF
// weighted and K-Means clustered.
package food

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/akeed/marketplace-analytics/internal/cluster"
	"github.com/akeed/marketplace-analytics/internal/config"
	"github.com/akeed/marketplace-analytics/internal/dataset"
	"github.com/akeed/marketplace-analytics/internal/pkg/logger"
)

// Analyzer runs cuisine-preference segmentation against the joined table.
type Analyzer struct {
	columns    []string
	mapping    map[string][]string
	clusterMap map[int]string
	k          int
	seed       int64
	log        *logger.Logger
}

// New builds an Analyzer from validated configuration.
func New(cfg config.FoodConfig, log *logger.Logger) *Analyzer {
	return &Analyzer{
		columns:    cfg.Columns,
		mapping:    cfg.FoodMapping,
		clusterMap: cfg.ClusterMapping,
		k:          cfg.NumClusters,
		seed:       cfg.RandomState,
		log:        log,
	}
}

// Run produces one FoodSegment per customer appearing in the input. Customers
// whose orders carry no cuisine tags cluster on an all-zero vector rather than
// being dropped.
func (a *Analyzer) Run(orders []dataset.JoinedOrder) ([]dataset.FoodSegment, error) {
	tagCounts, customerOrder, present := a.expandTags(orders)
	if len(customerOrder) == 0 {
		return nil, fmt.Errorf("no customers in input")
	}

	categories, vectors := a.aggregate(tagCounts, customerOrder, present)
	a.log.Info("cuisine aggregation completed", "customers", len(customerOrder), "categories", len(categories))

	weighted := tfidf(vectors)
	km := cluster.KMeans{K: a.k, Seed: a.seed}
	assignments, err := km.Fit(weighted)
	if err != nil {
		return nil, fmt.Errorf("food clustering: %w", err)
	}

	out := make([]dataset.FoodSegment, len(customerOrder))
	for i, id := range customerOrder {
		out[i] = dataset.FoodSegment{
			CustomerID: id,
			Cluster:    assignments[i],
			Segment:    a.clusterMap[assignments[i]],
		}
	}
	a.log.Info("food segmentation complete", "customers", len(out))
	return out, nil
}

// expandTags counts per-customer tag occurrences: each order contributes one
// count for every tag its vendor carries. Returns counts, customers in first
// appearance order, and the set of tags present in the data.
func (a *Analyzer) expandTags(orders []dataset.JoinedOrder) (map[string]map[string]int, []string, map[string]bool) {
	counts := make(map[string]map[string]int)
	var customerOrder []string
	present := make(map[string]bool)

	for _, j := range orders {
		id := j.Order.CustomerID
		if _, ok := counts[id]; !ok {
			counts[id] = make(map[string]int)
			customerOrder = append(customerOrder, id)
		}
		if j.Vendor == nil || j.Vendor.Tags == "" {
			continue
		}
		for _, tag := range strings.Split(j.Vendor.Tags, ",") {
			tag = strings.TrimSpace(tag)
			if tag == "" {
				continue
			}
			present[tag] = true
			counts[id][tag]++
		}
	}
	return counts, customerOrder, present
}

// aggregate folds tag counts into the configured coarse categories. A tag
// participates only when it is both configured in the column list and present
// in the data; configured-but-absent tags are warn-logged. Categories with no
// available tags stay as constant zero columns so the output schema is stable.
func (a *Analyzer) aggregate(tagCounts map[string]map[string]int, customerOrder []string, present map[string]bool) ([]string, [][]float64) {
	selected := make(map[string]bool, len(a.columns))
	for _, col := range a.columns {
		selected[col] = true
	}

	var missing []string
	available := make(map[string][]string, len(a.mapping))
	for category, tags := range a.mapping {
		for _, tag := range tags {
			if selected[tag] && present[tag] {
				available[category] = append(available[category], tag)
			} else {
				missing = append(missing, tag)
			}
		}
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		a.log.Warn("missing cuisine tag columns", "tags", strings.Join(missing, ","))
	}

	// Category order is sorted for run-to-run determinism.
	categories := make([]string, 0, len(a.mapping))
	for category := range a.mapping {
		categories = append(categories, category)
	}
	sort.Strings(categories)

	vectors := make([][]float64, len(customerOrder))
	for i, id := range customerOrder {
		vec := make([]float64, len(categories))
		for c, category := range categories {
			sum := 0
			for _, tag := range available[category] {
				sum += tagCounts[id][tag]
			}
			vec[c] = float64(sum)
		}
		vectors[i] = vec
	}
	return categories, vectors
}

// tfidf applies smoothed TF-IDF weighting with L2 row normalization to the
// customer×category count matrix: idf = ln((1+n)/(1+df)) + 1.
func tfidf(vectors [][]float64) [][]float64 {
	if len(vectors) == 0 {
		return nil
	}
	n := len(vectors)
	dims := len(vectors[0])

	df := make([]float64, dims)
	for _, vec := range vectors {
		for d, v := range vec {
			if v > 0 {
				df[d]++
			}
		}
	}
	idf := make([]float64, dims)
	for d := range idf {
		idf[d] = math.Log((1+float64(n))/(1+df[d])) + 1
	}

	out := make([][]float64, n)
	for i, vec := range vectors {
		row := make([]float64, dims)
		norm := 0.0
		for d, v := range vec {
			row[d] = v * idf[d]
			norm += row[d] * row[d]
		}
		if norm > 0 {
			norm = math.Sqrt(norm)
			for d := range row {
				row[d] /= norm
			}
		}
		out[i] = row
	}
	return out
}

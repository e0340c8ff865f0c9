// Package profile publishes numeric summaries of the joined table: a
// correlation matrix over the numeric columns and per-customer spend and
// order-count distributions. These feed the dashboard in place of rendered
// plots.
package profile

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"sort"
	"strings"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"github.com/akeed/marketplace-analytics/internal/config"
	"github.com/akeed/marketplace-analytics/internal/dataset"
	"github.com/akeed/marketplace-analytics/internal/pkg/logger"
	"github.com/akeed/marketplace-analytics/internal/storage"
)

// numericColumns are the joined-table columns the correlation matrix covers.
var numericColumns = []string{
	"promo", "promo_discount_pct", "item_count", "vendor_rating", "grand_total",
}

// Run computes and uploads the profile artifacts. A disabled upload flag
// skips the stage without any network call.
func Run(ctx context.Context, store storage.ObjectStore, cfg config.UploadConfig, orders []dataset.JoinedOrder, log *logger.Logger) error {
	if !cfg.Upload {
		log.Warn("profile upload disabled, skipping stage")
		return nil
	}

	log.Info("starting data profile", "rows", len(orders))

	corr, err := correlationCSV(orders)
	if err != nil {
		return err
	}
	prefix := strings.TrimRight(cfg.Prefix, "/") + "/"
	if err := store.Put(ctx, cfg.Bucket, prefix+"correlation_matrix.csv", corr, "text/csv"); err != nil {
		return err
	}

	summary, err := customerSummaryCSV(orders)
	if err != nil {
		return err
	}
	if err := store.Put(ctx, cfg.Bucket, prefix+"customer_summary.csv", summary, "text/csv"); err != nil {
		return err
	}

	log.Info("data profile published", "bucket", cfg.Bucket, "prefix", prefix)
	return nil
}

// correlationCSV renders the Pearson correlation matrix of the numeric
// columns, computed over rows where every column is present.
func correlationCSV(orders []dataset.JoinedOrder) ([]byte, error) {
	var data []float64
	rows := 0
	for _, j := range orders {
		o := j.Order
		if o.ItemCount == nil {
			continue
		}
		data = append(data, float64(o.Promo), o.PromoDiscountPct, *o.ItemCount, o.VendorRating, o.GrandTotal)
		rows++
	}
	if rows < 2 {
		return nil, fmt.Errorf("not enough complete rows for correlation matrix: %d", rows)
	}

	x := mat.NewDense(rows, len(numericColumns), data)
	var corr mat.SymDense
	stat.CorrelationMatrix(&corr, x, nil)

	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(append([]string{""}, numericColumns...)); err != nil {
		return nil, err
	}
	for i, name := range numericColumns {
		rec := make([]string, 0, len(numericColumns)+1)
		rec = append(rec, name)
		for jj := range numericColumns {
			rec = append(rec, fmt.Sprintf("%.6f", corr.At(i, jj)))
		}
		if err := w.Write(rec); err != nil {
			return nil, err
		}
	}
	w.Flush()
	return buf.Bytes(), w.Error()
}

// customerSummaryCSV renders five-number summaries of total spend and order
// count per customer.
func customerSummaryCSV(orders []dataset.JoinedOrder) ([]byte, error) {
	spend := make(map[string]float64)
	count := make(map[string]float64)
	for _, j := range orders {
		spend[j.Order.CustomerID] += j.Order.GrandTotal
		count[j.Order.CustomerID]++
	}
	if len(spend) == 0 {
		return nil, fmt.Errorf("no customers to summarize")
	}

	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write([]string{"metric", "min", "q1", "median", "q3", "max"}); err != nil {
		return nil, err
	}
	for _, m := range []struct {
		name   string
		values map[string]float64
	}{
		{"total_spend_per_customer", spend},
		{"order_count_per_customer", count},
	} {
		xs := make([]float64, 0, len(m.values))
		for _, v := range m.values {
			xs = append(xs, v)
		}
		sort.Float64s(xs)
		rec := []string{
			m.name,
			dataset.FormatFloat(xs[0]),
			dataset.FormatFloat(stat.Quantile(0.25, stat.LinInterp, xs, nil)),
			dataset.FormatFloat(stat.Quantile(0.5, stat.LinInterp, xs, nil)),
			dataset.FormatFloat(stat.Quantile(0.75, stat.LinInterp, xs, nil)),
			dataset.FormatFloat(xs[len(xs)-1]),
		}
		if err := w.Write(rec); err != nil {
			return nil, err
		}
	}
	w.Flush()
	return buf.Bytes(), w.Error()
}

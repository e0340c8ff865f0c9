// Package etl runs the ingest half of the pipeline: it reads the four raw
// tables from object storage, cleans them, joins them into the denormalized
// order-level table and publishes the result to the fixed output key.
package etl

import (
	"context"
	"fmt"

	"github.com/akeed/marketplace-analytics/internal/cleaning"
	"github.com/akeed/marketplace-analytics/internal/config"
	"github.com/akeed/marketplace-analytics/internal/dataset"
	"github.com/akeed/marketplace-analytics/internal/pkg/logger"
	"github.com/akeed/marketplace-analytics/internal/storage"
)

// Result is the structured outcome reported to the host process.
type Result struct {
	StatusCode int    `json:"statusCode"`
	Message    string `json:"message"`
}

// Run executes the ingest stage end to end. Any stage error is logged and
// converted into a failure Result; the host process never sees a panic.
func Run(ctx context.Context, cfg config.ETLConfig, store storage.ObjectStore, log *logger.Logger) Result {
	joined, err := process(ctx, cfg, store, log)
	if err != nil {
		log.Error("ingest failed", "error", err)
		return Result{StatusCode: 500, Message: err.Error()}
	}

	if err := storage.PublishJoined(ctx, store, cfg.Bucket, cfg.OutputKey, joined); err != nil {
		log.Error("failed to publish joined table", "error", err)
		return Result{StatusCode: 500, Message: err.Error()}
	}

	msg := fmt.Sprintf("Data processing complete. File saved to %s", cfg.OutputKey)
	log.Info(msg, "rows", len(joined))
	return Result{StatusCode: 200, Message: msg}
}

func process(ctx context.Context, cfg config.ETLConfig, store storage.ObjectStore, log *logger.Logger) ([]dataset.JoinedOrder, error) {
	tables := make(map[string]*dataset.Table, 4)
	for name, key := range map[string]string{
		"customers": cfg.CustomerKey,
		"locations": cfg.LocationKey,
		"orders":    cfg.OrderKey,
		"vendors":   cfg.VendorKey,
	} {
		log.Info("reading raw table", "table", name, "bucket", cfg.Bucket, "key", key)
		t, err := storage.FetchTable(ctx, store, cfg.Bucket, key)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", name, err)
		}
		tables[name] = t
	}

	log.Info("cleaning customers dataset")
	customers, err := cleaning.Customers(tables["customers"])
	if err != nil {
		return nil, fmt.Errorf("clean customers: %w", err)
	}
	log.Info("cleaning locations dataset")
	locations, err := cleaning.Locations(tables["locations"])
	if err != nil {
		return nil, fmt.Errorf("clean locations: %w", err)
	}
	log.Info("cleaning orders dataset")
	orders, err := cleaning.Orders(tables["orders"])
	if err != nil {
		return nil, fmt.Errorf("clean orders: %w", err)
	}
	log.Info("cleaning vendors dataset")
	vendors, err := cleaning.Vendors(tables["vendors"])
	if err != nil {
		return nil, fmt.Errorf("clean vendors: %w", err)
	}

	log.Info("merging datasets",
		"orders", len(orders),
		"customers", len(customers),
		"locations", len(locations),
		"vendors", len(vendors))
	return cleaning.Join(orders, customers, locations, vendors), nil
}

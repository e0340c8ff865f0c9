// Package pipeline orchestrates the analytics half of the batch run: acquire
// the joined table, publish data-profile artifacts, compute RFM and cuisine
// segmentation, publish the merged segmentation table and train/publish the
// recommender models. Stages run strictly sequentially.
package pipeline

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/akeed/marketplace-analytics/internal/config"
	"github.com/akeed/marketplace-analytics/internal/dataset"
	"github.com/akeed/marketplace-analytics/internal/food"
	"github.com/akeed/marketplace-analytics/internal/pkg/logger"
	"github.com/akeed/marketplace-analytics/internal/profile"
	"github.com/akeed/marketplace-analytics/internal/recommender"
	"github.com/akeed/marketplace-analytics/internal/rfm"
	"github.com/akeed/marketplace-analytics/internal/storage"
)

// Source supplies the joined order table, from Postgres or from the ETL
// stage's published CSV.
type Source interface {
	FetchAll(ctx context.Context) ([]dataset.JoinedOrder, error)
}

// Result is the structured outcome of a pipeline run.
type Result struct {
	StatusCode    int             `json:"statusCode"`
	Message       string          `json:"message"`
	RunID         string          `json:"run_id"`
	ClusteringURI string          `json:"clustering_uri,omitempty"`
	ModelUploads  map[string]bool `json:"model_uploads,omitempty"`
}

// Run executes the pipeline. Errors never escape: every failure is logged and
// converted to a status-code/message Result.
func Run(ctx context.Context, cfg *config.Config, source Source, store storage.ObjectStore, log *logger.Logger) Result {
	runID := uuid.New().String()
	log.Info("pipeline run starting", "run_id", runID)

	fail := func(err error) Result {
		log.Error("pipeline run failed", "run_id", runID, "error", err)
		return Result{StatusCode: 500, Message: err.Error(), RunID: runID}
	}

	// Step 1: acquire the joined table.
	log.Info("acquiring joined order table")
	orders, err := source.FetchAll(ctx)
	if err != nil {
		return fail(err)
	}
	log.Info("acquired joined order table", "rows", len(orders))

	// Step 2: data profile artifacts.
	if err := profile.Run(ctx, store, cfg.Profile, orders, log.WithComponent("profile")); err != nil {
		return fail(err)
	}

	// Step 3: segmentation. Unmapped cluster ids produce rows with an empty
	// segment label, so surface configured gaps up front.
	if gaps := config.MappingGaps(cfg.RFM.ClusterMapping, cfg.RFM.NClusters); len(gaps) > 0 {
		log.Warn("rfm cluster mapping has unlabeled clusters", "clusters", gaps)
	}
	if gaps := config.MappingGaps(cfg.Food.ClusterMapping, cfg.Food.NumClusters); len(gaps) > 0 {
		log.Warn("food cluster mapping has unlabeled clusters", "clusters", gaps)
	}

	rfmAnalyzer, err := rfm.New(cfg.RFM, log.WithComponent("rfm"))
	if err != nil {
		return fail(err)
	}
	rfmRecords, err := rfmAnalyzer.Run(orders)
	if err != nil {
		return fail(err)
	}

	foodRecords, err := food.New(cfg.Food, log.WithComponent("food")).Run(orders)
	if err != nil {
		return fail(err)
	}

	segments := MergeSegments(rfmRecords, foodRecords)
	log.Info("merged segmentation tables", "customers", len(segments))

	// Step 4: publish the merged segmentation table.
	result := Result{StatusCode: 200, RunID: runID}
	if cfg.Clustering.Upload {
		uri, err := storage.PublishClustering(ctx, store, cfg.Clustering, segments, time.Now().UTC())
		if err != nil {
			return fail(err)
		}
		log.Info("uploaded segmentation table", "uri", uri)
		result.ClusteringURI = uri
	} else {
		log.Warn("clustering upload disabled, skipping upload of merged table")
	}

	// Step 5: recommender models.
	interactions := recommender.Interactions(orders)
	trainer := recommender.NewTrainer(cfg.Recommender, store, log.WithComponent("recommender"))
	uploads, err := trainer.TrainAndUpload(ctx, interactions)
	if err != nil {
		return fail(err)
	}
	switch {
	case uploads.Skipped:
		log.Warn("recommender model upload was disabled in configuration")
	case uploads.AllUploaded():
		log.Info("all recommender models were successfully uploaded")
	default:
		log.Warn("some recommender models failed to upload")
	}
	result.ModelUploads = uploads.Status

	result.Message = "pipeline run complete"
	log.Info(result.Message, "run_id", runID)
	return result
}

// MergeSegments left-joins the food segment onto the RFM table by customer
// id. Customers absent from the food output keep an empty food segment.
func MergeSegments(rfmRecords []dataset.RFMRecord, foodRecords []dataset.FoodSegment) []dataset.CustomerSegments {
	foodByCustomer := make(map[string]string, len(foodRecords))
	for _, f := range foodRecords {
		foodByCustomer[f.CustomerID] = f.Segment
	}

	out := make([]dataset.CustomerSegments, len(rfmRecords))
	for i, r := range rfmRecords {
		out[i] = dataset.CustomerSegments{
			CustomerID:  r.CustomerID,
			RFMSegment:  r.Segment,
			CLV30:       r.CLV30,
			FoodSegment: foodByCustomer[r.CustomerID],
		}
	}
	return out
}

package recommender

import (
	"bytes"
	"context"
	"encoding/gob"
	"fmt"

	"github.com/akeed/marketplace-analytics/internal/config"
	"github.com/akeed/marketplace-analytics/internal/dataset"
	"github.com/akeed/marketplace-analytics/internal/pkg/logger"
)

// Model is one trainable recommender. Fit must not mutate the shared
// trainset.
type Model interface {
	Name() string
	Fit(ts *Trainset) error
	Predict(userID, itemID string) float64
}

// Build constructs a model from its configured type and hyperparameters.
// An unknown model type is a fatal configuration error.
func Build(modelType string, p config.ModelParams) (Model, error) {
	switch modelType {
	case "svd":
		return NewSVD(p.NFactors, p.NEpochs, p.LearnRate, p.Reg, p.RandomSeed), nil
	case "nmf":
		return NewNMF(p.NFactors, p.NEpochs, p.LearnRate, p.Reg, p.RandomSeed), nil
	case "svdpp":
		return NewSVDPP(p.NFactors, p.NEpochs, p.LearnRate, p.Reg, p.RandomSeed), nil
	case "user_knn":
		return NewKNN(p.K, p.SimOptions.Name, true), nil
	case "item_knn":
		return NewKNN(p.K, p.SimOptions.Name, false), nil
	}
	return nil, fmt.Errorf("unknown model type: %s", modelType)
}

// Uploader publishes one serialized artifact. The S3-backed implementation
// lives in internal/storage; tests inject fakes.
type Uploader interface {
	Put(ctx context.Context, bucket, key string, body []byte, contentType string) error
}

// UploadResult reports the outcome of the training stage. When Skipped is
// true no model was trained or uploaded and no network call was made.
type UploadResult struct {
	Skipped bool
	Status  map[string]bool // model name -> upload succeeded
}

// AllUploaded reports whether every trained model reached the object store.
func (r *UploadResult) AllUploaded() bool {
	if r.Skipped {
		return false
	}
	for _, ok := range r.Status {
		if !ok {
			return false
		}
	}
	return true
}

// Trainer trains the configured model menu on the full interaction set and
// uploads each serialized model independently.
type Trainer struct {
	cfg      config.RecommenderConfig
	uploader Uploader
	log      *logger.Logger
}

// NewTrainer creates a Trainer. The uploader is only used when the stage's
// upload flag is enabled.
func NewTrainer(cfg config.RecommenderConfig, uploader Uploader, log *logger.Logger) *Trainer {
	return &Trainer{cfg: cfg, uploader: uploader, log: log}
}

// TrainAndUpload builds the trainset, then trains and publishes each model in
// turn. A failed upload marks that model false in the status map and the run
// continues; training errors are fatal.
func (t *Trainer) TrainAndUpload(ctx context.Context, interactions []dataset.Interaction) (*UploadResult, error) {
	if !t.cfg.AWS.Upload {
		t.log.Info("model upload disabled, skipping recommender training")
		return &UploadResult{Skipped: true}, nil
	}

	ts, err := NewTrainset(interactions)
	if err != nil {
		return nil, err
	}
	t.log.Info("built trainset",
		"interactions", len(ts.Ratings),
		"customers", len(ts.Users),
		"vendors", len(ts.Items),
		"min_rating", ts.MinRating,
		"max_rating", ts.MaxRating)

	result := &UploadResult{Status: make(map[string]bool, len(t.cfg.Models))}
	for _, modelType := range t.cfg.Models {
		model, err := Build(modelType, t.cfg.Params[modelType])
		if err != nil {
			return nil, err
		}

		t.log.Info("training model", "model", modelType)
		if err := model.Fit(ts); err != nil {
			return nil, fmt.Errorf("train %s: %w", modelType, err)
		}

		data, err := encodeModel(model)
		if err != nil {
			return nil, fmt.Errorf("serialize %s: %w", modelType, err)
		}

		key := t.cfg.AWS.Prefix + modelType + "_model.gob"
		if err := t.uploader.Put(ctx, t.cfg.AWS.Bucket, key, data, "application/octet-stream"); err != nil {
			t.log.Error("failed to upload model", "model", modelType, "error", err)
			result.Status[modelType] = false
			continue
		}
		t.log.Info("uploaded model", "model", modelType, "key", key, "bytes", len(data))
		result.Status[modelType] = true
	}
	return result, nil
}

func encodeModel(m Model) ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(m); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

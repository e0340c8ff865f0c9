package pipeline

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/akeed/marketplace-analytics/internal/config"
	"github.com/akeed/marketplace-analytics/internal/dataset"
	"github.com/akeed/marketplace-analytics/internal/pkg/logger"
)

type memStore struct {
	objects map[string][]byte
}

func (m *memStore) Get(_ context.Context, bucket, key string) ([]byte, error) {
	data, ok := m.objects[bucket+"/"+key]
	if !ok {
		return nil, errors.New("no such key: " + key)
	}
	return data, nil
}

func (m *memStore) Put(_ context.Context, bucket, key string, body []byte, _ string) error {
	m.objects[bucket+"/"+key] = body
	return nil
}

type staticSource struct {
	orders []dataset.JoinedOrder
	err    error
}

func (s staticSource) FetchAll(context.Context) ([]dataset.JoinedOrder, error) {
	return s.orders, s.err
}

func testLogger() *logger.Logger {
	return logger.NewWithWriter("pipeline-test", logger.ERROR, io.Discard)
}

func pipelineOrder(customer, vendor, created string, total float64, tags string) dataset.JoinedOrder {
	ts, _ := time.Parse("2006-01-02", created)
	items := 2.0
	return dataset.JoinedOrder{
		Order: dataset.Order{
			CustomerID: customer, VendorID: vendor, CreatedAt: &ts,
			ItemCount: &items, GrandTotal: total,
		},
		Vendor: &dataset.Vendor{ID: vendor, Category: "Restaurants", Tags: tags},
	}
}

func pipelineConfig() *config.Config {
	return &config.Config{
		Profile: config.UploadConfig{Upload: false},
		Clustering: config.UploadConfig{
			Upload: true, Bucket: "analytics", Prefix: "clustering", Filename: "latest.csv",
		},
		RFM: config.RFMConfig{
			SnapshotDate:   "2019-06-30",
			NClusters:      1,
			RandomState:    42,
			ClusterMapping: map[int]string{0: "Loyal"},
		},
		Food: config.FoodConfig{
			Columns: []string{"Burgers", "Salads"},
			FoodMapping: map[string][]string{
				"Fast Food": {"Burgers"},
				"Healthy":   {"Salads"},
			},
			ClusterMapping: map[int]string{0: "Fast Food Lovers"},
			NumClusters:    1,
			RandomState:    42,
		},
		Recommender: config.RecommenderConfig{
			Models: []string{"svd"},
			Params: map[string]config.ModelParams{
				"svd": {NFactors: 2, NEpochs: 5, LearnRate: 0.01, Reg: 0.02, RandomSeed: 1},
			},
			AWS: config.UploadConfig{Upload: true, Bucket: "models", Prefix: "rs/"},
		},
	}
}

func pipelineOrders() []dataset.JoinedOrder {
	return []dataset.JoinedOrder{
		pipelineOrder("c1", "v1", "2019-05-01", 10, "Burgers"),
		pipelineOrder("c1", "v2", "2019-05-02", 20, "Salads"),
		pipelineOrder("c2", "v1", "2019-05-15", 30, "Burgers"),
	}
}

func TestRunEndToEnd(t *testing.T) {
	store := &memStore{objects: map[string][]byte{}}
	cfg := pipelineConfig()

	result := Run(context.Background(), cfg, staticSource{orders: pipelineOrders()}, store, testLogger())
	require.Equal(t, 200, result.StatusCode)
	assert.NotEmpty(t, result.RunID)
	assert.Equal(t, "s3://analytics/clustering/latest.csv", result.ClusteringURI)
	assert.Equal(t, map[string]bool{"svd": true}, result.ModelUploads)

	segments := string(store.objects["analytics/clustering/latest.csv"])
	require.NotEmpty(t, segments)
	lines := strings.Split(strings.TrimSpace(segments), "\n")
	// Header plus one row per customer.
	require.Len(t, lines, 3)
	assert.Equal(t, "customer_id,rfm_segment,clv_30,food_segment", lines[0])
	assert.True(t, strings.HasPrefix(lines[1], "c1,Loyal,"))
	assert.True(t, strings.HasSuffix(lines[1], ",Fast Food Lovers"))

	assert.Contains(t, store.objects, "models/rs/svd_model.gob")
}

func TestRunSkipsUploadsWhenDisabled(t *testing.T) {
	store := &memStore{objects: map[string][]byte{}}
	cfg := pipelineConfig()
	cfg.Clustering.Upload = false
	cfg.Recommender.AWS.Upload = false

	result := Run(context.Background(), cfg, staticSource{orders: pipelineOrders()}, store, testLogger())
	require.Equal(t, 200, result.StatusCode)
	assert.Empty(t, result.ClusteringURI)
	assert.Empty(t, result.ModelUploads)
	// Nothing was written anywhere.
	assert.Empty(t, store.objects)
}

func TestRunSourceFailure(t *testing.T) {
	store := &memStore{objects: map[string][]byte{}}

	result := Run(context.Background(), pipelineConfig(), staticSource{err: errors.New("connection refused")}, store, testLogger())
	assert.Equal(t, 500, result.StatusCode)
	assert.Contains(t, result.Message, "connection refused")
	assert.NotEmpty(t, result.RunID)
}

func TestMergeSegments(t *testing.T) {
	rfmRecords := []dataset.RFMRecord{
		{CustomerID: "c1", Segment: "Loyal", CLV30: 12.5},
		{CustomerID: "c2", Segment: "At Risk", CLV30: 3},
	}
	foodRecords := []dataset.FoodSegment{
		{CustomerID: "c1", Segment: "Fast Food Lovers"},
		// c2 missing from the food output.
	}

	merged := MergeSegments(rfmRecords, foodRecords)
	require.Len(t, merged, 2)
	assert.Equal(t, dataset.CustomerSegments{
		CustomerID: "c1", RFMSegment: "Loyal", CLV30: 12.5, FoodSegment: "Fast Food Lovers",
	}, merged[0])
	assert.Equal(t, "", merged[1].FoodSegment)
}

package storage

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/akeed/marketplace-analytics/internal/config"
	"github.com/akeed/marketplace-analytics/internal/dataset"
)

type memStore struct {
	objects map[string][]byte
	types   map[string]string
	getErr  error
	putErr  error
}

func newMemStore() *memStore {
	return &memStore{objects: map[string][]byte{}, types: map[string]string{}}
}

func (m *memStore) Get(_ context.Context, bucket, key string) ([]byte, error) {
	if m.getErr != nil {
		return nil, m.getErr
	}
	data, ok := m.objects[bucket+"/"+key]
	if !ok {
		return nil, errors.New("no such key: " + key)
	}
	return data, nil
}

func (m *memStore) Put(_ context.Context, bucket, key string, body []byte, contentType string) error {
	if m.putErr != nil {
		return m.putErr
	}
	m.objects[bucket+"/"+key] = body
	m.types[bucket+"/"+key] = contentType
	return nil
}

func TestFetchTable(t *testing.T) {
	store := newMemStore()
	store.objects["raw/customers.csv"] = []byte("id,gender\nc1,male\n")

	table, err := FetchTable(context.Background(), store, "raw", "customers.csv")
	require.NoError(t, err)
	assert.Equal(t, []string{"id", "gender"}, table.Columns)
	require.Len(t, table.Rows, 1)
}

func TestFetchTableMissingObject(t *testing.T) {
	_, err := FetchTable(context.Background(), newMemStore(), "raw", "nope.csv")
	require.Error(t, err)
}

func TestPublishJoinedRoundTrip(t *testing.T) {
	store := newMemStore()
	rows := []dataset.JoinedOrder{
		{Order: dataset.Order{ID: "o1", CustomerID: "c1", VendorID: "v1", IsFavorite: "No"}},
	}

	err := PublishJoined(context.Background(), store, "etl", "clean/joined.csv", rows)
	require.NoError(t, err)
	assert.Equal(t, "text/csv", store.types["etl/clean/joined.csv"])

	table, err := FetchTable(context.Background(), store, "etl", "clean/joined.csv")
	require.NoError(t, err)
	assert.Equal(t, dataset.JoinedColumns, table.Columns)
	assert.Len(t, table.Rows, 1)
}

func TestPublishClusteringKeyAndURI(t *testing.T) {
	store := newMemStore()
	now := time.Date(2024, 3, 9, 15, 4, 5, 0, time.UTC)
	rows := []dataset.CustomerSegments{{CustomerID: "c1", RFMSegment: "Champions"}}

	// Trailing slash on the prefix never doubles up in the key.
	uri, err := PublishClustering(context.Background(), store, config.UploadConfig{
		Bucket: "analytics", Prefix: "clustering/",
	}, rows, now)
	require.NoError(t, err)
	assert.Equal(t, "s3://analytics/clustering/clustering_20240309_150405.csv", uri)
	assert.Contains(t, store.objects, "analytics/clustering/clustering_20240309_150405.csv")

	// A configured filename beats the timestamped default.
	uri, err = PublishClustering(context.Background(), store, config.UploadConfig{
		Bucket: "analytics", Prefix: "clustering", Filename: "latest.csv",
	}, rows, now)
	require.NoError(t, err)
	assert.Equal(t, "s3://analytics/clustering/latest.csv", uri)
}

func TestPublishClusteringPutFailure(t *testing.T) {
	store := newMemStore()
	store.putErr = errors.New("access denied")

	_, err := PublishClustering(context.Background(), store, config.UploadConfig{
		Bucket: "analytics", Prefix: "clustering",
	}, nil, time.Now())
	require.Error(t, err)
}

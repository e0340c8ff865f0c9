package storage

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/akeed/marketplace-analytics/internal/dataset"
)

func TestCSVSourceFetchAll(t *testing.T) {
	store := newMemStore()
	rows := []dataset.JoinedOrder{
		{Order: dataset.Order{ID: "o1", CustomerID: "c1", VendorID: "v1", IsFavorite: "No"}},
		{Order: dataset.Order{ID: "o2", CustomerID: "c2", VendorID: "v2", IsFavorite: "Yes"}},
	}
	require.NoError(t, PublishJoined(context.Background(), store, "etl", "clean/joined.csv", rows))

	source := CSVSource{Store: store, Bucket: "etl", Key: "clean/joined.csv"}
	got, err := source.FetchAll(context.Background())
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "o1", got[0].Order.ID)
	assert.Equal(t, "Yes", got[1].Order.IsFavorite)
}

package profile

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"

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

func testLogger() *logger.Logger {
	return logger.NewWithWriter("profile-test", logger.ERROR, io.Discard)
}

func profileOrder(customer string, promo int, disc, items, rating, total float64) dataset.JoinedOrder {
	return dataset.JoinedOrder{Order: dataset.Order{
		CustomerID: customer, Promo: promo, PromoDiscountPct: disc,
		ItemCount: &items, VendorRating: rating, GrandTotal: total,
	}}
}

func TestRunSkipsWhenUploadDisabled(t *testing.T) {
	store := &memStore{objects: map[string][]byte{}}

	err := Run(context.Background(), store, config.UploadConfig{Upload: false}, nil, testLogger())
	require.NoError(t, err)
	assert.Empty(t, store.objects)
}

func TestRunPublishesArtifacts(t *testing.T) {
	store := &memStore{objects: map[string][]byte{}}
	// Every numeric column varies, so no correlation degenerates to NaN.
	orders := []dataset.JoinedOrder{
		profileOrder("c1", 1, 10, 2, 4.5, 10),
		profileOrder("c1", 0, 0, 4, 3.0, 30),
		profileOrder("c2", 0, 5, 1, 5.0, 5),
	}

	err := Run(context.Background(), store, config.UploadConfig{
		Upload: true, Bucket: "stats", Prefix: "profile/",
	}, orders, testLogger())
	require.NoError(t, err)

	corr := string(store.objects["stats/profile/correlation_matrix.csv"])
	require.NotEmpty(t, corr)
	lines := strings.Split(strings.TrimSpace(corr), "\n")
	// Header plus one row per numeric column.
	require.Len(t, lines, 6)
	assert.True(t, strings.HasPrefix(lines[0], ",promo,"))
	// Diagonal of a correlation matrix is 1.
	assert.True(t, strings.HasPrefix(lines[1], "promo,1.000000,"))

	summary := string(store.objects["stats/profile/customer_summary.csv"])
	require.NotEmpty(t, summary)
	assert.Contains(t, summary, "metric,min,q1,median,q3,max")
	// c1 spent 40, c2 spent 5.
	assert.Contains(t, summary, "total_spend_per_customer,5,")
	assert.Contains(t, summary, "order_count_per_customer,1,")
}

func TestRunFailsWithTooFewCompleteRows(t *testing.T) {
	store := &memStore{objects: map[string][]byte{}}
	// The second order has no item count, leaving a single complete row.
	orders := []dataset.JoinedOrder{
		profileOrder("c1", 1, 10, 2, 4.5, 10),
		{Order: dataset.Order{CustomerID: "c2", GrandTotal: 5}},
	}

	err := Run(context.Background(), store, config.UploadConfig{
		Upload: true, Bucket: "stats", Prefix: "profile",
	}, orders, testLogger())
	require.Error(t, err)
}

package etl

import (
	"bytes"
	"context"
	"errors"
	"io"
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
	return logger.NewWithWriter("etl-test", logger.ERROR, io.Discard)
}

func testETLConfig() config.ETLConfig {
	return config.ETLConfig{
		Bucket:      "raw",
		CustomerKey: "customers.csv",
		LocationKey: "locations.csv",
		OrderKey:    "orders.csv",
		VendorKey:   "vendors.csv",
		OutputKey:   "clean/joined.csv",
	}
}

func seedRawTables(store *memStore) {
	store.objects["raw/customers.csv"] = []byte(
		"akeed_customer_id,gender,dob,created_at,updated_at\n" +
			"c1,male,1990,2018-01-01,2018-01-01\n" +
			"c2,female,1985,2018-01-01,2018-01-01\n")
	store.objects["raw/locations.csv"] = []byte(
		"customer_id,location_number,location_type,latitude,longitude\n" +
			"c1,0,Home,1.5,2.5\n" +
			"c2,0,Work,3.5,4.5\n")
	store.objects["raw/orders.csv"] = []byte(
		"akeed_order_id,customer_id,vendor_id,LOCATION_NUMBER,created_at,promo_code,promo_code_discount_percentage,item_count,is_favorite,vendor_rating,grand_total\n" +
			"o1,c1,v1,0,2019-05-01 10:00:00,SAVE,10,2,Yes,4.5,20\n" +
			"o2,c1,v1,0,2019-05-02 10:00:00,,,4,,,30\n" +
			"o3,c2,v1,0,2019-05-03 10:00:00,,,1,,,5\n" +
			"o4,c2,v9,0,2019-05-04 10:00:00,,,1,,,8\n" +
			"o5,c9,v1,0,2019-05-05 10:00:00,,,2,,,12\n")
	store.objects["raw/vendors.csv"] = []byte(
		"id,latitude,longitude,vendor_category_en,delivery_charge,vendor_tag_name\n" +
			"v1,1.0,2.0,Restaurants,0.7,\"Burgers,Fries\"\n")
}

func TestRunEndToEnd(t *testing.T) {
	store := &memStore{objects: map[string][]byte{}}
	seedRawTables(store)

	result := Run(context.Background(), testETLConfig(), store, testLogger())
	require.Equal(t, 200, result.StatusCode)
	assert.Equal(t, "Data processing complete. File saved to clean/joined.csv", result.Message)

	published, ok := store.objects["raw/clean/joined.csv"]
	require.True(t, ok)

	joined, err := dataset.ReadJoined(bytes.NewReader(published))
	require.NoError(t, err)
	// One output row per input order, matched or not.
	require.Len(t, joined, 5)

	first := joined[0]
	require.NotNil(t, first.Customer)
	assert.Equal(t, "Male", first.Customer.Gender)
	require.NotNil(t, first.Location)
	require.NotNil(t, first.Vendor)
	assert.Equal(t, "Restaurants", first.Vendor.Category)
	assert.Equal(t, 1, first.Order.Promo)

	// Unknown vendor and unknown customer stay unmatched.
	assert.Nil(t, joined[3].Vendor)
	assert.Nil(t, joined[4].Customer)
}

func TestRunFailsOnMissingTable(t *testing.T) {
	store := &memStore{objects: map[string][]byte{}}
	seedRawTables(store)
	delete(store.objects, "raw/vendors.csv")

	result := Run(context.Background(), testETLConfig(), store, testLogger())
	assert.Equal(t, 500, result.StatusCode)
	assert.Contains(t, result.Message, "vendors")
	_, published := store.objects["raw/clean/joined.csv"]
	assert.False(t, published)
}

func TestRunFailsOnMissingColumn(t *testing.T) {
	store := &memStore{objects: map[string][]byte{}}
	seedRawTables(store)
	store.objects["raw/customers.csv"] = []byte("akeed_customer_id,gender\nc1,male\n")

	result := Run(context.Background(), testETLConfig(), store, testLogger())
	assert.Equal(t, 500, result.StatusCode)
	assert.Contains(t, result.Message, "clean customers")
}

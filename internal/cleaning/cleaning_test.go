package cleaning

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/akeed/marketplace-analytics/internal/dataset"
)

func mustTable(t *testing.T, csv string) *dataset.Table {
	t.Helper()
	table, err := dataset.ReadTable(strings.NewReader(csv))
	require.NoError(t, err)
	return table
}

func TestCustomersDeduplicatesToMostRecent(t *testing.T) {
	table := mustTable(t, strings.Join([]string{
		"akeed_customer_id,gender,dob,created_at,updated_at",
		"c1,male,1990,2018-01-01 00:00:00,2018-01-01 00:00:00",
		"c1,female,1991,2018-01-01 00:00:00,2019-06-01 00:00:00",
		"c2,MALE,1980,2018-01-01 00:00:00,2018-01-01 00:00:00",
	}, "\n"))

	customers, err := Customers(table)
	require.NoError(t, err)
	require.Len(t, customers, 2)

	// The later-updated c1 row wins.
	assert.Equal(t, "c1", customers[0].ID)
	assert.Equal(t, "Female", customers[0].Gender)
	require.NotNil(t, customers[0].BirthYear)
	assert.Equal(t, 1991.0, *customers[0].BirthYear)

	assert.Equal(t, "c2", customers[1].ID)
	assert.Equal(t, "Male", customers[1].Gender)
}

func TestCustomersTieBreakKeepsFirstOccurrence(t *testing.T) {
	table := mustTable(t, strings.Join([]string{
		"akeed_customer_id,gender,dob,created_at,updated_at",
		"c1,male,1990,2018-01-01,2019-06-01 00:00:00",
		"c1,female,1991,2018-01-01,2019-06-01 00:00:00",
	}, "\n"))

	customers, err := Customers(table)
	require.NoError(t, err)
	require.Len(t, customers, 1)
	assert.Equal(t, "Male", customers[0].Gender)
}

func TestCustomersGenderNormalization(t *testing.T) {
	table := mustTable(t, strings.Join([]string{
		"akeed_customer_id,gender,dob,created_at,updated_at",
		"c1,  male ,1990,2018-01-01,2018-01-01",
		"c2,FEMALE,1985,2018-01-01,2018-01-01",
		"c3,other,1970,2018-01-01,2018-01-01",
		"c4,,1960,2018-01-01,2018-01-01",
	}, "\n"))

	customers, err := Customers(table)
	require.NoError(t, err)
	require.Len(t, customers, 4)

	genders := map[string]string{}
	for _, c := range customers {
		genders[c.ID] = c.Gender
	}
	assert.Equal(t, "Male", genders["c1"])
	assert.Equal(t, "Female", genders["c2"])
	assert.Equal(t, "Unknown", genders["c3"])
	assert.Equal(t, "Unknown", genders["c4"])

	for _, c := range customers {
		assert.Contains(t, []string{"Male", "Female", "Unknown"}, c.Gender)
	}
}

func TestCustomersBirthYearRange(t *testing.T) {
	table := mustTable(t, strings.Join([]string{
		"akeed_customer_id,gender,dob,created_at,updated_at",
		"c1,male,1944,2018-01-01,2018-01-01",
		"c2,male,2021,2018-01-01,2018-01-01",
		"c3,male,abc,2018-01-01,2018-01-01",
		"c4,male,1990,2018-01-01,2018-01-01",
	}, "\n"))

	customers, err := Customers(table)
	require.NoError(t, err)

	byID := map[string]dataset.Customer{}
	for _, c := range customers {
		byID[c.ID] = c
	}
	assert.Nil(t, byID["c1"].BirthYear)
	assert.Nil(t, byID["c2"].BirthYear)
	assert.Nil(t, byID["c3"].BirthYear)
	require.NotNil(t, byID["c4"].BirthYear)
	assert.Equal(t, 1990.0, *byID["c4"].BirthYear)
}

func TestCustomersMissingColumnIsFatal(t *testing.T) {
	table := mustTable(t, "akeed_customer_id,gender\nc1,male\n")

	_, err := Customers(table)
	require.Error(t, err)

	var missing dataset.ErrMissingColumn
	assert.True(t, errors.As(err, &missing))
}

func TestLocationsDropsRowsWithoutCoordinates(t *testing.T) {
	table := mustTable(t, strings.Join([]string{
		"customer_id,location_number,location_type,latitude,longitude",
		"c1,0,Home,1.5,2.5",
		"c1,1,,3.5,4.5",
		"c2,0,Work,,2.0",
		"c3,0,Work,1.0,",
	}, "\n"))

	locations, err := Locations(table)
	require.NoError(t, err)
	require.Len(t, locations, 2)

	assert.Equal(t, "Home", locations[0].Type)
	assert.Equal(t, "Other", locations[1].Type)
	assert.Equal(t, 1, locations[1].Number)
}

func TestOrdersPromoFlagAndDefaults(t *testing.T) {
	table := mustTable(t, strings.Join([]string{
		"akeed_order_id,customer_id,vendor_id,LOCATION_NUMBER,created_at,promo_code,promo_code_discount_percentage,item_count,is_favorite,vendor_rating,grand_total,delivery_time",
		"o1,c1,v1,0,2019-05-01 10:00:00,SAVE10,10,2,Yes,4.5,20.5,30m",
		"o2,c1,v1,0,2019-05-02 10:00:00,,,4,,,10.0,",
		"o3,c2,v2,1,garbage,,,,,,5.0,",
	}, "\n"))

	orders, err := Orders(table)
	require.NoError(t, err)
	require.Len(t, orders, 3)

	// Promo flag is 1 iff the source promo code was present.
	assert.Equal(t, 1, orders[0].Promo)
	assert.Equal(t, 0, orders[1].Promo)
	for _, o := range orders {
		assert.Contains(t, []int{0, 1}, o.Promo)
	}

	assert.Equal(t, 10.0, orders[0].PromoDiscountPct)
	assert.Equal(t, 0.0, orders[1].PromoDiscountPct)
	assert.Equal(t, "Yes", orders[0].IsFavorite)
	assert.Equal(t, "No", orders[1].IsFavorite)
	assert.Equal(t, 0.0, orders[1].VendorRating)

	// Unparseable created_at stays null rather than failing the stage.
	require.NotNil(t, orders[0].CreatedAt)
	assert.Nil(t, orders[2].CreatedAt)
}

func TestOrdersItemCountImputedWithCustomerMedian(t *testing.T) {
	table := mustTable(t, strings.Join([]string{
		"akeed_order_id,customer_id,vendor_id,LOCATION_NUMBER,created_at,promo_code,promo_code_discount_percentage,item_count,is_favorite,vendor_rating,grand_total",
		"o1,c1,v1,0,2019-05-01,,,2,,,10",
		"o2,c1,v1,0,2019-05-02,,,6,,,10",
		"o3,c1,v1,0,2019-05-03,,,,,,10",
		"o4,c2,v1,0,2019-05-01,,,,,,10",
	}, "\n"))

	orders, err := Orders(table)
	require.NoError(t, err)

	// c1's missing count takes the median of its valid counts (2, 6) = 4.
	require.NotNil(t, orders[2].ItemCount)
	assert.Equal(t, 4.0, *orders[2].ItemCount)

	// c2 has no valid counts at all; the null survives.
	assert.Nil(t, orders[3].ItemCount)
}

func TestVendorsProjection(t *testing.T) {
	table := mustTable(t, strings.Join([]string{
		"id,latitude,longitude,vendor_category_en,delivery_charge,vendor_tag_name,authentication_id,commission",
		"v1,1.25,2.5,Restaurants,0.7,\"Burgers,Fries\",x,12",
	}, "\n"))

	vendors, err := Vendors(table)
	require.NoError(t, err)
	require.Len(t, vendors, 1)

	v := vendors[0]
	assert.Equal(t, "v1", v.ID)
	assert.Equal(t, 1.25, v.Latitude)
	assert.Equal(t, "Restaurants", v.Category)
	assert.Equal(t, 0.7, v.DeliveryCharge)
	assert.Equal(t, "Burgers,Fries", v.Tags)
}

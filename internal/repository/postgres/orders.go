// Package postgres acquires the cleaned joined order table from the
// relational store the ETL stage populated.
package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/akeed/marketplace-analytics/internal/dataset"
)

// OrderJoinRepo reads order_clean_join_all into typed joined rows.
type OrderJoinRepo struct{ db *sql.DB }

// NewOrderJoinRepo creates a Postgres-backed joined-order repository.
func NewOrderJoinRepo(db *sql.DB) *OrderJoinRepo { return &OrderJoinRepo{db: db} }

// FetchAll loads every row of the joined table. Column order follows the
// versioned dataset.JoinedColumns schema; null columns map to the same
// unmatched-join sentinels the CSV codec uses.
func (r *OrderJoinRepo) FetchAll(ctx context.Context) ([]dataset.JoinedOrder, error) {
	query := fmt.Sprintf("SELECT %s FROM order_clean_join_all", strings.Join(dataset.JoinedColumns, ", "))
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query order_clean_join_all: %w", err)
	}
	defer rows.Close()

	var out []dataset.JoinedOrder
	for rows.Next() {
		var orderID, customerID, vendorID string
		var locationNumber, promo sql.NullInt64
		var createdAt sql.NullTime
		var isFavorite, gender, locationType, vendorCategory, vendorTags sql.NullString
		var promoDiscountPct, itemCount, vendorRating, grandTotal sql.NullFloat64
		var birthYear, latitude, longitude, deliveryCharge sql.NullFloat64
		var vendorLatitude, vendorLongitude sql.NullFloat64
		if err := rows.Scan(
			&orderID, &customerID, &vendorID, &locationNumber, &createdAt,
			&promo, &promoDiscountPct, &itemCount, &isFavorite, &vendorRating,
			&grandTotal, &gender, &birthYear, &locationType, &latitude,
			&longitude, &vendorLatitude, &vendorLongitude, &vendorCategory,
			&deliveryCharge, &vendorTags,
		); err != nil {
			return nil, fmt.Errorf("scan joined row: %w", err)
		}

		j := dataset.JoinedOrder{
			Order: dataset.Order{
				ID:               orderID,
				CustomerID:       customerID,
				VendorID:         vendorID,
				LocationNumber:   int(locationNumber.Int64),
				PromoDiscountPct: promoDiscountPct.Float64,
				IsFavorite:       isFavorite.String,
				VendorRating:     vendorRating.Float64,
				GrandTotal:       grandTotal.Float64,
			},
		}
		if promo.Valid && promo.Int64 != 0 {
			j.Order.Promo = 1
		}
		if createdAt.Valid {
			t := createdAt.Time.UTC()
			j.Order.CreatedAt = &t
		}
		if itemCount.Valid {
			v := itemCount.Float64
			j.Order.ItemCount = &v
		}
		if gender.Valid && gender.String != "" {
			j.Customer = &dataset.Customer{ID: customerID, Gender: gender.String}
			if birthYear.Valid {
				v := birthYear.Float64
				j.Customer.BirthYear = &v
			}
		}
		if locationType.Valid && locationType.String != "" {
			j.Location = &dataset.Location{
				CustomerID: customerID,
				Number:     int(locationNumber.Int64),
				Type:       locationType.String,
				Latitude:   latitude.Float64,
				Longitude:  longitude.Float64,
			}
		}
		if vendorLatitude.Valid {
			j.Vendor = &dataset.Vendor{
				ID:             vendorID,
				Latitude:       vendorLatitude.Float64,
				Longitude:      vendorLongitude.Float64,
				Category:       vendorCategory.String,
				DeliveryCharge: deliveryCharge.Float64,
				Tags:           vendorTags.String,
			}
		}
		out = append(out, j)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate joined rows: %w", err)
	}
	return out, nil
}

// Ping verifies connectivity before the pipeline starts consuming.
func (r *OrderJoinRepo) Ping(ctx context.Context) error {
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := r.db.PingContext(pingCtx); err != nil {
		return fmt.Errorf("ping database: %w", err)
	}
	return nil
}

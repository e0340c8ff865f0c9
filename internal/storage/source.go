package storage

import (
	"bytes"
	"context"
	"fmt"

	"github.com/akeed/marketplace-analytics/internal/dataset"
)

// CSVSource acquires the joined order table from the CSV the ETL stage
// published, as an alternative to the relational source.
type CSVSource struct {
	Store  ObjectStore
	Bucket string
	Key    string
}

// FetchAll downloads and decodes the joined table.
func (s CSVSource) FetchAll(ctx context.Context) ([]dataset.JoinedOrder, error) {
	data, err := s.Store.Get(ctx, s.Bucket, s.Key)
	if err != nil {
		return nil, err
	}
	rows, err := dataset.ReadJoined(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode joined table %s: %w", s.Key, err)
	}
	return rows, nil
}

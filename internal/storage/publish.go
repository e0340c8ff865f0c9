package storage

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/akeed/marketplace-analytics/internal/config"
	"github.com/akeed/marketplace-analytics/internal/dataset"
)

const csvContentType = "text/csv"

// FetchTable downloads and parses one raw delimited table.
func FetchTable(ctx context.Context, store ObjectStore, bucket, key string) (*dataset.Table, error) {
	data, err := store.Get(ctx, bucket, key)
	if err != nil {
		return nil, err
	}
	t, err := dataset.ReadTable(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", key, err)
	}
	return t, nil
}

// PublishJoined uploads the cleaned joined table to its fixed output key.
func PublishJoined(ctx context.Context, store ObjectStore, bucket, key string, rows []dataset.JoinedOrder) error {
	var buf bytes.Buffer
	if err := dataset.WriteJoined(&buf, rows); err != nil {
		return fmt.Errorf("encode joined table: %w", err)
	}
	return store.Put(ctx, bucket, key, buf.Bytes(), csvContentType)
}

// PublishClustering uploads the merged segmentation table under the
// clustering prefix, using the configured filename or a timestamped default.
// Returns the object URI.
func PublishClustering(ctx context.Context, store ObjectStore, cfg config.UploadConfig, rows []dataset.CustomerSegments, now time.Time) (string, error) {
	name := cfg.Filename
	if name == "" {
		name = dataset.TimestampedName(now)
	}
	key := strings.TrimRight(cfg.Prefix, "/") + "/" + name

	var buf bytes.Buffer
	if err := dataset.WriteSegments(&buf, rows); err != nil {
		return "", fmt.Errorf("encode segmentation table: %w", err)
	}
	if err := store.Put(ctx, cfg.Bucket, key, buf.Bytes(), csvContentType); err != nil {
		return "", err
	}
	return fmt.Sprintf("s3://%s/%s", cfg.Bucket, key), nil
}

package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"time"

	_ "github.com/lib/pq"

	"github.com/akeed/marketplace-analytics/internal/config"
	"github.com/akeed/marketplace-analytics/internal/pipeline"
	"github.com/akeed/marketplace-analytics/internal/pkg/logger"
	"github.com/akeed/marketplace-analytics/internal/repository/postgres"
	"github.com/akeed/marketplace-analytics/internal/storage"
)

func main() {
	configPath := flag.String("config", "config/config.yaml", "Path to configuration file")
	sourceName := flag.String("source", "postgres", "Joined-table source: postgres or s3")
	flag.Parse()

	cfg, err := config.LoadFromEnv(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	log := logger.New("pipeline", logger.ParseLevel(cfg.LogLevel))
	ctx := context.Background()

	store, err := storage.NewS3Store(ctx, cfg.Clustering.Region)
	if err != nil {
		log.Error("failed to initialize object store", "error", err)
		os.Exit(1)
	}

	var source pipeline.Source
	switch *sourceName {
	case "postgres":
		db, err := sql.Open("postgres", cfg.Database.URL())
		if err != nil {
			log.Error("failed to open database", "error", err)
			os.Exit(1)
		}
		defer db.Close()
		db.SetMaxOpenConns(4)
		db.SetConnMaxLifetime(5 * time.Minute)

		repo := postgres.NewOrderJoinRepo(db)
		if err := repo.Ping(ctx); err != nil {
			log.Error("database unreachable", "error", err)
			os.Exit(1)
		}
		source = repo
	case "s3":
		source = storage.CSVSource{Store: store, Bucket: cfg.ETL.Bucket, Key: cfg.ETL.OutputKey}
	default:
		fmt.Fprintf(os.Stderr, "unknown source %q (want postgres or s3)\n", *sourceName)
		os.Exit(1)
	}

	result := pipeline.Run(ctx, cfg, source, store, log)

	out, _ := json.Marshal(result)
	fmt.Println(string(out))
	if result.StatusCode != 200 {
		os.Exit(1)
	}
}

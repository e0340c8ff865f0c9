package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"

	"github.com/akeed/marketplace-analytics/internal/config"
	"github.com/akeed/marketplace-analytics/internal/etl"
	"github.com/akeed/marketplace-analytics/internal/pkg/logger"
	"github.com/akeed/marketplace-analytics/internal/storage"
)

func main() {
	configPath := flag.String("config", "config/config.yaml", "Path to configuration file")
	flag.Parse()

	cfg, err := config.LoadFromEnv(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	log := logger.New("etl", logger.ParseLevel(cfg.LogLevel))
	ctx := context.Background()

	store, err := storage.NewS3Store(ctx, cfg.ETL.Region)
	if err != nil {
		log.Error("failed to initialize object store", "error", err)
		os.Exit(1)
	}

	result := etl.Run(ctx, cfg.ETL, store, log)

	out, _ := json.Marshal(result)
	fmt.Println(string(out))
	if result.StatusCode != 200 {
		os.Exit(1)
	}
}

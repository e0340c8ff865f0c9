package config

import (
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the batch analytics pipeline.
type Config struct {
	LogLevel    string            `yaml:"log_level"`
	Database    DatabaseConfig    `yaml:"database"`
	ETL         ETLConfig         `yaml:"etl"`
	Profile     UploadConfig      `yaml:"aws_profile_stats"`
	Clustering  UploadConfig      `yaml:"aws_clustering"`
	RFM         RFMConfig         `yaml:"rfm"`
	Food        FoodConfig        `yaml:"food"`
	Recommender RecommenderConfig `yaml:"recommender"`
}

// DatabaseConfig holds PostgreSQL connection parameters for the joined table.
type DatabaseConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Name     string `yaml:"name"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	SSLMode  string `yaml:"sslmode"`
}

// URL assembles a lib/pq connection string.
func (d DatabaseConfig) URL() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.Name, d.SSLMode)
}

// ETLConfig holds the object-store layout for the ingest stage: the four raw
// table keys and the output key for the cleaned joined table.
type ETLConfig struct {
	Bucket      string `yaml:"bucket"`
	Region      string `yaml:"region"`
	CustomerKey string `yaml:"customer_key"`
	LocationKey string `yaml:"location_key"`
	OrderKey    string `yaml:"order_key"`
	VendorKey   string `yaml:"vendor_key"`
	OutputKey   string `yaml:"output_key"`
}

// UploadConfig holds a per-stage S3 upload target with an enable flag.
// When Upload is false the stage must skip without any network call.
type UploadConfig struct {
	Upload   bool   `yaml:"upload"`
	Bucket   string `yaml:"bucket_name"`
	Prefix   string `yaml:"prefix"`
	Region   string `yaml:"region"`
	Filename string `yaml:"filename"` // optional; timestamped name when empty
}

// RFMConfig holds RFM segmentation parameters.
type RFMConfig struct {
	SnapshotDate   string         `yaml:"snapshot_date"`
	NClusters      int            `yaml:"n_clusters"`
	RandomState    int64          `yaml:"random_state"`
	ClusterMapping map[int]string `yaml:"cluster_mapping"`
}

// Snapshot parses the configured snapshot date (YYYY-MM-DD).
func (r RFMConfig) Snapshot() (time.Time, error) {
	t, err := time.Parse("2006-01-02", r.SnapshotDate)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse snapshot_date %q: %w", r.SnapshotDate, err)
	}
	return t, nil
}

// FoodConfig holds cuisine segmentation parameters.
type FoodConfig struct {
	Columns        []string            `yaml:"columns"`
	FoodMapping    map[string][]string `yaml:"food_mapping"`
	ClusterMapping map[int]string      `yaml:"cluster_mapping"`
	NumClusters    int                 `yaml:"num_clusters"`
	RandomState    int64               `yaml:"random_state"`
}

// RecommenderConfig holds the model menu, per-model hyperparameters and the
// upload target for serialized models.
type RecommenderConfig struct {
	Models []string               `yaml:"model_list"`
	Params map[string]ModelParams `yaml:"models"`
	AWS    UploadConfig           `yaml:"aws_rs"`
}

// ModelParams holds hyperparameters shared across the factorization and
// neighborhood model types; each model reads the subset it understands.
type ModelParams struct {
	NFactors   int        `yaml:"n_factors"`
	NEpochs    int        `yaml:"n_epochs"`
	LearnRate  float64    `yaml:"lr_all"`
	Reg        float64    `yaml:"reg_all"`
	RandomSeed int64      `yaml:"random_state"`
	SimOptions SimOptions `yaml:"sim_options"`
	K          int        `yaml:"k"`
}

// SimOptions configures neighborhood model similarity.
type SimOptions struct {
	Name      string `yaml:"name"` // "cosine" or "pearson"
	UserBased bool   `yaml:"user_based"`
}

// Load reads and validates configuration from a YAML file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config file: %w", err)
	}

	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.Database.Port == 0 {
		c.Database.Port = 5432
	}
	if c.Database.SSLMode == "" {
		c.Database.SSLMode = "require"
	}
	if c.ETL.Region == "" {
		c.ETL.Region = "us-east-1"
	}
	if c.Clustering.Region == "" {
		c.Clustering.Region = "us-east-1"
	}
	if c.Profile.Region == "" {
		c.Profile.Region = "us-east-1"
	}
	if c.Recommender.AWS.Region == "" {
		c.Recommender.AWS.Region = "us-east-1"
	}
	if len(c.Recommender.Models) == 0 {
		c.Recommender.Models = []string{"svd", "nmf", "svdpp", "item_knn"}
	}
}

// Validate fails fast on missing or inconsistent fields so a bad run dies at
// load time rather than mid-pipeline.
func (c *Config) Validate() error {
	if c.RFM.SnapshotDate != "" {
		if _, err := c.RFM.Snapshot(); err != nil {
			return err
		}
	}
	if c.RFM.NClusters <= 0 {
		return fmt.Errorf("rfm.n_clusters must be positive, got %d", c.RFM.NClusters)
	}
	if c.Food.NumClusters <= 0 {
		return fmt.Errorf("food.num_clusters must be positive, got %d", c.Food.NumClusters)
	}
	if len(c.Food.FoodMapping) == 0 {
		return fmt.Errorf("food.food_mapping must not be empty")
	}
	for _, m := range c.Recommender.Models {
		switch m {
		case "svd", "nmf", "svdpp", "user_knn", "item_knn":
		default:
			return fmt.Errorf("unknown model type in model_list: %q", m)
		}
	}
	if c.Clustering.Upload && c.Clustering.Bucket == "" {
		return fmt.Errorf("aws_clustering.bucket_name required when upload is enabled")
	}
	if c.Profile.Upload && c.Profile.Bucket == "" {
		return fmt.Errorf("aws_profile_stats.bucket_name required when upload is enabled")
	}
	if c.Recommender.AWS.Upload && c.Recommender.AWS.Bucket == "" {
		return fmt.Errorf("aws_rs.bucket_name required when upload is enabled")
	}
	return nil
}

// MappingGaps returns cluster ids in [0, k) without a configured label. The
// pipeline warn-logs these at startup: an unmapped cluster yields rows with an
// empty segment label downstream.
func MappingGaps(mapping map[int]string, k int) []int {
	var gaps []int
	for i := 0; i < k; i++ {
		if _, ok := mapping[i]; !ok {
			gaps = append(gaps, i)
		}
	}
	return gaps
}

// LoadFromEnv loads configuration with environment variable overrides.
// It automatically loads a .env file (if present) before reading env vars,
// so credentials can live in .env locally and in real env vars in the job host.
func LoadFromEnv(path string) (*Config, error) {
	// Load .env file if it exists (no error if missing)
	_ = godotenv.Load()

	cfg, err := Load(path)
	if err != nil {
		return nil, err
	}

	if host := os.Getenv("DB_HOST"); host != "" {
		cfg.Database.Host = host
	}
	if name := os.Getenv("DB_NAME"); name != "" {
		cfg.Database.Name = name
	}
	if user := os.Getenv("DB_USER"); user != "" {
		cfg.Database.User = user
	}
	if pass := os.Getenv("DB_PASSWORD"); pass != "" {
		cfg.Database.Password = pass
	}
	if region := os.Getenv("AWS_REGION"); region != "" {
		cfg.ETL.Region = region
		cfg.Profile.Region = region
		cfg.Clustering.Region = region
		cfg.Recommender.AWS.Region = region
	}
	if bucket := os.Getenv("ETL_BUCKET"); bucket != "" {
		cfg.ETL.Bucket = bucket
	}

	return cfg, nil
}

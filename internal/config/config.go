package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

var ErrMissingRequired = errors.New("missing required configuration")

type Config struct {
	DBHost string `envconfig:"DB_HOST" default:"postgres"`
	DBPort int    `envconfig:"DB_PORT" default:"5432"`
	DBUser string `envconfig:"DB_USER" default:"milvussearch"`
	DBPass string `envconfig:"DB_PASS" default:"password"`
	DBName string `envconfig:"DB_NAME" default:"milvussearch"`

	MilvusAddr string `envconfig:"MILVUS_ADDR" default:"localhost:19530"`
	MilvusUser string `envconfig:"MILVUS_USER"`
	MilvusPass string `envconfig:"MILVUS_PASS"`

	CollectionName string `envconfig:"MILVUS_COLLECTION" default:"documents"`
	CollectionDim  int    `envconfig:"MILVUS_DIM" default:"1536"`
	IndexNList     int    `envconfig:"MILVUS_INDEX_NLIST" default:"100"`
	SearchNProbe   int    `envconfig:"MILVUS_SEARCH_NPROBE" default:"10"`

	GeminiAPIKey   string `envconfig:"GEMINI_API_KEY"`
	EmbeddingModel string `envconfig:"EMBEDDING_MODEL" default:"gemini-embedding-001"`
	ChatModel      string `envconfig:"CHAT_MODEL" default:"gemini-1.5-flash"`

	NSQLookupd string `envconfig:"NSQ_LOOKUPD" default:"nsqlookupd:4161"`
	NSQDHost   string `envconfig:"NSQD_HOST" default:"nsqd:4150"`
	NSQDHTTP   string `envconfig:"NSQD_HTTP" default:"nsqd:4151"`

	EnableAPI          bool   `envconfig:"ENABLE_API" default:"true"`
	EnableIngestWorker bool   `envconfig:"ENABLE_INGEST_WORKER" default:"true"`
	MigrationPath      string `envconfig:"MIGRATION_PATH" default:"file://migrations"`

	// Segmentation
	SegmentStrategy  string  `envconfig:"SEGMENT_STRATEGY" default:"page"`
	MinSectionLength int     `envconfig:"MIN_SECTION_LENGTH" default:"50"`
	HeadingFontSize  float64 `envconfig:"HEADING_FONT_SIZE" default:"14"`

	// Retrieval
	DefaultTopK       int `envconfig:"DEFAULT_TOP_K" default:"3"`
	SessionTTLMinutes int `envconfig:"SESSION_TTL_MINUTES" default:"30"`
	SessionMaxEntries int `envconfig:"SESSION_MAX_ENTRIES" default:"1024"`

	// Server
	ServerPort      int    `envconfig:"SERVER_PORT" default:"8080"`
	QueryLogPath    string `envconfig:"QUERY_LOG_PATH" default:"data/logs/query.log"`
	MaxUploadSizeMB int64  `envconfig:"MAX_UPLOAD_SIZE_MB" default:"50"`
	UploadDir       string `envconfig:"UPLOAD_DIR" default:"./uploads"`

	// Resilience
	BootstrapRetryAttempts     int `envconfig:"BOOTSTRAP_RETRY_ATTEMPTS" default:"10"`
	BootstrapRetryDelaySeconds int `envconfig:"BOOTSTRAP_RETRY_DELAY_SECONDS" default:"2"`
}

func Load() (*Config, error) {
	// Try loading .env from current dir and repo root.
	// Ignore errors, as env vars might be set in the shell.
	_ = godotenv.Load(".env")

	cwd, _ := os.Getwd()
	rootEnv := filepath.Join(cwd, "../.env")
	_ = godotenv.Load(rootEnv)

	var cfg Config
	err := envconfig.Process("", &cfg)
	if err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) Validate() error {
	if c.DBHost == "" {
		return fmt.Errorf("%w: DB_HOST", ErrMissingRequired)
	}
	if c.DBUser == "" {
		return fmt.Errorf("%w: DB_USER", ErrMissingRequired)
	}
	if c.DBName == "" {
		return fmt.Errorf("%w: DB_NAME", ErrMissingRequired)
	}
	if c.MilvusAddr == "" {
		return fmt.Errorf("%w: MILVUS_ADDR", ErrMissingRequired)
	}
	if c.CollectionDim <= 0 {
		return fmt.Errorf("MILVUS_DIM must be positive, got %d", c.CollectionDim)
	}
	if c.SegmentStrategy != "page" && c.SegmentStrategy != "section" {
		return fmt.Errorf("invalid SEGMENT_STRATEGY %q: must be \"page\" or \"section\"", c.SegmentStrategy)
	}
	return nil
}

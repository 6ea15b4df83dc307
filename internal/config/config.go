package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

var ErrMissingRequired = errors.New("missing required configuration")

// Ingest modes. One mode is picked per deployment; pipeline semantics and
// the rollback invariant are identical in both.
const (
	IngestModeSync   = "sync"
	IngestModeQueued = "queued"
)

type Config struct {
	DBHost string `envconfig:"DB_HOST" default:"postgres"`
	DBPort int    `envconfig:"DB_PORT" default:"5432"`
	DBUser string `envconfig:"DB_USER" default:"ragchat"`
	DBPass string `envconfig:"DB_PASS" default:"password"`
	DBName string `envconfig:"DB_NAME" default:"ragchat"`

	GeminiAPIKey string `envconfig:"GEMINI_API_KEY"`

	// Chunking
	ChunkSize    int `envconfig:"CHUNK_SIZE" default:"800"`
	ChunkOverlap int `envconfig:"CHUNK_OVERLAP" default:"150"`

	// Embedding batch behaviour
	EmbedBatchSize     int           `envconfig:"EMBED_BATCH_SIZE" default:"32"`
	EmbedBatchDelay    time.Duration `envconfig:"EMBED_BATCH_DELAY" default:"200ms"`
	EmbedMaxRetries    int           `envconfig:"EMBED_MAX_RETRIES" default:"3"`
	EmbedMinInterval   time.Duration `envconfig:"EMBED_MIN_INTERVAL" default:"100ms"`
	EmbedFallbackDelay time.Duration `envconfig:"EMBED_FALLBACK_DELAY" default:"1s"`

	// Ingestion
	IngestMode      string `envconfig:"INGEST_MODE" default:"sync"`
	MaxUploadSizeMB int64  `envconfig:"MAX_UPLOAD_SIZE_MB" default:"10"`

	// Retrieval
	RetrievalTopK    int `envconfig:"RETRIEVAL_TOP_K" default:"5"`
	RetrievalMaxTopK int `envconfig:"RETRIEVAL_MAX_TOP_K" default:"20"`

	// NSQ (queued ingest mode only)
	NSQLookupd string `envconfig:"NSQ_LOOKUPD" default:"nsqlookupd:4161"`
	NSQDHost   string `envconfig:"NSQD_HOST" default:"nsqd:4150"`
	NSQDHTTP   string `envconfig:"NSQD_HTTP" default:"nsqd:4151"`

	// Server
	ServerPort    int    `envconfig:"SERVER_PORT" default:"8081"`
	QueryLogPath  string `envconfig:"QUERY_LOG_PATH" default:"data/logs/query.log"`
	MigrationPath string `envconfig:"MIGRATION_PATH" default:"file://migrations"`

	// Resilience
	BootstrapRetryAttempts     int `envconfig:"BOOTSTRAP_RETRY_ATTEMPTS" default:"10"`
	BootstrapRetryDelaySeconds int `envconfig:"BOOTSTRAP_RETRY_DELAY_SECONDS" default:"2"`
}

func Load() (*Config, error) {
	// Env vars may be set in the shell instead; a missing .env is fine.
	_ = godotenv.Load(".env")

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
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
	if c.GeminiAPIKey == "" {
		return fmt.Errorf("%w: GEMINI_API_KEY", ErrMissingRequired)
	}
	if c.ChunkOverlap >= c.ChunkSize {
		return fmt.Errorf("CHUNK_OVERLAP (%d) must be smaller than CHUNK_SIZE (%d)", c.ChunkOverlap, c.ChunkSize)
	}
	if c.IngestMode != IngestModeSync && c.IngestMode != IngestModeQueued {
		return fmt.Errorf("INGEST_MODE must be %q or %q, got %q", IngestModeSync, IngestModeQueued, c.IngestMode)
	}
	return nil
}

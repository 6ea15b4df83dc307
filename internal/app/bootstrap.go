package app

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	_ "github.com/lib/pq"
	"github.com/nsqio/go-nsq"

	"ragchat/internal/adapter/gemini"
	"ragchat/internal/config"
)

type Dependencies struct {
	DB          *sql.DB
	Gemini      *gemini.Client
	NSQProducer *nsq.Producer
}

func Bootstrap(ctx context.Context, cfg *config.Config) (*Dependencies, error) {
	// Database
	dsn := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=disable",
		cfg.DBHost, cfg.DBPort, cfg.DBUser, cfg.DBPass, cfg.DBName)

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open db: %w", err)
	}

	// Retry loop
	retryDelay := time.Duration(cfg.BootstrapRetryDelaySeconds) * time.Second
	for i := 0; i < cfg.BootstrapRetryAttempts; i++ {
		if err := db.PingContext(ctx); err == nil {
			break
		}
		slog.Warn("failed to ping db, retrying...", "attempt", i+1)
		time.Sleep(retryDelay)
	}
	if err := db.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping db: %w", err)
	}

	// Migrations
	driver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		return nil, fmt.Errorf("migration driver error: %w", err)
	}
	m, err := migrate.NewWithDatabaseInstance(cfg.MigrationPath, "postgres", driver)
	if err != nil {
		return nil, fmt.Errorf("migration instance error: %w", err)
	}
	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		return nil, fmt.Errorf("migration up error: %w", err)
	}

	// Gemini
	ai, err := gemini.New(ctx, cfg.GeminiAPIKey)
	if err != nil {
		return nil, fmt.Errorf("gemini client error: %w", err)
	}

	deps := &Dependencies{DB: db, Gemini: ai}

	// NSQ is only needed when ingestion runs through the queue.
	if cfg.IngestMode == config.IngestModeQueued {
		producer, err := nsq.NewProducer(cfg.NSQDHost, nsq.NewConfig())
		if err != nil {
			return nil, fmt.Errorf("nsq producer error: %w", err)
		}
		createTopics(cfg.NSQDHTTP)
		deps.NSQProducer = producer
	}

	return deps, nil
}

// createTopics pre-creates NSQ topics over the nsqd HTTP API. NSQ creates
// topics lazily on publish, but consumers querying lookupd fail until the
// topic exists.
func createTopics(nsqdHTTP string) {
	create := func(topic string) {
		url := fmt.Sprintf("http://%s/topic/create?topic=%s", nsqdHTTP, topic)
		resp, err := http.Post(url, "application/json", nil) // #nosec G107 -- URL is built from internal NSQ config, not user input
		if err != nil {
			slog.Warn("failed to create NSQ topic", "topic", topic, "error", err)
			return
		}
		if closeErr := resp.Body.Close(); closeErr != nil {
			slog.Warn("failed to close NSQ topic creation response body", "error", closeErr)
		}
	}

	go func() {
		time.Sleep(2 * time.Second)
		create(config.TopicIngest)
	}()
}

// StartIngestConsumer subscribes the consumer to the ingestion topic.
// Queued mode only.
func StartIngestConsumer(cfg *config.Config, a *App) (*nsq.Consumer, error) {
	consumer, err := nsq.NewConsumer(config.TopicIngest, "backend", nsq.NewConfig())
	if err != nil {
		return nil, fmt.Errorf("nsq consumer error: %w", err)
	}
	consumer.AddHandler(nsq.HandlerFunc(func(m *nsq.Message) error {
		return a.IngestConsumer.HandleMessage(m)
	}))
	if err := consumer.ConnectToNSQLookupd(cfg.NSQLookupd); err != nil {
		return nil, fmt.Errorf("nsq lookupd connect error: %w", err)
	}
	return consumer, nil
}

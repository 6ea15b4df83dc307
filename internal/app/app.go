package app

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"net/http"
	"os"

	"ragchat/features/chat"
	"ragchat/features/document"
	"ragchat/features/job"
	"ragchat/features/stats"
	"ragchat/internal/adapter/pgvector"
	"ragchat/internal/config"
	"ragchat/internal/embedding"
	"ragchat/internal/middleware"
	"ragchat/internal/retrieval"
	"ragchat/internal/worker"
)

// Database is satisfied by *sql.DB; keeping it an interface lets tests
// construct an App around sqlmock.
type Database interface {
	PingContext(ctx context.Context) error
}

// TaskPublisher hands ingestion work to the queue. Unused in sync mode.
type TaskPublisher interface {
	Publish(topic string, body []byte) error
}

// ModelProvider is the single upstream model surface the app needs:
// embeddings for ingestion and retrieval, generation for chat.
type ModelProvider interface {
	Embed(ctx context.Context, texts []string, mode embedding.Mode) ([][]float32, error)
	Generate(ctx context.Context, prompt string) (string, error)
	GenerateStream(ctx context.Context, prompt string) (<-chan string, error)
}

type App struct {
	Handler         http.Handler
	DocumentService *document.Service
	IngestConsumer  *worker.IngestConsumer

	port int
}

func New(
	cfg *config.Config,
	db Database,
	provider ModelProvider,
	taskPub TaskPublisher,
) (*App, error) {
	// Cast db to *sql.DB for repositories that require it.
	sqlDB := db.(*sql.DB)

	chunkStore := pgvector.NewStore(sqlDB)

	embedClient := embedding.NewClient(
		provider,
		embedding.NewRateLimiter(cfg.EmbedMinInterval),
		embedding.Options{
			BatchSize:     cfg.EmbedBatchSize,
			BatchDelay:    cfg.EmbedBatchDelay,
			MaxRetries:    cfg.EmbedMaxRetries,
			FallbackDelay: cfg.EmbedFallbackDelay,
		},
	)

	// Feature: Document
	documentRepo := document.NewPostgresRepo(sqlDB)
	documentService := document.NewService(documentRepo, chunkStore, embedClient, taskPub, cfg)
	documentHandler := document.NewHandler(documentService, cfg.MaxUploadSizeMB)

	// Feature: Job
	jobRepo := job.NewPostgresRepo(sqlDB)
	jobService := job.NewService(jobRepo, documentService)
	jobHandler := job.NewHandler(jobService)

	// Feature: Stats
	statsHandler := stats.NewHandler(documentRepo, jobRepo, chunkStore)

	// Feature: Chat
	queryLogger, err := retrieval.NewFileQueryLogger(cfg.QueryLogPath)
	if err != nil {
		slog.Warn("failed to create query logger, falling back to stdout", "error", err)
		queryLogger = retrieval.NewQueryLogger(os.Stdout)
	}

	retrievalService := retrieval.NewService(embedClient, chunkStore, queryLogger).
		WithTopK(cfg.RetrievalTopK, cfg.RetrievalMaxTopK)
	chatService := chat.NewService(retrievalService, provider)
	chatHandler := chat.NewHandler(chatService)

	// Middleware: CORS
	enableCORS := func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Access-Control-Allow-Origin", "*")
			w.Header().Set("Access-Control-Allow-Methods", "POST, GET, OPTIONS, PUT, DELETE")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

			if r.Method == "OPTIONS" {
				w.WriteHeader(http.StatusOK)
				return
			}
			next(w, r)
		}
	}

	// Routes
	mux := http.NewServeMux()

	mux.Handle("POST /documents/upload", middleware.CorrelationID(enableCORS(documentHandler.Upload)))
	mux.Handle("GET /documents", middleware.CorrelationID(enableCORS(documentHandler.List)))
	mux.Handle("GET /documents/{id}", middleware.CorrelationID(enableCORS(documentHandler.Get)))
	mux.Handle("DELETE /documents/{id}", middleware.CorrelationID(enableCORS(documentHandler.Delete)))

	mux.Handle("POST /chat", middleware.CorrelationID(enableCORS(chatHandler.Chat)))

	mux.Handle("GET /jobs/failed", middleware.CorrelationID(enableCORS(jobHandler.List)))
	mux.Handle("POST /jobs/{id}/retry", middleware.CorrelationID(enableCORS(jobHandler.Retry)))

	mux.Handle("GET /stats", middleware.CorrelationID(enableCORS(statsHandler.GetStats)))

	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ok"}`))
	})

	ingestConsumer := worker.NewIngestConsumer(documentRepo, documentService, jobRepo)

	return &App{
		Handler:         mux,
		DocumentService: documentService,
		IngestConsumer:  ingestConsumer,
		port:            cfg.ServerPort,
	}, nil
}

func (a *App) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", a.port),
		Handler: a.Handler,
	}

	go func() {
		<-ctx.Done()
		slog.Info("shutting down server...")
		if err := srv.Shutdown(context.Background()); err != nil {
			slog.Error("server shutdown failed", "error", err)
		}
	}()

	slog.Info("server starting", "port", a.port)
	if err := srv.ListenAndServe(); err != http.ErrServerClosed {
		return err
	}
	return nil
}

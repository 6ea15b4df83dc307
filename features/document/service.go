package document

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"ragchat/internal/adapter/extract"
	"ragchat/internal/adapter/pgvector"
	"ragchat/internal/config"
	"ragchat/internal/middleware"
	"ragchat/internal/text"
	worker "ragchat/internal/worker/events"
)

// ChunkStore is the chunk persistence capability the orchestrator needs.
type ChunkStore interface {
	PutBatch(ctx context.Context, documentID int64, records []pgvector.Record) error
	DeleteByDocument(ctx context.Context, documentID int64) (int64, error)
	CountByDocument(ctx context.Context, documentID int64) (int, error)
}

// Embedder turns chunk texts into vectors, order-preserving.
type Embedder interface {
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
}

// TaskPublisher hands ingestion work to the queue in queued mode.
type TaskPublisher interface {
	Publish(topic string, body []byte) error
}

// Service drives a document through the ingestion state machine:
// extraction, hash check, document persistence, chunking, embedding and
// chunk persistence. Any failure after the document row is written rolls
// the row back, so a document is never visible with zero or partial
// chunks.
type Service struct {
	repo         Repository
	chunkStore   ChunkStore
	embedder     Embedder
	pub          TaskPublisher
	ingestMode   string
	chunkSize    int
	chunkOverlap int
}

func NewService(repo Repository, chunkStore ChunkStore, embedder Embedder, pub TaskPublisher, cfg *config.Config) *Service {
	return &Service{
		repo:         repo,
		chunkStore:   chunkStore,
		embedder:     embedder,
		pub:          pub,
		ingestMode:   cfg.IngestMode,
		chunkSize:    cfg.ChunkSize,
		chunkOverlap: cfg.ChunkOverlap,
	}
}

// Ingest accepts an uploaded file and runs the pipeline. In sync mode the
// returned document has already reached completed status; in queued mode it
// is returned in processing status and a worker finishes the pipeline.
func (s *Service) Ingest(ctx context.Context, filename string, data []byte) (*Document, error) {
	raw, err := extract.Extract(data, filename)
	if err != nil {
		return nil, err
	}
	return s.ingestText(ctx, filename, raw)
}

// ResubmitText re-runs ingestion for previously extracted text. Used by the
// failed-job retry path, where the original document row was rolled back.
func (s *Service) ResubmitText(ctx context.Context, filename, content string) error {
	_, err := s.ingestText(ctx, filename, content)
	return err
}

func (s *Service) ingestText(ctx context.Context, filename, raw string) (*Document, error) {
	content := text.Normalize(raw)
	if content == "" {
		return nil, ErrEmptyContent
	}

	hash := fmt.Sprintf("%x", sha256.Sum256([]byte(content)))

	existing, err := s.repo.FindByHash(ctx, hash)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return nil, fmt.Errorf("check duplicate: %w", err)
	}
	if existing != nil {
		return nil, &DuplicateError{ExistingID: existing.ID}
	}

	doc := &Document{
		Filename: filename,
		Content:  content,
		FileHash: hash,
		Status:   StatusProcessing,
	}
	if err := s.repo.Create(ctx, doc); err != nil {
		return nil, fmt.Errorf("persist document: %w", err)
	}

	if s.ingestMode == config.IngestModeQueued {
		payload, _ := json.Marshal(worker.IngestTask{
			DocumentID:    doc.ID,
			CorrelationID: middleware.GetCorrelationID(ctx),
		})
		if err := s.pub.Publish(config.TopicIngest, payload); err != nil {
			// The job must not be silently dropped: undo the row so the
			// caller can safely retry the upload.
			s.rollback(ctx, doc.ID)
			return nil, fmt.Errorf("enqueue ingestion: %w", err)
		}
		slog.InfoContext(ctx, "document queued for ingestion", "document_id", doc.ID, "filename", filename)
		return doc, nil
	}

	if err := s.Process(ctx, doc); err != nil {
		return nil, err
	}
	return doc, nil
}

// Process drives a persisted document from Chunked through ChunksPersisted.
// On any failure the document row is rolled back and the error returned.
func (s *Service) Process(ctx context.Context, doc *Document) error {
	chunks, err := text.Chunk(doc.Content, s.chunkSize, s.chunkOverlap)
	if err != nil {
		s.rollback(ctx, doc.ID)
		return fmt.Errorf("chunk document %d: %w", doc.ID, err)
	}
	if len(chunks) == 0 {
		s.rollback(ctx, doc.ID)
		return fmt.Errorf("document %d: %w", doc.ID, ErrNoChunks)
	}

	vectors, err := s.embedder.EmbedBatch(ctx, chunks)
	if err != nil {
		s.rollback(ctx, doc.ID)
		return fmt.Errorf("embed document %d: %w", doc.ID, err)
	}

	records := make([]pgvector.Record, len(chunks))
	for i := range chunks {
		records[i] = pgvector.Record{Content: chunks[i], Embedding: vectors[i]}
	}
	if err := s.chunkStore.PutBatch(ctx, doc.ID, records); err != nil {
		s.rollback(ctx, doc.ID)
		return fmt.Errorf("persist chunks for document %d: %w", doc.ID, err)
	}

	if err := s.repo.UpdateStatus(ctx, doc.ID, StatusCompleted); err != nil {
		s.rollback(ctx, doc.ID)
		return fmt.Errorf("mark document %d completed: %w", doc.ID, err)
	}
	doc.Status = StatusCompleted

	slog.InfoContext(ctx, "document ingested", "document_id", doc.ID, "chunks", len(chunks))
	return nil
}

// rollback removes the document row (chunks cascade) after a pipeline
// failure. Best effort: a rollback failure is logged, not returned, so the
// original pipeline error stays visible to the caller.
func (s *Service) rollback(ctx context.Context, id int64) {
	if err := s.repo.Delete(ctx, id); err != nil && !errors.Is(err, ErrNotFound) {
		slog.ErrorContext(ctx, "failed to roll back document", "document_id", id, "error", err)
	}
}

// Get returns a document with its chunk count, the signal queued-mode
// callers poll for completion.
func (s *Service) Get(ctx context.Context, id int64) (*Detail, error) {
	doc, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	count, err := s.chunkStore.CountByDocument(ctx, id)
	if err != nil {
		// A zero count here would read as "still processing" to pollers.
		return nil, fmt.Errorf("count chunks: %w", err)
	}
	return &Detail{Document: *doc, ChunkCount: count}, nil
}

func (s *Service) List(ctx context.Context) ([]Document, error) {
	return s.repo.List(ctx)
}

// Delete removes a document and all of its chunks.
func (s *Service) Delete(ctx context.Context, id int64) error {
	removed, err := s.chunkStore.DeleteByDocument(ctx, id)
	if err != nil {
		return fmt.Errorf("delete chunks: %w", err)
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	slog.InfoContext(ctx, "document deleted", "document_id", id, "chunks_removed", removed)
	return nil
}

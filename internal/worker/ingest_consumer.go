package worker

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/nsqio/go-nsq"

	"ragchat/features/document"
	"ragchat/features/job"
	"ragchat/internal/middleware"
	"ragchat/internal/worker/events"
)

const processTimeout = 5 * time.Minute

// Processor finishes ingestion for a persisted document.
type Processor interface {
	Process(ctx context.Context, doc *document.Document) error
}

// DocumentFetcher loads the document a queued task refers to.
type DocumentFetcher interface {
	Get(ctx context.Context, id int64) (*document.Document, error)
}

// IngestConsumer handles queued ingestion tasks. A failed pipeline run rolls
// the document row back, so the consumer captures the extracted text in a
// failed job before acknowledging the message.
type IngestConsumer struct {
	fetcher   DocumentFetcher
	processor Processor
	jobRepo   job.Repository
}

func NewIngestConsumer(f DocumentFetcher, p Processor, j job.Repository) *IngestConsumer {
	return &IngestConsumer{
		fetcher:   f,
		processor: p,
		jobRepo:   j,
	}
}

func (h *IngestConsumer) HandleMessage(m *nsq.Message) error {
	if len(m.Body) == 0 {
		return nil
	}

	var task events.IngestTask
	if err := json.Unmarshal(m.Body, &task); err != nil {
		// Poison Pill: Invalid JSON, don't retry
		slog.Error("poison pill: invalid json", "error", err)
		return nil
	}

	ctx := context.Background()
	if task.CorrelationID != "" {
		ctx = middleware.WithCorrelationID(ctx, task.CorrelationID)
	}

	if task.DocumentID == 0 {
		slog.ErrorContext(ctx, "missing document id, dropping")
		return nil
	}

	doc, err := h.fetcher.Get(ctx, task.DocumentID)
	if err != nil {
		if errors.Is(err, document.ErrNotFound) {
			// Deleted between enqueue and consume, nothing to do.
			slog.WarnContext(ctx, "document gone before processing, dropping", "document_id", task.DocumentID)
			return nil
		}
		slog.ErrorContext(ctx, "failed to load document", "document_id", task.DocumentID, "error", err)
		return err // Retry
	}

	processCtx, cancel := context.WithTimeout(ctx, processTimeout)
	defer cancel()

	if err := h.processor.Process(processCtx, doc); err != nil {
		slog.ErrorContext(ctx, "ingestion failed", "document_id", task.DocumentID, "filename", doc.Filename, "error", err)
		h.saveFailedJob(ctx, doc, err)
		return nil // Captured as a failed job, don't retry the message
	}

	slog.InfoContext(ctx, "queued ingestion completed", "document_id", task.DocumentID)
	return nil
}

func (h *IngestConsumer) saveFailedJob(ctx context.Context, doc *document.Document, cause error) {
	payload, err := json.Marshal(job.RetryPayload{
		Filename: doc.Filename,
		Content:  doc.Content,
	})
	if err != nil {
		slog.ErrorContext(ctx, "failed to encode retry payload", "document_id", doc.ID, "error", err)
		return
	}

	failedJob := &job.Job{
		Filename: doc.Filename,
		Payload:  payload,
		Error:    cause.Error(),
	}
	if err := h.jobRepo.Save(ctx, failedJob); err != nil {
		slog.ErrorContext(ctx, "failed to save failed job", "document_id", doc.ID, "error", err)
	}
}

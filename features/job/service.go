package job

import (
	"context"
	"encoding/json"
	"fmt"
)

// Resubmitter re-runs the ingestion pipeline for previously extracted text.
// The document feature provides it; retried content goes through the same
// duplicate check and rollback rules as a fresh upload.
type Resubmitter interface {
	ResubmitText(ctx context.Context, filename, content string) error
}

type Service struct {
	repo     Repository
	resubmit Resubmitter
}

func NewService(repo Repository, resubmit Resubmitter) *Service {
	return &Service{repo: repo, resubmit: resubmit}
}

func (s *Service) List(ctx context.Context) ([]Job, error) {
	return s.repo.List(ctx)
}

// Retry re-ingests a failed job's content and removes the job on success.
func (s *Service) Retry(ctx context.Context, id string) error {
	job, err := s.repo.Get(ctx, id)
	if err != nil {
		return err
	}

	var payload RetryPayload
	if err := json.Unmarshal(job.Payload, &payload); err != nil {
		return fmt.Errorf("decode job payload: %w", err)
	}

	if err := s.resubmit.ResubmitText(ctx, payload.Filename, payload.Content); err != nil {
		return err
	}

	return s.repo.Delete(ctx, id)
}

func (s *Service) Count(ctx context.Context) (int, error) {
	return s.repo.Count(ctx)
}

package job

import (
	"encoding/json"
	"time"
)

// Job is a failed ingestion captured for later retry. Payload holds a
// RetryPayload: the failed pipeline rolls its document row back, so the
// extracted text must travel with the job.
type Job struct {
	ID        string          `json:"id"`
	Filename  string          `json:"filename"`
	Payload   json.RawMessage `json:"payload"`
	Error     string          `json:"error"`
	Retries   int             `json:"retries"`
	CreatedAt time.Time       `json:"created_at"`
}

type RetryPayload struct {
	Filename string `json:"filename"`
	Content  string `json:"content"`
}

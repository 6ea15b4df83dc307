package events

// IngestTask asks the ingest consumer to drive a persisted document through
// chunking, embedding and chunk persistence.
type IngestTask struct {
	DocumentID    int64  `json:"document_id"`
	CorrelationID string `json:"correlation_id,omitempty"`
}

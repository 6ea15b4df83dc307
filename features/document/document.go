package document

import (
	"errors"
	"fmt"
	"time"
)

// Ingestion statuses. A document is created in StatusProcessing and only
// ever reaches StatusCompleted once every chunk is embedded and persisted;
// failed ingestions are rolled back rather than left in a failed state, so
// a visible document always has either a full chunk set or a pending one.
const (
	StatusProcessing = "processing"
	StatusCompleted  = "completed"
)

type Document struct {
	ID        int64     `json:"id"`
	Filename  string    `json:"filename"`
	Content   string    `json:"-"`
	FileHash  string    `json:"-"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
}

// Detail adds the chunk count callers poll to learn whether ingestion has
// finished in queued mode.
type Detail struct {
	Document
	ChunkCount int `json:"chunk_count"`
}

var (
	// ErrEmptyContent means extraction produced no usable text.
	ErrEmptyContent = errors.New("document has no extractable text")
	// ErrNoChunks means chunking an accepted document yielded nothing.
	ErrNoChunks = errors.New("chunking produced no chunks")
	// ErrNotFound means the requested document does not exist.
	ErrNotFound = errors.New("document not found")
)

// DuplicateError reports that identical content (same hash after
// normalization) is already stored, carrying the existing document's id.
type DuplicateError struct {
	ExistingID int64
}

func (e *DuplicateError) Error() string {
	return fmt.Sprintf("document already exists with id %d", e.ExistingID)
}

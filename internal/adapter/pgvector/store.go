package pgvector

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/lib/pq"
	pgv "github.com/pgvector/pgvector-go"
)

// Chunk is a stored slice of a document with its embedding metadata.
type Chunk struct {
	ID         int64  `json:"id"`
	DocumentID int64  `json:"document_id"`
	Content    string `json:"content"`
	ChunkIndex int    `json:"chunk_index"`
}

// SearchResult pairs a chunk with its cosine distance to the query
// embedding (ascending = most similar first).
type SearchResult struct {
	Chunk
	Distance float64 `json:"distance"`
}

// Record is one chunk ready for persistence.
type Record struct {
	Content   string
	Embedding []float32
}

// Store persists chunks and their embeddings in Postgres and answers
// similarity queries through the pgvector cosine-distance operator. Ranking
// uses the ivfflat index, so results are a high-quality approximation of
// the true nearest neighbours, not an exact top-k.
type Store struct {
	db *sql.DB
}

func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// PutBatch inserts all chunks for a document in one transaction, assigning
// contiguous chunk indices starting at 0 in the supplied order. Either the
// full batch commits or none of it does.
func (s *Store) PutBatch(ctx context.Context, documentID int64, records []Record) error {
	if len(records) == 0 {
		return fmt.Errorf("no chunks to persist for document %d", documentID)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO chunks (document_id, content, chunk_index, embedding) VALUES ($1, $2, $3, $4)`)
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	for i, rec := range records {
		if _, err := stmt.ExecContext(ctx, documentID, rec.Content, i, pgv.NewVector(rec.Embedding)); err != nil {
			return fmt.Errorf("insert chunk %d: %w", i, err)
		}
	}

	return tx.Commit()
}

// Search returns up to k chunks ordered by ascending cosine distance to the
// query embedding, optionally restricted to a set of document ids. An empty
// result is a valid answer, not an error.
func (s *Store) Search(ctx context.Context, embedding []float32, scope []int64, k int) ([]SearchResult, error) {
	vec := pgv.NewVector(embedding)

	var (
		rows *sql.Rows
		err  error
	)
	if len(scope) > 0 {
		query := `SELECT id, document_id, content, chunk_index, embedding <=> $1 AS distance
		          FROM chunks
		          WHERE document_id = ANY($2)
		          ORDER BY embedding <=> $1
		          LIMIT $3`
		rows, err = s.db.QueryContext(ctx, query, vec, pq.Array(scope), k)
	} else {
		query := `SELECT id, document_id, content, chunk_index, embedding <=> $1 AS distance
		          FROM chunks
		          ORDER BY embedding <=> $1
		          LIMIT $2`
		rows, err = s.db.QueryContext(ctx, query, vec, k)
	}
	if err != nil {
		return nil, fmt.Errorf("similarity search: %w", err)
	}
	defer rows.Close()

	var results []SearchResult
	for rows.Next() {
		var r SearchResult
		if err := rows.Scan(&r.ID, &r.DocumentID, &r.Content, &r.ChunkIndex, &r.Distance); err != nil {
			return nil, fmt.Errorf("scan search result: %w", err)
		}
		results = append(results, r)
	}
	return results, rows.Err()
}

// DeleteByDocument removes all chunks owned by a document and reports how
// many were removed.
func (s *Store) DeleteByDocument(ctx context.Context, documentID int64) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM chunks WHERE document_id = $1`, documentID)
	if err != nil {
		return 0, fmt.Errorf("delete chunks: %w", err)
	}
	return res.RowsAffected()
}

// CountByDocument reports how many chunks a document owns. A completed
// ingestion always has a positive count, so callers use this as the status
// proxy in queued mode.
func (s *Store) CountByDocument(ctx context.Context, documentID int64) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM chunks WHERE document_id = $1`, documentID).Scan(&count)
	return count, err
}

// CountChunks reports the corpus-wide chunk count.
func (s *Store) CountChunks(ctx context.Context) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM chunks`).Scan(&count)
	return count, err
}

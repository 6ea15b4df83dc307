package document

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

type Repository interface {
	Create(ctx context.Context, doc *Document) error
	FindByHash(ctx context.Context, hash string) (*Document, error)
	Get(ctx context.Context, id int64) (*Document, error)
	List(ctx context.Context) ([]Document, error)
	UpdateStatus(ctx context.Context, id int64, status string) error
	Delete(ctx context.Context, id int64) error
	Count(ctx context.Context) (int, error)
}

type PostgresRepo struct {
	db *sql.DB
}

func NewPostgresRepo(db *sql.DB) *PostgresRepo {
	return &PostgresRepo{db: db}
}

func (r *PostgresRepo) Create(ctx context.Context, doc *Document) error {
	query := `INSERT INTO documents (filename, content, file_hash, status) VALUES ($1, $2, $3, $4) RETURNING id, created_at`
	return r.db.QueryRowContext(ctx, query, doc.Filename, doc.Content, doc.FileHash, doc.Status).
		Scan(&doc.ID, &doc.CreatedAt)
}

// FindByHash returns the document with the given content hash, or
// ErrNotFound when no such document exists.
func (r *PostgresRepo) FindByHash(ctx context.Context, hash string) (*Document, error) {
	d := &Document{}
	query := `SELECT id, filename, file_hash, status, created_at FROM documents WHERE file_hash = $1`
	err := r.db.QueryRowContext(ctx, query, hash).
		Scan(&d.ID, &d.Filename, &d.FileHash, &d.Status, &d.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return d, nil
}

// Get returns a document including its full text content.
func (r *PostgresRepo) Get(ctx context.Context, id int64) (*Document, error) {
	d := &Document{}
	query := `SELECT id, filename, content, file_hash, status, created_at FROM documents WHERE id = $1`
	err := r.db.QueryRowContext(ctx, query, id).
		Scan(&d.ID, &d.Filename, &d.Content, &d.FileHash, &d.Status, &d.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return d, nil
}

func (r *PostgresRepo) List(ctx context.Context) ([]Document, error) {
	query := `SELECT id, filename, file_hash, status, created_at FROM documents ORDER BY created_at DESC`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var docs []Document
	for rows.Next() {
		var d Document
		if err := rows.Scan(&d.ID, &d.Filename, &d.FileHash, &d.Status, &d.CreatedAt); err != nil {
			return nil, err
		}
		docs = append(docs, d)
	}
	return docs, rows.Err()
}

func (r *PostgresRepo) UpdateStatus(ctx context.Context, id int64, status string) error {
	query := `UPDATE documents SET status = $1 WHERE id = $2`
	_, err := r.db.ExecContext(ctx, query, status, id)
	return err
}

// Delete removes the document row; the chunks foreign key cascades, so all
// owned chunks go with it.
func (r *PostgresRepo) Delete(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM documents WHERE id = $1`, id)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return fmt.Errorf("delete document %d: %w", id, ErrNotFound)
	}
	return nil
}

func (r *PostgresRepo) Count(ctx context.Context) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM documents`).Scan(&count)
	return count, err
}

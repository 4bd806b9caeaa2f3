package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"inkwiki/internal/document/model"
	"inkwiki/pkg/apperr"
	"inkwiki/pkg/logger"
)

type DocumentRepository struct {
	DB *sql.DB
}

func NewDocumentRepository(db *sql.DB) *DocumentRepository {
	return &DocumentRepository{DB: db}
}

// Put inserts the document at revision 0 or, when the title already exists,
// replaces its metadata and bumps the revision by exactly one. The single
// upsert statement makes the bump atomic: concurrent writers to one title
// serialize on the row lock, writers to different titles never contend.
func (r *DocumentRepository) Put(ctx context.Context, title string, meta json.RawMessage) (int64, error) {
	const query = `
		INSERT INTO documents (title, revision, metadata, updated_at) VALUES ($1, 0, $2, NOW())
		ON CONFLICT (title) DO UPDATE SET revision = documents.revision + 1, metadata = EXCLUDED.metadata, updated_at = NOW()
		RETURNING revision`
	var revision int64
	if err := r.DB.QueryRowContext(ctx, query, title, []byte(meta)).Scan(&revision); err != nil {
		logger.Sugar.Errorf("Failed to put document %s: %v", title, err)
		return 0, err
	}
	return revision, nil
}

func (r *DocumentRepository) Get(ctx context.Context, title string) (*model.Document, error) {
	doc := model.Document{Title: title}
	err := r.DB.QueryRowContext(ctx, "SELECT revision, metadata FROM documents WHERE title = $1", title).
		Scan(&doc.Revision, &doc.Meta)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: document %q", apperr.ErrNotFound, title)
	}
	if err != nil {
		logger.Sugar.Errorf("Failed to get document %s: %v", title, err)
		return nil, err
	}
	return &doc, nil
}

// Delete removes the row and returns the metadata that was stored
// immediately before removal, which the cascade-delete path needs.
func (r *DocumentRepository) Delete(ctx context.Context, title string) (json.RawMessage, error) {
	var meta json.RawMessage
	err := r.DB.QueryRowContext(ctx, "DELETE FROM documents WHERE title = $1 RETURNING metadata", title).Scan(&meta)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: document %q", apperr.ErrNotFound, title)
	}
	if err != nil {
		logger.Sugar.Errorf("Failed to delete document %s: %v", title, err)
		return nil, err
	}
	return meta, nil
}

// All scans every document. No ordering is promised beyond what the primary
// key index happens to provide.
func (r *DocumentRepository) All(ctx context.Context) ([]model.Document, error) {
	rows, err := r.DB.QueryContext(ctx, "SELECT title, revision, metadata FROM documents")
	if err != nil {
		logger.Sugar.Errorf("Failed to list documents: %v", err)
		return nil, err
	}
	defer rows.Close()

	var docs []model.Document
	for rows.Next() {
		var doc model.Document
		if err := rows.Scan(&doc.Title, &doc.Revision, &doc.Meta); err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	return docs, rows.Err()
}

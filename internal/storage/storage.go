// Package storage defines persistence for documents and their clauses.
package storage

import (
	"context"
	"errors"

	"github.com/clauselens/clauselens/internal/models"
)

// ErrNotFound is returned when a document or clause does not exist.
var ErrNotFound = errors.New("storage: not found")

// ErrInvalidTransition is returned when a status update would move a document
// backwards or out of a terminal state.
var ErrInvalidTransition = errors.New("storage: invalid status transition")

// Store defines document and clause persistence operations.
type Store interface {
	// Document operations
	CreateDocument(ctx context.Context, doc *models.Document) error
	GetDocument(ctx context.Context, id string) (*models.Document, error)
	UpdateDocument(ctx context.Context, doc *models.Document) error
	UpdateDocumentStatus(ctx context.Context, id string, status models.DocumentStatus) error
	DeleteDocument(ctx context.Context, id string) error
	ListDocuments(ctx context.Context, sessionID string, offset, limit int) ([]*models.Document, error)

	// Clause operations
	CreateClauses(ctx context.Context, clauses []*models.Clause) error
	GetClause(ctx context.Context, id string) (*models.Clause, error)
	GetClausesByDocumentID(ctx context.Context, docID string) ([]*models.Clause, error)
	UpdateClauseEmbeddings(ctx context.Context, clauses []*models.Clause) error
	DeleteClausesByDocumentID(ctx context.Context, docID string) error

	// Stats
	CountDocuments(ctx context.Context) (int64, error)
	CountClauses(ctx context.Context) (int64, error)

	Close() error
}

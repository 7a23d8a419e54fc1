package storage

import (
	"context"
	"database/sql"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/clauselens/clauselens/internal/models"
)

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens or creates a SQLite database at dbPath and initializes
// the schema. Parent directories are created if they do not exist.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable WAL: %w", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

func initSchema(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS documents (
		id TEXT PRIMARY KEY,
		filename TEXT NOT NULL,
		status TEXT NOT NULL,
		language TEXT,
		page_count INTEGER DEFAULT 0,
		clause_count INTEGER DEFAULT 0,
		session_id TEXT,
		metadata TEXT,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_documents_session ON documents(session_id);
	CREATE INDEX IF NOT EXISTS idx_documents_created_at ON documents(created_at);

	CREATE TABLE IF NOT EXISTS clauses (
		id TEXT PRIMARY KEY,
		document_id TEXT NOT NULL,
		clause_order INTEGER NOT NULL,
		original_text TEXT NOT NULL,
		summary TEXT,
		category TEXT,
		risk_level TEXT,
		readability TEXT,
		negotiation_tip TEXT,
		confidence REAL DEFAULT 0,
		needs_review INTEGER DEFAULT 0,
		embedding BLOB,
		metadata TEXT,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		FOREIGN KEY (document_id) REFERENCES documents(id) ON DELETE CASCADE
	);

	CREATE INDEX IF NOT EXISTS idx_clauses_document ON clauses(document_id);
	CREATE INDEX IF NOT EXISTS idx_clauses_document_order ON clauses(document_id, clause_order);
	`
	_, err := db.Exec(schema)
	return err
}

// CreateDocument inserts a document.
func (s *SQLiteStore) CreateDocument(ctx context.Context, doc *models.Document) error {
	metadataJSON, err := json.Marshal(doc.Metadata)
	if err != nil {
		return fmt.Errorf("failed to marshal metadata: %w", err)
	}

	now := time.Now()
	doc.CreatedAt = now
	doc.UpdatedAt = now
	if doc.Status == "" {
		doc.Status = models.StatusUploaded
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO documents (id, filename, status, language, page_count, clause_count, session_id, metadata, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		doc.ID, doc.Filename, doc.Status, doc.Language, doc.PageCount, doc.ClauseCount,
		doc.SessionID, string(metadataJSON), doc.CreatedAt, doc.UpdatedAt,
	)
	return err
}

// GetDocument returns a document by ID.
func (s *SQLiteStore) GetDocument(ctx context.Context, id string) (*models.Document, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, filename, status, language, page_count, clause_count, session_id, metadata, created_at, updated_at
		 FROM documents WHERE id = ?`, id)
	return scanDocument(row)
}

func scanDocument(row interface{ Scan(...interface{}) error }) (*models.Document, error) {
	var doc models.Document
	var language, sessionID, metadataJSON sql.NullString

	err := row.Scan(&doc.ID, &doc.Filename, &doc.Status, &language, &doc.PageCount,
		&doc.ClauseCount, &sessionID, &metadataJSON, &doc.CreatedAt, &doc.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	doc.Language = language.String
	doc.SessionID = sessionID.String
	if metadataJSON.String != "" {
		if err := json.Unmarshal([]byte(metadataJSON.String), &doc.Metadata); err != nil {
			return nil, fmt.Errorf("failed to unmarshal metadata: %w", err)
		}
	}
	return &doc, nil
}

// UpdateDocument updates an existing document's mutable fields.
func (s *SQLiteStore) UpdateDocument(ctx context.Context, doc *models.Document) error {
	metadataJSON, err := json.Marshal(doc.Metadata)
	if err != nil {
		return fmt.Errorf("failed to marshal metadata: %w", err)
	}

	doc.UpdatedAt = time.Now()

	result, err := s.db.ExecContext(ctx,
		`UPDATE documents SET filename = ?, status = ?, language = ?, page_count = ?, clause_count = ?, metadata = ?, updated_at = ?
		 WHERE id = ?`,
		doc.Filename, doc.Status, doc.Language, doc.PageCount, doc.ClauseCount,
		string(metadataJSON), doc.UpdatedAt, doc.ID,
	)
	if err != nil {
		return err
	}
	n, _ := result.RowsAffected()
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// UpdateDocumentStatus moves a document to a new lifecycle status. The read
// and write run in one transaction so the monotonic ordering holds under
// concurrent updates: a completed or failed document never changes again.
func (s *SQLiteStore) UpdateDocumentStatus(ctx context.Context, id string, status models.DocumentStatus) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var current models.DocumentStatus
	err = tx.QueryRowContext(ctx, `SELECT status FROM documents WHERE id = ?`, id).Scan(&current)
	if err == sql.ErrNoRows {
		return ErrNotFound
	}
	if err != nil {
		return err
	}

	if !current.CanTransitionTo(status) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, current, status)
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE documents SET status = ?, updated_at = ? WHERE id = ?`,
		status, time.Now(), id,
	); err != nil {
		return err
	}
	return tx.Commit()
}

// DeleteDocument removes a document; clauses cascade.
func (s *SQLiteStore) DeleteDocument(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM documents WHERE id = ?`, id)
	return err
}

// ListDocuments returns documents newest first. An empty sessionID lists all
// sessions.
func (s *SQLiteStore) ListDocuments(ctx context.Context, sessionID string, offset, limit int) ([]*models.Document, error) {
	query := `SELECT id, filename, status, language, page_count, clause_count, session_id, metadata, created_at, updated_at
	          FROM documents`
	args := []interface{}{}
	if sessionID != "" {
		query += ` WHERE session_id = ?`
		args = append(args, sessionID)
	}
	query += ` ORDER BY created_at DESC LIMIT ? OFFSET ?`
	args = append(args, limit, offset)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var docs []*models.Document
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	return docs, rows.Err()
}

// CreateClauses inserts a document's clauses in one transaction. Clause IDs
// are deterministic, so REPLACE makes reprocessing overwrite prior rows
// instead of piling up duplicates.
func (s *SQLiteStore) CreateClauses(ctx context.Context, clauses []*models.Clause) error {
	if len(clauses) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx,
		`INSERT OR REPLACE INTO clauses (id, document_id, clause_order, original_text, summary, category, risk_level, readability, negotiation_tip, confidence, needs_review, embedding, metadata, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
	)
	if err != nil {
		return err
	}
	defer stmt.Close()

	now := time.Now()
	for _, clause := range clauses {
		clause.CreatedAt = now
		readabilityJSON, err := json.Marshal(clause.Readability)
		if err != nil {
			return fmt.Errorf("failed to marshal readability: %w", err)
		}
		metadataJSON, err := json.Marshal(clause.Metadata)
		if err != nil {
			return fmt.Errorf("failed to marshal metadata: %w", err)
		}
		if _, err := stmt.ExecContext(ctx,
			clause.ID, clause.DocumentID, clause.Order, clause.OriginalText,
			clause.Summary, clause.Category, clause.RiskLevel, string(readabilityJSON),
			clause.NegotiationTip, clause.Confidence, clause.NeedsReview,
			encodeEmbedding(clause.Embedding), string(metadataJSON), clause.CreatedAt,
		); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// GetClause returns a clause by ID.
func (s *SQLiteStore) GetClause(ctx context.Context, id string) (*models.Clause, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, document_id, clause_order, original_text, summary, category, risk_level, readability, negotiation_tip, confidence, needs_review, embedding, metadata, created_at
		 FROM clauses WHERE id = ?`, id)
	return scanClause(row)
}

func scanClause(row interface{ Scan(...interface{}) error }) (*models.Clause, error) {
	var clause models.Clause
	var summary, category, riskLevel, readabilityJSON, tip, metadataJSON sql.NullString
	var embeddingBlob []byte

	err := row.Scan(&clause.ID, &clause.DocumentID, &clause.Order, &clause.OriginalText,
		&summary, &category, &riskLevel, &readabilityJSON, &tip,
		&clause.Confidence, &clause.NeedsReview, &embeddingBlob, &metadataJSON, &clause.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	clause.Summary = summary.String
	clause.Category = category.String
	clause.RiskLevel = models.RiskLevel(riskLevel.String)
	clause.NegotiationTip = tip.String
	clause.Embedding = decodeEmbedding(embeddingBlob)
	if readabilityJSON.String != "" {
		if err := json.Unmarshal([]byte(readabilityJSON.String), &clause.Readability); err != nil {
			return nil, fmt.Errorf("failed to unmarshal readability: %w", err)
		}
	}
	if metadataJSON.String != "" {
		_ = json.Unmarshal([]byte(metadataJSON.String), &clause.Metadata)
	}
	return &clause, nil
}

// GetClausesByDocumentID returns a document's clauses ordered by position.
func (s *SQLiteStore) GetClausesByDocumentID(ctx context.Context, docID string) ([]*models.Clause, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, document_id, clause_order, original_text, summary, category, risk_level, readability, negotiation_tip, confidence, needs_review, embedding, metadata, created_at
		 FROM clauses WHERE document_id = ? ORDER BY clause_order`, docID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var clauses []*models.Clause
	for rows.Next() {
		clause, err := scanClause(rows)
		if err != nil {
			return nil, err
		}
		clauses = append(clauses, clause)
	}
	return clauses, rows.Err()
}

// UpdateClauseEmbeddings writes embeddings for already-persisted clauses in
// one transaction. Other clause fields are untouched.
func (s *SQLiteStore) UpdateClauseEmbeddings(ctx context.Context, clauses []*models.Clause) error {
	if len(clauses) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `UPDATE clauses SET embedding = ? WHERE id = ?`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, clause := range clauses {
		if _, err := stmt.ExecContext(ctx, encodeEmbedding(clause.Embedding), clause.ID); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// DeleteClausesByDocumentID removes all clauses for a document.
func (s *SQLiteStore) DeleteClausesByDocumentID(ctx context.Context, docID string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM clauses WHERE document_id = ?`, docID)
	return err
}

// CountDocuments returns the total number of documents.
func (s *SQLiteStore) CountDocuments(ctx context.Context) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM documents`).Scan(&count)
	return count, err
}

// CountClauses returns the total number of clauses.
func (s *SQLiteStore) CountClauses(ctx context.Context) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM clauses`).Scan(&count)
	return count, err
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// encodeEmbedding packs a vector as little-endian float32 bytes; nil maps to
// nil so the column stays NULL until the background embedder runs.
func encodeEmbedding(v []float32) []byte {
	if len(v) == 0 {
		return nil
	}
	buf := make([]byte, 4*len(v))
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}

func decodeEmbedding(buf []byte) []float32 {
	if len(buf) < 4 {
		return nil
	}
	v := make([]float32, len(buf)/4)
	for i := range v {
		v[i] = math.Float32frombits(binary.LittleEndian.Uint32(buf[i*4:]))
	}
	return v
}

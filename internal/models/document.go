// Package models defines core data structures for documents and clauses.
package models

import (
	"fmt"
	"time"
)

// DocumentStatus is the lifecycle state of a document.
// Transitions are monotonic: uploaded -> processing -> completed|failed.
type DocumentStatus string

const (
	StatusUploaded   DocumentStatus = "uploaded"
	StatusProcessing DocumentStatus = "processing"
	StatusCompleted  DocumentStatus = "completed"
	StatusFailed     DocumentStatus = "failed"
)

// rank orders statuses so that updates never move a document backwards.
func (s DocumentStatus) rank() int {
	switch s {
	case StatusUploaded:
		return 0
	case StatusProcessing:
		return 1
	case StatusCompleted, StatusFailed:
		return 2
	}
	return -1
}

// Terminal reports whether s is a final state.
func (s DocumentStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// CanTransitionTo reports whether moving from s to next preserves monotonic ordering.
func (s DocumentStatus) CanTransitionTo(next DocumentStatus) bool {
	if s.Terminal() {
		return false
	}
	return next.rank() >= s.rank()
}

// RiskLevel is the coarse risk classification of a clause or document.
type RiskLevel string

const (
	RiskLow       RiskLevel = "low"
	RiskModerate  RiskLevel = "moderate"
	RiskAttention RiskLevel = "attention"
)

// Document represents an uploaded document and its processing state.
type Document struct {
	ID          string                 `json:"id" db:"id"`
	Filename    string                 `json:"filename" db:"filename"`
	Status      DocumentStatus         `json:"status" db:"status"`
	Language    string                 `json:"language" db:"language"`
	PageCount   int                    `json:"page_count" db:"page_count"`
	ClauseCount int                    `json:"clause_count" db:"clause_count"`
	SessionID   string                 `json:"session_id,omitempty" db:"session_id"`
	Metadata    map[string]interface{} `json:"metadata" db:"metadata"`
	CreatedAt   time.Time              `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time              `json:"updated_at" db:"updated_at"`
}

// ReadabilityMetrics holds per-clause readability figures persisted with the clause.
type ReadabilityMetrics struct {
	OriginalGrade float64 `json:"original_grade"`
	SummaryGrade  float64 `json:"summary_grade"`
	GradeDelta    float64 `json:"grade_delta"`
	FleschScore   float64 `json:"flesch_score"`
}

// Clause is a persisted clause produced by one pipeline run. Its ID is
// deterministic (ClauseID) so reprocessing a document overwrites prior rows.
type Clause struct {
	ID             string                 `json:"id" db:"id"`
	DocumentID     string                 `json:"document_id" db:"document_id"`
	Order          int                    `json:"order" db:"clause_order"`
	OriginalText   string                 `json:"original_text" db:"original_text"`
	Summary        string                 `json:"summary" db:"summary"`
	Category       string                 `json:"category" db:"category"`
	RiskLevel      RiskLevel              `json:"risk_level" db:"risk_level"`
	Readability    ReadabilityMetrics     `json:"readability_metrics" db:"readability_metrics"`
	NegotiationTip string                 `json:"negotiation_tip,omitempty" db:"negotiation_tip"`
	Confidence     float64                `json:"confidence" db:"confidence"`
	NeedsReview    bool                   `json:"needs_review" db:"needs_review"`
	Embedding      []float32              `json:"-" db:"-"`
	Metadata       map[string]interface{} `json:"metadata,omitempty" db:"metadata"`
	CreatedAt      time.Time              `json:"created_at" db:"created_at"`
}

// ClauseID derives the deterministic clause identifier from document ID and
// zero-based index.
func ClauseID(documentID string, index int) string {
	return fmt.Sprintf("%s_clause_%d", documentID, index)
}

// Package pipeline orchestrates document processing: extraction, language
// detection, PII masking, clause segmentation, summarization, risk and
// readability analysis, persistence, and background embedding.
package pipeline

import (
	"errors"
	"fmt"

	"github.com/clauselens/clauselens/internal/langdetect"
	"github.com/clauselens/clauselens/internal/models"
	"github.com/clauselens/clauselens/internal/privacy"
	"github.com/clauselens/clauselens/internal/readability"
	"github.com/clauselens/clauselens/internal/risk"
	"github.com/clauselens/clauselens/internal/segment"
	"github.com/clauselens/clauselens/internal/summarize"
)

// Stage names in execution order.
const (
	StageExtraction    = "text_extraction"
	StageLanguage      = "language_detection"
	StageMasking       = "privacy_masking"
	StageSegmentation  = "clause_segmentation"
	StageSummarization = "summarization"
	StageRisk          = "risk_analysis"
	StageReadability   = "readability_analysis"
	StageStorage       = "data_storage"
	StageEmbedding     = "embeddings_background_started"
	StageFinalize      = "finalize"
)

// stageOrder mirrors the execution order above so failures can be recorded
// by position as well as by name.
var stageOrder = []string{
	StageExtraction,
	StageLanguage,
	StageMasking,
	StageSegmentation,
	StageSummarization,
	StageRisk,
	StageReadability,
	StageStorage,
	StageEmbedding,
	StageFinalize,
}

func stageIndex(stage string) int {
	for i, s := range stageOrder {
		if s == stage {
			return i
		}
	}
	return -1
}

// ErrNoClauses is returned when segmentation finds nothing usable in the
// extracted text.
var ErrNoClauses = errors.New("no clauses could be extracted from document")

// StageError reports a failure in a named stage. Index is the clause index
// for per-clause failures and -1 otherwise.
type StageError struct {
	Stage string
	Index int
	Err   error
}

func (e *StageError) Error() string {
	if e.Index >= 0 {
		return fmt.Sprintf("pipeline stage %s (clause %d): %v", e.Stage, e.Index, e.Err)
	}
	return fmt.Sprintf("pipeline stage %s: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }

func stageErr(stage string, err error) *StageError {
	return &StageError{Stage: stage, Index: -1, Err: err}
}

// Result is the outcome of one pipeline run.
type Result struct {
	DocumentID      string                      `json:"doc_id"`
	Status          models.DocumentStatus       `json:"status"`
	StagesCompleted []string                    `json:"stages_completed"`
	Language        string                      `json:"language"`
	ClauseCount     int                         `json:"clause_count"`
	PIIDetected     int                         `json:"pii_detected"`
	RiskProfile     risk.Profile                `json:"risk_profile"`
	Readability     readability.DocumentProfile `json:"readability"`
}

// state carries inter-stage payloads through one run. Each stage fills the
// fields the later stages read; nothing travels through loose maps.
type state struct {
	docID     string
	filename  string
	sessionID string

	text      string
	pageCount int

	language     string
	langDetected langdetect.Result

	maskedText string
	piiMatches []privacy.Match

	candidates  []segment.Candidate
	summaries   []summarize.ItemResult
	assessments []risk.Assessment
	comparisons []readability.Comparison

	clauses []*models.Clause
}

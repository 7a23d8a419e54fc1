// Package summarize turns clause text into plain-language summaries. The
// primary implementation talks to an LLM sidecar over HTTP; a deterministic
// extractive summarizer serves as the default when no sidecar is configured.
package summarize

import (
	"context"
	"errors"

	"github.com/clauselens/clauselens/internal/models"
	"github.com/clauselens/clauselens/internal/segment"
)

// ErrPromptTooLarge reports that a batch's estimated prompt size exceeds the
// token budget. Callers react by splitting the batch and retrying the halves.
var ErrPromptTooLarge = errors.New("summarize: prompt exceeds token budget")

// promptBudgetRatio reserves headroom below the hard token limit so system
// prompt and response framing fit alongside the clause text.
const promptBudgetRatio = 0.7

// Input is one clause handed to a summarizer.
type Input struct {
	Text     string
	Category string
}

// ItemResult is the per-clause outcome of a summarization batch. Fallback
// marks entries synthesized locally after a backend failure; they carry low
// confidence and are flagged for review rather than dropped.
type ItemResult struct {
	Summary        string  `json:"summary"`
	Category       string  `json:"category"`
	RiskLabel      string  `json:"risk_level"`
	NegotiationTip string  `json:"negotiation_tip,omitempty"`
	Confidence     float64 `json:"confidence"`
	Method         string  `json:"processing_method"`
	NeedsReview    bool    `json:"needs_review"`
	Fallback       bool    `json:"fallback"`
}

// Summarizer produces one ItemResult per input, in input order.
type Summarizer interface {
	SummarizeBatch(ctx context.Context, inputs []Input, includeTips bool, language string) ([]ItemResult, error)
}

// EstimateTokens approximates the token count of text, one token per four
// characters, never less than one.
func EstimateTokens(text string) int {
	n := len(text) / 4
	if n < 1 {
		n = 1
	}
	return n
}

// BuildBatches groups inputs for submission, closing a batch when it reaches
// maxBatch clauses or its text would overflow the working token budget.
func BuildBatches(inputs []Input, maxBatch, maxPromptTokens int) [][]Input {
	budget := float64(maxPromptTokens) * promptBudgetRatio

	var batches [][]Input
	var current []Input
	tokens := 0
	for _, in := range inputs {
		t := EstimateTokens(in.Text)
		if len(current) >= maxBatch || float64(tokens+t) > budget {
			if len(current) > 0 {
				batches = append(batches, current)
				current = nil
				tokens = 0
			}
		}
		current = append(current, in)
		tokens += t
	}
	if len(current) > 0 {
		batches = append(batches, current)
	}
	return batches
}

// FallbackResults synthesizes review-flagged placeholder results for a batch
// whose summarization failed. Categories from segmentation are preserved.
func FallbackResults(inputs []Input) []ItemResult {
	results := make([]ItemResult, len(inputs))
	for i, in := range inputs {
		category := in.Category
		if category == "" {
			category = segment.CategoryOther
		}
		results[i] = ItemResult{
			Summary:     "This clause requires manual review. Automatic summarization failed.",
			Category:    category,
			RiskLabel:   string(models.RiskModerate),
			Confidence:  0.3,
			Method:      "fallback",
			NeedsReview: true,
			Fallback:    true,
		}
	}
	return results
}

// validCategories guards against backends inventing category names.
var validCategories = func() map[string]struct{} {
	m := make(map[string]struct{}, len(segment.Categories))
	for _, c := range segment.Categories {
		m[c] = struct{}{}
	}
	return m
}()

var validRiskLabels = map[string]struct{}{
	string(models.RiskLow):       {},
	string(models.RiskModerate):  {},
	string(models.RiskAttention): {},
}

// sanitize normalizes a backend result to known categories and risk labels.
func sanitize(r ItemResult) ItemResult {
	if _, ok := validCategories[r.Category]; !ok {
		r.Category = segment.CategoryOther
	}
	if _, ok := validRiskLabels[r.RiskLabel]; !ok {
		r.RiskLabel = string(models.RiskModerate)
	}
	if r.Summary == "" {
		r.Summary = "Summary not available"
	}
	return r
}

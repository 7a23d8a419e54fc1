package summarize

import (
	"context"
	"regexp"
	"strings"

	"github.com/clauselens/clauselens/internal/segment"
	"github.com/clauselens/clauselens/pkg/utils"
)

// Heuristic is a deterministic extractive summarizer: it keeps the lead
// sentences of a clause and rewrites common legal jargon into plain terms.
// It is the default when no sidecar endpoint is configured, and it is what
// tests run against.
type Heuristic struct {
	maxSentences int
}

// NewHeuristic creates the extractive summarizer.
func NewHeuristic() *Heuristic {
	return &Heuristic{maxSentences: 2}
}

// jargon maps legalese to everyday phrasing, applied longest-first so that
// e.g. "notwithstanding" is not split by a shorter rule.
var jargon = []struct {
	re *regexp.Regexp
	to string
}{
	{regexp.MustCompile(`(?i)\bnotwithstanding\b`), "despite"},
	{regexp.MustCompile(`(?i)\bhereinafter\b`), "from here on"},
	{regexp.MustCompile(`(?i)\bheretofore\b`), "until now"},
	{regexp.MustCompile(`(?i)\bthereunder\b`), "under it"},
	{regexp.MustCompile(`(?i)\bhereunder\b`), "under this document"},
	{regexp.MustCompile(`(?i)\bwhereas\b`), "since"},
	{regexp.MustCompile(`(?i)\bherein\b`), "in this document"},
	{regexp.MustCompile(`(?i)\bhereby\b`), "by this document"},
	{regexp.MustCompile(`(?i)\bthereof\b`), "of it"},
	{regexp.MustCompile(`(?i)\bshall\b`), "must"},
}

var sentenceEnd = regexp.MustCompile(`([.!?])\s+`)

// SummarizeBatch summarizes each clause locally. It never fails and never
// rejects a batch for size, so callers get full coverage without splitting.
func (h *Heuristic) SummarizeBatch(_ context.Context, inputs []Input, includeTips bool, _ string) ([]ItemResult, error) {
	results := make([]ItemResult, len(inputs))
	for i, in := range inputs {
		category := in.Category
		if category == "" {
			category = segment.CategoryOther
		}
		r := ItemResult{
			Summary:    h.summarize(in.Text),
			Category:   category,
			Confidence: 0.5,
			Method:     "extractive",
		}
		if includeTips {
			r.NegotiationTip = tipForCategory(category)
		}
		results[i] = sanitize(r)
	}
	return results, nil
}

func (h *Heuristic) summarize(text string) string {
	text = strings.Join(strings.Fields(text), " ")
	if text == "" {
		return "Summary not available"
	}

	// Lead sentences carry the operative language in most clauses.
	marked := sentenceEnd.ReplaceAllString(text, "$1\x00")
	sentences := strings.SplitN(marked, "\x00", h.maxSentences+1)
	if len(sentences) > h.maxSentences {
		sentences = sentences[:h.maxSentences]
	}
	summary := strings.Join(sentences, " ")

	for _, j := range jargon {
		summary = j.re.ReplaceAllString(summary, j.to)
	}
	return utils.Truncate(summary, 500)
}

// tipForCategory offers generic guidance per clause category. The extractive
// summarizer has no document context, so tips stay conservative.
var categoryTips = map[string]string{
	segment.CategoryIndemnity:       "Ask whether the indemnity can be made mutual or capped.",
	segment.CategoryLiability:       "Check for a liability cap and carve-outs for indirect damages.",
	segment.CategoryTermination:     "Confirm notice periods and whether termination requires cause.",
	segment.CategoryAssignment:      "Consider requiring consent for assignment to competitors.",
	segment.CategoryPayment:         "Verify payment deadlines and any late fees or interest.",
	segment.CategoryConfidentiality: "Check the duration of confidentiality obligations after termination.",
}

func tipForCategory(category string) string {
	return categoryTips[category]
}

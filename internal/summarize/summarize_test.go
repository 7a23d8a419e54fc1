package summarize

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/clauselens/clauselens/internal/segment"
)

func TestEstimateTokens(t *testing.T) {
	cases := []struct {
		text string
		want int
	}{
		{"", 1},
		{"ab", 1},
		{"abcd", 1},
		{"abcdefgh", 2},
		{strings.Repeat("x", 4000), 1000},
	}
	for _, tc := range cases {
		if got := EstimateTokens(tc.text); got != tc.want {
			t.Errorf("EstimateTokens(%d chars) = %d, want %d", len(tc.text), got, tc.want)
		}
	}
}

func TestBuildBatchesByCount(t *testing.T) {
	inputs := make([]Input, 25)
	for i := range inputs {
		inputs[i] = Input{Text: "short clause text"}
	}
	batches := BuildBatches(inputs, 10, 30000)
	if len(batches) != 3 {
		t.Fatalf("got %d batches, want 3", len(batches))
	}
	if len(batches[0]) != 10 || len(batches[1]) != 10 || len(batches[2]) != 5 {
		t.Errorf("batch sizes = %d/%d/%d, want 10/10/5", len(batches[0]), len(batches[1]), len(batches[2]))
	}
}

func TestBuildBatchesByTokenBudget(t *testing.T) {
	// Each clause is 2000 tokens; with a 10000-token limit the working
	// budget is 7000, so at most three clauses fit per batch.
	big := strings.Repeat("a", 8000)
	inputs := []Input{{Text: big}, {Text: big}, {Text: big}, {Text: big}, {Text: big}}
	batches := BuildBatches(inputs, 10, 10000)
	if len(batches) != 2 {
		t.Fatalf("got %d batches, want 2", len(batches))
	}
	if len(batches[0]) != 3 || len(batches[1]) != 2 {
		t.Errorf("batch sizes = %d/%d, want 3/2", len(batches[0]), len(batches[1]))
	}
}

func TestBuildBatchesOversizedSingleClause(t *testing.T) {
	// A clause bigger than the budget still goes out alone, never dropped.
	inputs := []Input{{Text: strings.Repeat("a", 100000)}, {Text: "small"}}
	batches := BuildBatches(inputs, 10, 10000)
	if len(batches) != 2 {
		t.Fatalf("got %d batches, want 2", len(batches))
	}
	if len(batches[0]) != 1 {
		t.Errorf("oversized clause should batch alone, got %d clauses", len(batches[0]))
	}
}

func TestFallbackResults(t *testing.T) {
	inputs := []Input{{Text: "a", Category: segment.CategoryLiability}, {Text: "b"}}
	results := FallbackResults(inputs)
	if len(results) != 2 {
		t.Fatalf("got %d results, want 2", len(results))
	}
	for i, r := range results {
		if !r.Fallback || !r.NeedsReview {
			t.Errorf("result %d: fallback=%v needsReview=%v, want both true", i, r.Fallback, r.NeedsReview)
		}
		if r.Confidence != 0.3 || r.Method != "fallback" {
			t.Errorf("result %d: confidence=%v method=%q", i, r.Confidence, r.Method)
		}
	}
	if results[0].Category != segment.CategoryLiability {
		t.Errorf("fallback should keep the segmenter's category, got %q", results[0].Category)
	}
	if results[1].Category != segment.CategoryOther {
		t.Errorf("missing category should fall back to Other, got %q", results[1].Category)
	}
}

func TestHeuristicSummarize(t *testing.T) {
	h := NewHeuristic()
	inputs := []Input{{
		Text:     "The Receiving Party shall hold all Confidential Information in strict confidence. Disclosure is prohibited notwithstanding any prior agreement. Third sentence should be dropped.",
		Category: segment.CategoryConfidentiality,
	}}
	results, err := h.SummarizeBatch(context.Background(), inputs, true, "en")
	if err != nil {
		t.Fatalf("SummarizeBatch: %v", err)
	}
	r := results[0]
	if strings.Contains(r.Summary, "shall") {
		t.Errorf("jargon not rewritten: %q", r.Summary)
	}
	if !strings.Contains(r.Summary, "must") || !strings.Contains(r.Summary, "despite") {
		t.Errorf("expected plain-language rewrites in %q", r.Summary)
	}
	if strings.Contains(r.Summary, "Third sentence") {
		t.Errorf("summary should keep only lead sentences: %q", r.Summary)
	}
	if r.NegotiationTip == "" {
		t.Error("expected a tip for a confidentiality clause with tips enabled")
	}
	if r.Method != "extractive" || r.Fallback {
		t.Errorf("method=%q fallback=%v", r.Method, r.Fallback)
	}
}

func TestHeuristicDeterministic(t *testing.T) {
	h := NewHeuristic()
	in := []Input{{Text: "Payment is due within thirty days. Late payments accrue interest."}}
	first, _ := h.SummarizeBatch(context.Background(), in, false, "en")
	for i := 0; i < 3; i++ {
		again, _ := h.SummarizeBatch(context.Background(), in, false, "en")
		if again[0] != first[0] {
			t.Fatalf("non-deterministic summary: %+v vs %+v", again[0], first[0])
		}
	}
}

func TestClientSummarizeBatch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/summarize/batch" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		var req batchRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		if len(req.Clauses) != 2 || !req.IncludeTips {
			t.Errorf("request = %+v", req)
		}
		resp := batchResponse{Results: []batchResult{
			{ID: "clause_0", Summary: "You must pay on time.", Category: "Payment", RiskLevel: "low"},
			{ID: "clause_1", Summary: "Risky.", Category: "NotARealCategory", RiskLevel: "severe"},
		}}
		json.NewEncoder(w).Encode(resp)
	}))
	defer srv.Close()

	c := NewClient(srv.URL)
	inputs := []Input{{Text: "Payment terms."}, {Text: "Something odd."}}
	results, err := c.SummarizeBatch(context.Background(), inputs, true, "en")
	if err != nil {
		t.Fatalf("SummarizeBatch: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("got %d results, want 2", len(results))
	}
	if results[0].Category != "Payment" || results[0].RiskLabel != "low" || results[0].Method != "sidecar" {
		t.Errorf("result 0 = %+v", results[0])
	}
	// Unknown category and risk label are normalized, not passed through.
	if results[1].Category != segment.CategoryOther || results[1].RiskLabel != "moderate" {
		t.Errorf("result 1 not sanitized: %+v", results[1])
	}
}

func TestClientShortResponsePadsFallbacks(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		resp := batchResponse{Results: []batchResult{
			{ID: "clause_0", Summary: "Only one.", Category: "Other", RiskLevel: "low"},
		}}
		json.NewEncoder(w).Encode(resp)
	}))
	defer srv.Close()

	c := NewClient(srv.URL)
	results, err := c.SummarizeBatch(context.Background(), []Input{{Text: "a"}, {Text: "b"}}, false, "")
	if err != nil {
		t.Fatalf("SummarizeBatch: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("got %d results, want 2", len(results))
	}
	if !results[1].Fallback || !results[1].NeedsReview {
		t.Errorf("missing result should become a fallback, got %+v", results[1])
	}
}

func TestClientRejectsOversizedBatch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("oversized batch should not reach the sidecar")
	}))
	defer srv.Close()

	c := NewClient(srv.URL, WithMaxPromptTokens(100))
	_, err := c.SummarizeBatch(context.Background(), []Input{{Text: strings.Repeat("a", 1000)}}, false, "")
	if !errors.Is(err, ErrPromptTooLarge) {
		t.Errorf("err = %v, want ErrPromptTooLarge", err)
	}
}

func TestClientErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "upstream quota exceeded", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	c := NewClient(srv.URL)
	_, err := c.SummarizeBatch(context.Background(), []Input{{Text: "a"}}, false, "")
	if err == nil || !strings.Contains(err.Error(), "429") {
		t.Errorf("err = %v, want status error", err)
	}
}

package summarize

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/clauselens/clauselens/pkg/utils"
)

// Client summarizes clauses via an HTTP sidecar exposing a batch endpoint.
type Client struct {
	baseURL         string
	httpClient      *http.Client
	maxPromptTokens int
	logger          *zap.Logger
}

// ClientOption customizes a Client.
type ClientOption func(*Client)

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) { c.httpClient = hc }
}

// WithMaxPromptTokens sets the token budget enforced before submission.
func WithMaxPromptTokens(n int) ClientOption {
	return func(c *Client) { c.maxPromptTokens = n }
}

// WithClientLogger sets the logger.
func WithClientLogger(logger *zap.Logger) ClientOption {
	return func(c *Client) { c.logger = logger }
}

// NewClient creates a sidecar summarization client.
func NewClient(baseURL string, opts ...ClientOption) *Client {
	c := &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 120 * time.Second,
		},
		maxPromptTokens: 30000,
		logger:          zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type batchRequest struct {
	Clauses     []batchClause `json:"clauses"`
	IncludeTips bool          `json:"include_negotiation_tips"`
	Language    string        `json:"language,omitempty"`
}

type batchClause struct {
	ID       string `json:"id"`
	Text     string `json:"text"`
	Category string `json:"category,omitempty"`
}

type batchResponse struct {
	Results []batchResult `json:"results"`
}

type batchResult struct {
	ID             string `json:"id"`
	Summary        string `json:"summary"`
	Category       string `json:"clause_category"`
	RiskLevel      string `json:"risk_level"`
	NegotiationTip string `json:"negotiation_tip"`
}

// clauseTextCap bounds how much of a clause is sent per item; anything past
// this rarely changes the summary but burns budget.
const clauseTextCap = 2000

// SummarizeBatch submits one batch to the sidecar. It returns
// ErrPromptTooLarge without making a request when the batch's estimated
// tokens exceed the working budget, so the caller can split and retry.
func (c *Client) SummarizeBatch(ctx context.Context, inputs []Input, includeTips bool, language string) ([]ItemResult, error) {
	if len(inputs) == 0 {
		return nil, nil
	}

	total := 0
	for _, in := range inputs {
		total += EstimateTokens(in.Text)
	}
	if float64(total) > float64(c.maxPromptTokens)*promptBudgetRatio {
		return nil, fmt.Errorf("%w: %d tokens in %d clauses", ErrPromptTooLarge, total, len(inputs))
	}

	req := batchRequest{
		Clauses:     make([]batchClause, len(inputs)),
		IncludeTips: includeTips,
		Language:    language,
	}
	for i, in := range inputs {
		req.Clauses[i] = batchClause{
			ID:       fmt.Sprintf("clause_%d", i),
			Text:     utils.Truncate(in.Text, clauseTextCap),
			Category: in.Category,
		}
	}

	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/summarize/batch", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("unexpected status %d: %s", resp.StatusCode, utils.Truncate(string(respBody), 200))
	}

	var parsed batchResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	c.logger.Debug("summarized batch",
		zap.Int("clauses", len(inputs)),
		zap.Int("results", len(parsed.Results)),
		zap.Duration("took", time.Since(start)))

	// One result per input, in order. Missing trailing entries become
	// review-flagged fallbacks rather than failing the whole batch.
	results := make([]ItemResult, 0, len(inputs))
	for i := range inputs {
		if i < len(parsed.Results) {
			r := parsed.Results[i]
			results = append(results, sanitize(ItemResult{
				Summary:        r.Summary,
				Category:       r.Category,
				RiskLabel:      r.RiskLevel,
				NegotiationTip: r.NegotiationTip,
				Confidence:     0.8,
				Method:         "sidecar",
			}))
			continue
		}
		results = append(results, FallbackResults(inputs[i:i+1])...)
	}
	return results, nil
}

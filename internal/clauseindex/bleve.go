// Package clauseindex maintains a keyword search index over processed
// clauses so queries can retrieve relevant clauses by their original text,
// plain-language summary, or category.
package clauseindex

import (
	"context"
	"fmt"
	"os"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/standard"
	"github.com/blevesearch/bleve/v2/mapping"

	"github.com/clauselens/clauselens/internal/models"
)

// Index is a bleve-backed clause search index.
type Index struct {
	index bleve.Index
}

// clauseDoc is the shape indexed per clause.
type clauseDoc struct {
	DocumentID   string `json:"document_id"`
	OriginalText string `json:"original_text"`
	Summary      string `json:"summary"`
	Category     string `json:"category"`
}

// Result is one search hit.
type Result struct {
	ClauseID string  `json:"clause_id"`
	Score    float64 `json:"score"`
}

func buildMapping() *mapping.IndexMappingImpl {
	im := bleve.NewIndexMapping()

	clauseMapping := bleve.NewDocumentMapping()
	textFieldMapping := bleve.NewTextFieldMapping()
	// Standard analyzer: lowercase + tokenize without stemming, so legal
	// terms match exactly as typed.
	textFieldMapping.Analyzer = standard.Name
	clauseMapping.AddFieldMappingsAt("original_text", textFieldMapping)
	clauseMapping.AddFieldMappingsAt("summary", textFieldMapping)
	clauseMapping.AddFieldMappingsAt("category", textFieldMapping)

	keywordFieldMapping := bleve.NewKeywordFieldMapping()
	clauseMapping.AddFieldMappingsAt("document_id", keywordFieldMapping)

	im.AddDocumentMapping("clause", clauseMapping)
	im.DefaultType = "clause"
	im.DefaultMapping = clauseMapping
	return im
}

// NewMemory creates an in-memory clause index. Nothing is persisted; callers
// wanting the index to survive restarts either use Open or rebuild from
// storage on startup.
func NewMemory() (*Index, error) {
	index, err := bleve.NewMemOnly(buildMapping())
	if err != nil {
		return nil, fmt.Errorf("failed to create clause index: %w", err)
	}
	return &Index{index: index}, nil
}

// Open opens the on-disk clause index at path, creating it when absent.
// If the field mapping changes, remove the index directory to force a rebuild.
func Open(path string) (*Index, error) {
	if _, err := os.Stat(path); err == nil {
		index, openErr := bleve.Open(path)
		if openErr != nil {
			return nil, fmt.Errorf("failed to open clause index: %w", openErr)
		}
		return &Index{index: index}, nil
	}
	index, err := bleve.New(path, buildMapping())
	if err != nil {
		return nil, fmt.Errorf("failed to create clause index: %w", err)
	}
	return &Index{index: index}, nil
}

// IndexClauses adds a document's clauses to the index. Deterministic clause
// IDs make re-indexing after reprocessing an overwrite.
func (ix *Index) IndexClauses(ctx context.Context, clauses []*models.Clause) error {
	batch := ix.index.NewBatch()
	for _, clause := range clauses {
		doc := clauseDoc{
			DocumentID:   clause.DocumentID,
			OriginalText: clause.OriginalText,
			Summary:      clause.Summary,
			Category:     clause.Category,
		}
		if err := batch.Index(clause.ID, doc); err != nil {
			return fmt.Errorf("failed to index clause %s: %w", clause.ID, err)
		}
	}
	return ix.index.Batch(batch)
}

// Search returns up to limit clause hits for query, scoped to a document
// when documentID is non-empty.
func (ix *Index) Search(ctx context.Context, documentID, query string, limit int) ([]Result, error) {
	if limit <= 0 {
		limit = 10
	}

	match := bleve.NewMatchQuery(query)
	var req *bleve.SearchRequest
	if documentID != "" {
		scope := bleve.NewTermQuery(documentID)
		scope.SetField("document_id")
		req = bleve.NewSearchRequest(bleve.NewConjunctionQuery(scope, match))
	} else {
		req = bleve.NewSearchRequest(match)
	}
	req.Size = limit

	res, err := ix.index.Search(req)
	if err != nil {
		return nil, fmt.Errorf("clause search failed: %w", err)
	}

	out := make([]Result, len(res.Hits))
	for i, hit := range res.Hits {
		out[i] = Result{ClauseID: hit.ID, Score: hit.Score}
	}
	return out, nil
}

// DeleteDocument removes all of a document's clauses from the index.
func (ix *Index) DeleteDocument(ctx context.Context, documentID string, clauseCount int) error {
	batch := ix.index.NewBatch()
	for i := 0; i < clauseCount; i++ {
		batch.Delete(models.ClauseID(documentID, i))
	}
	return ix.index.Batch(batch)
}

// Close releases the index.
func (ix *Index) Close() error {
	return ix.index.Close()
}

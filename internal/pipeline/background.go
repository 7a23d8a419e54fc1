package pipeline

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/clauselens/clauselens/internal/models"
)

// embeddingTimeout bounds a detached embedding run so an unresponsive model
// cannot leak goroutines past shutdown.
const embeddingTimeout = 5 * time.Minute

// startEmbedding launches clause embedding detached from the request. The
// document is already completed; embeddings arrive later via a single batch
// update. Failures are logged, never surfaced to the document status.
func (o *Orchestrator) startEmbedding(docID string, clauses []*models.Clause) {
	o.background.Add(1)
	go func() {
		defer o.background.Done()
		ctx, cancel := context.WithTimeout(context.Background(), embeddingTimeout)
		defer cancel()
		o.embedClauses(ctx, docID, clauses)
	}()
}

// embedClauses computes embeddings with a bounded worker pool. A clause
// whose embedding fails is skipped, not fatal: the successful subset is
// persisted and per-document counters go into metadata.
func (o *Orchestrator) embedClauses(ctx context.Context, docID string, clauses []*models.Clause) {
	start := time.Now()
	workers := o.cfg.EmbedWorkers
	if workers <= 0 {
		workers = 2
	}

	var (
		mu       sync.Mutex
		embedded []*models.Clause
		failed   int
	)
	var g errgroup.Group
	g.SetLimit(workers)
	for _, clause := range clauses {
		clause := clause
		g.Go(func() error {
			vec, err := o.embed.Embed(ctx, clause.OriginalText)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				failed++
				o.logger.Warn("clause embedding failed",
					zap.String("clause_id", clause.ID), zap.Error(err))
				return nil
			}
			clause.Embedding = vec
			embedded = append(embedded, clause)
			return nil
		})
	}
	_ = g.Wait()

	if len(embedded) > 0 {
		if err := o.store.UpdateClauseEmbeddings(ctx, embedded); err != nil {
			o.logger.Warn("failed to persist clause embeddings",
				zap.String("doc_id", docID), zap.Error(err))
			failed += len(embedded)
			embedded = nil
		}
	}
	o.recordEmbeddingCounts(ctx, docID, len(embedded), failed)
	o.logger.Info("background embedding finished",
		zap.String("doc_id", docID),
		zap.Int("generated", len(embedded)),
		zap.Int("failed", failed),
		zap.Duration("took", time.Since(start)))
}

// recordEmbeddingCounts writes the generated/failed counters into the
// document metadata. Best effort: the document is already completed and its
// status never changes here.
func (o *Orchestrator) recordEmbeddingCounts(ctx context.Context, docID string, generated, failed int) {
	doc, err := o.store.GetDocument(ctx, docID)
	if err != nil {
		o.logger.Warn("failed to load document for embedding counters",
			zap.String("doc_id", docID), zap.Error(err))
		return
	}
	if doc.Metadata == nil {
		doc.Metadata = make(map[string]interface{})
	}
	doc.Metadata["embeddings_generated_count"] = generated
	doc.Metadata["embeddings_failed_count"] = failed
	if err := o.store.UpdateDocument(ctx, doc); err != nil {
		o.logger.Warn("failed to record embedding counters",
			zap.String("doc_id", docID), zap.Error(err))
	}
}

// WaitBackground blocks until all detached embedding runs have finished.
// Called on shutdown and by tests.
func (o *Orchestrator) WaitBackground() {
	o.background.Wait()
}

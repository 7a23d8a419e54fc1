package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/clauselens/clauselens/internal/clauseindex"
	"github.com/clauselens/clauselens/internal/config"
	"github.com/clauselens/clauselens/internal/embedding"
	"github.com/clauselens/clauselens/internal/extract"
	"github.com/clauselens/clauselens/internal/langdetect"
	"github.com/clauselens/clauselens/internal/models"
	"github.com/clauselens/clauselens/internal/privacy"
	"github.com/clauselens/clauselens/internal/readability"
	"github.com/clauselens/clauselens/internal/risk"
	"github.com/clauselens/clauselens/internal/segment"
	"github.com/clauselens/clauselens/internal/storage"
	"github.com/clauselens/clauselens/internal/summarize"
)

// Orchestrator runs documents through the processing stages in a fixed
// order. Stages 1-8 are synchronous; clause embeddings run detached after
// the document completes.
type Orchestrator struct {
	cfg    config.PipelineConfig
	sumCfg config.SummarizeConfig
	store  storage.Store
	summ   summarize.Summarizer
	embed  embedding.Embedder
	index  *clauseindex.Index
	logger *zap.Logger

	extractor *extract.Extractor
	detector  *langdetect.Detector
	masker    *privacy.Masker
	segmenter *segment.Segmenter
	scorer    *risk.Scorer

	background sync.WaitGroup
}

// Option customizes an Orchestrator.
type Option func(*Orchestrator)

// WithLogger sets the orchestrator logger.
func WithLogger(logger *zap.Logger) Option {
	return func(o *Orchestrator) { o.logger = logger }
}

// WithClauseIndex wires a search index updated after clause persistence.
func WithClauseIndex(ix *clauseindex.Index) Option {
	return func(o *Orchestrator) { o.index = ix }
}

// NewOrchestrator assembles a pipeline over the given store, summarizer and
// embedder.
func NewOrchestrator(cfg config.PipelineConfig, sumCfg config.SummarizeConfig, store storage.Store, summ summarize.Summarizer, embed embedding.Embedder, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		cfg:       cfg,
		sumCfg:    sumCfg,
		store:     store,
		summ:      summ,
		embed:     embed,
		logger:    zap.NewNop(),
		extractor: extract.NewExtractor(),
		detector:  langdetect.NewDetector(),
		masker:    privacy.NewMasker(),
		segmenter: segment.NewSegmenter(),
	}
	for _, opt := range opts {
		opt(o)
	}
	o.scorer = risk.NewScorer(risk.WithLogger(o.logger))
	return o
}

// Run processes one document end to end. The document row must already
// exist; Run moves it to processing, then to completed or failed. language
// may be empty or "en" to request auto-detection.
func (o *Orchestrator) Run(ctx context.Context, docID string, content []byte, filename, sessionID, language string) (*Result, error) {
	start := time.Now()
	st := &state{docID: docID, filename: filename, sessionID: sessionID}
	result := &Result{DocumentID: docID, Status: models.StatusProcessing}

	if err := o.store.UpdateDocumentStatus(ctx, docID, models.StatusProcessing); err != nil {
		return nil, o.fail(ctx, result, stageErr("status_update", err))
	}

	// Stage 1: text extraction.
	extracted, err := o.extractor.ExtractBytes(content, filename)
	if err != nil {
		return nil, o.fail(ctx, result, stageErr(StageExtraction, err))
	}
	st.text = extracted.Text
	st.pageCount = extracted.PageCount
	result.StagesCompleted = append(result.StagesCompleted, StageExtraction)

	// Stage 2: language detection. A caller-provided non-default language
	// wins; otherwise detect from the leading sample and keep the default
	// when confidence is too low.
	st.language = language
	if language == "" || language == o.cfg.DefaultLanguage {
		sample := st.text
		if len(sample) > o.cfg.LanguageSampleChars {
			sample = sample[:o.cfg.LanguageSampleChars]
		}
		st.langDetected = o.detector.Detect(sample)
		if st.langDetected.Confidence >= o.cfg.LanguageMinConf {
			st.language = st.langDetected.Language
		} else {
			st.language = o.cfg.DefaultLanguage
		}
	}
	result.Language = st.language
	result.StagesCompleted = append(result.StagesCompleted, StageLanguage)

	// Stage 3: PII masking. The masked copy and match summary are recorded
	// in metadata; the original text continues through the pipeline.
	st.maskedText, st.piiMatches = o.masker.Mask(st.text)
	result.PIIDetected = len(st.piiMatches)
	result.StagesCompleted = append(result.StagesCompleted, StageMasking)

	// Stage 4: segmentation and categorization. A document that yields no
	// candidates cannot be analyzed, so the run fails here.
	st.candidates = o.segmenter.Segment(st.text, nil)
	if len(st.candidates) == 0 {
		return nil, o.fail(ctx, result, stageErr(StageSegmentation, ErrNoClauses))
	}
	result.StagesCompleted = append(result.StagesCompleted, StageSegmentation)
	o.logger.Info("segmented document",
		zap.String("doc_id", docID),
		zap.Int("clauses", len(st.candidates)),
		zap.String("language", st.language))

	// Stage 5: summarization in concurrent token-budgeted batches.
	if err := o.summarizeAll(ctx, st); err != nil {
		return nil, o.fail(ctx, result, stageErr(StageSummarization, err))
	}
	result.StagesCompleted = append(result.StagesCompleted, StageSummarization)

	// Stages 6 and 7: risk and readability, gathered concurrently with
	// results kept in clause order.
	if err := o.analyzeAll(ctx, st); err != nil {
		return nil, o.fail(ctx, result, stageErr(StageRisk, err))
	}
	result.StagesCompleted = append(result.StagesCompleted, StageRisk, StageReadability)

	// Stage 8: assemble and persist clauses in one batch.
	st.clauses = o.assembleClauses(st)
	if err := o.store.CreateClauses(ctx, st.clauses); err != nil {
		return nil, o.fail(ctx, result, stageErr(StageStorage, err))
	}
	if o.index != nil {
		if err := o.index.IndexClauses(ctx, st.clauses); err != nil {
			o.logger.Warn("clause indexing failed", zap.String("doc_id", docID), zap.Error(err))
		}
	}
	result.StagesCompleted = append(result.StagesCompleted, StageStorage)

	// Stage 9: detached background embedding. The goroutine launches only
	// after the finalize write lands so its counter update cannot race the
	// final document write.
	startEmbed := o.embed != nil && len(st.clauses) > 0
	if startEmbed {
		result.StagesCompleted = append(result.StagesCompleted, StageEmbedding)
	}

	// Stage 10: document-level profiles and final status.
	result.RiskProfile = o.scorer.Rollup(st.assessments)
	result.Readability = readability.Profile(st.comparisons)
	result.ClauseCount = len(st.clauses)

	if err := o.finalize(ctx, st, result); err != nil {
		return nil, o.fail(ctx, result, stageErr(StageFinalize, err))
	}
	result.StagesCompleted = append(result.StagesCompleted, StageFinalize)
	result.Status = models.StatusCompleted

	if startEmbed {
		o.startEmbedding(docID, st.clauses)
	}

	o.logger.Info("document processing completed",
		zap.String("doc_id", docID),
		zap.Int("clauses", result.ClauseCount),
		zap.String("risk", string(result.RiskProfile.OverallLevel)),
		zap.Duration("took", time.Since(start)))
	return result, nil
}

// summarizeAll batches the clause candidates and summarizes the batches
// concurrently. A batch rejected for size is split in half recursively; a
// batch failing for any other reason degrades to fallback entries instead of
// failing the document.
func (o *Orchestrator) summarizeAll(ctx context.Context, st *state) error {
	inputs := make([]summarize.Input, len(st.candidates))
	for i, c := range st.candidates {
		inputs[i] = summarize.Input{Text: c.Text, Category: c.Category}
	}
	st.summaries = make([]summarize.ItemResult, len(inputs))

	batches := summarize.BuildBatches(inputs, o.sumCfg.MaxBatchClauses, o.sumCfg.MaxPromptTokens)
	includeTips := o.sumCfg.IncludeTipsOrDefault()

	g, gctx := errgroup.WithContext(ctx)
	offset := 0
	for _, batch := range batches {
		batch, offset := batch, offset
		g.Go(func() error {
			results, err := o.summarizeBatch(gctx, batch, includeTips, st.language)
			if err != nil {
				return err
			}
			copy(st.summaries[offset:], results)
			return nil
		})
		offset += len(batch)
	}
	return g.Wait()
}

// summarizeBatch runs one batch, halving recursively while the summarizer
// reports the prompt too large.
func (o *Orchestrator) summarizeBatch(ctx context.Context, batch []summarize.Input, includeTips bool, language string) ([]summarize.ItemResult, error) {
	if len(batch) == 0 {
		return nil, nil
	}
	results, err := o.summ.SummarizeBatch(ctx, batch, includeTips, language)
	if err == nil {
		if len(results) != len(batch) {
			return nil, fmt.Errorf("summarizer returned %d results for %d clauses", len(results), len(batch))
		}
		return results, nil
	}
	if errors.Is(err, summarize.ErrPromptTooLarge) && len(batch) > 1 {
		mid := len(batch) / 2
		left, lerr := o.summarizeBatch(ctx, batch[:mid], includeTips, language)
		if lerr != nil {
			return nil, lerr
		}
		right, rerr := o.summarizeBatch(ctx, batch[mid:], includeTips, language)
		if rerr != nil {
			return nil, rerr
		}
		return append(left, right...), nil
	}
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}
	o.logger.Warn("summarization batch failed, using fallbacks",
		zap.Int("clauses", len(batch)), zap.Error(err))
	return summarize.FallbackResults(batch), nil
}

// analyzeAll scores risk and compares readability for every clause. The two
// analyses run as concurrent collections; each writes results by index so
// clause order survives the concurrency.
func (o *Orchestrator) analyzeAll(ctx context.Context, st *state) error {
	n := len(st.candidates)
	st.assessments = make([]risk.Assessment, n)
	st.comparisons = make([]readability.Comparison, n)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		for i := 0; i < n; i++ {
			if gctx.Err() != nil {
				return gctx.Err()
			}
			s := st.summaries[i]
			st.assessments[i] = o.scorer.Score(st.candidates[i].Text, s.Summary, s.RiskLabel, s.Category)
		}
		return nil
	})
	g.Go(func() error {
		for i := 0; i < n; i++ {
			if gctx.Err() != nil {
				return gctx.Err()
			}
			st.comparisons[i] = readability.Compare(st.candidates[i].Text, st.summaries[i].Summary)
		}
		return nil
	})
	return g.Wait()
}

// assembleClauses joins the per-stage outputs into persistable clauses.
func (o *Orchestrator) assembleClauses(st *state) []*models.Clause {
	clauses := make([]*models.Clause, len(st.candidates))
	for i, cand := range st.candidates {
		s := st.summaries[i]
		a := st.assessments[i]
		r := st.comparisons[i]

		clauses[i] = &models.Clause{
			ID:           models.ClauseID(st.docID, i),
			DocumentID:   st.docID,
			Order:        cand.Order,
			OriginalText: cand.Text,
			Summary:      s.Summary,
			Category:     s.Category,
			RiskLevel:    a.Level,
			Readability: models.ReadabilityMetrics{
				OriginalGrade: r.Original.FleschKincaidGrade,
				SummaryGrade:  r.Summary.FleschKincaidGrade,
				GradeDelta:    r.GradeLevelDelta,
				FleschScore:   r.Summary.FleschReadingEase,
			},
			NegotiationTip: s.NegotiationTip,
			Confidence:     a.Confidence,
			NeedsReview:    s.NeedsReview || a.NeedsReview,
			Metadata: map[string]interface{}{
				"risk_score":              a.Score,
				"detected_keywords":       a.DetectedKeywords,
				"readability_improvement": r.ImprovementScore,
				"processing_method":       s.Method,
				"language":                st.language,
			},
		}
	}
	return clauses
}

// finalize writes document-level metadata and the completed status.
func (o *Orchestrator) finalize(ctx context.Context, st *state, result *Result) error {
	doc, err := o.store.GetDocument(ctx, st.docID)
	if err != nil {
		return err
	}
	doc.Language = st.language
	doc.PageCount = st.pageCount
	doc.ClauseCount = len(st.clauses)
	if doc.Metadata == nil {
		doc.Metadata = make(map[string]interface{})
	}
	doc.Metadata["pii_summary"] = privacy.Summary(st.piiMatches)
	doc.Metadata["masked"] = len(st.piiMatches) > 0
	doc.Metadata["masked_text"] = st.maskedText
	doc.Metadata["document_risk_profile"] = result.RiskProfile
	doc.Metadata["document_readability"] = result.Readability
	if st.langDetected.Method != "" {
		doc.Metadata["language_detection"] = st.langDetected
	}

	if err := o.store.UpdateDocument(ctx, doc); err != nil {
		return err
	}
	return o.store.UpdateDocumentStatus(ctx, st.docID, models.StatusCompleted)
}

// fail records the failure on the document and returns the stage error.
// The run context may itself be the cause of the failure, so the
// bookkeeping writes run on a detached context with a short deadline;
// a cancelled run must still leave the document in a terminal state.
func (o *Orchestrator) fail(ctx context.Context, result *Result, serr *StageError) error {
	result.Status = models.StatusFailed
	o.logger.Error("document processing failed",
		zap.String("doc_id", result.DocumentID),
		zap.String("stage", serr.Stage),
		zap.Error(serr.Err))

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()

	if doc, err := o.store.GetDocument(ctx, result.DocumentID); err == nil {
		if doc.Metadata == nil {
			doc.Metadata = make(map[string]interface{})
		}
		doc.Metadata["error"] = serr.Error()
		doc.Metadata["failed_stage"] = serr.Stage
		doc.Metadata["failed_stage_index"] = stageIndex(serr.Stage)
		_ = o.store.UpdateDocument(ctx, doc)
	}
	if err := o.store.UpdateDocumentStatus(ctx, result.DocumentID, models.StatusFailed); err != nil {
		o.logger.Error("failed to mark document failed",
			zap.String("doc_id", result.DocumentID), zap.Error(err))
	}
	return serr
}

// Package queue admits documents into the processing pipeline with a bounded
// number of concurrent runs. Admission uses a weighted semaphore; per-item
// contexts make queued and in-flight work cancellable.
package queue

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"
)

// ItemStatus is the lifecycle state of a queued document.
type ItemStatus string

const (
	StatusQueued     ItemStatus = "queued"
	StatusProcessing ItemStatus = "processing"
	StatusCompleted  ItemStatus = "completed"
	StatusFailed     ItemStatus = "failed"
)

// terminal reports whether the status is final.
func (s ItemStatus) terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// Item is one document's queue entry. Times are zero until reached.
type Item struct {
	DocumentID  string     `json:"doc_id"`
	Filename    string     `json:"filename"`
	FileSize    int64      `json:"file_size"`
	MimeType    string     `json:"mime_type"`
	SessionID   string     `json:"session_id,omitempty"`
	Status      ItemStatus `json:"status"`
	Progress    float64    `json:"progress"`
	CreatedAt   time.Time  `json:"created_at"`
	StartedAt   time.Time  `json:"started_at,omitempty"`
	CompletedAt time.Time  `json:"completed_at,omitempty"`
	Error       string     `json:"error_message,omitempty"`
}

// Progress checkpoints. The pipeline does not report per-stage progress back
// to the queue, so the value moves in coarse steps.
const (
	progressQueued     = 0.0
	progressProcessing = 0.5
	progressDone       = 1.0
)

// ProcessingTime returns how long the item has been (or was) processing.
func (i *Item) ProcessingTime() time.Duration {
	if i.StartedAt.IsZero() {
		return 0
	}
	if i.CompletedAt.IsZero() {
		return time.Since(i.StartedAt)
	}
	return i.CompletedAt.Sub(i.StartedAt)
}

// Status is a point-in-time summary of the queue.
type Status struct {
	TotalItems        int           `json:"total_items"`
	QueuedItems       int           `json:"queued_items"`
	ProcessingItems   int           `json:"processing_items"`
	CompletedItems    int           `json:"completed_items"`
	FailedItems       int           `json:"failed_items"`
	MaxConcurrent     int           `json:"max_concurrent"`
	AvgProcessingTime time.Duration `json:"avg_processing_time"`
	EstimatedWait     time.Duration `json:"estimated_wait_time"`
}

// ProcessFunc runs one document through the pipeline. The context is
// cancelled when the item is cancelled or the queue shuts down.
type ProcessFunc func(ctx context.Context) error

// ErrDuplicate is returned when a document ID is submitted twice while the
// first entry is still live.
var ErrDuplicate = errors.New("queue: document already queued")

// ErrUnknownItem is returned when starting a document that was never submitted.
var ErrUnknownItem = errors.New("queue: unknown document")

// errCancelled marks user-initiated cancellation.
var errCancelled = errors.New("cancelled by user")

// Queue runs document processing with bounded concurrency.
type Queue struct {
	mu      sync.Mutex
	sem     *semaphore.Weighted
	limit   int
	items   map[string]*Item
	cancels map[string]context.CancelFunc
	wg      sync.WaitGroup
	logger  *zap.Logger
}

// Option customizes a Queue.
type Option func(*Queue)

// WithLogger sets the queue logger.
func WithLogger(logger *zap.Logger) Option {
	return func(q *Queue) { q.logger = logger }
}

// New creates a queue processing at most maxConcurrent documents at once.
func New(maxConcurrent int, opts ...Option) *Queue {
	if maxConcurrent <= 0 {
		maxConcurrent = 3
	}
	q := &Queue{
		sem:     semaphore.NewWeighted(int64(maxConcurrent)),
		limit:   maxConcurrent,
		items:   make(map[string]*Item),
		cancels: make(map[string]context.CancelFunc),
		logger:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(q)
	}
	return q
}

// Submit registers a document as queued. Resubmitting an ID whose previous
// entry reached a terminal state replaces it; a live duplicate is rejected.
func (q *Queue) Submit(docID, filename string, fileSize int64, mimeType, sessionID string) (Item, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if existing, ok := q.items[docID]; ok && !existing.Status.terminal() {
		return Item{}, fmt.Errorf("%w: %s", ErrDuplicate, docID)
	}

	item := &Item{
		DocumentID: docID,
		Filename:   filename,
		FileSize:   fileSize,
		MimeType:   mimeType,
		SessionID:  sessionID,
		Status:     StatusQueued,
		Progress:   progressQueued,
		CreatedAt:  time.Now(),
	}
	q.items[docID] = item

	q.logger.Info("queued document",
		zap.String("doc_id", docID),
		zap.String("filename", filename))
	return *item, nil
}

// Start launches processing for a submitted document. The run waits for a
// concurrency permit, so at most the configured limit of documents process
// at once. Start returns immediately; fn runs on its own goroutine.
func (q *Queue) Start(ctx context.Context, docID string, fn ProcessFunc) error {
	q.mu.Lock()
	item, ok := q.items[docID]
	if !ok {
		q.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrUnknownItem, docID)
	}
	if item.Status != StatusQueued {
		q.mu.Unlock()
		return fmt.Errorf("queue: document %s is %s, not queued", docID, item.Status)
	}

	runCtx, cancel := context.WithCancel(ctx)
	q.cancels[docID] = cancel
	// Release must pair with the semaphore held at acquire time, even if
	// SetConcurrency swaps it mid-run.
	sem := q.sem
	q.mu.Unlock()

	q.wg.Add(1)
	go func() {
		defer q.wg.Done()
		defer cancel()

		if err := sem.Acquire(runCtx, 1); err != nil {
			q.finish(docID, errCancelled)
			return
		}
		defer sem.Release(1)

		q.markProcessing(docID)
		q.finish(docID, fn(runCtx))
	}()
	return nil
}

func (q *Queue) markProcessing(docID string) {
	q.mu.Lock()
	defer q.mu.Unlock()
	item, ok := q.items[docID]
	if !ok || item.Status.terminal() {
		return
	}
	item.Status = StatusProcessing
	item.Progress = progressProcessing
	item.StartedAt = time.Now()
}

// finish records the run's outcome unless the item already reached a
// terminal state (e.g. a concurrent Cancel won).
func (q *Queue) finish(docID string, err error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	delete(q.cancels, docID)

	item, ok := q.items[docID]
	if !ok || item.Status.terminal() {
		return
	}
	item.CompletedAt = time.Now()
	item.Progress = progressDone
	if err != nil {
		item.Status = StatusFailed
		item.Error = err.Error()
		q.logger.Warn("document processing failed",
			zap.String("doc_id", docID), zap.Error(err))
		return
	}
	item.Status = StatusCompleted
	q.logger.Info("document processing completed",
		zap.String("doc_id", docID),
		zap.Duration("took", item.ProcessingTime()))
}

// Cancel aborts a queued or processing document. It reports false when the
// document is unknown or already terminal.
func (q *Queue) Cancel(docID string) bool {
	q.mu.Lock()
	item, ok := q.items[docID]
	if !ok || item.Status.terminal() {
		q.mu.Unlock()
		return false
	}
	item.Status = StatusFailed
	item.Error = errCancelled.Error()
	item.Progress = progressDone
	item.CompletedAt = time.Now()
	cancel := q.cancels[docID]
	delete(q.cancels, docID)
	q.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	q.logger.Info("cancelled document", zap.String("doc_id", docID))
	return true
}

// SetConcurrency swaps in a semaphore of the new size. Runs already holding
// a permit keep it on the old semaphore until they finish, so the processing
// count may transiently exceed a lowered limit; it converges as runs drain.
func (q *Queue) SetConcurrency(maxConcurrent int) {
	if maxConcurrent <= 0 {
		return
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	q.sem = semaphore.NewWeighted(int64(maxConcurrent))
	q.limit = maxConcurrent
	q.logger.Info("updated queue concurrency", zap.Int("max_concurrent", maxConcurrent))
}

// Status summarizes the queue. Estimated wait extrapolates from the average
// processing time of completed items; zero when nothing has completed.
func (q *Queue) Status() Status {
	q.mu.Lock()
	defer q.mu.Unlock()

	st := Status{MaxConcurrent: q.limit}
	var completedTotal time.Duration
	for _, item := range q.items {
		st.TotalItems++
		switch item.Status {
		case StatusQueued:
			st.QueuedItems++
		case StatusProcessing:
			st.ProcessingItems++
		case StatusCompleted:
			st.CompletedItems++
			completedTotal += item.ProcessingTime()
		case StatusFailed:
			st.FailedItems++
		}
	}
	if st.CompletedItems > 0 {
		st.AvgProcessingTime = completedTotal / time.Duration(st.CompletedItems)
		st.EstimatedWait = time.Duration(float64(st.QueuedItems) / float64(q.limit) * float64(st.AvgProcessingTime))
	}
	return st
}

// Items returns a snapshot of all queue entries.
func (q *Queue) Items() []Item {
	q.mu.Lock()
	defer q.mu.Unlock()
	items := make([]Item, 0, len(q.items))
	for _, item := range q.items {
		items = append(items, *item)
	}
	return items
}

// Item returns a snapshot of one entry.
func (q *Queue) Item(docID string) (Item, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	item, ok := q.items[docID]
	if !ok {
		return Item{}, false
	}
	return *item, true
}

// Sweep removes terminal items that finished before the retention window.
// It returns how many entries were removed.
func (q *Queue) Sweep(olderThan time.Duration) int {
	cutoff := time.Now().Add(-olderThan)

	q.mu.Lock()
	defer q.mu.Unlock()
	removed := 0
	for id, item := range q.items {
		if item.Status.terminal() && !item.CompletedAt.IsZero() && item.CompletedAt.Before(cutoff) {
			delete(q.items, id)
			removed++
		}
	}
	if removed > 0 {
		q.logger.Info("swept queue", zap.Int("removed", removed))
	}
	return removed
}

// Wait blocks until all started runs have finished.
func (q *Queue) Wait() {
	q.wg.Wait()
}

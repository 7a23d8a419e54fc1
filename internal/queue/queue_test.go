package queue

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func submit(t *testing.T, q *Queue, id string) {
	t.Helper()
	if _, err := q.Submit(id, id+".pdf", 100, "application/pdf", "s1"); err != nil {
		t.Fatalf("Submit(%s): %v", id, err)
	}
}

func TestConcurrencyCeiling(t *testing.T) {
	q := New(2)
	ctx := context.Background()

	var active, peak int32
	var mu sync.Mutex
	release := make(chan struct{})

	ids := []string{"d1", "d2", "d3", "d4", "d5"}
	for _, id := range ids {
		submit(t, q, id)
	}
	for _, id := range ids {
		err := q.Start(ctx, id, func(ctx context.Context) error {
			n := atomic.AddInt32(&active, 1)
			mu.Lock()
			if n > peak {
				peak = n
			}
			mu.Unlock()
			<-release
			atomic.AddInt32(&active, -1)
			return nil
		})
		if err != nil {
			t.Fatalf("Start(%s): %v", id, err)
		}
	}

	// Give workers time to reach the semaphore.
	time.Sleep(50 * time.Millisecond)
	if n := q.Status().ProcessingItems; n > 2 {
		t.Errorf("processing = %d, want <= 2", n)
	}
	close(release)
	q.Wait()

	mu.Lock()
	defer mu.Unlock()
	if peak > 2 {
		t.Errorf("peak concurrency = %d, want <= 2", peak)
	}
	st := q.Status()
	if st.CompletedItems != 5 {
		t.Errorf("completed = %d, want 5", st.CompletedItems)
	}
}

func TestSubmitDuplicate(t *testing.T) {
	q := New(1)
	submit(t, q, "d1")
	if _, err := q.Submit("d1", "again.pdf", 1, "application/pdf", ""); !errors.Is(err, ErrDuplicate) {
		t.Errorf("err = %v, want ErrDuplicate", err)
	}

	// Terminal entries can be resubmitted.
	_ = q.Start(context.Background(), "d1", func(ctx context.Context) error { return nil })
	q.Wait()
	if _, err := q.Submit("d1", "again.pdf", 1, "application/pdf", ""); err != nil {
		t.Errorf("resubmit after completion: %v", err)
	}
}

func TestStartUnknownDocument(t *testing.T) {
	q := New(1)
	err := q.Start(context.Background(), "nope", func(ctx context.Context) error { return nil })
	if !errors.Is(err, ErrUnknownItem) {
		t.Errorf("err = %v, want ErrUnknownItem", err)
	}
}

func TestProcessingFailureRecorded(t *testing.T) {
	q := New(1)
	submit(t, q, "d1")
	_ = q.Start(context.Background(), "d1", func(ctx context.Context) error {
		return errors.New("extraction failed")
	})
	q.Wait()

	item, ok := q.Item("d1")
	if !ok || item.Status != StatusFailed {
		t.Fatalf("item = %+v", item)
	}
	if item.Error != "extraction failed" {
		t.Errorf("error = %q", item.Error)
	}
}

func TestProgressAdvancesThroughLifecycle(t *testing.T) {
	q := New(1)
	submit(t, q, "d1")
	item, _ := q.Item("d1")
	if item.Progress != 0 {
		t.Errorf("queued progress = %v, want 0", item.Progress)
	}

	release := make(chan struct{})
	processing := make(chan struct{})
	_ = q.Start(context.Background(), "d1", func(ctx context.Context) error {
		close(processing)
		<-release
		return nil
	})
	<-processing
	item, _ = q.Item("d1")
	if item.Progress != 0.5 {
		t.Errorf("processing progress = %v, want 0.5", item.Progress)
	}

	close(release)
	q.Wait()
	item, _ = q.Item("d1")
	if item.Progress != 1 {
		t.Errorf("terminal progress = %v, want 1", item.Progress)
	}
}

func TestCancelQueuedItem(t *testing.T) {
	q := New(1)
	block := make(chan struct{})
	submit(t, q, "running")
	_ = q.Start(context.Background(), "running", func(ctx context.Context) error {
		<-block
		return nil
	})

	// This one can't get a permit while "running" holds it.
	submit(t, q, "waiting")
	started := make(chan struct{}, 1)
	_ = q.Start(context.Background(), "waiting", func(ctx context.Context) error {
		started <- struct{}{}
		return nil
	})

	time.Sleep(20 * time.Millisecond)
	if !q.Cancel("waiting") {
		t.Fatal("Cancel should succeed for a queued item")
	}
	close(block)
	q.Wait()

	item, _ := q.Item("waiting")
	if item.Status != StatusFailed || item.Error != "cancelled by user" {
		t.Errorf("cancelled item = %+v", item)
	}
	select {
	case <-started:
		t.Error("cancelled item's processing function ran")
	default:
	}
}

func TestCancelProcessingItem(t *testing.T) {
	q := New(1)
	submit(t, q, "d1")
	entered := make(chan struct{})
	_ = q.Start(context.Background(), "d1", func(ctx context.Context) error {
		close(entered)
		<-ctx.Done()
		return ctx.Err()
	})
	<-entered

	if !q.Cancel("d1") {
		t.Fatal("Cancel should succeed for a processing item")
	}
	q.Wait()

	item, _ := q.Item("d1")
	if item.Status != StatusFailed {
		t.Errorf("status = %s, want failed", item.Status)
	}
	// The user-facing reason wins over the context error from the run.
	if item.Error != "cancelled by user" {
		t.Errorf("error = %q", item.Error)
	}
}

func TestCancelTerminalItemReturnsFalse(t *testing.T) {
	q := New(1)
	submit(t, q, "d1")
	_ = q.Start(context.Background(), "d1", func(ctx context.Context) error { return nil })
	q.Wait()

	if q.Cancel("d1") {
		t.Error("Cancel should report false for a completed item")
	}
	if q.Cancel("never-submitted") {
		t.Error("Cancel should report false for an unknown item")
	}
}

func TestSetConcurrencyTakesEffectForNewRuns(t *testing.T) {
	q := New(1)
	q.SetConcurrency(3)

	var active, peak int32
	var mu sync.Mutex
	release := make(chan struct{})
	for _, id := range []string{"a", "b", "c"} {
		submit(t, q, id)
		_ = q.Start(context.Background(), id, func(ctx context.Context) error {
			n := atomic.AddInt32(&active, 1)
			mu.Lock()
			if n > peak {
				peak = n
			}
			mu.Unlock()
			<-release
			atomic.AddInt32(&active, -1)
			return nil
		})
	}
	time.Sleep(50 * time.Millisecond)
	close(release)
	q.Wait()

	mu.Lock()
	defer mu.Unlock()
	if peak != 3 {
		t.Errorf("peak = %d, want 3 after raising the limit", peak)
	}
	if q.Status().MaxConcurrent != 3 {
		t.Errorf("MaxConcurrent = %d", q.Status().MaxConcurrent)
	}
}

func TestStatusAndEstimatedWait(t *testing.T) {
	q := New(2)
	st := q.Status()
	if st.TotalItems != 0 || st.EstimatedWait != 0 {
		t.Errorf("empty status = %+v", st)
	}

	submit(t, q, "done")
	_ = q.Start(context.Background(), "done", func(ctx context.Context) error {
		time.Sleep(10 * time.Millisecond)
		return nil
	})
	q.Wait()

	submit(t, q, "pending")
	st = q.Status()
	if st.CompletedItems != 1 || st.QueuedItems != 1 {
		t.Fatalf("status = %+v", st)
	}
	if st.AvgProcessingTime <= 0 {
		t.Error("expected a positive average processing time")
	}
	want := time.Duration(float64(st.QueuedItems) / float64(st.MaxConcurrent) * float64(st.AvgProcessingTime))
	if st.EstimatedWait != want {
		t.Errorf("estimated wait = %v, want %v", st.EstimatedWait, want)
	}
}

func TestSweep(t *testing.T) {
	q := New(1)
	submit(t, q, "old")
	_ = q.Start(context.Background(), "old", func(ctx context.Context) error { return nil })
	q.Wait()

	submit(t, q, "fresh")
	time.Sleep(5 * time.Millisecond)

	// Retention of zero removes anything already terminal.
	if removed := q.Sweep(0); removed != 1 {
		t.Errorf("removed = %d, want 1", removed)
	}
	if _, ok := q.Item("old"); ok {
		t.Error("terminal item should be swept")
	}
	if _, ok := q.Item("fresh"); !ok {
		t.Error("queued item must survive sweeping")
	}
	if len(q.Items()) != 1 {
		t.Errorf("items = %d, want 1", len(q.Items()))
	}
}

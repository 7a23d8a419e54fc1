package watcher

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"
)

func writeFile(path, content string) error {
	return os.WriteFile(path, []byte(content), 0644)
}

func TestWatcher_DropAndDebounce(t *testing.T) {
	dir := t.TempDir()

	var dropped []string
	var mu sync.Mutex
	onDrop := func(path string) {
		mu.Lock()
		dropped = append(dropped, path)
		mu.Unlock()
	}

	w := New([]string{dir}, onDrop, WithDebounce(100*time.Millisecond))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := w.Start(ctx); err != nil {
		t.Fatal(err)
	}
	defer w.Stop()

	contract := filepath.Join(dir, "contract.txt")
	if err := writeFile(contract, "clause text"); err != nil {
		t.Fatal(err)
	}
	// Rewrite within the debounce window; both writes collapse to one drop.
	if err := writeFile(contract, "clause text longer"); err != nil {
		t.Fatal(err)
	}
	if err := writeFile(filepath.Join(dir, "ignore.xyz"), "x"); err != nil {
		t.Fatal(err)
	}

	time.Sleep(400 * time.Millisecond)
	mu.Lock()
	defer mu.Unlock()
	if len(dropped) != 1 || !strings.HasSuffix(dropped[0], "contract.txt") {
		t.Errorf("dropped = %v, want one contract.txt", dropped)
	}
}

func TestWatcher_RemoveBeforeSettleCancelsDrop(t *testing.T) {
	dir := t.TempDir()

	var dropped []string
	var mu sync.Mutex
	onDrop := func(path string) {
		mu.Lock()
		dropped = append(dropped, path)
		mu.Unlock()
	}

	w := New([]string{dir}, onDrop, WithDebounce(300*time.Millisecond))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := w.Start(ctx); err != nil {
		t.Fatal(err)
	}
	defer w.Stop()

	path := filepath.Join(dir, "gone.txt")
	if err := writeFile(path, "here and gone"); err != nil {
		t.Fatal(err)
	}
	time.Sleep(50 * time.Millisecond)
	if err := os.Remove(path); err != nil {
		t.Fatal(err)
	}

	time.Sleep(500 * time.Millisecond)
	mu.Lock()
	defer mu.Unlock()
	if len(dropped) != 0 {
		t.Errorf("dropped = %v, want none for a removed file", dropped)
	}
}

func TestWatcher_AddRemoveDirectories(t *testing.T) {
	dir := t.TempDir()

	w := New(nil, nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := w.Start(ctx); err != nil {
		t.Fatal(err)
	}
	defer w.Stop()

	if err := w.AddDirectory(dir); err != nil {
		t.Fatal(err)
	}
	dirs := w.Directories()
	if len(dirs) != 1 || filepath.Clean(dirs[0]) != filepath.Clean(dir) {
		t.Errorf("Directories() = %v", dirs)
	}
	// Adding the same directory twice is a no-op.
	if err := w.AddDirectory(dir); err != nil {
		t.Fatal(err)
	}
	if len(w.Directories()) != 1 {
		t.Errorf("after duplicate add: %v", w.Directories())
	}

	if err := w.RemoveDirectory(dir); err != nil {
		t.Fatal(err)
	}
	if len(w.Directories()) != 0 {
		t.Errorf("after remove: %v", w.Directories())
	}
}

func TestWatcher_SyncExisting(t *testing.T) {
	dir := t.TempDir()
	if err := writeFile(filepath.Join(dir, "a.txt"), "existing"); err != nil {
		t.Fatal(err)
	}
	if err := writeFile(filepath.Join(dir, "ignore.xyz"), "x"); err != nil {
		t.Fatal(err)
	}

	var dropped []string
	var mu sync.Mutex
	onDrop := func(path string) {
		mu.Lock()
		dropped = append(dropped, path)
		mu.Unlock()
	}
	w := New([]string{dir}, onDrop)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := w.Start(ctx); err != nil {
		t.Fatal(err)
	}
	defer w.Stop()
	w.SyncExisting()

	mu.Lock()
	defer mu.Unlock()
	if len(dropped) != 1 || !strings.HasSuffix(dropped[0], "a.txt") {
		t.Errorf("dropped = %v, want one a.txt", dropped)
	}
}

func TestWatcher_StartCreatesMissingDirectory(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "drop")

	w := New([]string{dir}, nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := w.Start(ctx); err != nil {
		t.Fatal(err)
	}
	defer w.Stop()

	info, err := os.Stat(dir)
	if err != nil || !info.IsDir() {
		t.Errorf("drop directory was not created: %v", err)
	}
}

func TestMatchExtension(t *testing.T) {
	tests := []struct {
		path       string
		extensions []string
		want       bool
	}{
		{"/a/b.pdf", nil, true},
		{"/a/b.PDF", nil, true},
		{"/a/b.docx", nil, true},
		{"/a/b.xyz", nil, false},
		{"/a/b.xyz", []string{}, true},
		{"/a/b.md", []string{".md"}, true},
	}
	for _, tt := range tests {
		exts := tt.extensions
		if exts == nil {
			exts = defaultExtensions
		}
		w := New(nil, nil, WithExtensions(exts))
		if got := w.matchExtension(tt.path); got != tt.want {
			t.Errorf("matchExtension(%q, %v) = %v, want %v", tt.path, exts, got, tt.want)
		}
	}
}

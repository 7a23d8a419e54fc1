// Package main is the ClauseLens CLI entry point.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/clauselens/clauselens/internal/clauseindex"
	"github.com/clauselens/clauselens/internal/config"
	"github.com/clauselens/clauselens/internal/embedding"
	"github.com/clauselens/clauselens/internal/models"
	"github.com/clauselens/clauselens/internal/pipeline"
	"github.com/clauselens/clauselens/internal/queue"
	"github.com/clauselens/clauselens/internal/server"
	"github.com/clauselens/clauselens/internal/storage"
	"github.com/clauselens/clauselens/internal/summarize"
	"github.com/clauselens/clauselens/internal/watcher"
	"github.com/clauselens/clauselens/pkg/utils"
)

var version = "dev"

const defaultConfigPath = "/usr/local/etc/clauselens/config.yaml"

// loadConfig loads config from path. When path is the default, config.yaml in
// the current directory wins if it exists, so running from the project dir
// uses the project's config. Returns the config and the path actually loaded.
func loadConfig(path string) (*config.Config, string, error) {
	if path == defaultConfigPath {
		if cwd, cwdErr := os.Getwd(); cwdErr == nil {
			fallback := filepath.Join(cwd, "config.yaml")
			if _, statErr := os.Stat(fallback); statErr == nil {
				cfg, loadErr := config.Load(fallback)
				if loadErr != nil {
					return nil, "", loadErr
				}
				return cfg, fallback, nil
			}
		}
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, "", err
	}
	return cfg, path, nil
}

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}
	switch os.Args[1] {
	case "server":
		runServer()
	case "process":
		runProcess()
	case "status":
		runStatus()
	case "version", "--version", "-v":
		fmt.Printf("clauselens version %s\n", version)
	case "help", "--help", "-h":
		printUsage()
	default:
		fmt.Printf("Unknown command: %s\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Print(`Usage: clauselens <command> [flags]

Commands:
  server    run the HTTP API server with drop-folder watching
  process   process a single document file locally and print the result
  status    query a running server for document and queue counts
  version   print version
  help      show this help
`)
}

// components groups everything the pipeline runs on.
type components struct {
	Store        storage.Store
	Index        *clauseindex.Index
	Orchestrator *pipeline.Orchestrator
	Queue        *queue.Queue
}

func (c *components) Close() {
	if c.Index != nil {
		_ = c.Index.Close()
	}
	if c.Store != nil {
		_ = c.Store.Close()
	}
}

func initializeComponents(cfg *config.Config, logger *zap.Logger) (*components, error) {
	store, err := storage.NewSQLiteStore(cfg.Storage.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("open storage: %w", err)
	}

	var index *clauseindex.Index
	if cfg.Storage.ClauseIndexPath != "" {
		index, err = clauseindex.Open(cfg.Storage.ClauseIndexPath)
	} else {
		index, err = clauseindex.NewMemory()
	}
	if err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("open clause index: %w", err)
	}

	var summ summarize.Summarizer
	if cfg.Summarize.Endpoint != "" {
		summ = summarize.NewClient(cfg.Summarize.Endpoint,
			summarize.WithMaxPromptTokens(cfg.Summarize.MaxPromptTokens),
			summarize.WithClientLogger(logger))
		logger.Info("using sidecar summarizer", zap.String("endpoint", cfg.Summarize.Endpoint))
	} else {
		summ = summarize.NewHeuristic()
		logger.Info("no summarizer endpoint configured, using extractive summaries")
	}

	var embedder embedding.Embedder
	if cfg.Embedding.ModelPath != "" {
		onnx, onnxErr := embedding.NewONNXEmbedder(cfg.Embedding.ModelPath,
			cfg.Embedding.Dimensions, cfg.Embedding.MaxTokens, cfg.Embedding.CacheSize)
		if onnxErr != nil {
			logger.Warn("ONNX embedder unavailable, using hash embeddings", zap.Error(onnxErr))
			embedder = embedding.NewHashEmbedder(cfg.Embedding.Dimensions)
		} else {
			embedder = onnx
		}
	} else {
		embedder = embedding.NewHashEmbedder(cfg.Embedding.Dimensions)
	}

	orch := pipeline.NewOrchestrator(cfg.Pipeline, cfg.Summarize, store, summ, embedder,
		pipeline.WithLogger(logger), pipeline.WithClauseIndex(index))
	q := queue.New(cfg.Queue.MaxConcurrent, queue.WithLogger(logger))

	return &components{Store: store, Index: index, Orchestrator: orch, Queue: q}, nil
}

func runServer() {
	fs := flag.NewFlagSet("server", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	debug := fs.Bool("debug", false, "enable debug logging")
	_ = fs.Parse(os.Args[2:])

	cfg, resolvedConfigPath, err := loadConfig(*configPath)
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}
	debugMode := cfg.Debug || *debug
	logger, err := utils.NewLogger(debugMode)
	if err != nil {
		fmt.Printf("Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("config loaded",
		zap.String("config_path", resolvedConfigPath),
		zap.Bool("debug", debugMode))

	comps, err := initializeComponents(cfg, logger)
	if err != nil {
		logger.Fatal("Failed to initialize components", zap.Error(err))
	}
	defer comps.Close()

	procCtx, procCancel := context.WithCancel(context.Background())
	defer procCancel()

	// Drop-folder watching: settled files are read and submitted exactly
	// like an HTTP upload.
	watchSvc := watcher.New(cfg.Watch.Directories,
		func(path string) { submitDroppedFile(procCtx, path, comps, logger) },
		watcher.WithExtensions(cfg.Watch.Extensions),
		watcher.WithLogger(logger))
	if len(cfg.Watch.Directories) > 0 {
		if err := watchSvc.Start(procCtx); err != nil {
			logger.Fatal("Failed to start drop-folder watcher", zap.Error(err))
		}
		watchSvc.SyncExisting()
		defer watchSvc.Stop()
	}

	// Periodic sweep keeps the in-memory queue bounded.
	go func() {
		interval := time.Duration(cfg.Queue.SweepMinutes) * time.Minute
		retention := time.Duration(cfg.Queue.RetentionHours) * time.Hour
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-procCtx.Done():
				return
			case <-ticker.C:
				if n := comps.Queue.Sweep(retention); n > 0 {
					logger.Info("swept finished queue items", zap.Int("removed", n))
				}
			}
		}
	}()

	srv := server.NewServer(comps.Store, comps.Queue, comps.Orchestrator, comps.Index,
		&cfg.Server, logger)
	go func() {
		if err := srv.Start(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Server failed", zap.Error(err))
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	logger.Info("Shutting down...")
	procCancel()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Stop(ctx)
	comps.Queue.Wait()
	comps.Orchestrator.WaitBackground()
}

// submitDroppedFile creates a document record for a drop-folder file and
// queues it for processing.
func submitDroppedFile(ctx context.Context, path string, comps *components, logger *zap.Logger) {
	content, err := os.ReadFile(path)
	if err != nil {
		logger.Warn("failed to read dropped file", zap.String("path", path), zap.Error(err))
		return
	}
	if len(content) == 0 {
		return
	}

	docID := uuid.New().String()
	filename := filepath.Base(path)
	doc := &models.Document{
		ID:       docID,
		Filename: filename,
		Status:   models.StatusUploaded,
		Metadata: map[string]interface{}{"source": "drop_folder", "source_path": path},
	}
	if err := comps.Store.CreateDocument(ctx, doc); err != nil {
		logger.Error("failed to create document for dropped file",
			zap.String("path", path), zap.Error(err))
		return
	}
	if _, err := comps.Queue.Submit(docID, filename, int64(len(content)), "", ""); err != nil {
		logger.Error("failed to queue dropped file", zap.String("path", path), zap.Error(err))
		return
	}
	err = comps.Queue.Start(ctx, docID, func(runCtx context.Context) error {
		_, runErr := comps.Orchestrator.Run(runCtx, docID, content, filename, "", "")
		return runErr
	})
	if err != nil {
		logger.Error("failed to start dropped file", zap.String("path", path), zap.Error(err))
		return
	}
	logger.Info("dropped file queued", zap.String("doc_id", docID), zap.String("path", path))
}

func runProcess() {
	fs := flag.NewFlagSet("process", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	language := fs.String("language", "", "document language (empty = auto-detect)")
	debug := fs.Bool("debug", false, "enable debug logging")
	_ = fs.Parse(os.Args[2:])

	if fs.NArg() < 1 {
		fmt.Println("Usage: clauselens process [flags] <file>")
		os.Exit(1)
	}
	path := fs.Arg(0)

	cfg, _, err := loadConfig(*configPath)
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}
	logger, err := utils.NewLogger(cfg.Debug || *debug)
	if err != nil {
		fmt.Printf("Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	comps, err := initializeComponents(cfg, logger)
	if err != nil {
		logger.Fatal("Failed to initialize components", zap.Error(err))
	}
	defer comps.Close()

	content, err := os.ReadFile(path)
	if err != nil {
		fmt.Printf("Failed to read %s: %v\n", path, err)
		os.Exit(1)
	}

	ctx := context.Background()
	docID := uuid.New().String()
	filename := filepath.Base(path)
	doc := &models.Document{ID: docID, Filename: filename, Status: models.StatusUploaded}
	if err := comps.Store.CreateDocument(ctx, doc); err != nil {
		fmt.Printf("Failed to create document: %v\n", err)
		os.Exit(1)
	}

	result, err := comps.Orchestrator.Run(ctx, docID, content, filename, "", *language)
	if err != nil {
		fmt.Printf("Processing failed: %v\n", err)
		os.Exit(1)
	}
	comps.Orchestrator.WaitBackground()

	out, _ := json.MarshalIndent(result, "", "  ")
	fmt.Println(string(out))
}

func runStatus() {
	fs := flag.NewFlagSet("status", flag.ExitOnError)
	serverURL := fs.String("server", "http://localhost:8080", "server URL")
	_ = fs.Parse(os.Args[2:])

	resp, err := http.Get(*serverURL + "/api/v1/status")
	if err != nil {
		fmt.Printf("Failed to reach server: %v\n", err)
		os.Exit(1)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK {
		fmt.Printf("Server returned %d: %s\n", resp.StatusCode, body)
		os.Exit(1)
	}
	var pretty json.RawMessage = body
	out, err := json.MarshalIndent(pretty, "", "  ")
	if err != nil {
		fmt.Println(string(body))
		return
	}
	fmt.Println(string(out))
}

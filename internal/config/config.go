// Package config provides configuration loading and structs for the ClauseLens server.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the application.
type Config struct {
	Debug     bool            `yaml:"debug"`
	Server    ServerConfig    `yaml:"server"`
	Storage   StorageConfig   `yaml:"storage"`
	Queue     QueueConfig     `yaml:"queue"`
	Pipeline  PipelineConfig  `yaml:"pipeline"`
	Summarize SummarizeConfig `yaml:"summarize"`
	Embedding EmbeddingConfig `yaml:"embedding"`
	Watch     WatchConfig     `yaml:"watch"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// StorageConfig holds paths for the database and indices.
type StorageConfig struct {
	DatabasePath    string `yaml:"database_path"`
	ClauseIndexPath string `yaml:"clause_index_path"`
}

// QueueConfig holds processing queue settings.
type QueueConfig struct {
	MaxConcurrent  int `yaml:"max_concurrent"`
	RetentionHours int `yaml:"retention_hours"`
	SweepMinutes   int `yaml:"sweep_minutes"`
}

// PipelineConfig holds settings for the per-document processing pipeline.
type PipelineConfig struct {
	DefaultLanguage     string  `yaml:"default_language"`
	LanguageSampleChars int     `yaml:"language_sample_chars"`
	LanguageMinConf     float64 `yaml:"language_min_confidence"`
	EmbedWorkers        int     `yaml:"embed_workers"`
}

// SummarizeConfig holds clause summarization settings.
type SummarizeConfig struct {
	Endpoint        string `yaml:"endpoint"`
	MaxPromptTokens int    `yaml:"max_prompt_tokens"`
	MaxBatchClauses int    `yaml:"max_batch_clauses"`
	IncludeTips     *bool  `yaml:"include_tips"`
}

// IncludeTipsOrDefault returns whether negotiation tips are requested; defaults to true.
func (s *SummarizeConfig) IncludeTipsOrDefault() bool {
	if s.IncludeTips != nil {
		return *s.IncludeTips
	}
	return true
}

// EmbeddingConfig holds ONNX embedder settings.
type EmbeddingConfig struct {
	ModelPath  string `yaml:"model_path"`
	Dimensions int    `yaml:"dimensions"`
	MaxTokens  int    `yaml:"max_tokens"`
	CacheSize  int    `yaml:"cache_size"`
}

// WatchConfig holds drop-folder watch settings.
type WatchConfig struct {
	Directories []string `yaml:"directories"`
	Extensions  []string `yaml:"extensions"`
}

// Load reads and parses the config file at path, expands paths, and applies defaults.
// Returns an error if the file cannot be read or parsed.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	ApplyDefaults(&cfg)

	configDir := filepath.Dir(path)
	cfg.Storage.DatabasePath = expandPath(cfg.Storage.DatabasePath, configDir)
	cfg.Storage.ClauseIndexPath = expandPath(cfg.Storage.ClauseIndexPath, configDir)
	cfg.Embedding.ModelPath = expandPath(cfg.Embedding.ModelPath, configDir)
	for i := range cfg.Watch.Directories {
		cfg.Watch.Directories[i] = expandPath(cfg.Watch.Directories[i], configDir)
	}

	return &cfg, nil
}

// expandPath converts a path to absolute. Paths starting with "./" are relative to configDir;
// other relative paths are relative to the home directory.
func expandPath(path string, configDir string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	if strings.HasPrefix(path, "./") || path == "." {
		return filepath.Join(configDir, path)
	}
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, path)
	}
	return path
}

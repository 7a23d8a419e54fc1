package config

// ApplyDefaults sets default values for any zero values in cfg.
func ApplyDefaults(cfg *Config) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "localhost"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Storage.DatabasePath == "" {
		cfg.Storage.DatabasePath = "/usr/local/var/clauselens/data/db/documents.db"
	}
	if cfg.Storage.ClauseIndexPath == "" {
		cfg.Storage.ClauseIndexPath = "/usr/local/var/clauselens/data/indices/clauses"
	}
	if cfg.Queue.MaxConcurrent == 0 {
		cfg.Queue.MaxConcurrent = 3
	}
	if cfg.Queue.RetentionHours == 0 {
		cfg.Queue.RetentionHours = 24
	}
	if cfg.Queue.SweepMinutes == 0 {
		cfg.Queue.SweepMinutes = 60
	}
	if cfg.Pipeline.DefaultLanguage == "" {
		cfg.Pipeline.DefaultLanguage = "en"
	}
	if cfg.Pipeline.LanguageSampleChars == 0 {
		cfg.Pipeline.LanguageSampleChars = 2000
	}
	if cfg.Pipeline.LanguageMinConf == 0 {
		cfg.Pipeline.LanguageMinConf = 0.6
	}
	if cfg.Pipeline.EmbedWorkers == 0 {
		cfg.Pipeline.EmbedWorkers = 2
	}
	if cfg.Summarize.MaxPromptTokens == 0 {
		cfg.Summarize.MaxPromptTokens = 30000
	}
	if cfg.Summarize.MaxBatchClauses == 0 {
		cfg.Summarize.MaxBatchClauses = 10
	}
	if cfg.Embedding.Dimensions == 0 {
		cfg.Embedding.Dimensions = 384
	}
	if cfg.Embedding.MaxTokens == 0 {
		cfg.Embedding.MaxTokens = 256
	}
	if cfg.Embedding.CacheSize == 0 {
		cfg.Embedding.CacheSize = 10000
	}
	if cfg.Watch.Extensions == nil {
		cfg.Watch.Extensions = []string{".txt", ".md", ".pdf", ".docx", ".rtf", ".odt"}
	}
}

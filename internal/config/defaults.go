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
		cfg.Storage.DatabasePath = "./db/knowledge.sqlite"
	}
	if cfg.Bucket.Provider == "" {
		if cfg.Bucket.Dir != "" {
			cfg.Bucket.Provider = "dir"
		} else {
			cfg.Bucket.Provider = "gcs"
		}
	}
	if cfg.Model.APIBase == "" {
		cfg.Model.APIBase = "https://generativelanguage.googleapis.com/v1beta"
	}
	if cfg.Model.Embedding == "" {
		cfg.Model.Embedding = "text-embedding-004"
	}
	if cfg.Model.Generation == "" {
		cfg.Model.Generation = "gemini-2.0-flash"
	}
	if cfg.Model.Classification == "" {
		cfg.Model.Classification = cfg.Model.Generation
	}
	if cfg.Ingest.ChunkSize == 0 {
		cfg.Ingest.ChunkSize = 2000
	}
	if cfg.Ingest.ChunkOverlap == 0 {
		cfg.Ingest.ChunkOverlap = 200
	}
	if cfg.Ingest.ChunkPauseMS == 0 {
		cfg.Ingest.ChunkPauseMS = 100
	}
	if cfg.Ingest.DocumentPauseS == 0 {
		cfg.Ingest.DocumentPauseS = 2
	}
	if cfg.Ingest.CooldownS == 0 {
		cfg.Ingest.CooldownS = 60
	}
	if cfg.Ingest.OCR.BatchPages == 0 {
		cfg.Ingest.OCR.BatchPages = 10
	}
	if cfg.Ingest.OCR.Retries == 0 {
		cfg.Ingest.OCR.Retries = 3
	}
	if cfg.Ingest.OCR.RetryPauseS == 0 {
		cfg.Ingest.OCR.RetryPauseS = 15
	}
	if cfg.Ingest.OCR.MinTextChars == 0 {
		cfg.Ingest.OCR.MinTextChars = 50
	}
	if cfg.Search.Threshold == 0 {
		cfg.Search.Threshold = 0.45
	}
	if cfg.Search.TopK == 0 {
		cfg.Search.TopK = 5
	}
	if cfg.Search.BroadK == 0 {
		cfg.Search.BroadK = 100
	}
	if cfg.Category.MaxVocabulary == 0 {
		cfg.Category.MaxVocabulary = 300
	}
}

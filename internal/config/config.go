// Package config provides configuration loading and structs for the
// Co-Founder knowledge engine.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the application. It is built once at
// process start and passed into every component constructor; no component
// reads environment or files on its own.
type Config struct {
	Debug    bool           `yaml:"debug"`
	Server   ServerConfig   `yaml:"server"`
	Storage  StorageConfig  `yaml:"storage"`
	Bucket   BucketConfig   `yaml:"bucket"`
	Model    ModelConfig    `yaml:"model"`
	Ingest   IngestConfig   `yaml:"ingest"`
	Search   SearchConfig   `yaml:"search"`
	Category CategoryConfig `yaml:"category"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// StorageConfig holds the knowledge store location.
type StorageConfig struct {
	DatabasePath string `yaml:"database_path"`
}

// BucketConfig selects and configures the source library backend.
// Provider "gcs" reads the library from a Cloud Storage bucket (credentials
// via GOOGLE_APPLICATION_CREDENTIALS); provider "dir" reads a local
// directory, which is also what the watch mode observes.
type BucketConfig struct {
	Provider string `yaml:"provider"`
	Name     string `yaml:"name"`
	Prefix   string `yaml:"prefix"`
	Dir      string `yaml:"dir"`
}

// ModelConfig names the external models and API endpoint. The API key is
// deliberately not part of the file; it comes from the GEMINI_API_KEY
// environment variable (optionally via .env) and is injected at startup.
type ModelConfig struct {
	APIBase        string `yaml:"api_base"`
	Embedding      string `yaml:"embedding"`
	Generation     string `yaml:"generation"`
	Classification string `yaml:"classification"`
	APIKey         string `yaml:"-"`
}

// IngestConfig holds chunking, throttling, and OCR-fallback settings.
type IngestConfig struct {
	ChunkSize      int       `yaml:"chunk_size"`
	ChunkOverlap   int       `yaml:"chunk_overlap"`
	ChunkPauseMS   int       `yaml:"chunk_pause_ms"`
	DocumentPauseS int       `yaml:"document_pause_s"`
	CooldownS      int       `yaml:"cooldown_s"`
	OCR            OCRConfig `yaml:"ocr"`
}

// OCRConfig holds the scanned-PDF transcription fallback settings.
type OCRConfig struct {
	BatchPages   int `yaml:"batch_pages"`
	Retries      int `yaml:"retries"`
	RetryPauseS  int `yaml:"retry_pause_s"`
	MinTextChars int `yaml:"min_text_chars"`
}

// SearchConfig holds similarity search settings. Threshold is the relevance
// floor below which chunks are discarded; TopK is the narrow single-pass
// result count and BroadK the "retrieve broadly" count used by the expert
// answer flow.
type SearchConfig struct {
	Threshold float64 `yaml:"threshold"`
	TopK      int     `yaml:"top_k"`
	BroadK    int     `yaml:"broad_k"`
}

// CategoryConfig holds the optional two-stage category narrowing settings.
type CategoryConfig struct {
	Enabled       bool   `yaml:"enabled"`
	MapPath       string `yaml:"map_path"`
	MaxVocabulary int    `yaml:"max_vocabulary"`
}

// Load reads and parses the config file at path, expands paths relative to
// the config directory, and applies defaults.
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
	cfg.Category.MapPath = expandPath(cfg.Category.MapPath, configDir)
	if cfg.Bucket.Dir != "" {
		cfg.Bucket.Dir = expandPath(cfg.Bucket.Dir, configDir)
	}

	return &cfg, nil
}

// Validate checks settings that are fatal at startup: a usable bucket
// definition and, when requireKey is set, the model API key.
func (c *Config) Validate(requireKey bool) error {
	switch c.Bucket.Provider {
	case "gcs":
		if c.Bucket.Name == "" {
			return fmt.Errorf("bucket.name is required for the gcs provider")
		}
	case "dir":
		if c.Bucket.Dir == "" {
			return fmt.Errorf("bucket.dir is required for the dir provider")
		}
	default:
		return fmt.Errorf("unknown bucket provider %q (want gcs or dir)", c.Bucket.Provider)
	}
	if requireKey && c.Model.APIKey == "" {
		return fmt.Errorf("GEMINI_API_KEY is not set")
	}
	return nil
}

// expandPath converts a path to absolute. Paths starting with "./" are
// relative to configDir; other relative paths are relative to the home
// directory.
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

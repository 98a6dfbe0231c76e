package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/dgallion1/kgest/internal/chunker"
	"github.com/dgallion1/kgest/internal/extract"
)

type Config struct {
	Port string

	// Auth
	APIKey string

	// Claude extraction
	AnthropicAPIKey     string
	AnthropicModel      string
	ExtractInstructions string
	ReuseTriplets       bool

	// Persistence
	DBPath          string
	SearchIndexPath string

	// Optional pathstore mirror
	PathstoreURL    string
	PathstoreAPIKey string

	// Worker pool
	WorkerCount          int
	MaxQueueSize         int
	MaxConcurrentExtract int

	// Upload limits
	MaxUploadBytes int64

	// Chunking
	ChunkStrategy string

	// Job state
	JobTTL time.Duration

	// PDF
	PDFFallbackPdftotext bool

	LogLevel slog.Level
}

func Load() Config {
	cfg := Config{
		Port: envOr("PORT", "8090"),

		APIKey: os.Getenv("KGEST_API_KEY"),

		AnthropicAPIKey:     os.Getenv("ANTHROPIC_API_KEY"),
		AnthropicModel:      envOr("ANTHROPIC_MODEL", "claude-sonnet-4-5-20250929"),
		ExtractInstructions: envOr("EXTRACT_INSTRUCTIONS", string(extract.General)),
		ReuseTriplets:       envBool("REUSE_TRIPLETS", true),

		DBPath:          envOr("DB_PATH", "kgest.db"),
		SearchIndexPath: os.Getenv("SEARCH_INDEX_PATH"),

		PathstoreURL:    os.Getenv("PATHSTORE_URL"),
		PathstoreAPIKey: os.Getenv("PATHSTORE_API_KEY"),

		WorkerCount:          envInt("WORKER_COUNT", 4),
		MaxQueueSize:         envInt("MAX_QUEUE_SIZE", 100),
		MaxConcurrentExtract: envInt("MAX_CONCURRENT_EXTRACT", 5),

		MaxUploadBytes: envInt64("MAX_UPLOAD_BYTES", 52428800), // 50MB

		ChunkStrategy: envOr("CHUNK_STRATEGY", string(chunker.HeadersFirst)),

		JobTTL: envDuration("JOB_TTL", 1*time.Hour),

		PDFFallbackPdftotext: envBool("PDF_FALLBACK_PDFTOTEXT", true),

		LogLevel: envLevel("LOG_LEVEL", slog.LevelInfo),
	}

	if cfg.WorkerCount <= 0 {
		cfg.WorkerCount = 4
	}
	if cfg.MaxQueueSize <= 0 {
		cfg.MaxQueueSize = 100
	}
	if cfg.MaxConcurrentExtract <= 0 {
		cfg.MaxConcurrentExtract = 5
	}
	if cfg.MaxUploadBytes <= 0 {
		cfg.MaxUploadBytes = 52428800
	}
	if cfg.JobTTL <= 0 {
		cfg.JobTTL = 1 * time.Hour
	}

	return cfg
}

// Validate checks the settings the HTTP service needs.
func (c Config) Validate() error {
	if c.APIKey == "" {
		return fmt.Errorf("KGEST_API_KEY is required")
	}
	if c.AnthropicAPIKey == "" {
		return fmt.Errorf("ANTHROPIC_API_KEY is required")
	}
	if (c.PathstoreURL == "") != (c.PathstoreAPIKey == "") {
		return fmt.Errorf("PATHSTORE_URL and PATHSTORE_API_KEY must be set together")
	}
	if _, err := c.Strategy(); err != nil {
		return err
	}
	if _, err := c.Instructions(); err != nil {
		return err
	}
	return nil
}

// Strategy parses CHUNK_STRATEGY.
func (c Config) Strategy() (chunker.Strategy, error) {
	s, err := chunker.ParseStrategy(c.ChunkStrategy)
	if err != nil {
		return "", fmt.Errorf("CHUNK_STRATEGY: %w", err)
	}
	return s, nil
}

// Instructions parses EXTRACT_INSTRUCTIONS.
func (c Config) Instructions() (extract.Instructions, error) {
	in, err := extract.ParseInstructions(c.ExtractInstructions)
	if err != nil {
		return "", fmt.Errorf("EXTRACT_INSTRUCTIONS: %w", err)
	}
	return in, nil
}

// MirrorEnabled reports whether extracted graphs are copied to pathstore.
func (c Config) MirrorEnabled() bool {
	return c.PathstoreURL != "" && c.PathstoreAPIKey != ""
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envInt64(key string, fallback int64) int64 {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			return n
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

func envLevel(key string, fallback slog.Level) slog.Level {
	if v := os.Getenv(key); v != "" {
		var l slog.Level
		if err := l.UnmarshalText([]byte(strings.TrimSpace(v))); err == nil {
			return l
		}
	}
	return fallback
}

package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/dgallion1/reportedit/internal/document"
)

type Config struct {
	ListenAddr string
	LogLevel   slog.Level

	// Auth
	APIKey string

	// Persistence. An empty DatabaseURL keeps reports in memory.
	DatabaseURL   string
	MigrationsDir string

	// Edit lock. An empty RedisURL uses an in-process lock.
	RedisURL     string
	EditLockTTL  time.Duration
	EditLockWait time.Duration

	// Report files. MinIO is used when MinIOEndpoint is set.
	StorageDir     string
	MinIOEndpoint  string
	MinIOAccessKey string
	MinIOSecretKey string
	MinIOBucket    string
	MinIOUseSSL    bool

	// Model. An empty AnthropicAPIKey disables chat and generation.
	AnthropicAPIKey string
	AnthropicModel  string
	LLMStatsWindow  time.Duration

	// Editing
	VisibleIDPolicy document.ResolvePolicy

	// Generation jobs
	WorkerCount           int
	MaxQueueSize          int
	MaxSectionConcurrency int
	JobTTL                time.Duration
	ChunkSize             int
	ChunkOverlap          int
	ContextTokens         int

	// Upload limits
	MaxUploadBytes int64

	// PDF
	PDFFallbackPdftotext bool
}

func Load() (Config, error) {
	cfg := Config{
		ListenAddr: envOr("LISTEN_ADDR", ":8090"),

		APIKey: os.Getenv("API_KEY"),

		DatabaseURL:   os.Getenv("DATABASE_URL"),
		MigrationsDir: envOr("MIGRATIONS_DIR", "db/migrations"),

		RedisURL:     os.Getenv("REDIS_URL"),
		EditLockTTL:  envDuration("EDIT_LOCK_TTL", 30*time.Second),
		EditLockWait: envDuration("EDIT_LOCK_WAIT", 2*time.Second),

		StorageDir:     envOr("STORAGE_DIR", "./data/reports"),
		MinIOEndpoint:  os.Getenv("MINIO_ENDPOINT"),
		MinIOAccessKey: os.Getenv("MINIO_ACCESS_KEY"),
		MinIOSecretKey: os.Getenv("MINIO_SECRET_KEY"),
		MinIOBucket:    envOr("MINIO_BUCKET", "reports"),
		MinIOUseSSL:    envBool("MINIO_USE_SSL", false),

		AnthropicAPIKey: os.Getenv("ANTHROPIC_API_KEY"),
		AnthropicModel:  envOr("ANTHROPIC_MODEL", "claude-sonnet-4-5-20250929"),
		LLMStatsWindow:  envDuration("LLM_STATS_WINDOW", 15*time.Minute),

		WorkerCount:           envInt("WORKER_COUNT", 2),
		MaxQueueSize:          envInt("MAX_QUEUE_SIZE", 50),
		MaxSectionConcurrency: envInt("MAX_SECTION_CONCURRENCY", 4),
		JobTTL:                envDuration("JOB_TTL", 1*time.Hour),
		ChunkSize:             envInt("CHUNK_SIZE", 800),
		ChunkOverlap:          envInt("CHUNK_OVERLAP", 100),
		ContextTokens:         envInt("SOURCE_CONTEXT_TOKENS", 3000),

		MaxUploadBytes: envInt64("MAX_UPLOAD_BYTES", 52428800), // 50MB

		PDFFallbackPdftotext: envBool("PDF_FALLBACK_PDFTOTEXT", true),
	}

	var err error
	if cfg.LogLevel, err = parseLevel(envOr("LOG_LEVEL", "info")); err != nil {
		return cfg, err
	}
	if cfg.VisibleIDPolicy, err = document.ParseResolvePolicy(envOr("VISIBLE_ID_POLICY", "fallback-raw")); err != nil {
		return cfg, fmt.Errorf("VISIBLE_ID_POLICY: %w", err)
	}

	if cfg.EditLockTTL <= 0 {
		cfg.EditLockTTL = 30 * time.Second
	}
	if cfg.EditLockWait < 0 {
		cfg.EditLockWait = 0
	}
	if cfg.WorkerCount <= 0 {
		cfg.WorkerCount = 2
	}
	if cfg.MaxQueueSize <= 0 {
		cfg.MaxQueueSize = 50
	}
	if cfg.MaxSectionConcurrency <= 0 {
		cfg.MaxSectionConcurrency = 4
	}
	if cfg.JobTTL <= 0 {
		cfg.JobTTL = 1 * time.Hour
	}
	if cfg.ChunkSize <= 0 {
		cfg.ChunkSize = 800
	}
	if cfg.ChunkOverlap < 0 || cfg.ChunkOverlap >= cfg.ChunkSize {
		cfg.ChunkOverlap = cfg.ChunkSize / 8
	}
	if cfg.ContextTokens <= 0 {
		cfg.ContextTokens = 3000
	}
	if cfg.MaxUploadBytes <= 0 {
		cfg.MaxUploadBytes = 52428800
	}
	if cfg.LLMStatsWindow <= 0 {
		cfg.LLMStatsWindow = 15 * time.Minute
	}

	return cfg, nil
}

func (c Config) Validate() error {
	if c.APIKey == "" {
		return fmt.Errorf("API_KEY is required")
	}
	if c.MinIOEndpoint != "" && (c.MinIOAccessKey == "" || c.MinIOSecretKey == "") {
		return fmt.Errorf("MINIO_ACCESS_KEY and MINIO_SECRET_KEY are required with MINIO_ENDPOINT")
	}
	return nil
}

func parseLevel(s string) (slog.Level, error) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(strings.ToUpper(s))); err != nil {
		return l, fmt.Errorf("LOG_LEVEL: %w", err)
	}
	return l, nil
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

package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Port string

	// Auth
	VeridocAPIKey string

	// Gemini grounding service
	GeminiAPIKey  string
	GeminiBaseURL string
	VerifyModel   string
	MetadataModel string

	// Upload limits
	MaxUploadBytes int64

	// Chunking defaults
	ChunkSize    int
	ChunkOverlap int

	// Verification pacing
	BatchSize  int
	ChunkDelay time.Duration
	BatchDelay time.Duration
	MaxRetries int

	// Confidence score range
	ScoreMin int
	ScoreMax int

	// Session store
	DocumentTTL time.Duration

	// Parsing fallbacks
	PDFFallbackPdftotext bool
	DOCXViaLibreOffice   bool
}

func Load() Config {
	// Local development keeps keys in a .env file; a missing file is fine.
	_ = godotenv.Load()

	cfg := Config{
		Port: envOr("PORT", "8090"),

		VeridocAPIKey: os.Getenv("VERIDOC_API_KEY"),

		GeminiAPIKey:  os.Getenv("GEMINI_API_KEY"),
		GeminiBaseURL: envOr("GEMINI_BASE_URL", "https://generativelanguage.googleapis.com/v1beta"),
		VerifyModel:   envOr("VERIFY_MODEL", "gemini-2.5-flash"),
		MetadataModel: envOr("METADATA_MODEL", "gemini-2.5-flash-lite"),

		MaxUploadBytes: envInt64("MAX_UPLOAD_BYTES", 104857600), // 100MB

		ChunkSize:    envInt("CHUNK_SIZE", 1000),
		ChunkOverlap: envInt("CHUNK_OVERLAP", 100),

		BatchSize:  envInt("VERIFY_BATCH_SIZE", 3),
		ChunkDelay: envDuration("VERIFY_CHUNK_DELAY", 1500*time.Millisecond),
		BatchDelay: envDuration("VERIFY_BATCH_DELAY", 3*time.Second),
		MaxRetries: envInt("VERIFY_MAX_RETRIES", 3),

		ScoreMin: envInt("VERIFY_SCORE_MIN", 1),
		ScoreMax: envInt("VERIFY_SCORE_MAX", 10),

		DocumentTTL: envDuration("DOCUMENT_TTL", 1*time.Hour),

		PDFFallbackPdftotext: envBool("PDF_FALLBACK_PDFTOTEXT", true),
		DOCXViaLibreOffice:   envBool("DOCX_VIA_LIBREOFFICE", true),
	}

	if cfg.MaxUploadBytes <= 0 {
		cfg.MaxUploadBytes = 104857600
	}
	if cfg.ChunkSize <= 0 {
		cfg.ChunkSize = 1000
	}
	if cfg.ChunkOverlap < 0 || cfg.ChunkOverlap >= cfg.ChunkSize {
		cfg.ChunkOverlap = 100
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 3
	}
	if cfg.ChunkDelay < 0 {
		cfg.ChunkDelay = 1500 * time.Millisecond
	}
	if cfg.BatchDelay < 0 {
		cfg.BatchDelay = 3 * time.Second
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 3
	}
	if cfg.ScoreMin <= 0 {
		cfg.ScoreMin = 1
	}
	if cfg.ScoreMax < cfg.ScoreMin {
		cfg.ScoreMax = 10
	}
	if cfg.DocumentTTL <= 0 {
		cfg.DocumentTTL = 1 * time.Hour
	}

	return cfg
}

func (c Config) Validate() error {
	if c.GeminiAPIKey == "" {
		return fmt.Errorf("GEMINI_API_KEY is required")
	}
	if c.VeridocAPIKey == "" {
		return fmt.Errorf("VERIDOC_API_KEY is required")
	}
	return nil
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

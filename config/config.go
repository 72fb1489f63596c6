// Package config reads the environment-level configuration surface.
// Every knob has a default and stays overridable per call in the core.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

type Config struct {
	// Embedding model
	EmbeddingURL   string
	EmbeddingModel string
	EmbeddingDim   int

	// Vector index
	IndexName string

	// Core defaults
	ChunkSize      int
	ChunkOverlap   int
	TopK           int
	ScoreThreshold float64

	// Answer LLM
	LLMURL   string
	LLMModel string

	// HTTP server
	ServerAddr string

	// Converter sidecar for PDF/Office extraction
	ConverterURL string

	// PDF header/footer bands to trim before conversion, in points
	PDFCropTop    float64
	PDFCropBottom float64

	// Loader daemon
	SourceDir      string
	ArchiveDir     string
	BadDir         string
	MonitoringTime time.Duration
}

// FromEnv builds the configuration from environment variables, falling back
// to the reference defaults.
func FromEnv() Config {
	return Config{
		EmbeddingURL:   getEnv("OLLAMA_EMBEDDING_URL", "http://localhost:11434/api/embeddings"),
		EmbeddingModel: getEnv("OLLAMA_EMBEDDING_MODEL", "all-minilm"),
		EmbeddingDim:   getEnvInt("EMBEDDING_DIM", 384),

		IndexName: getEnv("KB_INDEX_NAME", "finstack_knowledge_base"),

		ChunkSize:      getEnvInt("CHUNK_SIZE", 500),
		ChunkOverlap:   getEnvInt("CHUNK_OVERLAP", 50),
		TopK:           getEnvInt("TOP_K", 5),
		ScoreThreshold: getEnvFloat("SCORE_THRESHOLD", 0.3),

		LLMURL:   getEnv("LLM_URL", "http://localhost:11434/api/generate"),
		LLMModel: getEnv("LLM_MODEL", "llama3.1:8b"),

		ServerAddr: getEnv("SERVER_ADDR", ":8080"),

		ConverterURL: getEnv("CONVERTER_URL", "http://localhost:5001/v1/convert/file"),

		PDFCropTop:    getEnvFloat("PDF_CROP_TOP", 46),
		PDFCropBottom: getEnvFloat("PDF_CROP_BOTTOM", 57),

		SourceDir:      getEnv("LOADER_SOURCE_DIR", "data/inbox"),
		ArchiveDir:     getEnv("LOADER_ARCHIVE_DIR", "data/archive"),
		BadDir:         getEnv("LOADER_BAD_DIR", "data/bad"),
		MonitoringTime: getEnvDuration("LOADER_MONITORING_TIME", 5*time.Second),
	}
}

// PostgresDSN assembles the connection string from the PG_* variables.
func PostgresDSN() string {
	port := getEnvInt("PG_PORT", 5432)
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=disable",
		getEnv("PG_HOST", "localhost"),
		port,
		getEnv("PG_USER", "postgres"),
		os.Getenv("PG_PASS"),
		getEnv("PG_DB_NAME", "finstack"),
	)
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

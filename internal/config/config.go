// Package config reads the flat env-var configuration surface the
// engine is tuned with. Every knob enumerated in spec.md §6 has a
// getter here, each with the spec's documented default.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Load reads the .env file specified by ENGRAM_ENV (or .env by default),
// then loads the corresponding .secret file if it exists.
// All config is flat env vars read via os.Getenv after loading.
func Load() error {
	envFile := os.Getenv("ENGRAM_ENV")
	if envFile == "" {
		envFile = ".env"
	}

	// Load main env file (ignore error if file doesn't exist)
	_ = godotenv.Load(envFile)

	// Load secret sidecar if it exists
	_ = godotenv.Load(envFile + ".secret")

	return nil
}

func ServerPort() int {
	port, err := strconv.Atoi(os.Getenv("SERVER_PORT"))
	if err != nil {
		return 8080
	}
	return port
}

func ServerAddr() string {
	return fmt.Sprintf(":%d", ServerPort())
}

// DataDir is the directory holding one SQLite file per agent
// ("<DataDir>/<agentID>.db"), replacing the teacher's single shared
// DatabaseURL now that storage is an embedded file per agent.
func DataDir() string {
	d := os.Getenv("ENGRAM_DATA_DIR")
	if d == "" {
		return "./data"
	}
	return d
}

func OpenAIAPIKey() string {
	return os.Getenv("OPENAI_API_KEY")
}

func AnthropicAPIKey() string {
	return os.Getenv("ANTHROPIC_API_KEY")
}

// LLMProvider returns the configured LLM provider.
// Defaults to "mock" if not set.
// Valid values: openai, anthropic, mock
func LLMProvider() string {
	p := os.Getenv("LLM_PROVIDER")
	if p == "" {
		return "mock"
	}
	return p
}

// EmbeddingProvider returns the configured embedding provider.
// Defaults to "mock" if not set.
// Valid values: openai, mock
func EmbeddingProvider() string {
	p := os.Getenv("EMBEDDING_PROVIDER")
	if p == "" {
		return "mock"
	}
	return p
}

// LLMAPIKey returns the API key for the configured LLM provider.
func LLMAPIKey() string {
	switch LLMProvider() {
	case "anthropic":
		return AnthropicAPIKey()
	case "mock":
		return ""
	default:
		return OpenAIAPIKey()
	}
}

// EmbeddingAPIKey returns the API key for the configured embedding provider.
func EmbeddingAPIKey() string {
	switch EmbeddingProvider() {
	case "mock":
		return ""
	default:
		return OpenAIAPIKey()
	}
}

func MigrationsPath() string {
	p := os.Getenv("MIGRATIONS_PATH")
	if p == "" {
		return "migrations"
	}
	return p
}

// LogLevel returns the log level (debug, info, warn, error).
// Defaults to "info" if not set.
func LogLevel() string {
	level := os.Getenv("LOG_LEVEL")
	if level == "" {
		return "info"
	}
	return level
}

func envFloat(key string, def float64) float64 {
	v, err := strconv.ParseFloat(os.Getenv(key), 64)
	if err != nil {
		return def
	}
	return v
}

func envInt(key string, def int) int {
	v, err := strconv.Atoi(os.Getenv(key))
	if err != nil {
		return def
	}
	return v
}

func envDuration(key string, def time.Duration) time.Duration {
	v, err := time.ParseDuration(os.Getenv(key))
	if err != nil {
		return def
	}
	return v
}

// --- Configuration surface (spec.md §6) ---

func SimilarityThreshold() float64        { return envFloat("SIMILARITY_THRESHOLD", 0.85) }
func ClusterSimilarityThreshold() float64 { return envFloat("CLUSTER_SIMILARITY_THRESHOLD", 0.7) }
func MaxClusters() int                    { return envInt("MAX_CLUSTERS", 100) }
func MinClusterSize() int                 { return envInt("MIN_CLUSTER_SIZE", 2) }
func CausalChainMaxDepth() int            { return envInt("CAUSAL_CHAIN_MAX_DEPTH", 5) }
func CausalChainMinSimilarity() float64   { return envFloat("CAUSAL_CHAIN_MIN_SIMILARITY", 0.15) }
func PrefetchLatencyTargetMs() int        { return envInt("PREFETCH_LATENCY_TARGET_MS", 100) }

func ConsolidationMinInterval() time.Duration {
	return envDuration("CONSOLIDATION_MIN_INTERVAL", 15*time.Minute)
}

func HybridAlpha() float64       { return envFloat("HYBRID_ALPHA", 0.5) }
func MinRetentionScore() float64 { return envFloat("MIN_RETENTION_SCORE", 0.3) }
func StaleDays() int             { return envInt("STALE_DAYS", 30) }
func MaxSimilarFacts() int       { return envInt("MAX_SIMILAR_FACTS", 5) }
func MinHybridScore() float64    { return envFloat("MIN_HYBRID_SCORE", 0.3) }
func MaxResults() int            { return envInt("MAX_RESULTS", 10) }

// RateLimitRPS and RateLimitBurst bound the per-IP request rate the
// operational shim's HTTP surface accepts.
func RateLimitRPS() float64 { return envFloat("RATE_LIMIT_RPS", 20) }
func RateLimitBurst() int   { return envInt("RATE_LIMIT_BURST", 40) }

// ShutdownTimeout bounds how long graceful shutdown waits for
// in-flight requests before the server forces close.
func ShutdownTimeout() time.Duration {
	return envDuration("SHUTDOWN_TIMEOUT", 10*time.Second)
}

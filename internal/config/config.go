// Package config loads process configuration from the environment.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds every tunable the API server and the extraction worker need.
type Config struct {
	Port        string
	DatabaseURL string
	JWTSecret   string

	Upload UploadConfig
	Vision VisionConfig

	WorkerPollInterval time.Duration
	MaxRetryAttempts   int
	StaleLockMinutes   int
	WorkerPoolSize     int

	PassportMinLength int
	PassportMaxLength int
	NameSiteFallback  bool

	DashboardCacheTTL time.Duration
}

// UploadConfig configures the optional archival object-storage backend.
type UploadConfig struct {
	R2AccountID  string
	R2AccessKey  string
	R2SecretKey  string
	R2Bucket     string
	R2PublicURL  string
	LocalDir     string
}

// VisionConfig configures the extraction pipeline's model chain.
type VisionConfig struct {
	APIKey          string
	PrimaryModel    string
	FallbackModel   string
	FastModel       string
	ExtraChain      []string
	TimeoutSeconds  int
	MaxRetries      int
	GateConfidence  float64
	GateHoursDeltaH float64
}

// Load reads configuration from the environment, loading a .env file first
// if one is present (development convenience; a no-op in production where
// the process environment is set by the deployment platform).
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Port:        getEnv("PORT", "8080"),
		DatabaseURL: os.Getenv("DATABASE_URL"),
		JWTSecret:   os.Getenv("JWT_SECRET_KEY"),

		Upload: UploadConfig{
			R2AccountID: os.Getenv("R2_ACCOUNT_ID"),
			R2AccessKey: os.Getenv("R2_ACCESS_KEY"),
			R2SecretKey: os.Getenv("R2_SECRET_KEY"),
			R2Bucket:    os.Getenv("R2_BUCKET"),
			R2PublicURL: os.Getenv("R2_PUBLIC_URL"),
			LocalDir:    getEnv("LOCAL_UPLOAD_DIR", "uploads"),
		},

		Vision: VisionConfig{
			APIKey:          os.Getenv("ANTHROPIC_API_KEY"),
			PrimaryModel:    getEnv("VISION_MODEL", "claude-sonnet-4-5"),
			FallbackModel:   getEnv("VISION_FALLBACK_MODEL", "claude-opus-4-1"),
			FastModel:       getEnv("VISION_FAST_MODEL", "claude-haiku-4-5"),
			ExtraChain:      splitCSV(os.Getenv("VISION_MODEL_CHAIN")),
			TimeoutSeconds:  getEnvInt("VISION_TIMEOUT_SECONDS", 45),
			MaxRetries:      getEnvInt("VISION_MAX_RETRIES", 2),
			GateConfidence:  getEnvFloat("GATE_MIN_CONFIDENCE", 0.8),
			GateHoursDeltaH: getEnvFloat("GATE_MAX_HOURS_DELTA", 0.25),
		},

		WorkerPollInterval: time.Duration(getEnvInt("WORKER_POLL_SECONDS", 5)) * time.Second,
		MaxRetryAttempts:   getEnvInt("MAX_RETRY_ATTEMPTS", 3),
		StaleLockMinutes:   getEnvInt("STALE_LOCK_MINUTES", 15),
		WorkerPoolSize:     getEnvInt("WORKER_POOL_SIZE", 3),

		PassportMinLength: getEnvInt("PASSPORT_NORMALIZED_MIN_LENGTH", 5),
		PassportMaxLength: getEnvInt("PASSPORT_NORMALIZED_MAX_LENGTH", 12),
		NameSiteFallback:  getEnvBool("ENABLE_NAME_SITE_MATCH_FALLBACK", false),

		DashboardCacheTTL: time.Duration(getEnvInt("DASHBOARD_CACHE_TTL_SECONDS", 30)) * time.Second,
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func getEnvFloat(key string, fallback float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return fallback
	}
	return f
}

func getEnvBool(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return b
}

func splitCSV(v string) []string {
	if v == "" {
		return nil
	}
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

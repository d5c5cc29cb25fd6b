package config

import (
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

const (
	defaultUploadMaxBytes = 5 << 20
	defaultWorkerTimeout  = 60 * time.Second
)

// Config holds application configuration.
type Config struct {
	Port                 string
	Env                  string
	LogLevel             string
	CORSAllowOrigin      []string
	DatabaseURL          string
	UploadDir            string
	UploadMaxBytes       int64
	WorkerCommand        []string
	WorkerTimeout        time.Duration
	WorkerMaxConcurrency int
	ObjectStoreType      string
	MediaDir             string
	MediaBaseURL         string
	AWSRegion            string
	S3Bucket             string
	S3Prefix             string
	SSEKMSKeyID          string
	AnalyzeRateLimit     float64
	AnalyzeRateBurst     int
}

// Load reads configuration from environment variables with sensible defaults.
func Load() Config {
	// Best-effort load of local env files for dev convenience.
	loadEnvFiles(".env", "cmd/.env")

	env := normalizeEnv(getEnv("ENV", "dev"))
	dbURL := os.Getenv("DATABASE_URL")

	if env == "production" && dbURL == "" {
		log.Printf("DATABASE_URL is required in production")
	}

	return Config{
		Port:                 getEnv("PORT", "8080"),
		Env:                  env,
		LogLevel:             getEnv("LOG_LEVEL", "info"),
		CORSAllowOrigin:      splitAndTrim(getEnv("CORS_ALLOW_ORIGINS", "http://localhost:5173")),
		DatabaseURL:          dbURL,
		UploadDir:            getEnv("UPLOAD_DIR", filepath.Join(os.TempDir(), "face-analysis-uploads")),
		UploadMaxBytes:       getEnvInt64("UPLOAD_MAX_BYTES", defaultUploadMaxBytes),
		WorkerCommand:        strings.Fields(getEnv("WORKER_COMMAND", "python3 -u analyze_face.py")),
		WorkerTimeout:        getEnvDuration("WORKER_TIMEOUT", defaultWorkerTimeout),
		WorkerMaxConcurrency: int(getEnvInt64("WORKER_MAX_CONCURRENCY", 4)),
		ObjectStoreType:      normalizeStoreType(getEnv("OBJECT_STORE", "local")),
		MediaDir:             getEnv("MEDIA_DIR", "./data/media"),
		MediaBaseURL:         getEnv("MEDIA_BASE_URL", "/media/"),
		AWSRegion:            getEnv("AWS_REGION", ""),
		S3Bucket:             getEnv("S3_BUCKET", ""),
		S3Prefix:             getEnv("S3_PREFIX", ""),
		SSEKMSKeyID:          getEnv("SSE_KMS_KEY_ID", ""),
		AnalyzeRateLimit:     getEnvFloat("RATE_LIMIT_ANALYZE_RPS", 0.2),
		AnalyzeRateBurst:     int(getEnvInt64("RATE_LIMIT_ANALYZE_BURST", 3)),
	}
}

// IsDevLike reports whether the environment tolerates in-memory fallbacks.
func (c Config) IsDevLike() bool {
	switch c.Env {
	case "dev", "local":
		return true
	default:
		return false
	}
}

func getEnv(key, def string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return def
}

func getEnvInt64(key string, def int64) int64 {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	val, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || val <= 0 {
		log.Printf("config %s invalid positive int %q, using %d", key, raw, def)
		return def
	}
	return val
}

func getEnvFloat(key string, def float64) float64 {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	val, err := strconv.ParseFloat(raw, 64)
	if err != nil || val < 0 {
		log.Printf("config %s invalid number %q, using %v", key, raw, def)
		return def
	}
	return val
}

func getEnvDuration(key string, def time.Duration) time.Duration {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	val, err := time.ParseDuration(raw)
	if err != nil || val <= 0 {
		log.Printf("config %s invalid duration %q, using %s", key, raw, def)
		return def
	}
	return val
}

func splitAndTrim(raw string) []string {
	parts := strings.Split(raw, ",")
	var out []string
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func normalizeEnv(raw string) string {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "production", "prod":
		return "production"
	case "staging":
		return "staging"
	case "local":
		return "local"
	case "development", "dev":
		return "dev"
	default:
		return "dev"
	}
}

func normalizeStoreType(raw string) string {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "s3":
		return "s3"
	default:
		return "local"
	}
}

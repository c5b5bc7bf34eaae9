package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

type Config struct {
	// Server
	APIPort            string
	WorkerEnabled      bool
	BackendAPIKey      string // API key for authenticating requests (empty = no auth, dev mode)
	CorsAllowedOrigins string // Comma-separated allowed origins (empty = *, dev mode)

	// Database
	DatabaseURL string

	// Redis
	RedisURL string

	// Object storage (S3-compatible)
	S3Endpoint     string // Empty = AWS default endpoint
	S3Region       string
	S3Bucket       string
	S3AccessKey    string
	S3SecretKey    string
	PresignTTLSecs int // Lifetime of signed URLs handed to clients

	// OpenAI (scene planning)
	OpenAIKey string

	// Gemini (still-image generation)
	GeminiKey string

	// Animation providers
	SeedanceAPIKey  string
	SeedanceBaseURL string
	VeoAPIKey       string // Gemini key works for Veo too; separate var allows split billing
	VeoModel        string

	// Worker
	BatchConcurrency int    // Max VideoItems processed in parallel per batch run
	WorkerPollQueues int    // Dequeue loops per queue
	TempDir          string // Scratch space for ffmpeg
}

func Load() (*Config, error) {
	// Load .env file if it exists (ignore error in production)
	_ = godotenv.Load()

	cfg := &Config{
		APIPort:            getEnv("API_PORT", "8080"),
		WorkerEnabled:      getEnvBool("WORKER_ENABLED", true),
		BackendAPIKey:      getEnv("BACKEND_API_KEY", ""),
		CorsAllowedOrigins: getEnv("CORS_ALLOWED_ORIGINS", ""),
		DatabaseURL:        getEnv("DATABASE_URL", ""),
		RedisURL:           getEnv("REDIS_URL", "redis://localhost:6379"),
		S3Endpoint:         getEnv("S3_ENDPOINT", ""),
		S3Region:           getEnv("S3_REGION", "us-east-1"),
		S3Bucket:           getEnv("S3_BUCKET", "sellvid-artifacts"),
		S3AccessKey:        getEnv("S3_ACCESS_KEY", ""),
		S3SecretKey:        getEnv("S3_SECRET_KEY", ""),
		PresignTTLSecs:     getEnvInt("PRESIGN_TTL_SECONDS", 900),
		OpenAIKey:          getEnv("OPENAI_API_KEY", ""),
		GeminiKey:          getEnv("GEMINI_API_KEY", ""),
		SeedanceAPIKey:     getEnv("SEEDANCE_API_KEY", ""),
		SeedanceBaseURL:    getEnv("SEEDANCE_BASE_URL", "https://ark.ap-southeast.bytepluses.com/api/v3"),
		VeoAPIKey:          getEnv("VEO_API_KEY", ""),
		VeoModel:           getEnv("VEO_MODEL", "veo-3.1-generate-preview"),
		BatchConcurrency:   getEnvInt("BATCH_CONCURRENCY", 3),
		WorkerPollQueues:   getEnvInt("WORKER_POLL_LOOPS", 2),
		TempDir:            getEnv("RENDER_TEMP_DIR", "/tmp/sellvid"),
	}

	// Validate required fields
	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	if cfg.OpenAIKey == "" {
		return nil, fmt.Errorf("OPENAI_API_KEY is required")
	}

	if cfg.GeminiKey == "" {
		return nil, fmt.Errorf("GEMINI_API_KEY is required")
	}

	// At least one animation provider must be configured
	if cfg.SeedanceAPIKey == "" && cfg.VeoAPIKey == "" && cfg.GeminiKey == "" {
		return nil, fmt.Errorf("either SEEDANCE_API_KEY or VEO_API_KEY is required for animation")
	}
	if cfg.VeoAPIKey == "" {
		cfg.VeoAPIKey = cfg.GeminiKey
	}

	if cfg.S3AccessKey == "" || cfg.S3SecretKey == "" {
		return nil, fmt.Errorf("S3_ACCESS_KEY and S3_SECRET_KEY are required")
	}

	if cfg.BatchConcurrency < 1 {
		cfg.BatchConcurrency = 1
	}

	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		b, err := strconv.ParseBool(value)
		if err == nil {
			return b
		}
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		i, err := strconv.Atoi(value)
		if err == nil {
			return i
		}
	}
	return defaultValue
}

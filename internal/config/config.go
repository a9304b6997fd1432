package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	// Server
	APIPort            string
	BackendAPIKey      string // API key for authenticating requests (empty = no auth, dev mode)
	CorsAllowedOrigins string // Comma-separated allowed origins (empty = *, dev mode)

	// Redis (best-effort job snapshot mirror; empty = disabled)
	RedisURL string

	// Supabase storage (final video upload; empty = serve from local disk)
	SupabaseURL           string
	SupabaseServiceKey    string
	SupabaseStorageBucket string

	// OpenAI (storyboard generation + Whisper word timestamps)
	OpenAIKey string

	// Gemini (speech synthesis)
	GeminiKey      string
	GeminiTTSModel string

	// ElevenLabs (alternative speech synthesis; empty = use Gemini)
	ElevenLabsKey string

	// Pexels (stock media resolution)
	PexelsKey string

	// Render
	OutputDir         string        // Root for renders, caches and final videos
	MaxConcurrentJobs int           // Pipelines allowed to run at once
	StageTimeout      time.Duration // Per-stage timeout bounding cancellation latency
	JobRetention      time.Duration // Terminal jobs are evicted after this window
	TTSMaxChars       int           // Narration is trimmed to this length before synthesis
}

func Load() (*Config, error) {
	// Load .env file if it exists (ignore error in production)
	_ = godotenv.Load()

	cfg := &Config{
		APIPort:               getEnv("API_PORT", "8080"),
		BackendAPIKey:         getEnv("BACKEND_API_KEY", ""),
		CorsAllowedOrigins:    getEnv("CORS_ALLOWED_ORIGINS", ""),
		RedisURL:              getEnv("REDIS_URL", ""),
		SupabaseURL:           getEnv("SUPABASE_URL", ""),
		SupabaseServiceKey:    getEnv("SUPABASE_SERVICE_KEY", ""),
		SupabaseStorageBucket: getEnv("SUPABASE_STORAGE_BUCKET", "reelforge-videos"),
		OpenAIKey:             getEnv("OPENAI_API_KEY", ""),
		GeminiKey:             getEnv("GEMINI_API_KEY", ""),
		GeminiTTSModel:        getEnv("GEMINI_TTS_MODEL", "gemini-2.5-flash-preview-tts"),
		ElevenLabsKey:         getEnv("ELEVENLABS_API_KEY", ""),
		PexelsKey:             getEnv("PEXELS_API_KEY", ""),
		OutputDir:             getEnv("OUTPUT_DIR", "outputs"),
		MaxConcurrentJobs:     getEnvInt("MAX_CONCURRENT_JOBS", 2),
		StageTimeout:          getEnvDuration("STAGE_TIMEOUT", 3*time.Minute),
		JobRetention:          getEnvDuration("JOB_RETENTION", 6*time.Hour),
		TTSMaxChars:           getEnvInt("TTS_MAX_CHARS", 2000),
	}

	// Validate required fields
	if cfg.OpenAIKey == "" {
		return nil, fmt.Errorf("OPENAI_API_KEY is required")
	}

	// ElevenLabs supplants Gemini as the speech provider when configured
	if cfg.GeminiKey == "" && cfg.ElevenLabsKey == "" {
		return nil, fmt.Errorf("GEMINI_API_KEY or ELEVENLABS_API_KEY is required for speech synthesis")
	}

	if cfg.PexelsKey == "" {
		return nil, fmt.Errorf("PEXELS_API_KEY is required for media resolution")
	}

	// Supabase is optional, but partial configuration is a mistake
	if (cfg.SupabaseURL == "") != (cfg.SupabaseServiceKey == "") {
		return nil, fmt.Errorf("SUPABASE_URL and SUPABASE_SERVICE_KEY must be set together")
	}

	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
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

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		d, err := time.ParseDuration(value)
		if err == nil {
			return d
		}
	}
	return defaultValue
}

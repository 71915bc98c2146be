package infra

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config represents application configuration loaded from environment variables.
type Config struct {
	AppEnv string
	Port   string

	// Fal.ai credential shared by the generation, vision and
	// segmentation endpoints.
	FalKey string

	QueueBaseURL string
	SyncBaseURL  string
	FluxModel    string
	VisionModel  string
	SegmentModel string

	Concurrency   int
	JobAttempts   int
	RetryBackoff  time.Duration
	JobTimeout    time.Duration
	PollInterval  time.Duration
	RemoteTimeout time.Duration

	// DatabaseURL is optional; when empty, run history stays in memory.
	DatabaseURL string

	AllowedOrigins []string

	HTTPReadTimeout       time.Duration
	HTTPReadHeaderTimeout time.Duration
	// HTTPWriteTimeout must leave room for streaming a full archive
	// (up to 50 images) in one response.
	HTTPWriteTimeout time.Duration
	HTTPIdleTimeout  time.Duration
	RateLimitPerMin  int
}

// LoadConfig loads configuration from environment variables and applies defaults where needed.
func LoadConfig() (*Config, error) {
	cfg := &Config{
		AppEnv: getEnv("APP_ENV", "development"),
		Port:   getEnv("PORT", "8080"),

		FalKey: strings.TrimSpace(os.Getenv("FAL_KEY")),

		QueueBaseURL: getEnv("FAL_QUEUE_BASE_URL", "https://queue.fal.run"),
		SyncBaseURL:  getEnv("FAL_SYNC_BASE_URL", "https://fal.run"),
		FluxModel:    getEnv("FLUX_MODEL", "fal-ai/flux-pro/v1.1-ultra"),
		VisionModel:  getEnv("VISION_MODEL", "fal-ai/llava-next"),
		SegmentModel: getEnv("SEGMENT_MODEL", "fal-ai/sam2"),

		Concurrency:   getEnvInt("BATCH_CONCURRENCY", 5),
		JobAttempts:   getEnvInt("JOB_ATTEMPTS", 1),
		RetryBackoff:  time.Second * time.Duration(getEnvInt("RETRY_BACKOFF_SECONDS", 1)),
		JobTimeout:    time.Second * time.Duration(getEnvInt("JOB_TIMEOUT_SECONDS", 300)),
		PollInterval:  time.Millisecond * time.Duration(getEnvInt("POLL_INTERVAL_MS", 500)),
		RemoteTimeout: time.Second * time.Duration(getEnvInt("REMOTE_TIMEOUT_SECONDS", 60)),

		DatabaseURL: os.Getenv("DATABASE_URL"),

		HTTPReadTimeout:       time.Second * time.Duration(getEnvInt("HTTP_READ_TIMEOUT_SECONDS", 15)),
		HTTPReadHeaderTimeout: time.Second * time.Duration(getEnvInt("HTTP_READ_HEADER_TIMEOUT_SECONDS", 5)),
		HTTPWriteTimeout:      time.Second * time.Duration(getEnvInt("HTTP_WRITE_TIMEOUT_SECONDS", 30)),
		HTTPIdleTimeout:  time.Second * time.Duration(getEnvInt("HTTP_IDLE_TIMEOUT_SECONDS", 60)),
		RateLimitPerMin:  getEnvInt("RATE_LIMIT_PER_MINUTE", 30),
	}

	if origins := strings.TrimSpace(os.Getenv("ALLOWED_ORIGINS")); origins != "" {
		for _, origin := range strings.Split(origins, ",") {
			if origin = strings.TrimSpace(origin); origin != "" {
				cfg.AllowedOrigins = append(cfg.AllowedOrigins, origin)
			}
		}
	}

	if cfg.FalKey == "" {
		return nil, fmt.Errorf("FAL_KEY is required")
	}
	if cfg.Concurrency < 1 {
		cfg.Concurrency = 1
	}
	if cfg.JobAttempts < 1 {
		cfg.JobAttempts = 1
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

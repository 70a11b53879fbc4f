package shared

import (
	"os"
	"strconv"
	"time"

	"github.com/rs/zerolog/log"
)

type Config struct {
	AppEnv   string
	HTTPAddr string

	RedisAddr string
	RedisDB   int
	RedisPass string
	CacheTTL  time.Duration

	GeminiBase     string
	GeminiModel    string
	GeminiKey      string
	GeminiRPS      int
	AspectAttempts int
	AspectWorkers  int

	DedupThreshold int
	MaxReviews     int
	MaxReviewBytes int
	SentimentBatch int
	FilterLanguage bool
	TargetLanguage string
}

func Load() Config {
	atoi := func(k string, def int) int {
		if v := os.Getenv(k); v != "" {
			if n, err := strconv.Atoi(v); err == nil {
				return n
			}
		}
		return def
	}
	abool := func(k string, def bool) bool {
		if v := os.Getenv(k); v != "" {
			if b, err := strconv.ParseBool(v); err == nil {
				return b
			}
		}
		return def
	}
	c := Config{
		AppEnv:   env("APP_ENV", "prod"),
		HTTPAddr: env("HTTP_ADDR", ":8080"),

		// empty REDIS_ADDR disables the findings cache
		RedisAddr: env("REDIS_ADDR", ""),
		RedisDB:   atoi("REDIS_DB", 0),
		RedisPass: env("REDIS_PASSWORD", ""),
		CacheTTL:  time.Duration(atoi("CACHE_TTL_SECONDS", 86400)) * time.Second,

		GeminiBase:     env("GEMINI_BASE_URL", "https://generativelanguage.googleapis.com/v1beta"),
		GeminiModel:    env("GEMINI_MODEL", "gemini-1.5-flash"),
		GeminiKey:      env("GEMINI_API_KEY", ""),
		GeminiRPS:      atoi("GEMINI_RPS", 10),
		AspectAttempts: atoi("ASPECT_MAX_ATTEMPTS", 4),
		AspectWorkers:  atoi("ASPECT_WORKERS", 4),

		DedupThreshold: atoi("DEDUP_THRESHOLD", 85),
		MaxReviews:     atoi("PIPELINE_MAX_REVIEWS", 2000),
		MaxReviewBytes: atoi("PIPELINE_MAX_REVIEW_BYTES", 8192),
		SentimentBatch: atoi("SENTIMENT_BATCH_SIZE", 32),
		FilterLanguage: abool("FILTER_LANGUAGE", false),
		TargetLanguage: env("TARGET_LANGUAGE", "en"),
	}
	if c.GeminiKey == "" {
		log.Warn().Msg("GEMINI_API_KEY is empty; aspect extraction disabled, runs are sentiment-only")
	}
	return c
}

func env(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

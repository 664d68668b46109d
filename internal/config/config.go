package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// ExhaustPolicy selects what happens when the QA retry budget runs out.
type ExhaustPolicy string

const (
	// PolicyAcceptBest keeps the best-scoring draft seen so far, tagged
	// with its actual QA verdict.
	PolicyAcceptBest ExhaustPolicy = "accept_best"
	// PolicyFail escalates budget exhaustion as a recoverable job error.
	PolicyFail ExhaustPolicy = "fail"
)

// Config holds the configuration for the worker and API processes.
type Config struct {
	PostgresDSN string
	RedisAddr   string

	QueueKey      string
	ProcessingKey string
	RetryKey      string
	AttemptsKey   string
	DeadLetterKey string

	HTTPAddr string

	Workers          int
	MaxAttempts      int
	RetryBackoffBase time.Duration

	QAMaxAttempts     int
	QAPassThreshold   int
	QAExhaustedPolicy ExhaustPolicy
	CuisineMaxShare   float64

	GeminiAPIKey    string
	GeminiModel     string
	NutritionAPIURL string
	NutritionAPIKey string

	CallbackURL    string
	CallbackSecret string

	ChromeExecPath string
	ArtifactDir    string
}

// NewFromEnv creates a new Config object from environment variables.
// POSTGRES_DSN and REDIS_ADDR are required; everything else has a default.
func NewFromEnv() (*Config, error) {
	pgDSN := os.Getenv("POSTGRES_DSN")
	if pgDSN == "" {
		return nil, fmt.Errorf("POSTGRES_DSN environment variable not set")
	}

	redisAddr := os.Getenv("REDIS_ADDR")
	if redisAddr == "" {
		return nil, fmt.Errorf("REDIS_ADDR environment variable not set")
	}

	queueKey := envOr("REDIS_QUEUE_KEY", "mealplan:jobs:queue")
	processingKey := envOr("REDIS_PROCESSING_KEY", "mealplan:jobs:processing")

	policy := ExhaustPolicy(envOr("QA_EXHAUSTED_POLICY", string(PolicyAcceptBest)))
	if policy != PolicyAcceptBest && policy != PolicyFail {
		return nil, fmt.Errorf("QA_EXHAUSTED_POLICY must be %q or %q, got %q",
			PolicyAcceptBest, PolicyFail, policy)
	}

	return &Config{
		PostgresDSN: pgDSN,
		RedisAddr:   redisAddr,

		QueueKey:      queueKey,
		ProcessingKey: processingKey,
		RetryKey:      envOr("REDIS_RETRY_KEY", queueKey+":retry"),
		AttemptsKey:   envOr("REDIS_ATTEMPTS_KEY", queueKey+":attempts"),
		DeadLetterKey: envOr("REDIS_DEAD_LETTER_KEY", queueKey+":dead"),

		HTTPAddr: envOr("HTTP_ADDR", ":8080"),

		Workers:          envIntOr("WORKERS", 4),
		MaxAttempts:      envIntOr("MAX_ATTEMPTS", 3),
		RetryBackoffBase: envDurationOr("RETRY_BACKOFF_BASE", 30*time.Second),

		QAMaxAttempts:     envIntOr("QA_MAX_ATTEMPTS", 3),
		QAPassThreshold:   envIntOr("QA_PASS_THRESHOLD", 80),
		QAExhaustedPolicy: policy,
		CuisineMaxShare:   envFloatOr("CUISINE_MAX_SHARE", 0.5),

		GeminiAPIKey:    os.Getenv("GEMINI_API_KEY"),
		GeminiModel:     envOr("GEMINI_MODEL", "gemini-1.5-flash"),
		NutritionAPIURL: os.Getenv("NUTRITION_API_URL"),
		NutritionAPIKey: os.Getenv("NUTRITION_API_KEY"),

		CallbackURL:    os.Getenv("CALLBACK_URL"),
		CallbackSecret: os.Getenv("CALLBACK_SECRET"),

		ChromeExecPath: os.Getenv("CHROME_EXEC_PATH"),
		ArtifactDir:    envOr("ARTIFACT_DIR", "artifacts"),
	}, nil
}

func envOr(key, def string) string {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	return v
}

func envIntOr(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return i
}

func envFloatOr(key string, def float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return def
	}
	return f
}

func envDurationOr(key string, def time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return def
	}
	return d
}

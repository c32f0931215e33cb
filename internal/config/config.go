package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// defaultAgentEndpoint stays off API_PORT's default so the API never probes
// itself.
const defaultAgentEndpoint = "http://localhost:8000"

type Config struct {
	APIPort  string
	LogLevel string
	Debug    bool

	AgentEndpoint    string
	AgentAppName     string
	AgentUserID      string
	AgentCallTimeout time.Duration
	ProbeTimeout     time.Duration
	ProbeCacheTTL    time.Duration

	GrantSearchEnabled     bool
	MinFundingAmount       int64
	LocationVocabularyPath string

	SessionCacheSize  int
	APIRateLimitRPS   float64
	APIRateLimitBurst int
	APIMaxInFlight    int

	ExportStorage string
	StoragePath   string
	S3Endpoint    string
	S3Region      string
	S3AccessKey   string
	S3SecretKey   string
	S3Bucket      string
	S3Prefix      string
	S3UseSSL      bool

	PostgresDSN string

	NATSURL     string
	NATSSubject string

	ResilienceRetryMaxAttempts     int
	ResilienceRetryInitialBackoff  time.Duration
	ResilienceRetryMaxBackoff      time.Duration
	ResilienceBreakerEnabled       bool
	ResilienceBreakerMinRequests   int
	ResilienceBreakerFailureRatio  float64
	ResilienceBreakerOpenTimeout   time.Duration
	ResilienceBreakerHalfOpenCalls int

	WorkerMetricsPort string
}

// Load reads the process environment, after merging an optional .env file.
// Variables already set in the environment win over the file.
func Load() Config {
	_ = godotenv.Load()

	return Config{
		APIPort:  mustEnv("API_PORT", "8080"),
		LogLevel: mustEnv("LOG_LEVEL", "info"),
		Debug:    mustEnvBool("DEBUG", false),

		AgentEndpoint:    firstEnv(defaultAgentEndpoint, "AGENT_ENDPOINT", "ADK_ENDPOINT"),
		AgentAppName:     mustEnv("AGENT_APP_NAME", "grant_research_agent"),
		AgentUserID:      mustEnv("AGENT_USER_ID", "ui_user"),
		AgentCallTimeout: time.Duration(mustEnvInt("AGENT_CALL_TIMEOUT_SECONDS", 30)) * time.Second,
		ProbeTimeout:     time.Duration(mustEnvInt("PROBE_TIMEOUT_MS", 2000)) * time.Millisecond,
		ProbeCacheTTL:    time.Duration(mustEnvInt("PROBE_CACHE_TTL_SECONDS", 30)) * time.Second,

		GrantSearchEnabled:     mustEnvBool("GRANT_SEARCH_ENABLED", true),
		MinFundingAmount:       int64(mustEnvInt("MIN_FUNDING_AMOUNT", 0)),
		LocationVocabularyPath: mustEnv("LOCATION_VOCABULARY_PATH", ""),

		SessionCacheSize:  mustEnvInt("SESSION_CACHE_SIZE", 1024),
		APIRateLimitRPS:   mustEnvFloat("API_RATE_LIMIT_RPS", 20),
		APIRateLimitBurst: mustEnvInt("API_RATE_LIMIT_BURST", 40),
		APIMaxInFlight:    mustEnvInt("API_MAX_IN_FLIGHT", 64),

		ExportStorage: strings.ToLower(mustEnv("EXPORT_STORAGE", "localfs")),
		StoragePath:   mustEnv("STORAGE_PATH", "./data/exports"),
		S3Endpoint:    mustEnv("S3_ENDPOINT", "localhost:9000"),
		S3Region:      mustEnv("S3_REGION", "us-east-1"),
		S3AccessKey:   mustEnv("S3_ACCESS_KEY", ""),
		S3SecretKey:   mustEnv("S3_SECRET_KEY", ""),
		S3Bucket:      mustEnv("S3_BUCKET", "grantflow-exports"),
		S3Prefix:      mustEnv("S3_PREFIX", "exports"),
		S3UseSSL:      mustEnvBool("S3_USE_SSL", false),

		PostgresDSN: mustEnv("POSTGRES_DSN", ""),

		NATSURL:     mustEnv("NATS_URL", ""),
		NATSSubject: mustEnv("NATS_SUBJECT", "applications.exported"),

		ResilienceRetryMaxAttempts:     mustEnvInt("RESILIENCE_RETRY_MAX_ATTEMPTS", 2),
		ResilienceRetryInitialBackoff:  mustEnvDuration("RESILIENCE_RETRY_INITIAL_BACKOFF", 150*time.Millisecond),
		ResilienceRetryMaxBackoff:      mustEnvDuration("RESILIENCE_RETRY_MAX_BACKOFF", time.Second),
		ResilienceBreakerEnabled:       mustEnvBool("RESILIENCE_BREAKER_ENABLED", true),
		ResilienceBreakerMinRequests:   mustEnvInt("RESILIENCE_BREAKER_MIN_REQUESTS", 5),
		ResilienceBreakerFailureRatio:  mustEnvFloat("RESILIENCE_BREAKER_FAILURE_RATIO", 0.6),
		ResilienceBreakerOpenTimeout:   mustEnvDuration("RESILIENCE_BREAKER_OPEN_TIMEOUT", 20*time.Second),
		ResilienceBreakerHalfOpenCalls: mustEnvInt("RESILIENCE_BREAKER_HALF_OPEN_CALLS", 1),

		WorkerMetricsPort: mustEnv("WORKER_METRICS_PORT", "9090"),
	}
}

func mustEnv(key, fallback string) string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	return v
}

func firstEnv(fallback string, keys ...string) string {
	for _, key := range keys {
		if v := strings.TrimSpace(os.Getenv(key)); v != "" {
			return v
		}
	}
	return fallback
}

func mustEnvInt(key string, fallback int) int {
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

func mustEnvFloat(key string, fallback float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return fallback
	}
	return n
}

func mustEnvBool(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return parsed
}

func mustEnvDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}

package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// LLM providers.
const (
	ProviderMock    = "mock"
	ProviderBedrock = "bedrock"
)

// Config aggregates runtime configuration for the service.
type Config struct {
	App          AppConfig
	Postgres     PostgresConfig
	Redis        RedisConfig
	Logger       LoggerConfig
	Auth         AuthConfig
	LLM          LLMConfig
	HITL         HITLConfig
	Batch        BatchConfig
	AWS          AWSConfig
	Scheduler    SchedulerConfig
	Stats        StatsConfig
	Notification NotificationConfig
}

// AppConfig controls server level behavior.
type AppConfig struct {
	Name                  string
	Env                   string
	Host                  string
	Port                  string
	Version               string
	RequestTimeoutSeconds int
}

// PostgresConfig holds DB connection values. An empty DSN selects the in-memory store.
type PostgresConfig struct {
	DSN            string
	MaxConns       int32
	MinConns       int32
	RunMigrations  bool
	MigrationsDir  string
	ConnMaxIdleSec int32
	ConnMaxLifeSec int32
}

// RedisConfig holds Redis connection values. An empty Addr selects the in-memory ledger.
type RedisConfig struct {
	Addr              string
	Password          string
	DB                int
	ResumeFailuresKey string
}

// LoggerConfig configures logging behavior.
type LoggerConfig struct {
	Level       string
	Development bool
}

// AuthConfig defines reviewer authentication. Reviewers maps email to bcrypt hash.
type AuthConfig struct {
	Enabled               bool
	JWTSecret             string
	AccessTokenTTLMinutes int
	Reviewers             map[string]string
	Admins                []string
}

// LLMConfig selects and tunes the probabilistic classifier.
type LLMConfig struct {
	Provider            string
	ModelID             string
	ConfidenceThreshold float64
	TimeoutSeconds      int
	MaxTokens           int
	BreakerMaxFailures  int
	BreakerOpenSeconds  int
}

// HITLConfig tunes the approval workflow.
type HITLConfig struct {
	ApprovalTimeoutHours  int
	TrackDivergence       bool
	SkipWorkflowCallback  bool
	ResumeTimeoutSeconds  int
	ClassifyMaxAttempts   int
	ClassifyInitialMillis int
}

// BatchConfig controls ingestion.
type BatchConfig struct {
	TTLDays int
}

// AWSConfig holds queue and orchestrator settings.
type AWSConfig struct {
	Region          string
	Endpoint        string
	QueueURL        string
	PollingEnabled  bool
	MaxMessages     int
	WaitSeconds     int
	StateMachineARN string
	SkipExecution   bool
}

// SchedulerConfig holds cron specs for background jobs.
type SchedulerConfig struct {
	DrainSpec   string
	ExpirySpec  string
	ArchiveSpec string
}

// StatsConfig fixes the calendar used for daily buckets.
type StatsConfig struct {
	Timezone string
}

// NotificationConfig holds stub notification endpoints.
type NotificationConfig struct {
	EmailFrom  string
	WebhookURL string
}

// Load reads configuration from environment variables, applying defaults where possible.
func Load() (*Config, error) {
	_ = godotenv.Load()

	redisDB, err := strconv.Atoi(getEnv("REDIS_DB", "0"))
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_DB: %w", err)
	}

	threshold, err := strconv.ParseFloat(getEnv("LLM_CONFIDENCE_THRESHOLD", "0.8"), 64)
	if err != nil || threshold < 0 || threshold > 1 {
		return nil, fmt.Errorf("invalid LLM_CONFIDENCE_THRESHOLD %q", os.Getenv("LLM_CONFIDENCE_THRESHOLD"))
	}

	reviewers, err := parseReviewers(os.Getenv("AUTH_REVIEWERS"))
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		App: AppConfig{
			Name:                  getEnv("APP_NAME", "defect-ticket-service"),
			Env:                   getEnv("APP_ENV", "development"),
			Host:                  getEnv("APP_HOST", "0.0.0.0"),
			Port:                  getEnv("APP_PORT", "8080"),
			Version:               getEnv("APP_VERSION", "dev"),
			RequestTimeoutSeconds: getEnvAsInt("HTTP_REQUEST_TIMEOUT_SECONDS", 30),
		},
		Postgres: PostgresConfig{
			DSN:            os.Getenv("POSTGRES_DSN"),
			MaxConns:       int32(getEnvAsInt("POSTGRES_MAX_CONNS", 10)),
			MinConns:       int32(getEnvAsInt("POSTGRES_MIN_CONNS", 2)),
			RunMigrations:  getEnvAsBool("POSTGRES_RUN_MIGRATIONS", true),
			MigrationsDir:  getEnv("POSTGRES_MIGRATIONS_DIR", "migrations"),
			ConnMaxIdleSec: int32(getEnvAsInt("POSTGRES_CONN_MAX_IDLE_SECONDS", 30)),
			ConnMaxLifeSec: int32(getEnvAsInt("POSTGRES_CONN_MAX_LIFE_SECONDS", 300)),
		},
		Redis: RedisConfig{
			Addr:              os.Getenv("REDIS_ADDR"),
			Password:          os.Getenv("REDIS_PASSWORD"),
			DB:                redisDB,
			ResumeFailuresKey: getEnv("REDIS_RESUME_FAILURES_KEY", "defect-ticket:resume-failures"),
		},
		Logger: LoggerConfig{
			Level:       getEnv("LOG_LEVEL", "info"),
			Development: getEnv("APP_ENV", "development") == "development",
		},
		Auth: AuthConfig{
			Enabled:               getEnvAsBool("AUTH_ENABLED", false),
			JWTSecret:             getEnv("AUTH_JWT_SECRET", "dev-secret"),
			AccessTokenTTLMinutes: getEnvAsInt("AUTH_ACCESS_TOKEN_TTL_MINUTES", 60),
			Reviewers:             reviewers,
			Admins:                splitList(os.Getenv("AUTH_ADMINS")),
		},
		LLM: LLMConfig{
			Provider:            strings.ToLower(getEnv("LLM_PROVIDER", ProviderMock)),
			ModelID:             getEnv("LLM_MODEL_ID", "anthropic.claude-3-haiku-20240307-v1:0"),
			ConfidenceThreshold: threshold,
			TimeoutSeconds:      getEnvAsInt("LLM_TIMEOUT_SECONDS", 30),
			MaxTokens:           getEnvAsInt("LLM_MAX_TOKENS", 1024),
			BreakerMaxFailures:  getEnvAsInt("LLM_BREAKER_MAX_FAILURES", 5),
			BreakerOpenSeconds:  getEnvAsInt("LLM_BREAKER_OPEN_SECONDS", 30),
		},
		HITL: HITLConfig{
			ApprovalTimeoutHours:  getEnvAsInt("HITL_APPROVAL_TIMEOUT_HOURS", 24),
			TrackDivergence:       getEnvAsBool("HITL_TRACK_DIVERGENCE", true),
			SkipWorkflowCallback:  getEnvAsBool("HITL_SKIP_WORKFLOW_CALLBACK", false),
			ResumeTimeoutSeconds:  getEnvAsInt("HITL_RESUME_TIMEOUT_SECONDS", 10),
			ClassifyMaxAttempts:   getEnvAsInt("HITL_CLASSIFY_MAX_ATTEMPTS", 3),
			ClassifyInitialMillis: getEnvAsInt("HITL_CLASSIFY_INITIAL_BACKOFF_MS", 200),
		},
		Batch: BatchConfig{
			TTLDays: getEnvAsInt("BATCH_TTL_DAYS", 90),
		},
		AWS: AWSConfig{
			Region:          getEnv("AWS_REGION", "eu-central-1"),
			Endpoint:        os.Getenv("AWS_ENDPOINT"),
			QueueURL:        os.Getenv("SQS_INGESTION_QUEUE_URL"),
			PollingEnabled:  getEnvAsBool("SQS_POLLING_ENABLED", false),
			MaxMessages:     getEnvAsInt("SQS_MAX_MESSAGES", 10),
			WaitSeconds:     getEnvAsInt("SQS_WAIT_SECONDS", 20),
			StateMachineARN: os.Getenv("SFN_STATE_MACHINE_ARN"),
			SkipExecution:   getEnvAsBool("SFN_SKIP_EXECUTION", false),
		},
		Scheduler: SchedulerConfig{
			DrainSpec:   getEnv("SCHEDULER_DRAIN_SPEC", "@every 10s"),
			ExpirySpec:  getEnv("SCHEDULER_EXPIRY_SPEC", "@every 1m"),
			ArchiveSpec: getEnv("SCHEDULER_ARCHIVE_SPEC", "@every 1h"),
		},
		Stats: StatsConfig{
			Timezone: getEnv("STATS_TIMEZONE", "Local"),
		},
		Notification: NotificationConfig{
			EmailFrom:  getEnv("NOTIFY_EMAIL_FROM", ""),
			WebhookURL: getEnv("NOTIFY_WEBHOOK_URL", ""),
		},
	}

	if cfg.LLM.Provider != ProviderMock && cfg.LLM.Provider != ProviderBedrock {
		return nil, fmt.Errorf("invalid LLM_PROVIDER %q", cfg.LLM.Provider)
	}
	if cfg.AWS.MaxMessages < 1 || cfg.AWS.MaxMessages > 10 {
		return nil, fmt.Errorf("SQS_MAX_MESSAGES must be between 1 and 10, got %d", cfg.AWS.MaxMessages)
	}
	if cfg.Auth.Enabled && len(cfg.Auth.Reviewers) == 0 {
		return nil, fmt.Errorf("AUTH_ENABLED requires AUTH_REVIEWERS")
	}

	return cfg, nil
}

// Addr returns the HTTP bind address.
func (a AppConfig) Addr() string {
	return fmt.Sprintf("%s:%s", a.Host, a.Port)
}

// RequestTimeout returns the configured request timeout duration.
func (a AppConfig) RequestTimeout() time.Duration {
	if a.RequestTimeoutSeconds <= 0 {
		return 0
	}
	return time.Duration(a.RequestTimeoutSeconds) * time.Second
}

// ApprovalTimeout is the pending window before an approval expires.
func (h HITLConfig) ApprovalTimeout() time.Duration {
	if h.ApprovalTimeoutHours <= 0 {
		return 24 * time.Hour
	}
	return time.Duration(h.ApprovalTimeoutHours) * time.Hour
}

// ResumeTimeout bounds a single orchestrator resume call.
func (h HITLConfig) ResumeTimeout() time.Duration {
	return seconds(h.ResumeTimeoutSeconds)
}

// Timeout bounds a single classifier call.
func (l LLMConfig) Timeout() time.Duration {
	return seconds(l.TimeoutSeconds)
}

// Location resolves the stats calendar.
func (s StatsConfig) Location() (*time.Location, error) {
	if s.Timezone == "" || s.Timezone == "Local" {
		return time.Local, nil
	}
	return time.LoadLocation(s.Timezone)
}

func seconds(n int) time.Duration {
	if n <= 0 {
		return 0
	}
	return time.Duration(n) * time.Second
}

// parseReviewers reads "email=hash,email=hash". Bcrypt hashes contain no commas.
func parseReviewers(raw string) (map[string]string, error) {
	reviewers := make(map[string]string)
	for _, entry := range splitList(raw) {
		email, hash, ok := strings.Cut(entry, "=")
		email = strings.ToLower(strings.TrimSpace(email))
		if !ok || email == "" || strings.TrimSpace(hash) == "" {
			return nil, fmt.Errorf("invalid AUTH_REVIEWERS entry %q", entry)
		}
		reviewers[email] = strings.TrimSpace(hash)
	}
	return reviewers, nil
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(val)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvAsBool(key string, fallback bool) bool {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(val)
	if err != nil {
		return fallback
	}
	return parsed
}

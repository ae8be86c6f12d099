package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
)

// Defaults applied when the corresponding variable is unset or unparseable.
const (
	DefaultPort             = "8080"
	DefaultModelName        = "gemini-2.5-flash"
	DefaultNarrativeTimeout = 60 * time.Second
	DefaultBudget           = 1_000_000
	DefaultMaxUploadBytes   = 32 << 20
	DefaultJobWorkers       = 2
	DefaultJobQueueSize     = 100
	DefaultSessionTTL       = 24 * time.Hour
)

// Config holds process-wide settings read from the environment.
type Config struct {
	// HTTP server
	Port           string
	MaxUploadBytes int64
	SessionTTL     time.Duration

	LogLevel string

	// Narrative service
	GeminiAPIKey     string
	GeminiModel      string
	NarrativeTimeout time.Duration

	// Jobs
	JobWorkers   int
	JobQueueSize int

	DefaultBudget int64

	// Google Cloud
	ReportBucket    string
	BigQueryProject string

	ParseRulesFile string
}

// Load reads an optional .env file and then the environment.
// A missing .env is not an error.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("Load: reading .env: %w", err)
	}

	cfg := &Config{
		Port:           getEnv("PORT", DefaultPort),
		MaxUploadBytes: int64(getEnvInt("MAX_UPLOAD_BYTES", DefaultMaxUploadBytes)),
		SessionTTL:     getEnvDuration("SESSION_TTL", DefaultSessionTTL),
		LogLevel:       getEnv("LOG_LEVEL", "info"),

		GeminiAPIKey:     os.Getenv("GEMINI_API_KEY"),
		GeminiModel:      getEnv("GEMINI_MODEL", DefaultModelName),
		NarrativeTimeout: getEnvDuration("NARRATIVE_TIMEOUT", DefaultNarrativeTimeout),

		JobWorkers:   getEnvInt("JOB_WORKERS", DefaultJobWorkers),
		JobQueueSize: getEnvInt("JOB_QUEUE_SIZE", DefaultJobQueueSize),

		DefaultBudget: int64(getEnvInt("DEFAULT_BUDGET", DefaultBudget)),

		ReportBucket:    os.Getenv("GCS_REPORT_BUCKET"),
		BigQueryProject: os.Getenv("BIGQUERY_PROJECT"),
		ParseRulesFile:  os.Getenv("PARSE_RULES_FILE"),
	}
	return cfg, nil
}

// NarrativeEnabled reports whether a credential for the narrative service is set.
func (c *Config) NarrativeEnabled() bool {
	return strings.TrimSpace(c.GeminiAPIKey) != ""
}

// Validate checks every setting and reports all problems at once.
func (c *Config) Validate() error {
	var problems []string

	if port, err := strconv.Atoi(c.Port); err != nil {
		problems = append(problems, fmt.Sprintf("invalid port '%s': must be a number", c.Port))
	} else if port < 1 || port > 65535 {
		problems = append(problems, fmt.Sprintf("invalid port %d: must be between 1 and 65535", port))
	}

	if _, err := zerolog.ParseLevel(strings.ToLower(c.LogLevel)); err != nil {
		problems = append(problems, fmt.Sprintf("invalid log level '%s'", c.LogLevel))
	}

	if c.MaxUploadBytes < 1 {
		problems = append(problems, fmt.Sprintf("invalid max upload size %d: must be positive", c.MaxUploadBytes))
	}

	if c.SessionTTL < 0 {
		problems = append(problems, fmt.Sprintf("invalid session TTL %v: must not be negative", c.SessionTTL))
	}

	if c.NarrativeTimeout <= 0 {
		problems = append(problems, fmt.Sprintf("invalid narrative timeout %v: must be positive", c.NarrativeTimeout))
	} else if c.NarrativeTimeout > 10*time.Minute {
		problems = append(problems, fmt.Sprintf("invalid narrative timeout %v: must be at most 10 minutes", c.NarrativeTimeout))
	}

	if c.GeminiModel == "" {
		problems = append(problems, "Gemini model name cannot be empty")
	}

	if c.JobWorkers < 1 {
		problems = append(problems, fmt.Sprintf("invalid job worker count %d: must be at least 1", c.JobWorkers))
	}
	if c.JobQueueSize < 1 {
		problems = append(problems, fmt.Sprintf("invalid job queue size %d: must be at least 1", c.JobQueueSize))
	}

	if c.DefaultBudget < 0 {
		problems = append(problems, fmt.Sprintf("invalid default budget %d: must not be negative", c.DefaultBudget))
	}

	if c.ParseRulesFile != "" {
		if _, err := os.Stat(c.ParseRulesFile); err != nil {
			problems = append(problems, fmt.Sprintf("parse rules file '%s' is not readable: %v", c.ParseRulesFile, err))
		}
	}

	if len(problems) > 0 {
		return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(problems, "\n- "))
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

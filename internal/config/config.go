package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Server     ServerConfig
	Database   DatabaseConfig
	Gemini     GeminiConfig
	Generation GenerationConfig
	Upload     UploadConfig
	Extraction ExtractionConfig
	Staging    StagingConfig
	RateLimit  RateLimitConfig
	Audit      AuditConfig
	Features   FeaturesConfig
}

type ServerConfig struct {
	Port           string
	Env            string
	LogLevel       string
	ProxyHeader    string
	AllowOrigins   string
	RequestTimeout time.Duration
}

type DatabaseConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
}

type GeminiConfig struct {
	APIKey  string
	Model   string
	BaseURL string
}

type GenerationConfig struct {
	Timeout             time.Duration
	RequestsPerSecond   float64
	Burst               int
	BreakerEnabled      bool
	BreakerMinRequests  uint32
	BreakerFailureRatio float64
	BreakerOpenTimeout  time.Duration
}

type UploadConfig struct {
	MaxFileSize int64
}

type ExtractionConfig struct {
	FirstPageOnly bool
	MaxPages      int
	MaxChars      int
}

type StagingConfig struct {
	Mode string
	Path string
}

type RateLimitConfig struct {
	GeneralWindow   time.Duration
	GeneralLimit    int
	SummaryWindow   time.Duration
	SummaryLimit    int
	JanitorInterval time.Duration
}

type AuditConfig struct {
	Enabled       bool
	Workers       int
	QueueSize     int
	Retention     time.Duration
	PruneInterval time.Duration
}

type FeaturesConfig struct {
	TablePath string
}

const (
	StagingMemory = "memory"
	StagingDisk   = "disk"
)

func Load() *Config {
	if err := godotenv.Load(); err != nil {
		slog.Info("No .env file found. Using environment and default values.")
	}

	return &Config{
		Server: ServerConfig{
			Port:           getEnv("PORT", "3000"),
			Env:            getEnv("ENV", "development"),
			LogLevel:       getEnv("LOG_LEVEL", "info"),
			ProxyHeader:    getEnv("PROXY_HEADER", ""),
			AllowOrigins:   getEnv("CORS_ALLOW_ORIGINS", "http://localhost:3000,http://localhost:8000,https://cv-review-generator.vercel.app"),
			RequestTimeout: getEnvAsDuration("REQUEST_TIMEOUT", "55s"),
		},
		Database: DatabaseConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnv("DB_PORT", "5432"),
			User:     getEnv("DB_USER", "postgres"),
			Password: getEnv("DB_PASSWORD", "postgres"),
			DBName:   getEnv("DB_NAME", "cv_review"),
		},
		Gemini: GeminiConfig{
			APIKey:  getEnv("GEMINI_API_KEY", ""),
			Model:   getEnv("GEMINI_MODEL", "gemini-2.5-flash"),
			BaseURL: getEnv("GEMINI_BASE_URL", ""),
		},
		Generation: GenerationConfig{
			Timeout:             getEnvAsDuration("GENERATION_TIMEOUT", "54s"),
			RequestsPerSecond:   getEnvAsFloat("GENERATION_RPS", 2),
			Burst:               getEnvAsInt("GENERATION_BURST", 5),
			BreakerEnabled:      getEnvAsBool("BREAKER_ENABLED", true),
			BreakerMinRequests:  uint32(getEnvAsInt("BREAKER_MIN_REQUESTS", 5)),
			BreakerFailureRatio: getEnvAsFloat("BREAKER_FAILURE_RATIO", 0.6),
			BreakerOpenTimeout:  getEnvAsDuration("BREAKER_OPEN_TIMEOUT", "30s"),
		},
		Upload: UploadConfig{
			MaxFileSize: getEnvAsInt64("MAX_FILE_SIZE", 5*1024*1024),
		},
		Extraction: ExtractionConfig{
			FirstPageOnly: getEnvAsBool("EXTRACT_FIRST_PAGE_ONLY", false),
			MaxPages:      getEnvAsInt("EXTRACT_MAX_PAGES", 2),
			MaxChars:      getEnvAsInt("EXTRACT_MAX_CHARS", 12000),
		},
		Staging: StagingConfig{
			Mode: strings.ToLower(getEnv("STAGING_MODE", StagingMemory)),
			Path: getEnv("STAGING_PATH", "./uploads"),
		},
		RateLimit: RateLimitConfig{
			GeneralWindow:   getEnvAsDuration("GENERAL_RATE_WINDOW", "15m"),
			GeneralLimit:    getEnvAsInt("GENERAL_RATE_LIMIT", 5),
			SummaryWindow:   getEnvAsDuration("SUMMARY_RATE_WINDOW", "10m"),
			SummaryLimit:    getEnvAsInt("SUMMARY_RATE_LIMIT", 1),
			JanitorInterval: getEnvAsDuration("RATE_JANITOR_INTERVAL", "1m"),
		},
		Audit: AuditConfig{
			Enabled:       getEnvAsBool("AUDIT_ENABLED", false),
			Workers:       getEnvAsInt("AUDIT_WORKERS", 2),
			QueueSize:     getEnvAsInt("AUDIT_QUEUE_SIZE", 100),
			Retention:     getEnvAsDuration("AUDIT_RETENTION", "720h"),
			PruneInterval: getEnvAsDuration("AUDIT_PRUNE_INTERVAL", "1h"),
		},
		Features: FeaturesConfig{
			TablePath: getEnv("FEATURE_TABLE_PATH", ""),
		},
	}
}

// Validate fails startup on settings the pipeline cannot run with.
func (c *Config) Validate() error {
	var errs []error
	if strings.TrimSpace(c.Gemini.APIKey) == "" {
		errs = append(errs, errors.New("GEMINI_API_KEY is required"))
	}
	if c.Generation.Timeout <= 0 {
		errs = append(errs, errors.New("GENERATION_TIMEOUT must be positive"))
	}
	if c.Generation.Timeout >= c.Server.RequestTimeout {
		errs = append(errs, fmt.Errorf("GENERATION_TIMEOUT (%s) must be shorter than REQUEST_TIMEOUT (%s)",
			c.Generation.Timeout, c.Server.RequestTimeout))
	}
	if c.Upload.MaxFileSize <= 0 {
		errs = append(errs, errors.New("MAX_FILE_SIZE must be positive"))
	}
	if c.Staging.Mode != StagingMemory && c.Staging.Mode != StagingDisk {
		errs = append(errs, fmt.Errorf("STAGING_MODE must be %q or %q, got %q", StagingMemory, StagingDisk, c.Staging.Mode))
	}
	if c.RateLimit.GeneralLimit <= 0 || c.RateLimit.SummaryLimit <= 0 {
		errs = append(errs, errors.New("rate limits must be positive"))
	}
	return errors.Join(errs...)
}

func (c *Config) GetDatabaseDSN() string {
	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=disable",
		c.Database.Host,
		c.Database.Port,
		c.Database.User,
		c.Database.Password,
		c.Database.DBName,
	)
}

func (c *Config) AllowOriginsList() []string {
	var origins []string
	for _, o := range strings.Split(c.Server.AllowOrigins, ",") {
		if o = strings.TrimSpace(o); o != "" {
			origins = append(origins, o)
		}
	}
	return origins
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsInt64(key string, defaultValue int64) int64 {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseInt(valueStr, 10, 64); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseFloat(valueStr, 64); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue string) time.Duration {
	valueStr := getEnv(key, defaultValue)
	if duration, err := time.ParseDuration(valueStr); err == nil {
		return duration
	}
	duration, _ := time.ParseDuration(defaultValue)
	return duration
}

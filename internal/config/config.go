package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"

	"vendorsync/internal/logger"
)

// Storage backends for the running total-spend figure.
const (
	SpendStoreFile   = "file"
	SpendStoreRedis  = "redis"
	SpendStoreMemory = "memory"
)

// Upload extractors.
const (
	ExtractorRemote     = "remote"
	ExtractorDocumentAI = "documentai"
)

const defaultAPIBase = "http://localhost:4000"

type Config struct {
	// Remote API
	APIBaseURL    string
	APIToken      string
	APITimeout    time.Duration
	APIMaxRetries int
	APIRateLimit  float64 // requests per second, 0 disables
	HydrateLimit  int

	// Total-spend persistence
	SpendStore     string
	SpendStorePath string
	RedisAddr      string
	RedisPassword  string
	RedisDB        int

	// Upload extraction
	Extractor                  string
	GoogleCloudProject         string
	GoogleCloudLocation        string
	DocumentAIProcessorID      string
	DocumentAIProcessorVersion string
	OpenAIAPIKey               string
	OpenAIModel                string

	// Google credentials shared by Document AI and Sheets
	GoogleCredentialsFile string
	GoogleCredentialsJSON string

	// Google Sheets export
	GoogleSheetURL string

	// JSON server
	ServerAddr string

	// Logging Configuration
	LogLevel      string
	LogFormat     string
	LogTimeFormat string
	LogOutput     string
}

func Load() (*Config, error) {
	config := &Config{
		APIBaseURL:                 resolveAPIBase(),
		APIToken:                   getEnv("VENDORSYNC_API_TOKEN", ""),
		APITimeout:                 getDuration("API_TIMEOUT", 30*time.Second),
		APIMaxRetries:              getInt("API_MAX_RETRIES", 0),
		APIRateLimit:               getFloat("API_RATE_LIMIT", 0),
		HydrateLimit:               getInt("HYDRATE_CONCURRENCY", 8),
		SpendStore:                 strings.ToLower(getEnv("SPEND_STORE", SpendStoreFile)),
		SpendStorePath:             getEnv("SPEND_STORE_PATH", defaultSpendPath()),
		RedisAddr:                  getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword:              getEnv("REDIS_PASSWORD", ""),
		RedisDB:                    getInt("REDIS_DB", 0),
		Extractor:                  strings.ToLower(getEnv("EXTRACTOR", ExtractorRemote)),
		GoogleCloudProject:         getEnv("GOOGLE_CLOUD_PROJECT", ""),
		GoogleCloudLocation:        getEnv("GOOGLE_CLOUD_LOCATION", "us"),
		DocumentAIProcessorID:      getEnv("DOCUMENT_AI_PROCESSOR_ID", ""),
		DocumentAIProcessorVersion: getEnv("DOCUMENT_AI_PROCESSOR_VERSION", ""),
		OpenAIAPIKey:               getEnv("OPENAI_API_KEY", ""),
		OpenAIModel:                getEnv("OPENAI_MODEL", "gpt-4o-mini"),
		GoogleCredentialsFile:      getEnv("GOOGLE_APPLICATION_CREDENTIALS", ""),
		GoogleCredentialsJSON:      getEnv("GOOGLE_CREDENTIALS", ""),
		GoogleSheetURL:             getEnv("GOOGLE_SHEET_URL", ""),
		ServerAddr:                 getEnv("SERVER_ADDR", ":8080"),
		LogLevel:                   getEnv("LOG_LEVEL", "info"),
		LogFormat:                  getEnv("LOG_FORMAT", "console"),
		LogTimeFormat:              getEnv("LOG_TIME_FORMAT", "2006-01-02T15:04:05Z07:00"),
		LogOutput:                  getEnv("LOG_OUTPUT", "stderr"),
	}

	if err := config.validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return config, nil
}

func (c *Config) validate() error {
	u, err := url.Parse(c.APIBaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("VENDORSYNC_API_BASE must be an absolute URL, got %q", c.APIBaseURL)
	}
	if c.APITimeout <= 0 {
		return fmt.Errorf("API_TIMEOUT must be positive")
	}
	if c.APIMaxRetries < 0 {
		return fmt.Errorf("API_MAX_RETRIES cannot be negative")
	}
	if c.HydrateLimit <= 0 {
		return fmt.Errorf("HYDRATE_CONCURRENCY must be positive")
	}
	switch c.SpendStore {
	case SpendStoreFile, SpendStoreRedis, SpendStoreMemory:
	default:
		return fmt.Errorf("SPEND_STORE must be one of file, redis, memory; got %q", c.SpendStore)
	}
	switch c.Extractor {
	case ExtractorRemote:
	case ExtractorDocumentAI:
		if c.GoogleCloudProject == "" {
			return fmt.Errorf("GOOGLE_CLOUD_PROJECT is required for the documentai extractor")
		}
		if c.DocumentAIProcessorID == "" {
			return fmt.Errorf("DOCUMENT_AI_PROCESSOR_ID is required for the documentai extractor")
		}
	default:
		return fmt.Errorf("EXTRACTOR must be remote or documentai; got %q", c.Extractor)
	}
	return nil
}

// GetLoggerConfig returns a logger configuration from the main config
func (c *Config) GetLoggerConfig() logger.LogConfig {
	return logger.LogConfig{
		Level:      c.LogLevel,
		Format:     c.LogFormat,
		TimeFormat: c.LogTimeFormat,
		Output:     c.LogOutput,
	}
}

var vendorPathSuffix = regexp.MustCompile(`/vendor.*$`)

// resolveAPIBase picks the API base URL. VENDORS_API_URL points at the vendor
// collection itself, so its /vendor suffix is stripped.
func resolveAPIBase() string {
	if v := getEnv("VENDORSYNC_API_BASE", getEnv("NEXT_PUBLIC_API_BASE", "")); v != "" {
		return strings.TrimRight(v, "/")
	}
	if v := getEnv("VENDORS_API_URL", ""); v != "" {
		return strings.TrimRight(vendorPathSuffix.ReplaceAllString(v, ""), "/")
	}
	return defaultAPIBase
}

func defaultSpendPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		dir = os.TempDir()
	}
	return filepath.Join(dir, "vendorsync", "total_spend.json")
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getInt(key string, defaultValue int) int {
	if v, err := strconv.Atoi(getEnv(key, "")); err == nil {
		return v
	}
	return defaultValue
}

func getFloat(key string, defaultValue float64) float64 {
	if v, err := strconv.ParseFloat(getEnv(key, ""), 64); err == nil {
		return v
	}
	return defaultValue
}

// getDuration accepts Go durations ("45s") or a bare number of seconds.
func getDuration(key string, defaultValue time.Duration) time.Duration {
	raw := getEnv(key, "")
	if raw == "" {
		return defaultValue
	}
	if d, err := time.ParseDuration(raw); err == nil {
		return d
	}
	if secs, err := strconv.Atoi(raw); err == nil {
		return time.Duration(secs) * time.Second
	}
	return defaultValue
}

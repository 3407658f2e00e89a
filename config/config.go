package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration loaded from environment variables.
type Config struct {
	PostgresHost     string
	PostgresPort     string
	PostgresUser     string
	PostgresPassword string
	PostgresDB       string
	PostgresSSLMode  string
	StoreBackend     string

	MaxConcurrency int
	RateLimitMs    int
	MaxRetries     int
	RequestTimeout time.Duration
	ExtractWorkers int
	UserAgent      string

	CommercialOnly bool
	TrendWindow    time.Duration
	TopN           int

	OutputDir    string
	AnalyticsDir string
	ProfilePath  string
	SyncXLSXPath string
	ChromeBin    string
	MetricsAddr  string
}

const defaultUserAgent = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 " +
	"(KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

// Load reads the .env file and returns a populated Config struct.
func Load() *Config {
	if err := godotenv.Load(); err != nil {
		log.Println("[config] No .env file found, falling back to system env vars")
	}
	return FromEnv()
}

// FromEnv builds a Config from the current process environment only.
func FromEnv() *Config {
	return &Config{
		PostgresHost:     getEnv("POSTGRES_HOST", "localhost"),
		PostgresPort:     getEnv("POSTGRES_PORT", "5432"),
		PostgresUser:     getEnv("POSTGRES_USER", "scraper"),
		PostgresPassword: getEnv("POSTGRES_PASSWORD", "scraper123"),
		PostgresDB:       getEnv("POSTGRES_DB", "listings_db"),
		PostgresSSLMode:  getEnv("POSTGRES_SSLMODE", "disable"),
		StoreBackend:     strings.ToLower(getEnv("STORE_BACKEND", "memory")),

		MaxConcurrency: getEnvInt("MAX_CONCURRENCY", 8),
		RateLimitMs:    getEnvInt("RATE_LIMIT_MS", 0),
		MaxRetries:     getEnvInt("MAX_RETRIES", 2),
		RequestTimeout: getEnvDuration("REQUEST_TIMEOUT", 30*time.Second),
		ExtractWorkers: getEnvInt("EXTRACT_WORKERS", 4),
		UserAgent:      getEnv("USER_AGENT", defaultUserAgent),

		CommercialOnly: getEnvBool("COMMERCIAL_ONLY", false),
		TrendWindow:    getEnvDuration("TREND_WINDOW", 7*24*time.Hour),
		TopN:           getEnvInt("TOP_N", 10),

		OutputDir:    getEnv("OUTPUT_DIR", "./output"),
		AnalyticsDir: getEnv("ANALYTICS_DIR", "./output/analytics"),
		ProfilePath:  getEnv("PROFILE_PATH", ""),
		SyncXLSXPath: getEnv("SYNC_XLSX_PATH", ""),
		ChromeBin:    getEnv("CHROME_BIN", ""),
		MetricsAddr:  getEnv("METRICS_ADDR", ""),
	}
}

// DSN returns the PostgreSQL connection string.
func (c *Config) DSN() string {
	return "host=" + c.PostgresHost +
		" port=" + c.PostgresPort +
		" user=" + c.PostgresUser +
		" password=" + c.PostgresPassword +
		" dbname=" + c.PostgresDB +
		" sslmode=" + c.PostgresSSLMode
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if val := os.Getenv(key); val != "" {
		n, err := strconv.Atoi(val)
		if err == nil {
			return n
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if val := os.Getenv(key); val != "" {
		b, err := strconv.ParseBool(val)
		if err == nil {
			return b
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		d, err := time.ParseDuration(val)
		if err == nil {
			return d
		}
	}
	return fallback
}

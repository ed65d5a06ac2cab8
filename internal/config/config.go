package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"
)

var (
	ErrMissingToken     = errors.New("TELEGRAM_BOT_TOKEN is required")
	ErrMissingDB        = errors.New("DATABASE_URL is required")
	ErrMissingRedis     = errors.New("REDIS_URL is required when CACHE_TYPE=redis")
	ErrInvalidCacheType = errors.New("invalid cache type")
	ErrMissingAPIURL    = errors.New("API_BASE_URL is required")
)

const (
	CacheMemory = "memory"
	CacheRedis  = "redis"
	CacheNone   = "none"
)

type Config struct {
	HTTP      HTTPConfig
	Database  DatabaseConfig
	Telegram  TelegramConfig
	API       APIConfig
	Search    SearchConfig
	Query     QueryConfig
	Log       LogConfig
	Cache     CacheConfig
	Redis     RedisConfig
	RateLimit RateLimitConfig
	Ingest    IngestConfig
}

type HTTPConfig struct {
	Addr            string
	ShutdownTimeout time.Duration
}

type DatabaseConfig struct {
	URL string
}

type TelegramConfig struct {
	Token string
	Debug bool
}

// APIConfig - куда ходит клиент поиска (веб-страница и бот).
type APIConfig struct {
	BaseURL       string
	Timeout       time.Duration
	RatePerSecond float64
}

type SearchConfig struct {
	MaxResults int
	Timeout    time.Duration
}

type QueryConfig struct {
	StaleTime  time.Duration
	CacheTime  time.Duration
	RetryDelay time.Duration
}

type LogConfig struct {
	Level string
}

type CacheConfig struct {
	Type string
	TTL  time.Duration
}

type RedisConfig struct {
	URL string
}

type RateLimitConfig struct {
	RequestsPerMinute int
}

type IngestConfig struct {
	WorkDir     string
	SourcesFile string
	BatchSize   int
	DevMode     bool
	SampleSize  int
	KeepFiles   bool
}

func Load() (*Config, error) {
	cfg := &Config{
		HTTP: HTTPConfig{
			Addr:            getEnvOrDefault("HTTP_ADDR", ":8080"),
			ShutdownTimeout: time.Duration(getEnvIntOrDefault("SHUTDOWN_TIMEOUT_SEC", 10)) * time.Second,
		},
		Database: DatabaseConfig{
			URL: os.Getenv("DATABASE_URL"),
		},
		Telegram: TelegramConfig{
			Token: os.Getenv("TELEGRAM_BOT_TOKEN"),
			Debug: getEnvBoolOrDefault("TELEGRAM_DEBUG", false),
		},
		API: APIConfig{
			BaseURL:       strings.TrimRight(getEnvOrDefault("API_BASE_URL", "http://localhost:8080"), "/"),
			Timeout:       time.Duration(getEnvIntOrDefault("API_TIMEOUT_SEC", 10)) * time.Second,
			RatePerSecond: getEnvFloatOrDefault("API_RATE_PER_SEC", 0),
		},
		Search: SearchConfig{
			MaxResults: getEnvIntOrDefault("SEARCH_MAX_RESULTS", 20),
			Timeout:    time.Duration(getEnvIntOrDefault("SEARCH_TIMEOUT_SEC", 5)) * time.Second,
		},
		Query: QueryConfig{
			StaleTime:  time.Duration(getEnvIntOrDefault("QUERY_STALE_SEC", 300)) * time.Second,
			CacheTime:  time.Duration(getEnvIntOrDefault("QUERY_CACHE_SEC", 600)) * time.Second,
			RetryDelay: time.Duration(getEnvIntOrDefault("QUERY_RETRY_DELAY_MS", 1000)) * time.Millisecond,
		},
		Log: LogConfig{
			Level: getEnvOrDefault("LOG_LEVEL", "info"),
		},
		Cache: CacheConfig{
			Type: strings.ToLower(getEnvOrDefault("CACHE_TYPE", CacheMemory)),
			TTL:  time.Duration(getEnvIntOrDefault("CACHE_TTL_SEC", 300)) * time.Second,
		},
		Redis: RedisConfig{
			URL: os.Getenv("REDIS_URL"),
		},
		RateLimit: RateLimitConfig{
			RequestsPerMinute: getEnvIntOrDefault("RATE_LIMIT_PER_MINUTE", 60),
		},
		Ingest: IngestConfig{
			WorkDir:     getEnvOrDefault("INGEST_WORK_DIR", "data"),
			SourcesFile: os.Getenv("INGEST_SOURCES_FILE"),
			BatchSize:   getEnvIntOrDefault("INGEST_BATCH_SIZE", 1000),
			DevMode:     getEnvBoolOrDefault("INGEST_DEV_MODE", true),
			SampleSize:  getEnvIntOrDefault("INGEST_SAMPLE_SIZE", 100000),
			KeepFiles:   getEnvBoolOrDefault("INGEST_KEEP_FILES", false),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate проверяет только общие параметры, остальное - ValidateServer/Bot/Ingest.
func (c *Config) Validate() error {
	switch c.Cache.Type {
	case CacheMemory, CacheNone:
	case CacheRedis:
		if c.Redis.URL == "" {
			return ErrMissingRedis
		}
	default:
		return ErrInvalidCacheType
	}
	return nil
}

func (c *Config) ValidateServer() error {
	if c.Database.URL == "" {
		return ErrMissingDB
	}
	if c.API.BaseURL == "" {
		return ErrMissingAPIURL
	}
	return c.Validate()
}

func (c *Config) ValidateBot() error {
	if c.Telegram.Token == "" {
		return ErrMissingToken
	}
	if c.API.BaseURL == "" {
		return ErrMissingAPIURL
	}
	return nil
}

func (c *Config) ValidateIngest() error {
	if c.Database.URL == "" {
		return ErrMissingDB
	}
	return nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvFloatOrDefault(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getEnvBoolOrDefault(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

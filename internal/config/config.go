package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"

	"medstay/internal/cache"
	"medstay/internal/database"
	"medstay/internal/messaging"
	"medstay/internal/search"
)

// Storage drivers
const (
	StoragePostgres = "postgres"
	StorageMemory   = "memory"
)

// Config содержит конфигурацию приложения
type Config struct {
	Port           string
	GinMode        string
	LogLevel       string
	LogFormat      string
	RequestTimeout time.Duration

	// STORAGE_DRIVER=memory запускает сервис без PostgreSQL (разработка, демо)
	StorageDriver string

	// Пустой секрет включает режим разработки: гость и роль берутся из
	// X-Guest-ID/X-Guest-Role. Допустим только с STORAGE_DRIVER=memory
	JWTSecret string

	// Ограничение параллелизма для календаря нескольких объектов
	CalendarConcurrency int

	Database   database.Config
	NATS       messaging.Config
	Cache      cache.Config
	Search     search.Config
	PricingJob PricingJobConfig
}

// PricingJobConfig настраивает периодический пересчет динамических цен
type PricingJobConfig struct {
	Enabled      bool
	Interval     time.Duration
	HorizonDays  int
	DemandFactor float64
}

// ErrMissingJWTSecret - API с постоянным хранилищем без проверки токенов
var ErrMissingJWTSecret = errors.New("JWT_SECRET is required unless STORAGE_DRIVER=memory")

// Validate проверяет конфигурацию API перед запуском
func (c *Config) Validate() error {
	switch c.StorageDriver {
	case StoragePostgres:
		if c.JWTSecret == "" {
			return ErrMissingJWTSecret
		}
	case StorageMemory:
	default:
		return fmt.Errorf("unknown STORAGE_DRIVER %q", c.StorageDriver)
	}
	return nil
}

// Load загружает конфигурацию из .env (если есть) и переменных окружения
func Load() *Config {
	// Переменные окружения имеют приоритет над .env
	_ = godotenv.Load()

	return &Config{
		Port:           getEnv("PORT", "8081"),
		GinMode:        getEnv("GIN_MODE", "debug"),
		LogLevel:       getEnv("LOG_LEVEL", "info"),
		LogFormat:      getEnv("LOG_FORMAT", "json"),
		RequestTimeout: time.Duration(getEnvInt("REQUEST_TIMEOUT_SEC", 30)) * time.Second,

		StorageDriver:       getEnv("STORAGE_DRIVER", StoragePostgres),
		JWTSecret:           getEnv("JWT_SECRET", ""),
		CalendarConcurrency: getEnvInt("CALENDAR_CONCURRENCY", 8),

		Database: database.Config{
			Host:               getEnv("DB_HOST", "localhost"),
			Port:               getEnvInt("DB_PORT", 5432),
			User:               getEnv("DB_USER", "medstay"),
			Password:           getEnv("DB_PASSWORD", "medstay123"),
			DBName:             getEnv("DB_NAME", "medstay"),
			SSLMode:            getEnv("DB_SSLMODE", "disable"),
			MaxOpenConns:       getEnvInt("DB_MAX_OPEN_CONNS", 50),
			MaxIdleConns:       getEnvInt("DB_MAX_IDLE_CONNS", 10),
			ConnMaxLifetimeMin: getEnvInt("DB_CONN_MAX_LIFETIME_MIN", 5),
			ConnMaxIdleTimeMin: getEnvInt("DB_CONN_MAX_IDLE_TIME_MIN", 1),
		},

		NATS: messaging.Config{
			Enabled:   getEnvBool("NATS_ENABLED", true),
			URL:       getEnv("NATS_URL", "nats://localhost:4222"),
			ClusterID: getEnv("NATS_CLUSTER_ID", "medstay"),
			ClientID:  getEnv("NATS_CLIENT_ID", "medstay-api"),
		},

		Cache: cache.Config{
			Enabled:  getEnvBool("CACHE_ENABLED", false),
			Addr:     getEnv("VALKEY_ADDR", "localhost:6379"),
			Password: getEnv("VALKEY_PASSWORD", ""),
			TTL:      time.Duration(getEnvInt("CACHE_TTL_SEC", 300)) * time.Second,
		},

		Search: search.Config{
			Enabled:    getEnvBool("ELASTICSEARCH_ENABLED", false),
			URL:        getEnv("ELASTICSEARCH_URL", "http://localhost:9200"),
			Index:      getEnv("ELASTICSEARCH_INDEX", "bookings"),
			Username:   getEnv("ELASTICSEARCH_USERNAME", ""),
			Password:   getEnv("ELASTICSEARCH_PASSWORD", ""),
			MaxRetries: getEnvInt("ELASTICSEARCH_MAX_RETRIES", 3),
			Timeout:    time.Duration(getEnvInt("ELASTICSEARCH_TIMEOUT_SEC", 10)) * time.Second,
		},

		PricingJob: PricingJobConfig{
			Enabled:      getEnvBool("PRICING_JOB_ENABLED", false),
			Interval:     time.Duration(getEnvInt("PRICING_JOB_INTERVAL_MIN", 360)) * time.Minute,
			HorizonDays:  getEnvInt("PRICING_JOB_HORIZON_DAYS", 90),
			DemandFactor: getEnvFloat("PRICING_JOB_DEMAND_FACTOR", 1.0),
		},
	}
}

// getEnv получает значение переменной окружения или возвращает значение по умолчанию
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt получает целочисленное значение переменной окружения
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

// getEnvBool получает логическое значение переменной окружения
func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

// getEnvFloat получает дробное значение переменной окружения
func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}

package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Storage backends
const (
	StorageDynamoDB = "dynamodb"
	StorageMemory   = "memory"
)

// Config holds all application configuration
type Config struct {
	// Server configuration
	ServerAddress   string
	Environment     string
	ShutdownTimeout time.Duration

	// Storage
	StorageBackend   string
	AWSRegion        string
	DynamoDBTable    string
	DynamoDBEndpoint string
	StoreTimeout     time.Duration

	// Circuit breaker around the store
	BreakerMaxRequests      uint32
	BreakerInterval         time.Duration
	BreakerTimeout          time.Duration
	BreakerFailureThreshold float64

	// Shared featured category cell
	RedisURL    string
	RedisPrefix string

	// Integration events
	EventBusName string

	// Logging
	LogLevel string

	// Authentication
	JWTSecret string
	JWTIssuer string

	// CORS
	CORSOrigins []string

	// Chat
	Categories       []string
	CategoriesFile   string
	DefaultRoomSize  int
	CategoryRunAt    string
	CategoryTimezone string

	// Feature flags
	EnableMetrics bool
	EnableTracing bool
	OTLPEndpoint  string
}

// LoadConfig loads configuration from environment variables
func LoadConfig() (*Config, error) {
	cfg := &Config{
		ServerAddress:   getEnv("SERVER_ADDRESS", ":5000"),
		Environment:     getEnv("ENVIRONMENT", "development"),
		ShutdownTimeout: getEnvDuration("SHUTDOWN_TIMEOUT", 15*time.Second),

		StorageBackend:   getEnv("STORAGE_BACKEND", StorageMemory),
		AWSRegion:        getEnv("AWS_REGION", "eu-central-1"),
		DynamoDBTable:    getEnv("DYNAMODB_TABLE", "valks"),
		DynamoDBEndpoint: getEnv("DYNAMODB_ENDPOINT", ""),
		StoreTimeout:     getEnvDuration("STORE_TIMEOUT", 5*time.Second),

		BreakerMaxRequests:      uint32(getEnvInt("BREAKER_MAX_REQUESTS", 5)),
		BreakerInterval:         getEnvDuration("BREAKER_INTERVAL", 30*time.Second),
		BreakerTimeout:          getEnvDuration("BREAKER_TIMEOUT", 60*time.Second),
		BreakerFailureThreshold: getEnvFloat("BREAKER_FAILURE_THRESHOLD", 0.8),

		RedisURL:    getEnv("REDIS_URL", ""),
		RedisPrefix: getEnv("REDIS_PREFIX", "valks:"),

		EventBusName: getEnv("EVENT_BUS_NAME", ""),

		LogLevel: getEnv("LOG_LEVEL", "info"),

		JWTSecret: getEnv("JWT_SECRET", ""),
		JWTIssuer: getEnv("JWT_ISSUER", ""),

		CORSOrigins: getEnvList("CORS_ORIGINS", []string{"https://valks.netlify.app"}),

		Categories:       getEnvList("CATEGORIES", []string{"Games", "Music", "Movies", "Sport", "Technology", "Books"}),
		CategoriesFile:   getEnv("CATEGORIES_FILE", ""),
		DefaultRoomSize:  getEnvInt("DEFAULT_ROOM_SIZE", 20),
		CategoryRunAt:    getEnv("CATEGORY_RUN_AT", "00:00"),
		CategoryTimezone: getEnv("CATEGORY_TIMEZONE", "UTC"),

		EnableMetrics: getEnvBool("ENABLE_METRICS", true),
		EnableTracing: getEnvBool("ENABLE_TRACING", false),
		OTLPEndpoint:  getEnv("OTLP_ENDPOINT", ""),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks if all required configuration is present
func (c *Config) Validate() error {
	switch c.StorageBackend {
	case StorageMemory:
	case StorageDynamoDB:
		if c.DynamoDBTable == "" {
			return fmt.Errorf("DYNAMODB_TABLE is required for the dynamodb backend")
		}
	default:
		return fmt.Errorf("unknown STORAGE_BACKEND %q", c.StorageBackend)
	}

	if c.Environment == "production" {
		if c.JWTSecret == "" {
			return fmt.Errorf("JWT_SECRET is required in production")
		}
		if c.StorageBackend != StorageDynamoDB {
			return fmt.Errorf("production requires STORAGE_BACKEND=dynamodb")
		}
	}

	if c.DefaultRoomSize < 1 {
		return fmt.Errorf("DEFAULT_ROOM_SIZE must be positive")
	}
	if c.StoreTimeout <= 0 {
		return fmt.Errorf("STORE_TIMEOUT must be positive")
	}
	if _, _, err := c.RunAt(); err != nil {
		return err
	}
	if _, err := c.Location(); err != nil {
		return err
	}

	return nil
}

// RunAt parses CategoryRunAt as HH:MM
func (c *Config) RunAt() (hour, minute int, err error) {
	t, err := time.Parse("15:04", c.CategoryRunAt)
	if err != nil {
		return 0, 0, fmt.Errorf("CATEGORY_RUN_AT must be HH:MM: %w", err)
	}
	return t.Hour(), t.Minute(), nil
}

// Location resolves CategoryTimezone
func (c *Config) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.CategoryTimezone)
	if err != nil {
		return nil, fmt.Errorf("invalid CATEGORY_TIMEZONE: %w", err)
	}
	return loc, nil
}

// IsDevelopment checks if running in development mode
func (c *Config) IsDevelopment() bool {
	return c.Environment == "development"
}

// IsProduction checks if running in production mode
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

// getEnv gets an environment variable with a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvBool gets a boolean environment variable with a default value
func getEnvBool(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value == "true" || value == "1" || value == "yes"
}

// getEnvInt gets an integer environment variable with a default value
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

// getEnvDuration accepts Go durations ("5s") or plain seconds
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	if d, err := time.ParseDuration(value); err == nil {
		return d
	}
	if secs, err := strconv.Atoi(value); err == nil {
		return time.Duration(secs) * time.Second
	}
	return defaultValue
}

// getEnvList splits a comma separated variable, dropping blanks
func getEnvList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var list []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			list = append(list, part)
		}
	}
	return list
}

package config

import (
	"fmt"
	"os"
	"strconv"
)

// Config holds all application configuration
type Config struct {
	// Server configuration
	ServerAddress string
	Environment   string

	// AWS configuration
	AWSRegion       string
	DynamoDBTable   string
	OfferIndexName  string // GSI1 - pending requests by offered timeslot
	UserIndexName   string // GSI2 - requests and maps by user
	EventBusName    string
	MetricNamespace string

	// Lambda configuration
	IsLambda bool

	// Persistence backend: "dynamodb" or "memory"
	StorageBackend string

	// Dynamic configuration file, optional
	DynamicConfigPath string

	// Logging
	LogLevel string

	// Authentication
	JWTSecret   string
	JWTIssuer   string
	JWTAudience string

	// Feature flags
	EnableMetrics bool
	EnableCORS    bool
}

// LoadConfig loads configuration from environment variables
func LoadConfig() (*Config, error) {
	cfg := &Config{
		ServerAddress:   getEnv("SERVER_ADDRESS", ":8080"),
		Environment:     getEnv("ENVIRONMENT", "development"),
		AWSRegion:       getEnv("AWS_REGION", "us-west-2"),
		DynamoDBTable:   getEnv("TABLE_NAME", "swapcourses"),
		OfferIndexName:  getEnv("OFFER_INDEX_NAME", "OfferIndex"),
		UserIndexName:   getEnv("USER_INDEX_NAME", "UserIndex"),
		EventBusName:    getEnv("EVENT_BUS_NAME", "swapcourses-events"),
		MetricNamespace: getEnv("METRIC_NAMESPACE", "SwapCourses"),

		IsLambda:       getEnvBool("IS_LAMBDA", false),
		StorageBackend: getEnv("STORAGE_BACKEND", "dynamodb"),

		DynamicConfigPath: getEnv("DYNAMIC_CONFIG_PATH", ""),

		JWTSecret:   getEnv("JWT_SECRET", ""),
		JWTIssuer:   getEnv("JWT_ISSUER", "swapcourses"),
		JWTAudience: getEnv("JWT_AUDIENCE", ""),

		LogLevel:      getEnv("LOG_LEVEL", "info"),
		EnableMetrics: getEnvBool("ENABLE_METRICS", false),
		EnableCORS:    getEnvBool("ENABLE_CORS", true),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks if all required configuration is present
func (c *Config) Validate() error {
	switch c.StorageBackend {
	case "dynamodb", "memory":
	default:
		return fmt.Errorf("unknown STORAGE_BACKEND %q", c.StorageBackend)
	}
	if c.Environment == "production" {
		if c.JWTSecret == "" {
			return fmt.Errorf("JWT_SECRET is required in production")
		}
		if c.StorageBackend == "memory" {
			return fmt.Errorf("the memory backend cannot be used in production")
		}
		if c.DynamoDBTable == "" {
			return fmt.Errorf("TABLE_NAME is required")
		}
	}
	return nil
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

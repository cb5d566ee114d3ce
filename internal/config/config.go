package config

import (
	"log"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

type Config struct {
	Port    string
	GinMode string

	// Google Generative Language API
	GoogleAIAPIKey  string
	GoogleAIBaseURL string

	// Storage
	MongoDBURI      string
	MongoDBDatabase string
	DataDir         string

	// Generation
	GenerationMaxAttempts    int
	GenerationTimeoutSeconds int

	// Server
	ServerShutdownTimeoutSeconds int

	// CORS
	CORSAllowedOrigins string

	// Logging
	LogLevel  string
	LogFormat string
}

// Load reads configuration from the environment, loading a .env file first
// when one is present. The Google AI API key is the only required setting.
func Load() *Config {
	if err := godotenv.Load(".env"); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	cfg := &Config{
		Port:    getEnvOrDefault("PORT", "9000"),
		GinMode: getEnvOrDefault("GIN_MODE", "release"),

		// Google Generative Language API
		GoogleAIAPIKey:  getEnvOrDefault("GOOGLE_AI_API_KEY", ""),
		GoogleAIBaseURL: getEnvOrDefault("GOOGLE_AI_BASE_URL", "https://generativelanguage.googleapis.com/v1beta"),

		// Storage: MongoDB when a URI is configured, file snapshot otherwise.
		MongoDBURI:      getEnvOrDefault("MONGODB_URI", ""),
		MongoDBDatabase: getEnvOrDefault("MONGODB_DATABASE", "ai_chat"),
		DataDir:         getEnvOrDefault("DATA_DIR", "data"),

		// Generation
		GenerationMaxAttempts:    getEnvAsInt("GENERATION_MAX_ATTEMPTS", 3),
		GenerationTimeoutSeconds: getEnvAsInt("GENERATION_TIMEOUT_SECONDS", 60),

		// Server
		ServerShutdownTimeoutSeconds: getEnvAsInt("SERVER_SHUTDOWN_TIMEOUT_SECONDS", 30),

		// CORS
		CORSAllowedOrigins: getEnvOrDefault("CORS_ALLOWED_ORIGINS", "http://localhost:5173,http://localhost:9000"),

		// Logging
		LogLevel:  getEnvOrDefault("LOG_LEVEL", "debug"),
		LogFormat: getEnvOrDefault("LOG_FORMAT", "text"),
	}

	if cfg.GoogleAIAPIKey == "" {
		log.Fatal("GOOGLE_AI_API_KEY environment variable is required")
	}

	if cfg.MongoDBURI == "" {
		log.Println("Warning: no MONGODB_URI provided, conversations will use file storage")
	}

	return cfg
}

// AllowedOrigins returns the configured CORS origins as a slice.
func (c *Config) AllowedOrigins() []string {
	parts := strings.Split(c.CORSAllowedOrigins, ",")
	origins := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			origins = append(origins, trimmed)
		}
	}
	return origins
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
		log.Printf("Warning: failed to parse environment variable %s='%s' as int, using default %d", key, value, defaultValue)
	}
	return defaultValue
}

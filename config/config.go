package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

// Config represents the complete application configuration
type Config struct {
	Environment   string `validate:"required"`
	Server        ServerConfig
	KnowledgeBase KnowledgeBaseConfig
	Retrieval     RetrievalConfig
	Embedder      EmbedderConfig
	Observability ObservabilityConfig
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host               string
	Port               int           `validate:"gte=1,lte=65535"`
	ReadTimeout        time.Duration `validate:"gt=0"`
	WriteTimeout       time.Duration `validate:"gt=0"`
	ShutdownTimeout    time.Duration `validate:"gt=0"`
	CORSAllowedOrigins []string
}

// KnowledgeBaseConfig locates the knowledge base loaded at startup
type KnowledgeBaseConfig struct {
	Path   string `validate:"required"`
	Format string `validate:"oneof=auto json yaml yml sqlite sqlite3 db"`
}

// RetrievalConfig holds scoring parameters
type RetrievalConfig struct {
	Threshold    float64       `validate:"gte=-1,lte=1"`
	EmbedTimeout time.Duration `validate:"gt=0"`
}

// EmbedderConfig selects and configures the embedding provider
type EmbedderConfig struct {
	Provider   string `validate:"oneof=local openai gemini"`
	Model      string
	Dimensions int `validate:"gte=0"`

	OpenAIAPIKey     string `validate:"required_if=Provider openai"`
	OpenAIBaseURL    string `validate:"omitempty,url"`
	OpenAIMaxRetries int    `validate:"gte=0"`

	GeminiBackend  string `validate:"oneof=gemini vertex"`
	GeminiAPIKey   string
	GoogleProject  string
	GoogleLocation string
}

// ObservabilityConfig holds logging configuration
type ObservabilityConfig struct {
	LogLevel  string `validate:"oneof=debug info warn error"`
	LogFormat string `validate:"oneof=json text"`
}

var validate = validator.New()

// New creates a new Config instance by loading environment variables
func New() (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load(".env")

	threshold, err := getEnvAsFloat("RETRIEVAL_THRESHOLD", 0.3)
	if err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	cfg := &Config{
		Environment: getEnv("ENVIRONMENT", "development"),
		Server: ServerConfig{
			Host:               getEnv("SERVER_HOST", "0.0.0.0"),
			Port:               getPort(),
			ReadTimeout:        getEnvAsDuration("SERVER_READ_TIMEOUT", 15*time.Second),
			WriteTimeout:       getEnvAsDuration("SERVER_WRITE_TIMEOUT", 30*time.Second),
			ShutdownTimeout:    getEnvAsDuration("SERVER_SHUTDOWN_TIMEOUT", 10*time.Second),
			CORSAllowedOrigins: getEnvAsList("CORS_ALLOWED_ORIGINS", []string{"http://localhost:*"}),
		},
		KnowledgeBase: KnowledgeBaseConfig{
			Path:   getEnv("KB_PATH", "knowledge_base.json"),
			Format: strings.ToLower(getEnv("KB_FORMAT", "auto")),
		},
		Retrieval: RetrievalConfig{
			Threshold:    threshold,
			EmbedTimeout: getEnvAsDuration("EMBED_TIMEOUT", 10*time.Second),
		},
		Embedder: EmbedderConfig{
			Provider:         strings.ToLower(getEnv("EMBEDDER_PROVIDER", "local")),
			Model:            getEnv("EMBEDDER_MODEL", ""),
			Dimensions:       getEnvAsInt("EMBEDDER_DIMENSIONS", 0),
			OpenAIAPIKey:     getEnv("OPENAI_API_KEY", ""),
			OpenAIBaseURL:    getEnv("OPENAI_BASE_URL", ""),
			OpenAIMaxRetries: getEnvAsInt("OPENAI_MAX_RETRIES", 2),
			GeminiBackend:    strings.ToLower(getEnv("GEMINI_BACKEND", "gemini")),
			GeminiAPIKey:     getEnv("GEMINI_API_KEY", ""),
			GoogleProject:    getEnv("GOOGLE_PROJECT_ID", ""),
			GoogleLocation:   getEnv("GOOGLE_REGION", "us-central1"),
		},
		Observability: ObservabilityConfig{
			LogLevel:  strings.ToLower(getEnv("LOG_LEVEL", "info")),
			LogFormat: strings.ToLower(getEnv("LOG_FORMAT", "json")),
		},
	}

	// Validate the configuration
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// Validate checks field constraints and the provider-specific requirements
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				msgs = append(msgs, fmt.Sprintf("%s failed on '%s'", fe.Namespace(), fe.Tag()))
			}
			return errors.New(strings.Join(msgs, "; "))
		}
		return err
	}

	if c.Embedder.Provider == "gemini" {
		switch c.Embedder.GeminiBackend {
		case "vertex":
			if c.Embedder.GoogleProject == "" {
				return fmt.Errorf("GOOGLE_PROJECT_ID is required for the vertex backend")
			}
		default:
			if c.Embedder.GeminiAPIKey == "" {
				return fmt.Errorf("GEMINI_API_KEY is required for the gemini provider")
			}
		}
	}

	return nil
}

// IsProduction returns true if running in production environment
func (c *Config) IsProduction() bool {
	return c.Environment == "production" || c.Environment == "prod"
}

// Address returns the HTTP server address
func (c *ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// Helper functions

// getPort returns the server port from PORT or SERVER_PORT env vars (default: 8080)
func getPort() int {
	for _, key := range []string{"PORT", "SERVER_PORT"} {
		if value := os.Getenv(key); value != "" {
			if p, err := strconv.Atoi(value); err == nil {
				return p
			}
		}
	}
	return 8080
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

// getEnvAsFloat fails on malformed input instead of falling back, since
// it feeds the match threshold.
func getEnvAsFloat(key string, defaultValue float64) (float64, error) {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue, nil
	}
	value, err := strconv.ParseFloat(strings.TrimSpace(valueStr), 64)
	if err != nil {
		return 0, fmt.Errorf("%s: invalid number %q", key, valueStr)
	}
	return value, nil
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := time.ParseDuration(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsList(key string, defaultValue []string) []string {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(valueStr, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}

package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds all application configuration
type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	Typesense TypesenseConfig
	OpenAI    OpenAIConfig
	OTEL      OTELConfig
	Providers ProvidersConfig
	Search    SearchConfig
	Rerank    RerankConfig
}

// ServerConfig holds server configuration
type ServerConfig struct {
	Host string
	Port int
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
	SSLMode  string
}

// RedisConfig holds Redis configuration
type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

// TypesenseConfig holds Typesense configuration
type TypesenseConfig struct {
	URL    string
	APIKey string
}

// OpenAIConfig holds OpenAI configuration
type OpenAIConfig struct {
	APIKey         string
	EmbeddingModel string
	RateLimitRPM   int
	RateLimitBurst int
}

// OTELConfig holds OpenTelemetry configuration
type OTELConfig struct {
	ServiceName    string
	ServiceVersion string
	Endpoint       string
	Enabled        bool
}

// ProvidersConfig holds external search provider credentials.
// An empty credential means that provider is simply not registered.
type ProvidersConfig struct {
	EbayClientID      string
	EbayClientSecret  string
	KrogerClientID    string
	KrogerSecret      string
	KrogerLocationZip string
	TicketmasterKey   string
	RainforestKey     string
	UseMockSearch     bool
}

// SearchConfig holds fan-out and ranking configuration
type SearchConfig struct {
	ProviderTimeout       time.Duration
	ProviderStreamTimeout time.Duration
	MaxResults            int
}

// RerankConfig holds the interference reranker tuning
type RerankConfig struct {
	Enabled     bool
	Modes       int
	BlendFactor float64
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	return &Config{
		Server: ServerConfig{
			Host: getEnv("SERVER_HOST", "0.0.0.0"),
			Port: getEnvAsInt("SERVER_PORT", 8080),
		},
		Database: DatabaseConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnvAsInt("DB_PORT", 5432),
			User:     getEnv("DB_USER", "postgres"),
			Password: getEnv("DB_PASSWORD", ""),
			Database: getEnv("DB_NAME", "dealscout_sourcing"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
		},
		Redis: RedisConfig{
			Host:     getEnv("REDIS_HOST", "localhost"),
			Port:     getEnvAsInt("REDIS_PORT", 6379),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
		},
		Typesense: TypesenseConfig{
			URL:    getEnv("TYPESENSE_URL", "http://localhost:8108"),
			APIKey: getEnv("TYPESENSE_API_KEY", "xyz"),
		},
		OpenAI: OpenAIConfig{
			APIKey:         getEnv("OPENAI_API_KEY", ""),
			EmbeddingModel: getEnv("OPENAI_EMBEDDING_MODEL", "text-embedding-3-small"),
			RateLimitRPM:   getEnvAsInt("OPENAI_RATE_LIMIT_RPM", 60),
			RateLimitBurst: getEnvAsInt("OPENAI_RATE_LIMIT_BURST", 5),
		},
		OTEL: OTELConfig{
			ServiceName:    getEnv("OTEL_SERVICE_NAME", "dealscout-sourcing"),
			ServiceVersion: getEnv("OTEL_SERVICE_VERSION", "1.0.0"),
			Endpoint:       getEnv("OTEL_ENDPOINT", ""),
			Enabled:        getEnvAsBool("OTEL_ENABLED", false),
		},
		Providers: ProvidersConfig{
			EbayClientID:      getEnv("EBAY_CLIENT_ID", ""),
			EbayClientSecret:  getEnv("EBAY_CLIENT_SECRET", ""),
			KrogerClientID:    getEnv("KROGER_CLIENT_ID", ""),
			KrogerSecret:      getEnv("KROGER_CLIENT_SECRET", ""),
			KrogerLocationZip: getEnv("KROGER_LOCATION_ZIP", ""),
			TicketmasterKey:   getEnv("TICKETMASTER_API_KEY", ""),
			RainforestKey:     getEnv("RAINFOREST_API_KEY", ""),
			UseMockSearch:     getEnvAsBool("USE_MOCK_SEARCH", false),
		},
		Search: SearchConfig{
			ProviderTimeout:       time.Duration(getEnvAsFloat("PROVIDER_TIMEOUT_SECONDS", 5.0) * float64(time.Second)),
			ProviderStreamTimeout: time.Duration(getEnvAsFloat("PROVIDER_STREAM_TIMEOUT_SECONDS", 30.0) * float64(time.Second)),
			MaxResults:            getEnvAsInt("SEARCH_MAX_RESULTS", 50),
		},
		Rerank: RerankConfig{
			Enabled:     getEnvAsBool("QUANTUM_RERANKING_ENABLED", true),
			Modes:       getEnvAsInt("QUANTUM_N_MODES", 8),
			BlendFactor: getEnvAsFloat("QUANTUM_BLEND_FACTOR", 0.7),
		},
	}, nil
}

// DatabaseDSN returns the PostgreSQL connection string
func (c *DatabaseConfig) DatabaseDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode,
	)
}

// RedisAddr returns the Redis address
func (c *RedisConfig) RedisAddr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 64); err == nil {
			return floatVal
		}
	}
	return defaultValue
}

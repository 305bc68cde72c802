// Package config loads service configuration from config files and
// environment variables.
package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Config is the complete configuration for the semantic search service.
type Config struct {
	Service   ServiceConfig   `mapstructure:"service"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Embedding EmbeddingConfig `mapstructure:"embedding"`
	Chunking  ChunkingConfig  `mapstructure:"chunking"`
	Search    SearchConfig    `mapstructure:"search"`
}

// ServiceConfig contains service-level settings.
type ServiceConfig struct {
	Port            int           `mapstructure:"port"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	LogLevel        string        `mapstructure:"log_level"`
}

// DatabaseConfig contains Postgres connection settings.
type DatabaseConfig struct {
	Host         string `mapstructure:"host"`
	Port         int    `mapstructure:"port"`
	Database     string `mapstructure:"database"`
	Username     string `mapstructure:"username"`
	Password     string `mapstructure:"password"`
	SSLMode      string `mapstructure:"ssl_mode"`
	MaxConns     int    `mapstructure:"max_conns"`
	MaxIdleConns int    `mapstructure:"max_idle_conns"`
}

// DSN renders a lib/pq connection string.
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%d dbname=%s user=%s password=%s sslmode=%s",
		d.Host, d.Port, d.Database, d.Username, d.Password, d.SSLMode)
}

// EmbeddingConfig contains embedding provider settings.
type EmbeddingConfig struct {
	Model      string        `mapstructure:"model"`
	APIKey     string        `mapstructure:"api_key"`
	BaseURL    string        `mapstructure:"base_url"`
	Dimensions int           `mapstructure:"dimensions"`
	Timeout    time.Duration `mapstructure:"timeout"`
	MaxRetries int           `mapstructure:"max_retries"`
}

// ChunkingConfig contains text segmentation settings.
type ChunkingConfig struct {
	MaxChunkLength int `mapstructure:"max_chunk_length"`
	ChunkOverlap   int `mapstructure:"chunk_overlap"`
}

// SearchConfig contains similarity search settings. SimilarityThreshold has
// no default: loading fails when it is absent.
type SearchConfig struct {
	SimilarityThreshold float64 `mapstructure:"similarity_threshold"`
	DefaultLimit        int     `mapstructure:"default_limit"`
	BatchSize           int     `mapstructure:"batch_size"`
}

// Load reads configuration from lumen-search.yaml (if present) and LUMEN_*
// environment variables, then validates it.
func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigName("lumen-search")
	v.SetConfigType("yaml")
	v.AddConfigPath("./configs")
	v.AddConfigPath("/configs")

	setDefaults(v)
	bindEnvVars(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := validate(&config, v); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("service.port", 8086)
	v.SetDefault("service.shutdown_timeout", "30s")
	v.SetDefault("service.log_level", "info")

	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.database", "lumen_development")
	v.SetDefault("database.username", "lumen")
	v.SetDefault("database.ssl_mode", "disable")
	v.SetDefault("database.max_conns", 10)
	v.SetDefault("database.max_idle_conns", 5)

	v.SetDefault("embedding.model", "text-embedding-3-small")
	v.SetDefault("embedding.dimensions", 1024)
	v.SetDefault("embedding.timeout", "30s")
	v.SetDefault("embedding.max_retries", 3)

	v.SetDefault("chunking.max_chunk_length", 1200)
	v.SetDefault("chunking.chunk_overlap", 100)

	v.SetDefault("search.default_limit", 10)
	v.SetDefault("search.batch_size", 50)

	// search.similarity_threshold deliberately has no default.
}

func bindEnvVars(v *viper.Viper) {
	// Recognized operator-facing variable names.
	_ = v.BindEnv("embedding.model", "LUMEN_EMBEDDING_MODEL", "EMBEDDING_MODEL")
	_ = v.BindEnv("embedding.api_key", "LUMEN_EMBEDDING_API_KEY", "EMBEDDING_API_KEY", "EMBEDDING_PROVIDER_CREDENTIALS")
	_ = v.BindEnv("embedding.base_url", "LUMEN_EMBEDDING_BASE_URL")
	_ = v.BindEnv("embedding.dimensions", "LUMEN_EMBEDDING_DIMENSIONS")
	_ = v.BindEnv("search.similarity_threshold", "LUMEN_SEARCH_SIMILARITY_THRESHOLD", "SEARCH_SIMILARITY_THRESHOLD")
	_ = v.BindEnv("chunking.max_chunk_length", "LUMEN_MAX_CHUNK_LENGTH", "MAX_CHUNK_LENGTH")
	_ = v.BindEnv("chunking.chunk_overlap", "LUMEN_CHUNK_OVERLAP", "CHUNK_OVERLAP")

	_ = v.BindEnv("service.port", "LUMEN_SERVICE_PORT")
	_ = v.BindEnv("service.log_level", "LUMEN_LOG_LEVEL")

	_ = v.BindEnv("database.host", "LUMEN_DATABASE_HOST")
	_ = v.BindEnv("database.port", "LUMEN_DATABASE_PORT")
	_ = v.BindEnv("database.database", "LUMEN_DATABASE_NAME")
	_ = v.BindEnv("database.username", "LUMEN_DATABASE_USER")
	_ = v.BindEnv("database.password", "LUMEN_DATABASE_PASSWORD")
	_ = v.BindEnv("database.ssl_mode", "LUMEN_DATABASE_SSL_MODE")
}

func validate(config *Config, v *viper.Viper) error {
	if !v.IsSet("search.similarity_threshold") {
		return fmt.Errorf("search.similarity_threshold is required (set SEARCH_SIMILARITY_THRESHOLD); there is no default")
	}
	if config.Search.SimilarityThreshold <= 0 || config.Search.SimilarityThreshold > 1 {
		return fmt.Errorf("search.similarity_threshold must be in (0, 1], got %v", config.Search.SimilarityThreshold)
	}
	if config.Embedding.Model == "" {
		return fmt.Errorf("embedding.model is required")
	}
	if config.Chunking.MaxChunkLength <= 0 {
		return fmt.Errorf("chunking.max_chunk_length must be positive")
	}
	if config.Chunking.ChunkOverlap < 0 || config.Chunking.ChunkOverlap >= config.Chunking.MaxChunkLength {
		return fmt.Errorf("chunking.chunk_overlap must be non-negative and smaller than max_chunk_length")
	}
	if config.Service.Port <= 0 || config.Service.Port > 65535 {
		return fmt.Errorf("service.port must be a valid port number")
	}
	return nil
}

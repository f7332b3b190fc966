// Package config provides application configuration with multi-source priority.
//
// Configuration sources (highest to lowest priority):
//  1. Environment variables (SITESAGE_ prefix, runtime override)
//  2. Config file (~/.sitesage/config.yaml)
//  3. Default values
//
// Categories:
//   - AI: completion model, embedder model, provider credentials
//   - Storage: PostgreSQL connection (see storage.go)
//   - Retrieval: similarity threshold and top-K defaults
//   - Crawler: page/depth caps and politeness delay defaults
//   - Server: listen address
//
// Sensitive fields (passwords, API keys) are masked in MarshalJSON and never
// logged.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// Sentinel errors for configuration validation, checked with errors.Is().
var (
	// ErrConfigNil indicates the configuration is nil.
	ErrConfigNil = errors.New("configuration is nil")

	// ErrMissingAPIKey indicates the provider API key is missing.
	ErrMissingAPIKey = errors.New("missing API key")

	// ErrInvalidModelName indicates the completion model name is invalid.
	ErrInvalidModelName = errors.New("invalid model name")

	// ErrInvalidEmbedderModel indicates the embedder model is invalid.
	ErrInvalidEmbedderModel = errors.New("invalid embedder model")

	// ErrInvalidPostgresHost indicates the PostgreSQL host is invalid.
	ErrInvalidPostgresHost = errors.New("invalid PostgreSQL host")

	// ErrInvalidPostgresPort indicates the PostgreSQL port is out of range.
	ErrInvalidPostgresPort = errors.New("invalid PostgreSQL port")

	// ErrInvalidPostgresDBName indicates the database name is invalid.
	ErrInvalidPostgresDBName = errors.New("invalid PostgreSQL database name")

	// ErrInvalidPostgresSSLMode indicates the SSL mode is not recognized.
	ErrInvalidPostgresSSLMode = errors.New("invalid PostgreSQL SSL mode")

	// ErrInvalidThreshold indicates the similarity threshold is out of range.
	ErrInvalidThreshold = errors.New("invalid similarity threshold")

	// ErrInvalidTopK indicates the retrieval top-K is out of range.
	ErrInvalidTopK = errors.New("invalid retrieval top-k")

	// ErrInvalidCrawlLimits indicates crawler caps are out of range.
	ErrInvalidCrawlLimits = errors.New("invalid crawler limits")
)

const (
	// DefaultModelName is the default completion model.
	DefaultModelName = "gemini-2.5-flash"

	// DefaultEmbedderModel is the default Gemini embedder model.
	// gemini-embedding-001 supports truncation to 768 dimensions via
	// OutputDimensionality; the pgvector schema uses 768 (knowledge.VectorDim).
	DefaultEmbedderModel = "gemini-embedding-001"

	// DefaultSimilarityThreshold is the minimum similarity for a chunk to be
	// considered relevant at query time.
	DefaultSimilarityThreshold = 0.7

	// DefaultRetrievalTopK is the default number of chunks retrieved per query.
	DefaultRetrievalTopK = 5

	// DefaultHistoryWindow is the number of recent turns fed to the composer.
	DefaultHistoryWindow = 10
)

// Crawler defaults. The per-request CrawlOptions may override all of these.
const (
	DefaultCrawlMaxPages = 50
	DefaultCrawlMaxDepth = 3
	DefaultCrawlDelayMS  = 1000
)

// Config stores application configuration.
// SECURITY: sensitive fields are explicitly masked in MarshalJSON().
type Config struct {
	// AI provider configuration
	ModelName     string `mapstructure:"model_name" json:"model_name"`
	EmbedderModel string `mapstructure:"embedder_model" json:"embedder_model"`
	GeminiAPIKey  string `mapstructure:"gemini_api_key" json:"gemini_api_key"` // SENSITIVE: masked in MarshalJSON

	// Storage configuration (see storage.go)
	PostgresHost     string `mapstructure:"postgres_host" json:"postgres_host"`
	PostgresPort     int    `mapstructure:"postgres_port" json:"postgres_port"`
	PostgresUser     string `mapstructure:"postgres_user" json:"postgres_user"`
	PostgresPassword string `mapstructure:"postgres_password" json:"postgres_password"` // SENSITIVE: masked in MarshalJSON
	PostgresDBName   string `mapstructure:"postgres_db_name" json:"postgres_db_name"`
	PostgresSSLMode  string `mapstructure:"postgres_ssl_mode" json:"postgres_ssl_mode"`

	// Retrieval configuration
	SimilarityThreshold float64 `mapstructure:"similarity_threshold" json:"similarity_threshold"`
	RetrievalTopK       int     `mapstructure:"retrieval_top_k" json:"retrieval_top_k"`
	HistoryWindow       int     `mapstructure:"history_window" json:"history_window"`

	// Crawler configuration
	CrawlMaxPages int `mapstructure:"crawl_max_pages" json:"crawl_max_pages"`
	CrawlMaxDepth int `mapstructure:"crawl_max_depth" json:"crawl_max_depth"`
	CrawlDelayMS  int `mapstructure:"crawl_delay_ms" json:"crawl_delay_ms"`

	// Server configuration
	ListenAddr string `mapstructure:"listen_addr" json:"listen_addr"`

	// Logging configuration
	LogLevel string `mapstructure:"log_level" json:"log_level"`
	LogJSON  bool   `mapstructure:"log_json" json:"log_json"`
}

// Load reads configuration from file, environment and defaults.
func Load() (*Config, error) {
	v := viper.New()

	setDefaults(v)

	v.SetEnvPrefix("SITESAGE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	if dir, err := configDir(); err == nil {
		v.AddConfigPath(dir)
	}
	v.AddConfigPath(".")

	if err := v.ReadInConfig(); err != nil {
		// Missing config file is fine; env vars and defaults still apply.
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	// GEMINI_API_KEY without the prefix is the conventional variable for the
	// googlegenai plugin; accept it as a fallback.
	if cfg.GeminiAPIKey == "" {
		cfg.GeminiAPIKey = os.Getenv("GEMINI_API_KEY")
	}

	if err := cfg.parseDatabaseURL(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("model_name", DefaultModelName)
	v.SetDefault("embedder_model", DefaultEmbedderModel)

	v.SetDefault("postgres_host", "localhost")
	v.SetDefault("postgres_port", 5432)
	v.SetDefault("postgres_user", "sitesage")
	v.SetDefault("postgres_db_name", "sitesage")
	v.SetDefault("postgres_ssl_mode", "disable")

	v.SetDefault("similarity_threshold", DefaultSimilarityThreshold)
	v.SetDefault("retrieval_top_k", DefaultRetrievalTopK)
	v.SetDefault("history_window", DefaultHistoryWindow)

	v.SetDefault("crawl_max_pages", DefaultCrawlMaxPages)
	v.SetDefault("crawl_max_depth", DefaultCrawlMaxDepth)
	v.SetDefault("crawl_delay_ms", DefaultCrawlDelayMS)

	v.SetDefault("listen_addr", "127.0.0.1:3500")
	v.SetDefault("log_level", "info")
	v.SetDefault("log_json", false)
}

// configDir returns the sitesage configuration directory (~/.sitesage),
// creating it with restrictive permissions if needed.
func configDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolving home directory: %w", err)
	}
	dir := filepath.Join(home, ".sitesage")
	if err := os.MkdirAll(dir, 0750); err != nil {
		return "", fmt.Errorf("creating config directory: %w", err)
	}
	return dir, nil
}

// Validate checks configuration values required by every mode.
func (c *Config) Validate() error {
	if c == nil {
		return ErrConfigNil
	}
	if c.ModelName == "" {
		return fmt.Errorf("%w: model name is empty", ErrInvalidModelName)
	}
	if c.EmbedderModel == "" {
		return fmt.Errorf("%w: embedder model is empty", ErrInvalidEmbedderModel)
	}
	if c.PostgresHost == "" {
		return fmt.Errorf("%w: host is empty", ErrInvalidPostgresHost)
	}
	if c.PostgresPort < 1 || c.PostgresPort > 65535 {
		return fmt.Errorf("%w: %d", ErrInvalidPostgresPort, c.PostgresPort)
	}
	if c.PostgresDBName == "" {
		return fmt.Errorf("%w: database name is empty", ErrInvalidPostgresDBName)
	}
	switch c.PostgresSSLMode {
	case "disable", "allow", "prefer", "require", "verify-ca", "verify-full":
	default:
		return fmt.Errorf("%w: %q", ErrInvalidPostgresSSLMode, c.PostgresSSLMode)
	}
	if c.SimilarityThreshold < 0 || c.SimilarityThreshold > 1 {
		return fmt.Errorf("%w: %g not in [0,1]", ErrInvalidThreshold, c.SimilarityThreshold)
	}
	if c.RetrievalTopK < 1 || c.RetrievalTopK > 100 {
		return fmt.Errorf("%w: %d not in [1,100]", ErrInvalidTopK, c.RetrievalTopK)
	}
	if c.CrawlMaxPages < 1 || c.CrawlMaxDepth < 1 || c.CrawlDelayMS < 0 {
		return fmt.Errorf("%w: pages=%d depth=%d delay=%dms",
			ErrInvalidCrawlLimits, c.CrawlMaxPages, c.CrawlMaxDepth, c.CrawlDelayMS)
	}
	return nil
}

// ValidateServe checks configuration required to run the HTTP server,
// including provider credentials.
func (c *Config) ValidateServe() error {
	if err := c.Validate(); err != nil {
		return err
	}
	if c.GeminiAPIKey == "" {
		return fmt.Errorf("%w: set SITESAGE_GEMINI_API_KEY or GEMINI_API_KEY", ErrMissingAPIKey)
	}
	return nil
}

// MarshalJSON masks sensitive fields so the config can be logged safely.
func (c Config) MarshalJSON() ([]byte, error) {
	type alias Config
	masked := alias(c)
	if masked.PostgresPassword != "" {
		masked.PostgresPassword = "***"
	}
	if masked.GeminiAPIKey != "" {
		masked.GeminiAPIKey = "***"
	}
	return json.Marshal(masked)
}

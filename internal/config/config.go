package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/skyhive/marketdex/internal/ranking"
)

// Config holds the marketdex discovery engine configuration.
type Config struct {
	HTTP            HTTPConfig            `yaml:"http"`
	Index           IndexConfig           `yaml:"index"`
	Cache           CacheConfig           `yaml:"cache"`
	Interactions    InteractionsConfig    `yaml:"interactions"`
	Embedding       EmbeddingConfig       `yaml:"embedding"`
	Search          SearchConfig          `yaml:"search"`
	Recommendations RecommendationsConfig `yaml:"recommendations"`
	Analytics       AnalyticsConfig       `yaml:"analytics"`
	Auth            AuthConfig            `yaml:"auth"`
	Logging         LoggingConfig         `yaml:"logging"`
}

// AuthConfig holds API authentication settings. An empty key list
// disables authentication.
type AuthConfig struct {
	APIKeys []string `yaml:"api_keys"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error (default: determined by env)
}

// HTTPConfig holds HTTP server settings.
type HTTPConfig struct {
	Port            int `yaml:"port"`
	ReadTimeoutSec  int `yaml:"read_timeout_sec"`
	WriteTimeoutSec int `yaml:"write_timeout_sec"`
	ShutdownSec     int `yaml:"shutdown_timeout_sec"`
}

// IndexConfig holds index store (Elasticsearch) connection settings.
type IndexConfig struct {
	Addresses  []string `yaml:"addresses"`
	Username   string   `yaml:"username"`
	Password   string   `yaml:"password"`
	IndexName  string   `yaml:"index_name"`
	MaxRetries int      `yaml:"max_retries"`
}

// CacheConfig holds result cache (Redis) settings.
// TTL maps a data class (search_results, recommendations, categories,
// tags, entity_detail) to a duration string.
type CacheConfig struct {
	Addrs            []string          `yaml:"addrs"`
	Password         string            `yaml:"password"`
	KeyPrefix        string            `yaml:"key_prefix"`
	ReadinessTimeout int               `yaml:"readiness_timeout_sec"`
	TTL              map[string]string `yaml:"ttl"`
}

// DefaultCacheTTL applies when a data class has no configured TTL.
const DefaultCacheTTL = 5 * time.Minute

// TTLFor returns the cache TTL for a data class, defaulting to 5 minutes
// when the class is unset or unparseable.
func (c *CacheConfig) TTLFor(class string) time.Duration {
	if raw, ok := c.TTL[class]; ok {
		if d, err := time.ParseDuration(raw); err == nil && d > 0 {
			return d
		}
	}
	return DefaultCacheTTL
}

// InteractionsConfig holds the relational interaction store settings.
type InteractionsConfig struct {
	Host            string `yaml:"host"`
	Port            int    `yaml:"port"`
	Database        string `yaml:"database"`
	User            string `yaml:"user"`
	Password        string `yaml:"password"`
	SSLMode         string `yaml:"ssl_mode"`
	MaxOpenConns    int    `yaml:"max_open_conns"`
	MaxIdleConns    int    `yaml:"max_idle_conns"`
	ConnMaxLifetime string `yaml:"conn_max_lifetime"`
}

// DSN returns the lib/pq connection string.
func (c *InteractionsConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode,
	)
}

// EmbeddingConfig holds embedding gateway settings.
type EmbeddingConfig struct {
	APIKey     string `yaml:"api_key"`
	BaseURL    string `yaml:"base_url"`
	Model      string `yaml:"model"`
	Dimensions int    `yaml:"dimensions"`
	BatchSize  int    `yaml:"batch_size"`
	// BatchPauseMS is the fixed pause between bulk-indexing embedding
	// batches, bounding the outbound request rate.
	BatchPauseMS int  `yaml:"batch_pause_ms"`
	CacheQueries bool `yaml:"cache_queries"`
}

// SearchConfig holds query planning and ranking settings.
type SearchConfig struct {
	DefaultPageSize int             `yaml:"default_page_size"`
	MaxResults      int             `yaml:"max_results"`
	SemanticEnabled bool            `yaml:"semantic_enabled"`
	RankingWeights  ranking.Weights `yaml:"ranking_weights"`
	RankingNorms    ranking.Norms   `yaml:"ranking_norms"`
}

// RecommendationsConfig holds recommendation engine settings.
type RecommendationsConfig struct {
	Enabled                 bool    `yaml:"enabled"`
	MaxRecommendations      int     `yaml:"max_recommendations"`
	CollaborativeWeight     float64 `yaml:"collaborative_weight"`
	ContentWeight           float64 `yaml:"content_weight"`
	PopularityWeight        float64 `yaml:"popularity_weight"`
	MinCommonUsers          int     `yaml:"min_common_users"`
	MinUserHistory          int     `yaml:"min_user_history"`
	TrendingWindow          string  `yaml:"trending_window"`
	TrendingMinInteractions int     `yaml:"trending_min_interactions"`
}

// TrendingWindowDuration parses the trending window, defaulting to 24h.
func (c *RecommendationsConfig) TrendingWindowDuration() time.Duration {
	if d, err := time.ParseDuration(c.TrendingWindow); err == nil && d > 0 {
		return d
	}
	return 24 * time.Hour
}

// AnalyticsConfig holds the fire-and-forget analytics emitter settings.
type AnalyticsConfig struct {
	Enabled bool   `yaml:"enabled"`
	URL     string `yaml:"url"`     // NATS server URL
	Subject string `yaml:"subject"` // publish subject for search events
}

// Load reads configuration from a YAML file by environment name (local, dev, prod).
func Load(env string) (Config, error) {
	configPath := findConfigPath(env)

	data, err := os.ReadFile(filepath.Clean(configPath))
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config %s: %w", configPath, err)
	}

	// Substitute env variables of the form ${VAR}
	data = expandEnvVars(data)

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.ApplyDefaults()

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// GetEnv returns the current environment from the ENV variable, defaulting to "local".
func GetEnv() string {
	if env := os.Getenv("ENV"); env != "" {
		return env
	}
	return "local"
}

// ApplyDefaults fills empty fields with default values.
func (c *Config) ApplyDefaults() {
	if c.HTTP.ReadTimeoutSec <= 0 {
		c.HTTP.ReadTimeoutSec = 10
	}
	if c.HTTP.WriteTimeoutSec <= 0 {
		c.HTTP.WriteTimeoutSec = 10
	}
	if c.HTTP.ShutdownSec <= 0 {
		c.HTTP.ShutdownSec = 10
	}
	if c.Index.IndexName == "" {
		c.Index.IndexName = "marketplace-listings"
	}
	if c.Index.MaxRetries <= 0 {
		c.Index.MaxRetries = 3
	}
	if c.Cache.KeyPrefix == "" {
		c.Cache.KeyPrefix = "marketdex:"
	}
	if c.Cache.ReadinessTimeout <= 0 {
		c.Cache.ReadinessTimeout = 10
	}
	if c.Interactions.SSLMode == "" {
		c.Interactions.SSLMode = "disable"
	}
	if c.Interactions.MaxOpenConns <= 0 {
		c.Interactions.MaxOpenConns = 10
	}
	if c.Embedding.BatchSize <= 0 {
		c.Embedding.BatchSize = 32
	}
	if c.Embedding.BatchPauseMS <= 0 {
		c.Embedding.BatchPauseMS = 100
	}
	if c.Search.DefaultPageSize <= 0 {
		c.Search.DefaultPageSize = 20
	}
	if c.Search.MaxResults <= 0 {
		c.Search.MaxResults = 100
	}
	zero := ranking.Weights{}
	if c.Search.RankingWeights == zero {
		c.Search.RankingWeights = ranking.DefaultWeights()
	}
	if c.Recommendations.MaxRecommendations <= 0 {
		c.Recommendations.MaxRecommendations = 10
	}
	if c.Recommendations.MinCommonUsers <= 0 {
		c.Recommendations.MinCommonUsers = 3
	}
	if c.Recommendations.MinUserHistory <= 0 {
		c.Recommendations.MinUserHistory = 3
	}
	if c.Recommendations.TrendingMinInteractions <= 0 {
		c.Recommendations.TrendingMinInteractions = 10
	}
	if c.Analytics.Subject == "" {
		c.Analytics.Subject = "marketdex.search.events"
	}
}

// Validate checks the configuration for correctness.
// An invalid ranking weight configuration refuses startup.
func (c *Config) Validate() error {
	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		return fmt.Errorf("http.port must be between 1 and 65535, got %d", c.HTTP.Port)
	}
	if len(c.Index.Addresses) == 0 {
		return fmt.Errorf("index.addresses is required")
	}
	if len(c.Cache.Addrs) == 0 {
		return fmt.Errorf("cache.addrs is required")
	}
	if err := c.Search.RankingWeights.Validate(); err != nil {
		return fmt.Errorf("search.ranking_weights: %w", err)
	}
	if c.Recommendations.Enabled {
		sum := c.Recommendations.CollaborativeWeight +
			c.Recommendations.ContentWeight +
			c.Recommendations.PopularityWeight
		if sum < 0.99 || sum > 1.01 {
			return fmt.Errorf("recommendation strategy weights must sum to 1.0, got %.3f", sum)
		}
	}
	if c.Analytics.Enabled && c.Analytics.URL == "" {
		return fmt.Errorf("analytics.url is required when analytics is enabled")
	}
	return nil
}

// findConfigPath locates the config file.
func findConfigPath(env string) string {
	filename := fmt.Sprintf("%s.yaml", env)

	// 1. Check ./config/
	if path := filepath.Join("config", filename); fileExists(path) {
		return path
	}

	// 2. Check relative to the source file
	_, b, _, _ := runtime.Caller(0)
	projectRoot := filepath.Dir(filepath.Dir(filepath.Dir(b))) // internal/config -> project root
	if path := filepath.Join(projectRoot, "config", filename); fileExists(path) {
		return path
	}

	// 3. Fallback to ./config/
	return filepath.Join("config", filename)
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// expandEnvVars replaces ${VAR} and ${VAR:-default} with environment variable values.
var envVarRegex = regexp.MustCompile(`\$\{([^}]+)\}`)

func expandEnvVars(data []byte) []byte {
	return envVarRegex.ReplaceAllFunc(data, func(match []byte) []byte {
		expr := string(match[2 : len(match)-1]) // strip ${ and }
		varName, defaultVal, hasDefault := strings.Cut(expr, ":-")
		val := os.Getenv(varName)
		if val == "" && hasDefault {
			val = defaultVal
		}
		return []byte(val)
	})
}

package config

import (
	"testing"
	"time"

	"github.com/skyhive/marketdex/internal/ranking"
)

func validConfig() Config {
	cfg := Config{
		HTTP:  HTTPConfig{Port: 8080},
		Index: IndexConfig{Addresses: []string{"http://localhost:9200"}},
		Cache: CacheConfig{Addrs: []string{"localhost:6379"}},
	}
	cfg.ApplyDefaults()
	return cfg
}

func TestValidate_OK(t *testing.T) {
	cfg := validConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestValidate_InvalidPort(t *testing.T) {
	cfg := validConfig()
	cfg.HTTP.Port = 0
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for invalid port")
	}
}

func TestValidate_MissingIndexAddresses(t *testing.T) {
	cfg := validConfig()
	cfg.Index.Addresses = nil
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for missing index addresses")
	}
}

func TestValidate_RankingWeightsMustSumToOne(t *testing.T) {
	cfg := validConfig()
	cfg.Search.RankingWeights = ranking.Weights{
		Relevance: 0.5, Popularity: 0.5, Performance: 0.5, Compliance: 0.5,
	}
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for ranking weights summing to 2.0")
	}
}

func TestValidate_RecommendationWeights(t *testing.T) {
	cfg := validConfig()
	cfg.Recommendations.Enabled = true
	cfg.Recommendations.CollaborativeWeight = 0.5
	cfg.Recommendations.ContentWeight = 0.3
	cfg.Recommendations.PopularityWeight = 0.1
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for recommendation weights summing to 0.9")
	}

	cfg.Recommendations.PopularityWeight = 0.2
	if err := cfg.Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestApplyDefaults_RankingWeights(t *testing.T) {
	cfg := Config{
		HTTP:  HTTPConfig{Port: 8080},
		Index: IndexConfig{Addresses: []string{"http://localhost:9200"}},
		Cache: CacheConfig{Addrs: []string{"localhost:6379"}},
	}
	cfg.ApplyDefaults()
	if cfg.Search.RankingWeights != ranking.DefaultWeights() {
		t.Errorf("expected default ranking weights, got %+v", cfg.Search.RankingWeights)
	}
	if cfg.Search.DefaultPageSize != 20 || cfg.Search.MaxResults != 100 {
		t.Errorf("unexpected pagination defaults: %+v", cfg.Search)
	}
}

func TestCacheTTLFor(t *testing.T) {
	c := CacheConfig{TTL: map[string]string{
		"search_results":  "2m",
		"recommendations": "bogus",
	}}
	if got := c.TTLFor("search_results"); got != 2*time.Minute {
		t.Errorf("search_results TTL = %v, want 2m", got)
	}
	if got := c.TTLFor("recommendations"); got != DefaultCacheTTL {
		t.Errorf("unparseable TTL = %v, want default %v", got, DefaultCacheTTL)
	}
	if got := c.TTLFor("entity_detail"); got != DefaultCacheTTL {
		t.Errorf("unset TTL = %v, want default %v", got, DefaultCacheTTL)
	}
}

func TestTrendingWindowDuration(t *testing.T) {
	c := RecommendationsConfig{TrendingWindow: "6h"}
	if got := c.TrendingWindowDuration(); got != 6*time.Hour {
		t.Errorf("trending window = %v, want 6h", got)
	}
	c.TrendingWindow = ""
	if got := c.TrendingWindowDuration(); got != 24*time.Hour {
		t.Errorf("default trending window = %v, want 24h", got)
	}
}

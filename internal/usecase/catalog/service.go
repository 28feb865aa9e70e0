// Package catalog serves cached listing detail and taxonomy lookups
// (categories and tags with usage counts) off the index store.
package catalog

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/skyhive/marketdex/internal/domain/listing"
	"github.com/skyhive/marketdex/internal/domain/search/index"
	"github.com/skyhive/marketdex/internal/repository/resultcache"
)

// Aggregation sizes for taxonomy lookups.
const (
	categoryAggSize = 100
	tagAggSize      = 500
)

// CategoryInfo is one category with listing count and average rating.
type CategoryInfo struct {
	Name      string  `json:"name"`
	Count     int     `json:"count"`
	AvgRating float64 `json:"avg_rating"`
}

// TagInfo is one tag with listing count.
type TagInfo struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

// Service handles catalog lookups.
type Service struct {
	index  Index
	cache  ResultCache
	logger *zap.Logger
}

// New creates a catalog service.
func New(index Index, cache ResultCache, logger *zap.Logger) *Service {
	return &Service{index: index, cache: cache, logger: logger}
}

// GetListing returns one listing by id, cached under the entity detail
// TTL class. Missing ids surface domain.ErrListingNotFound from the
// index client.
func (s *Service) GetListing(ctx context.Context, id string) (*listing.Document, error) {
	var cached listing.Document
	if s.cache.Get(ctx, resultcache.ClassEntityDetail, id, &cached) {
		return &cached, nil
	}

	doc, err := s.index.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	doc.Embedding = nil

	s.cache.Put(ctx, resultcache.ClassEntityDetail, id, doc)
	return doc, nil
}

// Categories returns all categories of active listings with their
// counts and average rating.
func (s *Service) Categories(ctx context.Context) ([]CategoryInfo, error) {
	const key = "all"
	var cached []CategoryInfo
	if s.cache.Get(ctx, resultcache.ClassCategories, key, &cached) {
		return cached, nil
	}

	query := index.Query{
		"size": 0,
		"aggs": map[string]any{
			"categories": map[string]any{
				"terms": map[string]any{"field": "category", "size": categoryAggSize},
				"aggs": map[string]any{
					"avg_rating": map[string]any{
						"avg": map[string]any{"field": "metrics.rating"},
					},
				},
			},
		},
	}

	resp, err := s.index.Search(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("aggregate categories: %w", err)
	}

	categories := make([]CategoryInfo, 0, categoryAggSize)
	for _, b := range buckets(resp.Aggregations, "categories") {
		name, ok := b["key"].(string)
		if !ok {
			continue
		}
		info := CategoryInfo{Name: name, Count: docCount(b)}
		if avg, ok := b["avg_rating"].(map[string]any); ok {
			if v, ok := avg["value"].(float64); ok {
				info.AvgRating = v
			}
		}
		categories = append(categories, info)
	}

	s.cache.Put(ctx, resultcache.ClassCategories, key, categories)
	return categories, nil
}

// Tags returns all tags of active listings with their counts.
func (s *Service) Tags(ctx context.Context) ([]TagInfo, error) {
	const key = "all"
	var cached []TagInfo
	if s.cache.Get(ctx, resultcache.ClassTags, key, &cached) {
		return cached, nil
	}

	query := index.Query{
		"size": 0,
		"aggs": map[string]any{
			"tags": map[string]any{
				"terms": map[string]any{"field": "tags", "size": tagAggSize},
			},
		},
	}

	resp, err := s.index.Search(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("aggregate tags: %w", err)
	}

	tags := make([]TagInfo, 0, tagAggSize)
	for _, b := range buckets(resp.Aggregations, "tags") {
		name, ok := b["key"].(string)
		if !ok {
			continue
		}
		tags = append(tags, TagInfo{Name: name, Count: docCount(b)})
	}

	s.cache.Put(ctx, resultcache.ClassTags, key, tags)
	return tags, nil
}

func buckets(aggs map[string]any, name string) []map[string]any {
	agg, ok := aggs[name].(map[string]any)
	if !ok {
		return nil
	}
	raw, ok := agg["buckets"].([]any)
	if !ok {
		return nil
	}
	out := make([]map[string]any, 0, len(raw))
	for _, r := range raw {
		if m, ok := r.(map[string]any); ok {
			out = append(out, m)
		}
	}
	return out
}

func docCount(b map[string]any) int {
	if c, ok := b["doc_count"].(float64); ok {
		return int(c)
	}
	return 0
}

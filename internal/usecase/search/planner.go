package search

import (
	"context"

	"go.uber.org/zap"

	"github.com/skyhive/marketdex/internal/domain/search/index"
	"github.com/skyhive/marketdex/internal/domain/search/request"
)

// lexicalFields are the multi-match targets with their boosts. Name wins
// over description, tags beat raw capabilities.
var lexicalFields = []string{
	"name^3",
	"name.autocomplete^2",
	"description^2",
	"tags^1.5",
	"capabilities",
}

// Planner builds index query bodies out of normalized search requests.
//
// A query with text gets a lexical multi-match clause and, when semantic
// search is enabled, a cosine-similarity script clause over the stored
// embeddings. The two are combined as should-clauses with
// minimum_should_match=1, so a hit needs to satisfy either. An empty
// query is a pure filter browse and matches everything that passes the
// filter clause.
type Planner struct {
	embed    Embedder
	semantic bool
	logger   *zap.Logger
}

// NewPlanner creates a query planner. embed may be nil when semantic
// search is disabled.
func NewPlanner(embed Embedder, semantic bool, logger *zap.Logger) *Planner {
	return &Planner{embed: embed, semantic: semantic, logger: logger}
}

// BuildQuery plans the index query for a normalized request.
//
// An embedding failure never fails the plan: the query degrades to
// lexical-only and the failure is logged at warn.
func (p *Planner) BuildQuery(ctx context.Context, req *request.Request) index.Query {
	boolQuery := map[string]any{
		"filter": buildFilters(req.Filters),
	}

	if req.Query != "" {
		should := []any{
			map[string]any{
				"multi_match": map[string]any{
					"query":     req.Query,
					"fields":    lexicalFields,
					"type":      "best_fields",
					"fuzziness": "AUTO",
					"operator":  "or",
				},
			},
		}

		if p.semantic && p.embed != nil {
			if vec, err := p.embed.Embed(ctx, req.Query); err != nil {
				p.logger.Warn("query embedding failed, falling back to lexical search",
					zap.Error(err))
			} else if len(vec) > 0 {
				should = append(should, map[string]any{
					"script_score": map[string]any{
						"query": map[string]any{"match_all": map[string]any{}},
						"script": map[string]any{
							"source": "cosineSimilarity(params.query_vector, 'embedding') + 1.0",
							"params": map[string]any{"query_vector": vec},
						},
					},
				})
			}
		}

		boolQuery["should"] = should
		boolQuery["minimum_should_match"] = 1
	}

	return index.Query{
		"from":  req.From(),
		"size":  req.Pagination.PageSize,
		"query": map[string]any{"bool": boolQuery},
		"aggs":  buildAggregations(),
	}
}

// buildFilters renders each present filter as one non-scoring predicate.
// Status defaults to active: unfiltered searches never surface
// unsearchable listings.
func buildFilters(f request.Filters) []any {
	filters := make([]any, 0, 8)

	status := "active"
	if f.Status != "" {
		status = string(f.Status)
	}
	filters = append(filters, term("status", status))

	if len(f.Categories) > 0 {
		filters = append(filters, terms("category", f.Categories))
	}
	if len(f.Tags) > 0 {
		filters = append(filters, terms("tags", f.Tags))
	}
	if f.MinRating > 0 {
		filters = append(filters, rangeGTE("metrics.rating", f.MinRating))
	}
	if f.MaxPrice > 0 {
		filters = append(filters, map[string]any{
			"range": map[string]any{
				"pricing.rate": map[string]any{"lte": f.MaxPrice},
			},
		})
	}
	if len(f.PricingModels) > 0 {
		filters = append(filters, terms("pricing.model", f.PricingModels))
	}
	if f.ComplianceLevel != "" {
		filters = append(filters, term("compliance.level", f.ComplianceLevel))
	}
	if len(f.Certifications) > 0 {
		filters = append(filters, terms("compliance.certifications", f.Certifications))
	}
	if len(f.DataResidency) > 0 {
		filters = append(filters, terms("compliance.data_residency", f.DataResidency))
	}
	if f.VerifiedOnly {
		filters = append(filters, term("provider.verified", true))
	}
	if f.MinAvailability > 0 {
		filters = append(filters, rangeGTE("sla.availability", f.MinAvailability))
	}

	return filters
}

// buildAggregations is the facet set attached to every search.
func buildAggregations() map[string]any {
	return map[string]any{
		"categories":        termsAgg("category", 50),
		"tags":              termsAgg("tags", 100),
		"pricing_models":    termsAgg("pricing.model", 10),
		"compliance_levels": termsAgg("compliance.level", 10),
		"avg_rating": map[string]any{
			"avg": map[string]any{"field": "metrics.rating"},
		},
		"price_ranges": map[string]any{
			"histogram": map[string]any{"field": "pricing.rate", "interval": 0.01},
		},
	}
}

func term(field string, value any) map[string]any {
	return map[string]any{"term": map[string]any{field: value}}
}

func terms(field string, values []string) map[string]any {
	return map[string]any{"terms": map[string]any{field: values}}
}

func rangeGTE(field string, value float64) map[string]any {
	return map[string]any{
		"range": map[string]any{field: map[string]any{"gte": value}},
	}
}

func termsAgg(field string, size int) map[string]any {
	return map[string]any{
		"terms": map[string]any{"field": field, "size": size},
	}
}

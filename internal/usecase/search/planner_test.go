package search

import (
	"context"
	"errors"
	"testing"

	"go.uber.org/zap"

	"github.com/skyhive/marketdex/internal/domain/listing"
	"github.com/skyhive/marketdex/internal/domain/search/request"
)

type mockEmbedder struct {
	vec      []float32
	err      error
	calls    int
	lastText string
}

func (m *mockEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	m.calls++
	m.lastText = text
	return m.vec, m.err
}

func normalized(t *testing.T, req *request.Request) *request.Request {
	t.Helper()
	if err := req.Normalize(20, 100); err != nil {
		t.Fatalf("normalize: %v", err)
	}
	return req
}

func boolQuery(t *testing.T, q map[string]any) map[string]any {
	t.Helper()
	outer, ok := q["query"].(map[string]any)
	if !ok {
		t.Fatalf("query missing: %#v", q)
	}
	b, ok := outer["bool"].(map[string]any)
	if !ok {
		t.Fatalf("bool missing: %#v", outer)
	}
	return b
}

func TestBuildQueryHybrid(t *testing.T) {
	embed := &mockEmbedder{vec: []float32{0.1, 0.2}}
	p := NewPlanner(embed, true, zap.NewNop())

	req := normalized(t, &request.Request{Query: "sentiment analysis"})
	q := p.BuildQuery(context.Background(), req)
	b := boolQuery(t, q)

	should, ok := b["should"].([]any)
	if !ok || len(should) != 2 {
		t.Fatalf("expected lexical + semantic should clauses, got %#v", b["should"])
	}
	if b["minimum_should_match"] != 1 {
		t.Errorf("minimum_should_match = %v, want 1", b["minimum_should_match"])
	}
	if embed.lastText != "sentiment analysis" {
		t.Errorf("embedder got %q", embed.lastText)
	}

	mm, ok := should[0].(map[string]any)["multi_match"].(map[string]any)
	if !ok {
		t.Fatalf("first should clause is not multi_match: %#v", should[0])
	}
	fields, ok := mm["fields"].([]string)
	if !ok || len(fields) != 5 || fields[0] != "name^3" {
		t.Errorf("unexpected multi_match fields: %#v", mm["fields"])
	}
	if mm["fuzziness"] != "AUTO" {
		t.Errorf("fuzziness = %v, want AUTO", mm["fuzziness"])
	}

	if _, ok := should[1].(map[string]any)["script_score"]; !ok {
		t.Errorf("second should clause is not script_score: %#v", should[1])
	}
}

func TestBuildQueryEmbedFailureDegradesToLexical(t *testing.T) {
	embed := &mockEmbedder{err: errors.New("gateway down")}
	p := NewPlanner(embed, true, zap.NewNop())

	req := normalized(t, &request.Request{Query: "ocr"})
	b := boolQuery(t, p.BuildQuery(context.Background(), req))

	should, _ := b["should"].([]any)
	if len(should) != 1 {
		t.Fatalf("expected lexical-only fallback, got %d should clauses", len(should))
	}
	if _, ok := should[0].(map[string]any)["multi_match"]; !ok {
		t.Errorf("surviving clause is not lexical: %#v", should[0])
	}
	if b["minimum_should_match"] != 1 {
		t.Errorf("minimum_should_match = %v, want 1", b["minimum_should_match"])
	}
}

func TestBuildQuerySemanticDisabled(t *testing.T) {
	embed := &mockEmbedder{vec: []float32{0.1}}
	p := NewPlanner(embed, false, zap.NewNop())

	req := normalized(t, &request.Request{Query: "ocr"})
	b := boolQuery(t, p.BuildQuery(context.Background(), req))

	should, _ := b["should"].([]any)
	if len(should) != 1 {
		t.Fatalf("expected single lexical clause, got %d", len(should))
	}
	if embed.calls != 0 {
		t.Errorf("embedder called %d times with semantic disabled", embed.calls)
	}
}

func TestBuildQueryEmptyQueryIsFilterBrowse(t *testing.T) {
	embed := &mockEmbedder{vec: []float32{0.1}}
	p := NewPlanner(embed, true, zap.NewNop())

	req := normalized(t, &request.Request{
		Filters: request.Filters{Categories: []string{"nlp"}},
	})
	b := boolQuery(t, p.BuildQuery(context.Background(), req))

	if _, ok := b["should"]; ok {
		t.Errorf("empty query must not produce should clauses: %#v", b["should"])
	}
	if _, ok := b["minimum_should_match"]; ok {
		t.Error("empty query must not set minimum_should_match")
	}
	if embed.calls != 0 {
		t.Errorf("embedder called %d times for empty query", embed.calls)
	}
}

func TestBuildQueryDefaultStatusFilter(t *testing.T) {
	p := NewPlanner(nil, false, zap.NewNop())

	req := normalized(t, &request.Request{})
	b := boolQuery(t, p.BuildQuery(context.Background(), req))

	filters, _ := b["filter"].([]any)
	if len(filters) != 1 {
		t.Fatalf("expected only the status filter, got %d", len(filters))
	}
	term := filters[0].(map[string]any)["term"].(map[string]any)
	if term["status"] != "active" {
		t.Errorf("default status = %v, want active", term["status"])
	}
}

func TestBuildQueryAllFilters(t *testing.T) {
	p := NewPlanner(nil, false, zap.NewNop())

	req := normalized(t, &request.Request{
		Filters: request.Filters{
			Categories:      []string{"nlp"},
			Tags:            []string{"fast"},
			MinRating:       4.0,
			MaxPrice:        0.05,
			PricingModels:   []string{"per_request"},
			ComplianceLevel: "internal",
			Certifications:  []string{"soc2"},
			DataResidency:   []string{"eu"},
			VerifiedOnly:    true,
			Status:          listing.StatusDeprecated,
			MinAvailability: 99.5,
		},
	})
	b := boolQuery(t, p.BuildQuery(context.Background(), req))

	filters, _ := b["filter"].([]any)
	if len(filters) != 11 {
		t.Fatalf("expected 11 filter predicates, got %d: %#v", len(filters), filters)
	}
	status := filters[0].(map[string]any)["term"].(map[string]any)["status"]
	if status != "deprecated" {
		t.Errorf("explicit status filter = %v, want deprecated", status)
	}
}

func TestBuildQueryPaginationAndAggs(t *testing.T) {
	p := NewPlanner(nil, false, zap.NewNop())

	req := normalized(t, &request.Request{
		Pagination: request.Pagination{Page: 3, PageSize: 25},
	})
	q := p.BuildQuery(context.Background(), req)

	if q["from"] != 75 {
		t.Errorf("from = %v, want 75", q["from"])
	}
	if q["size"] != 25 {
		t.Errorf("size = %v, want 25", q["size"])
	}

	aggs, ok := q["aggs"].(map[string]any)
	if !ok {
		t.Fatal("aggs missing")
	}
	for _, name := range []string{
		"categories", "tags", "pricing_models",
		"compliance_levels", "avg_rating", "price_ranges",
	} {
		if _, ok := aggs[name]; !ok {
			t.Errorf("aggregation %q missing", name)
		}
	}
}

package ranking

import (
	"math"
	"testing"

	"github.com/skyhive/marketdex/internal/domain/listing"
	"github.com/skyhive/marketdex/internal/domain/search/result"
)

func mustEngine(t *testing.T, w Weights) *Engine {
	t.Helper()
	e, err := NewEngine(w, DefaultNorms())
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}
	return e
}

func TestNewEngineRejectsInvalidWeights(t *testing.T) {
	cases := []struct {
		name string
		w    Weights
	}{
		{"sum too low", Weights{Relevance: 0.4, Popularity: 0.3, Performance: 0.2, Compliance: 0.05}},
		{"sum too high", Weights{Relevance: 0.5, Popularity: 0.3, Performance: 0.2, Compliance: 0.1}},
		{"negative weight", Weights{Relevance: 1.2, Popularity: -0.2, Performance: 0, Compliance: 0}},
		{"all zero", Weights{}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := NewEngine(tc.w, DefaultNorms()); err == nil {
				t.Errorf("expected error for weights %+v", tc.w)
			}
		})
	}
}

func TestNewEngineAcceptsTolerance(t *testing.T) {
	// 0.995 is within the 0.01 tolerance around 1.0.
	w := Weights{Relevance: 0.4, Popularity: 0.3, Performance: 0.195, Compliance: 0.1}
	if _, err := NewEngine(w, DefaultNorms()); err != nil {
		t.Fatalf("weights within tolerance rejected: %v", err)
	}
}

// TestRankReferenceListing pins the full scoring pipeline on a known listing:
// index score 8.5, 5000 requests, rating 4.5, no reviews, 150ms latency,
// 0.1% errors, 99.9% availability, internal compliance with one certification.
func TestRankReferenceListing(t *testing.T) {
	e := mustEngine(t, DefaultWeights())
	doc := &listing.Document{
		ID: "svc-1",
		Metrics: listing.Metrics{
			TotalRequests: 5000,
			AvgLatencyMS:  150,
			ErrorRate:     0.001,
			Rating:        4.5,
			ReviewCount:   0,
		},
		SLA:        listing.SLA{Availability: 99.9},
		Compliance: listing.Compliance{Level: "internal", Certifications: []string{"SOC2"}},
	}

	ranked := e.Rank([]result.Result{{Listing: doc, Score: 8.5}})
	got := ranked[0]

	assertScore(t, "relevance", got.MatchDetails.Relevance, 0.85)
	assertScore(t, "popularity", got.MatchDetails.Popularity, 0.4*0.5+0.4*0.9)
	assertScore(t, "performance", got.MatchDetails.Performance, 0.3*0.85+0.3*0.999+0.4*0.999)
	assertScore(t, "compliance", got.MatchDetails.Compliance, 0.8)

	want := 0.4*0.85 + 0.3*0.56 + 0.2*(0.3*0.85+0.3*0.999+0.4*0.999) + 0.1*0.8
	assertScore(t, "final", got.Score, want)
}

func assertScore(t *testing.T, name string, got, want float64) {
	t.Helper()
	if math.Abs(got-want) > 1e-9 {
		t.Errorf("%s score = %.6f, want %.6f", name, got, want)
	}
	if got < 0 || got > 1 {
		t.Errorf("%s score %.6f outside [0,1]", name, got)
	}
}

func TestRankScoreBounds(t *testing.T) {
	e := mustEngine(t, DefaultWeights())
	// Extreme listing: everything past its normalization ceiling.
	doc := &listing.Document{
		ID: "svc-max",
		Metrics: listing.Metrics{
			TotalRequests: 1_000_000,
			AvgLatencyMS:  50_000,
			ErrorRate:     3, // corrupt upstream metric
			Rating:        9,
			ReviewCount:   100_000,
		},
		SLA:        listing.SLA{Availability: 250},
		Compliance: listing.Compliance{Level: "confidential", Certifications: []string{"a", "b", "c", "d"}},
	}

	ranked := e.Rank([]result.Result{{Listing: doc, Score: 99}})
	d := ranked[0].MatchDetails
	for name, v := range map[string]float64{
		"relevance":   d.Relevance,
		"popularity":  d.Popularity,
		"performance": d.Performance,
		"compliance":  d.Compliance,
		"final":       ranked[0].Score,
	} {
		if v < 0 || v > 1 {
			t.Errorf("%s score %.4f outside [0,1]", name, v)
		}
	}
}

func TestRankDeterministicTieBreak(t *testing.T) {
	e := mustEngine(t, DefaultWeights())
	// Identical listings except id: same score, must order by id ascending.
	mk := func(id string) result.Result {
		return result.Result{
			Listing: &listing.Document{
				ID:      id,
				Metrics: listing.Metrics{Rating: 4.0, TotalRequests: 100},
				SLA:     listing.SLA{Availability: 99},
			},
			Score: 5,
		}
	}

	ranked := e.Rank([]result.Result{mk("svc-c"), mk("svc-a"), mk("svc-b")})
	want := []string{"svc-a", "svc-b", "svc-c"}
	for i, id := range want {
		if ranked[i].Listing.ID != id {
			t.Fatalf("position %d: got %s, want %s", i, ranked[i].Listing.ID, id)
		}
	}

	// Re-ranking an identical input must reproduce the ordering exactly.
	again := e.Rank([]result.Result{mk("svc-c"), mk("svc-a"), mk("svc-b")})
	for i := range ranked {
		if again[i].Listing.ID != ranked[i].Listing.ID || again[i].Score != ranked[i].Score {
			t.Fatalf("ordering not reproducible at position %d", i)
		}
	}
}

func TestRankOrdersByScoreDescending(t *testing.T) {
	e := mustEngine(t, DefaultWeights())
	low := result.Result{Listing: &listing.Document{ID: "low"}, Score: 1}
	high := result.Result{
		Listing: &listing.Document{
			ID:      "high",
			Metrics: listing.Metrics{Rating: 5, TotalRequests: 20000, ReviewCount: 500},
			SLA:     listing.SLA{Availability: 100},
		},
		Score: 9.9,
	}

	ranked := e.Rank([]result.Result{low, high})
	if ranked[0].Listing.ID != "high" {
		t.Fatalf("expected high-scoring listing first, got %s", ranked[0].Listing.ID)
	}
	if ranked[0].Score <= ranked[1].Score {
		t.Errorf("expected descending scores, got %.4f then %.4f", ranked[0].Score, ranked[1].Score)
	}
}

func TestNormsApplyDefaults(t *testing.T) {
	e, err := NewEngine(DefaultWeights(), Norms{})
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}
	if got := e.RelevanceScore(5); got != 0.5 {
		t.Errorf("expected default index score norm of 10, relevance(5)=%v", got)
	}
}

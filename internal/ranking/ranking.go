package ranking

import (
	"sort"

	"github.com/skyhive/marketdex/internal/domain/listing"
	"github.com/skyhive/marketdex/internal/domain/search/result"
)

// Engine turns raw index hits into a deterministic, weighted ordering.
// It is a pure function of listing attributes and configured weights.
type Engine struct {
	weights Weights
	norms   Norms
}

// NewEngine validates the weights and builds a ranking engine.
// Invalid weights are a startup error, never a per-request one.
func NewEngine(weights Weights, norms Norms) (*Engine, error) {
	if err := weights.Validate(); err != nil {
		return nil, err
	}
	return &Engine{weights: weights, norms: norms.applyDefaults()}, nil
}

// Rank rewrites each result's score as the weighted sum of the four
// sub-scores and orders results by score descending. Ties break by
// listing id ascending so identical requests always produce identical
// orderings (pagination stability depends on this).
func (e *Engine) Rank(results []result.Result) []result.Result {
	for i := range results {
		doc := results[i].Listing
		details := result.MatchDetails{
			Relevance:   e.RelevanceScore(results[i].Score),
			Popularity:  e.PopularityScore(doc),
			Performance: e.PerformanceScore(doc),
			Compliance:  e.ComplianceScore(doc),
		}
		results[i].MatchDetails = details
		results[i].Score = e.weights.Relevance*details.Relevance +
			e.weights.Popularity*details.Popularity +
			e.weights.Performance*details.Performance +
			e.weights.Compliance*details.Compliance
	}

	sort.SliceStable(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].Listing.ID < results[j].Listing.ID
	})

	return results
}

// RelevanceScore normalizes a raw index score onto [0,1].
func (e *Engine) RelevanceScore(indexScore float64) float64 {
	return clamp01(indexScore / e.norms.IndexScore)
}

// PopularityScore composites request volume, rating, and review count.
func (e *Engine) PopularityScore(doc *listing.Document) float64 {
	requests := clamp01(float64(doc.Metrics.TotalRequests) / e.norms.TotalRequests)
	rating := clamp01(doc.Metrics.Rating / 5.0)
	reviews := clamp01(float64(doc.Metrics.ReviewCount) / e.norms.ReviewCount)
	return clamp01(0.4*requests + 0.4*rating + 0.2*reviews)
}

// PerformanceScore composites latency, error rate, and availability.
func (e *Engine) PerformanceScore(doc *listing.Document) float64 {
	latency := 1 - clamp01(doc.Metrics.AvgLatencyMS/e.norms.LatencyMS)
	errors := 1 - clamp01(doc.Metrics.ErrorRate)
	availability := clamp01(doc.SLA.Availability / 100.0)
	return clamp01(0.3*latency + 0.3*errors + 0.4*availability)
}

// ComplianceScore composites the data-handling level and certification count.
// Base 0.5, level bonus, plus 0.1 per certification capped at 0.2.
func (e *Engine) ComplianceScore(doc *listing.Document) float64 {
	score := 0.5
	switch doc.Compliance.Level {
	case "public":
		score += 0.1
	case "internal":
		score += 0.2
	case "confidential":
		score += 0.3
	}
	certBonus := 0.1 * float64(len(doc.Compliance.Certifications))
	if certBonus > 0.2 {
		certBonus = 0.2
	}
	return clamp01(score + certBonus)
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

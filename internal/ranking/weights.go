// Package ranking computes the four-factor weighted score that orders
// marketplace search results: lexical/semantic relevance, popularity,
// operational performance, and compliance posture.
package ranking

import "fmt"

// weightTolerance is how far the weight sum may drift from 1.0.
const weightTolerance = 0.01

// Weights combines the four ranking factors. The sum must be 1.0 within
// weightTolerance; anything else is rejected at startup.
type Weights struct {
	Relevance   float64 `yaml:"relevance" json:"relevance"`
	Popularity  float64 `yaml:"popularity" json:"popularity"`
	Performance float64 `yaml:"performance" json:"performance"`
	Compliance  float64 `yaml:"compliance" json:"compliance"`
}

// DefaultWeights returns the production default weighting: relevance-led,
// with popularity and performance as secondary signals.
func DefaultWeights() Weights {
	return Weights{
		Relevance:   0.4,
		Popularity:  0.3,
		Performance: 0.2,
		Compliance:  0.1,
	}
}

// Validate checks that the weights are non-negative and sum to 1.0 ± 0.01.
func (w Weights) Validate() error {
	if w.Relevance < 0 || w.Popularity < 0 || w.Performance < 0 || w.Compliance < 0 {
		return fmt.Errorf("ranking weights must be non-negative: %+v", w)
	}
	sum := w.Relevance + w.Popularity + w.Performance + w.Compliance
	if sum < 1.0-weightTolerance || sum > 1.0+weightTolerance {
		return fmt.Errorf("ranking weights must sum to 1.0, got %.3f", sum)
	}
	return nil
}

// Norms are the normalization divisors that map raw listing numbers onto
// [0,1] sub-scores. They reflect the scale of the index and the catalog
// and are configuration, not code.
type Norms struct {
	// IndexScore divides the raw index relevance score.
	IndexScore float64 `yaml:"index_score" json:"index_score"`
	// TotalRequests is the request volume treated as full popularity.
	TotalRequests float64 `yaml:"total_requests" json:"total_requests"`
	// ReviewCount is the review volume treated as full review coverage.
	ReviewCount float64 `yaml:"review_count" json:"review_count"`
	// LatencyMS is the average latency treated as worst-case.
	LatencyMS float64 `yaml:"latency_ms" json:"latency_ms"`
}

// DefaultNorms returns the normalization constants calibrated for the
// current index scoring scale and catalog size.
func DefaultNorms() Norms {
	return Norms{
		IndexScore:    10,
		TotalRequests: 10000,
		ReviewCount:   100,
		LatencyMS:     1000,
	}
}

// applyDefaults fills zero divisors so a partial config cannot divide by zero.
func (n Norms) applyDefaults() Norms {
	d := DefaultNorms()
	if n.IndexScore <= 0 {
		n.IndexScore = d.IndexScore
	}
	if n.TotalRequests <= 0 {
		n.TotalRequests = d.TotalRequests
	}
	if n.ReviewCount <= 0 {
		n.ReviewCount = d.ReviewCount
	}
	if n.LatencyMS <= 0 {
		n.LatencyMS = d.LatencyMS
	}
	return n
}

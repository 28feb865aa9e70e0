package result

import "github.com/skyhive/marketdex/internal/domain/listing"

// Result is a single ranked search hit.
type Result struct {
	Listing      *listing.Document `json:"listing"`
	Score        float64           `json:"score"`
	MatchDetails MatchDetails      `json:"match_details"`
}

// MatchDetails breaks the final score into its weighted sub-scores.
// Each sub-score lies in [0,1].
type MatchDetails struct {
	Relevance   float64 `json:"relevance_score"`
	Popularity  float64 `json:"popularity_score"`
	Performance float64 `json:"performance_score"`
	Compliance  float64 `json:"compliance_score"`
}

// Response is a ranked, paginated page of search results.
type Response struct {
	Results  []Result `json:"results"`
	Total    int      `json:"total"`
	Page     int      `json:"page"`
	PageSize int      `json:"page_size"`
	TookMS   int      `json:"took_ms"`
	Facets   *Facets  `json:"facets,omitempty"`
}

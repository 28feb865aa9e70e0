package recommend

import (
	"time"

	"github.com/skyhive/marketdex/internal/domain/listing"
)

// Algorithm tags reported in recommendation responses.
const (
	AlgorithmHybrid   = "hybrid"
	AlgorithmTrending = "trending"
	AlgorithmDisabled = "disabled"
)

// Request asks for personalized recommendations.
// AnchorID, when set, requests listings similar to that listing.
type Request struct {
	UserID          string   `json:"user_id"`
	AnchorID        string   `json:"anchor_id,omitempty"`
	Categories      []string `json:"categories,omitempty"`
	MaxResults      int      `json:"max_results,omitempty"`
	IncludeTrending bool     `json:"include_trending,omitempty"`
}

// Response is a merged, deduplicated set of recommendations.
type Response struct {
	Recommendations []Recommendation `json:"recommendations"`
	Algorithm       string           `json:"algorithm"`
	Timestamp       time.Time        `json:"timestamp"`
}

// Recommendation is a single recommended listing with provenance.
type Recommendation struct {
	Listing    *listing.Document `json:"listing"`
	Score      float64           `json:"score"`
	Reason     string            `json:"reason"`
	Confidence float64           `json:"confidence"` // 0-1
}

// Interaction is one user↔listing event from the consumption ledger.
// Read-only to the discovery engine.
type Interaction struct {
	ListingID   string    `json:"listing_id"`
	Type        string    `json:"type"` // view, download, rate, consume
	Rating      float64   `json:"rating"`
	Timestamp   time.Time `json:"timestamp"`
	DurationSec int       `json:"duration_sec"`
}

// RatedListing is a listing aggregate from ledger ratings.
type RatedListing struct {
	ListingID string
	AvgRating float64
	Count     int
}

// AnchorAttrs are the content attributes of the reference listing for
// content-based similarity.
type AnchorAttrs struct {
	Category     string
	Tags         []string
	PricingModel string
}

// ScoredListing is a candidate with a content-similarity score.
type ScoredListing struct {
	ListingID string
	Score     float64
}

// TrendingListing is a listing with elevated recent interaction volume.
type TrendingListing struct {
	ListingID string
	Count     int
	AvgRating float64
}

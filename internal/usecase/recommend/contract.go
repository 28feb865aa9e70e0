package recommend

import (
	"context"
	"time"

	"github.com/skyhive/marketdex/internal/domain/listing"
	domrec "github.com/skyhive/marketdex/internal/domain/recommend"
)

// Interactions is the read-only consumption ledger backing the
// recommendation strategies.
type Interactions interface {
	History(ctx context.Context, userID string) ([]domrec.Interaction, error)
	Peers(ctx context.Context, userID string, listingIDs []string, minCommon int) ([]string, error)
	PeerLiked(ctx context.Context, peerIDs, excludeIDs []string, minRating float64, limit int) ([]domrec.RatedListing, error)
	Anchor(ctx context.Context, listingID string) (domrec.AnchorAttrs, error)
	SimilarByContent(ctx context.Context, anchor domrec.AnchorAttrs, excludeID string, limit int) ([]domrec.ScoredListing, error)
	TopRatedInCategories(ctx context.Context, categories []string, minRating float64, limit int) ([]domrec.RatedListing, error)
	Trending(ctx context.Context, window time.Duration, minInteractions, limit int) ([]domrec.TrendingListing, error)
}

// Index hydrates scored listing ids into full documents.
type Index interface {
	MGet(ctx context.Context, ids []string) (map[string]*listing.Document, error)
}

// ResultCache stores whole responses keyed by data class. Implementations
// treat failures as misses; Get never errors.
type ResultCache interface {
	Get(ctx context.Context, class, key string, dst any) bool
	Put(ctx context.Context, class, key string, v any)
}

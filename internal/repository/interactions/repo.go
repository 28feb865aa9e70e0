// Package interactions reads the user↔listing interaction ledger and the
// mirrored listings table from the relational store. All queries are
// read-only: the consumption service owns the ledger, the publishing
// service owns the listings.
package interactions

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/skyhive/marketdex/internal/domain/recommend"
)

// historyLimit bounds how much interaction history feeds recommendation
// strategies per request.
const historyLimit = 100

// peerLimit bounds the peer set considered by collaborative filtering.
const peerLimit = 50

// Repo runs parameterized read queries against the interaction store.
type Repo struct {
	db *sql.DB
}

// New creates an interaction store repository.
func New(db *sql.DB) *Repo {
	return &Repo{db: db}
}

// Ping checks connectivity.
func (r *Repo) Ping(ctx context.Context) error {
	if err := r.db.PingContext(ctx); err != nil {
		return fmt.Errorf("ping interaction store: %w", err)
	}
	return nil
}

// History returns the user's most recent interactions, newest first.
func (r *Repo) History(ctx context.Context, userID string) ([]recommend.Interaction, error) {
	const q = `
		SELECT listing_id, interaction_type, rating, occurred_at, duration_sec
		FROM user_interactions
		WHERE user_id = $1
		ORDER BY occurred_at DESC
		LIMIT $2`

	rows, err := r.db.QueryContext(ctx, q, userID, historyLimit)
	if err != nil {
		return nil, fmt.Errorf("query user history: %w", err)
	}
	defer rows.Close()

	var history []recommend.Interaction
	for rows.Next() {
		var (
			it       recommend.Interaction
			rating   sql.NullFloat64
			duration sql.NullInt64
		)
		if err := rows.Scan(&it.ListingID, &it.Type, &rating, &it.Timestamp, &duration); err != nil {
			return nil, fmt.Errorf("scan interaction: %w", err)
		}
		it.Rating = rating.Float64
		it.DurationSec = int(duration.Int64)
		history = append(history, it)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate history: %w", err)
	}
	return history, nil
}

// Peers finds users who interacted with at least minCommon of the given
// listings, excluding the user themself, most overlapping first.
func (r *Repo) Peers(ctx context.Context, userID string, listingIDs []string, minCommon int) ([]string, error) {
	const q = `
		SELECT user_id, COUNT(DISTINCT listing_id) AS common_listings
		FROM user_interactions
		WHERE listing_id = ANY($1)
		  AND user_id != $2
		GROUP BY user_id
		HAVING COUNT(DISTINCT listing_id) >= $3
		ORDER BY common_listings DESC
		LIMIT $4`

	rows, err := r.db.QueryContext(ctx, q, pq.Array(listingIDs), userID, minCommon, peerLimit)
	if err != nil {
		return nil, fmt.Errorf("query peers: %w", err)
	}
	defer rows.Close()

	var peers []string
	for rows.Next() {
		var (
			peer   string
			common int
		)
		if err := rows.Scan(&peer, &common); err != nil {
			return nil, fmt.Errorf("scan peer: %w", err)
		}
		peers = append(peers, peer)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate peers: %w", err)
	}
	return peers, nil
}

// PeerLiked returns listings the given peers rated at least minRating,
// excluding listings the requester has already touched.
func (r *Repo) PeerLiked(
	ctx context.Context, peerIDs, excludeIDs []string, minRating float64, limit int,
) ([]recommend.RatedListing, error) {
	const q = `
		SELECT listing_id, AVG(rating) AS avg_rating, COUNT(*) AS interaction_count
		FROM user_interactions
		WHERE user_id = ANY($1)
		  AND NOT (listing_id = ANY($2))
		  AND rating >= $3
		GROUP BY listing_id
		ORDER BY avg_rating DESC, interaction_count DESC
		LIMIT $4`

	rows, err := r.db.QueryContext(ctx, q, pq.Array(peerIDs), pq.Array(excludeIDs), minRating, limit)
	if err != nil {
		return nil, fmt.Errorf("query peer-liked listings: %w", err)
	}
	defer rows.Close()

	var liked []recommend.RatedListing
	for rows.Next() {
		var l recommend.RatedListing
		if err := rows.Scan(&l.ListingID, &l.AvgRating, &l.Count); err != nil {
			return nil, fmt.Errorf("scan peer-liked listing: %w", err)
		}
		liked = append(liked, l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate peer-liked listings: %w", err)
	}
	return liked, nil
}

// Anchor fetches the content attributes of a listing.
func (r *Repo) Anchor(ctx context.Context, listingID string) (recommend.AnchorAttrs, error) {
	const q = `SELECT category, tags, pricing_model FROM listings WHERE id = $1`

	var a recommend.AnchorAttrs
	err := r.db.QueryRowContext(ctx, q, listingID).Scan(&a.Category, pq.Array(&a.Tags), &a.PricingModel)
	if err != nil {
		return recommend.AnchorAttrs{}, fmt.Errorf("query anchor listing %s: %w", listingID, err)
	}
	return a, nil
}

// SimilarByContent scores active listings against the anchor attributes:
// 0.5 for same category, 0.3 for tag overlap, 0.2 for same pricing model.
func (r *Repo) SimilarByContent(
	ctx context.Context, anchor recommend.AnchorAttrs, excludeID string, limit int,
) ([]recommend.ScoredListing, error) {
	const q = `
		SELECT id,
		       CASE WHEN category = $1 THEN 0.5 ELSE 0.0 END +
		       CASE WHEN tags && $2 THEN 0.3 ELSE 0.0 END +
		       CASE WHEN pricing_model = $3 THEN 0.2 ELSE 0.0 END AS similarity
		FROM listings
		WHERE id != $4
		  AND status = 'active'
		ORDER BY similarity DESC, id ASC
		LIMIT $5`

	rows, err := r.db.QueryContext(ctx, q,
		anchor.Category, pq.Array(anchor.Tags), anchor.PricingModel, excludeID, limit)
	if err != nil {
		return nil, fmt.Errorf("query similar listings: %w", err)
	}
	defer rows.Close()

	var similar []recommend.ScoredListing
	for rows.Next() {
		var s recommend.ScoredListing
		if err := rows.Scan(&s.ListingID, &s.Score); err != nil {
			return nil, fmt.Errorf("scan similar listing: %w", err)
		}
		similar = append(similar, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate similar listings: %w", err)
	}
	return similar, nil
}

// TopRatedInCategories returns active listings rated at least minRating
// in any of the given categories, best first.
func (r *Repo) TopRatedInCategories(
	ctx context.Context, categories []string, minRating float64, limit int,
) ([]recommend.RatedListing, error) {
	const q = `
		SELECT id, avg_rating, total_requests
		FROM listings
		WHERE category = ANY($1)
		  AND status = 'active'
		  AND avg_rating >= $2
		ORDER BY avg_rating DESC, total_requests DESC, id ASC
		LIMIT $3`

	rows, err := r.db.QueryContext(ctx, q, pq.Array(categories), minRating, limit)
	if err != nil {
		return nil, fmt.Errorf("query top-rated listings: %w", err)
	}
	defer rows.Close()

	var top []recommend.RatedListing
	for rows.Next() {
		var (
			l        recommend.RatedListing
			requests int64
		)
		if err := rows.Scan(&l.ListingID, &l.AvgRating, &requests); err != nil {
			return nil, fmt.Errorf("scan top-rated listing: %w", err)
		}
		top = append(top, l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate top-rated listings: %w", err)
	}
	return top, nil
}

// Trending returns listings with at least minInteractions events since
// the window cutoff, busiest first.
func (r *Repo) Trending(
	ctx context.Context, window time.Duration, minInteractions, limit int,
) ([]recommend.TrendingListing, error) {
	const q = `
		SELECT listing_id, COUNT(*) AS interaction_count, COALESCE(AVG(rating), 0) AS avg_rating
		FROM user_interactions
		WHERE occurred_at > $1
		GROUP BY listing_id
		HAVING COUNT(*) >= $2
		ORDER BY interaction_count DESC, avg_rating DESC, listing_id ASC
		LIMIT $3`

	cutoff := time.Now().Add(-window)
	rows, err := r.db.QueryContext(ctx, q, cutoff, minInteractions, limit)
	if err != nil {
		return nil, fmt.Errorf("query trending listings: %w", err)
	}
	defer rows.Close()

	var trending []recommend.TrendingListing
	for rows.Next() {
		var l recommend.TrendingListing
		if err := rows.Scan(&l.ListingID, &l.Count, &l.AvgRating); err != nil {
			return nil, fmt.Errorf("scan trending listing: %w", err)
		}
		trending = append(trending, l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate trending listings: %w", err)
	}
	return trending, nil
}

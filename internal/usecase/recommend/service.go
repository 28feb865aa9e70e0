// Package recommend produces personalized and trending listing
// recommendations by combining four independent strategies over the
// interaction ledger.
package recommend

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	domrec "github.com/skyhive/marketdex/internal/domain/recommend"
	"github.com/skyhive/marketdex/internal/metrics"
	"github.com/skyhive/marketdex/internal/repository/resultcache"
)

// minPeerRating is the rating floor for a peer interaction to count as
// an endorsement.
const minPeerRating = 4.0

// minCategoryRating is the rating floor for the category fallback.
const minCategoryRating = 4.0

// Strategy slots in merge-priority order. Dedup keeps the first
// occurrence, so an id surfaced by collaborative filtering wins over
// the same id surfaced by trending no matter which goroutine finishes
// first.
const (
	slotCollaborative = iota
	slotContent
	slotCategory
	slotTrending
	slotCount
)

// Options are the recommendation engine knobs.
type Options struct {
	Enabled                 bool
	MaxRecommendations      int
	CollaborativeWeight     float64
	ContentWeight           float64
	PopularityWeight        float64
	MinCommonUsers          int
	MinUserHistory          int
	TrendingWindow          time.Duration
	TrendingMinInteractions int
}

// Service generates recommendations. Strategies run concurrently; each
// is independently fault-tolerant and a failing one contributes an
// empty list, never an error.
type Service struct {
	ledger Interactions
	index  Index
	cache  ResultCache
	logger *zap.Logger
	opts   Options
}

// New creates a recommendation service.
func New(ledger Interactions, index Index, cache ResultCache, opts Options, logger *zap.Logger) *Service {
	return &Service{ledger: ledger, index: index, cache: cache, logger: logger, opts: opts}
}

// stub is a scored recommendation before hydration.
type stub struct {
	listingID  string
	score      float64
	reason     string
	confidence float64
}

// Recommend runs the applicable strategies, merges their output in
// strategy-priority order, and hydrates the surviving ids into full
// listing documents. It never fails: absence of data yields an empty,
// valid response.
func (s *Service) Recommend(ctx context.Context, req *domrec.Request) (*domrec.Response, error) {
	if !s.opts.Enabled {
		return &domrec.Response{
			Recommendations: []domrec.Recommendation{},
			Algorithm:       domrec.AlgorithmDisabled,
			Timestamp:       time.Now().UTC(),
		}, nil
	}

	started := time.Now()
	limit := s.capLimit(req.MaxResults)

	key := requestCacheKey(req, limit)
	var cached domrec.Response
	if s.cache.Get(ctx, resultcache.ClassRecommendations, key, &cached) {
		return &cached, nil
	}

	history, err := s.ledger.History(ctx, req.UserID)
	if err != nil {
		s.logger.Warn("interaction history unavailable",
			zap.String("user_id", req.UserID), zap.Error(err))
		history = nil
	}

	var (
		outs [slotCount][]stub
		wg   sync.WaitGroup
	)
	run := func(slot int, name string, fn func(context.Context) ([]stub, error)) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			stubs, err := fn(ctx)
			if err != nil {
				metrics.RecommendationStrategyTotal.WithLabelValues(name, "error").Inc()
				s.logger.Warn("recommendation strategy failed",
					zap.String("strategy", name), zap.Error(err))
				return
			}
			metrics.RecommendationStrategyTotal.WithLabelValues(name, "ok").Inc()
			outs[slot] = stubs
		}()
	}

	if len(history) >= s.opts.MinUserHistory {
		run(slotCollaborative, "collaborative", func(ctx context.Context) ([]stub, error) {
			return s.collaborative(ctx, req.UserID, history, limit)
		})
	} else {
		metrics.RecommendationStrategyTotal.WithLabelValues("collaborative", "skipped").Inc()
	}

	switch {
	case req.AnchorID != "":
		run(slotContent, "content", func(ctx context.Context) ([]stub, error) {
			return s.contentBased(ctx, req.AnchorID, limit)
		})
	case len(req.Categories) > 0:
		run(slotCategory, "category", func(ctx context.Context) ([]stub, error) {
			return s.categoryBased(ctx, req.Categories, limit)
		})
	}

	if req.IncludeTrending {
		run(slotTrending, "trending", func(ctx context.Context) ([]stub, error) {
			return s.trending(ctx, limit/2)
		})
	}

	wg.Wait()

	merged := make([]stub, 0, limit*2)
	for slot := range outs {
		merged = append(merged, outs[slot]...)
	}

	recs, err := s.hydrate(ctx, dedupAndSort(merged), limit)
	if err != nil {
		s.logger.Warn("recommendation hydration failed", zap.Error(err))
		recs = []domrec.Recommendation{}
	}

	resp := &domrec.Response{
		Recommendations: recs,
		Algorithm:       domrec.AlgorithmHybrid,
		Timestamp:       time.Now().UTC(),
	}
	s.cache.Put(ctx, resultcache.ClassRecommendations, key, resp)

	metrics.RecommendationDuration.Observe(time.Since(started).Seconds())
	s.logger.Debug("recommendations generated",
		zap.String("user_id", req.UserID),
		zap.Int("count", len(recs)),
		zap.Duration("duration", time.Since(started)))

	return resp, nil
}

// Trending serves the standalone trending endpoint: no personalization,
// just recent interaction volume.
func (s *Service) Trending(ctx context.Context, limit int) (*domrec.Response, error) {
	if !s.opts.Enabled {
		return &domrec.Response{
			Recommendations: []domrec.Recommendation{},
			Algorithm:       domrec.AlgorithmDisabled,
			Timestamp:       time.Now().UTC(),
		}, nil
	}

	limit = s.capLimit(limit)

	key := "trending:" + strconv.Itoa(limit)
	var cached domrec.Response
	if s.cache.Get(ctx, resultcache.ClassRecommendations, key, &cached) {
		return &cached, nil
	}

	stubs, err := s.trending(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("trending listings: %w", err)
	}

	recs, err := s.hydrate(ctx, dedupAndSort(stubs), limit)
	if err != nil {
		return nil, fmt.Errorf("hydrate trending listings: %w", err)
	}

	resp := &domrec.Response{
		Recommendations: recs,
		Algorithm:       domrec.AlgorithmTrending,
		Timestamp:       time.Now().UTC(),
	}
	s.cache.Put(ctx, resultcache.ClassRecommendations, key, resp)

	return resp, nil
}

// collaborative recommends listings endorsed by users with overlapping
// interaction history.
func (s *Service) collaborative(
	ctx context.Context, userID string, history []domrec.Interaction, limit int,
) ([]stub, error) {
	touched := make([]string, len(history))
	for i, h := range history {
		touched[i] = h.ListingID
	}

	peers, err := s.ledger.Peers(ctx, userID, touched, s.opts.MinCommonUsers)
	if err != nil {
		return nil, fmt.Errorf("find peers: %w", err)
	}
	if len(peers) == 0 {
		return nil, nil
	}

	liked, err := s.ledger.PeerLiked(ctx, peers, touched, minPeerRating, limit)
	if err != nil {
		return nil, fmt.Errorf("peer-liked listings: %w", err)
	}

	stubs := make([]stub, len(liked))
	for i, l := range liked {
		stubs[i] = stub{
			listingID:  l.ListingID,
			score:      l.AvgRating * s.opts.CollaborativeWeight,
			reason:     "Users similar to you liked this listing",
			confidence: min(float64(l.Count)/10.0, 1.0),
		}
	}
	return stubs, nil
}

// contentBased recommends listings sharing category, tags, or pricing
// model with the anchor.
func (s *Service) contentBased(ctx context.Context, anchorID string, limit int) ([]stub, error) {
	anchor, err := s.ledger.Anchor(ctx, anchorID)
	if err != nil {
		return nil, fmt.Errorf("anchor attributes: %w", err)
	}

	similar, err := s.ledger.SimilarByContent(ctx, anchor, anchorID, limit)
	if err != nil {
		return nil, fmt.Errorf("similar listings: %w", err)
	}

	stubs := make([]stub, len(similar))
	for i, c := range similar {
		stubs[i] = stub{
			listingID:  c.ListingID,
			score:      c.Score * s.opts.ContentWeight,
			reason:     fmt.Sprintf("Similar to listings in the %s category", anchor.Category),
			confidence: c.Score,
		}
	}
	return stubs, nil
}

// categoryBased recommends top-rated listings in requested categories.
// Used only when no anchor listing is given.
func (s *Service) categoryBased(ctx context.Context, categories []string, limit int) ([]stub, error) {
	top, err := s.ledger.TopRatedInCategories(ctx, categories, minCategoryRating, limit)
	if err != nil {
		return nil, fmt.Errorf("top-rated listings: %w", err)
	}

	stubs := make([]stub, len(top))
	for i, l := range top {
		stubs[i] = stub{
			listingID:  l.ListingID,
			score:      (l.AvgRating / 5.0) * s.opts.ContentWeight,
			reason:     "Top rated in requested categories",
			confidence: l.AvgRating / 5.0,
		}
	}
	return stubs, nil
}

// trending recommends listings with elevated recent interaction volume.
func (s *Service) trending(ctx context.Context, limit int) ([]stub, error) {
	if limit <= 0 {
		return nil, nil
	}

	rows, err := s.ledger.Trending(ctx, s.opts.TrendingWindow, s.opts.TrendingMinInteractions, limit)
	if err != nil {
		return nil, fmt.Errorf("trending listings: %w", err)
	}

	stubs := make([]stub, len(rows))
	for i, l := range rows {
		stubs[i] = stub{
			listingID:  l.ListingID,
			score:      (float64(l.Count) / 100.0) * s.opts.PopularityWeight,
			reason:     "Trending now",
			confidence: min(float64(l.Count)/100.0, 1.0),
		}
	}
	return stubs, nil
}

// hydrate resolves scored stubs into full listing documents in one
// batch lookup. Stubs whose listing is gone from the index are dropped;
// callers never see a nil listing.
func (s *Service) hydrate(ctx context.Context, stubs []stub, limit int) ([]domrec.Recommendation, error) {
	if len(stubs) == 0 {
		return []domrec.Recommendation{}, nil
	}

	ids := make([]string, len(stubs))
	for i, st := range stubs {
		ids[i] = st.listingID
	}

	docs, err := s.index.MGet(ctx, ids)
	if err != nil {
		return nil, err
	}

	recs := make([]domrec.Recommendation, 0, limit)
	for _, st := range stubs {
		doc, ok := docs[st.listingID]
		if !ok {
			continue
		}
		recs = append(recs, domrec.Recommendation{
			Listing:    doc,
			Score:      st.score,
			Reason:     st.reason,
			Confidence: st.confidence,
		})
		if len(recs) == limit {
			break
		}
	}
	return recs, nil
}

// dedupAndSort drops repeated listing ids keeping the first occurrence,
// then orders by score descending with ties broken by id ascending so
// equal inputs always produce equal output.
func dedupAndSort(stubs []stub) []stub {
	seen := make(map[string]struct{}, len(stubs))
	unique := stubs[:0]
	for _, st := range stubs {
		if _, ok := seen[st.listingID]; ok {
			continue
		}
		seen[st.listingID] = struct{}{}
		unique = append(unique, st)
	}

	sort.SliceStable(unique, func(i, j int) bool {
		if unique[i].score != unique[j].score {
			return unique[i].score > unique[j].score
		}
		return unique[i].listingID < unique[j].listingID
	})
	return unique
}

// capLimit clamps a requested result count to the configured ceiling.
func (s *Service) capLimit(n int) int {
	if n <= 0 || n > s.opts.MaxRecommendations {
		return s.opts.MaxRecommendations
	}
	return n
}

// requestCacheKey identifies a recommendation request. All request
// fields participate so personalization never bleeds across users.
func requestCacheKey(req *domrec.Request, limit int) string {
	var b strings.Builder
	b.WriteString("user:")
	b.WriteString(req.UserID)
	b.WriteString("|anchor:")
	b.WriteString(req.AnchorID)
	b.WriteString("|cats:")
	b.WriteString(strings.Join(req.Categories, ","))
	b.WriteString("|n:")
	b.WriteString(strconv.Itoa(limit))
	b.WriteString("|trend:")
	b.WriteString(strconv.FormatBool(req.IncludeTrending))
	return b.String()
}

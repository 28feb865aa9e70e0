// Package search orchestrates marketplace listing search: query planning,
// index execution, four-factor ranking, facet parsing, result caching,
// and analytics emission.
package search

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/skyhive/marketdex/internal/domain"
	"github.com/skyhive/marketdex/internal/domain/analytics"
	"github.com/skyhive/marketdex/internal/domain/search/request"
	"github.com/skyhive/marketdex/internal/domain/search/result"
	"github.com/skyhive/marketdex/internal/metrics"
	"github.com/skyhive/marketdex/internal/ranking"
	"github.com/skyhive/marketdex/internal/repository/resultcache"
)

const analyticsEmitTimeout = 5 * time.Second

// Service handles search requests end to end.
type Service struct {
	index     Index
	planner   *Planner
	ranker    *ranking.Engine
	cache     ResultCache
	analytics Analytics
	logger    *zap.Logger

	defaultPageSize int
	maxResults      int
}

// New creates a search service. analytics may be nil when emission is
// disabled.
func New(
	index Index, planner *Planner, ranker *ranking.Engine,
	cache ResultCache, analytics Analytics, logger *zap.Logger,
	defaultPageSize, maxResults int,
) *Service {
	return &Service{
		index:           index,
		planner:         planner,
		ranker:          ranker,
		cache:           cache,
		analytics:       analytics,
		logger:          logger,
		defaultPageSize: defaultPageSize,
		maxResults:      maxResults,
	}
}

// Search runs one search request: cache lookup, plan, index execution,
// ranking, facets, cache populate, analytics.
//
// Index failures wrap domain.ErrSearchUnavailable so the transport layer
// can signal the caller to retry.
func (s *Service) Search(ctx context.Context, req *request.Request) (*result.Response, error) {
	started := time.Now()

	if err := req.Normalize(s.defaultPageSize, s.maxResults); err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrInvalidRequest, err)
	}

	key := cacheKey(req)
	var cached result.Response
	if s.cache.Get(ctx, resultcache.ClassSearchResults, key, &cached) {
		s.logger.Debug("search cache hit", zap.String("query", req.Query))
		return &cached, nil
	}

	query := s.planner.BuildQuery(ctx, req)

	idxResp, err := s.index.Search(ctx, query)
	if err != nil {
		metrics.ObserveSearch(time.Since(started), 0, err)
		return nil, fmt.Errorf("%w: %w", domain.ErrSearchUnavailable, err)
	}

	results := make([]result.Result, len(idxResp.Hits))
	for i := range idxResp.Hits {
		doc := idxResp.Hits[i].Listing
		doc.Embedding = nil // never ship vectors back to callers
		results[i] = result.Result{Listing: &doc, Score: idxResp.Hits[i].Score}
	}
	results = s.ranker.Rank(results)

	resp := &result.Response{
		Results:  results,
		Total:    idxResp.Total,
		Page:     req.Pagination.Page,
		PageSize: req.Pagination.PageSize,
		TookMS:   idxResp.TookMS,
		Facets:   result.ParseFacets(idxResp.Aggregations),
	}

	s.cache.Put(ctx, resultcache.ClassSearchResults, key, resp)

	metrics.ObserveSearch(time.Since(started), len(resp.Results), nil)
	s.logger.Info("search completed",
		zap.String("query", req.Query),
		zap.Int("results", len(resp.Results)),
		zap.Int("total", resp.Total),
		zap.Duration("duration", time.Since(started)))

	s.emitAnalytics(req, resp)

	return resp, nil
}

// emitAnalytics publishes the search event off the request path. The
// request context may already be cancelled once the response is written,
// so the goroutine runs on a detached context with its own deadline.
// Losing an event never affects the response.
func (s *Service) emitAnalytics(req *request.Request, resp *result.Response) {
	if s.analytics == nil {
		return
	}

	event := analytics.SearchEvent{
		EventID:     uuid.NewString(),
		Query:       req.Query,
		ResultCount: len(resp.Results),
		Total:       resp.Total,
		UserID:      req.UserID,
		TookMS:      resp.TookMS,
		Timestamp:   time.Now().UTC(),
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), analyticsEmitTimeout)
		defer cancel()
		s.analytics.EmitSearch(ctx, event)
	}()
}

// cacheKey hashes the normalized request. Every filter participates:
// two requests differing in any predicate must never share an entry.
// UserID is excluded because it does not influence results.
func cacheKey(req *request.Request) string {
	canonical := struct {
		Query      string             `json:"q"`
		Filters    request.Filters    `json:"f"`
		Pagination request.Pagination `json:"p"`
	}{req.Query, req.Filters, req.Pagination}

	data, _ := json.Marshal(canonical)
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

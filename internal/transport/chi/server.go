// Package chi is the inbound HTTP API: search, listing detail,
// recommendations, taxonomy lookups, and operational endpoints.
package chi

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/skyhive/marketdex/internal/domain"
	domrec "github.com/skyhive/marketdex/internal/domain/recommend"
	"github.com/skyhive/marketdex/internal/domain/search/request"
	cataloguc "github.com/skyhive/marketdex/internal/usecase/catalog"
	healthuc "github.com/skyhive/marketdex/internal/usecase/health"
	recommenduc "github.com/skyhive/marketdex/internal/usecase/recommend"
	searchuc "github.com/skyhive/marketdex/internal/usecase/search"
)

// Error codes returned to API clients.
const (
	codeBadRequest        = "bad_request"
	codeValidationFailed  = "validation_failed"
	codeListingNotFound   = "listing_not_found"
	codeSearchUnavailable = "search_unavailable"
	codeEmbeddingProvider = "embedding_provider_error"
	codeInternalError     = "internal_error"
)

const defaultRecommendLimit = 10

// ErrorResponse is the JSON error body for all endpoints.
type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// errorHandler tries to handle a domain error. Returns true if handled.
type errorHandler func(w http.ResponseWriter, err error, msg string) bool

// Server exposes the discovery usecases over HTTP.
type Server struct {
	search        *searchuc.Service
	recs          *recommenduc.Service
	catalog       *cataloguc.Service
	health        *healthuc.Service
	logger        *zap.Logger
	errorHandlers []errorHandler
}

// NewServer creates an HTTP API server.
func NewServer(
	search *searchuc.Service,
	recs *recommenduc.Service,
	catalog *cataloguc.Service,
	health *healthuc.Service,
	logger *zap.Logger,
) *Server {
	s := &Server{
		search:  search,
		recs:    recs,
		catalog: catalog,
		health:  health,
		logger:  logger,
	}
	s.errorHandlers = []errorHandler{
		searchUnavailableHandler,
		sentinelHandler(domain.ErrInvalidRequest, http.StatusBadRequest, codeValidationFailed),
		sentinelHandler(domain.ErrListingNotFound, http.StatusNotFound, codeListingNotFound),
		sentinelHandler(domain.ErrEmbeddingProviderError, http.StatusBadGateway, codeEmbeddingProvider),
	}
	return s
}

// Routes registers all endpoints on the router.
func (s *Server) Routes(r chi.Router) {
	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/search", s.handleSearch)
		r.Get("/search", s.handleSearchGET)
		r.Get("/listings/{id}", s.handleGetListing)
		r.Get("/listings/{id}/similar", s.handleSimilar)
		r.Get("/recommendations", s.handleRecommendations)
		r.Get("/recommendations/trending", s.handleTrending)
		r.Get("/categories", s.handleCategories)
		r.Get("/tags", s.handleTags)
	})
	r.Get("/healthz", s.handleLiveness)
	r.Get("/readyz", s.handleReadiness)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())
}

// handleSearch handles POST /api/v1/search.
func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	var req request.Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, codeBadRequest, "invalid request body: "+err.Error())
		return
	}

	resp, err := s.search.Search(r.Context(), &req)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleSearchGET handles GET /api/v1/search for simple querystring
// searches (q, category, tags, min_rating, verified_only, paging).
func (s *Server) handleSearchGET(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	req := request.Request{
		Query: q.Get("q"),
		Pagination: request.Pagination{
			Page:     queryInt(q.Get("page"), 0),
			PageSize: queryInt(q.Get("page_size"), 0),
		},
	}
	if category := q.Get("category"); category != "" {
		req.Filters.Categories = []string{category}
	}
	if tags := q["tags"]; len(tags) > 0 {
		req.Filters.Tags = tags
	}
	if minRating := q.Get("min_rating"); minRating != "" {
		if v, err := strconv.ParseFloat(minRating, 64); err == nil {
			req.Filters.MinRating = v
		}
	}
	if q.Get("verified_only") == "true" {
		req.Filters.VerifiedOnly = true
	}

	resp, err := s.search.Search(r.Context(), &req)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleGetListing handles GET /api/v1/listings/{id}.
func (s *Server) handleGetListing(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	doc, err := s.catalog.GetListing(r.Context(), id)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

// handleSimilar handles GET /api/v1/listings/{id}/similar.
func (s *Server) handleSimilar(w http.ResponseWriter, r *http.Request) {
	req := domrec.Request{
		AnchorID:   chi.URLParam(r, "id"),
		MaxResults: queryInt(r.URL.Query().Get("max_results"), defaultRecommendLimit),
	}

	resp, err := s.recs.Recommend(r.Context(), &req)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleRecommendations handles GET /api/v1/recommendations.
func (s *Server) handleRecommendations(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	req := domrec.Request{
		UserID:          q.Get("user_id"),
		MaxResults:      queryInt(q.Get("max_results"), defaultRecommendLimit),
		IncludeTrending: q.Get("include_trending") == "true",
	}
	if categories := q.Get("categories"); categories != "" {
		req.Categories = strings.Split(categories, ",")
	}

	resp, err := s.recs.Recommend(r.Context(), &req)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleTrending handles GET /api/v1/recommendations/trending.
func (s *Server) handleTrending(w http.ResponseWriter, r *http.Request) {
	limit := queryInt(r.URL.Query().Get("max_results"), defaultRecommendLimit)

	resp, err := s.recs.Trending(r.Context(), limit)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleCategories handles GET /api/v1/categories.
func (s *Server) handleCategories(w http.ResponseWriter, r *http.Request) {
	categories, err := s.catalog.Categories(r.Context())
	if err != nil {
		s.handleDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"categories": categories})
}

// handleTags handles GET /api/v1/tags.
func (s *Server) handleTags(w http.ResponseWriter, r *http.Request) {
	tags, err := s.catalog.Tags(r.Context())
	if err != nil {
		s.handleDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"tags": tags})
}

// handleLiveness handles GET /healthz. Process-up only, no dependency
// checks.
func (s *Server) handleLiveness(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleReadiness handles GET /readyz. Degraded dependencies flip the
// status code so load balancers drain the instance.
func (s *Server) handleReadiness(w http.ResponseWriter, r *http.Request) {
	report := s.health.Check(r.Context())

	status := http.StatusOK
	if report.Status != healthuc.Healthy {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, map[string]any{
		"status": report.Status,
		"checks": report.Checks,
	})
}

func (s *Server) handleDomainError(w http.ResponseWriter, err error) {
	s.logger.Warn("domain error", zap.Error(err))
	msg := safeDomainMessage(err)
	for _, h := range s.errorHandlers {
		if h(w, err, msg) {
			return
		}
	}
	s.logger.Error("internal error", zap.Error(err))
	writeError(w, http.StatusInternalServerError, codeInternalError, "internal error")
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, ErrorResponse{Code: code, Message: message})
}

// safeDomainMessage returns a sentinel error message for the client
// without exposing internals.
func safeDomainMessage(err error) string {
	sentinels := []error{
		domain.ErrSearchUnavailable,
		domain.ErrListingNotFound,
		domain.ErrInvalidRequest,
		domain.ErrEmbeddingProviderError,
	}
	for _, s := range sentinels {
		if errors.Is(err, s) {
			return s.Error()
		}
	}
	return "internal error"
}

// sentinelHandler returns an errorHandler that matches a single sentinel error.
func sentinelHandler(sentinel error, status int, code string) errorHandler {
	return func(w http.ResponseWriter, err error, msg string) bool {
		if !errors.Is(err, sentinel) {
			return false
		}
		writeError(w, status, code, msg)
		return true
	}
}

// searchUnavailableHandler maps index outages to 503 with a retry hint.
func searchUnavailableHandler(w http.ResponseWriter, err error, msg string) bool {
	if !errors.Is(err, domain.ErrSearchUnavailable) {
		return false
	}
	w.Header().Set("Retry-After", "1")
	writeError(w, http.StatusServiceUnavailable, codeSearchUnavailable, msg)
	return true
}

func queryInt(raw string, fallback int) int {
	if raw == "" {
		return fallback
	}
	if v, err := strconv.Atoi(raw); err == nil {
		return v
	}
	return fallback
}

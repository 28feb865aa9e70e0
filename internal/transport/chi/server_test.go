package chi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	gochi "github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/skyhive/marketdex/internal/domain"
	"github.com/skyhive/marketdex/internal/domain/listing"
	domrec "github.com/skyhive/marketdex/internal/domain/recommend"
	"github.com/skyhive/marketdex/internal/domain/search/index"
	"github.com/skyhive/marketdex/internal/domain/search/result"
	"github.com/skyhive/marketdex/internal/ranking"
	cataloguc "github.com/skyhive/marketdex/internal/usecase/catalog"
	healthuc "github.com/skyhive/marketdex/internal/usecase/health"
	recommenduc "github.com/skyhive/marketdex/internal/usecase/recommend"
	searchuc "github.com/skyhive/marketdex/internal/usecase/search"
)

// --- Mocks ---

type stubIndex struct {
	resp   *index.Response
	err    error
	doc    *listing.Document
	docErr error
}

func (s *stubIndex) Search(_ context.Context, _ index.Query) (*index.Response, error) {
	return s.resp, s.err
}

func (s *stubIndex) Get(_ context.Context, _ string) (*listing.Document, error) {
	return s.doc, s.docErr
}

func (s *stubIndex) MGet(_ context.Context, ids []string) (map[string]*listing.Document, error) {
	docs := make(map[string]*listing.Document, len(ids))
	for _, id := range ids {
		docs[id] = &listing.Document{ID: id, Status: listing.StatusActive}
	}
	return docs, nil
}

type stubCache struct{}

func (stubCache) Get(_ context.Context, _, _ string, _ any) bool { return false }
func (stubCache) Put(_ context.Context, _, _ string, _ any)      {}

type stubLedger struct{}

func (stubLedger) History(_ context.Context, _ string) ([]domrec.Interaction, error) {
	return nil, nil
}
func (stubLedger) Peers(_ context.Context, _ string, _ []string, _ int) ([]string, error) {
	return nil, nil
}
func (stubLedger) PeerLiked(_ context.Context, _, _ []string, _ float64, _ int) ([]domrec.RatedListing, error) {
	return nil, nil
}
func (stubLedger) Anchor(_ context.Context, _ string) (domrec.AnchorAttrs, error) {
	return domrec.AnchorAttrs{Category: "nlp"}, nil
}
func (stubLedger) SimilarByContent(_ context.Context, _ domrec.AnchorAttrs, _ string, _ int) ([]domrec.ScoredListing, error) {
	return []domrec.ScoredListing{{ListingID: "sim-1", Score: 0.8}}, nil
}
func (stubLedger) TopRatedInCategories(_ context.Context, _ []string, _ float64, _ int) ([]domrec.RatedListing, error) {
	return nil, nil
}
func (stubLedger) Trending(_ context.Context, _ time.Duration, _, _ int) ([]domrec.TrendingListing, error) {
	return []domrec.TrendingListing{{ListingID: "hot-1", Count: 120}}, nil
}

type stubPinger struct{ err error }

func (s stubPinger) Ping(_ context.Context) error { return s.err }

func newTestRouter(t *testing.T, idx *stubIndex, recsEnabled bool, unhealthy bool) http.Handler {
	t.Helper()

	logger := zap.NewNop()
	planner := searchuc.NewPlanner(nil, false, logger)
	eng, err := ranking.NewEngine(ranking.DefaultWeights(), ranking.Norms{})
	if err != nil {
		t.Fatalf("ranking engine: %v", err)
	}

	searchSvc := searchuc.New(idx, planner, eng, stubCache{}, nil, logger, 20, 100)
	recSvc := recommenduc.New(stubLedger{}, idx, stubCache{}, recommenduc.Options{
		Enabled:             recsEnabled,
		MaxRecommendations:  10,
		ContentWeight:       0.3,
		PopularityWeight:    0.2,
		CollaborativeWeight: 0.5,
		MinCommonUsers:      3,
		MinUserHistory:      3,
		TrendingWindow:      24 * time.Hour,
	}, logger)
	catalogSvc := cataloguc.New(idx, stubCache{}, logger)

	var pingErr error
	if unhealthy {
		pingErr = errors.New("down")
	}
	healthSvc := healthuc.New(stubPinger{err: pingErr}, nil, nil, nil)

	server := NewServer(searchSvc, recSvc, catalogSvc, healthSvc, logger)
	r := gochi.NewRouter()
	server.Routes(r)
	return r
}

func healthyIndex() *stubIndex {
	return &stubIndex{
		resp: &index.Response{
			TookMS: 3,
			Total:  1,
			Hits: []index.Hit{{
				ID:    "svc-1",
				Score: 2.0,
				Listing: listing.Document{
					ID:     "svc-1",
					Name:   "OCR",
					Status: listing.StatusActive,
					Metrics: listing.Metrics{
						Rating: 4.5,
					},
				},
			}},
		},
		doc: &listing.Document{ID: "svc-1", Name: "OCR", Status: listing.StatusActive},
	}
}

// --- Tests ---

func TestPostSearch(t *testing.T) {
	router := newTestRouter(t, healthyIndex(), true, false)

	body := strings.NewReader(`{"query":"ocr"}`)
	req := httptest.NewRequest("POST", "/api/v1/search", body)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rr.Code, rr.Body.String())
	}
	var resp result.Response
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Total != 1 || len(resp.Results) != 1 {
		t.Errorf("resp = %+v", resp)
	}
}

func TestPostSearchInvalidBody(t *testing.T) {
	router := newTestRouter(t, healthyIndex(), true, false)

	req := httptest.NewRequest("POST", "/api/v1/search", strings.NewReader("{nope"))
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rr.Code)
	}
}

func TestPostSearchIndexDown(t *testing.T) {
	router := newTestRouter(t, &stubIndex{err: errors.New("cluster red")}, true, false)

	req := httptest.NewRequest("POST", "/api/v1/search", strings.NewReader(`{"query":"x"}`))
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", rr.Code)
	}
	if rr.Header().Get("Retry-After") == "" {
		t.Error("missing Retry-After header")
	}
	var errResp ErrorResponse
	if err := json.NewDecoder(rr.Body).Decode(&errResp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if errResp.Code != codeSearchUnavailable {
		t.Errorf("code = %s, want %s", errResp.Code, codeSearchUnavailable)
	}
}

func TestGetSearchQuerystring(t *testing.T) {
	router := newTestRouter(t, healthyIndex(), true, false)

	req := httptest.NewRequest("GET", "/api/v1/search?q=ocr&category=nlp&min_rating=4&page_size=5", http.NoBody)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rr.Code, rr.Body.String())
	}
}

func TestGetListing(t *testing.T) {
	router := newTestRouter(t, healthyIndex(), true, false)

	req := httptest.NewRequest("GET", "/api/v1/listings/svc-1", http.NoBody)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	var doc listing.Document
	if err := json.NewDecoder(rr.Body).Decode(&doc); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if doc.ID != "svc-1" {
		t.Errorf("id = %s", doc.ID)
	}
}

func TestGetListingNotFound(t *testing.T) {
	idx := healthyIndex()
	idx.doc = nil
	idx.docErr = domain.ErrListingNotFound
	router := newTestRouter(t, idx, true, false)

	req := httptest.NewRequest("GET", "/api/v1/listings/nope", http.NoBody)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rr.Code)
	}
	var errResp ErrorResponse
	if err := json.NewDecoder(rr.Body).Decode(&errResp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if errResp.Code != codeListingNotFound {
		t.Errorf("code = %s", errResp.Code)
	}
}

func TestGetSimilar(t *testing.T) {
	router := newTestRouter(t, healthyIndex(), true, false)

	req := httptest.NewRequest("GET", "/api/v1/listings/svc-1/similar?max_results=5", http.NoBody)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	var resp domrec.Response
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Algorithm != domrec.AlgorithmHybrid || len(resp.Recommendations) != 1 {
		t.Errorf("resp = %+v", resp)
	}
}

func TestGetRecommendationsDisabled(t *testing.T) {
	router := newTestRouter(t, healthyIndex(), false, false)

	req := httptest.NewRequest("GET", "/api/v1/recommendations?user_id=u1", http.NoBody)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	var resp domrec.Response
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Algorithm != domrec.AlgorithmDisabled {
		t.Errorf("algorithm = %s, want disabled", resp.Algorithm)
	}
}

func TestGetTrending(t *testing.T) {
	router := newTestRouter(t, healthyIndex(), true, false)

	req := httptest.NewRequest("GET", "/api/v1/recommendations/trending", http.NoBody)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	var resp domrec.Response
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Algorithm != domrec.AlgorithmTrending {
		t.Errorf("algorithm = %s, want trending", resp.Algorithm)
	}
}

func TestHealthEndpoints(t *testing.T) {
	router := newTestRouter(t, healthyIndex(), true, false)

	req := httptest.NewRequest("GET", "/healthz", http.NoBody)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Errorf("healthz status = %d", rr.Code)
	}

	req = httptest.NewRequest("GET", "/readyz", http.NoBody)
	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Errorf("readyz status = %d", rr.Code)
	}
}

func TestReadinessDegraded(t *testing.T) {
	router := newTestRouter(t, healthyIndex(), true, true)

	req := httptest.NewRequest("GET", "/readyz", http.NoBody)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusServiceUnavailable {
		t.Errorf("readyz status = %d, want 503", rr.Code)
	}
}

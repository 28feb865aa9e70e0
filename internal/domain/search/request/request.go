package request

import (
	"fmt"

	"github.com/skyhive/marketdex/internal/domain/listing"
)

// Search parameter limits.
const (
	// MaxQueryLength is the maximum allowed search query length.
	MaxQueryLength  = 1024
	DefaultPageSize = 20
	MaxPageSize     = 100
)

// Request is a marketplace search query.
type Request struct {
	Query      string     `json:"query"`
	Filters    Filters    `json:"filters"`
	Pagination Pagination `json:"pagination"`
	UserID     string     `json:"user_id,omitempty"`
}

// Filters narrows search results. Absent fields impose no constraint;
// every present field contributes one non-scoring predicate (AND semantics).
type Filters struct {
	Categories      []string       `json:"categories,omitempty"`
	Tags            []string       `json:"tags,omitempty"`
	MinRating       float64        `json:"min_rating,omitempty"`
	MaxPrice        float64        `json:"max_price,omitempty"`
	PricingModels   []string       `json:"pricing_models,omitempty"`
	ComplianceLevel string         `json:"compliance_level,omitempty"`
	Certifications  []string       `json:"certifications,omitempty"`
	DataResidency   []string       `json:"data_residency,omitempty"`
	VerifiedOnly    bool           `json:"verified_only,omitempty"`
	Status          listing.Status `json:"status,omitempty"`
	MinAvailability float64        `json:"min_availability,omitempty"`
}

// Pagination selects a result page. Page is zero-based.
type Pagination struct {
	Page     int `json:"page"`
	PageSize int `json:"page_size"`
}

// Normalize validates the request and clamps pagination.
// A zero page size gets defaultPageSize; any page size is capped at maxPageSize.
func (r *Request) Normalize(defaultPageSize, maxPageSize int) error {
	if len(r.Query) > MaxQueryLength {
		return fmt.Errorf("query too long (max %d chars)", MaxQueryLength)
	}
	if r.Filters.Status != "" && !r.Filters.Status.IsValid() {
		return fmt.Errorf("invalid status filter: %q", r.Filters.Status)
	}
	if r.Pagination.Page < 0 {
		return fmt.Errorf("page must be >= 0, got %d", r.Pagination.Page)
	}
	if defaultPageSize <= 0 {
		defaultPageSize = DefaultPageSize
	}
	if maxPageSize <= 0 {
		maxPageSize = MaxPageSize
	}
	if r.Pagination.PageSize <= 0 {
		r.Pagination.PageSize = defaultPageSize
	}
	if r.Pagination.PageSize > maxPageSize {
		r.Pagination.PageSize = maxPageSize
	}
	return nil
}

// From returns the index offset of the first hit on the requested page.
func (r *Request) From() int { return r.Pagination.Page * r.Pagination.PageSize }

package listing

import "time"

// Status is the lifecycle state of a marketplace listing.
type Status string

// Listing lifecycle states. Only Active listings are searchable by default.
const (
	StatusPendingApproval Status = "pending_approval"
	StatusActive          Status = "active"
	StatusDeprecated      Status = "deprecated"
	StatusSuspended       Status = "suspended"
	StatusRetired         Status = "retired"
)

// IsValid reports whether s is a known listing status.
func (s Status) IsValid() bool {
	switch s {
	case StatusPendingApproval, StatusActive, StatusDeprecated, StatusSuspended, StatusRetired:
		return true
	}
	return false
}

// Searchable reports whether listings in this state match searches by default.
func (s Status) Searchable() bool { return s == StatusActive }

// Document is the indexed unit of the marketplace catalog.
// It is produced by the publishing service and mirrored into the index;
// the discovery engine reads it and never mutates it.
type Document struct {
	ID           string         `json:"id"`
	Name         string         `json:"name"`
	Description  string         `json:"description"`
	Category     string         `json:"category"`
	Tags         []string       `json:"tags"`
	Provider     Provider       `json:"provider"`
	Capabilities []string       `json:"capabilities"`
	Pricing      Pricing        `json:"pricing"`
	SLA          SLA            `json:"sla"`
	Compliance   Compliance     `json:"compliance"`
	Status       Status         `json:"status"`
	Metrics      Metrics        `json:"metrics"`
	Embedding    []float32      `json:"embedding,omitempty"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
	Metadata     map[string]any `json:"metadata,omitempty"`
}

// Provider identifies the organization publishing a listing.
type Provider struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Verified bool   `json:"verified"`
}

// Pricing describes how a listing is billed.
type Pricing struct {
	Model string  `json:"model"` // per_request, subscription, free, ...
	Rate  float64 `json:"rate"`
	Unit  string  `json:"unit"`
}

// SLA holds the service-level commitments of a listing.
type SLA struct {
	Availability float64 `json:"availability"` // percent, 0-100
	MaxLatencyMS int     `json:"max_latency_ms"`
	Support      string  `json:"support"`
}

// Compliance holds data-handling attributes of a listing.
type Compliance struct {
	Level          string   `json:"level"` // public, internal, confidential
	Certifications []string `json:"certifications"`
	DataResidency  []string `json:"data_residency"`
}

// Metrics holds observed usage and quality numbers for a listing.
type Metrics struct {
	TotalRequests   int64   `json:"total_requests"`
	AvgLatencyMS    float64 `json:"avg_latency_ms"`
	ErrorRate       float64 `json:"error_rate"`
	Rating          float64 `json:"rating"` // 0-5
	ReviewCount     int     `json:"review_count"`
	PopularityScore float64 `json:"popularity_score"`
}

// EmbeddingText returns the text fed to the embedding gateway when
// the listing is indexed. Name leads so it dominates the vector.
func (d *Document) EmbeddingText() string {
	text := d.Name + ". " + d.Description
	for _, c := range d.Capabilities {
		text += " " + c
	}
	return text
}

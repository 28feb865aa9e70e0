package analytics

import "time"

// SearchEvent is emitted once per completed search.
// Delivery is fire-and-forget: losing an event never affects the response.
type SearchEvent struct {
	EventID     string    `json:"event_id"`
	Query       string    `json:"query"`
	ResultCount int       `json:"result_count"`
	Total       int       `json:"total"`
	UserID      string    `json:"user_id,omitempty"`
	TookMS      int       `json:"took_ms"`
	Timestamp   time.Time `json:"timestamp"`
}

package health

import "context"

// Pinger checks one dependency's availability.
type Pinger interface {
	Ping(ctx context.Context) error
}

// EmbeddingChecker checks embedding gateway availability.
type EmbeddingChecker interface {
	HealthCheck(ctx context.Context) error
}

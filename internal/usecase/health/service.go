package health

import "context"

// Status represents the aggregated health status.
type Status string

const (
	// Healthy indicates all components are operational.
	Healthy Status = "ok"
	// Degraded indicates partial failure.
	Degraded Status = "degraded"
)

// CheckResult represents an individual component health check outcome.
type CheckResult string

const (
	// CheckOK indicates a passing health check.
	CheckOK CheckResult = "ok"
	// CheckError indicates a failing health check.
	CheckError CheckResult = "error"
)

// Report aggregates health check results.
type Report struct {
	Status Status
	Checks map[string]CheckResult
}

// Service coordinates dependency health checks.
type Service struct {
	cache     Pinger
	index     Pinger
	ledger    Pinger
	embedding EmbeddingChecker
}

// New creates a Service. Any dependency can be nil; nil dependencies
// are skipped rather than reported.
func New(cache, index, ledger Pinger, embedding EmbeddingChecker) *Service {
	return &Service{cache: cache, index: index, ledger: ledger, embedding: embedding}
}

// Check runs health checks against all wired dependencies.
func (s *Service) Check(ctx context.Context) Report {
	checks := make(map[string]CheckResult)

	ping := func(name string, p Pinger) {
		if p == nil {
			return
		}
		if err := p.Ping(ctx); err != nil {
			checks[name] = CheckError
		} else {
			checks[name] = CheckOK
		}
	}
	ping("cache", s.cache)
	ping("index", s.index)
	ping("interactions", s.ledger)

	if s.embedding != nil {
		if err := s.embedding.HealthCheck(ctx); err != nil {
			checks["embedding"] = CheckError
		} else {
			checks["embedding"] = CheckOK
		}
	}

	status := Healthy
	for _, v := range checks {
		if v == CheckError {
			status = Degraded
			break
		}
	}

	return Report{Status: status, Checks: checks}
}

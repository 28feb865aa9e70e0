// Package natspub emits analytics events over NATS. Delivery is
// fire-and-forget: publish failures are counted and logged, never
// surfaced to the request that produced the event.
package natspub

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"github.com/skyhive/marketdex/internal/domain/analytics"
	"github.com/skyhive/marketdex/internal/metrics"
)

// Publisher sends search events to a NATS subject.
type Publisher struct {
	conn    *nats.Conn
	subject string
	logger  *zap.Logger
}

// Connect dials the NATS server and returns a publisher.
func Connect(url, subject string, logger *zap.Logger) (*Publisher, error) {
	conn, err := nats.Connect(url,
		nats.Name("marketdex-analytics"),
		nats.RetryOnFailedConnect(true),
	)
	if err != nil {
		return nil, fmt.Errorf("connect to nats: %w", err)
	}
	return &Publisher{conn: conn, subject: subject, logger: logger}, nil
}

// EmitSearch publishes one search event. Publish errors are counted
// and logged, never returned.
func (p *Publisher) EmitSearch(ctx context.Context, event analytics.SearchEvent) {
	data, err := json.Marshal(event)
	if err != nil {
		metrics.AnalyticsEventsTotal.WithLabelValues("dropped").Inc()
		p.logger.Warn("failed to encode analytics event", zap.Error(err))
		return
	}

	if err := p.conn.Publish(p.subject, data); err != nil {
		metrics.AnalyticsEventsTotal.WithLabelValues("dropped").Inc()
		p.logger.Warn("failed to publish analytics event",
			zap.String("subject", p.subject), zap.Error(err))
		return
	}
	metrics.AnalyticsEventsTotal.WithLabelValues("ok").Inc()
}

// Close drains and closes the connection.
func (p *Publisher) Close() {
	if err := p.conn.Drain(); err != nil {
		p.logger.Warn("failed to drain nats connection", zap.Error(err))
	}
}

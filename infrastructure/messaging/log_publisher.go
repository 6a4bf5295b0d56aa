// Package messaging holds event publishers that need no external bus.
package messaging

import (
	"context"

	"github.com/narulaskaran/social-graph/application/ports"
	"github.com/narulaskaran/social-graph/domain/events"
	"go.uber.org/zap"
)

// LogPublisher writes each event to the log. It is the publisher used when no
// event bus is configured.
type LogPublisher struct {
	logger *zap.Logger
}

// NewLogPublisher creates a publisher that logs at info level
func NewLogPublisher(logger *zap.Logger) *LogPublisher {
	return &LogPublisher{logger: logger.Named("events")}
}

func (p *LogPublisher) Publish(ctx context.Context, event events.DomainEvent) error {
	p.logger.Info("Domain event",
		zap.String("event_type", event.GetEventType()),
		zap.String("graph_id", event.GetAggregateID()),
		zap.Time("timestamp", event.GetTimestamp()),
		zap.Any("event", event),
	)
	return nil
}

func (p *LogPublisher) PublishBatch(ctx context.Context, evts []events.DomainEvent) error {
	for _, e := range evts {
		if err := p.Publish(ctx, e); err != nil {
			return err
		}
	}
	return nil
}

var _ ports.EventPublisher = (*LogPublisher)(nil)

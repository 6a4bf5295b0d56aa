package services

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/narulaskaran/social-graph/application/ports"
	"github.com/narulaskaran/social-graph/domain/events"
	"go.uber.org/zap"
)

// generationTTL must exceed the bundle TTL so a fill that started before an
// invalidation still sees the token change.
const generationTTL = 24 * time.Hour

// BundleCacheKey is the cache key of a graph's bundle
func BundleCacheKey(graphID string) string {
	return "graph:bundle:" + graphID
}

// BundleGenerationKey holds a token that is replaced every time the graph's
// bundle is invalidated
func BundleGenerationKey(graphID string) string {
	return "graph:bundle-gen:" + graphID
}

// effects performs the best-effort work that follows a committed write:
// cache invalidation, event publication and metrics. None of it can fail the
// request.
type effects struct {
	publisher ports.EventPublisher
	cache     ports.Cache
	metrics   ports.Metrics
	logger    *zap.Logger
	now       func() time.Time
}

func newEffects(publisher ports.EventPublisher, cache ports.Cache, metrics ports.Metrics, logger *zap.Logger) effects {
	if metrics == nil {
		metrics = ports.NopMetrics{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return effects{publisher: publisher, cache: cache, metrics: metrics, logger: logger, now: time.Now}
}

func (e effects) publish(ctx context.Context, event events.DomainEvent) {
	if e.publisher == nil {
		return
	}
	if err := e.publisher.Publish(ctx, event); err != nil {
		e.logger.Warn("Failed to publish event",
			zap.String("event_type", event.GetEventType()),
			zap.String("graph_id", event.GetAggregateID()),
			zap.Error(err),
		)
	}
}

// generation returns the graph's current bundle generation, "" when unset
func (e effects) generation(ctx context.Context, graphID string) string {
	if e.cache == nil {
		return ""
	}
	data, ok := e.cache.Get(ctx, BundleGenerationKey(graphID))
	if !ok {
		return ""
	}
	return string(data)
}

// invalidate bumps the generation before dropping the bundle. A reader that
// filled the cache from an older snapshot either sees the new token and backs
// out, or has its entry removed by the delete that follows.
func (e effects) invalidate(ctx context.Context, graphID string) {
	if e.cache == nil {
		return
	}
	if err := e.cache.Set(ctx, BundleGenerationKey(graphID), []byte(uuid.NewString()), generationTTL); err != nil {
		e.logger.Warn("Failed to bump graph cache generation",
			zap.String("graph_id", graphID),
			zap.Error(err),
		)
	}
	if err := e.cache.Delete(ctx, BundleCacheKey(graphID)); err != nil {
		e.logger.Warn("Failed to invalidate cached graph",
			zap.String("graph_id", graphID),
			zap.Error(err),
		)
	}
}

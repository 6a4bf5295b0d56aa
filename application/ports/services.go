package ports

import (
	"context"
	"time"

	"github.com/narulaskaran/social-graph/domain/events"
)

// EventPublisher defines the interface for publishing domain events
type EventPublisher interface {
	Publish(ctx context.Context, event events.DomainEvent) error
	PublishBatch(ctx context.Context, events []events.DomainEvent) error
}

// Cache stores serialized values by key
type Cache interface {
	// Get returns the value and true on a hit
	Get(ctx context.Context, key string) ([]byte, bool)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	Clear(ctx context.Context) error
}

// Metrics records business activity
type Metrics interface {
	GraphCreated(ctx context.Context)
	GraphDeleted(ctx context.Context)
	PeopleAdded(ctx context.Context, profilesCreated, connectionsCreated int)
	ConnectionCreated(ctx context.Context)
	ConnectionDeleted(ctx context.Context)
	CacheLookup(ctx context.Context, hit bool)
}

// NopMetrics discards everything
type NopMetrics struct{}

func (NopMetrics) GraphCreated(context.Context)          {}
func (NopMetrics) GraphDeleted(context.Context)          {}
func (NopMetrics) PeopleAdded(context.Context, int, int) {}
func (NopMetrics) ConnectionCreated(context.Context)     {}
func (NopMetrics) ConnectionDeleted(context.Context)     {}
func (NopMetrics) CacheLookup(context.Context, bool)     {}

// MultiMetrics forwards every call to each of its members
type MultiMetrics []Metrics

func (m MultiMetrics) GraphCreated(ctx context.Context) {
	for _, x := range m {
		x.GraphCreated(ctx)
	}
}

func (m MultiMetrics) GraphDeleted(ctx context.Context) {
	for _, x := range m {
		x.GraphDeleted(ctx)
	}
}

func (m MultiMetrics) PeopleAdded(ctx context.Context, profilesCreated, connectionsCreated int) {
	for _, x := range m {
		x.PeopleAdded(ctx, profilesCreated, connectionsCreated)
	}
}

func (m MultiMetrics) ConnectionCreated(ctx context.Context) {
	for _, x := range m {
		x.ConnectionCreated(ctx)
	}
}

func (m MultiMetrics) ConnectionDeleted(ctx context.Context) {
	for _, x := range m {
		x.ConnectionDeleted(ctx)
	}
}

func (m MultiMetrics) CacheLookup(ctx context.Context, hit bool) {
	for _, x := range m {
		x.CacheLookup(ctx, hit)
	}
}

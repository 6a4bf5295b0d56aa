package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/narulaskaran/social-graph/application/ports"
	"github.com/narulaskaran/social-graph/domain/core/entities"
	"github.com/narulaskaran/social-graph/domain/events"
	"github.com/narulaskaran/social-graph/infrastructure/cache"
	"github.com/narulaskaran/social-graph/infrastructure/persistence/memory"
	pkgerrors "github.com/narulaskaran/social-graph/pkg/errors"
	"go.uber.org/zap"
)

type recordingPublisher struct {
	mu     sync.Mutex
	events []events.DomainEvent
}

func (p *recordingPublisher) Publish(ctx context.Context, event events.DomainEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return nil
}

func (p *recordingPublisher) PublishBatch(ctx context.Context, evts []events.DomainEvent) error {
	for _, e := range evts {
		_ = p.Publish(ctx, e)
	}
	return nil
}

func (p *recordingPublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, len(p.events))
	for i, e := range p.events {
		out[i] = e.GetEventType()
	}
	return out
}

type countingMetrics struct {
	ports.NopMetrics
	mu          sync.Mutex
	cacheHits   int
	cacheMisses int
}

func (m *countingMetrics) CacheLookup(ctx context.Context, hit bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if hit {
		m.cacheHits++
	} else {
		m.cacheMisses++
	}
}

// conflictingStore fails the first n batches with a conflict
type conflictingStore struct {
	*memory.Store
	mu        sync.Mutex
	remaining int
	calls     int
}

func (s *conflictingStore) ApplyBatch(ctx context.Context, batch ports.Batch) (*ports.BatchResult, error) {
	s.mu.Lock()
	s.calls++
	fail := s.remaining > 0
	if fail {
		s.remaining--
	}
	s.mu.Unlock()

	if fail {
		return nil, pkgerrors.NewConflictError("simulated race")
	}
	return s.Store.ApplyBatch(ctx, batch)
}

// pausingStore holds its first GetConnections call after the read until
// release is closed
type pausingStore struct {
	*memory.Store
	once    sync.Once
	read    chan struct{}
	release chan struct{}
}

func newPausingStore(s *memory.Store) *pausingStore {
	return &pausingStore{Store: s, read: make(chan struct{}), release: make(chan struct{})}
}

func (s *pausingStore) GetConnections(ctx context.Context, graphID string) ([]entities.Connection, error) {
	conns, err := s.Store.GetConnections(ctx, graphID)
	s.once.Do(func() {
		close(s.read)
		<-s.release
	})
	return conns, err
}

type fixture struct {
	store     *memory.Store
	cache     *cache.InMemoryCache
	publisher *recordingPublisher
	metrics   *countingMetrics
	graphs    *GraphService
	ingestion *IngestionService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		store:     memory.NewStore(zap.NewNop()),
		cache:     cache.NewInMemoryCache(0),
		publisher: &recordingPublisher{},
		metrics:   &countingMetrics{},
	}
	t.Cleanup(func() { _ = f.cache.Close() })

	f.graphs = NewGraphService(f.store, f.publisher, f.cache, f.metrics, time.Minute, zap.NewNop())
	f.ingestion = NewIngestionService(f.store, f.publisher, f.cache, f.metrics, nil, nil, zap.NewNop())
	return f
}

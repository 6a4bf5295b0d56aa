package services

import (
	"context"
	"encoding/json"
	"time"

	"github.com/narulaskaran/social-graph/application/ports"
	"github.com/narulaskaran/social-graph/domain/core/entities"
	"github.com/narulaskaran/social-graph/domain/core/valueobjects"
	"github.com/narulaskaran/social-graph/domain/events"
	pkgerrors "github.com/narulaskaran/social-graph/pkg/errors"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Bundle is everything the front end needs to render one graph
type Bundle struct {
	Graph       *entities.Graph       `json:"graph"`
	Profiles    []entities.Profile    `json:"profiles"`
	Connections []entities.Connection `json:"connections"`
}

// GraphService covers the graph lifecycle and direct edge edits
type GraphService struct {
	store    ports.GraphStore
	fx       effects
	cacheTTL time.Duration
	logger   *zap.Logger
}

// NewGraphService creates a new graph service. A nil cache disables bundle caching.
func NewGraphService(
	store ports.GraphStore,
	publisher ports.EventPublisher,
	cache ports.Cache,
	metrics ports.Metrics,
	cacheTTL time.Duration,
	logger *zap.Logger,
) *GraphService {
	fx := newEffects(publisher, cache, metrics, logger)
	return &GraphService{
		store:    store,
		fx:       fx,
		cacheTTL: cacheTTL,
		logger:   fx.logger.Named("graphs"),
	}
}

// CreateGraph allocates a new, empty graph and returns it with its share path
func (s *GraphService) CreateGraph(ctx context.Context) (*entities.Graph, string, error) {
	graph, err := s.store.CreateGraph(ctx)
	if err != nil {
		return nil, "", err
	}

	s.logger.Info("Graph created", zap.String("graph_id", graph.ID))
	s.fx.metrics.GraphCreated(ctx)
	s.fx.publish(ctx, events.NewGraphCreated(graph.ID, graph.CreatedAt))
	return graph, graph.SharePath(), nil
}

// GetBundle returns the graph with its profiles and connections
func (s *GraphService) GetBundle(ctx context.Context, graphID string) (*Bundle, error) {
	if err := checkGraphID(graphID); err != nil {
		return nil, err
	}

	if bundle, ok := s.cachedBundle(ctx, graphID); ok {
		return bundle, nil
	}

	gen := s.fx.generation(ctx, graphID)
	graph, err := s.requireGraph(ctx, graphID)
	if err != nil {
		return nil, err
	}

	bundle := &Bundle{Graph: graph}
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		profiles, err := s.store.GetProfiles(gctx, graphID)
		bundle.Profiles = profiles
		return err
	})
	g.Go(func() error {
		conns, err := s.store.GetConnections(gctx, graphID)
		bundle.Connections = conns
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	s.storeBundle(ctx, bundle, gen)
	return bundle, nil
}

// DeleteGraph removes a graph and everything it owns
func (s *GraphService) DeleteGraph(ctx context.Context, graphID string) error {
	if err := checkGraphID(graphID); err != nil {
		return err
	}
	if _, err := s.requireGraph(ctx, graphID); err != nil {
		return err
	}
	if err := s.store.DeleteGraph(ctx, graphID); err != nil {
		return err
	}

	s.logger.Info("Graph deleted", zap.String("graph_id", graphID))
	s.fx.invalidate(ctx, graphID)
	s.fx.metrics.GraphDeleted(ctx)
	s.fx.publish(ctx, events.NewGraphDeleted(graphID, s.fx.now()))
	return nil
}

// CreateConnection connects two existing profiles of a graph
func (s *GraphService) CreateConnection(ctx context.Context, graphID, source, target string) error {
	if err := checkEndpoints(graphID, source, target); err != nil {
		return err
	}
	if source == target {
		return pkgerrors.NewValidationError("source and target must be different profiles")
	}
	if _, err := s.requireGraph(ctx, graphID); err != nil {
		return err
	}

	conn, _ := entities.NewConnection(source, target, graphID)
	if err := s.store.UpsertConnection(ctx, conn); err != nil {
		return err
	}

	s.fx.invalidate(ctx, graphID)
	s.fx.metrics.ConnectionCreated(ctx)
	s.fx.publish(ctx, events.NewConnectionCreated(graphID, conn.ProfileAID, conn.ProfileBID, s.fx.now()))
	return nil
}

// DeleteConnection removes the edge between source and target in either orientation
func (s *GraphService) DeleteConnection(ctx context.Context, graphID, source, target string) error {
	if err := checkEndpoints(graphID, source, target); err != nil {
		return err
	}
	if _, err := s.requireGraph(ctx, graphID); err != nil {
		return err
	}
	if err := s.store.DeleteConnection(ctx, source, target, graphID); err != nil {
		return err
	}

	conn, ok := entities.NewConnection(source, target, graphID)
	if !ok {
		return nil
	}
	s.fx.invalidate(ctx, graphID)
	s.fx.metrics.ConnectionDeleted(ctx)
	s.fx.publish(ctx, events.NewConnectionDeleted(graphID, conn.ProfileAID, conn.ProfileBID, s.fx.now()))
	return nil
}

// ListProfiles lists the profiles of one graph, or of all graphs when graphID is empty
func (s *GraphService) ListProfiles(ctx context.Context, graphID string) ([]entities.Profile, error) {
	if graphID != "" {
		if err := checkGraphID(graphID); err != nil {
			return nil, err
		}
		if _, err := s.requireGraph(ctx, graphID); err != nil {
			return nil, err
		}
	}
	return s.store.GetProfiles(ctx, graphID)
}

// ListConnections lists the connections of one graph, or of all graphs when graphID is empty
func (s *GraphService) ListConnections(ctx context.Context, graphID string) ([]entities.Connection, error) {
	if graphID != "" {
		if err := checkGraphID(graphID); err != nil {
			return nil, err
		}
		if _, err := s.requireGraph(ctx, graphID); err != nil {
			return nil, err
		}
	}
	return s.store.GetConnections(ctx, graphID)
}

func (s *GraphService) requireGraph(ctx context.Context, graphID string) (*entities.Graph, error) {
	graph, err := s.store.GetGraph(ctx, graphID)
	if err != nil {
		return nil, err
	}
	if graph == nil {
		return nil, pkgerrors.NewNotFoundError("graph").WithDetail("graph_id", graphID)
	}
	return graph, nil
}

func (s *GraphService) cachedBundle(ctx context.Context, graphID string) (*Bundle, bool) {
	if s.fx.cache == nil {
		return nil, false
	}
	data, ok := s.fx.cache.Get(ctx, BundleCacheKey(graphID))
	s.fx.metrics.CacheLookup(ctx, ok)
	if !ok {
		return nil, false
	}

	var bundle Bundle
	if err := json.Unmarshal(data, &bundle); err != nil {
		s.logger.Warn("Discarding unreadable cached graph", zap.String("graph_id", graphID), zap.Error(err))
		return nil, false
	}
	return &bundle, true
}

// storeBundle caches a bundle read under generation gen. The fill is skipped,
// or undone, when a write invalidated the graph while it was being read.
func (s *GraphService) storeBundle(ctx context.Context, bundle *Bundle, gen string) {
	if s.fx.cache == nil {
		return
	}
	graphID := bundle.Graph.ID
	if s.fx.generation(ctx, graphID) != gen {
		return
	}
	data, err := json.Marshal(bundle)
	if err != nil {
		return
	}
	key := BundleCacheKey(graphID)
	if err := s.fx.cache.Set(ctx, key, data, s.cacheTTL); err != nil {
		s.logger.Warn("Failed to cache graph", zap.String("graph_id", graphID), zap.Error(err))
		return
	}
	if s.fx.generation(ctx, graphID) != gen {
		_ = s.fx.cache.Delete(ctx, key)
	}
}

func checkGraphID(graphID string) error {
	if !valueobjects.IsValidGraphID(graphID) {
		return pkgerrors.NewValidationError("invalid graph id").WithDetail("graph_id", graphID)
	}
	return nil
}

func checkEndpoints(graphID, source, target string) error {
	if err := checkGraphID(graphID); err != nil {
		return err
	}
	if source == "" || target == "" {
		return pkgerrors.NewValidationError("source and target are required")
	}
	return nil
}

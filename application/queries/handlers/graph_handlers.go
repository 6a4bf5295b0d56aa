package handlers

import (
	"context"
	"fmt"

	"github.com/narulaskaran/social-graph/application/queries"
	"github.com/narulaskaran/social-graph/application/queries/bus"
	"github.com/narulaskaran/social-graph/application/services"
	"github.com/narulaskaran/social-graph/domain/core/entities"
)

// GraphQueryHandlers answers read queries from the graph service
type GraphQueryHandlers struct {
	graphs *services.GraphService
}

// NewGraphQueryHandlers creates the handler set
func NewGraphQueryHandlers(graphs *services.GraphService) *GraphQueryHandlers {
	return &GraphQueryHandlers{graphs: graphs}
}

// Register installs every graph query handler on the bus
func (h *GraphQueryHandlers) Register(b *bus.QueryBus) error {
	if err := b.Register(queries.GetGraphBundleQuery{}, bus.QueryHandlerFunc(h.getBundle)); err != nil {
		return err
	}
	if err := b.Register(queries.ListProfilesQuery{}, bus.QueryHandlerFunc(h.listProfiles)); err != nil {
		return err
	}
	return b.Register(queries.ListConnectionsQuery{}, bus.QueryHandlerFunc(h.listConnections))
}

func (h *GraphQueryHandlers) getBundle(ctx context.Context, q bus.Query) (interface{}, error) {
	query, ok := q.(queries.GetGraphBundleQuery)
	if !ok {
		return nil, fmt.Errorf("unexpected query type %T", q)
	}
	return h.graphs.GetBundle(ctx, query.GraphID)
}

func (h *GraphQueryHandlers) listProfiles(ctx context.Context, q bus.Query) (interface{}, error) {
	query, ok := q.(queries.ListProfilesQuery)
	if !ok {
		return nil, fmt.Errorf("unexpected query type %T", q)
	}
	profiles, err := h.graphs.ListProfiles(ctx, query.GraphID)
	if err != nil {
		return nil, err
	}
	if profiles == nil {
		profiles = []entities.Profile{}
	}
	return profiles, nil
}

func (h *GraphQueryHandlers) listConnections(ctx context.Context, q bus.Query) (interface{}, error) {
	query, ok := q.(queries.ListConnectionsQuery)
	if !ok {
		return nil, fmt.Errorf("unexpected query type %T", q)
	}
	conns, err := h.graphs.ListConnections(ctx, query.GraphID)
	if err != nil {
		return nil, err
	}
	if conns == nil {
		conns = []entities.Connection{}
	}
	return conns, nil
}

package handlers

import (
	"context"
	"fmt"

	"github.com/narulaskaran/social-graph/application/commands"
	"github.com/narulaskaran/social-graph/application/commands/bus"
	"github.com/narulaskaran/social-graph/application/services"
)

// GraphCommandHandlers routes graph commands to the services that own them
type GraphCommandHandlers struct {
	graphs    *services.GraphService
	ingestion *services.IngestionService
}

// NewGraphCommandHandlers creates the handler set
func NewGraphCommandHandlers(graphs *services.GraphService, ingestion *services.IngestionService) *GraphCommandHandlers {
	return &GraphCommandHandlers{graphs: graphs, ingestion: ingestion}
}

// Register installs every graph command handler on the bus
func (h *GraphCommandHandlers) Register(b *bus.CommandBus) error {
	registrations := []struct {
		cmd     bus.Command
		handler bus.CommandHandlerFunc
	}{
		{commands.CreateGraphCommand{}, h.createGraph},
		{commands.DeleteGraphCommand{}, h.deleteGraph},
		{commands.AddToGraphCommand{}, h.addToGraph},
		{commands.CreateConnectionCommand{}, h.createConnection},
		{commands.DeleteConnectionCommand{}, h.deleteConnection},
	}
	for _, r := range registrations {
		if err := b.Register(r.cmd, r.handler); err != nil {
			return err
		}
	}
	return nil
}

func (h *GraphCommandHandlers) createGraph(ctx context.Context, cmd bus.Command) (interface{}, error) {
	if _, ok := cmd.(commands.CreateGraphCommand); !ok {
		return nil, unexpected(cmd)
	}
	graph, sharePath, err := h.graphs.CreateGraph(ctx)
	if err != nil {
		return nil, err
	}
	return &commands.CreateGraphResult{Graph: graph, SharePath: sharePath}, nil
}

func (h *GraphCommandHandlers) deleteGraph(ctx context.Context, cmd bus.Command) (interface{}, error) {
	c, ok := cmd.(commands.DeleteGraphCommand)
	if !ok {
		return nil, unexpected(cmd)
	}
	return nil, h.graphs.DeleteGraph(ctx, c.GraphID)
}

func (h *GraphCommandHandlers) addToGraph(ctx context.Context, cmd bus.Command) (interface{}, error) {
	c, ok := cmd.(commands.AddToGraphCommand)
	if !ok {
		return nil, unexpected(cmd)
	}
	return h.ingestion.AddToGraph(ctx, services.AddToGraphInput{
		GraphID:         c.GraphID,
		Self:            c.Self,
		Connections:     c.Connections,
		ConnectEveryone: c.ConnectEveryone,
	})
}

func (h *GraphCommandHandlers) createConnection(ctx context.Context, cmd bus.Command) (interface{}, error) {
	c, ok := cmd.(commands.CreateConnectionCommand)
	if !ok {
		return nil, unexpected(cmd)
	}
	return nil, h.graphs.CreateConnection(ctx, c.GraphID, c.Source, c.Target)
}

func (h *GraphCommandHandlers) deleteConnection(ctx context.Context, cmd bus.Command) (interface{}, error) {
	c, ok := cmd.(commands.DeleteConnectionCommand)
	if !ok {
		return nil, unexpected(cmd)
	}
	return nil, h.graphs.DeleteConnection(ctx, c.GraphID, c.Source, c.Target)
}

func unexpected(cmd bus.Command) error {
	return fmt.Errorf("unexpected command type %T", cmd)
}

package handlers

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/narulaskaran/social-graph/application/commands"
	"github.com/narulaskaran/social-graph/application/commands/bus"
	"github.com/narulaskaran/social-graph/application/services"
	"github.com/narulaskaran/social-graph/infrastructure/persistence/memory"
	pkgerrors "github.com/narulaskaran/social-graph/pkg/errors"
)

func newBus(t *testing.T) (*bus.CommandBus, *memory.Store) {
	t.Helper()
	logger := zap.NewNop()
	store := memory.NewStore(logger)
	graphs := services.NewGraphService(store, nil, nil, nil, 0, logger)
	ingestion := services.NewIngestionService(store, nil, nil, nil, nil, nil, logger)

	b := bus.NewCommandBus(bus.LoggingMiddleware(bus.NewZapLogger(logger)))
	require.NoError(t, NewGraphCommandHandlers(graphs, ingestion).Register(b))
	return b, store
}

func createGraph(t *testing.T, b *bus.CommandBus) string {
	t.Helper()
	out, err := b.Send(context.Background(), commands.CreateGraphCommand{})
	require.NoError(t, err)
	res := out.(*commands.CreateGraphResult)
	assert.Equal(t, "/graph/"+res.Graph.ID, res.SharePath)
	return res.Graph.ID
}

func TestGraphCommands_Lifecycle(t *testing.T) {
	b, store := newBus(t)
	ctx := context.Background()
	graphID := createGraph(t, b)

	out, err := b.Send(ctx, commands.AddToGraphCommand{
		GraphID:     graphID,
		Self:        services.Person{FirstName: "Alice", LastName: "Smith"},
		Connections: []services.Person{{FirstName: "Bob", LastName: "Jones"}},
	})
	require.NoError(t, err)
	added := out.(*services.AddToGraphResult)
	assert.Equal(t, 2, added.ProfilesCreated)
	assert.Equal(t, 1, added.ConnectionsCreated)

	bobID := added.ProfileIDs["Bob|||Jones"]
	_, err = b.Send(ctx, commands.DeleteConnectionCommand{GraphID: graphID, Source: bobID, Target: added.SelfID})
	require.NoError(t, err)
	conns, err := store.GetConnections(ctx, graphID)
	require.NoError(t, err)
	assert.Empty(t, conns)

	_, err = b.Send(ctx, commands.CreateConnectionCommand{GraphID: graphID, Source: added.SelfID, Target: bobID})
	require.NoError(t, err)
	conns, err = store.GetConnections(ctx, graphID)
	require.NoError(t, err)
	assert.Len(t, conns, 1)

	_, err = b.Send(ctx, commands.DeleteGraphCommand{GraphID: graphID})
	require.NoError(t, err)
	g, err := store.GetGraph(ctx, graphID)
	require.NoError(t, err)
	assert.Nil(t, g)
}

func TestGraphCommands_Validation(t *testing.T) {
	b, _ := newBus(t)
	graphID := createGraph(t, b)

	tests := []struct {
		name string
		cmd  bus.Command
	}{
		{"delete with malformed id", commands.DeleteGraphCommand{GraphID: "not-a-graph"}},
		{"add without connections", commands.AddToGraphCommand{
			GraphID: graphID,
			Self:    services.Person{FirstName: "Alice", LastName: "Smith"},
		}},
		{"add with blank self", commands.AddToGraphCommand{
			GraphID:     graphID,
			Connections: []services.Person{},
		}},
		{"connect without target", commands.CreateConnectionCommand{GraphID: graphID, Source: "x"}},
		{"disconnect without source", commands.DeleteConnectionCommand{GraphID: graphID, Target: "x"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := b.Send(context.Background(), tt.cmd)
			require.Error(t, err)
			assert.True(t, pkgerrors.IsValidation(err), "got %v", err)
		})
	}
}

func TestGraphCommands_UnknownGraph(t *testing.T) {
	b, _ := newBus(t)

	_, err := b.Send(context.Background(), commands.DeleteGraphCommand{GraphID: "Zz9zZz9zZz9z"})
	assert.True(t, pkgerrors.IsNotFound(err))
}

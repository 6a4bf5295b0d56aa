package services

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"

	domainconfig "github.com/narulaskaran/social-graph/domain/config"
	"github.com/narulaskaran/social-graph/domain/core/entities"
	"github.com/narulaskaran/social-graph/domain/events"
	"github.com/narulaskaran/social-graph/infrastructure/persistence/memory"
	pkgerrors "github.com/narulaskaran/social-graph/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func people(names ...string) []Person {
	out := make([]Person, 0, len(names))
	for _, n := range names {
		parts := strings.SplitN(n, " ", 2)
		p := Person{FirstName: parts[0]}
		if len(parts) == 2 {
			p.LastName = parts[1]
		}
		out = append(out, p)
	}
	return out
}

func TestAddToGraph_Star(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	graph, _, err := f.graphs.CreateGraph(ctx)
	require.NoError(t, err)

	result, err := f.ingestion.AddToGraph(ctx, AddToGraphInput{
		GraphID:     graph.ID,
		Self:        Person{FirstName: "Alice", LastName: "Smith"},
		Connections: people("Bob Jones", "Carol Lee"),
	})
	require.NoError(t, err)

	assert.Equal(t, 3, result.ProfilesCreated)
	assert.Equal(t, 2, result.ConnectionsCreated)
	assert.Equal(t, 0, result.SkippedConnections)
	assert.Equal(t, result.ProfileIDs["Alice|||Smith"], result.SelfID)
	assert.Len(t, result.ProfileIDs, 3)

	conns, err := f.store.GetConnections(ctx, graph.ID)
	require.NoError(t, err)
	require.Len(t, conns, 2)
	for _, c := range conns {
		assert.True(t, c.Involves(result.SelfID))
		assert.True(t, c.IsCanonical())
	}

	assert.Contains(t, f.publisher.types(), events.TypePeopleAdded)
}

func TestAddToGraph_ConnectEveryone(t *testing.T) {
	tests := []struct {
		name        string
		connections []Person
		wantEdges   int
	}{
		{"self only", nil, 0},
		{"one other", people("Bob Jones"), 1},
		{"three others", people("Bob Jones", "Carol Lee", "Dan Wu"), 6},
		{"duplicates collapse", people("Bob Jones", "Bob Jones", "Carol Lee"), 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			ctx := context.Background()
			graph, _, err := f.graphs.CreateGraph(ctx)
			require.NoError(t, err)

			result, err := f.ingestion.AddToGraph(ctx, AddToGraphInput{
				GraphID:         graph.ID,
				Self:            Person{FirstName: "Alice", LastName: "Smith"},
				Connections:     tt.connections,
				ConnectEveryone: true,
			})
			require.NoError(t, err)
			assert.Equal(t, tt.wantEdges, result.ConnectionsCreated)

			conns, err := f.store.GetConnections(ctx, graph.ID)
			require.NoError(t, err)
			assert.Len(t, conns, tt.wantEdges)
		})
	}
}

func TestAddToGraph_ResubmissionIsIdempotent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	graph, _, err := f.graphs.CreateGraph(ctx)
	require.NoError(t, err)

	in := AddToGraphInput{
		GraphID:     graph.ID,
		Self:        Person{FirstName: "Alice", LastName: "Smith"},
		Connections: people("Bob Jones", "Carol Lee"),
	}
	first, err := f.ingestion.AddToGraph(ctx, in)
	require.NoError(t, err)

	second, err := f.ingestion.AddToGraph(ctx, in)
	require.NoError(t, err)

	assert.Equal(t, 0, second.ProfilesCreated)
	assert.Equal(t, 0, second.ConnectionsCreated)
	assert.Equal(t, first.ProfileIDs, second.ProfileIDs)

	profiles, err := f.store.GetProfiles(ctx, graph.ID)
	require.NoError(t, err)
	assert.Len(t, profiles, 3)
}

func TestAddToGraph_ReusesExistingPeople(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	graph, _, err := f.graphs.CreateGraph(ctx)
	require.NoError(t, err)

	alice, err := f.ingestion.AddToGraph(ctx, AddToGraphInput{
		GraphID:     graph.ID,
		Self:        Person{FirstName: "Alice", LastName: "Smith"},
		Connections: people("Bob Jones"),
	})
	require.NoError(t, err)

	bob, err := f.ingestion.AddToGraph(ctx, AddToGraphInput{
		GraphID:     graph.ID,
		Self:        Person{FirstName: " Bob ", LastName: "Jones"},
		Connections: people("Carol Lee", "Alice Smith"),
	})
	require.NoError(t, err)

	assert.Equal(t, alice.ProfileIDs["Bob|||Jones"], bob.SelfID)
	assert.Equal(t, 1, bob.ProfilesCreated)
	// Alice-Bob already exists
	assert.Equal(t, 1, bob.ConnectionsCreated)
}

func TestAddToGraph_Validation(t *testing.T) {
	tests := []struct {
		name  string
		input func(graphID string) AddToGraphInput
	}{
		{
			name: "missing self first name",
			input: func(g string) AddToGraphInput {
				return AddToGraphInput{GraphID: g, Self: Person{LastName: "Smith"}}
			},
		},
		{
			name: "blank self last name",
			input: func(g string) AddToGraphInput {
				return AddToGraphInput{GraphID: g, Self: Person{FirstName: "Alice", LastName: "   "}}
			},
		},
		{
			name: "self name too long",
			input: func(g string) AddToGraphInput {
				return AddToGraphInput{GraphID: g, Self: Person{FirstName: strings.Repeat("a", 101), LastName: "Smith"}}
			},
		},
		{
			name: "malformed graph id",
			input: func(string) AddToGraphInput {
				return AddToGraphInput{GraphID: "not-a-graph", Self: Person{FirstName: "Alice", LastName: "Smith"}}
			},
		},
		{
			name: "too many people",
			input: func(g string) AddToGraphInput {
				conns := make([]Person, 50)
				for i := range conns {
					conns[i] = Person{FirstName: fmt.Sprintf("Friend%d", i), LastName: "Doe"}
				}
				return AddToGraphInput{GraphID: g, Self: Person{FirstName: "Alice", LastName: "Smith"}, Connections: conns}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			ctx := context.Background()
			graph, _, err := f.graphs.CreateGraph(ctx)
			require.NoError(t, err)

			_, err = f.ingestion.AddToGraph(ctx, tt.input(graph.ID))
			require.Error(t, err)
			assert.True(t, pkgerrors.IsValidation(err), "got %v", err)

			profiles, err := f.store.GetProfiles(ctx, graph.ID)
			require.NoError(t, err)
			assert.Empty(t, profiles)
		})
	}
}

func TestAddToGraph_SkipsInvalidConnections(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	graph, _, err := f.graphs.CreateGraph(ctx)
	require.NoError(t, err)

	result, err := f.ingestion.AddToGraph(ctx, AddToGraphInput{
		GraphID: graph.ID,
		Self:    Person{FirstName: "Alice", LastName: "Smith"},
		Connections: []Person{
			{FirstName: "Bob", LastName: "Jones"},
			{FirstName: "", LastName: "Nobody"},
			{FirstName: "Carol"},
			{FirstName: strings.Repeat("x", 101), LastName: "Long"},
			{FirstName: "Alice", LastName: "Smith"},
		},
	})
	require.NoError(t, err)

	assert.Equal(t, 3, result.SkippedConnections)
	assert.Equal(t, 2, result.ProfilesCreated)
	assert.Equal(t, 1, result.ConnectionsCreated)
}

func TestAddToGraph_UnknownGraph(t *testing.T) {
	f := newFixture(t)

	_, err := f.ingestion.AddToGraph(context.Background(), AddToGraphInput{
		GraphID: "Zz9zZz9zZz9z",
		Self:    Person{FirstName: "Alice", LastName: "Smith"},
	})
	require.Error(t, err)
	assert.True(t, pkgerrors.IsNotFound(err))
}

func TestAddToGraph_GraphsAreIsolated(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	g1, _, err := f.graphs.CreateGraph(ctx)
	require.NoError(t, err)
	g2, _, err := f.graphs.CreateGraph(ctx)
	require.NoError(t, err)

	in := AddToGraphInput{Self: Person{FirstName: "Alice", LastName: "Smith"}, Connections: people("Bob Jones")}
	in.GraphID = g1.ID
	r1, err := f.ingestion.AddToGraph(ctx, in)
	require.NoError(t, err)
	in.GraphID = g2.ID
	r2, err := f.ingestion.AddToGraph(ctx, in)
	require.NoError(t, err)

	assert.Equal(t, 2, r2.ProfilesCreated)
	assert.NotEqual(t, r1.SelfID, r2.SelfID)

	for _, g := range []*entities.Graph{g1, g2} {
		profiles, err := f.store.GetProfiles(ctx, g.ID)
		require.NoError(t, err)
		assert.Len(t, profiles, 2)
	}
}

func TestAddToGraph_ConcurrentSubmissionsConverge(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	graph, _, err := f.graphs.CreateGraph(ctx)
	require.NoError(t, err)

	const writers = 8
	var wg sync.WaitGroup
	errs := make([]error, writers)
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = f.ingestion.AddToGraph(ctx, AddToGraphInput{
				GraphID:         graph.ID,
				Self:            Person{FirstName: "Alice", LastName: "Smith"},
				Connections:     people("Bob Jones", "Carol Lee", fmt.Sprintf("Guest %d", i)),
				ConnectEveryone: true,
			})
		}(i)
	}
	wg.Wait()
	for _, err := range errs {
		require.NoError(t, err)
	}

	profiles, err := f.store.GetProfiles(ctx, graph.ID)
	require.NoError(t, err)
	assert.Len(t, profiles, 3+writers)

	seen := make(map[string]bool)
	for _, p := range profiles {
		assert.False(t, seen[p.NameKey()], "duplicate profile %s", p.NameKey())
		seen[p.NameKey()] = true
	}
}

func TestAddToGraph_RetriesConflicts(t *testing.T) {
	tests := []struct {
		name      string
		conflicts int
		wantErr   bool
		wantCalls int
	}{
		{"succeeds first time", 0, false, 1},
		{"recovers after two conflicts", 2, false, 3},
		{"gives up after retries", 4, true, 4},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := &conflictingStore{Store: memory.NewStore(zap.NewNop()), remaining: tt.conflicts}
			cfg := domainconfig.DefaultDomainConfig()
			svc := NewIngestionService(store, nil, nil, nil, nil, cfg, zap.NewNop())

			ctx := context.Background()
			graph, err := store.CreateGraph(ctx)
			require.NoError(t, err)

			_, err = svc.AddToGraph(ctx, AddToGraphInput{
				GraphID:     graph.ID,
				Self:        Person{FirstName: "Alice", LastName: "Smith"},
				Connections: people("Bob Jones"),
			})
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, pkgerrors.IsConflict(err))
			} else {
				require.NoError(t, err)
			}
			assert.Equal(t, tt.wantCalls, store.calls)
		})
	}
}

func TestAddToGraph_InvalidatesCachedBundle(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	graph, _, err := f.graphs.CreateGraph(ctx)
	require.NoError(t, err)

	bundle, err := f.graphs.GetBundle(ctx, graph.ID)
	require.NoError(t, err)
	assert.Empty(t, bundle.Profiles)

	_, err = f.ingestion.AddToGraph(ctx, AddToGraphInput{
		GraphID:     graph.ID,
		Self:        Person{FirstName: "Alice", LastName: "Smith"},
		Connections: people("Bob Jones"),
	})
	require.NoError(t, err)

	bundle, err = f.graphs.GetBundle(ctx, graph.ID)
	require.NoError(t, err)
	assert.Len(t, bundle.Profiles, 2)
	assert.Len(t, bundle.Connections, 1)
}

package dynamodb

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/narulaskaran/social-graph/application/ports"
	"github.com/narulaskaran/social-graph/domain/core/entities"
	"github.com/narulaskaran/social-graph/domain/core/valueobjects"
	"github.com/narulaskaran/social-graph/infrastructure/persistence/storetest"
	pkgerrors "github.com/narulaskaran/social-graph/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	endpoint := os.Getenv("TEST_DYNAMODB_ENDPOINT")
	if endpoint == "" {
		t.Skip("set TEST_DYNAMODB_ENDPOINT to run dynamodb store tests")
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	client, err := NewClient(ctx, "us-east-1", endpoint)
	require.NoError(t, err)
	table := "social-graph-test"
	require.NoError(t, EnsureTable(ctx, client, table))

	s := NewStore(client, table, zap.NewNop())
	require.NoError(t, s.ClearDatabase(ctx))
	return s
}

func TestStoreConformance(t *testing.T) {
	storetest.Run(t, func(t *testing.T) ports.GraphStore {
		return newTestStore(t)
	})
}

func TestApplyBatch_TransactionLimit(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	g, err := s.CreateGraph(ctx)
	require.NoError(t, err)

	profiles := make([]entities.Profile, 0, 60)
	for i := 0; i < 60; i++ {
		name, err := valueobjects.NewPersonName(fmt.Sprintf("Person%d", i), "Test", 0)
		require.NoError(t, err)
		profiles = append(profiles, entities.NewProfile(g.ID, name))
	}

	_, err = s.ApplyBatch(ctx, ports.Batch{Profiles: profiles})
	require.Error(t, err)
	assert.True(t, pkgerrors.IsValidation(err))

	stored, err := s.GetProfiles(ctx, g.ID)
	require.NoError(t, err)
	assert.Empty(t, stored)
}

func TestItemKeys(t *testing.T) {
	conn, ok := entities.NewConnection("b", "a", "g1")
	require.True(t, ok)

	assert.Equal(t, key{PK: "GRAPH#g1", SK: "CONN#a#b"}, connectionKey(conn))
	assert.Equal(t, key{PK: "PROFILE#p1", SK: "PROFILE"}, profileKey("p1"))
	assert.Equal(t, key{PK: "GRAPH#g1", SK: "NAME#Ada|||Lovelace"}, nameKey("g1", "Ada|||Lovelace"))

	it := connectionItem(conn)
	assert.Equal(t, conn, it.connection())
}

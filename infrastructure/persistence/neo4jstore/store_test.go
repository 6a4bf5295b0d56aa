package neo4jstore

import (
	"context"
	"os"
	"testing"

	"github.com/narulaskaran/social-graph/application/ports"
	"github.com/narulaskaran/social-graph/infrastructure/persistence/storetest"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestStoreConformance(t *testing.T) {
	uri := os.Getenv("TEST_NEO4J_URI")
	if uri == "" {
		t.Skip("set TEST_NEO4J_URI to run neo4j store tests")
	}
	user := os.Getenv("TEST_NEO4J_USER")
	if user == "" {
		user = "neo4j"
	}

	storetest.Run(t, func(t *testing.T) ports.GraphStore {
		s, err := Open(context.Background(), Config{
			URI:      uri,
			Username: user,
			Password: os.Getenv("TEST_NEO4J_PASSWORD"),
		}, zap.NewNop())
		require.NoError(t, err)
		require.NoError(t, s.ClearDatabase(context.Background()))
		return s
	})
}

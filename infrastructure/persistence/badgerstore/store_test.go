package badgerstore

import (
	"context"
	"testing"

	"github.com/narulaskaran/social-graph/application/ports"
	"github.com/narulaskaran/social-graph/infrastructure/persistence/storetest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestStoreConformance(t *testing.T) {
	storetest.Run(t, func(t *testing.T) ports.GraphStore {
		s, err := Open(Config{InMemory: true}, zap.NewNop())
		require.NoError(t, err)
		return s
	})
}

func TestStore_PersistsAcrossReopen(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	s, err := Open(Config{Path: dir, SyncWrites: true}, zap.NewNop())
	require.NoError(t, err)
	g, err := s.CreateGraph(ctx)
	require.NoError(t, err)
	require.NoError(t, s.Close())

	s, err = Open(Config{Path: dir}, zap.NewNop())
	require.NoError(t, err)
	defer s.Close()

	got, err := s.GetGraph(ctx, g.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, g.ID, got.ID)
}

func TestOpen_RequiresPath(t *testing.T) {
	_, err := Open(Config{}, zap.NewNop())
	assert.Error(t, err)
}

func TestKeys(t *testing.T) {
	assert.Equal(t, "c:g1\x00a\x00b", string(connectionKey("g1", "a", "b")))
	assert.Equal(t, "c:", string(connectionPrefix("")))
	assert.Equal(t, "pn:g1\x00Ada|||Lovelace", string(nameKey("g1", "Ada|||Lovelace")))
}

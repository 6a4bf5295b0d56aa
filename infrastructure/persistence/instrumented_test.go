package persistence_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/narulaskaran/social-graph/application/ports"
	"github.com/narulaskaran/social-graph/infrastructure/persistence"
	"github.com/narulaskaran/social-graph/infrastructure/persistence/memory"
	"github.com/narulaskaran/social-graph/infrastructure/persistence/storetest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type recordingObserver struct {
	mu  sync.Mutex
	ops map[string]int
}

func (o *recordingObserver) ObserveDB(operation string, err error, duration time.Duration) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.ops == nil {
		o.ops = make(map[string]int)
	}
	o.ops[operation]++
}

func TestInstrumentedStoreConformance(t *testing.T) {
	storetest.Run(t, func(t *testing.T) ports.GraphStore {
		return persistence.NewInstrumentedStore(memory.NewStore(zap.NewNop()), &recordingObserver{}, nil, zap.NewNop())
	})
}

func TestInstrumentedStore_Observes(t *testing.T) {
	obs := &recordingObserver{}
	s := persistence.NewInstrumentedStore(memory.NewStore(zap.NewNop()), obs, nil, zap.NewNop())
	ctx := context.Background()

	g, err := s.CreateGraph(ctx)
	require.NoError(t, err)
	_, err = s.GetGraph(ctx, g.ID)
	require.NoError(t, err)
	_, err = s.GetProfiles(ctx, g.ID)
	require.NoError(t, err)

	assert.Equal(t, 1, obs.ops["create_graph"])
	assert.Equal(t, 1, obs.ops["get_graph"])
	assert.Equal(t, 1, obs.ops["get_profiles"])
}
